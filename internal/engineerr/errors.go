// Package engineerr holds the sentinel and wrapped error types shared by
// the control context: configuration errors, which abort with a
// single human-readable message and no partial state, and resource
// errors, which name the failing component so siblings can be released
// before re-throw.
package engineerr

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAttribute is returned when a required scene attribute is absent.
	ErrMissingAttribute = errors.New("vacoustic: missing required attribute")
	// ErrDuplicateName is returned when two scene objects share a name.
	ErrDuplicateName = errors.New("vacoustic: duplicate object name")
	// ErrMaterialNotFound is returned when a reflector/obstacle references an unknown material.
	ErrMaterialNotFound = errors.New("vacoustic: material reference not found")
	// ErrNonPlanarFace is returned when a face has fewer than 3 vertices.
	ErrNonPlanarFace = errors.New("vacoustic: face needs at least 3 vertices")
	// ErrLayoutUnreachable is returned when a speaker layout file cannot be loaded.
	ErrLayoutUnreachable = errors.New("vacoustic: speaker layout unreachable")
	// ErrAllocation is returned when a sample-rate-dependent resource cannot be allocated.
	ErrAllocation = errors.New("vacoustic: resource allocation failed")
)

// ConfigError wraps a Configuration-kind failure with the identity
// of the offending scene element.
type ConfigError struct {
	Component string
	Cause     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configure %q: %s", e.Component, e.Cause.Error())
}

func (e *ConfigError) Unwrap() error { return e.Cause }

func NewConfigError(component string, cause error) *ConfigError {
	return &ConfigError{Component: component, Cause: cause}
}

// ResourceError wraps an allocation failure with the identity of the
// failing component, so callers can release already-configured siblings
// before propagating.
type ResourceError struct {
	Component string
	Cause     error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("allocate %q: %s", e.Component, e.Cause.Error())
}

func (e *ResourceError) Unwrap() error { return e.Cause }

func NewResourceError(component string, cause error) *ResourceError {
	return &ResourceError{Component: component, Cause: cause}
}

// Warning is a scene-semantic warning that is accumulated but never
// blocks rendering: calibration staleness, layout/receiver mismatch,
// multiple mask plugins on one receiver, and similar.
type Warning struct {
	Component string
	Message   string
}

func (w Warning) String() string { return fmt.Sprintf("%s: %s", w.Component, w.Message) }

// WarningList accumulates Warnings produced during configure.
type WarningList struct {
	items []Warning
}

func (l *WarningList) Add(component, message string, args ...any) {
	l.items = append(l.items, Warning{Component: component, Message: fmt.Sprintf(message, args...)})
}

func (l *WarningList) Items() []Warning { return l.items }

func (l *WarningList) Empty() bool { return len(l.items) == 0 }
