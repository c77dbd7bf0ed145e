// Package render is the geometric-acoustic rendering engine: the
// per-receiver image-source path trees, the diffuse paths and the
// block-synchronous scene scheduler that drives them.
package render

import (
	"github.com/charmbracelet/log"

	"github.com/san-kum/vacoustic/internal/audiobuf"
	"github.com/san-kum/vacoustic/internal/config"
	"github.com/san-kum/vacoustic/internal/engineerr"
	"github.com/san-kum/vacoustic/internal/receiver"
	"github.com/san-kum/vacoustic/internal/scene"
)

// Transport is the external audio server's clock view for one block.
type Transport struct {
	Rolling bool
	// Sample is the transport position of the first sample of the block.
	Sample uint64
	// SampleRate mirrors the configured rate for time conversion.
	SampleRate float64
}

// Time returns the transport time in seconds.
func (t Transport) Time() float64 {
	if t.SampleRate <= 0 {
		return 0
	}
	return float64(t.Sample) / t.SampleRate
}

// AudioPlugin processes one block in place; plugin chains run inside
// the audio context and must not allocate.
type AudioPlugin interface {
	Process(block *audiobuf.Buffer, tp Transport)
}

// Module is a scene-level extension with the shared audio-state
// lifecycle plus a per-block update hook.
type Module interface {
	scene.AudioState
	Update(tp Transport)
}

// RenderContext is the process-wide state passed explicitly to every
// subsystem: configuration defaults, the warning list, the variant
// registry and the control-context logger. No hidden globals.
type RenderContext struct {
	Config   *config.Config
	Warnings *engineerr.WarningList
	Registry *receiver.Registry
	Log      *log.Logger

	// Diagnostic counters incremented by the audio context on silent
	// failures; plain fields, written only by the audio context.
	NonFiniteCount uint64
	SkippedPaths   uint64
}

// NewRenderContext assembles a context with defaults.
func NewRenderContext(cfg *config.Config, logger *log.Logger) *RenderContext {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RenderContext{
		Config:   cfg,
		Warnings: &engineerr.WarningList{},
		Registry: receiver.NewRegistry(),
		Log:      logger,
	}
}
