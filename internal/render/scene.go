package render

import (
	"github.com/san-kum/vacoustic/internal/engineerr"
	"github.com/san-kum/vacoustic/internal/receiver"
	"github.com/san-kum/vacoustic/internal/scene"
)

// Scene is the typed scene description the engine renders, produced by
// the external session loader.
type Scene struct {
	Name string
	// C is the per-scene speed of sound in m/s.
	C float64

	Sources    []*scene.Source
	Diffuse    []*scene.DiffuseField
	Reflectors []*scene.Reflector
	Obstacles  []*scene.Obstacle
	Masks      []*scene.Mask
	Receivers  []*receiver.Receiver
	Materials  *scene.MaterialDB
}

// NewScene returns an empty scene with default constants.
func NewScene(name string) *Scene {
	return &Scene{Name: name, C: 340, Materials: scene.NewMaterialDB()}
}

// Validate checks scene-wide configuration invariants: unique object
// names and resolvable material references.
func (s *Scene) Validate() error {
	seen := map[string]bool{}
	check := func(name string) error {
		if name == "" {
			return engineerr.NewConfigError("scene", engineerr.ErrMissingAttribute)
		}
		if seen[name] {
			return engineerr.NewConfigError(name, engineerr.ErrDuplicateName)
		}
		seen[name] = true
		return nil
	}
	for _, o := range s.Sources {
		if err := check(o.Name); err != nil {
			return err
		}
	}
	for _, o := range s.Diffuse {
		if err := check(o.Name); err != nil {
			return err
		}
	}
	for _, o := range s.Receivers {
		if err := check(o.Name); err != nil {
			return err
		}
	}
	for _, o := range s.Reflectors {
		if err := check(o.Name); err != nil {
			return err
		}
		if o.MaterialName != "" {
			if _, err := s.Materials.Lookup(o.MaterialName); err != nil {
				return err
			}
		}
	}
	for _, o := range s.Obstacles {
		if err := check(o.Name); err != nil {
			return err
		}
	}
	for _, o := range s.Masks {
		if err := check(o.Name); err != nil {
			return err
		}
	}
	return nil
}

// vertices enumerates all sound vertices in scene order.
func (s *Scene) vertices() []*scene.SoundVertex {
	var out []*scene.SoundVertex
	for _, src := range s.Sources {
		out = append(out, src.Vertices...)
	}
	return out
}
