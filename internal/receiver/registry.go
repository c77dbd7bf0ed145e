package receiver

import (
	"github.com/san-kum/vacoustic/internal/engineerr"
)

// VariantFactory builds a variant for a receiver type name; layout may
// be nil for non-speaker variants.
type VariantFactory func(layout *Layout) (Variant, error)

// Registry maps receiver type names to variant factories.
type Registry struct {
	factories map[string]VariantFactory
}

// NewRegistry returns a registry preloaded with the built-in variants.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]VariantFactory)}
	r.Register("omni", func(*Layout) (Variant, error) { return Omni{}, nil })
	r.Register("cardioid", func(*Layout) (Variant, error) { return Cardioid{}, nil })
	r.Register("debugpos", func(*Layout) (Variant, error) { return DebugPos{}, nil })
	r.Register("amb1h0v", func(*Layout) (Variant, error) { return Amb1H0V{}, nil })
	r.Register("amb1h1v", func(*Layout) (Variant, error) { return Amb1H1V{}, nil })
	r.Register("amb3h3v", func(*Layout) (Variant, error) { return &Amb3H3V{}, nil })
	r.Register("fakebf", func(*Layout) (Variant, error) { return FakeBF{}, nil })
	r.Register("intensityvector", func(*Layout) (Variant, error) { return IntensityVector{}, nil })
	r.Register("hrtf", func(*Layout) (Variant, error) { return NewHRTFParam(), nil })
	r.Register("ortf", func(*Layout) (Variant, error) { return NewORTF(), nil })
	r.Register("hoa2d", func(*Layout) (Variant, error) { return &HOA2D{Order: 3}, nil })
	r.Register("simplefdn", func(*Layout) (Variant, error) { return NewSimpleFDN(), nil })
	r.Register("foareverb", func(*Layout) (Variant, error) { return NewFOAReverb(2), nil })
	r.Register("itu50", func(*Layout) (Variant, error) { return NewVBAP2D(ITU50()), nil })
	r.Register("itu714", func(*Layout) (Variant, error) { return NewVBAP3D(ITU714()), nil })
	r.Register("nsp", requireLayout(func(l *Layout) Variant { return &NSP{L: l} }))
	r.Register("vbap2d", requireLayout(func(l *Layout) Variant { return NewVBAP2D(l) }))
	r.Register("vbap3d", requireLayout(func(l *Layout) Variant { return NewVBAP3D(l) }))
	r.Register("hoa3d", requireLayout(func(l *Layout) Variant { return NewHOA3D(l, 3, ModMaxRE) }))
	return r
}

func requireLayout(build func(l *Layout) Variant) VariantFactory {
	return func(l *Layout) (Variant, error) {
		if l == nil {
			return nil, engineerr.NewConfigError("layout", engineerr.ErrLayoutUnreachable)
		}
		return build(l), nil
	}
}

// Register installs or replaces a factory under a type name.
func (r *Registry) Register(name string, f VariantFactory) { r.factories[name] = f }

// Build constructs the variant for a receiver type.
func (r *Registry) Build(typ string, layout *Layout) (Variant, error) {
	f, ok := r.factories[typ]
	if !ok {
		return nil, engineerr.NewConfigError(typ, engineerr.ErrMissingAttribute)
	}
	return f(layout)
}

// Types lists the registered type names.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	return out
}
