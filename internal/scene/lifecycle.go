package scene

// AudioConfig is the sample-rate-dependent geometry every audio-state
// component is configured with.
type AudioConfig struct {
	SampleRate float64
	Fragment   int
	Channels   int
	// SpeedOfSound is the per-scene c in m/s; 0 falls back to 340.
	SpeedOfSound float64
}

// C returns the effective speed of sound.
func (c AudioConfig) C() float64 {
	if c.SpeedOfSound > 0 {
		return c.SpeedOfSound
	}
	return 340
}

// BlockTime returns the duration of one fragment in seconds.
func (c AudioConfig) BlockTime() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(c.Fragment) / c.SampleRate
}

// AudioState is the uniform configure/post-prepare/release lifecycle:
// Configure allocates sample-rate-dependent state, PostPrepare runs
// after all Configure calls for cross-component wiring, Release tears
// down. Configure and Release are idempotent-safe.
type AudioState interface {
	Configure(cfg AudioConfig) error
	PostPrepare() error
	Release()
}

// ConfigureAll configures a set of components succeed-or-rollback: if
// one fails, the already-configured prefix is released before the error
// propagates.
func ConfigureAll(cfg AudioConfig, components ...AudioState) error {
	for i, c := range components {
		if err := c.Configure(cfg); err != nil {
			for j := i - 1; j >= 0; j-- {
				components[j].Release()
			}
			return err
		}
	}
	return nil
}

// PostPrepareAll runs PostPrepare over all components, releasing
// everything on the first failure.
func PostPrepareAll(components ...AudioState) error {
	for _, c := range components {
		if err := c.PostPrepare(); err != nil {
			for _, r := range components {
				r.Release()
			}
			return err
		}
	}
	return nil
}

// ReleaseAll releases every component in reverse order.
func ReleaseAll(components ...AudioState) {
	for i := len(components) - 1; i >= 0; i-- {
		components[i].Release()
	}
}

// NoPostPrepare is embedded by components with no cross-wiring step.
type NoPostPrepare struct{}

func (NoPostPrepare) PostPrepare() error { return nil }
