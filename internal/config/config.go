// Package config holds the engine-wide numeric defaults that the scene
// description does not itself carry per-object: speed of sound,
// SPL reference, calibration-freshness threshold and the default block
// geometry.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultSpeedOfSound is "c" in m/s.
	DefaultSpeedOfSound = 340.0
	// SPLReference is the dB-SPL reference pressure, 2e-5 Pa.
	SPLReference = 2e-5
	// DefaultCalibMaxAge is the default calibration-freshness threshold.
	DefaultCalibMaxAge = 30 * 24 * time.Hour
	// AirAbsorptionDivisor is the constant in exp(-distance*fs/(c*7782)).
	AirAbsorptionDivisor = 7782.0

	DefaultSampleRate = 44100
	DefaultFragment   = 1024
)

// Config is the process-wide RenderContext configuration: no
// subsystem depends on hidden globals, it is threaded through explicitly
// at construction.
type Config struct {
	SpeedOfSound    float64       `yaml:"speed_of_sound"`
	SampleRate      int           `yaml:"sample_rate"`
	Fragment        int           `yaml:"fragment"`
	CalibMaxAge     time.Duration `yaml:"calib_max_age"`
	DefaultISMOrder int           `yaml:"default_ism_order"`
}

func DefaultConfig() *Config {
	return &Config{
		SpeedOfSound:    DefaultSpeedOfSound,
		SampleRate:      DefaultSampleRate,
		Fragment:        DefaultFragment,
		CalibMaxAge:     DefaultCalibMaxAge,
		DefaultISMOrder: 1,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
