// Package tconf loads TUNA's configuration: a YAML file read by viper,
// overlaid with command-line flags bound via viper.BindPFlags — the
// same two-stage pattern as birdnet-go's internal/conf/config.go.
package tconf

import (
	"fmt"

	"github.com/spf13/viper"
)

// Settings is TUNA's complete runtime configuration.
type Settings struct {
	SampleRate int    `mapstructure:"sample_rate"`
	Input      string `mapstructure:"input"`  // "<kind>:<spec>"
	Output     string `mapstructure:"output"` // "<kind>:<spec>"

	Pulse struct {
		Tw                  float64 `mapstructure:"tw"`
		Tc                  float64 `mapstructure:"tc"`
		Td                  float64 `mapstructure:"td"`
		PulseMaxDuration    float64 `mapstructure:"pulse_max_duration"`
		PulseMinDecay       float64 `mapstructure:"pulse_min_decay"`
		ThresholdRatio      int     `mapstructure:"threshold_ratio"`
		DecayThresholdRatio int     `mapstructure:"decay_threshold_ratio"`
		SampleLimit         float64 `mapstructure:"sample_limit"`
	} `mapstructure:"pulse"`

	TimeSlice struct {
		Overlap float64 `mapstructure:"overlap"`
		PhiL    int     `mapstructure:"phi_l"`
	} `mapstructure:"time_slice"`

	WisdomPath string `mapstructure:"wisdom_path"`

	Log struct {
		Path     string `mapstructure:"path"`
		Level    string `mapstructure:"level"`
		Rotation string `mapstructure:"rotation"` // "daily", "weekly", "size"
		MaxSizeMB int64 `mapstructure:"max_size_mb"`
	} `mapstructure:"log"`

	Debug bool `mapstructure:"debug"`
}

// setDefaults seeds viper with TUNA's default parameter set before any
// config file or flags are applied, mirroring birdnet-go's
// setDefaultConfig step.
func setDefaults() {
	viper.SetDefault("sample_rate", 48000)
	viper.SetDefault("input", "zero:")
	viper.SetDefault("output", "null:")

	viper.SetDefault("pulse.tw", 0.1)
	viper.SetDefault("pulse.tc", 0.01)
	viper.SetDefault("pulse.td", 0.05)
	viper.SetDefault("pulse.pulse_max_duration", 2.0)
	viper.SetDefault("pulse.pulse_min_decay", 0.05)
	viper.SetDefault("pulse.threshold_ratio", 4)
	viper.SetDefault("pulse.decay_threshold_ratio", 2)
	viper.SetDefault("pulse.sample_limit", 1.0)

	viper.SetDefault("time_slice.overlap", 0.4)
	viper.SetDefault("time_slice.phi_l", 3)

	viper.SetDefault("wisdom_path", "fftw.wisdom")

	viper.SetDefault("log.path", "tuna.log")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.rotation", "daily")
	viper.SetDefault("log.max_size_mb", 100)

	viper.SetDefault("debug", false)
}

// Load reads tuna.yaml (if present) from the working directory plus
// any standard config paths, applies TUNA's defaults, and unmarshals
// the result into a Settings value. A missing config file is not an
// error — TUNA runs entirely off defaults and flags.
func Load() (*Settings, error) {
	viper.SetConfigName("tuna")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.tuna")
	viper.AddConfigPath("/etc/tuna")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("tconf: error reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("tconf: error unmarshaling config: %w", err)
	}
	return settings, nil
}
