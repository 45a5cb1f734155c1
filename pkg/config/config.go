// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"

	"github.com/user/loadsim/pkg/adapters/logger"
	"github.com/user/loadsim/pkg/estimator"
	"github.com/user/loadsim/pkg/ports"
	"github.com/user/loadsim/pkg/simulator"
	"gopkg.in/yaml.v3"
)

// Config represents the full configuration for a simulation: the
// synthetic environment and the rough-estimate blending table.
type Config struct {
	// Environment
	RTTMs                 float64 `yaml:"rtt_ms"`
	ThroughputBytesPerSec float64 `yaml:"throughput_bytes_per_sec"`
	CPUSlowdownMultiplier float64 `yaml:"cpu_slowdown_multiplier"`

	// Per-origin overrides
	AdditionalRTTByOrigin      map[string]float64 `yaml:"additional_rtt_by_origin"`
	ServerResponseTimeByOrigin map[string]float64 `yaml:"server_response_time_by_origin"`

	// Connection pool
	ConnectionsPerOrigin int `yaml:"connections_per_origin"`

	// RoughEstimateWeights maps milestone name to the pessimistic
	// weight used when blending the optimistic and pessimistic runs.
	// The values are tuned against reference datasets; there is no
	// formula to re-derive them from.
	RoughEstimateWeights map[string]float64 `yaml:"rough_estimate_weights"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Defaults returns a Config with default values: a mid-tier mobile
// profile (150 ms RTT, 1.6 Mbps, 4x CPU slowdown) and equal blending
// weights.
func Defaults() Config {
	return Config{
		RTTMs:                 150,
		ThroughputBytesPerSec: 1.6 * 1024 * 1024 / 8,
		CPUSlowdownMultiplier: 4.0,

		RoughEstimateWeights: map[string]float64{
			string(simulator.MilestoneFirstNetworkByte):    0.5,
			string(simulator.MilestoneFirstMeaningfulWork): 0.5,
			string(simulator.MilestoneFullySettled):        0.5,
		},

		LogLevel: "info",
	}
}

// LoadFromFile loads configuration from a YAML file. Fields absent
// from the file keep their default values.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// SimulatorOptions converts the configured environment into simulator
// options. Policy and Logger remain for the caller to set.
func (c Config) SimulatorOptions() simulator.Options {
	return simulator.Options{
		RTTMs:                      c.RTTMs,
		ThroughputBytesPerSec:      c.ThroughputBytesPerSec,
		CPUSlowdownMultiplier:      c.CPUSlowdownMultiplier,
		AdditionalRTTByOrigin:      c.AdditionalRTTByOrigin,
		ServerResponseTimeByOrigin: c.ServerResponseTimeByOrigin,
		ConnectionsPerOrigin:       c.ConnectionsPerOrigin,
	}
}

// Coefficients converts the configured blending table into estimator
// coefficients. Milestones missing from the table blend equally.
func (c Config) Coefficients() estimator.Coefficients {
	coefficients := estimator.DefaultCoefficients()
	for name, weight := range c.RoughEstimateWeights {
		coefficients[simulator.Milestone(name)] = weight
	}
	return coefficients
}

// Logger builds the logger the configured log level asks for: a
// console logger, or the no-op logger for "quiet".
func (c Config) Logger() ports.Logger {
	level := ports.ParseLogLevel(c.LogLevel)
	if level == ports.LevelQuiet {
		return logger.NewNoop()
	}
	return logger.NewConsole(level)
}

// EstimatorOptions bundles the configured environment, blending table,
// and logger into ready-to-run estimator options.
func (c Config) EstimatorOptions() estimator.Options {
	return estimator.Options{
		Environment:  c.SimulatorOptions(),
		Coefficients: c.Coefficients(),
		Logger:       c.Logger(),
	}
}
