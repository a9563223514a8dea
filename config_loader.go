package cpumon

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MonitorConfig is the top-level structure of monitor.yaml. All durations
// are given in milliseconds.
type MonitorConfig struct {
	StreamIntervalMS int            `yaml:"stream_interval_ms"`
	SmoothingWindow  int            `yaml:"smoothing_window"`
	Workload         WorkloadConfig `yaml:"workload"`
}

// WorkloadConfig tunes the synthetic-load orchestrator.
type WorkloadConfig struct {
	PhaseDurationMS int `yaml:"phase_duration_ms"`
	DecayPauseMS    int `yaml:"decay_pause_ms"`
	NoteStepMS      int `yaml:"note_step_ms"`
}

// LoadMonitorConfig reads and validates monitor.yaml.
func LoadMonitorConfig(path string) (*MonitorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg MonitorConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultMonitorConfig returns the configuration used when no file is given.
func DefaultMonitorConfig() *MonitorConfig {
	cfg := &MonitorConfig{}
	cfg.applyDefaults()
	return cfg
}

func (c *MonitorConfig) applyDefaults() {
	if c.StreamIntervalMS == 0 {
		c.StreamIntervalMS = 150
	}
	if c.SmoothingWindow == 0 {
		c.SmoothingWindow = 10
	}
	if c.Workload.PhaseDurationMS == 0 {
		c.Workload.PhaseDurationMS = 5000
	}
	if c.Workload.DecayPauseMS == 0 {
		c.Workload.DecayPauseMS = 2000
	}
	if c.Workload.NoteStepMS == 0 {
		c.Workload.NoteStepMS = 400
	}
}

func (c *MonitorConfig) validate() error {
	if c.StreamIntervalMS < 0 {
		return fmt.Errorf("stream_interval_ms must be positive")
	}
	if c.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing_window must be at least 1")
	}
	if c.Workload.PhaseDurationMS < 0 || c.Workload.DecayPauseMS < 0 || c.Workload.NoteStepMS < 0 {
		return fmt.Errorf("workload durations must be positive")
	}
	return nil
}

// StreamInterval returns the telemetry cadence as a duration.
func (c *MonitorConfig) StreamInterval() time.Duration {
	return time.Duration(c.StreamIntervalMS) * time.Millisecond
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
