package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/adverant/nexus/billchart-worker/internal/chart"
)

// LoadChartProfile reads chart tolerance overrides from a YAML file.
// Keys missing from the file keep their defaults; an empty path returns the defaults.
//
//	row_tolerance: 12
//	legend_radius: 350
//	dark_threshold: 190
func LoadChartProfile(path string) (chart.Options, error) {
	opts := chart.DefaultOptions()
	if path == "" {
		return opts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("failed to read chart profile: %w", err)
	}

	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("failed to parse chart profile %s: %w", path, err)
	}

	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("invalid chart profile %s: %w", path, err)
	}

	return opts, nil
}

// ChartOptions loads the chart profile and applies CHART_CONCURRENCY when it is set
func (c *Config) ChartOptions() (chart.Options, error) {
	opts, err := LoadChartProfile(c.ChartProfilePath)
	if err != nil {
		return opts, err
	}
	if c.ChartConcurrency > 0 {
		opts.Concurrency = c.ChartConcurrency
	}
	return opts, nil
}
