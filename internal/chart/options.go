package chart

import "fmt"

// Geometry limits that are part of the chart definition rather than tuning.
const (
	// MinMonthAxis is the smallest aligned month group accepted as an axis.
	// Groups of 1-3 months are incidental text alignment.
	MinMonthAxis = 4

	// MinAxisLabels is the number of y-axis labels needed for calibration
	MinAxisLabels = 2
)

// Options holds the pixel tolerances used by the pipeline.
// Defaults are tuned for bills rendered at their native resolution.
type Options struct {
	RowTolerance  float64 `yaml:"row_tolerance"`  // month row alignment (center y)
	AxisTolerance float64 `yaml:"axis_tolerance"` // y-axis labels may sit this far below the month row
	AxisReach     float64 `yaml:"axis_reach"`     // max gap between y-axis label and first month
	LegendRadius  float64 `yaml:"legend_radius"`  // legend years around the chart center
	UnitReach     float64 `yaml:"unit_reach"`     // unit token around the chart left edge
	TitleReach    float64 `yaml:"title_reach"`    // title row above the chart

	DarkThreshold uint8 `yaml:"dark_threshold"` // per-channel brightness below which a pixel is dark
	MinBarRun     int   `yaml:"min_bar_run"`    // consecutive dark rows that make a bar

	// Concurrency > 1 scans candidates in parallel. Output order is unaffected.
	Concurrency int `yaml:"concurrency"`
}

// DefaultOptions returns the reference tolerances
func DefaultOptions() Options {
	return Options{
		RowTolerance:  10,
		AxisTolerance: 30,
		AxisReach:     150,
		LegendRadius:  300,
		UnitReach:     100,
		TitleReach:    60,
		DarkThreshold: 200,
		MinBarRun:     3,
		Concurrency:   1,
	}
}

// Validate checks that every tolerance is usable
func (o Options) Validate() error {
	distances := map[string]float64{
		"row_tolerance":  o.RowTolerance,
		"axis_tolerance": o.AxisTolerance,
		"axis_reach":     o.AxisReach,
		"legend_radius":  o.LegendRadius,
		"unit_reach":     o.UnitReach,
		"title_reach":    o.TitleReach,
	}
	for _, name := range []string{"row_tolerance", "axis_tolerance", "axis_reach", "legend_radius", "unit_reach", "title_reach"} {
		if distances[name] <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, distances[name])
		}
	}

	if o.DarkThreshold == 0 {
		return fmt.Errorf("dark_threshold must be between 1 and 255")
	}

	if o.MinBarRun < 1 {
		return fmt.Errorf("min_bar_run must be at least 1, got %d", o.MinBarRun)
	}

	if o.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", o.Concurrency)
	}

	return nil
}

// Trace levels passed to TraceFunc
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// TraceFunc receives pipeline events. Payload may be nil.
// It is called from several goroutines when Options.Concurrency > 1.
type TraceFunc func(level, msg string, payload map[string]interface{})

func nopTrace(string, string, map[string]interface{}) {}
