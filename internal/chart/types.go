/**
 * Chart Types - value objects shared by the bar chart extraction pipeline
 *
 * Pipeline: classify -> cluster -> calibrate -> scan -> assemble.
 * Every stage receives these values and returns new ones; nothing is mutated
 * after construction.
 */

package chart

import "math"

// Rect is a pixel rectangle with y growing downward.
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Width returns the horizontal extent of the rectangle
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns the vertical extent of the rectangle
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// CenterX returns the horizontal center
func (r Rect) CenterX() float64 { return (r.X0 + r.X1) / 2 }

// CenterY returns the vertical center
func (r Rect) CenterY() float64 { return (r.Y0 + r.Y1) / 2 }

// Union returns the smallest rectangle containing both r and o
func (r Rect) Union(o Rect) Rect {
	return Rect{
		X0: math.Min(r.X0, o.X0),
		Y0: math.Min(r.Y0, o.Y0),
		X1: math.Max(r.X1, o.X1),
		Y1: math.Max(r.Y1, o.Y1),
	}
}

// Word is a single OCR token with its bounding box.
// Identity is positional: a word is identified by its index in the page slice.
type Word struct {
	Text       string  `json:"text"`
	BBox       Rect    `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

// Candidate is a geometrically inferred, not yet verified chart region
type Candidate struct {
	ID     int
	Months []Word // left to right
	YAxis  []Word
	Legend []Word // left to right, series order
	Unit   *Word
	Title  []Word
	Bounds Rect
}

// Calibration is the affine mapping from pixel row to chart value.
// Value(y) = (ZeroLineY - y) * ValuePerPixel
type Calibration struct {
	ValuePerPixel float64 `json:"valuePerPixel"`
	ZeroLineY     float64 `json:"zeroLineY"`
	PixelMin      float64 `json:"pixelMin"` // pixel row of the smallest label
	PixelMax      float64 `json:"pixelMax"` // pixel row of the largest label
	ValueMin      float64 `json:"valueMin"`
	ValueMax      float64 `json:"valueMax"`
}

// Value converts a pixel row to a chart value
func (c Calibration) Value(y float64) float64 {
	return (c.ZeroLineY - y) * c.ValuePerPixel
}

// SeriesValue is one bar of a month
type SeriesValue struct {
	Year  string  `json:"year"`
	Value float64 `json:"value"`
}

// MonthUsage holds the bars measured under one month label
type MonthUsage struct {
	Month string        `json:"month"`
	Usage []SeriesValue `json:"usage"`
}

// UsageChartData is the structured content recovered from one bar chart
type UsageChartData struct {
	Title string       `json:"title"`
	Unit  string       `json:"unit"`
	Data  []MonthUsage `json:"data"`
}

// CandidateResult is the result-or-failure of processing one candidate.
// Exactly one of Chart and Err is set.
type CandidateResult struct {
	Candidate   Candidate
	Calibration Calibration
	Chart       *UsageChartData
	Err         error
}

// Charts flattens the successful results, preserving order
func Charts(results []CandidateResult) []UsageChartData {
	charts := make([]UsageChartData, 0, len(results))
	for _, r := range results {
		if r.Err == nil && r.Chart != nil {
			charts = append(charts, *r.Chart)
		}
	}
	return charts
}
