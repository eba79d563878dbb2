package chart

import (
	"math"
	"sort"

	apperrors "github.com/adverant/nexus/billchart-worker/internal/errors"
)

type axisPoint struct {
	value float64
	pixel float64
}

// Calibrate derives the pixel-to-value mapping from y-axis label words.
//
// Labels are parsed and paired with their vertical centers; duplicate values
// keep their first occurrence. The zero line is extrapolated from the largest
// label so that axes starting at a non-zero floor still measure from zero.
func Calibrate(labels []Word) (Calibration, error) {
	points := make([]axisPoint, 0, len(labels))
	seen := map[float64]bool{}
	for _, l := range labels {
		value, ok := ParseNumber(l.Text)
		if !ok || seen[value] {
			continue
		}
		seen[value] = true
		points = append(points, axisPoint{value: value, pixel: l.BBox.CenterY()})
	}

	if len(points) < MinAxisLabels {
		return Calibration{}, apperrors.NewInsufficientAxisDataError(len(labels), len(points), "distinct_values")
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].value < points[j].value })
	lo, hi := points[0], points[len(points)-1]

	// larger values must be drawn higher up
	if hi.pixel >= lo.pixel {
		return Calibration{}, apperrors.NewInsufficientAxisDataError(len(labels), len(points), "inverted_axis")
	}

	valuePerPixel := (hi.value - lo.value) / math.Abs(lo.pixel-hi.pixel)

	zeroLineY := lo.pixel
	if lo.value != 0 {
		zeroLineY = hi.pixel + hi.value/valuePerPixel
	}

	return Calibration{
		ValuePerPixel: valuePerPixel,
		ZeroLineY:     zeroLineY,
		PixelMin:      lo.pixel,
		PixelMax:      hi.pixel,
		ValueMin:      lo.value,
		ValueMax:      hi.value,
	}, nil
}
