/**
 * Bar Scanner
 *
 * Measures bar heights by walking a single pixel column per bar:
 * - each month label is split evenly into one slot per legend series
 * - the slot center is scanned upward from the zero line (or just above the
 *   month label, whichever is higher) toward the top of the chart
 * - the first run of MinBarRun dark rows is the bar, its top row the bar top
 *
 * Both the slot subdivision and legend-to-slot order assume bars are laid out
 * left to right under their month label in series order.
 */

package chart

import (
	"fmt"
	"math"

	apperrors "github.com/adverant/nexus/billchart-worker/internal/errors"
)

// Scan measures every bar of a candidate
func Scan(raster Raster, c Candidate, cal Calibration, opts Options) ([]MonthUsage, error) {
	if raster == nil {
		return nil, apperrors.NewScanFailedError(c.ID, fmt.Errorf("pixel buffer not ready"))
	}
	if cal.ValuePerPixel <= 0 || math.IsNaN(cal.ZeroLineY) || math.IsInf(cal.ZeroLineY, 0) {
		return nil, apperrors.NewScanFailedError(c.ID, fmt.Errorf("invalid calibration (valuePerPixel=%v, zeroLineY=%v)",
			cal.ValuePerPixel, cal.ZeroLineY))
	}

	series := len(c.Legend)
	if series < 1 {
		series = 1
	}

	top := int(math.Floor(c.Bounds.Y0))
	data := make([]MonthUsage, 0, len(c.Months))

	for _, month := range c.Months {
		usage := make([]SeriesValue, 0, series)
		start := int(math.Floor(math.Min(cal.ZeroLineY, month.BBox.Y0-1)))

		for i := 0; i < series; i++ {
			x := slotColumn(month.BBox, i, series)

			value := 0.0
			if barTop, ok := findBarTop(raster, x, start, top, opts.MinBarRun); ok {
				value = math.Max(0, math.Round(cal.Value(float64(barTop))))
			}

			usage = append(usage, SeriesValue{
				Year:  seriesLabel(c.Legend, i),
				Value: value,
			})
		}

		data = append(data, MonthUsage{
			Month: monthLabel(month.Text),
			Usage: usage,
		})
	}

	return data, nil
}

// slotColumn returns the scan column of series i under a month label
func slotColumn(box Rect, i, series int) int {
	slot := box.Width() / float64(series)
	return int(math.Floor(box.X0 + (float64(i)+0.5)*slot))
}

// findBarTop walks up column x from row start to row top and returns the top
// row of the first run of at least minRun consecutive dark pixels.
func findBarTop(raster Raster, x, start, top, minRun int) (int, bool) {
	if minRun < 1 {
		minRun = 1
	}

	run := 0
	for y := start; y >= top; y-- {
		if raster.IsDark(x, y) {
			run++
			continue
		}
		if run >= minRun {
			return y + 1, true
		}
		run = 0
	}

	if run >= minRun {
		return top, true
	}
	return 0, false
}

func seriesLabel(legend []Word, i int) string {
	if i < len(legend) {
		return legend[i].Text
	}
	return fmt.Sprintf("Year %d", i+1)
}

func monthLabel(text string) string {
	if index, ok := MonthIndex(text); ok {
		return MonthAbbreviation(index)
	}
	return text
}
