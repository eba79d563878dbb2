/**
 * Extractor - runs the bar chart pipeline over one page
 *
 * Each candidate is calibrated, scanned and assembled on its own; a failure
 * is recorded in that candidate's result and never affects the others.
 */

package chart

import (
	"sync"
)

// Extractor recovers bar chart data from OCR words and page pixels
type Extractor struct {
	opts  Options
	trace TraceFunc
}

// NewExtractor creates an extractor. A nil trace discards events.
func NewExtractor(opts Options, trace TraceFunc) *Extractor {
	if trace == nil {
		trace = nopTrace
	}
	return &Extractor{
		opts:  opts,
		trace: trace,
	}
}

// Extract returns the charts that were measured successfully, in discovery order
func (e *Extractor) Extract(words []Word, raster Raster) []UsageChartData {
	return Charts(e.Analyze(words, raster))
}

// Analyze returns one result per candidate, in discovery order.
// The raster must be fully decoded before the call.
func (e *Extractor) Analyze(words []Word, raster Raster) []CandidateResult {
	e.trace(LevelDebug, "classifying words", classificationSummary(words))

	candidates := FindCandidates(words, e.opts, e.trace)
	if len(candidates) == 0 {
		e.trace(LevelInfo, "no chart candidates on page", map[string]interface{}{
			"words": len(words),
		})
		return []CandidateResult{}
	}

	results := make([]CandidateResult, len(candidates))

	if e.opts.Concurrency > 1 && len(candidates) > 1 {
		sem := make(chan struct{}, e.opts.Concurrency)
		var wg sync.WaitGroup
		for i := range candidates {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()
				results[i] = e.processCandidate(candidates[i], raster)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range candidates {
			results[i] = e.processCandidate(candidates[i], raster)
		}
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	e.trace(LevelInfo, "page analyzed", map[string]interface{}{
		"candidates": len(results),
		"charts":     len(results) - failed,
		"failed":     failed,
	})

	return results
}

func (e *Extractor) processCandidate(c Candidate, raster Raster) CandidateResult {
	result := CandidateResult{Candidate: c}

	cal, err := Calibrate(c.YAxis)
	if err != nil {
		e.trace(LevelError, "calibration failed", map[string]interface{}{
			"candidate": c.ID,
			"error":     err.Error(),
		})
		result.Err = err
		return result
	}
	result.Calibration = cal

	e.trace(LevelDebug, "axis calibrated", map[string]interface{}{
		"candidate":       c.ID,
		"value_per_pixel": cal.ValuePerPixel,
		"zero_line_y":     cal.ZeroLineY,
		"value_min":       cal.ValueMin,
		"value_max":       cal.ValueMax,
	})

	data, err := Scan(raster, c, cal, e.opts)
	if err != nil {
		e.trace(LevelError, "bar scan failed", map[string]interface{}{
			"candidate": c.ID,
			"error":     err.Error(),
		})
		result.Err = err
		return result
	}

	chart := Assemble(c, data)
	result.Chart = &chart

	e.trace(LevelInfo, "chart extracted", map[string]interface{}{
		"candidate": c.ID,
		"title":     chart.Title,
		"unit":      chart.Unit,
		"months":    len(chart.Data),
	})
	return result
}

func classificationSummary(words []Word) map[string]interface{} {
	var months, numbers, years, units int
	for _, w := range words {
		if IsMonth(w.Text) {
			months++
		}
		if IsNumeric(w.Text) {
			numbers++
		}
		if IsYear(w.Text) {
			years++
		}
		if IsUnit(w.Text) {
			units++
		}
	}
	return map[string]interface{}{
		"words":   len(words),
		"months":  months,
		"numbers": numbers,
		"years":   years,
		"units":   units,
	}
}
