/**
 * Chart Analyzer for the Bill Chart Worker
 *
 * Runs the geometric bar chart pipeline over one OCR'd page and reports:
 * - one region per chart candidate with its bounding box and outcome
 * - the usage charts that were measured successfully
 *
 * A failed candidate never fails the page.
 */

package processor

import (
	"context"
	"math"

	"github.com/adverant/nexus/billchart-worker/internal/chart"
	apperrors "github.com/adverant/nexus/billchart-worker/internal/errors"
	"github.com/adverant/nexus/billchart-worker/internal/logging"
)

// Region outcomes
const (
	RegionExtracted = "extracted"
	RegionFailed    = "failed"
)

// ChartAnalyzer performs bar chart analysis on decoded pages
type ChartAnalyzer struct {
	opts      chart.Options
	extractor *chart.Extractor
	logger    *logging.Logger
}

// ChartAnalysis represents the result of chart analysis on one page
type ChartAnalysis struct {
	Regions []ChartRegion
	Charts  []chart.UsageChartData
	Failed  int
}

// ChartRegion represents one chart candidate on the page
type ChartRegion struct {
	ID          int                `json:"id"`
	BoundingBox BoundingBox        `json:"boundingBox"`
	Status      string             `json:"status"`
	ErrorCode   string             `json:"errorCode,omitempty"`
	Error       string             `json:"error,omitempty"`
	Calibration *chart.Calibration `json:"calibration,omitempty"`
	ChartIndex  int                `json:"chartIndex"` // index into Charts, -1 when failed
}

// NewChartAnalyzer creates a new chart analyzer
func NewChartAnalyzer(opts chart.Options, logger *logging.Logger) *ChartAnalyzer {
	if logger == nil {
		logger = logging.NewLogger("chart")
	}
	return &ChartAnalyzer{
		opts:      opts,
		extractor: chart.NewExtractor(opts, logger.Trace),
		logger:    logger,
	}
}

// Analyze extracts the bar charts of a page
func (a *ChartAnalyzer) Analyze(ctx context.Context, ocrResult *OCRResult, page *LoadedImage) (*ChartAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	words := ocrResult.Words()
	var raster chart.Raster
	if page != nil && page.Image != nil {
		raster = chart.NewImageRaster(page.Image, a.opts.DarkThreshold)
	}

	results := a.extractor.Analyze(words, raster)

	analysis := &ChartAnalysis{
		Regions: make([]ChartRegion, 0, len(results)),
		Charts:  make([]chart.UsageChartData, 0, len(results)),
	}

	for _, r := range results {
		region := ChartRegion{
			ID:          r.Candidate.ID,
			BoundingBox: boxFromRect(r.Candidate.Bounds),
			ChartIndex:  -1,
		}

		if r.Err != nil {
			region.Status = RegionFailed
			region.Error = r.Err.Error()
			region.ErrorCode = errorCode(r.Err)
			analysis.Failed++
		} else {
			cal := r.Calibration
			region.Status = RegionExtracted
			region.Calibration = &cal
			region.ChartIndex = len(analysis.Charts)
			analysis.Charts = append(analysis.Charts, *r.Chart)
		}

		analysis.Regions = append(analysis.Regions, region)
	}

	a.logger.Info("Chart analysis complete",
		"words", len(words),
		"candidates", len(analysis.Regions),
		"charts", len(analysis.Charts),
		"failed", analysis.Failed)

	return analysis, nil
}

func errorCode(err error) string {
	for _, code := range []apperrors.ErrorCode{apperrors.ErrorInsufficientAxisData, apperrors.ErrorScanFailed} {
		if apperrors.HasCode(err, code) {
			return string(code)
		}
	}
	return ""
}

func boxFromRect(r chart.Rect) BoundingBox {
	x0 := int(math.Floor(r.X0))
	y0 := int(math.Floor(r.Y0))
	return BoundingBox{
		X:      x0,
		Y:      y0,
		Width:  int(math.Ceil(r.X1)) - x0,
		Height: int(math.Ceil(r.Y1)) - y0,
	}
}
