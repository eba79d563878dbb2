package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/adverant/nexus/billchart-worker/internal/chart"
	"github.com/adverant/nexus/billchart-worker/internal/storage"
)

// referenceWords is the OCR output of the page drawn by referencePage
func referenceWords() []OCRWord {
	w := func(text string, x, y, width, height int) OCRWord {
		return OCRWord{Text: text, Confidence: 0.9, BoundingBox: BoundingBox{X: x, Y: y, Width: width, Height: height}}
	}
	return []OCRWord{
		w("Electricity", 120, 30, 80, 16),
		w("Usage", 205, 30, 45, 16),
		w("2023", 185, 52, 30, 16),
		w("500", 40, 92, 20, 16),
		w("kWh", 0, 190, 30, 16),
		w("0", 40, 292, 20, 16),
		w("Jan", 100, 305, 40, 20),
		w("Feb", 160, 305, 40, 20),
		w("Mar", 220, 305, 40, 20),
		w("Apr", 280, 305, 40, 20),
	}
}

// referencePage encodes a 400x400 PNG with the bars of the reference chart:
// Jan 250, Feb 500, Mar none, Apr 100 on a 0..500 axis (2.5 per pixel, zero at row 300)
func referencePage(t *testing.T) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 400, 400))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	fill := func(r image.Rectangle) {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetNRGBA(x, y, color.NRGBA{R: 40, G: 90, B: 170, A: 255})
			}
		}
	}
	fill(image.Rect(110, 200, 131, 301))
	fill(image.Rect(170, 100, 191, 301))
	fill(image.Rect(290, 260, 311, 301))

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test page: %v", err)
	}
	return buf.Bytes()
}

func referenceChart() chart.UsageChartData {
	return chart.UsageChartData{
		Title: "Electricity Usage",
		Unit:  "kWh",
		Data: []chart.MonthUsage{
			{Month: "Jan", Usage: []chart.SeriesValue{{Year: "2023", Value: 250}}},
			{Month: "Feb", Usage: []chart.SeriesValue{{Year: "2023", Value: 500}}},
			{Month: "Mar", Usage: []chart.SeriesValue{{Year: "2023", Value: 0}}},
			{Month: "Apr", Usage: []chart.SeriesValue{{Year: "2023", Value: 100}}},
		},
	}
}

// fakeStore records what the processor persists
type fakeStore struct {
	mu       sync.Mutex
	updates  []*storage.JobUpdate
	sets     []*storage.ChartSetInput
	storeErr error
}

func (f *fakeStore) UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	return nil
}

func (f *fakeStore) StoreCharts(ctx context.Context, input *storage.ChartSetInput) (*storage.ChartSetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	f.sets = append(f.sets, input)

	ids := make([]string, len(input.Charts))
	profiles := 0
	for i, c := range input.Charts {
		ids[i] = fmt.Sprintf("chart-%d", i+1)
		if c.Profile != nil {
			profiles++
		}
	}
	return &storage.ChartSetOutput{ChartIDs: ids, ProfilesIndexed: profiles}, nil
}

// failingRecognizer always fails OCR
type failingRecognizer struct{}

func (failingRecognizer) Name() string { return "failing" }

func (failingRecognizer) Recognize(ctx context.Context, imageData []byte) (*OCRResult, error) {
	return nil, fmt.Errorf("engine crashed")
}

func newTestProcessor(t *testing.T, recognizer WordRecognizer, store ResultStore) *ChartProcessor {
	t.Helper()

	cfg := &ProcessorConfig{
		MaxFileSize:  10 * 1024 * 1024,
		Recognizer:   recognizer,
		Store:        store,
		ChartOptions: chart.DefaultOptions(),
	}

	p, err := NewChartProcessor(cfg)
	if err != nil {
		t.Fatalf("NewChartProcessor failed: %v", err)
	}
	return p
}
