/**
 * OCR Types - Shared data structures for OCR operations
 *
 * Produced by the Tesseract adapter (or a words file) and consumed by the
 * chart analyzer, which converts them into chart words.
 */

package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/adverant/nexus/billchart-worker/internal/chart"
)

// WordRecognizer produces word-level OCR for a full page image
type WordRecognizer interface {
	Name() string
	Recognize(ctx context.Context, imageData []byte) (*OCRResult, error)
}

// OCRResult represents the result of OCR processing
type OCRResult struct {
	Text       string
	Confidence float64
	Pages      []OCRPage
	Engine     string // Which OCR engine produced the words
	Duration   time.Duration
}

// OCRPage represents a single page of OCR results
type OCRPage struct {
	PageNumber int
	Text       string
	Confidence float64
	Words      []OCRWord
}

// OCRWord represents a single word with bounding box
type OCRWord struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

// BoundingBox represents coordinates of a region
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the box to the corner form used by the chart pipeline
func (b BoundingBox) Rect() chart.Rect {
	return chart.Rect{
		X0: float64(b.X),
		Y0: float64(b.Y),
		X1: float64(b.X + b.Width),
		Y1: float64(b.Y + b.Height),
	}
}

// Words flattens every page into chart words, in page order
func (r *OCRResult) Words() []chart.Word {
	total := 0
	for _, p := range r.Pages {
		total += len(p.Words)
	}

	words := make([]chart.Word, 0, total)
	for _, p := range r.Pages {
		for _, w := range p.Words {
			words = append(words, chart.Word{
				Text:       w.Text,
				BBox:       w.BoundingBox.Rect(),
				Confidence: w.Confidence,
			})
		}
	}
	return words
}

// StaticRecognizer replays words recorded by an external OCR engine.
// It ignores the image it is given.
type StaticRecognizer struct {
	words []OCRWord
}

// NewStaticRecognizer creates a recognizer that always returns the given words
func NewStaticRecognizer(words []OCRWord) *StaticRecognizer {
	return &StaticRecognizer{words: words}
}

// LoadWordsFile reads a JSON array of OCRWord values
func LoadWordsFile(path string) (*StaticRecognizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read words file: %w", err)
	}

	var words []OCRWord
	if err := json.Unmarshal(data, &words); err != nil {
		return nil, fmt.Errorf("failed to parse words file %s: %w", path, err)
	}

	return NewStaticRecognizer(words), nil
}

func (s *StaticRecognizer) Name() string { return "static" }

// Recognize returns the recorded words as a single page
func (s *StaticRecognizer) Recognize(ctx context.Context, imageData []byte) (*OCRResult, error) {
	confidence := 0.0
	for _, w := range s.words {
		confidence += w.Confidence
	}
	if len(s.words) > 0 {
		confidence /= float64(len(s.words))
	}

	return &OCRResult{
		Confidence: confidence,
		Engine:     s.Name(),
		Pages: []OCRPage{
			{
				PageNumber: 1,
				Confidence: confidence,
				Words:      append([]OCRWord(nil), s.words...),
			},
		},
	}, nil
}
