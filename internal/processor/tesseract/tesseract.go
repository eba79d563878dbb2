/**
 * Tesseract OCR - word-level recognition for chart extraction
 *
 * Returns every recognized word with its bounding box. Sparse text page
 * segmentation is used by default because chart labels are scattered tokens
 * rather than paragraphs.
 */

package tesseract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/adverant/nexus/billchart-worker/internal/processor"
)

// TesseractOCR handles word-level OCR using Tesseract
type TesseractOCR struct {
	languages     []string
	pageSegMode   gosseract.PageSegMode
	clientFactory func() *gosseract.Client
}

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	Languages   []string
	PageSegMode gosseract.PageSegMode // zero (OSD only) selects PSM_SPARSE_TEXT
}

// NewTesseractOCR creates a new Tesseract OCR instance
func NewTesseractOCR(cfg *TesseractConfig) (*TesseractOCR, error) {
	if cfg == nil {
		cfg = &TesseractConfig{}
	}

	languages := cfg.Languages
	if len(languages) == 0 {
		languages = []string{"eng"}
	}

	mode := cfg.PageSegMode
	if mode == 0 {
		mode = gosseract.PSM_SPARSE_TEXT
	}

	return &TesseractOCR{
		languages:     languages,
		pageSegMode:   mode,
		clientFactory: gosseract.NewClient,
	}, nil
}

func (t *TesseractOCR) Name() string { return "tesseract" }

// Recognize performs OCR on a full page and returns word boxes
func (t *TesseractOCR) Recognize(ctx context.Context, imageData []byte) (*processor.OCRResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	startTime := time.Now()

	client := t.clientFactory()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("failed to set languages %s: %w", strings.Join(t.languages, "+"), err)
	}

	if err := client.SetPageSegMode(t.pageSegMode); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	if err := client.SetImageFromBytes(imageData); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	words := make([]processor.OCRWord, 0, len(boxes))
	texts := make([]string, 0, len(boxes))
	var sum float64
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		conf := b.Confidence / 100.0
		sum += conf
		texts = append(texts, text)
		words = append(words, processor.OCRWord{
			Text:       text,
			Confidence: conf,
			BoundingBox: processor.BoundingBox{
				X:      b.Box.Min.X,
				Y:      b.Box.Min.Y,
				Width:  b.Box.Dx(),
				Height: b.Box.Dy(),
			},
		})
	}

	confidence := 0.0
	if len(words) > 0 {
		confidence = sum / float64(len(words))
	}

	text := strings.Join(texts, " ")
	return &processor.OCRResult{
		Text:       text,
		Confidence: confidence,
		Engine:     t.Name(),
		Duration:   time.Since(startTime),
		Pages: []processor.OCRPage{
			{
				PageNumber: 1,
				Text:       text,
				Confidence: confidence,
				Words:      words,
			},
		},
	}, nil
}
