/**
 * Chart Processor for the Bill Chart Worker
 *
 * Turns one uploaded bill page into usage chart records:
 * - load the page (inline buffer or URL download)
 * - decode and orient the image
 * - word-level OCR
 * - geometric bar chart extraction
 * - persistence of charts and usage profiles
 */

package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/adverant/nexus/billchart-worker/internal/chart"
	apperrors "github.com/adverant/nexus/billchart-worker/internal/errors"
	"github.com/adverant/nexus/billchart-worker/internal/logging"
	"github.com/adverant/nexus/billchart-worker/internal/storage"
)

// DocumentProcessorInterface defines the interface for document processing
type DocumentProcessorInterface interface {
	ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
	UpdateJobStatus(ctx context.Context, jobID string, status string, progress int, metadata map[string]interface{}) error
}

// ResultStore persists job state and extracted charts
type ResultStore interface {
	UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error
	StoreCharts(ctx context.Context, input *storage.ChartSetInput) (*storage.ChartSetOutput, error)
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	MaxFileSize  int64
	Recognizer   WordRecognizer
	Store        ResultStore // nil disables persistence
	ChartOptions chart.Options
	Logger       *logging.Logger
}

// ProcessRequest represents a chart extraction request
type ProcessRequest struct {
	JobID      string
	UserID     string
	Filename   string
	MimeType   string
	FileSize   int64
	FileURL    string
	FileBuffer []byte
	Metadata   map[string]interface{}
}

// ProcessResult represents the processing result
type ProcessResult struct {
	JobID            string                 `json:"jobId"`
	Charts           []chart.UsageChartData `json:"charts"`
	Regions          []ChartRegion          `json:"regions"`
	ChartIDs         []string               `json:"chartIds,omitempty"`
	CandidatesFound  int                    `json:"candidatesFound"`
	CandidatesFailed int                    `json:"candidatesFailed"`
	WordCount        int                    `json:"wordCount"`
	OCREngine        string                 `json:"ocrEngine"`
	OCRConfidence    float64                `json:"ocrConfidence"`
	ProcessingTimeMs int64                  `json:"processingTimeMs"`
}

// ChartProcessor handles chart extraction jobs
type ChartProcessor struct {
	config     *ProcessorConfig
	recognizer WordRecognizer
	store      ResultStore
	analyzer   *ChartAnalyzer
	httpClient *http.Client
	logger     *logging.Logger
}

// NewChartProcessor creates a new chart processor
func NewChartProcessor(cfg *ProcessorConfig) (*ChartProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if cfg.Recognizer == nil {
		return nil, fmt.Errorf("word recognizer is required")
	}

	if err := cfg.ChartOptions.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chart options: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("processor")
	}

	if cfg.Store == nil {
		logger.Warn("Result store not configured, charts will not be persisted")
	}

	return &ChartProcessor{
		config:     cfg,
		recognizer: cfg.Recognizer,
		store:      cfg.Store,
		analyzer:   NewChartAnalyzer(cfg.ChartOptions, logger.With("stage", "chart")),
		httpClient: &http.Client{Timeout: downloadTimeout},
		logger:     logger,
	}, nil
}

// ProcessDocument runs a page through the complete pipeline
func (p *ChartProcessor) ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	startTime := time.Now()
	log := p.logger.With("job", req.JobID)
	log.Info("Starting chart extraction pipeline", "filename", req.Filename)

	// Step 1: Download/load file
	log.Info("Step 1: Loading file", "size", req.FileSize)
	fileData, err := p.loadFile(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to load file: %w", err)
	}

	// Step 2: Detect actual MIME type from magic bytes
	detectedMime := detectMimeTypeFromMagicBytes(fileData)
	if detectedMime != req.MimeType {
		log.Debug("MIME type corrected by magic bytes", "declared", req.MimeType, "detected", detectedMime)
	}
	if !isSupportedImage(detectedMime) {
		mime := detectedMime
		if mime == "" {
			mime = req.MimeType
		}
		return nil, apperrors.NewUnsupportedFormatError(req.JobID, mime)
	}
	req.MimeType = detectedMime

	// Step 3: Decode the page
	log.Info("Step 3: Decoding image", "mime", req.MimeType, "bytes", len(fileData))
	page, err := DecodeImage(fileData)
	if err != nil {
		return nil, apperrors.NewImageDecodeFailedError(req.JobID, err)
	}
	log.Info("Image decoded", "format", page.Format, "width", page.Width(), "height", page.Height())

	// Step 4: Word-level OCR
	log.Info("Step 4: Running OCR", "engine", p.recognizer.Name())
	ocrResult, err := p.recognizer.Recognize(ctx, page.OCRImage)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.NewOCRFailedError(req.JobID, p.recognizer.Name(), err)
	}
	words := ocrResult.Words()
	log.Info("OCR complete", "words", len(words), "confidence", ocrResult.Confidence, "duration", ocrResult.Duration)

	// Step 5: Chart extraction
	log.Info("Step 5: Extracting bar charts")
	analysis, err := p.analyzer.Analyze(ctx, ocrResult, page)
	if err != nil {
		return nil, fmt.Errorf("chart analysis failed: %w", err)
	}

	result := &ProcessResult{
		JobID:            req.JobID,
		Charts:           analysis.Charts,
		Regions:          analysis.Regions,
		CandidatesFound:  len(analysis.Regions),
		CandidatesFailed: analysis.Failed,
		WordCount:        len(words),
		OCREngine:        ocrResult.Engine,
		OCRConfidence:    ocrResult.Confidence,
	}

	// Step 6: Persist charts with their usage profiles
	if p.store != nil && len(analysis.Charts) > 0 {
		log.Info("Step 6: Storing charts", "charts", len(analysis.Charts))
		stored, err := p.store.StoreCharts(ctx, p.chartSet(req, analysis))
		if err != nil {
			return nil, apperrors.NewStorageFailedError(req.JobID, err)
		}
		result.ChartIDs = stored.ChartIDs
		log.Info("Charts stored", "chartIds", stored.ChartIDs, "profiles", stored.ProfilesIndexed)
	}

	result.ProcessingTimeMs = time.Since(startTime).Milliseconds()

	log.Info("Processing pipeline complete",
		"charts", len(result.Charts),
		"failed", result.CandidatesFailed,
		"processingTimeMs", result.ProcessingTimeMs)

	return result, nil
}

func (p *ChartProcessor) chartSet(req *ProcessRequest, analysis *ChartAnalysis) *storage.ChartSetInput {
	input := &storage.ChartSetInput{
		JobID:    req.JobID,
		UserID:   req.UserID,
		Filename: req.Filename,
		Charts:   make([]storage.ChartRecord, 0, len(analysis.Charts)),
	}

	for _, region := range analysis.Regions {
		if region.ChartIndex < 0 {
			continue
		}
		data := analysis.Charts[region.ChartIndex]
		record := storage.ChartRecord{
			CandidateID: region.ID,
			Chart:       data,
			Bounds: map[string]int{
				"x":      region.BoundingBox.X,
				"y":      region.BoundingBox.Y,
				"width":  region.BoundingBox.Width,
				"height": region.BoundingBox.Height,
			},
		}
		if profile, ok := UsageProfile(data); ok {
			record.Profile = profile
		}
		input.Charts = append(input.Charts, record)
	}

	return input
}

// UpdateJobStatus updates job status in database
func (p *ChartProcessor) UpdateJobStatus(ctx context.Context, jobID string, status string, progress int, metadata map[string]interface{}) error {
	if p.store == nil {
		return nil
	}

	update := &storage.JobUpdate{
		JobID:    jobID,
		Status:   status,
		Progress: progress,
		Metadata: metadata,
	}

	// Extract specific fields from metadata if present
	if metadata != nil {
		if confidence, ok := metadata["confidence"].(float64); ok {
			update.Confidence = confidence
		}
		if processingTime, ok := metadata["processingTime"].(int64); ok {
			update.ProcessingTimeMs = processingTime
		}
		if charts, ok := metadata["chartsExtracted"].(int); ok {
			update.ChartsExtracted = charts
		}
		if failed, ok := metadata["candidatesFailed"].(int); ok {
			update.CandidatesFailed = failed
		}
		if errorMsg, ok := metadata["error"].(string); ok {
			update.ErrorCode = "PROCESSING_ERROR"
			if code, ok := metadata["errorCode"].(string); ok && code != "" {
				update.ErrorCode = code
			}
			update.ErrorMessage = errorMsg
		}
	}

	return p.store.UpdateJobStatus(ctx, update)
}

// loadFile loads file from URL or buffer
func (p *ChartProcessor) loadFile(ctx context.Context, req *ProcessRequest) ([]byte, error) {
	if len(req.FileBuffer) > 0 {
		if p.config.MaxFileSize > 0 && int64(len(req.FileBuffer)) > p.config.MaxFileSize {
			return nil, fmt.Errorf("file size exceeds maximum: %d > %d bytes", len(req.FileBuffer), p.config.MaxFileSize)
		}
		p.logger.Debug("Using file buffer", "job", req.JobID, "bytes", len(req.FileBuffer))
		return req.FileBuffer, nil
	}

	if req.FileURL != "" {
		p.logger.Info("Downloading file", "job", req.JobID, "url", req.FileURL)
		fileData, err := p.downloadFileFromURL(ctx, req.JobID, req.FileURL)
		if err != nil {
			return nil, fmt.Errorf("failed to download file: %w", err)
		}
		return fileData, nil
	}

	return nil, fmt.Errorf("no file source provided (buffer or URL)")
}

const (
	downloadRetries  = 5
	initialBackoffMs = 1000
	maxBackoffMs     = 32000
	downloadTimeout  = 5 * time.Minute
)

// downloadFileFromURL downloads a page image with exponential backoff
func (p *ChartProcessor) downloadFileFromURL(ctx context.Context, jobID string, fileURL string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= downloadRetries; attempt++ {
		data, err := p.fetch(ctx, fileURL)
		if err == nil {
			p.logger.Info("Download successful", "job", jobID, "attempt", attempt, "bytes", len(data))
			return data, nil
		}

		lastErr = err
		p.logger.Warn("Download attempt failed", "job", jobID, "attempt", attempt, "error", err)

		if attempt == downloadRetries {
			break
		}

		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("failed to download file after %d attempts: %w", downloadRetries, lastErr)
}

func (p *ChartProcessor) fetch(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	limit := p.config.MaxFileSize
	if limit > 0 && resp.ContentLength > limit {
		return nil, fmt.Errorf("file size exceeds maximum: %d > %d bytes", resp.ContentLength, limit)
	}
	if limit <= 0 {
		limit = 1 << 30
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file size exceeds maximum of %d bytes", limit)
	}
	return data, nil
}

func backoff(attempt int) time.Duration {
	ms := initialBackoffMs * int(math.Pow(2, float64(attempt-1)))
	if ms > maxBackoffMs {
		ms = maxBackoffMs
	}
	return time.Duration(ms) * time.Millisecond
}

func isSupportedImage(mimeType string) bool {
	switch mimeType {
	case "image/png", "image/jpeg", "image/gif", "image/webp", "image/tiff", "image/bmp":
		return true
	}
	return false
}

// detectMimeTypeFromMagicBytes sniffs the container format; "" when unknown
func detectMimeTypeFromMagicBytes(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// PDF: %PDF-
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return "application/pdf"
	}

	// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png"
	}

	// JPEG: 0xFF 0xD8 0xFF
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return "image/jpeg"
	}

	if bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")) {
		return "image/gif"
	}

	// WebP: 'R' 'I' 'F' 'F' .... 'W' 'E' 'B' 'P'
	if len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}

	// TIFF, little-endian or big-endian
	if bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}) {
		return "image/tiff"
	}

	if bytes.HasPrefix(data, []byte("BM")) {
		return "image/bmp"
	}

	if bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x03, 0x04}) {
		return "application/zip"
	}

	return ""
}
