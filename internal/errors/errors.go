package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the bill chart worker
 *
 * Chart-level codes (INSUFFICIENT_AXIS_DATA, SCAN_FAILED) fail a single chart
 * candidate. Job-level codes fail the whole document.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Chart errors
	ErrorInsufficientAxisData ErrorCode = "INSUFFICIENT_AXIS_DATA"
	ErrorScanFailed           ErrorCode = "SCAN_FAILED"

	// Processing errors
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorOCRFailed         ErrorCode = "OCR_FAILED"
	ErrorImageDecodeFailed ErrorCode = "IMAGE_DECODE_FAILED"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// Storage errors
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// HasCode reports whether err or any error it wraps is a ProcessingError with the given code
func HasCode(err error, code ErrorCode) bool {
	var pe *ProcessingError
	for err != nil {
		if !stderrors.As(err, &pe) {
			return false
		}
		if pe.Code == code {
			return true
		}
		err = pe.Cause
	}
	return false
}

// Factory functions for common errors

func NewInsufficientAxisDataError(labels int, distinct int, reason string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInsufficientAxisData,
		Message:   fmt.Sprintf("Insufficient y-axis data: %d labels, %d distinct values", labels, distinct),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"labels":   labels,
			"distinct": distinct,
			"reason":   reason,
		},
	}
}

func NewScanFailedError(candidateID int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorScanFailed,
		Message:   fmt.Sprintf("Bar scan failed for chart candidate %d", candidateID),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"candidate_id": candidateID,
		},
		Cause: cause,
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewOCRFailedError(jobID string, engine string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR failed with engine: %s", engine),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"ocr_engine": engine,
		},
		Cause: cause,
	}
}

func NewImageDecodeFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorImageDecodeFailed,
		Message:   "Failed to decode document image",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewUnsupportedFormatError(jobID string, mimeType string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Unsupported file format: %s", mimeType),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"mime_type": mimeType,
		},
	}
}

func NewStorageFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store extracted charts",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
