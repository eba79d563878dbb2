package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"
)

func TestHasCode(t *testing.T) {
	scan := NewScanFailedError(2, fmt.Errorf("pixel buffer not ready"))

	testCases := []struct {
		name     string
		err      error
		code     ErrorCode
		expected bool
	}{
		{name: "Direct match", err: scan, code: ErrorScanFailed, expected: true},
		{name: "Different code", err: scan, code: ErrorOCRFailed, expected: false},
		{name: "Wrapped with fmt", err: fmt.Errorf("job failed: %w", scan), code: ErrorScanFailed, expected: true},
		{name: "Cause chain", err: NewProcessingTimeoutError("job-1", time.Second, NewOCRFailedError("job-1", "tesseract", nil)), code: ErrorOCRFailed, expected: true},
		{name: "Plain error", err: stderrors.New("boom"), code: ErrorScanFailed, expected: false},
		{name: "Nil", err: nil, code: ErrorScanFailed, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasCode(tc.err, tc.code); got != tc.expected {
				t.Errorf("HasCode = %v, want %v", got, tc.expected)
			}
		})
	}
}

func TestProcessingError_Error(t *testing.T) {
	err := NewInsufficientAxisDataError(1, 1, "distinct_values")
	want := "INSUFFICIENT_AXIS_DATA: Insufficient y-axis data: 1 labels, 1 distinct values"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}

	cause := stderrors.New("engine crashed")
	wrapped := NewOCRFailedError("job-1", "tesseract", cause)
	if !stderrors.Is(wrapped, cause) {
		t.Error("Expected the cause to be unwrappable")
	}
}

func TestProcessingError_ToMap(t *testing.T) {
	err := NewUnsupportedFormatError("job-1", "application/pdf")
	m := err.ToMap()

	if m["error_code"] != "UNSUPPORTED_FORMAT" {
		t.Errorf("Unexpected error_code %v", m["error_code"])
	}
	if m["mime_type"] != "application/pdf" {
		t.Errorf("Details should be flattened, got %v", m)
	}
	if _, ok := m["cause"]; ok {
		t.Error("No cause expected")
	}

	withCause := NewStorageFailedError("job-1", stderrors.New("connection refused")).ToMap()
	if withCause["cause"] != "connection refused" {
		t.Errorf("Expected cause text, got %v", withCause["cause"])
	}
}
