package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/billchart-worker/internal/config"
	"github.com/adverant/nexus/billchart-worker/internal/errors"
	"github.com/adverant/nexus/billchart-worker/internal/processor"
)

func TestIsPermanent(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "Unsupported format", err: errors.NewUnsupportedFormatError("job-1", "application/pdf"), expected: true},
		{name: "Decode failure", err: errors.NewImageDecodeFailedError("job-1", fmt.Errorf("bad")), expected: true},
		{name: "Wrapped decode failure", err: fmt.Errorf("job: %w", errors.NewImageDecodeFailedError("job-1", nil)), expected: true},
		{name: "OCR failure", err: errors.NewOCRFailedError("job-1", "tesseract", nil), expected: false},
		{name: "Storage failure", err: errors.NewStorageFailedError("job-1", nil), expected: false},
		{name: "Timeout", err: errors.NewProcessingTimeoutError("job-1", time.Minute, context.DeadlineExceeded), expected: false},
		{name: "Download failure", err: fmt.Errorf("failed to load file: HTTP 503"), expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsPermanent(tc.err); got != tc.expected {
				t.Errorf("IsPermanent = %v, want %v", got, tc.expected)
			}
		})
	}
}

func TestFailureDetails(t *testing.T) {
	details := failureDetails(errors.NewUnsupportedFormatError("job-1", "application/pdf"), 1)

	if details["errorCode"] != "UNSUPPORTED_FORMAT" || details["error_code"] != "UNSUPPORTED_FORMAT" {
		t.Errorf("Missing error code: %v", details)
	}
	if details["mime_type"] != "application/pdf" || details["attempts"] != 1 {
		t.Errorf("Missing details: %v", details)
	}
	if details["error"] != "UNSUPPORTED_FORMAT: Unsupported file format: application/pdf" {
		t.Errorf("Unexpected error text: %v", details["error"])
	}

	plain := failureDetails(fmt.Errorf("HTTP 503"), 3)
	if _, ok := plain["errorCode"]; ok {
		t.Errorf("Plain errors carry no code, got %v", plain)
	}
	if plain["error"] != "HTTP 503" || plain["attempts"] != 3 {
		t.Errorf("Unexpected details: %v", plain)
	}
}

func TestCompletionMetadata(t *testing.T) {
	m := completionMetadata(&processor.ProcessResult{
		OCRConfidence:    0.8,
		ProcessingTimeMs: 1500,
		CandidatesFound:  3,
		CandidatesFailed: 1,
		ChartIDs:         []string{"a", "b"},
		OCREngine:        "tesseract",
	})

	if m["confidence"] != 0.8 || m["processingTime"] != int64(1500) {
		t.Errorf("Unexpected metadata: %v", m)
	}
	if m["chartsExtracted"] != 0 || m["candidatesFound"] != 3 || m["candidatesFailed"] != 1 {
		t.Errorf("Unexpected counts: %v", m)
	}
}

func TestQueueHelpers(t *testing.T) {
	if got := queueKey("billchart:jobs", "data"); got != "billchart:jobs:data" {
		t.Errorf("Unexpected key %q", got)
	}

	if got := processingTimeout(0); got != 2*time.Minute {
		t.Errorf("Expected the 2 minute default, got %v", got)
	}
	if got := processingTimeout(1500); got != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s, got %v", got)
	}
}

func TestNewRedisConsumer_Validation(t *testing.T) {
	proc := &fakeProcessor{}

	testCases := []struct {
		name string
		cfg  *RedisConsumerConfig
	}{
		{name: "Missing URL", cfg: &RedisConsumerConfig{Processor: proc}},
		{name: "Missing processor", cfg: &RedisConsumerConfig{RedisURL: "redis://localhost:6379"}},
		{name: "Malformed URL", cfg: &RedisConsumerConfig{RedisURL: "http://localhost", Processor: proc}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRedisConsumer(tc.cfg); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestNewProducer(t *testing.T) {
	testCases := []struct {
		name    string
		backend string
		wantErr bool
	}{
		{name: "Default backend", backend: "", wantErr: false},
		{name: "Redis lists", backend: config.QueueBackendRedis, wantErr: false},
		{name: "Asynq", backend: config.QueueBackendAsynq, wantErr: false},
		{name: "Unknown", backend: "kafka", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewProducer(tc.backend, "redis://localhost:6379/0", "", 3)
			if tc.wantErr {
				if err == nil {
					t.Error("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewProducer failed: %v", err)
			}
			p.Close()
		})
	}

	if _, err := NewProducer(config.QueueBackendRedis, "", "", 3); err == nil {
		t.Error("Expected an error without a Redis URL")
	}
}

func TestEnsureJobID(t *testing.T) {
	keep := &JobPayload{JobID: "job-1"}
	if got := ensureJobID(keep); got != "job-1" {
		t.Errorf("Existing job ID replaced with %q", got)
	}

	fresh := &JobPayload{}
	id := ensureJobID(fresh)
	if len(id) != 36 || fresh.JobID != id {
		t.Errorf("Expected a UUID job ID on the payload, got %q", id)
	}
	if other := ensureJobID(&JobPayload{}); other == id {
		t.Error("Job IDs must be unique")
	}
}

func TestTaskStatus(t *testing.T) {
	testCases := []struct {
		state    asynq.TaskState
		expected string
	}{
		{asynq.TaskStatePending, StatusQueued},
		{asynq.TaskStateScheduled, StatusQueued},
		{asynq.TaskStateRetry, StatusQueued},
		{asynq.TaskStateActive, StatusProcessing},
		{asynq.TaskStateCompleted, StatusCompleted},
		{asynq.TaskStateArchived, StatusFailed},
	}

	for _, tc := range testCases {
		t.Run(tc.state.String(), func(t *testing.T) {
			if got := taskStatus(tc.state); got != tc.expected {
				t.Errorf("taskStatus(%v) = %q, want %q", tc.state, got, tc.expected)
			}
		})
	}
}
