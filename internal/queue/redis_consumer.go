/**
 * Direct Redis Queue Consumer for the Bill Chart Worker
 *
 * Uses plain Redis LIST operations so that any producer able to LPUSH a job
 * ID and HSET its JSON can submit bills:
 * - <queue>           job IDs (LPUSH by producers, BRPOP here)
 * - <queue>:data      job JSON by ID
 * - <queue>:processing / :completed / :failed   job ID sets
 * - <queue>:results / :errors                   result and error JSON by ID
 * - <queue>:events    pub/sub channel of status changes
 */

package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/billchart-worker/internal/errors"
	"github.com/adverant/nexus/billchart-worker/internal/logging"
	"github.com/adverant/nexus/billchart-worker/internal/processor"
)

// Job statuses
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var errNoJobs = stderrors.New("no jobs available")

// RedisJobData represents a job from the Redis queue
type RedisJobData struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Payload    JobPayload `json:"payload"`
	CreatedAt  time.Time  `json:"createdAt"`
	Attempts   int        `json:"attempts"`
	MaxRetries int        `json:"maxRetries"`
}

// JobPayload contains the actual job data
type JobPayload struct {
	JobID      string                 `json:"jobId"`
	UserID     string                 `json:"userId"`
	Filename   string                 `json:"filename"`
	MimeType   string                 `json:"mimeType,omitempty"`
	FileSize   int64                  `json:"fileSize,omitempty"`
	FileURL    string                 `json:"fileUrl,omitempty"`
	FileBuffer []byte                 `json:"-"` // see MarshalJSON / UnmarshalJSON
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// MarshalJSON writes fileBuffer as a base64 string
func (p JobPayload) MarshalJSON() ([]byte, error) {
	type Alias JobPayload
	aux := struct {
		FileBuffer string `json:"fileBuffer,omitempty"`
		Alias
	}{
		Alias: Alias(p),
	}
	if len(p.FileBuffer) > 0 {
		aux.FileBuffer = base64.StdEncoding.EncodeToString(p.FileBuffer)
	}
	return json.Marshal(aux)
}

// UnmarshalJSON accepts fileBuffer either as a base64 string or as a
// Node.js Buffer object ({"type":"Buffer","data":[...]})
func (p *JobPayload) UnmarshalJSON(data []byte) error {
	type Alias JobPayload
	aux := &struct {
		FileBuffer interface{} `json:"fileBuffer,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal JobPayload: %w", err)
	}

	if aux.FileBuffer == nil {
		return nil
	}

	switch v := aux.FileBuffer.(type) {
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("failed to decode base64 fileBuffer: %w", err)
		}
		p.FileBuffer = decoded

	case map[string]interface{}:
		if bufferType, ok := v["type"].(string); !ok || bufferType != "Buffer" {
			return fmt.Errorf("invalid Buffer object format (missing or incorrect 'type' field)")
		}
		dataArray, ok := v["data"].([]interface{})
		if !ok {
			return fmt.Errorf("Buffer object missing 'data' array")
		}
		p.FileBuffer = make([]byte, len(dataArray))
		for i, val := range dataArray {
			byteVal, ok := val.(float64)
			if !ok || byteVal < 0 || byteVal > 255 {
				return fmt.Errorf("invalid byte value in Buffer data array at index %d", i)
			}
			p.FileBuffer[i] = byte(byteVal)
		}

	default:
		return fmt.Errorf("fileBuffer must be either base64 string or Buffer object, got %T", v)
	}

	return nil
}

// Request converts the payload to a processor request
func (p *JobPayload) Request() *processor.ProcessRequest {
	return &processor.ProcessRequest{
		JobID:      p.JobID,
		UserID:     p.UserID,
		Filename:   p.Filename,
		MimeType:   p.MimeType,
		FileSize:   p.FileSize,
		FileURL:    p.FileURL,
		FileBuffer: p.FileBuffer,
		Metadata:   p.Metadata,
	}
}

// RedisConsumer handles job consumption from Redis queue
type RedisConsumer struct {
	client    *redis.Client
	processor processor.DocumentProcessorInterface
	config    *RedisConsumerConfig
	logger    *logging.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	MaxRetries        int // used when a job does not carry its own
	Processor         processor.DocumentProcessorInterface
	ProcessingTimeout int64 // milliseconds
	Logger            *logging.Logger
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		cfg.QueueName = DefaultQueueName
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("redis-consumer")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	consumerCtx, cancel := context.WithCancel(context.Background())

	return &RedisConsumer{
		client:    client,
		processor: cfg.Processor,
		config:    cfg,
		logger:    cfg.Logger,
		ctx:       consumerCtx,
		cancel:    cancel,
	}, nil
}

// Start begins processing jobs from the queue
func (c *RedisConsumer) Start() error {
	c.logger.Info("Starting Redis queue consumer",
		"concurrency", c.config.Concurrency,
		"queue", c.config.QueueName)

	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}

	return nil
}

// Stop gracefully stops the consumer, waiting for in-flight jobs
func (c *RedisConsumer) Stop() error {
	c.logger.Info("Stopping queue consumer")
	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

func (c *RedisConsumer) worker(id int) {
	defer c.wg.Done()
	c.logger.Debug("Worker started", "worker", id)

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Debug("Worker stopping", "worker", id)
			return
		default:
		}

		if err := c.processNextJob(); err != nil {
			if stderrors.Is(err, errNoJobs) || c.ctx.Err() != nil {
				continue
			}
			c.logger.Error("Worker error", "worker", id, "error", err)
			select {
			case <-time.After(time.Second):
			case <-c.ctx.Done():
			}
		}
	}
}

// processNextJob fetches and processes the next job from the queue
func (c *RedisConsumer) processNextJob() error {
	result, err := c.client.BRPop(c.ctx, 5*time.Second, c.config.QueueName).Result()
	if err != nil {
		if err == redis.Nil {
			return errNoJobs
		}
		return fmt.Errorf("failed to fetch job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	queueID := result[1]

	jobData, err := c.client.HGet(c.ctx, c.key("data"), queueID).Result()
	if err != nil {
		return fmt.Errorf("failed to get job data for %s: %w", queueID, err)
	}

	var job RedisJobData
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		c.updateJobStatus(queueID, StatusFailed, map[string]interface{}{
			"error":     err.Error(),
			"errorCode": "INVALID_PAYLOAD",
		})
		return fmt.Errorf("failed to unmarshal job %s: %w", queueID, err)
	}
	if job.Payload.JobID == "" {
		job.Payload.JobID = job.ID
	}
	if job.MaxRetries <= 0 {
		job.MaxRetries = c.config.MaxRetries
	}

	jobID := job.Payload.JobID
	log := c.logger.With("job", jobID)

	// Idempotent: creates the job row if no API has yet
	if err := c.processor.UpdateJobStatus(c.ctx, jobID, StatusProcessing, 0, map[string]interface{}{
		"filename": job.Payload.Filename,
		"mimeType": job.Payload.MimeType,
		"fileSize": job.Payload.FileSize,
		"userId":   job.Payload.UserID,
	}); err != nil {
		log.Warn("Could not record processing status", "error", err)
	}
	c.updateJobStatus(jobID, StatusProcessing, nil)

	log.Info("Processing job", "filename", job.Payload.Filename, "attempt", job.Attempts+1)

	processResult, err := c.processJob(&job)
	if err == nil {
		c.updateJobStatus(jobID, StatusCompleted, processResult)
		log.Info("Job completed successfully")
		return nil
	}

	log.Error("Job failed", "error", err)

	job.Attempts++
	if job.Attempts < job.MaxRetries && !IsPermanent(err) {
		updatedData, _ := json.Marshal(job)
		c.client.HSet(c.ctx, c.key("data"), job.ID, updatedData)
		c.client.LPush(c.ctx, c.config.QueueName, job.ID)
		log.Info("Job re-queued for retry", "attempt", job.Attempts, "maxRetries", job.MaxRetries)
		return nil
	}

	c.updateJobStatus(jobID, StatusFailed, failureDetails(err, job.Attempts))
	return nil
}

// processJob runs one job under its own timeout
func (c *RedisConsumer) processJob(job *RedisJobData) (*processor.ProcessResult, error) {
	timeout := processingTimeout(c.config.ProcessingTimeout)

	ctx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()

	startTime := time.Now()
	result, err := c.processor.ProcessDocument(ctx, job.Payload.Request())
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			c.logger.Warn("Processing timed out",
				"job", job.Payload.JobID,
				"elapsed", time.Since(startTime),
				"timeout", timeout)
			return nil, errors.NewProcessingTimeoutError(job.Payload.JobID, timeout, err)
		}
		return nil, err
	}

	return result, nil
}

// updateJobStatus updates the status of a job in both Redis and PostgreSQL
func (c *RedisConsumer) updateJobStatus(jobID string, status string, result interface{}) {
	switch status {
	case StatusProcessing:
		c.client.SAdd(c.ctx, c.key("processing"), jobID)
	case StatusCompleted:
		c.client.SRem(c.ctx, c.key("processing"), jobID)
		c.client.SAdd(c.ctx, c.key("completed"), jobID)
		if result != nil {
			resultData, _ := json.Marshal(result)
			c.client.HSet(c.ctx, c.key("results"), jobID, resultData)
		}
	case StatusFailed:
		c.client.SRem(c.ctx, c.key("processing"), jobID)
		c.client.SAdd(c.ctx, c.key("failed"), jobID)
		if result != nil {
			errorData, _ := json.Marshal(result)
			c.client.HSet(c.ctx, c.key("errors"), jobID, errorData)
		}
	}

	switch status {
	case StatusCompleted:
		if processResult, ok := result.(*processor.ProcessResult); ok {
			if err := c.processor.UpdateJobStatus(c.ctx, jobID, status, 100, completionMetadata(processResult)); err != nil {
				c.logger.Error("Failed to record completed job", "job", jobID, "error", err)
			}
		}
	case StatusFailed:
		metadata, _ := result.(map[string]interface{})
		if err := c.processor.UpdateJobStatus(c.ctx, jobID, status, 100, metadata); err != nil {
			c.logger.Error("Failed to record failed job", "job", jobID, "error", err)
		}
	}

	c.publish(jobID, status)
}

// publish announces a status change on <queue>:events
func (c *RedisConsumer) publish(jobID, status string) {
	event := map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", status),
		"jobId":     jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	eventData, _ := json.Marshal(event)
	c.client.Publish(c.ctx, c.key("events"), eventData)
}

func (c *RedisConsumer) key(suffix string) string {
	return queueKey(c.config.QueueName, suffix)
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats() (map[string]int64, error) {
	ctx := context.Background()

	waiting, err := c.client.LLen(ctx, c.config.QueueName).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue length: %w", err)
	}
	processing, _ := c.client.SCard(ctx, c.key("processing")).Result()
	completed, _ := c.client.SCard(ctx, c.key("completed")).Result()
	failed, _ := c.client.SCard(ctx, c.key("failed")).Result()

	return map[string]int64{
		"waiting":    waiting,
		"processing": processing,
		"completed":  completed,
		"failed":     failed,
	}, nil
}

func queueKey(queue, suffix string) string {
	return fmt.Sprintf("%s:%s", queue, suffix)
}

func processingTimeout(ms int64) time.Duration {
	if ms <= 0 {
		ms = 120000
	}
	return time.Duration(ms) * time.Millisecond
}

// IsPermanent reports whether retrying the job cannot help
func IsPermanent(err error) bool {
	return errors.HasCode(err, errors.ErrorImageDecodeFailed) ||
		errors.HasCode(err, errors.ErrorUnsupportedFormat)
}

// failureDetails is the error record stored for a failed job
func failureDetails(err error, attempts int) map[string]interface{} {
	details := map[string]interface{}{
		"error":    err.Error(),
		"attempts": attempts,
	}
	var pe *errors.ProcessingError
	if stderrors.As(err, &pe) {
		for k, v := range pe.ToMap() {
			if _, taken := details[k]; !taken {
				details[k] = v
			}
		}
		details["errorCode"] = string(pe.Code)
	}
	return details
}

func completionMetadata(r *processor.ProcessResult) map[string]interface{} {
	return map[string]interface{}{
		"confidence":       r.OCRConfidence,
		"processingTime":   r.ProcessingTimeMs,
		"chartsExtracted":  len(r.Charts),
		"candidatesFailed": r.CandidatesFailed,
		"candidatesFound":  r.CandidatesFound,
		"chartIds":         r.ChartIDs,
		"ocrEngine":        r.OCREngine,
	}
}
