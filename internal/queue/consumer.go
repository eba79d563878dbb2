/**
 * Asynq Queue Consumer for the Bill Chart Worker
 *
 * Alternative to the list-based RedisConsumer for deployments that already
 * run Asynq. Jobs arrive as "extract-charts" tasks whose payload is a JobPayload.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/billchart-worker/internal/errors"
	"github.com/adverant/nexus/billchart-worker/internal/logging"
	"github.com/adverant/nexus/billchart-worker/internal/processor"
)

// TaskExtractCharts is the Asynq task type handled by the worker
const TaskExtractCharts = "extract-charts"

// Consumer handles job consumption through Asynq
type Consumer struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor processor.DocumentProcessorInterface
	config    *ConsumerConfig
	logger    *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.DocumentProcessorInterface
	ProcessingTimeout int64 // milliseconds
	Logger            *logging.Logger
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("asynq-consumer")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := cfg.Logger
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: retryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				logger.Error("Task processing error",
					"type", task.Type(),
					"retried", retried,
					"error", err)
			}),
			Logger: logger.Backend(),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		server:    server,
		mux:       mux,
		processor: cfg.Processor,
		config:    cfg,
		logger:    logger,
	}

	mux.HandleFunc(TaskExtractCharts, consumer.handleExtractCharts)

	return consumer, nil
}

// retryDelay backs off exponentially: 5s, 10s, 20s, capped at 60s
func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	if n > 3 {
		return 60 * time.Second
	}
	return time.Duration(5*(1<<uint(n))) * time.Second
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Asynq consumer",
		"concurrency", c.config.Concurrency,
		"queue", c.config.QueueName)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info("Stopping Asynq consumer")
	c.server.Shutdown()
	return nil
}

// handleExtractCharts processes one chart extraction task
func (c *Consumer) handleExtractCharts(ctx context.Context, task *asynq.Task) error {
	var payload JobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %v: %w", err, asynq.SkipRetry)
	}

	if payload.JobID == "" {
		if id, ok := asynq.GetTaskID(ctx); ok {
			payload.JobID = id
		}
	}

	log := c.logger.With("job", payload.JobID)
	log.Info("Processing bill", "filename", payload.Filename, "size", payload.FileSize, "user", payload.UserID)

	if err := c.processor.UpdateJobStatus(ctx, payload.JobID, StatusProcessing, 0, map[string]interface{}{
		"filename": payload.Filename,
		"mimeType": payload.MimeType,
		"fileSize": payload.FileSize,
		"userId":   payload.UserID,
	}); err != nil {
		log.Warn("Failed to update status to processing", "error", err)
	}

	timeout := processingTimeout(c.config.ProcessingTimeout)
	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	startTime := time.Now()
	result, err := c.processor.ProcessDocument(processCtx, payload.Request())
	duration := time.Since(startTime)

	if err != nil {
		if processCtx.Err() == context.DeadlineExceeded {
			err = errors.NewProcessingTimeoutError(payload.JobID, timeout, err)
		}
		log.Error("Processing failed", "duration", duration, "error", err)

		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		permanent := IsPermanent(err)

		if permanent || retried >= maxRetry {
			if updateErr := c.processor.UpdateJobStatus(ctx, payload.JobID, StatusFailed, 100, failureDetails(err, retried+1)); updateErr != nil {
				log.Warn("Failed to update status to failed", "error", updateErr)
			}
		}

		if permanent {
			return fmt.Errorf("chart extraction failed: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("chart extraction failed: %w", err)
	}

	log.Info("Processing completed",
		"duration", duration,
		"charts", len(result.Charts),
		"failed", result.CandidatesFailed)

	if err := c.processor.UpdateJobStatus(ctx, payload.JobID, StatusCompleted, 100, completionMetadata(result)); err != nil {
		log.Warn("Failed to update status to completed", "error", err)
	}

	// Kept for the task's retention period, if the producer set one
	if w := task.ResultWriter(); w != nil {
		if data, err := json.Marshal(result); err == nil {
			if _, err := w.Write(data); err != nil {
				log.Debug("Could not write task result", "error", err)
			}
		}
	}

	return nil
}
