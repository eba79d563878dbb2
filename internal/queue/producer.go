package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/billchart-worker/internal/config"
)

// DefaultQueueName is the queue used when none is configured
const DefaultQueueName = "billchart:jobs"

// resultRetention is how long Asynq keeps completed task results
const resultRetention = 24 * time.Hour

// Producer submits chart extraction jobs
type Producer interface {
	Submit(ctx context.Context, payload *JobPayload) (string, error)
	Status(ctx context.Context, jobID string) (string, error)
	Close() error
}

var (
	_ Producer = (*RedisProducer)(nil)
	_ Producer = (*AsynqProducer)(nil)
)

// NewProducer creates the producer matching a consumer backend
func NewProducer(backend, redisURL, queueName string, maxRetries int) (Producer, error) {
	switch backend {
	case config.QueueBackendRedis, "":
		return NewRedisProducer(redisURL, queueName, maxRetries)
	case config.QueueBackendAsynq:
		return NewAsynqProducer(redisURL, queueName, maxRetries)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", backend)
	}
}

// ensureJobID assigns a fresh job ID when the payload has none
func ensureJobID(payload *JobPayload) string {
	if payload.JobID == "" {
		payload.JobID = uuid.New().String()
	}
	return payload.JobID
}

// RedisProducer writes jobs in the list protocol read by RedisConsumer
type RedisProducer struct {
	client     *redis.Client
	queueName  string
	maxRetries int
}

// NewRedisProducer creates a list-protocol producer
func NewRedisProducer(redisURL, queueName string, maxRetries int) (*RedisProducer, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if queueName == "" {
		queueName = DefaultQueueName
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &RedisProducer{
		client:     redis.NewClient(opt),
		queueName:  queueName,
		maxRetries: maxRetries,
	}, nil
}

// Submit stores the job data and pushes its ID onto the queue atomically
func (p *RedisProducer) Submit(ctx context.Context, payload *JobPayload) (string, error) {
	jobID := ensureJobID(payload)

	job := RedisJobData{
		ID:         jobID,
		Type:       TaskExtractCharts,
		Payload:    *payload,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: p.maxRetries,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, queueKey(p.queueName, "data"), jobID, data)
		pipe.LPush(ctx, p.queueName, jobID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}

	event, _ := json.Marshal(map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", StatusQueued),
		"jobId":     jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	p.client.Publish(ctx, queueKey(p.queueName, "events"), event)

	return jobID, nil
}

// Status reports where a job currently is in the list protocol
func (p *RedisProducer) Status(ctx context.Context, jobID string) (string, error) {
	for _, status := range []string{StatusCompleted, StatusFailed, StatusProcessing} {
		ok, err := p.client.SIsMember(ctx, queueKey(p.queueName, status), jobID).Result()
		if err != nil {
			return "", fmt.Errorf("failed to read job status: %w", err)
		}
		if ok {
			return status, nil
		}
	}

	exists, err := p.client.HExists(ctx, queueKey(p.queueName, "data"), jobID).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read job data: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("job not found: %s", jobID)
	}
	return StatusQueued, nil
}

// Close closes the Redis connection
func (p *RedisProducer) Close() error {
	return p.client.Close()
}

// AsynqProducer enqueues jobs as Asynq tasks
type AsynqProducer struct {
	client     *asynq.Client
	inspector  *asynq.Inspector
	queueName  string
	maxRetries int
}

// NewAsynqProducer creates a task-protocol producer
func NewAsynqProducer(redisURL, queueName string, maxRetries int) (*AsynqProducer, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if queueName == "" {
		queueName = DefaultQueueName
	}

	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &AsynqProducer{
		client:     asynq.NewClient(redisOpt),
		inspector:  asynq.NewInspector(redisOpt),
		queueName:  queueName,
		maxRetries: maxRetries,
	}, nil
}

// Submit enqueues an extract-charts task whose task ID is the job ID
func (p *AsynqProducer) Submit(ctx context.Context, payload *JobPayload) (string, error) {
	jobID := ensureJobID(payload)

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	task := asynq.NewTask(TaskExtractCharts, data)
	info, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue(p.queueName),
		asynq.TaskID(jobID),
		asynq.MaxRetry(p.maxRetries),
		asynq.Retention(resultRetention),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task %s: %w", jobID, err)
	}

	return info.ID, nil
}

// Status reports the job status of the task with the job's ID
func (p *AsynqProducer) Status(ctx context.Context, jobID string) (string, error) {
	info, err := p.inspector.GetTaskInfo(p.queueName, jobID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return "", fmt.Errorf("job not found: %s", jobID)
		}
		return "", fmt.Errorf("failed to read task %s: %w", jobID, err)
	}
	return taskStatus(info.State), nil
}

// taskStatus maps an Asynq task state onto the list protocol's job statuses
func taskStatus(state asynq.TaskState) string {
	switch state {
	case asynq.TaskStateActive:
		return StatusProcessing
	case asynq.TaskStateCompleted:
		return StatusCompleted
	case asynq.TaskStateArchived:
		return StatusFailed
	default:
		return StatusQueued
	}
}

// Close closes the Asynq client and inspector
func (p *AsynqProducer) Close() error {
	p.inspector.Close()
	return p.client.Close()
}
