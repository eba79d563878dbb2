package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/adverant/nexus/billchart-worker/internal/queue"
)

var (
	redisURL   string
	queueName  string
	backend    string
	maxRetries int
	userID     string
)

var submitCmd = &cobra.Command{
	Use:   "submit <image>",
	Short: "Queue a bill image for the worker and print the job ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&redisURL, "redis", envOrDefault("REDIS_URL", "redis://localhost:6379"), "Redis URL")
	submitCmd.Flags().StringVar(&queueName, "queue", envOrDefault("QUEUE_NAME", queue.DefaultQueueName), "Queue name")
	submitCmd.Flags().StringVar(&backend, "backend", envOrDefault("QUEUE_BACKEND", "redis"), "Queue backend (redis or asynq)")
	submitCmd.Flags().IntVar(&maxRetries, "retries", 3, "Maximum retries")
	submitCmd.Flags().StringVar(&userID, "user", "cli", "User ID recorded on the job")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	imagePath := args[0]

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	producer, err := queue.NewProducer(backend, redisURL, queueName, maxRetries)
	if err != nil {
		return err
	}
	defer producer.Close()

	jobID, err := producer.Submit(cmd.Context(), &queue.JobPayload{
		UserID:     userID,
		Filename:   filepath.Base(imagePath),
		MimeType:   http.DetectContentType(data),
		FileSize:   int64(len(data)),
		FileBuffer: data,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), jobID)
	return nil
}
