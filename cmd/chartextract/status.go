package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adverant/nexus/billchart-worker/internal/queue"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Print the queue status of a submitted job",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&redisURL, "redis", envOrDefault("REDIS_URL", "redis://localhost:6379"), "Redis URL")
	statusCmd.Flags().StringVar(&queueName, "queue", envOrDefault("QUEUE_NAME", queue.DefaultQueueName), "Queue name")
	statusCmd.Flags().StringVar(&backend, "backend", envOrDefault("QUEUE_BACKEND", "redis"), "Queue backend (redis or asynq)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	producer, err := queue.NewProducer(backend, redisURL, queueName, 0)
	if err != nil {
		return err
	}
	defer producer.Close()

	status, err := producer.Status(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), status)
	return nil
}
