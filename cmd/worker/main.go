/**
 * Bill Chart Worker - Main Entry Point
 *
 * Go worker that recovers monthly usage bar charts from photographed or
 * scanned utility bills.
 *
 * Architecture:
 * - Redis list or Asynq consumer for the job queue
 * - Tesseract word-level OCR
 * - Geometric chart extraction (month axis, y-axis calibration, bar scanning)
 * - PostgreSQL persistence of jobs and charts
 * - Qdrant index of seasonal usage profiles
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/billchart-worker/internal/config"
	"github.com/adverant/nexus/billchart-worker/internal/logging"
	"github.com/adverant/nexus/billchart-worker/internal/processor"
	"github.com/adverant/nexus/billchart-worker/internal/processor/tesseract"
	"github.com/adverant/nexus/billchart-worker/internal/queue"
	"github.com/adverant/nexus/billchart-worker/internal/storage"
)

// consumer is implemented by both queue backends
type consumer interface {
	Start() error
	Stop() error
}

// asynqConsumer adapts the context-taking Asynq consumer
type asynqConsumer struct{ *queue.Consumer }

func (a asynqConsumer) Start() error { return a.Consumer.Start(context.Background()) }
func (a asynqConsumer) Stop() error  { return a.Consumer.Stop(context.Background()) }

func main() {
	logger := logging.NewLogger("worker")

	if err := godotenv.Load(".env"); err != nil {
		logger.Warn(".env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := logging.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		logger.Error("Invalid logging configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("Bill chart worker starting",
		"queue", cfg.QueueName,
		"backend", cfg.QueueBackend,
		"workers", cfg.WorkerConcurrency,
		"qdrant", cfg.QdrantAddress())

	chartOpts, err := cfg.ChartOptions()
	if err != nil {
		logger.Error("Failed to load chart profile", "error", err)
		os.Exit(1)
	}

	storageManager, err := storage.NewStorageManager(
		cfg.DatabaseURL,
		cfg.QdrantAddress(),
		cfg.QdrantCollection,
		processor.ProfileDimensions,
	)
	if err != nil {
		logger.Error("Failed to initialize storage manager", "error", err)
		os.Exit(1)
	}
	defer storageManager.Close()
	logger.Info("Storage manager initialized", "vectorSearch", storageManager.VectorSearchEnabled())

	ocr, err := tesseract.NewTesseractOCR(&tesseract.TesseractConfig{
		Languages: cfg.TesseractLanguages,
	})
	if err != nil {
		logger.Error("Failed to initialize Tesseract", "error", err)
		os.Exit(1)
	}

	proc, err := processor.NewChartProcessor(&processor.ProcessorConfig{
		MaxFileSize:  cfg.MaxFileSize,
		Recognizer:   ocr,
		Store:        storageManager,
		ChartOptions: chartOpts,
		Logger:       logging.NewLogger("processor"),
	})
	if err != nil {
		logger.Error("Failed to initialize chart processor", "error", err)
		os.Exit(1)
	}

	queueConsumer, err := newConsumer(cfg, proc)
	if err != nil {
		logger.Error("Failed to initialize queue consumer", "error", err)
		os.Exit(1)
	}

	if err := queueConsumer.Start(); err != nil {
		logger.Error("Failed to start queue consumer", "error", err)
		os.Exit(1)
	}

	logger.Info("Bill chart worker is ready, waiting for jobs",
		"queue", cfg.QueueName,
		"languages", cfg.TesseractLanguages,
		"chartConcurrency", chartOpts.Concurrency)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal, initiating graceful shutdown", "signal", sig.String())

	if err := queueConsumer.Stop(); err != nil {
		logger.Error("Error stopping queue consumer", "error", err)
	}

	logger.Info("Shutdown complete")
}

func newConsumer(cfg *config.Config, proc processor.DocumentProcessorInterface) (consumer, error) {
	if cfg.QueueBackend == config.QueueBackendAsynq {
		c, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
			Logger:            logging.NewLogger("asynq-consumer"),
		})
		if err != nil {
			return nil, err
		}
		return asynqConsumer{c}, nil
	}

	return queue.NewRedisConsumer(&queue.RedisConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         cfg.QueueName,
		Concurrency:       cfg.WorkerConcurrency,
		MaxRetries:        cfg.MaxRetries,
		Processor:         proc,
		ProcessingTimeout: int64(cfg.ProcessingTimeout),
		Logger:            logging.NewLogger("redis-consumer"),
	})
}
