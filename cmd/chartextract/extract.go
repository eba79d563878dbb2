package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/adverant/nexus/billchart-worker/internal/config"
	"github.com/adverant/nexus/billchart-worker/internal/logging"
	"github.com/adverant/nexus/billchart-worker/internal/processor"
	"github.com/adverant/nexus/billchart-worker/internal/processor/tesseract"
)

var (
	wordsPath   string
	profilePath string
	languages   []string
	concurrency int
	fullResult  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <image>",
	Short: "Extract usage charts from a bill image and print them as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&wordsPath, "words", "", "JSON file of OCR words to use instead of running Tesseract")
	extractCmd.Flags().StringVar(&profilePath, "profile", "", "YAML chart tolerance profile")
	extractCmd.Flags().StringSliceVar(&languages, "lang", []string{"eng"}, "Tesseract languages")
	extractCmd.Flags().IntVar(&concurrency, "concurrency", 1, "Chart candidates scanned in parallel (overrides the profile)")
	extractCmd.Flags().BoolVar(&fullResult, "full", false, "Print the full result including failed candidates")
}

func runExtract(cmd *cobra.Command, args []string) error {
	imagePath := args[0]

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	opts, err := config.LoadChartProfile(profilePath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("concurrency") {
		opts.Concurrency = concurrency
	}

	var recognizer processor.WordRecognizer
	if wordsPath != "" {
		recognizer, err = processor.LoadWordsFile(wordsPath)
	} else {
		recognizer, err = tesseract.NewTesseractOCR(&tesseract.TesseractConfig{Languages: languages})
	}
	if err != nil {
		return err
	}

	proc, err := processor.NewChartProcessor(&processor.ProcessorConfig{
		Recognizer:   recognizer,
		ChartOptions: opts,
		Logger:       logging.NewLogger("extract"),
	})
	if err != nil {
		return err
	}

	result, err := proc.ProcessDocument(context.Background(), &processor.ProcessRequest{
		JobID:      "local",
		Filename:   filepath.Base(imagePath),
		FileSize:   int64(len(data)),
		FileBuffer: data,
	})
	if err != nil {
		return err
	}

	if fullResult {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	return writeJSON(cmd.OutOrStdout(), result.Charts)
}
