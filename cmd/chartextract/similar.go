package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adverant/nexus/billchart-worker/internal/config"
	"github.com/adverant/nexus/billchart-worker/internal/processor"
	"github.com/adverant/nexus/billchart-worker/internal/storage"
)

var similarLimit int

var similarCmd = &cobra.Command{
	Use:   "similar <chart-id>",
	Short: "List stored charts whose seasonal usage shape is closest to a chart",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimilar,
}

func init() {
	similarCmd.Flags().IntVar(&similarLimit, "limit", 5, "Maximum number of charts to list")
}

func runSimilar(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.QdrantAddress() == "" {
		return fmt.Errorf("similarity search needs QDRANT_URL")
	}

	sm, err := storage.NewStorageManager(cfg.DatabaseURL, cfg.QdrantAddress(), cfg.QdrantCollection, processor.ProfileDimensions)
	if err != nil {
		return err
	}
	defer sm.Close()

	results, err := sm.SearchSimilarCharts(cmd.Context(), args[0], similarLimit)
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), results)
}
