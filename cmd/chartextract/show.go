package main

import (
	"github.com/spf13/cobra"

	"github.com/adverant/nexus/billchart-worker/internal/config"
	"github.com/adverant/nexus/billchart-worker/internal/processor"
	"github.com/adverant/nexus/billchart-worker/internal/storage"
)

var showCmd = &cobra.Command{
	Use:   "show <chart-id>",
	Short: "Print a stored chart as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	sm, err := storage.NewStorageManager(cfg.DatabaseURL, cfg.QdrantAddress(), cfg.QdrantCollection, processor.ProfileDimensions)
	if err != nil {
		return err
	}
	defer sm.Close()

	stored, err := sm.GetChart(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), stored)
}
