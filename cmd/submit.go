package cmd

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ddp-org/detectbot/analysis"
	"github.com/ddp-org/detectbot/config"
	"github.com/ddp-org/detectbot/database"
	"github.com/ddp-org/detectbot/model"
)

var (
	submitFile string
	submitLink string
	submitMode string
)

func init() {
	submitCmd.Flags().StringVar(&submitFile, "file", "", "path to a local video or image file")
	submitCmd.Flags().StringVar(&submitLink, "link", "", "URL of a remote video")
	submitCmd.Flags().StringVar(&submitMode, "mode", string(analysis.ModeDeep), "analysis mode (fast or deep)")
	rootCmd.AddCommand(submitCmd)
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Queues a media item for the worker to analyze",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnvfile()
		log.SetLevel(cfg.LogLevel)

		if cfg.PostgresURL == "" {
			return fmt.Errorf("postgres not configured")
		}

		mode, err := analysis.ParseMode(submitMode)
		if err != nil {
			return err
		}

		kind := model.SourceKindFile
		source := submitFile
		if submitLink != "" {
			kind = model.SourceKindLink
			source = submitLink
		}
		if source == "" {
			return fmt.Errorf("either --file or --link is required")
		}

		ctx := context.Background()
		db := database.NewDatabase(cfg.PostgresURL)
		if err := db.Connect(ctx); err != nil {
			return err
		}
		defer db.Disconnect()

		id, err := db.AddSubmission(ctx, kind, source, mode)
		if err != nil {
			return err
		}
		fmt.Printf("queued %s\n", id)
		return nil
	},
}
