package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ddp-org/detectbot/analysis"
	"github.com/ddp-org/detectbot/config"
	"github.com/ddp-org/detectbot/ddp"
	"github.com/ddp-org/detectbot/notifier"
	"github.com/ddp-org/detectbot/pipeline"
	"github.com/ddp-org/detectbot/pipeline/handoff"
	"github.com/ddp-org/detectbot/service"
)

var (
	analyzeFile string
	analyzeLink string
	analyzeMode string
)

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "path to a local video or image file")
	analyzeCmd.Flags().StringVar(&analyzeLink, "link", "", "URL of a remote video")
	analyzeCmd.Flags().StringVar(&analyzeMode, "mode", string(analysis.ModeDeep), "analysis mode (fast or deep)")
	rootCmd.AddCommand(analyzeCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyzes a single media item and prints the verdict",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnvfile()
		log.SetLevel(cfg.LogLevel)

		mode, err := analysis.ParseMode(analyzeMode)
		if err != nil {
			return err
		}

		// One slot, one consumer: the selected media is staged here and
		// taken exactly once by the pipeline run.
		var pending handoff.Slot[pipeline.Input]
		if err := stageInput(&pending); err != nil {
			return err
		}
		in, ok := pending.Take()
		if !ok {
			return fmt.Errorf("either --file or --link is required")
		}
		if f, isFile := in.File.(*os.File); isFile {
			defer f.Close()
		}

		detectService := service.NewDetectService(cfg, nil)
		completion := notifier.New(detectService, detectService)
		completion.PollInterval = detectService.PollInterval()
		completion.MaxPollAttempts = detectService.MaxPollAttempts()

		// No consumer: a one-shot run prints the result instead of
		// persisting it.
		pipe := pipeline.New(detectService, detectService, completion, detectService, nil)

		res, err := pipe.Analyze(context.Background(), in, mode)
		if err != nil {
			return err
		}
		fmt.Println(analysis.FormatSummary(res))
		return nil
	},
}

func stageInput(pending *handoff.Slot[pipeline.Input]) error {
	switch {
	case analyzeFile != "":
		f, err := os.Open(analyzeFile)
		if err != nil {
			return err
		}
		pending.Set(pipeline.Input{
			File:     f,
			Filename: analyzeFile,
			FileKind: fileKind(analyzeFile),
			Source:   filepath.Base(analyzeFile),
		})
	case analyzeLink != "":
		pending.Set(pipeline.Input{
			LinkURL: analyzeLink,
			Source:  analyzeLink,
		})
	}
	return nil
}

func fileKind(path string) ddp.MediaKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gif", ".png", ".webp", ".jpg", ".jpeg":
		return ddp.MediaKindImage
	default:
		return ddp.MediaKindVideo
	}
}
