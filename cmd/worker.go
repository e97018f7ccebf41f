package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ddp-org/detectbot/config"
	"github.com/ddp-org/detectbot/database"
	"github.com/ddp-org/detectbot/notifier"
	"github.com/ddp-org/detectbot/pipeline"
	"github.com/ddp-org/detectbot/service"
	"github.com/ddp-org/detectbot/watcher"
)

func init() {
	rootCmd.AddCommand(workerCmd)
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs the detectbot worker",
	Long:  `Runs the worker daemon that drains the submission queue, analyzes each item and records the verdicts`,
	Run: func(cmd *cobra.Command, args []string) {

		cfg := config.FromEnvfile()

		log.SetLevel(cfg.LogLevel)

		switch cfg.LogFormat {
		case config.LogFormatJSON:
			log.SetFormatter(&log.JSONFormatter{})
		default:
			log.SetFormatter(&log.TextFormatter{})
		}

		if cfg.TestModeEnabled {
			log.Info("TEST MODE ENABLED")
		}

		awsConfig, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			log.Fatal(err)
		}
		secretsManagerClient := secretsmanager.NewFromConfig(awsConfig)

		databaseURL := cfg.PostgresURL
		if databaseURL == "" {
			if cfg.PostgresSecretPath == "" {
				log.Fatal("postgres not configured")
			}
			// Get the DB secrets from AWS Secrets Manager
			result, err := secretsManagerClient.GetSecretValue(context.Background(), &secretsmanager.GetSecretValueInput{SecretId: aws.String(cfg.PostgresSecretPath)})
			if err != nil {
				log.Fatal(err.Error())
			}
			var pgSecrets config.PostgresSecretData
			err = json.Unmarshal([]byte(*result.SecretString), &pgSecrets)
			if err != nil {
				log.Fatalf("postgres secrets read error: %v", err)
			}
			databaseURL = pgSecrets.ConnectionString
		}

		/*
			Graceful shutdown is possible with errgroup + signal.NotifyContext
			NotifyContext returns a context that will close on OS signals to terminate the process
			errgroup uses that context, and also closes it in case a goroutine errors out
		*/
		ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer done()
		g, gCtx := errgroup.WithContext(ctx)

		detectService := service.NewDetectService(cfg, secretsManagerClient)

		db := database.NewDatabase(databaseURL)
		if err = db.Connect(gCtx); err != nil {
			log.Fatalf("error connecting to database: %v", err)
		}
		defer db.Disconnect()

		completion := notifier.New(detectService, detectService)
		completion.PollInterval = detectService.PollInterval()
		completion.MaxPollAttempts = detectService.MaxPollAttempts()

		recorder := watcher.NewRecorder(db, detectService, cfg.TestModeEnabled)
		pipe := pipeline.New(detectService, detectService, completion, detectService, recorder)

		queueWatcher := watcher.NewWatcher(pipe, detectService, db)

		healthchecker := service.NewHealthchecker(cfg.HealthcheckPort)

		g.Go(func() error {
			defer log.Info("exiting watcher")
			return queueWatcher.Watch(gCtx)
		})

		// For deployed instances, provide a basic healthcheck endpoint to show it's online
		g.Go(func() error {
			if err := healthchecker.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		// ...and shut down the server if the worker needs to terminate
		g.Go(func() error {
			<-gCtx.Done()
			defer log.Info("exiting healthchecker")
			return healthchecker.Server.Shutdown(context.Background())
		})

		err = g.Wait()
		if err != nil {
			log.Errorf("caught error: %v", err)
		}
	},
}
