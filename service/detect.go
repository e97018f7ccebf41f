package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/ddp-org/detectbot/analysis"
	"github.com/ddp-org/detectbot/auth"
	"github.com/ddp-org/detectbot/config"
	"github.com/ddp-org/detectbot/ddp"
	"github.com/ddp-org/detectbot/notifier"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	log "github.com/sirupsen/logrus"
)

type DetectService struct {
	config config.DetectConfig
	client *ddp.Client
}

func NewDetectService(cfg config.Config, secretsManagerClient *secretsmanager.Client) *DetectService {
	tokens := tokenSource(cfg, secretsManagerClient)

	client := ddp.NewClient(tokens, cfg.Detect.ApiURL, cfg.Detect.WsURL)
	log.Infof("detection client initialized. Host: %s", cfg.Detect.ApiURL.String())

	return &DetectService{
		config: cfg.Detect,
		client: client,
	}
}

func tokenSource(cfg config.Config, secretsManagerClient *secretsmanager.Client) auth.TokenSource {
	if cfg.Detect.SecretPath != "" && secretsManagerClient != nil {
		// Get the API credentials from AWS Secrets Manager
		result, err := secretsManagerClient.GetSecretValue(
			context.Background(),
			&secretsmanager.GetSecretValueInput{
				SecretId: aws.String(cfg.Detect.SecretPath),
			},
		)
		if err != nil {
			log.Fatal(err.Error())
		}
		var secrets config.DetectSecretData
		err = json.Unmarshal([]byte(*result.SecretString), &secrets)
		if err != nil {
			log.Panicf("detection secrets read error: %v", err)
		}
		if secrets.RefreshToken != "" {
			return auth.NewRefreshingTokenSource(cfg.Detect.ApiURL.String(), secrets.AccessToken, secrets.RefreshToken, time.Time{})
		}
		return auth.NewStaticTokenSource(secrets.AccessToken)
	}
	if cfg.Detect.RefreshToken != "" {
		return auth.NewRefreshingTokenSource(cfg.Detect.ApiURL.String(), cfg.Detect.AccessToken, cfg.Detect.RefreshToken, time.Time{})
	}
	return auth.NewStaticTokenSource(cfg.Detect.AccessToken)
}

func (s *DetectService) SubmitFile(ctx context.Context, r io.Reader, filename string, kind ddp.MediaKind) (ddp.MediaID, error) {
	return s.client.SubmitFile(ctx, r, filename, kind)
}

func (s *DetectService) SubmitLink(ctx context.Context, url string) (ddp.MediaID, error) {
	return s.client.SubmitLink(ctx, url)
}

// TriggerAnalysis starts backend analysis, absorbing the window where
// a link-derived source is still being ingested. Not-ready answers are
// retried on a fixed interval until the wall-clock budget runs out;
// any other failure is surfaced immediately, untranslated.
func (s *DetectService) TriggerAnalysis(ctx context.Context, id ddp.MediaID, mode analysis.Mode) error {
	interval := s.config.TriggerInterval
	deadline := time.Now().Add(s.config.TriggerBudget)

	attempts := 0
	for {
		attempts++
		err := s.client.Trigger(ctx, id, mode)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ddp.ErrSourceNotReady) {
			return err
		}
		if time.Now().Add(interval).After(deadline) {
			return &ddp.TriggerTimeoutError{Budget: s.config.TriggerBudget, Attempts: attempts}
		}
		log.WithField("mediaID", id).Debugf("source not ready, retrying trigger (attempt %d)", attempts)
		select {
		case <-ctx.Done():
			return &ddp.CancelledError{Err: ctx.Err()}
		case <-time.After(interval):
		}
	}
}

func (s *DetectService) Status(ctx context.Context, id ddp.MediaID) (*ddp.StatusResponse, error) {
	return s.client.Status(ctx, id)
}

func (s *DetectService) OpenPush(ctx context.Context) (notifier.PushChannel, error) {
	return s.client.SubscribeResults(ctx)
}

func (s *DetectService) FetchResult(ctx context.Context, id ddp.ResultID) (analysis.RawResult, error) {
	return s.client.FetchResult(ctx, id)
}

func (s *DetectService) Report(ctx context.Context, id ddp.ResultID) (*ddp.ReportResponse, error) {
	return s.client.Report(ctx, id)
}

func (s *DetectService) PollInterval() time.Duration {
	return s.config.PollInterval
}

func (s *DetectService) MaxPollAttempts() int {
	return s.config.MaxPollAttempts
}
