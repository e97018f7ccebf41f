package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Detect DetectConfig

	PostgresURL        string
	PostgresSecretPath string

	HealthcheckPort int

	LogLevel        log.Level
	LogFormat       LogFormat
	TestModeEnabled bool
}

type DetectConfig struct {
	ApiURL url.URL
	WsURL  url.URL

	AccessToken  string
	RefreshToken string
	SecretPath   string

	PollInterval    time.Duration
	MaxPollAttempts int
	TriggerInterval time.Duration
	TriggerBudget   time.Duration
}

type LogFormat string

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

type EnvfileKey string

const (
	// Postgres connection string to use for database connections
	EnvfileKeyPostgresURL = "POSTGRES_URL"
	// AWS Secrets Manager path where Postgres connection string can be found
	EnvfileKeyPostgresSecretsPath = "POSTGRES_SECRETS_PATH"

	// Base URL to the detection API
	EnvfileKeyDetectAPI = "DDP_API"
	// Base URL of the websocket push channel; derived from DDP_API when unset
	EnvfileKeyDetectWS = "DDP_WS"
	// Bearer access token for the detection API
	EnvfileKeyDetectAccessToken = "DDP_ACCESS_TOKEN"
	// Refresh token; when set the access token is reissued on expiry
	EnvfileKeyDetectRefreshToken = "DDP_REFRESH_TOKEN"
	// AWS Secrets Manager path where API credentials can be found
	EnvfileKeyDetectSecretPath = "DDP_SECRETS_PATH"
	// Interval between completion status checks, in seconds
	EnvfileKeyPollInterval = "DDP_POLL_INTERVAL"
	// Maximum number of status checks before giving up
	EnvfileKeyPollMaxAttempts = "DDP_POLL_MAX_ATTEMPTS"
	// Interval between trigger retries while the source is not ready, in seconds
	EnvfileKeyTriggerInterval = "DDP_TRIGGER_INTERVAL"
	// Wall-clock budget for trigger retries, in seconds
	EnvfileKeyTriggerBudget = "DDP_TRIGGER_BUDGET"

	// Port for the worker's healthcheck endpoint
	EnvfileKeyHealthcheckPort = "HEALTHCHECK_PORT"

	// Log level (e.g. "debug", "info", "warn", "error")
	EnvfileKeyLogLevel = "LOG_LEVEL"
	// Log output format (e.g. "text", "json")
	EnvfileKeyLogFormat = "LOG_FORMAT"
	// Enables "test mode" (consumer simulates persistence, etc.)
	EnvfileKeyTestMode = "TEST_MODE"
)

func FromEnvfile() Config {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("dotenv")

	err := viper.ReadInConfig()
	if err != nil {
		log.Fatalf("error reading config: %v", err)
	}

	apiURL, err := url.Parse(getConfigString(EnvfileKeyDetectAPI))
	if err != nil {
		log.Fatalf("error parsing detection API URL: %v", err)
	}
	if apiURL.Host == "" {
		log.Fatal("must supply detection API URL")
	}

	wsURL, err := url.Parse(getConfigString(EnvfileKeyDetectWS))
	if err != nil {
		log.Fatalf("error parsing websocket URL: %v", err)
	}
	if wsURL.Host == "" {
		wsURL = deriveWsURL(*apiURL)
	}

	pollInterval := getConfigInt(EnvfileKeyPollInterval)
	if pollInterval == 0 {
		pollInterval = 3
	}
	pollMaxAttempts := getConfigInt(EnvfileKeyPollMaxAttempts)
	if pollMaxAttempts == 0 {
		pollMaxAttempts = 60
	}
	triggerInterval := getConfigInt(EnvfileKeyTriggerInterval)
	if triggerInterval == 0 {
		triggerInterval = 1
	}
	triggerBudget := getConfigInt(EnvfileKeyTriggerBudget)
	if triggerBudget == 0 {
		triggerBudget = 60
	}

	healthcheckPort := getConfigInt(EnvfileKeyHealthcheckPort)
	if healthcheckPort == 0 {
		healthcheckPort = 8080
	}

	logLevel, err := log.ParseLevel(getConfigString(EnvfileKeyLogLevel))
	if err != nil {
		// Default to info level but log a warning
		log.Warnf("unable to parse log level: %v", err)
		logLevel = log.InfoLevel
	}

	logFormat, err := parseLogFormat(getConfigString(EnvfileKeyLogFormat))
	if err != nil {
		// Default to text formatter but log a warning
		log.Warnf("unable to parse log format: %v", err)
		logFormat = LogFormatText
	}

	isTestMode := viper.GetBool(EnvfileKeyTestMode)

	return Config{
		Detect: DetectConfig{
			ApiURL:          *apiURL,
			WsURL:           *wsURL,
			AccessToken:     getConfigString(EnvfileKeyDetectAccessToken),
			RefreshToken:    getConfigString(EnvfileKeyDetectRefreshToken),
			SecretPath:      getConfigString(EnvfileKeyDetectSecretPath),
			PollInterval:    time.Duration(pollInterval) * time.Second,
			MaxPollAttempts: pollMaxAttempts,
			TriggerInterval: time.Duration(triggerInterval) * time.Second,
			TriggerBudget:   time.Duration(triggerBudget) * time.Second,
		},
		PostgresURL:        getConfigString(EnvfileKeyPostgresURL),
		PostgresSecretPath: getConfigString(EnvfileKeyPostgresSecretsPath),
		HealthcheckPort:    healthcheckPort,
		LogLevel:           logLevel,
		LogFormat:          logFormat,
		TestModeEnabled:    isTestMode,
	}
}

// deriveWsURL maps the API URL onto the websocket endpoint (http->ws,
// https->wss) when no explicit push URL is configured.
func deriveWsURL(apiURL url.URL) *url.URL {
	ws := apiURL
	switch ws.Scheme {
	case "https":
		ws.Scheme = "wss"
	default:
		ws.Scheme = "ws"
	}
	return &ws
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(raw) {
	case LogFormatJSON:
		return LogFormatJSON, nil
	case LogFormatText:
		return LogFormatText, nil
	default:
		return "", fmt.Errorf("unidentified log format: %s", raw)
	}
}

// Gets a config value as a string from env vars or a .env file
func getConfigString(key string) string {
	value := os.Getenv(key)
	if value == "" {
		value = viper.GetString(key)
	}
	return value
}

// Gets a config value as an int from env vars or a .env file
func getConfigInt(key string) int {
	envVarValue := os.Getenv(key)
	if envVarValue == "" {
		return viper.GetInt(key)
	}
	value, err := strconv.Atoi(envVarValue)
	if err != nil {
		return 0
	}
	return value
}
