package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ferux/twinpatcher/internal/time"
)

// Environment variables which override values from the config file.
const (
	// EnvConnectionString is the name the registry connection string has
	// always been published under.
	EnvConnectionString    = "AzureIoTHubConnectionString"
	EnvConnectionStringAlt = "IOTHUB_CONNECTION_STRING"
	EnvSentryDSN           = "TWINPATCHER_SENTRY_DSN"
	EnvTelegramAPI         = "TWINPATCHER_TELEGRAM_API"
	EnvTelegramChatID      = "TWINPATCHER_TELEGRAM_CHAT_ID"
	EnvHTTPListen          = "TWINPATCHER_HTTP_LISTEN"
	EnvJournalPath         = "TWINPATCHER_JOURNAL_PATH"
)

const (
	DefaultPageSize   = 100
	DefaultAPIVersion = "2021-04-12"
	maxPageSize       = 1000
)

// Application settings.
type Application struct {
	Debug          bool           `json:"debug"`
	HTTP           *HTTP          `json:"http"`
	SentryDSN      string         `json:"sentry_dsn"`
	NotifyTelegram NotifyTelegram `json:"notify_telegram"`
	ServerName     string         `json:"server_name"`
	IoTHub         IoTHub         `json:"iothub"`
	Journal        Journal        `json:"journal"`
	Metrics        Metrics        `json:"metrics"`
}

type HTTP struct {
	Listen  string        `json:"listen"`
	Timeout time.Duration `json:"timeout"`
}

type NotifyTelegram struct {
	API    string `json:"api"`
	ChatID string `json:"chat_id"`
}

// IoTHub holds settings of the device registry connection.
type IoTHub struct {
	// ConnectionString is usually left empty in the file and comes from
	// the environment.
	ConnectionString string        `json:"connection_string"`
	APIVersion       string        `json:"api_version"`
	PageSize         int           `json:"page_size"`
	Timeout          time.Duration `json:"timeout"`
	TokenTTL         time.Duration `json:"token_ttl"`
	// MaxInFlight caps concurrent twin updates. Zero means no cap.
	MaxInFlight int `json:"max_in_flight"`
}

// Journal configures the local record of batch outcomes. Empty path turns it off.
type Journal struct {
	Path string `json:"path"`
}

type Metrics struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace"`
}

// LoadDotEnv loads variables from a dotenv file into the process environment.
// Variables which are already set are kept.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	return nil
}

// Parse parses config from file. Empty path gives defaults with environment
// overrides applied.
func Parse(path string) (Application, error) {
	app := defaults()

	if path != "" {
		fileBytes, err := ioutil.ReadFile(path)
		if err != nil {
			return Application{}, err
		}

		err = json.Unmarshal(fileBytes, &app)
		if err != nil {
			return Application{}, fmt.Errorf("unmarshalling config: %w", err)
		}
	}

	applyEnv(&app)

	if app.IoTHub.PageSize == 0 {
		app.IoTHub.PageSize = DefaultPageSize
	}

	if app.IoTHub.APIVersion == "" {
		app.IoTHub.APIVersion = DefaultAPIVersion
	}

	if err := app.Validate(); err != nil {
		return Application{}, err
	}

	return app, nil
}

func defaults() Application {
	return Application{
		ServerName: "twinpatcher",
		IoTHub: IoTHub{
			APIVersion: DefaultAPIVersion,
			PageSize:   DefaultPageSize,
		},
		Metrics: Metrics{Namespace: "twinpatcher"},
	}
}

func applyEnv(app *Application) {
	if v := os.Getenv(EnvConnectionStringAlt); v != "" {
		app.IoTHub.ConnectionString = v
	}

	if v := os.Getenv(EnvConnectionString); v != "" {
		app.IoTHub.ConnectionString = v
	}

	if v := os.Getenv(EnvSentryDSN); v != "" {
		app.SentryDSN = v
	}

	if v := os.Getenv(EnvTelegramAPI); v != "" {
		app.NotifyTelegram.API = v
	}

	if v := os.Getenv(EnvTelegramChatID); v != "" {
		app.NotifyTelegram.ChatID = v
	}

	if v := os.Getenv(EnvHTTPListen); v != "" {
		if app.HTTP == nil {
			app.HTTP = &HTTP{}
		}
		app.HTTP.Listen = v
	}

	if v := os.Getenv(EnvJournalPath); v != "" {
		app.Journal.Path = v
	}
}

// Validate checks values which would break the service at runtime. The
// connection string itself is left to the registry client.
func (app Application) Validate() error {
	var errs []string

	if app.IoTHub.PageSize < 1 || app.IoTHub.PageSize > maxPageSize {
		errs = append(errs, fmt.Sprintf("iothub.page_size must be between 1 and %d", maxPageSize))
	}

	if app.IoTHub.MaxInFlight < 0 {
		errs = append(errs, "iothub.max_in_flight must not be negative")
	}

	if app.HTTP != nil && app.HTTP.Listen == "" {
		errs = append(errs, "http.listen is required when http section is set")
	}

	if len(errs) > 0 {
		return errors.New("config errors: " + strings.Join(errs, "; "))
	}

	return nil
}
