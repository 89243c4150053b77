package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	"github.com/ferux/twinpatcher/internal/config"
	"github.com/ferux/twinpatcher/internal/journal"
	"github.com/ferux/twinpatcher/internal/model"
	"github.com/ferux/twinpatcher/internal/telegram"
	"github.com/ferux/twinpatcher/internal/twin"
)

const (
	maxHeaderBytes = 256 * (1 << 10) // 256 KiB
	maxBodyBytes   = 1 << 20         // 1 MiB
	contentType    = "content-type"
	contentJSON    = "application/json"
	headerBatchID  = "x-batch-id"
)

// TwinService is the part of twin.Service used by handlers.
type TwinService interface {
	QueryTwinsByDeviceClass(ctx context.Context, deviceClass string) ([]twin.Twin, error)
	ApplyTwinPatchToClass(ctx context.Context, deviceClass string, patch model.TwinPatch) ([]twin.Twin, error)
}

// Dependencies of the http api. Only Twins is required.
type Dependencies struct {
	Twins    TwinService
	Journal  journal.Journal
	Telegram telegram.Client
	Notify   config.NotifyTelegram
	Sentry   *sentry.Client
	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

type HTTP struct {
	srv *http.Server

	twins    TwinService
	journal  journal.Journal
	tgclient telegram.Client
	notify   config.NotifyTelegram
	logger   zerolog.Logger
	notifier *sentry.Client
	metrics  http.Handler
	info     model.ApplicationInfo

	requestCount int64
	bootTime     time.Time
}

// NewHTTP prepares new http service
func NewHTTP(
	cfg config.HTTP,
	deps Dependencies,
	logger zerolog.Logger,
	appInfo model.ApplicationInfo,
) (*HTTP, error) {
	if deps.Twins == nil {
		return nil, model.ErrMissingParameter
	}

	if deps.Journal == nil {
		deps.Journal = journal.Noop()
	}

	if deps.Telegram == nil {
		deps.Telegram = telegram.Noop()
	}

	to := cfg.Timeout.Or(time.Minute)
	srv := &http.Server{
		Addr:              cfg.Listen,
		ReadTimeout:       to,
		ReadHeaderTimeout: to,
		WriteTimeout:      to,
		IdleTimeout:       to,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	api := &HTTP{
		srv:      srv,
		twins:    deps.Twins,
		journal:  deps.Journal,
		tgclient: deps.Telegram,
		notify:   deps.Notify,
		logger:   logger,
		notifier: deps.Sentry,
		metrics:  deps.Metrics,
		info:     appInfo,
		bootTime: time.Now(),
	}
	api.setupRoutes()

	return api, nil
}

// Handler returns router of the api.
func (api *HTTP) Handler() http.Handler {
	return api.srv.Handler
}

// Serve connections
func (api *HTTP) Serve() {
	go func() {
		api.logger.Info().Str("listen", api.srv.Addr).Msg("serving http")
		err := api.srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			api.logger.Error().Err(err).Msg("interrupted")
			if api.notifier != nil {
				api.notifier.CaptureException(err, nil, sentry.NewScope())
			}
		}
	}()
}

// Shutdown the server
func (api *HTTP) Shutdown(ctx context.Context) error {
	return api.srv.Shutdown(ctx)
}

func asJSON(ctx context.Context, w http.ResponseWriter, obj interface{}, code int) {
	w.Header().Set(contentType, contentJSON)
	w.WriteHeader(code)

	err := json.NewEncoder(w).Encode(obj)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("encoding json")
	}
}
