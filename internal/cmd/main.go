package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pborman/uuid"
	"github.com/rs/zerolog"

	"github.com/ferux/twinpatcher"
	"github.com/ferux/twinpatcher/internal/api"
	"github.com/ferux/twinpatcher/internal/config"
	"github.com/ferux/twinpatcher/internal/fcontext"
	"github.com/ferux/twinpatcher/internal/journal"
	"github.com/ferux/twinpatcher/internal/metrics"
	"github.com/ferux/twinpatcher/internal/model"
	"github.com/ferux/twinpatcher/internal/telegram"
	"github.com/ferux/twinpatcher/internal/twin"
)

func main() {
	path := flag.String("config", "", "path to config, defaults and environment are used when empty")
	envPath := flag.String("env", "", "path to dotenv file")
	showRevision := flag.Bool("revision", false, "show version of the application")
	deviceClass := flag.String("class", "", "device class to patch once and exit")
	patchPath := flag.String("patch", "", "path to twin patch applied to -class")

	flag.Parse()

	if *showRevision {
		fmt.Println(twinpatcher.Revision)
		return
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := config.LoadDotEnv(*envPath); err != nil {
		logger.Fatal().Err(err).Str("path", *envPath).Msg("loading dotenv")
	}

	cfg, err := config.Parse(*path)
	if err != nil {
		logger.
			Fatal().
			Err(err).
			Str("revision", twinpatcher.Revision).
			Str("branch", twinpatcher.Branch).
			Str("env", twinpatcher.Env).
			Msg("parsing config file")
	}

	if cfg.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	logger.
		Debug().
		Str("rev", twinpatcher.Revision).
		Str("branch", twinpatcher.Branch).
		Msg("starting application")

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		if err = metrics.Register(); err != nil {
			logger.Fatal().Err(err).Msg("registering metric views")
		}

		exporter, errExp := metrics.NewExporter(cfg.Metrics.Namespace)
		if errExp != nil {
			logger.Fatal().Err(errExp).Msg("can't create prometheus exporter")
		}

		metricsHandler = exporter
	}

	j := journal.Noop()
	if cfg.Journal.Path != "" {
		j, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.Journal.Path).Msg("opening journal")
		}
	}

	defer func() {
		if errClose := j.Close(); errClose != nil {
			logger.Error().Err(errClose).Msg("closing journal")
		}
	}()

	svc := twin.New(cfg.IoTHub, twin.WithJournal(j), twin.WithLogger(logger))

	if *deviceClass != "" || *patchPath != "" {
		if errOnce := applyOnce(logger, svc, *deviceClass, *patchPath); errOnce != nil {
			logger.Error().Err(errOnce).Msg("patch failed")
			_ = j.Close()
			os.Exit(1)
		}

		return
	}

	serve(logger, cfg, svc, j, metricsHandler)
}

// applyOnce patches every twin of the class and prints updated device ids.
func applyOnce(logger zerolog.Logger, svc *twin.Service, deviceClass, patchPath string) error {
	if deviceClass == "" || patchPath == "" {
		return fmt.Errorf("both -class and -patch are required: %w", model.ErrMissingParameter)
	}

	data, err := ioutil.ReadFile(patchPath)
	if err != nil {
		return fmt.Errorf("reading patch: %w", err)
	}

	var patch model.TwinPatch
	if err = json.Unmarshal(data, &patch); err != nil {
		return fmt.Errorf("unmarshaling patch: %w", err)
	}

	bid := uuid.New()
	ctx := fcontext.WithBatchID(logger.WithContext(context.Background()), bid)

	updated, err := svc.ApplyTwinPatchToClass(ctx, deviceClass, patch)
	if err != nil {
		return fmt.Errorf("batch %s: %w", bid, err)
	}

	fmt.Printf("batch %s: patched %d twins of class %s\n", bid, len(updated), deviceClass)
	for _, t := range updated {
		fmt.Println(t.DeviceID())
	}

	return nil
}

func serve(logger zerolog.Logger, cfg config.Application, svc *twin.Service, j journal.Journal, metricsHandler http.Handler) {
	var notifierClient *sentry.Client
	if cfg.SentryDSN != "" {
		var err error
		notifierClient, err = sentry.NewClient(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Release:     twinpatcher.Revision,
			Environment: twinpatcher.Env,
			ServerName:  cfg.ServerName,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("can't create sentry client")
		}
	}

	tgclient := telegram.New("")
	appInfo := model.ApplicationInfo{
		Revision:    twinpatcher.Revision,
		Branch:      twinpatcher.Branch,
		Environment: twinpatcher.Env,
	}

	httpCfg := config.HTTP{Listen: ":8080"}
	if cfg.HTTP != nil {
		httpCfg = *cfg.HTTP
	}

	srv, err := api.NewHTTP(httpCfg, api.Dependencies{
		Twins:    svc,
		Journal:  j,
		Telegram: tgclient,
		Notify:   cfg.NotifyTelegram,
		Sentry:   notifierClient,
		Metrics:  metricsHandler,
	}, logger, appInfo)
	if err != nil {
		logger.Fatal().Err(err).Msg("can't create http api")
	}

	srv.Serve()

	go func() {
		ctx, cancel := context.WithTimeout(logger.WithContext(context.Background()), time.Second*15)
		defer cancel()

		if err := sendNotificationMessage(ctx, tgclient, cfg.NotifyTelegram); err != nil {
			logger.Error().Err(err).Msg("can't notify telegram")
		}
	}()

	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)
	<-s

	ctx, cancel := context.WithTimeout(logger.WithContext(context.Background()), time.Second*15)
	defer cancel()

	if cfg.NotifyTelegram.API != "" {
		errNotify := tgclient.SendMessageViaHTTP(ctx, cfg.NotifyTelegram.API, cfg.NotifyTelegram.ChatID, "shutting down")
		if errNotify != nil {
			logger.Error().Err(errNotify).Msg("error notifying via tg")
		}
	}

	if errShut := srv.Shutdown(ctx); errShut != nil {
		logger.Error().Err(errShut).Msg("error shutting down server")
	}

	if notifierClient != nil {
		notifierClient.Flush(time.Second * 2)
	}
}

func sendNotificationMessage(ctx context.Context, tgclient telegram.Client, notify config.NotifyTelegram) error {
	if notify.API == "" {
		return nil
	}

	message := fmt.Sprintf(
		"twinpatcher branch=%s env=%s revision=%s",
		twinpatcher.Branch, twinpatcher.Env, twinpatcher.Revision,
	)

	return tgclient.SendMessageViaHTTP(ctx, notify.API, notify.ChatID, message)
}
