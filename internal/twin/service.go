package twin

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
	"unicode"

	"github.com/pborman/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ferux/twinpatcher/internal/config"
	"github.com/ferux/twinpatcher/internal/fcontext"
	"github.com/ferux/twinpatcher/internal/iothub"
	"github.com/ferux/twinpatcher/internal/journal"
	"github.com/ferux/twinpatcher/internal/metrics"
	"github.com/ferux/twinpatcher/internal/model"
)

const DefaultPageSize = 100

// Service patches twins of the registry. The registry connection is created
// on first use and kept for the lifetime of the Service.
type Service struct {
	connectionString string
	pageSize         int
	maxInFlight      int

	connect Connector
	journal journal.Journal
	logger  zerolog.Logger

	mu       sync.Mutex
	registry Registry
}

// Option configures Service.
type Option func(s *Service)

func WithJournal(j journal.Journal) Option {
	return func(s *Service) { s.journal = j }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l.With().Str("pkg", "twin").Logger() }
}

// WithConnector replaces IoT Hub connector.
func WithConnector(c Connector) Option {
	return func(s *Service) { s.connect = c }
}

// New creates Service. Nothing is sent to the registry until the first call.
func New(cfg config.IoTHub, opts ...Option) *Service {
	s := &Service{
		connectionString: cfg.ConnectionString,
		pageSize:         cfg.PageSize,
		maxInFlight:      cfg.MaxInFlight,
		journal:          journal.Noop(),
		logger:           zerolog.Nop(),
	}

	if s.pageSize <= 0 {
		s.pageSize = DefaultPageSize
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.connect == nil {
		s.connect = IoTHubConnector(
			iothubOptions(cfg, s.logger)...,
		)
	}

	return s
}

// ClassQuery builds query selecting twins whose class tag equals deviceClass.
// Values which could escape the string literal are rejected.
func ClassQuery(deviceClass string) (string, error) {
	if deviceClass == "" {
		return "", model.ErrEmptyDeviceClass
	}

	for _, r := range deviceClass {
		if r == '\'' || r == '"' || r == '\\' || unicode.IsControl(r) {
			return "", fmt.Errorf("%q: %w", deviceClass, model.ErrInvalidDeviceClass)
		}
	}

	return "SELECT * FROM devices WHERE tags.class = '" + deviceClass + "'", nil
}

// ApplyTwinPatchToClass patches every twin tagged with deviceClass.
func (s *Service) ApplyTwinPatchToClass(ctx context.Context, deviceClass string, patch model.TwinPatch) ([]Twin, error) {
	twins, err := s.QueryTwinsByDeviceClass(ctx, deviceClass)
	if err != nil {
		return nil, err
	}

	return s.updateTwins(ctx, deviceClass, twins, patch)
}

// UpdateTwins applies patch to all twins concurrently. On success the updated
// twins are returned in the order of the input. On failure the first observed
// error is returned while the other updates still run to completion.
func (s *Service) UpdateTwins(ctx context.Context, twins []Twin, patch model.TwinPatch) ([]Twin, error) {
	return s.updateTwins(ctx, "", twins, patch)
}

func (s *Service) updateTwins(ctx context.Context, deviceClass string, twins []Twin, patch model.TwinPatch) ([]Twin, error) {
	if len(twins) == 0 {
		return []Twin{}, nil
	}

	if fcontext.BatchID(ctx) == "" {
		ctx = fcontext.WithBatchID(ctx, uuid.New())
	}

	logger := s.log(ctx).With().Str("device_class", deviceClass).Int("twins", len(twins)).Logger()
	logger.Debug().Msg("updating twins")

	updated := make([]Twin, len(twins))

	var g errgroup.Group
	if s.maxInFlight > 0 {
		g.SetLimit(s.maxInFlight)
	}

	for i := range twins {
		i, twin := i, twins[i]

		g.Go(func() error {
			if twin == nil {
				return fmt.Errorf("twin #%d: %w", i, model.ErrMissingParameter)
			}

			start := time.Now()
			result, err := twin.Update(ctx, patch)
			metrics.RecordUpdate(ctx, start, err)
			s.record(ctx, deviceClass, twin.DeviceID(), err)

			if err != nil {
				logger.Error().Err(err).Str("device_id", twin.DeviceID()).Msg("updating twin")

				return fmt.Errorf("updating twin %s: %w", twin.DeviceID(), err)
			}

			updated[i] = result

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("batch failed")

		return nil, err
	}

	logger.Info().Msg("twins updated")

	return updated, nil
}

// QueryTwinsByDeviceClass returns all twins tagged with deviceClass. Pages
// are fetched one after another until the registry reports no more results.
func (s *Service) QueryTwinsByDeviceClass(ctx context.Context, deviceClass string) ([]Twin, error) {
	logger := s.log(ctx).With().Str("device_class", deviceClass).Logger()

	sql, err := ClassQuery(deviceClass)
	if err != nil {
		logger.Error().Err(err).Msg("building query")

		return nil, err
	}

	registry, err := s.connection()
	if err != nil {
		return nil, err
	}

	query := registry.CreateQuery(sql, s.pageSize)
	twins := make([]Twin, 0, s.pageSize)

	for {
		page, err := query.NextAsTwin(ctx)
		metrics.RecordPage(ctx, deviceClass, len(page), err)
		if err != nil {
			logger.Error().Err(err).Int("fetched", len(twins)).Msg("failed to fetch the results")

			return nil, fmt.Errorf("querying twins of class %s: %w", deviceClass, err)
		}

		twins = append(twins, page...)

		if !query.HasMoreResults() {
			break
		}
	}

	logger.Debug().Int("twins", len(twins)).Msg("query drained")

	return twins, nil
}

// connection returns registry connection creating it on first call. Failed
// attempts are not remembered.
func (s *Service) connection() (Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registry != nil {
		return s.registry, nil
	}

	registry, err := s.connect(s.connectionString)
	if err != nil {
		s.logger.Error().Err(err).Msg("connecting to registry")

		return nil, fmt.Errorf("connecting to registry: %w", err)
	}

	s.registry = registry

	return registry, nil
}

func (s *Service) record(ctx context.Context, deviceClass, deviceID string, err error) {
	entry := journal.Entry{
		BatchID:     fcontext.BatchID(ctx),
		DeviceID:    deviceID,
		DeviceClass: deviceClass,
		Status:      journal.StatusOK,
		At:          time.Now().UTC(),
	}

	if err != nil {
		entry.Status = journal.StatusFailed
		entry.Error = err.Error()
	}

	if errj := s.journal.Record(ctx, entry); errj != nil {
		s.log(ctx).Warn().Err(errj).Str("device_id", deviceID).Msg("journaling outcome")
	}
}

func (s *Service) log(ctx context.Context) *zerolog.Logger {
	lctx := s.logger.With()
	if rid := fcontext.RequestID(ctx); rid != "" {
		lctx = lctx.Str("request_id", rid)
	}

	if bid := fcontext.BatchID(ctx); bid != "" {
		lctx = lctx.Str("batch_id", bid)
	}

	l := lctx.Logger()
	return &l
}

func iothubOptions(cfg config.IoTHub, logger zerolog.Logger) []iothub.Option {
	opts := []iothub.Option{
		iothub.WithAPIVersion(cfg.APIVersion),
		iothub.WithTokenTTL(cfg.TokenTTL.Std()),
		iothub.WithLogger(logger),
	}

	if to := cfg.Timeout.Std(); to > 0 {
		opts = append(opts, iothub.WithHTTPClient(&http.Client{Timeout: to}))
	}

	return opts
}
