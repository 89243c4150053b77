package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/pborman/uuid"
	"github.com/rs/zerolog"

	"github.com/ferux/twinpatcher/internal/fcontext"
	"github.com/ferux/twinpatcher/internal/model"
	"github.com/ferux/twinpatcher/internal/templates"
)

func (api *HTTP) handleInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(contentType, contentJSON)
		w.WriteHeader(http.StatusOK)

		(&templates.MarshalData{
			Revision:     api.info.Revision,
			Branch:       api.info.Branch,
			Environment:  api.info.Environment,
			BootTime:     api.bootTime.String(),
			Uptime:       time.Since(api.bootTime).Seconds(),
			RequestCount: int(atomic.LoadInt64(&api.requestCount)),
		}).WriteJSON(w)
	}
}

func (api *HTTP) handleQueryTwins() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		deviceClass := mux.Vars(r)["class"]

		twins, err := api.twins.QueryTwinsByDeviceClass(ctx, deviceClass)
		if err != nil {
			api.serveError(ctx, w, r, model.ServiceError{
				Message:   err.Error(),
				RequestID: fcontext.RequestID(ctx),
				Code:      statusCode(err),
			})

			return
		}

		asJSON(ctx, w, twins, http.StatusOK)
	}
}

func (api *HTTP) handleApplyPatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rid := fcontext.RequestID(ctx)
		deviceClass := mux.Vars(r)["class"]

		var patch model.TwinPatch
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&patch)
		if err != nil {
			api.serveError(ctx, w, r, model.ServiceError{
				Message:   "unable to unmarshal patch",
				RequestID: rid,
				Code:      http.StatusBadRequest,
			})

			return
		}

		if patch.IsEmpty() {
			api.serveError(ctx, w, r, model.ServiceError{
				Message:   "patch is empty",
				RequestID: rid,
				Code:      http.StatusUnprocessableEntity,
			})

			return
		}

		bid := uuid.New()
		ctx = fcontext.WithBatchID(ctx, bid)
		w.Header().Set(headerBatchID, bid)

		fcontext.Logger(ctx).Debug().Str("device_class", deviceClass).Msg("applying patch")

		updated, err := api.twins.ApplyTwinPatchToClass(ctx, deviceClass, patch)
		if err != nil {
			go api.notifyFailure(deviceClass, bid, err)

			api.serveError(ctx, w, r, model.ServiceError{
				Message:   err.Error(),
				RequestID: rid,
				BatchID:   bid,
				Code:      statusCode(err),
			})

			return
		}

		result := templates.PatchResult{
			BatchID:     bid,
			DeviceClass: deviceClass,
			Updated:     len(updated),
			DeviceIDs:   make([]string, len(updated)),
		}

		for i, t := range updated {
			result.DeviceIDs[i] = t.DeviceID()
		}

		w.Header().Set(contentType, contentJSON)
		w.WriteHeader(http.StatusOK)

		result.WriteJSON(w)
	}
}

func (api *HTTP) handleGetBatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		bid := mux.Vars(r)["id"]

		entries, err := api.journal.Batch(ctx, bid)
		if err != nil {
			api.serveError(ctx, w, r, model.ServiceError{
				Message:   err.Error(),
				RequestID: fcontext.RequestID(ctx),
				BatchID:   bid,
				Code:      statusCode(err),
			})

			return
		}

		asJSON(ctx, w, entries, http.StatusOK)
	}
}

// notifyFailure tells operators that a batch left twins in unknown state.
func (api *HTTP) notifyFailure(deviceClass, bid string, cause error) {
	if api.notify.API == "" || api.notify.ChatID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(api.logger.WithContext(context.Background()), time.Second*15)
	defer cancel()

	text := fmt.Sprintf("patch of class %s failed (batch %s): %v", deviceClass, bid, cause)

	err := api.tgclient.SendMessageViaHTTP(ctx, api.notify.API, api.notify.ChatID, text)
	if err != nil {
		api.logger.Error().Err(err).Str("batch_id", bid).Msg("can't notify telegram")
	}
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, model.ErrEmptyDeviceClass), errors.Is(err, model.ErrInvalidDeviceClass):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrThrottled):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrBadConnString):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func (api *HTTP) serveError(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) {
	var (
		logger     = zerolog.Ctx(ctx)
		rid        = fcontext.RequestID(ctx)
		eventLevel = sentry.LevelFatal

		responseError model.ServiceError
	)

	if !errors.As(err, &responseError) {
		responseError.Message = err.Error()
		responseError.RequestID = rid
	}

	if responseError.Code == 0 {
		responseError.Code = http.StatusInternalServerError
	}

	if responseError.Code != http.StatusInternalServerError {
		eventLevel = sentry.LevelError
	}

	logger.Error().Err(responseError).Msg("captured error")

	if api.notifier != nil && responseError.Code >= http.StatusInternalServerError {
		event := sentry.NewEvent()

		event.Exception = []sentry.Exception{{Stacktrace: sentry.NewStacktrace()}}
		event.Message = responseError.Message
		event.Environment = api.info.Environment
		event.Release = api.info.Revision
		event.Level = eventLevel
		event.Contexts["request_id"] = rid
		if responseError.BatchID != "" {
			event.Contexts["batch_id"] = responseError.BatchID
		}
		event.Request = event.Request.FromHTTPRequest(r)

		api.notifier.CaptureEvent(event, &sentry.EventHint{
			OriginalException: err,
		}, sentry.NewScope())
	}

	asJSON(ctx, w, responseError, responseError.Code)
}
