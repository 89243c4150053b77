package fcontext

import (
	"context"

	"github.com/rs/zerolog"
)

type requestID struct{}

type batchID struct{}

// WithRequestID adds request id to ctx
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestID{}, rid)
}

// RequestID gets request id from context
func RequestID(ctx context.Context) string {
	rid, _ := ctx.Value(requestID{}).(string)
	return rid
}

// WithBatchID marks ctx with id of the patch batch it serves.
func WithBatchID(ctx context.Context, bid string) context.Context {
	return context.WithValue(ctx, batchID{}, bid)
}

// BatchID gets batch id from context.
func BatchID(ctx context.Context) string {
	bid, _ := ctx.Value(batchID{}).(string)
	return bid
}

// Logger returns logger attached to ctx enriched with ids stored in it.
// Falls back to disabled logger.
func Logger(ctx context.Context) *zerolog.Logger {
	logger := zerolog.Ctx(ctx)

	lctx := logger.With()
	if rid := RequestID(ctx); rid != "" {
		lctx = lctx.Str("request_id", rid)
	}

	if bid := BatchID(ctx); bid != "" {
		lctx = lctx.Str("batch_id", bid)
	}

	l := lctx.Logger()
	return &l
}
