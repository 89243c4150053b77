// Package journal keeps outcomes of twin patch batches.
//
// Failed batches leave an unknown subset of twins patched: the registry
// already applied the updates which succeeded. The journal lets an operator
// find out which ones.
package journal

import (
	"context"
	"time"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry is an outcome of a single twin update.
type Entry struct {
	BatchID     string    `json:"batch_id"`
	DeviceID    string    `json:"device_id"`
	DeviceClass string    `json:"device_class,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// Journal records update outcomes.
type Journal interface {
	Record(ctx context.Context, entry Entry) error
	Batch(ctx context.Context, batchID string) ([]Entry, error)
	Close() error
}

type noop struct{}

// Noop returns journal which keeps nothing.
func Noop() Journal { return noop{} }

func (noop) Record(_ context.Context, _ Entry) error { return nil }

func (noop) Batch(_ context.Context, _ string) ([]Entry, error) { return []Entry{}, nil }

func (noop) Close() error { return nil }
