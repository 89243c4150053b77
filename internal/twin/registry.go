package twin

import (
	"context"
	"encoding/json"

	"github.com/ferux/twinpatcher/internal/model"
)

// Twin is a handle of a device twin stored in the registry.
type Twin interface {
	json.Marshaler

	DeviceID() string
	Update(ctx context.Context, patch model.TwinPatch) (Twin, error)
}

// Query is a paged cursor over query results.
type Query interface {
	HasMoreResults() bool
	NextAsTwin(ctx context.Context) ([]Twin, error)
}

// Registry runs queries against the twin registry.
type Registry interface {
	CreateQuery(sql string, pageSize int) Query
}

// Connector creates registry connection from connection string.
type Connector func(connectionString string) (Registry, error)
