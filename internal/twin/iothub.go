package twin

import (
	"context"

	"github.com/ferux/twinpatcher/internal/iothub"
	"github.com/ferux/twinpatcher/internal/model"
)

// IoTHubConnector connects to the IoT Hub named in the connection string.
func IoTHubConnector(opts ...iothub.Option) Connector {
	return func(connectionString string) (Registry, error) {
		r, err := iothub.FromConnectionString(connectionString, opts...)
		if err != nil {
			return nil, err
		}

		return hubRegistry{r: r}, nil
	}
}

type hubRegistry struct {
	r *iothub.Registry
}

func (h hubRegistry) CreateQuery(sql string, pageSize int) Query {
	return hubQuery{q: h.r.CreateQuery(sql, pageSize)}
}

type hubQuery struct {
	q *iothub.Query
}

func (h hubQuery) HasMoreResults() bool { return h.q.HasMoreResults() }

func (h hubQuery) NextAsTwin(ctx context.Context) ([]Twin, error) {
	page, err := h.q.NextAsTwin(ctx)
	if err != nil {
		return nil, err
	}

	twins := make([]Twin, len(page))
	for i, t := range page {
		twins[i] = hubTwin{t: t}
	}

	return twins, nil
}

type hubTwin struct {
	t *iothub.Twin
}

func (h hubTwin) DeviceID() string { return h.t.DeviceID }

func (h hubTwin) MarshalJSON() ([]byte, error) { return h.t.MarshalJSON() }

func (h hubTwin) Update(ctx context.Context, patch model.TwinPatch) (Twin, error) {
	updated, err := h.t.Update(ctx, patch)
	if err != nil {
		return nil, err
	}

	return hubTwin{t: updated}, nil
}
