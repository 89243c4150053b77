package iothub

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/valyala/fastjson"

	"github.com/ferux/twinpatcher/internal/model"
)

// ErrQueryDrained is returned when next page is requested after the last one.
const ErrQueryDrained model.Error = "query has no more results"

// Query is a cursor over paged query results. It is not safe for concurrent
// use and cannot be restarted.
type Query struct {
	registry *Registry
	sql      string
	pageSize int

	continuation string
	hasMore      bool
}

type queryRequest struct {
	Query string `json:"query"`
}

// SQL returns query text.
func (q *Query) SQL() string { return q.sql }

// HasMoreResults reports whether the next NextAsTwin call can return records.
// It is true before the first page is fetched.
func (q *Query) HasMoreResults() bool { return q.hasMore }

// NextAsTwin fetches next page of results as twins.
func (q *Query) NextAsTwin(ctx context.Context) ([]*Twin, error) {
	if !q.hasMore {
		return nil, ErrQueryDrained
	}

	header := make(http.Header)
	if q.pageSize > 0 {
		header.Set(headerMaxItemCount, strconv.Itoa(q.pageSize))
	}

	if q.continuation != "" {
		header.Set(headerContinuation, q.continuation)
	}

	resp, err := q.registry.performRequest(ctx, http.MethodPost, "/devices/query", header, queryRequest{Query: q.sql})
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}

	twins, err := parseTwins(q.registry, resp.body)
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	q.continuation = resp.header.Get(headerContinuation)
	q.hasMore = q.continuation != ""

	return twins, nil
}

func parseTwins(r *Registry, body []byte) ([]*Twin, error) {
	var p fastjson.Parser

	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, err
	}

	items, err := v.Array()
	if err != nil {
		return nil, err
	}

	twins := make([]*Twin, 0, len(items))
	for _, item := range items {
		twin, err := twinFromValue(r, item)
		if err != nil {
			return nil, err
		}

		twins = append(twins, twin)
	}

	return twins, nil
}
