package iothub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/valyala/fastjson"

	"github.com/ferux/twinpatcher/internal/model"
)

// Twin is a device twin as returned by the registry.
type Twin struct {
	registry *Registry

	DeviceID string
	ETag     string
	Version  int64
	Class    string

	raw []byte
}

// Raw returns twin document as received.
func (t *Twin) Raw() []byte { return t.raw }

// MarshalJSON writes the twin document unchanged.
func (t *Twin) MarshalJSON() ([]byte, error) {
	if len(t.raw) > 0 {
		return t.raw, nil
	}

	return json.Marshal(struct {
		DeviceID string `json:"deviceId"`
		ETag     string `json:"etag,omitempty"`
	}{t.DeviceID, t.ETag})
}

// Update applies patch to the twin guarded by its etag and returns the twin
// the registry stored.
func (t *Twin) Update(ctx context.Context, patch model.TwinPatch) (*Twin, error) {
	if t.registry == nil {
		return nil, model.ErrClientNotPrepared
	}

	if t.DeviceID == "" {
		return nil, fmt.Errorf("device id: %w", model.ErrMissingParameter)
	}

	header := make(http.Header)
	header.Set(headerIfMatch, ifMatch(t.ETag))

	resp, err := t.registry.performRequest(ctx, http.MethodPatch, "/twins/"+url.PathEscape(t.DeviceID), header, patch)
	if err != nil {
		return nil, fmt.Errorf("patching twin %s: %w", t.DeviceID, err)
	}

	v, err := fastjson.ParseBytes(resp.body)
	if err != nil {
		return nil, fmt.Errorf("parsing twin %s: %w", t.DeviceID, err)
	}

	return twinFromValue(t.registry, v)
}

func ifMatch(etag string) string {
	if etag == "" || etag == "*" {
		return "*"
	}

	if strings.HasPrefix(etag, `"`) {
		return etag
	}

	return `"` + etag + `"`
}

func twinFromValue(r *Registry, v *fastjson.Value) (*Twin, error) {
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("twin must be an object, got %s", v.Type())
	}

	return &Twin{
		registry: r,
		DeviceID: string(v.GetStringBytes("deviceId")),
		ETag:     string(v.GetStringBytes("etag")),
		Version:  int64(v.GetInt("version")),
		Class:    string(v.GetStringBytes("tags", "class")),
		raw:      v.MarshalTo(nil),
	}, nil
}
