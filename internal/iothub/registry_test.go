package iothub

import (
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/matryer/is"

	"github.com/ferux/twinpatcher/internal/model"
)

const testConnString = "HostName=hub.azure-devices.net;SharedAccessKeyName=owner;SharedAccessKey=a2V5"

type recordedRequest struct {
	method string
	path   string
	query  string
	header http.Header
	body   []byte
}

type fakeHub struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request, body []byte)
}

func (h *fakeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	h.mu.Lock()
	h.requests = append(h.requests, recordedRequest{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		header: r.Header.Clone(),
		body:   body,
	})
	h.mu.Unlock()

	h.handler(w, r, body)
}

func newTestRegistry(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body []byte)) (*Registry, *fakeHub) {
	t.Helper()

	hub := &fakeHub{handler: handler}
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	r, err := FromConnectionString(testConnString, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("creating registry: %v", err)
	}

	return r, hub
}

func TestFromConnectionStringInvalid(t *testing.T) {
	_, err := FromConnectionString("nonsense")
	if !errors.Is(err, model.ErrBadConnString) {
		t.Fatalf("exp ErrBadConnString got %v", err)
	}
}

func TestQueryPagination(t *testing.T) {
	is := is.New(t)

	r, hub := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		switch r.Header.Get(headerContinuation) {
		case "":
			w.Header().Set(headerContinuation, "page-2")
			_, _ = w.Write([]byte(`[{"deviceId":"d1","etag":"e1","version":3,"tags":{"class":"lamp"}},{"deviceId":"d2","etag":"e2"}]`))
		case "page-2":
			_, _ = w.Write([]byte(`[{"deviceId":"d3","etag":"e3"}]`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	q := r.CreateQuery("SELECT * FROM devices WHERE tags.class = 'lamp'", 100)
	is.True(q.HasMoreResults())

	page, err := q.NextAsTwin(context.Background())
	is.NoErr(err)
	is.Equal(len(page), 2)
	is.Equal(page[0].DeviceID, "d1")
	is.Equal(page[0].ETag, "e1")
	is.Equal(page[0].Version, int64(3))
	is.Equal(page[0].Class, "lamp")
	is.True(q.HasMoreResults())

	page, err = q.NextAsTwin(context.Background())
	is.NoErr(err)
	is.Equal(len(page), 1)
	is.Equal(page[0].DeviceID, "d3")
	is.True(!q.HasMoreResults())

	_, err = q.NextAsTwin(context.Background())
	is.True(errors.Is(err, ErrQueryDrained))

	is.Equal(len(hub.requests), 2)

	first := hub.requests[0]
	is.Equal(first.method, http.MethodPost)
	is.Equal(first.path, "/devices/query")
	is.Equal(first.query, "api-version="+DefaultAPIVersion)
	is.Equal(first.header.Get(headerMaxItemCount), "100")
	is.True(strings.HasPrefix(first.header.Get("Authorization"), "SharedAccessSignature sr=hub.azure-devices.net"))

	var sent queryRequest
	is.NoErr(json.Unmarshal(first.body, &sent))
	is.Equal(sent.Query, "SELECT * FROM devices WHERE tags.class = 'lamp'")

	is.Equal(hub.requests[1].header.Get(headerContinuation), "page-2")
}

func TestQueryKeepsRawTwin(t *testing.T) {
	is := is.New(t)

	r, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		_, _ = w.Write([]byte(`[{"deviceId":"d1","properties":{"desired":{"fw":"1.2"}}}]`))
	})

	page, err := r.CreateQuery("SELECT * FROM devices", 10).NextAsTwin(context.Background())
	is.NoErr(err)
	is.Equal(len(page), 1)

	data, err := json.Marshal(page[0])
	is.NoErr(err)
	is.Equal(string(data), `{"deviceId":"d1","properties":{"desired":{"fw":"1.2"}}}`)
}

func TestQueryErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		exp    error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, exp: model.ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, exp: model.ErrForbidden},
		{name: "throttled", status: http.StatusTooManyRequests, body: `{"Message":"ErrorCode:ThrottlingException"}`, exp: model.ErrThrottled},
		{name: "server error", status: http.StatusInternalServerError, exp: model.ErrWrongStatusCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			q := r.CreateQuery("SELECT * FROM devices", 100)
			_, err := q.NextAsTwin(context.Background())
			if !errors.Is(err, tt.exp) {
				t.Fatalf("exp %v got %v", tt.exp, err)
			}

			if tt.body != "" && !strings.Contains(err.Error(), "ThrottlingException") {
				t.Fatalf("exp registry message in %v", err)
			}
		})
	}
}

func TestQueryMalformedPage(t *testing.T) {
	r, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	})

	if _, err := r.CreateQuery("SELECT * FROM devices", 100).NextAsTwin(context.Background()); err == nil {
		t.Fatal("exp error for non array page")
	}
}

func TestTwinUpdate(t *testing.T) {
	is := is.New(t)

	r, hub := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		_, _ = w.Write([]byte(`{"deviceId":"dev 1","etag":"AAAAAAAAAAI=","version":5,"tags":{"class":"lamp","floor":2}}`))
	})

	twin := &Twin{registry: r, DeviceID: "dev 1", ETag: "AAAAAAAAAAE="}
	patch := model.TwinPatch{Tags: map[string]interface{}{"floor": 2}}

	updated, err := twin.Update(context.Background(), patch)
	is.NoErr(err)
	is.Equal(updated.ETag, "AAAAAAAAAAI=")
	is.Equal(updated.Version, int64(5))

	is.Equal(len(hub.requests), 1)
	req := hub.requests[0]
	is.Equal(req.method, http.MethodPatch)
	is.Equal(req.path, "/twins/dev 1")
	is.Equal(req.header.Get(headerIfMatch), `"AAAAAAAAAAE="`)

	var sent model.TwinPatch
	is.NoErr(json.Unmarshal(req.body, &sent))
	is.Equal(sent.Tags["floor"], float64(2))
	is.True(sent.Properties == nil)
}

func TestTwinUpdatePreconditionFailed(t *testing.T) {
	r, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		w.WriteHeader(http.StatusPreconditionFailed)
	})

	twin := &Twin{registry: r, DeviceID: "d1"}
	_, err := twin.Update(context.Background(), model.TwinPatch{})
	if !errors.Is(err, model.ErrPreconditionFailed) {
		t.Fatalf("exp ErrPreconditionFailed got %v", err)
	}
}

func TestTwinUpdateDetached(t *testing.T) {
	_, err := (&Twin{DeviceID: "d1"}).Update(context.Background(), model.TwinPatch{})
	if !errors.Is(err, model.ErrClientNotPrepared) {
		t.Fatalf("exp ErrClientNotPrepared got %v", err)
	}
}

func TestIfMatch(t *testing.T) {
	tests := map[string]string{
		"":         "*",
		"*":        "*",
		"abc":      `"abc"`,
		`"quoted"`: `"quoted"`,
	}

	for in, exp := range tests {
		if got := ifMatch(in); got != exp {
			t.Errorf("ifMatch(%q) = %q, want %q", in, got, exp)
		}
	}
}
