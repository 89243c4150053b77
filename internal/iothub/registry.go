package iothub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fastjson"

	"github.com/ferux/twinpatcher/internal/model"
)

const (
	DefaultAPIVersion = "2021-04-12"
	DefaultTokenTTL   = time.Hour

	headerContinuation = "x-ms-continuation"
	headerMaxItemCount = "x-ms-max-item-count"
	headerIfMatch      = "If-Match"
)

// Registry talks to the twin registry of a single hub.
type Registry struct {
	client     *http.Client
	baseURL    string
	cs         ConnectionString
	apiVersion string
	tokenTTL   time.Duration
	now        func() time.Time
	logger     zerolog.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// Option configures Registry.
type Option func(r *Registry)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Registry) { r.client = c }
}

func WithAPIVersion(v string) Option {
	return func(r *Registry) {
		if v != "" {
			r.apiVersion = v
		}
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.tokenTTL = ttl
		}
	}
}

// WithBaseURL sends requests to u instead of https://<HostName>. Tokens are
// still issued for HostName.
func WithBaseURL(u string) Option {
	return func(r *Registry) { r.baseURL = u }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = l.With().Str("pkg", "iothub").Logger() }
}

// FromConnectionString creates registry client for the hub named in the
// connection string. No request is made.
func FromConnectionString(connectionString string, opts ...Option) (*Registry, error) {
	cs, err := ParseConnectionString(connectionString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	r := &Registry{
		client:     http.DefaultClient,
		baseURL:    "https://" + cs.HostName,
		cs:         cs,
		apiVersion: DefaultAPIVersion,
		tokenTTL:   DefaultTokenTTL,
		now:        time.Now,
		logger:     zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// HostName of the hub.
func (r *Registry) HostName() string { return r.cs.HostName }

// CreateQuery prepares query which fetches up to pageSize records per page.
// Nothing is sent until the first NextAsTwin call.
func (r *Registry) CreateQuery(sql string, pageSize int) *Query {
	return &Query{
		registry: r,
		sql:      sql,
		pageSize: pageSize,
		hasMore:  true,
	}
}

// authorization returns cached token and renews it when less than a tenth
// of its lifetime is left.
func (r *Registry) authorization() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.token != "" && now.Add(r.tokenTTL/10).Before(r.tokenExp) {
		return r.token
	}

	r.tokenExp = now.Add(r.tokenTTL)
	r.token = sasToken(r.cs.HostName, r.cs.SharedAccessKeyName, r.cs.SharedAccessKey, r.tokenExp)

	return r.token
}

type response struct {
	body   []byte
	header http.Header
}

func (r *Registry) performRequest(
	ctx context.Context,
	method string,
	path string,
	header http.Header,
	data interface{},
) (resp response, err error) {
	requrl := r.baseURL + path + "?api-version=" + url.QueryEscape(r.apiVersion)
	logger := r.logger.With().Str("method", method).Str("path", path).Logger()

	var reqbody io.Reader
	if data != nil {
		var reqdata []byte
		reqdata, err = json.Marshal(data)
		if err != nil {
			return resp, fmt.Errorf("marshalling request data: %w", err)
		}

		reqbody = bytes.NewReader(reqdata)

		logger.Debug().RawJSON("data", reqdata).Msg("sending request")
	} else {
		logger.Debug().Msg("sending empty request")
	}

	req, err := http.NewRequestWithContext(ctx, method, requrl, reqbody)
	if err != nil {
		return resp, fmt.Errorf("making new request: %w", err)
	}

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	req.Header.Set("Authorization", r.authorization())
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	httpresp, err := r.client.Do(req)
	if err != nil {
		return resp, fmt.Errorf("sending request: %w", err)
	}
	defer func() {
		errclose := httpresp.Body.Close()
		if errclose != nil {
			logger.Error().Err(errclose).Msg("closing response body")
		}
	}()

	body, err := ioutil.ReadAll(httpresp.Body)
	if err != nil {
		return resp, fmt.Errorf("reading body: %w", err)
	}

	logger.Debug().Int("status", httpresp.StatusCode).Int("size", len(body)).Msg("got response")

	if httpresp.StatusCode < 200 || httpresp.StatusCode > 299 {
		return resp, statusError(httpresp.StatusCode, body)
	}

	return response{body: body, header: httpresp.Header}, nil
}

func statusError(code int, body []byte) error {
	msg := errorMessage(body)

	var kind model.Error
	switch code {
	case http.StatusUnauthorized:
		kind = model.ErrUnauthorized
	case http.StatusForbidden:
		kind = model.ErrForbidden
	case http.StatusNotFound:
		kind = model.ErrNotFound
	case http.StatusPreconditionFailed:
		kind = model.ErrPreconditionFailed
	case http.StatusTooManyRequests:
		kind = model.ErrThrottled
	default:
		kind = model.ErrWrongStatusCode
	}

	if msg == "" {
		return fmt.Errorf("registry answered %d: %w", code, kind)
	}

	return fmt.Errorf("registry answered %d %q: %w", code, msg, kind)
}

// errorMessage extracts "Message" field of the registry error body.
func errorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	v, err := fastjson.ParseBytes(body)
	if err != nil {
		return ""
	}

	if msg := v.GetStringBytes("Message"); len(msg) > 0 {
		return string(msg)
	}

	return string(v.GetStringBytes("message"))
}
