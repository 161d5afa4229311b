package cmsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"

	"schoolsite/pkg/cms"
	"schoolsite/pkg/logger"
)

var (
	ErrNotFound    = errors.New("cms: not found")
	ErrUnavailable = errors.New("cms: unavailable")
)

// APIError is a non-2xx answer from the content backend.
type APIError struct {
	Status  int
	Message string
	Path    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cms %s: %d %s", e.Path, e.Status, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 answers.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Observer receives request outcomes. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveCMS(collection, method, outcome string, took time.Duration)
	CacheHit()
}

type Config struct {
	BaseURL       string
	APIToken      string
	Timeout       time.Duration
	RetryAttempts uint64
	CacheTTL      time.Duration
	CacheSize     int
}

type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

type Client struct {
	http     *resty.Client
	token    string
	retries  uint64
	backoff  time.Duration
	cache    *expirable.LRU[string, []byte]
	observer Observer
	log      logger.Logger
}

type Option func(*Client)

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithBackoff sets the base delay between retries.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		token:   cfg.APIToken,
		retries: cfg.RetryAttempts,
		backoff: 200 * time.Millisecond,
		log:     logger.Default(),
	}
	if cfg.CacheTTL > 0 && cfg.CacheSize > 0 {
		c.cache = expirable.NewLRU[string, []byte](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Purge drops every cached read.
func (c *Client) Purge() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

// Uncached returns a client sharing c's transport whose reads always go to
// the CMS. Use it for lookups that guard a write.
func (c *Client) Uncached() *Client {
	cp := *c
	cp.cache = nil
	return &cp
}

// List fetches a collection. token is the end user's CMS token; when empty
// the server token is used and the answer may be served from cache.
func (c *Client) List(ctx context.Context, collection string, q *Query, token string) ([]cms.Row, Pagination, error) {
	body, err := c.get(ctx, collection, "/api/"+collection, q, token)
	if err != nil {
		return nil, Pagination{}, err
	}
	payload, err := decode(body)
	if err != nil {
		return nil, Pagination{}, err
	}

	var pg Pagination
	if p := gjson.GetBytes(body, "meta.pagination"); p.Exists() {
		_ = json.Unmarshal([]byte(p.Raw), &pg)
	}
	return cms.ListRows(payload), pg, nil
}

// Get fetches one item by id or documentId.
func (c *Client) Get(ctx context.Context, collection, id string, q *Query, token string) (cms.Row, error) {
	body, err := c.get(ctx, collection, "/api/"+collection+"/"+url.PathEscape(id), q, token)
	if err != nil {
		return nil, err
	}
	payload, err := decode(body)
	if err != nil {
		return nil, err
	}
	row := cms.ItemRow(payload)
	if row == nil {
		return nil, ErrNotFound
	}
	return row, nil
}

// First returns the first row of a filtered list, or ErrNotFound.
func (c *Client) First(ctx context.Context, collection string, q *Query, token string) (cms.Row, error) {
	if q == nil {
		q = NewQuery()
	}
	rows, _, err := c.List(ctx, collection, q.PageSize(1), token)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// Create posts {"data": data} to a collection and returns the created row.
func (c *Client) Create(ctx context.Context, collection string, data any, token string) (cms.Row, error) {
	path := "/api/" + collection
	start := time.Now()
	resp, err := c.request(ctx, token).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"data": data}).
		Post(path)
	if err != nil {
		c.observe(collection, http.MethodPost, "error", start)
		return nil, fmt.Errorf("cms create %s: %w: %w", collection, ErrUnavailable, err)
	}
	if resp.IsError() {
		c.observe(collection, http.MethodPost, outcome(resp.StatusCode()), start)
		return nil, apiError(path, resp)
	}
	c.observe(collection, http.MethodPost, "ok", start)

	payload, err := decode(resp.Body())
	if err != nil {
		return nil, err
	}
	row := cms.ItemRow(payload)
	if row == nil {
		row = cms.Row{}
	}
	return row, nil
}

// LoginResult is the answer of the local auth provider.
type LoginResult struct {
	JWT  string
	User cms.Row
}

// Login verifies credentials with the backend's local auth provider.
func (c *Client) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	const path = "/api/auth/local"
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"identifier": identifier, "password": password}).
		Post(path)
	if err != nil {
		c.observe("auth", http.MethodPost, "error", start)
		return nil, fmt.Errorf("cms login: %w: %w", ErrUnavailable, err)
	}
	if resp.IsError() {
		c.observe("auth", http.MethodPost, outcome(resp.StatusCode()), start)
		return nil, apiError(path, resp)
	}
	c.observe("auth", http.MethodPost, "ok", start)

	jwt := gjson.GetBytes(resp.Body(), "jwt").String()
	if jwt == "" {
		return nil, &APIError{Status: http.StatusBadGateway, Message: "login answer without jwt", Path: path}
	}
	var user map[string]any
	if u := gjson.GetBytes(resp.Body(), "user"); u.IsObject() {
		_ = json.Unmarshal([]byte(u.Raw), &user)
	}
	return &LoginResult{JWT: jwt, User: cms.Row(user)}, nil
}

// Ping checks that the backend answers at all. Any HTTP status counts.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/_health")
	if err != nil {
		return fmt.Errorf("cms ping: %w: %w", ErrUnavailable, err)
	}
	if resp.StatusCode() >= 500 {
		return &APIError{Status: resp.StatusCode(), Message: "unhealthy", Path: "/_health"}
	}
	return nil
}

func (c *Client) request(ctx context.Context, token string) *resty.Request {
	r := c.http.R().SetContext(ctx)
	if token == "" {
		token = c.token
	}
	if token != "" {
		r.SetAuthToken(token)
	}
	return r
}

func (c *Client) get(ctx context.Context, collection, path string, q *Query, token string) ([]byte, error) {
	params := q.Values()
	cacheable := c.cache != nil && token == ""
	key := path + "?" + params.Encode()
	if cacheable {
		if b, ok := c.cache.Get(key); ok {
			if c.observer != nil {
				c.observer.CacheHit()
			}
			return b, nil
		}
	}

	var body []byte
	b := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		start := time.Now()
		resp, err := c.request(ctx, token).SetQueryParamsFromValues(params).Get(path)
		if err != nil {
			c.observe(collection, http.MethodGet, "error", start)
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", ErrUnavailable, err)
			}
			return retry.RetryableError(fmt.Errorf("%w: %w", ErrUnavailable, err))
		}
		c.observe(collection, http.MethodGet, outcome(resp.StatusCode()), start)
		if resp.StatusCode() >= 500 {
			return retry.RetryableError(apiError(path, resp))
		}
		if resp.IsError() {
			return apiError(path, resp)
		}
		body = resp.Body()
		return nil
	})
	if err != nil {
		c.log.Warn("cms request failed", "path", path, "err", err)
		return nil, fmt.Errorf("cms get %s: %w", collection, err)
	}

	if cacheable {
		c.cache.Add(key, body)
	}
	return body, nil
}

func (c *Client) observe(collection, method, result string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveCMS(collection, method, result, time.Since(start))
	}
}

func outcome(status int) string {
	switch {
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "client_error"
	default:
		return "ok"
	}
}

func apiError(path string, resp *resty.Response) *APIError {
	msg := gjson.GetBytes(resp.Body(), "error.message").String()
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}
	return &APIError{Status: resp.StatusCode(), Message: msg, Path: path}
}

func decode(body []byte) (any, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("cms decode: %w", err)
	}
	return v, nil
}

// IsBackend reports whether err came from the content backend rather than
// from local code.
func IsBackend(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) || errors.Is(err, ErrUnavailable)
}

// StatusOf returns the HTTP status carried by err, or 502 for transport
// failures. Handlers use it to mirror backend failures.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 500 {
			return http.StatusBadGateway
		}
		return apiErr.Status
	}
	return http.StatusBadGateway
}

// MessageOf returns the backend's error message when there is one.
func MessageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
