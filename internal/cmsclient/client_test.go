package cmsclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolsite/pkg/logger"
)

type countingObserver struct {
	calls atomic.Int32
	hits  atomic.Int32
}

func (o *countingObserver) ObserveCMS(string, string, string, time.Duration) { o.calls.Add(1) }
func (o *countingObserver) CacheHit()                                        { o.hits.Add(1) }

func newTestClient(t *testing.T, h http.HandlerFunc, cfg Config, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	opts = append([]Option{WithLogger(logger.Nop()), WithBackoff(time.Millisecond)}, opts...)
	return New(cfg, opts...)
}

func TestListEnvelopedAndPagination(t *testing.T) {
	var gotQuery, gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("filters[slug][$eq]")
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/api/blogs", r.URL.Path)
		_, _ = io.WriteString(w, `{"data":[{"id":1,"attributes":{"title":"A"}},{"id":2,"title":"B"}],"meta":{"pagination":{"page":1,"pageSize":25,"pageCount":1,"total":2}}}`)
	}, Config{APIToken: "server-token"})

	rows, pg, err := c.List(context.Background(), "blogs", NewQuery().Eq("open-house", "slug"), "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A", rows[0].Get("title"))
	assert.Equal(t, "B", rows[1].Get("title"))
	assert.Equal(t, 2, pg.Total)
	assert.Equal(t, "open-house", gotQuery)
	assert.Equal(t, "Bearer server-token", gotAuth)
}

func TestListBareArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":1},{"id":2},{"id":3}]`)
	}, Config{})
	rows, _, err := c.List(context.Background(), "events", nil, "")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestUserTokenOverridesServerToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `{"data":[]}`)
	}, Config{APIToken: "server-token"})
	_, _, err := c.List(context.Background(), "parents", nil, "user-token")
	require.NoError(t, err)
	assert.Equal(t, "Bearer user-token", gotAuth)
}

func TestGetNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"data":null,"error":{"status":404,"message":"Not Found"}}`)
	}, Config{RetryAttempts: 3})

	_, err := c.Get(context.Background(), "blogs", "9", nil, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	assert.Equal(t, "Not Found", MessageOf(err))
}

func TestGetNullData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":null}`)
	}, Config{})
	_, err := c.Get(context.Background(), "blogs", "9", nil, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetEscapesID(t *testing.T) {
	var path, rawPath string
	var query url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path, rawPath, query = r.URL.Path, r.URL.EscapedPath(), r.URL.Query()
		_, _ = io.WriteString(w, `{"data":{"id":1,"attributes":{"name":"Robotics"}}}`)
	}, Config{})

	row, err := c.Get(context.Background(), "hs-robot-categories", "1?status=draft&fields[0]=secret", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "Robotics", row.String("name"))
	assert.Equal(t, "/api/hs-robot-categories/1?status=draft&fields[0]=secret", path)
	assert.Contains(t, rawPath, "%3F")
	assert.Empty(t, query.Get("status"))
	assert.Empty(t, query.Get("fields[0]"))
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"id":4,"title":"ok"}}`)
	}, Config{RetryAttempts: 3})

	row, err := c.Get(context.Background(), "blogs", "4", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", row.Get("title"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom"}}`)
	}, Config{RetryAttempts: 2})

	_, _, err := c.List(context.Background(), "blogs", nil, "")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
	assert.Equal(t, "boom", MessageOf(err))
}

func TestCacheOnlyForAnonymousReads(t *testing.T) {
	var calls atomic.Int32
	obs := &countingObserver{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"data":[{"id":1}]}`)
	}, Config{CacheTTL: time.Minute, CacheSize: 8}, WithObserver(obs))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _, err := c.List(ctx, "testimonials", nil, "")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(2), obs.hits.Load())

	_, _, err := c.List(ctx, "testimonials", nil, "user")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	c.Purge()
	_, _, err = c.List(ctx, "testimonials", nil, "")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestUncachedSkipsCache(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"data":[{"id":1}]}`)
	}, Config{CacheTTL: time.Minute, CacheSize: 8})

	ctx := context.Background()
	_, _, err := c.List(ctx, "donators", nil, "")
	require.NoError(t, err)
	_, _, err = c.Uncached().List(ctx, "donators", nil, "")
	require.NoError(t, err)
	_, _, err = c.Uncached().List(ctx, "donators", nil, "")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	_, _, err = c.List(ctx, "donators", nil, "")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load(), "the original client keeps its cache")
}

func TestCreateWrapsData(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"data":{"id":11,"documentId":"doc11"}}`)
	}, Config{})

	row, err := c.Create(context.Background(), "admissions-submissions", map[string]any{"payload": map[string]any{"a": 1}}, "")
	require.NoError(t, err)
	assert.Equal(t, "doc11", row.DocumentID())
	assert.Equal(t, map[string]any{"data": map[string]any{"payload": map[string]any{"a": 1.0}}}, body)
}

func TestCreateValidationError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"data":null,"error":{"status":400,"name":"ValidationError","message":"email must be valid"}}`)
	}, Config{})

	_, err := c.Create(context.Background(), "spothights", map[string]any{}, "")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))
	assert.Equal(t, "email must be valid", MessageOf(err))
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/local", r.URL.Path)
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in["password"] != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"Invalid identifier or password"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"jwt":"cms-jwt","user":{"id":5,"email":"mom@example.com"}}`)
	}, Config{})

	res, err := c.Login(context.Background(), "mom@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "cms-jwt", res.JWT)
	assert.Equal(t, "5", res.User.ID())

	_, err = c.Login(context.Background(), "mom@example.com", "nope")
	require.Error(t, err)
	assert.Equal(t, "Invalid identifier or password", MessageOf(err))
}

func TestFirst(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("pagination[pageSize]"))
		_, _ = io.WriteString(w, `{"data":[]}`)
	}, Config{})
	_, err := c.First(context.Background(), "donators", NewQuery().Eq("x@y.z", "email"), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, Config{})
	assert.NoError(t, c.Ping(context.Background()))
}
