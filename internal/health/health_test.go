package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func dial(t *testing.T, c *Checker) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	c.Register(s)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func status(t *testing.T, cl healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := cl.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestCheckFollowsProbes(t *testing.T) {
	var cmsDown atomic.Bool
	c := NewChecker(time.Second)
	c.Add("cms", func(context.Context) error {
		if cmsDown.Load() {
			return errors.New("connection refused")
		}
		return nil
	})
	c.Add("db", func(context.Context) error { return nil })
	cl := dial(t, c)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, cl, ""))

	res := c.Check(context.Background())
	assert.NoError(t, res["cms"])
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, cl, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, cl, "schoolsite.cms"))

	cmsDown.Store(true)
	res = c.Check(context.Background())
	assert.Error(t, res["cms"])
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, cl, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, cl, "schoolsite.cms"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, cl, "schoolsite.db"))

	last, at := c.Last()
	assert.Error(t, last["cms"])
	assert.False(t, at.IsZero())
}

func TestProbeTimeout(t *testing.T) {
	c := NewChecker(20 * time.Millisecond)
	c.Add("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	res := c.Check(context.Background())
	assert.ErrorIs(t, res["slow"], context.DeadlineExceeded)
}

func TestRunStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var n atomic.Int32
	c := NewChecker(time.Second)
	c.Add("cms", func(context.Context) error { n.Add(1); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	require.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestReadyHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := NewChecker(time.Second)
	c.Add("db", func(context.Context) error { return nil })
	c.Add("cms", func(context.Context) error { return errors.New("cms: unavailable") })

	r := gin.New()
	r.GET("/ready", c.Ready())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"not_ready","checks":{"db":"ok","cms":"cms: unavailable"}}`, w.Body.String())
}
