// Package health probes the services the site depends on and reports the
// result over HTTP (/ready) and the standard gRPC health service.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"schoolsite/pkg/logger"
)

// ServicePrefix namespaces per-probe gRPC service names ("schoolsite.cms").
const ServicePrefix = "schoolsite."

type Probe func(ctx context.Context) error

type probe struct {
	name string
	fn   Probe
}

// Checker runs named probes. The empty gRPC service name is SERVING only
// while every probe passes.
type Checker struct {
	Timeout time.Duration

	srv    *grpchealth.Server
	probes []probe

	mu   sync.RWMutex
	last map[string]error
	at   time.Time
}

func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	srv := grpchealth.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &Checker{Timeout: timeout, srv: srv, last: map[string]error{}}
}

// Add registers a probe. Call before Check or Run.
func (c *Checker) Add(name string, fn Probe) {
	c.probes = append(c.probes, probe{name: name, fn: fn})
	c.srv.SetServingStatus(ServicePrefix+name, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Check runs every probe once and publishes the outcome.
func (c *Checker) Check(ctx context.Context) map[string]error {
	out := make(map[string]error, len(c.probes))
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, p := range c.probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, c.Timeout)
			defer cancel()
			err := p.fn(pctx)
			mu.Lock()
			out[p.name] = err
			mu.Unlock()
		}()
	}
	wg.Wait()

	overall := healthpb.HealthCheckResponse_SERVING
	for name, err := range out {
		st := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = st
		}
		c.srv.SetServingStatus(ServicePrefix+name, st)
	}
	c.srv.SetServingStatus("", overall)

	c.mu.Lock()
	c.last = out
	c.at = time.Now()
	c.mu.Unlock()
	return out
}

// Run probes every interval until ctx is done, then marks everything
// NOT_SERVING.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	log := logger.FromContext(ctx)
	report := func() {
		for name, err := range c.Check(ctx) {
			if err != nil && ctx.Err() == nil {
				log.Warn("health probe failed", "probe", name, "err", err)
			}
		}
	}
	report()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			c.srv.Shutdown()
			return
		case <-t.C:
			report()
		}
	}
}

// Last returns the most recent results and when they were taken.
func (c *Checker) Last() (map[string]error, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]error, len(c.last))
	for k, v := range c.last {
		out[k] = v
	}
	return out, c.at
}

// Register exposes the health service and server reflection on s.
func (c *Checker) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, c.srv)
	reflection.Register(s)
}

// Ready answers 200 when every probe passes and 503 otherwise.
func (c *Checker) Ready() gin.HandlerFunc {
	return func(gc *gin.Context) {
		results := c.Check(gc.Request.Context())
		checks := gin.H{}
		code := http.StatusOK
		for name, err := range results {
			if err != nil {
				checks[name] = err.Error()
				code = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		status := "ready"
		if code != http.StatusOK {
			status = "not_ready"
		}
		gc.JSON(code, gin.H{"status": status, "checks": checks})
	}
}
