// Package cmstest runs an in-process content backend for handler tests.
package cmstest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"schoolsite/internal/cmsclient"
	"schoolsite/pkg/logger"
)

// Request is a call the fake backend received.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Auth   string
	Body   map[string]any
}

// Data returns the "data" object of a create body.
func (r Request) Data() map[string]any {
	d, _ := r.Body["data"].(map[string]any)
	return d
}

type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []Request
}

// New starts a backend that answers 404 for every path until routes are added.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{routes: map[string]http.HandlerFunc{}}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *Server) URL() string { return s.srv.URL }

// Handle routes "METHOD /path" or "/path" (any method) to h.
func (s *Server) Handle(pattern string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[pattern] = h
}

// JSON answers pattern with a fixed body.
func (s *Server) JSON(pattern string, status int, body string) {
	s.Handle(pattern, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

// Client returns a client without retries or cache.
func (s *Server) Client() *cmsclient.Client {
	return cmsclient.New(cmsclient.Config{BaseURL: s.srv.URL, Timeout: 5 * time.Second},
		cmsclient.WithLogger(logger.Nop()), cmsclient.WithBackoff(time.Millisecond))
}

// Requests returns the calls received for path, oldest first.
func (s *Server) Requests(path string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Last returns the latest call for path.
func (s *Server) Last(path string) (Request, bool) {
	reqs := s.Requests(path)
	if len(reqs) == 0 {
		return Request{}, false
	}
	return reqs[len(reqs)-1], true
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	rec := Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Auth: r.Header.Get("Authorization")}
	if r.Body != nil {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &rec.Body)
		r.Body = io.NopCloser(bytes.NewReader(b))
	}

	s.mu.Lock()
	s.requests = append(s.requests, rec)
	h, ok := s.routes[r.Method+" "+r.URL.Path]
	if !ok {
		h, ok = s.routes[r.URL.Path]
	}
	s.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"data":null,"error":{"status":404,"message":"Not Found"}}`)
		return
	}
	h(w, r)
}
