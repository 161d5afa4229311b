// Package mirror snapshots public CMS collections to disk and serves them
// back in the backend's own envelope, so the API can run without the CMS.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"schoolsite/internal/cmsclient"
	"schoolsite/pkg/cms"
	"schoolsite/pkg/logger"
)

// Public lists the collections the public pages read.
var Public = []string{
	"blogs",
	"events",
	"newspapers",
	"testimonials",
	"hs-robot-categories",
	"spothights",
	"resources",
}

const snapshotPageSize = 100

type file struct {
	Data []cms.Row `json:"data"`
	Meta meta      `json:"meta"`
}

type meta struct {
	Pagination cmsclient.Pagination `json:"pagination"`
}

// Snapshot pages through each collection and writes <dir>/<collection>.json.
func Snapshot(ctx context.Context, client *cmsclient.Client, dir string, collections []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mirror dir: %w", err)
	}
	log := logger.FromContext(ctx)
	for _, name := range collections {
		var all []cms.Row
		for page := 1; ; page++ {
			q := cmsclient.NewQuery().PopulateAll().PageSize(snapshotPageSize).Page(page)
			rows, pg, err := client.List(ctx, name, q, "")
			if err != nil {
				return fmt.Errorf("snapshot %s: %w", name, err)
			}
			all = append(all, rows...)
			if len(rows) < snapshotPageSize || page >= pg.PageCount {
				break
			}
		}
		if all == nil {
			all = []cms.Row{}
		}
		f := file{Data: all, Meta: meta{Pagination: cmsclient.Pagination{
			Page: 1, PageSize: len(all), PageCount: 1, Total: len(all),
		}}}
		b, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name+".json"), b, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		log.Info("mirror: collection saved", "collection", name, "rows", len(all))
	}
	return nil
}

// Store serves snapshot files. Files are read on first use and kept.
type Store struct {
	Dir string

	mu    sync.Mutex
	cache map[string][]cms.Row
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir, cache: map[string][]cms.Row{}}
}

var (
	errUnknown   = errors.New("mirror: unknown collection")
	validName    = regexp.MustCompile(`^[a-z0-9-]+$`)
	eqFilterPath = regexp.MustCompile(`^filters\[([A-Za-z0-9_]+)\]\[\$(eq|eqi)\]$`)
)

func (s *Store) rows(collection string) ([]cms.Row, error) {
	if !validName.MatchString(collection) {
		return nil, errUnknown
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rows, ok := s.cache[collection]; ok {
		return rows, nil
	}
	b, err := os.ReadFile(filepath.Join(s.Dir, collection+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errUnknown
	}
	if err != nil {
		return nil, err
	}
	var payload any
	if err := json.Unmarshal(b, &payload); err != nil {
		return nil, fmt.Errorf("mirror %s: %w", collection, err)
	}
	rows := cms.ListRows(payload)
	s.cache[collection] = rows
	return rows, nil
}

// RegisterRoutes mounts the backend's read endpoints on r.
func (s *Store) RegisterRoutes(r gin.IRouter) {
	r.GET("/_health", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/api/:collection", s.list)     // GET /api/blogs?filters[slug][$eq]=open-house
	r.GET("/api/:collection/:id", s.item) // GET /api/blogs/12
}

func (s *Store) list(c *gin.Context) {
	rows, err := s.rows(c.Param("collection"))
	if err != nil {
		notFoundOr(c, err)
		return
	}

	out := make([]cms.Row, 0, len(rows))
	for _, r := range rows {
		if matches(r, c.Request.URL.Query()) {
			out = append(out, r)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"data": out,
		"meta": meta{Pagination: cmsclient.Pagination{Page: 1, PageSize: len(out), PageCount: 1, Total: len(out)}},
	})
}

func (s *Store) item(c *gin.Context) {
	rows, err := s.rows(c.Param("collection"))
	if err != nil {
		notFoundOr(c, err)
		return
	}
	id := c.Param("id")
	for _, r := range rows {
		if r.ID() == id || r.String("documentId") == id {
			c.JSON(http.StatusOK, gin.H{"data": r})
			return
		}
	}
	notFoundOr(c, errUnknown)
}

// matches applies top-level $eq and $eqi filters. Other operators are
// ignored and the row is kept.
func matches(r cms.Row, q map[string][]string) bool {
	for key, vals := range q {
		m := eqFilterPath.FindStringSubmatch(key)
		if m == nil || len(vals) == 0 {
			continue
		}
		got := r.String(m[1])
		if m[2] == "eqi" {
			if !strings.EqualFold(got, vals[0]) {
				return false
			}
			continue
		}
		if got != vals[0] {
			return false
		}
	}
	return true
}

func notFoundOr(c *gin.Context, err error) {
	if errors.Is(err, errUnknown) {
		c.JSON(http.StatusNotFound, gin.H{"data": nil, "error": gin.H{"status": http.StatusNotFound, "message": "Not Found"}})
		return
	}
	logger.FromContext(c.Request.Context()).Error("mirror read", "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"data": nil, "error": gin.H{"status": http.StatusInternalServerError, "message": err.Error()}})
}
