package events

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"schoolsite/internal/web"
)

const defaultRecapLimit = 8

type Handler struct {
	Repo *Repo
	Now  func() time.Time
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo, Now: time.Now}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/events", h.list)            // GET /events?limit=8
	rg.GET("/events/:slug", h.getBySlug) // GET /events/open-house
	rg.GET("/calendar", h.calendar)      // GET /calendar?month=2025-09 or ?from=&to=
}

func (h *Handler) list(c *gin.Context) {
	limit := web.ParseInt(c.Query("limit"), defaultRecapLimit)
	if limit <= 0 || limit > 25 {
		limit = defaultRecapLimit
	}
	items, err := h.Repo.Recaps(c.Request.Context(), limit)
	if err != nil {
		web.Fail(c, err, "list events failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) getBySlug(c *gin.Context) {
	rc, err := h.Repo.Recap(c.Request.Context(), c.Param("slug"))
	if err != nil {
		web.Fail(c, err, "get event failed")
		return
	}
	if rc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, rc)
}

func (h *Handler) calendar(c *gin.Context) {
	from, to, err := h.window(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items, err := h.Repo.Calendar(c.Request.Context(), from, to)
	if err != nil {
		web.Fail(c, err, "list calendar failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"from":  from,
		"to":    to,
		"types": Types(),
		"items": items,
	})
}

// window reads ?month=YYYY-MM or ?from=&to=, defaulting to the current month.
func (h *Handler) window(c *gin.Context) (time.Time, time.Time, error) {
	if m := c.Query("month"); m != "" {
		from, to, err := MonthRange(m)
		if err != nil {
			return time.Time{}, time.Time{}, errBadMonth
		}
		return from, to, nil
	}
	fromS, toS := c.Query("from"), c.Query("to")
	if fromS == "" && toS == "" {
		return MonthRange(h.Now().UTC().Format("2006-01"))
	}
	from, _, ok1 := parseBound(fromS)
	to, dateOnly, ok2 := parseBound(toS)
	if !ok1 || !ok2 {
		return time.Time{}, time.Time{}, errBadRange
	}
	if dateOnly {
		// A bare date includes the whole day.
		to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errBadRange
	}
	return from, to, nil
}

func parseBound(s string) (time.Time, bool, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, true
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true, true
	}
	return time.Time{}, false, false
}
