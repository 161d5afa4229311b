package alumni

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schoolsite/internal/forms"
	"schoolsite/internal/submissions"
	"schoolsite/internal/web"
)

type Handler struct {
	Repo     *Repo
	Recorder *submissions.Recorder
	// Limit guards the submit route; nil disables it.
	Limit gin.HandlerFunc
}

func NewHandler(repo *Repo, rec *submissions.Recorder, limit gin.HandlerFunc) *Handler {
	return &Handler{Repo: repo, Recorder: rec, Limit: limit}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/spotlights", h.list)        // GET /alumni/spotlights?year=&sort=&page=
	rg.GET("/spotlights/:id", h.getByID) // GET /alumni/spotlights/:id
	if h.Limit != nil {
		rg.POST("/spotlights", h.Limit, h.submit)
	} else {
		rg.POST("/spotlights", h.submit)
	}
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Year: c.Query("year"),
		Sort: c.DefaultQuery("sort", SortCreated),
		Page: web.ParseInt(c.Query("page"), 1),
	}
	page, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		web.Fail(c, err, "list spotlights failed")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) getByID(c *gin.Context) {
	s, err := h.Repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		web.Fail(c, err, "get spotlight failed")
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) submit(c *gin.Context) {
	var in forms.Spotlight
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ctx := c.Request.Context()
	if err := in.Validate(); err != nil {
		h.Recorder.Done(ctx, submissions.KindSpotlight, "", err, nil)
		web.Invalid(c, err)
		return
	}

	row, err := h.Repo.Submit(ctx, in)
	if err != nil {
		h.Recorder.Done(ctx, submissions.KindSpotlight, "", err, nil)
		web.Fail(c, err, "submit spotlight failed")
		return
	}
	id := row.DocumentID()
	if id == "" {
		id = row.ID()
	}
	h.Recorder.Done(ctx, submissions.KindSpotlight, id, nil, gin.H{"id": id, "fullname": in.FullName})
	c.JSON(http.StatusCreated, gin.H{"ok": true, "id": id})
}
