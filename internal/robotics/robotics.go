// Package robotics serves the high-school robotics contest categories.
package robotics

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"schoolsite/internal/cmsclient"
	"schoolsite/internal/web"
	"schoolsite/pkg/cms"
	"schoolsite/pkg/models"
)

const collection = "hs-robot-categories"

type Repo struct {
	CMS   *cmsclient.Client
	Media *cms.MediaResolver
}

func NewRepo(client *cmsclient.Client, media *cms.MediaResolver) *Repo {
	return &Repo{CMS: client, Media: media}
}

func (r *Repo) List(ctx context.Context) ([]models.RobotCategory, error) {
	rows, _, err := r.CMS.List(ctx, collection, cmsclient.NewQuery().PopulateAll().Sort("title:asc").PageSize(100), "")
	if err != nil {
		return nil, err
	}
	out := make([]models.RobotCategory, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.category(row, false))
	}
	return out, nil
}

// Get returns nil when the category does not exist.
func (r *Repo) Get(ctx context.Context, id string) (*models.RobotCategory, error) {
	row, err := r.CMS.Get(ctx, collection, id, cmsclient.NewQuery().PopulateAll(), "")
	if errors.Is(err, cmsclient.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c := r.category(row, true)
	return &c, nil
}

func (r *Repo) category(row cms.Row, full bool) models.RobotCategory {
	title := row.String("title")
	c := models.RobotCategory{
		ID:             firstNonEmpty(row.DocumentID(), row.ID()),
		Title:          title,
		Description:    cms.PlainText(row.Get("description")),
		Photo:          web.Image(r.Media, row.Get("categoryPhoto"), title),
		HelperPictures: []models.Image{},
	}
	if !full {
		return c
	}
	c.EvaluationParameters = cms.PlainText(row.Get("evaluationParameters"))
	c.TeamsDescription = cms.PlainText(row.Get("teamsDescription"))
	c.Characteristics = cms.PlainText(row.Get("characteristics"))
	c.Rules = cms.PlainText(row.Get("rules"))
	c.HelperPictures = web.Images(r.Media, row.Get("heperPictures"), title, "")
	return c
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/categories", h.list)        // GET /robotics/categories
	rg.GET("/categories/:id", h.getByID) // GET /robotics/categories/:id
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.Repo.List(c.Request.Context())
	if err != nil {
		web.Fail(c, err, "list categories failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) getByID(c *gin.Context) {
	cat, err := h.Repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		web.Fail(c, err, "get category failed")
		return
	}
	if cat == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, cat)
}
