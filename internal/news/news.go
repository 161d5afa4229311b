// Package news serves the school newspaper and family testimonials.
package news

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"schoolsite/internal/cmsclient"
	"schoolsite/internal/web"
	"schoolsite/pkg/cms"
	"schoolsite/pkg/models"
)

type Repo struct {
	CMS *cmsclient.Client
	// Hero resolves newspaper images; Cards resolves testimonial photos.
	Hero  *cms.MediaResolver
	Cards *cms.MediaResolver
}

// NewRepo derives both media preferences from one origin resolver.
func NewRepo(client *cmsclient.Client, media *cms.MediaResolver) *Repo {
	return &Repo{
		CMS:   client,
		Hero:  media.WithVariants(cms.HeroVariants...),
		Cards: media.WithVariants(cms.DefaultVariants...),
	}
}

func (r *Repo) Newspapers(ctx context.Context) ([]models.Newspaper, error) {
	q := cmsclient.NewQuery().Populate("featured_image", "gallery").PageSize(100)
	rows, _, err := r.CMS.List(ctx, "newspapers", q, "")
	if err != nil {
		return nil, err
	}

	out := make([]models.Newspaper, 0, len(rows))
	for _, row := range rows {
		title := row.String("title")
		if title == "" {
			title = "Untitled"
		}
		slug := row.String("slug")
		if slug == "" {
			slug = row.ID()
		}
		n := models.Newspaper{
			ID:      row.ID(),
			Slug:    slug,
			Title:   title,
			Date:    row.String("date"),
			Href:    "/news/" + slug,
			Content: cms.PlainText(row.Get("content")),
			Image:   web.Image(r.Hero, row.Get("featured_image"), title),
		}
		gallery := web.Images(r.Hero, row.Get("gallery"), title, "")
		if n.Image == nil && len(gallery) > 0 {
			n.Image = &gallery[0]
			gallery = gallery[1:]
		}
		n.Gallery = gallery
		out = append(out, n)
	}

	// Undated issues keep their relative order after dated ones.
	sort.SliceStable(out, func(i, j int) bool {
		ti, iok := cms.Row{"d": out[i].Date}.Time("d")
		tj, jok := cms.Row{"d": out[j].Date}.Time("d")
		if iok != jok {
			return iok
		}
		return ti.After(tj)
	})
	return out, nil
}

func (r *Repo) Testimonials(ctx context.Context) ([]models.Testimonial, error) {
	q := cmsclient.NewQuery().
		Fields("name", "rol", "message", "date").
		Populate("photo").
		PageSize(100)
	rows, _, err := r.CMS.List(ctx, "testimonials", q, "")
	if err != nil {
		return nil, err
	}

	out := make([]models.Testimonial, 0, len(rows))
	for _, row := range rows {
		msg := cms.PlainText(row.Get("message"))
		if msg == "" {
			continue
		}
		name := row.String("name")
		out = append(out, models.Testimonial{
			ID:      row.ID(),
			Name:    name,
			Role:    row.String("rol"),
			Message: msg,
			Date:    row.String("date"),
			Photo:   web.Image(r.Cards, row.Get("photo"), name),
		})
	}
	return out, nil
}

type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/newspapers", h.newspapers)     // GET /newspapers?limit=3
	rg.GET("/testimonials", h.testimonials) // GET /testimonials
}

func (h *Handler) newspapers(c *gin.Context) {
	items, err := h.Repo.Newspapers(c.Request.Context())
	if err != nil {
		web.Fail(c, err, "list newspapers failed")
		return
	}
	if limit := web.ParseInt(c.Query("limit"), 0); limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) testimonials(c *gin.Context) {
	items, err := h.Repo.Testimonials(c.Request.Context())
	if err != nil {
		web.Fail(c, err, "list testimonials failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
