// Package admissions forwards admission applications to the CMS and lists
// the downloadable admission documents.
package admissions

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"schoolsite/internal/cmsclient"
	"schoolsite/internal/forms"
	"schoolsite/internal/submissions"
	"schoolsite/internal/web"
	"schoolsite/pkg/cms"
	"schoolsite/pkg/models"
)

const (
	submissionsCollection = "admissions-submissions"
	resourcesCollection   = "resources"
)

type Repo struct {
	CMS   *cmsclient.Client
	Media *cms.MediaResolver
}

func NewRepo(client *cmsclient.Client, media *cms.MediaResolver) *Repo {
	return &Repo{CMS: client, Media: media}
}

// Submit stores the application as {payload: ...}.
func (r *Repo) Submit(ctx context.Context, a forms.Admission) (cms.Row, error) {
	return r.CMS.Create(ctx, submissionsCollection, map[string]any{"payload": a}, "")
}

// Resources flattens every file of every resource entry into one list.
func (r *Repo) Resources(ctx context.Context) ([]models.Resource, error) {
	rows, _, err := r.CMS.List(ctx, resourcesCollection, cmsclient.NewQuery().Populate("file").PageSize(50), "")
	if err != nil {
		return nil, err
	}
	out := []models.Resource{}
	for _, row := range rows {
		base := row.String("name")
		if base == "" {
			base = row.String("title")
		}
		if base == "" {
			base = "Untitled"
		}
		for i, f := range cms.Many(row.Get("file")) {
			u, ok := r.Media.URL(f)
			if !ok {
				continue
			}
			title := f.String("name")
			if title == "" {
				title = base
			}
			out = append(out, models.Resource{
				ID:          row.ID() + "-" + strconv.Itoa(i),
				Title:       title,
				Description: cms.PlainText(row.Get("description")),
				URL:         u,
				Mime:        f.String("mime"),
			})
		}
	}
	return out, nil
}

type Handler struct {
	Repo     *Repo
	Recorder *submissions.Recorder
	Limit    gin.HandlerFunc
}

func NewHandler(repo *Repo, rec *submissions.Recorder, limit gin.HandlerFunc) *Handler {
	return &Handler{Repo: repo, Recorder: rec, Limit: limit}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	if h.Limit != nil {
		rg.POST("", h.Limit, h.submit) // POST /admissions
	} else {
		rg.POST("", h.submit)
	}
	rg.GET("/resources", h.resources) // GET /admissions/resources
}

type submitReq struct {
	Payload *forms.Admission `json:"payload"`
}

func (h *Handler) submit(c *gin.Context) {
	var req submitReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Payload == nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid payload"})
		return
	}
	ctx := c.Request.Context()
	app := *req.Payload
	if err := app.Validate(); err != nil {
		h.Recorder.Done(ctx, submissions.KindAdmissions, "", err, nil)
		var fe forms.FieldErrors
		errors.As(err, &fe)
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid form", "fields": fe})
		return
	}

	row, err := h.Repo.Submit(ctx, app)
	if err != nil {
		h.Recorder.Done(ctx, submissions.KindAdmissions, "", err, nil)
		status, body := http.StatusBadGateway, gin.H{"status": http.StatusBadGateway, "message": cmsclient.MessageOf(err)}
		var apiErr *cmsclient.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.Status
			body = gin.H{"status": apiErr.Status, "message": apiErr.Message}
		}
		web.Logger(c).Error("admissions submit", "err", err, "status", status)
		c.JSON(status, gin.H{"ok": false, "error": body, "message": cmsclient.MessageOf(err)})
		return
	}

	id := row.DocumentID()
	if id == "" {
		id = row.ID()
	}
	h.Recorder.Done(ctx, submissions.KindAdmissions, id, nil, gin.H{
		"id":             id,
		"studentName":    app.StudentName,
		"incomingCourse": app.IncomingCourse,
	})
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": row})
}

func (h *Handler) resources(c *gin.Context) {
	items, err := h.Repo.Resources(c.Request.Context())
	if err != nil {
		web.Fail(c, err, "list resources failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
