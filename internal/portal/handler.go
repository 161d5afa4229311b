// Package portal serves the parent and student portals.
package portal

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schoolsite/internal/auth"
	"schoolsite/internal/forms"
	"schoolsite/internal/submissions"
	"schoolsite/internal/web"
	"schoolsite/pkg/models"
)

// ParentHandler serves /parents. Require must admit parent sessions only.
type ParentHandler struct {
	Repo     *Repo
	Require  gin.HandlerFunc
	Recorder *submissions.Recorder
}

func NewParentHandler(repo *Repo, require gin.HandlerFunc, rec *submissions.Recorder) *ParentHandler {
	return &ParentHandler{Repo: repo, Require: require, Recorder: rec}
}

func (h *ParentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.Use(h.Require)
	rg.GET("/me", h.me)
	rg.GET("/timetable", h.timetable)               // ?student=<id>
	rg.GET("/seat-reservations", h.seatReservation) // ?student=<id>
	rg.POST("/seat-reservations", h.reserveSeat)
	rg.POST("/leave-requests", h.leaveRequest)
}

// parent loads the session's parent or writes the failure response.
func (h *ParentHandler) parent(c *gin.Context) (*models.Parent, *auth.Session, bool) {
	s := auth.MustGetSession(c)
	if s == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return nil, nil, false
	}
	p, err := h.Repo.Parent(c.Request.Context(), s)
	if err != nil {
		web.Fail(c, err, "parent lookup failed")
		return nil, nil, false
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "parent profile not found"})
		return nil, nil, false
	}
	return p, s, true
}

// student resolves a student id against the parent's own students. An
// empty id picks the first one.
func student(c *gin.Context, p *models.Parent, id string) (models.Student, bool) {
	if id == "" {
		if len(p.Students) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "no students linked to this parent"})
			return models.Student{}, false
		}
		return p.Students[0], true
	}
	st, ok := p.Owns(id)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "student does not belong to this parent"})
		return models.Student{}, false
	}
	return st, true
}

func (h *ParentHandler) me(c *gin.Context) {
	p, _, ok := h.parent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ParentHandler) timetable(c *gin.Context) {
	p, _, ok := h.parent(c)
	if !ok {
		return
	}
	st, ok := student(c, p, c.Query("student"))
	if !ok {
		return
	}
	tt, err := h.Repo.Timetable(c.Request.Context(), st)
	if err != nil {
		web.Fail(c, err, "timetable failed")
		return
	}
	c.JSON(http.StatusOK, tt)
}

func (h *ParentHandler) seatReservation(c *gin.Context) {
	p, s, ok := h.parent(c)
	if !ok {
		return
	}
	st, ok := student(c, p, c.Query("student"))
	if !ok {
		return
	}
	existing, err := h.Repo.SeatReservation(c.Request.Context(), st.ID, s.CMSToken)
	if err != nil {
		web.Fail(c, err, "seat reservation lookup failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"schoolYear":  h.Repo.SchoolYear,
		"student":     st,
		"reservation": existing,
	})
}

func (h *ParentHandler) reserveSeat(c *gin.Context) {
	var in forms.SeatReservation
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ctx := c.Request.Context()
	if err := in.Validate(); err != nil {
		h.Recorder.Done(ctx, submissions.KindSeatReservation, "", err, nil)
		web.Invalid(c, err)
		return
	}
	p, s, ok := h.parent(c)
	if !ok {
		return
	}
	st, ok := student(c, p, in.Student)
	if !ok {
		return
	}

	existing, err := h.Repo.SeatReservation(ctx, st.ID, s.CMSToken)
	if err != nil {
		web.Fail(c, err, "seat reservation lookup failed")
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "seat reservation already submitted", "reservation": existing})
		return
	}

	row, err := h.Repo.CreateSeatReservation(ctx, p, st, in.Confirm, s.CMSToken)
	if err != nil {
		h.Recorder.Done(ctx, submissions.KindSeatReservation, "", err, nil)
		web.Fail(c, err, "seat reservation failed")
		return
	}
	h.Recorder.Done(ctx, submissions.KindSeatReservation, row.ID(), nil, gin.H{
		"student":    st.FullName(),
		"schoolYear": h.Repo.SchoolYear,
		"confirm":    in.Confirm,
	})

	created, err := h.Repo.SeatReservation(ctx, st.ID, s.CMSToken)
	if err != nil || created == nil {
		created = &models.SeatReservation{ID: row.ID(), StudentID: st.ID, SectionName: refName(st.Section), SchoolYear: h.Repo.SchoolYear, Confirm: in.Confirm}
	}
	c.JSON(http.StatusCreated, created)
}

func (h *ParentHandler) leaveRequest(c *gin.Context) {
	var in forms.LeaveRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ctx := c.Request.Context()
	if err := in.Validate(); err != nil {
		h.Recorder.Done(ctx, submissions.KindLeaveRequest, "", err, nil)
		web.Invalid(c, err)
		return
	}
	p, s, ok := h.parent(c)
	if !ok {
		return
	}
	st, ok := student(c, p, in.Student)
	if !ok {
		return
	}

	row, err := h.Repo.CreateLeaveRequest(ctx, p, st, in, s.CMSToken)
	if err != nil {
		h.Recorder.Done(ctx, submissions.KindLeaveRequest, "", err, nil)
		web.Fail(c, err, "leave request failed")
		return
	}
	h.Recorder.Done(ctx, submissions.KindLeaveRequest, row.ID(), nil, gin.H{
		"student": st.FullName(),
		"type":    in.Type,
	})
	c.JSON(http.StatusCreated, gin.H{"ok": true, "id": row.ID()})
}

// StudentHandler serves /students. Require must admit student sessions only.
type StudentHandler struct {
	Repo    *Repo
	Require gin.HandlerFunc
}

func NewStudentHandler(repo *Repo, require gin.HandlerFunc) *StudentHandler {
	return &StudentHandler{Repo: repo, Require: require}
}

func (h *StudentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.Use(h.Require)
	rg.GET("/me", h.me)
	rg.GET("/timetable", h.timetable)
	rg.GET("/library", h.library) // ?q=&grade=&subject=&page=
}

func (h *StudentHandler) student(c *gin.Context) (*models.Student, bool) {
	s := auth.MustGetSession(c)
	if s == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return nil, false
	}
	st, err := h.Repo.Student(c.Request.Context(), s)
	if err != nil {
		web.Fail(c, err, "student lookup failed")
		return nil, false
	}
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student profile not found"})
		return nil, false
	}
	return st, true
}

func (h *StudentHandler) me(c *gin.Context) {
	st, ok := h.student(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *StudentHandler) timetable(c *gin.Context) {
	st, ok := h.student(c)
	if !ok {
		return
	}
	tt, err := h.Repo.Timetable(c.Request.Context(), *st)
	if err != nil {
		web.Fail(c, err, "timetable failed")
		return
	}
	c.JSON(http.StatusOK, tt)
}

func (h *StudentHandler) library(c *gin.Context) {
	lib, err := h.Repo.Library(c.Request.Context(), LibraryQuery{
		Q:       c.Query("q"),
		Grade:   c.Query("grade"),
		Subject: c.Query("subject"),
		Page:    web.ParseInt(c.Query("page"), 1),
	})
	if err != nil {
		web.Fail(c, err, "library failed")
		return
	}
	c.JSON(http.StatusOK, lib)
}
