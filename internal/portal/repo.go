package portal

import (
	"context"
	"errors"
	"sort"
	"strings"

	"schoolsite/internal/auth"
	"schoolsite/internal/cmsclient"
	"schoolsite/internal/forms"
	"schoolsite/internal/web"
	"schoolsite/pkg/cms"
	"schoolsite/pkg/models"
)

// Days a timetable covers, in display order.
var Days = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}

const LibraryPageSize = 20

type Repo struct {
	CMS   *cmsclient.Client
	Media *cms.MediaResolver
	// SchoolYear is the year seat reservations are collected for.
	SchoolYear string
}

func NewRepo(client *cmsclient.Client, media *cms.MediaResolver, schoolYear string) *Repo {
	return &Repo{CMS: client, Media: media, SchoolYear: schoolYear}
}

// Parent loads the session's parent with every linked student. It returns
// nil when the profile is gone.
func (r *Repo) Parent(ctx context.Context, s *auth.Session) (*models.Parent, error) {
	row, err := r.profile(ctx, "parents", s, "students.section", "students.art_group")
	if row == nil || err != nil {
		return nil, err
	}
	p := &models.Parent{
		ID:        row.ID(),
		FirstName: row.String("firstName"),
		LastName:  row.String("lastName"),
		Email:     row.String("email"),
		Students:  []models.Student{},
	}
	for _, st := range row.ManyField("students") {
		p.Students = append(p.Students, toStudent(st))
	}
	return p, nil
}

// Student loads the session's student with section and art group.
func (r *Repo) Student(ctx context.Context, s *auth.Session) (*models.Student, error) {
	row, err := r.profile(ctx, "students", s, "section", "art_group")
	if row == nil || err != nil {
		return nil, err
	}
	st := toStudent(row)
	return &st, nil
}

// profile looks the row up by profile id, then by e-mail.
func (r *Repo) profile(ctx context.Context, collection string, s *auth.Session, populate ...string) (cms.Row, error) {
	lookups := []*cmsclient.Query{}
	if s.ProfileID != "" {
		lookups = append(lookups, cmsclient.NewQuery().Eq(s.ProfileID, "id"))
	}
	if s.Email != "" {
		lookups = append(lookups, cmsclient.NewQuery().Filter("$eqi", s.Email, "email"))
	}
	for _, q := range lookups {
		row, err := r.CMS.First(ctx, collection, q.Populate(populate...), s.CMSToken)
		if errors.Is(err, cmsclient.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return row, nil
	}
	return nil, nil
}

func toStudent(row cms.Row) models.Student {
	art := row.Get("art_group")
	if art == nil {
		art = row.Get("artGroup")
	}
	return models.Student{
		ID:        row.ID(),
		FirstName: row.String("firstName"),
		LastName:  row.String("lastName"),
		Email:     row.String("email"),
		Section:   web.RefOf(row.Get("section"), "name"),
		ArtGroup:  web.RefOf(art, "name"),
	}
}

// Timetable loads the academic timetable of the student's section and the
// art timetable of their art group.
func (r *Repo) Timetable(ctx context.Context, st models.Student) (models.Timetable, error) {
	tt := models.Timetable{Student: st, Academic: []models.TimetableEntry{}, Art: []models.TimetableEntry{}}
	teachers := map[string]string{}

	if st.Section != nil {
		entries, err := r.entries(ctx, "timetable-entries", "sections", st.Section.ID, teachers)
		if err != nil {
			return tt, err
		}
		tt.Academic = entries
	}
	if st.ArtGroup != nil {
		entries, err := r.entries(ctx, "art-timetable-entries", "art_groups", st.ArtGroup.ID, teachers)
		if err != nil {
			return tt, err
		}
		tt.Art = entries
	}
	tt.Teachers = sortedRefs(teachers)
	return tt, nil
}

func (r *Repo) entries(ctx context.Context, collection, relation, id string, teachers map[string]string) ([]models.TimetableEntry, error) {
	q := cmsclient.NewQuery().
		In([]string{id}, relation, "id").
		PopulateFields("subject", "name", "shortName", "color").
		PopulateFields("teacher", "firstName", "lastName").
		PageSize(200).
		Sort("day:asc").
		Sort("startTime:asc")
	rows, _, err := r.CMS.List(ctx, collection, q, "")
	if err != nil {
		return nil, err
	}

	out := make([]models.TimetableEntry, 0, len(rows))
	for _, row := range rows {
		day := strings.ToLower(strings.TrimSpace(row.String("day")))
		if dayIndex(day) < 0 {
			continue
		}
		e := models.TimetableEntry{
			ID:        row.ID(),
			Day:       day,
			StartTime: hhmm(row.String("startTime")),
			EndTime:   hhmm(row.String("endTime")),
			Room:      row.String("room"),
		}
		if subj := row.OneField("subject"); subj != nil {
			e.Subject = subj.String("name")
			e.ShortName = subj.String("shortName")
			e.Color = subj.String("color")
		}
		if t := row.OneField("teacher"); t != nil {
			e.Teacher = strings.TrimSpace(t.String("firstName") + " " + t.String("lastName"))
			if e.Teacher != "" {
				teachers[t.ID()] = e.Teacher
			}
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := dayIndex(out[i].Day), dayIndex(out[j].Day)
		if di != dj {
			return di < dj
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func dayIndex(day string) int {
	for i, d := range Days {
		if d == day {
			return i
		}
	}
	return -1
}

// hhmm trims "08:30:00.000" to "08:30".
func hhmm(s string) string {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return s
	}
	return parts[0] + ":" + parts[1]
}

func sortedRefs(m map[string]string) []models.Ref {
	out := make([]models.Ref, 0, len(m))
	for id, name := range m {
		out = append(out, models.Ref{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SeatReservation returns the student's latest reservation for the target
// school year, or nil.
func (r *Repo) SeatReservation(ctx context.Context, studentID, token string) (*models.SeatReservation, error) {
	q := cmsclient.NewQuery().
		Eq(studentID, "student", "id").
		Eq(r.SchoolYear, "schoolYear").
		Sort("createdAt:desc")
	row, err := r.CMS.First(ctx, "seat-reservations", q, token)
	if errors.Is(err, cmsclient.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.SeatReservation{
		ID:          row.ID(),
		StudentID:   studentID,
		SectionName: row.String("sectionName"),
		SchoolYear:  row.String("schoolYear"),
		Confirm:     row.String("confirm"),
		CreatedAt:   row.String("createdAt"),
	}, nil
}

func (r *Repo) CreateSeatReservation(ctx context.Context, p *models.Parent, st models.Student, confirm, token string) (cms.Row, error) {
	return r.CMS.Create(ctx, "seat-reservations", map[string]any{
		"parent":      p.ID,
		"student":     st.ID,
		"sectionName": refName(st.Section),
		"schoolYear":  r.SchoolYear,
		"confirm":     confirm,
	}, token)
}

func (r *Repo) CreateLeaveRequest(ctx context.Context, p *models.Parent, st models.Student, in forms.LeaveRequest, token string) (cms.Row, error) {
	data := map[string]any{
		"parent":       p.ID,
		"student":      st.ID,
		"sectionName":  refName(st.Section),
		"artGroupName": nilIfEmpty(refName(st.ArtGroup)),
		"reason":       nilIfEmpty(in.Reason),
		"type":         in.Type,
	}
	if in.Type == forms.LeaveFullDay {
		data["dateStart"] = in.DateStart
		data["dateEnd"] = in.DateEnd
	} else {
		data["datePartial"] = in.DatePartial
		data["subjects"] = in.Subjects
	}
	return r.CMS.Create(ctx, "leave-requests", data, token)
}

func refName(r *models.Ref) string {
	if r == nil {
		return ""
	}
	return r.Name
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type LibraryQuery struct {
	Q       string
	Grade   string
	Subject string
	Page    int
}

// Library lists textbooks. Grade and subject catalogues come from the
// whole result set, before filtering.
func (r *Repo) Library(ctx context.Context, lq LibraryQuery) (models.Library, error) {
	q := cmsclient.NewQuery().Populate("file", "grade", "section", "subject").PageSize(200)
	rows, _, err := r.CMS.List(ctx, "textbooks", q, "")
	if err != nil {
		return models.Library{}, err
	}

	grades, subjects := map[string]string{}, map[string]string{}
	needle := strings.ToLower(strings.TrimSpace(lq.Q))
	items := make([]models.Textbook, 0, len(rows))
	for _, row := range rows {
		tb := r.textbook(row)
		if tb.Grade != nil {
			grades[tb.Grade.ID] = orDash(tb.Grade.Name)
		}
		if tb.Subject != nil {
			subjects[tb.Subject.ID] = orDash(tb.Subject.Name)
		}
		if lq.Grade != "" && (tb.Grade == nil || tb.Grade.ID != lq.Grade) {
			continue
		}
		if lq.Subject != "" && (tb.Subject == nil || tb.Subject.ID != lq.Subject) {
			continue
		}
		if needle != "" && !matches(tb, needle) {
			continue
		}
		items = append(items, tb)
	}

	return models.Library{
		Page:     models.Paginate(items, lq.Page, LibraryPageSize),
		Grades:   sortedRefs(grades),
		Subjects: sortedRefs(subjects),
	}, nil
}

// textbook picks the first image as cover and the first non-image file as
// the download.
func (r *Repo) textbook(row cms.Row) models.Textbook {
	title := row.String("title")
	tb := models.Textbook{
		ID:      row.ID(),
		Title:   title,
		Author:  row.String("author"),
		Grade:   web.RefOf(row.Get("grade"), "name"),
		Subject: web.RefOf(row.Get("subject"), "name"),
		Section: web.RefOf(row.Get("section"), "name"),
	}
	files := cms.Many(row.Get("file"))
	var cover, download cms.Row
	for _, f := range files {
		isImage := strings.HasPrefix(f.String("mime"), "image/")
		if cover == nil && isImage {
			cover = f
		}
		if download == nil && !isImage {
			download = f
		}
	}
	if cover == nil && len(files) > 0 {
		cover = files[0]
	}
	if cover != nil {
		tb.Cover = web.Image(r.Media, cover, title)
	}
	if download != nil {
		if u, ok := r.Media.URL(download); ok {
			tb.FileURL = u
		}
	}
	return tb
}

func matches(tb models.Textbook, needle string) bool {
	fields := []string{tb.Title, tb.Author, refName(tb.Grade), refName(tb.Subject), refName(tb.Section)}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
