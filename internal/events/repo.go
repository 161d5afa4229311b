package events

import (
	"context"
	"errors"
	"sort"
	"time"

	"schoolsite/internal/cmsclient"
	"schoolsite/internal/web"
	"schoolsite/pkg/cms"
	"schoolsite/pkg/models"
)

const (
	blogsCollection  = "blogs"
	eventsCollection = "events"
)

type Repo struct {
	CMS   *cmsclient.Client
	Media *cms.MediaResolver
}

func NewRepo(client *cmsclient.Client, media *cms.MediaResolver) *Repo {
	return &Repo{CMS: client, Media: media}
}

// Recaps lists the newest event write-ups that have an image.
func (r *Repo) Recaps(ctx context.Context, limit int) ([]models.EventRecap, error) {
	q := cmsclient.NewQuery().
		Populate("gallery", "featured_image").
		PageSize(25).
		Page(1).
		Sort("publishedAt:desc").
		Sort("createdAt:desc")
	rows, _, err := r.CMS.List(ctx, blogsCollection, q, "")
	if err != nil {
		return nil, err
	}

	out := make([]models.EventRecap, 0, len(rows))
	for _, row := range rows {
		rc := r.recap(row, false)
		if rc.Cover == nil {
			continue
		}
		out = append(out, rc)
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := parseDate(out[i].Date), parseDate(out[j].Date)
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Recap finds one write-up by slug, falling back to its id.
func (r *Repo) Recap(ctx context.Context, slug string) (*models.EventRecap, error) {
	q := cmsclient.NewQuery().Populate("gallery", "featured_image").Eq(slug, "slug")
	row, err := r.CMS.First(ctx, blogsCollection, q, "")
	if errors.Is(err, cmsclient.ErrNotFound) {
		row, err = r.CMS.Get(ctx, blogsCollection, slug, cmsclient.NewQuery().Populate("gallery", "featured_image"), "")
	}
	if errors.Is(err, cmsclient.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rc := r.recap(row, true)
	return &rc, nil
}

func (r *Repo) recap(row cms.Row, full bool) models.EventRecap {
	title := row.String("title")
	if title == "" {
		title = "Untitled"
	}
	date := firstNonEmpty(row.String("date"), row.String("publishedAt"), row.String("createdAt"))
	slug := row.String("slug")

	rc := models.EventRecap{
		ID:    row.ID(),
		Slug:  slug,
		Title: title,
		Type:  row.String("type"),
		Date:  date,
		Href:  "/events/" + firstNonEmpty(slug, row.DocumentID()),
		Cover: r.cover(row, title),
	}
	if full {
		rc.Content = cms.PlainText(row.Get("content"))
		exclude := ""
		if rc.Cover != nil {
			exclude = rc.Cover.URL
		}
		rc.Gallery = web.Images(r.Media, row.Get("gallery"), title, exclude)
	}
	return rc
}

// cover is the first gallery image, else the featured image.
func (r *Repo) cover(row cms.Row, title string) *models.Image {
	if first := cms.One(row.Get("gallery")); first != nil {
		if img := web.Image(r.Media, first, title); img != nil {
			return img
		}
	}
	return web.Image(r.Media, row.Get("featured_image"), title)
}

// Calendar returns events overlapping [from, to], ordered by start.
func (r *Repo) Calendar(ctx context.Context, from, to time.Time) ([]models.CalendarEvent, error) {
	q := cmsclient.NewQuery().
		Filter("$lte", to.UTC().Format(time.RFC3339), "$and", "0", "start").
		Filter("$gte", from.UTC().Format(time.RFC3339), "$and", "1", "$or", "0", "end").
		Filter("$null", "true", "$and", "1", "$or", "1", "end").
		Sort("start:asc").
		PageSize(200).
		Fields("title", "start", "end", "location", "tipo", "ticketLink", "description")
	rows, _, err := r.CMS.List(ctx, eventsCollection, q, "")
	if err != nil {
		return nil, err
	}

	out := make([]models.CalendarEvent, 0, len(rows))
	for _, row := range rows {
		start, ok := row.Time("start")
		if !ok {
			continue
		}
		ev := models.CalendarEvent{
			ID:          row.ID(),
			Title:       row.String("title"),
			Start:       start,
			Location:    row.String("location"),
			Type:        typeOrOther(row.String("tipo")),
			TicketLink:  row.String("ticketLink"),
			Description: cms.PlainText(row.Get("description")),
		}
		if end, ok := row.Time("end"); ok {
			ev.End = &end
		}
		ev.Color = ColorFor(ev.Type)
		if !overlaps(ev, from, to) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// overlaps repeats the range filter locally; backends that ignore the
// nested $or still get a correct answer.
func overlaps(ev models.CalendarEvent, from, to time.Time) bool {
	end := ev.Start
	if ev.End != nil {
		end = *ev.End
	}
	return !ev.Start.After(to) && !end.Before(from)
}

var colors = map[string]models.EventColor{
	"Academic":       {Background: "#cde36a", Text: "#0b1229", Border: "#b4cc55", Soft: "rgba(205,227,106,0.12)"},
	"Administrative": {Background: "#ffd966", Text: "#0b1229", Border: "#f2c84f", Soft: "rgba(255,217,102,0.12)"},
	"Holiday":        {Background: "#ff4b4b", Text: "#ffffff", Border: "#e14444", Soft: "rgba(255,75,75,0.10)"},
	"Dance":          {Background: "#22c1f1", Text: "#0b1229", Border: "#16a7d3", Soft: "rgba(34,193,241,0.12)"},
	"Music":          {Background: "#f2f542", Text: "#0b1229", Border: "#dbde34", Soft: "rgba(242,245,66,0.12)"},
	"Trimester":      {Background: "#5dd39e", Text: "#0b1229", Border: "#49bb8a", Soft: "rgba(93,211,158,0.12)"},
	"Other":          {Background: "#cfcfd9", Text: "#0b1229", Border: "#bdbdc9", Soft: "rgba(207,207,217,0.12)"},
}

// Types lists the known event types.
func Types() []string {
	return []string{"Academic", "Administrative", "Holiday", "Dance", "Music", "Trimester", "Other"}
}

func typeOrOther(t string) string {
	if _, ok := colors[t]; ok {
		return t
	}
	return "Other"
}

func ColorFor(t string) models.EventColor {
	return colors[typeOrOther(t)]
}

func parseDate(s string) time.Time {
	t, _ := cms.Row{"d": s}.Time("d")
	return t
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// MonthRange returns the first and last instant of a YYYY-MM month.
func MonthRange(month string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond), nil
}

var (
	errBadMonth = errors.New("month must be YYYY-MM")
	errBadRange = errors.New("from and to must be dates with from <= to")
)
