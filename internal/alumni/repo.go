package alumni

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"schoolsite/internal/cmsclient"
	"schoolsite/internal/forms"
	"schoolsite/pkg/cms"
	"schoolsite/pkg/models"
)

// collection is the live collection name, misspelling included.
const collection = "spothights"

const PageSize = 10

// Sort orders accepted by List.
const (
	SortCreated  = "createdAt"
	SortGradAsc  = "gradAsc"
	SortGradDesc = "gradDesc"
)

type ListQuery struct {
	Year string
	Sort string
	Page int
}

type Repo struct {
	CMS *cmsclient.Client
}

func NewRepo(client *cmsclient.Client) *Repo {
	return &Repo{CMS: client}
}

// List returns one page of approved spotlights.
func (r *Repo) List(ctx context.Context, q ListQuery) (models.Page[models.Spotlight], error) {
	cq := cmsclient.NewQuery().
		Eq("true", "approved").
		PageSize(200).
		Sort("createdAt:desc")
	rows, _, err := r.CMS.List(ctx, collection, cq, "")
	if err != nil {
		return models.Page[models.Spotlight]{}, err
	}

	year := strings.TrimSpace(q.Year)
	items := make([]models.Spotlight, 0, len(rows))
	for _, row := range rows {
		s := toSpotlight(row)
		if year != "" && strconv.Itoa(s.Year) != year {
			continue
		}
		items = append(items, s)
	}

	switch q.Sort {
	case SortGradAsc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Year < items[j].Year })
	case SortGradDesc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Year > items[j].Year })
	default:
		sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	}
	return models.Paginate(items, q.Page, PageSize), nil
}

// Get returns nil for missing and unapproved spotlights alike.
func (r *Repo) Get(ctx context.Context, id string) (*models.Spotlight, error) {
	row, err := r.CMS.Get(ctx, collection, id, nil, "")
	if errors.Is(err, cmsclient.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !row.Bool("approved") {
		return nil, nil
	}
	s := toSpotlight(row)
	return &s, nil
}

// Submit stores a new spotlight awaiting approval.
func (r *Repo) Submit(ctx context.Context, in forms.Spotlight) (cms.Row, error) {
	return r.CMS.Create(ctx, collection, map[string]any{
		"fullname":           in.FullName,
		"city":               in.City,
		"university":         in.University,
		"profession":         in.Profession,
		"graduationYear":     in.GraduationYear,
		"artisticPath":       in.ArtisticPath,
		"accomplishments":    in.Accomplishments,
		"hughesImpact":       in.HughesImpact,
		"messageForStudents": in.MessageForStudents,
		"approved":           false,
	}, "")
}

func toSpotlight(row cms.Row) models.Spotlight {
	grad := row.String("graduationYear")
	s := models.Spotlight{
		ID:                 firstNonEmpty(row.DocumentID(), row.ID()),
		FullName:           row.String("fullname"),
		City:               row.String("city"),
		University:         row.String("university"),
		Profession:         row.String("profession"),
		GraduationYear:     grad,
		Year:               parseYear(grad),
		ArtisticPath:       cms.PlainText(row.Get("artisticPath")),
		Accomplishments:    cms.PlainText(row.Get("accomplishments")),
		HughesImpact:       cms.PlainText(row.Get("hughesImpact")),
		MessageForStudents: cms.PlainText(row.Get("messageForStudents")),
	}
	if t, ok := row.Time("createdAt"); ok {
		s.CreatedAt = t
	}
	return s
}

var yearRe = regexp.MustCompile(`\d{4}`)

// parseYear pulls the first four-digit run out of a date-ish string.
func parseYear(s string) int {
	m := yearRe.FindString(s)
	if m == "" {
		return 0
	}
	n, _ := strconv.Atoi(m)
	return n
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
