package events

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolsite/internal/cmsclient/cmstest"
	"schoolsite/pkg/cms"
	"schoolsite/pkg/models"
)

const blogs = `{"data":[
 {"id":1,"attributes":{"title":"Open House","slug":"open-house","publishedAt":"2025-03-01T10:00:00.000Z",
   "gallery":{"data":[{"attributes":{"url":"/uploads/a.jpg","alternativeText":"Gym"}},{"attributes":{"url":"/uploads/b.jpg","name":"b.jpg"}}]}}},
 {"id":2,"attributes":{"title":"No pictures","slug":"none","publishedAt":"2025-06-01T10:00:00.000Z"}},
 {"id":3,"title":"Science Fair","slug":"science-fair","date":"2025-05-01",
   "featured_image":{"url":"https://cdn.school.test/c.jpg","formats":{"medium":{"url":"/uploads/medium_c.jpg"}}}}
]}`

const openHouse = `{"data":[{"id":1,"attributes":{"title":"Open House","slug":"open-house","publishedAt":"2025-03-01T10:00:00.000Z",
 "content":[{"type":"paragraph","children":[{"type":"text","text":"Doors open at 9."}]},{"type":"paragraph","children":[{"type":"text","text":"Bring a friend."}]}],
 "gallery":{"data":[{"attributes":{"url":"/uploads/a.jpg","alternativeText":"Gym"}},{"attributes":{"url":"/uploads/b.jpg"}},{"attributes":{"url":"/uploads/b.jpg"}}]},
 "featured_image":{"data":{"attributes":{"url":"/uploads/f.jpg"}}}}}]}`

func setup(t *testing.T) (*cmstest.Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fake := cmstest.New(t)
	h := NewHandler(NewRepo(fake.Client(), cms.NewMediaResolver("https://cms.school.test")))
	h.Now = func() time.Time { return time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC) }
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))
	return fake, r
}

func get(t *testing.T, r http.Handler, path string, out any) int {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code
}

func TestRecapsSkipUncoveredAndSortNewestFirst(t *testing.T) {
	fake, r := setup(t)
	fake.JSON("/api/blogs", http.StatusOK, blogs)

	var resp struct {
		Items []models.EventRecap `json:"items"`
	}
	require.Equal(t, http.StatusOK, get(t, r, "/api/events", &resp))
	require.Len(t, resp.Items, 2)

	assert.Equal(t, "Science Fair", resp.Items[0].Title)
	assert.Equal(t, "https://cms.school.test/uploads/medium_c.jpg", resp.Items[0].Cover.URL)
	assert.Equal(t, "Science Fair", resp.Items[0].Cover.Alt)

	assert.Equal(t, "Open House", resp.Items[1].Title)
	assert.Equal(t, "/events/open-house", resp.Items[1].Href)
	assert.Equal(t, "https://cms.school.test/uploads/a.jpg", resp.Items[1].Cover.URL)
	assert.Equal(t, "Gym", resp.Items[1].Cover.Alt)
	assert.Empty(t, resp.Items[1].Gallery)

	req, ok := fake.Last("/api/blogs")
	require.True(t, ok)
	assert.Equal(t, "publishedAt:desc", req.Query.Get("sort[0]"))
	assert.Equal(t, "true", req.Query.Get("populate[gallery]"))
	assert.Equal(t, "true", req.Query.Get("populate[featured_image]"))
}

func TestRecapsLimit(t *testing.T) {
	fake, r := setup(t)
	fake.JSON("/api/blogs", http.StatusOK, blogs)

	var resp struct {
		Items []models.EventRecap `json:"items"`
	}
	require.Equal(t, http.StatusOK, get(t, r, "/api/events?limit=1", &resp))
	assert.Len(t, resp.Items, 1)
}

func TestRecapDetail(t *testing.T) {
	fake, r := setup(t)
	fake.Handle("/api/blogs", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("filters[slug][$eq]") == "open-house" {
			_, _ = io.WriteString(w, openHouse)
			return
		}
		_, _ = io.WriteString(w, `{"data":[]}`)
	})

	var rc models.EventRecap
	require.Equal(t, http.StatusOK, get(t, r, "/api/events/open-house", &rc))
	assert.Equal(t, "Doors open at 9.\n\nBring a friend.", rc.Content)
	require.NotNil(t, rc.Cover)
	assert.Equal(t, "https://cms.school.test/uploads/a.jpg", rc.Cover.URL)
	require.Len(t, rc.Gallery, 1)
	assert.Equal(t, "https://cms.school.test/uploads/b.jpg", rc.Gallery[0].URL)
	assert.Equal(t, "Open House", rc.Gallery[0].Alt)
}

func TestRecapFallsBackToID(t *testing.T) {
	fake, r := setup(t)
	fake.JSON("/api/blogs", http.StatusOK, `{"data":[]}`)
	fake.JSON("/api/blogs/7", http.StatusOK, `{"data":{"id":7,"attributes":{"title":"Legacy","featured_image":{"url":"/uploads/l.jpg"}}}}`)

	var rc models.EventRecap
	require.Equal(t, http.StatusOK, get(t, r, "/api/events/7", &rc))
	assert.Equal(t, "Legacy", rc.Title)
	assert.Equal(t, "https://cms.school.test/uploads/l.jpg", rc.Cover.URL)

	assert.Equal(t, http.StatusNotFound, get(t, r, "/api/events/missing", nil))
}

func TestRecapsBackendDown(t *testing.T) {
	fake, r := setup(t)
	fake.JSON("/api/blogs", http.StatusInternalServerError, `{"error":{"message":"db gone"}}`)
	assert.Equal(t, http.StatusBadGateway, get(t, r, "/api/events", nil))
}

const calendar = `{"data":[
 {"id":1,"attributes":{"title":"Recital","start":"2025-09-20T18:00:00.000Z","tipo":"Music","ticketLink":"https://tickets.test/1"}},
 {"id":2,"attributes":{"title":"Trimester","start":"2025-09-01","end":"2025-11-30","tipo":"Trimester",
   "description":[{"type":"paragraph","children":[{"type":"text","text":"First term"}]}]}},
 {"id":3,"attributes":{"title":"Staff day","start":"2025-09-05T08:00:00Z","tipo":"Mystery"}},
 {"id":4,"attributes":{"title":"Old","start":"2025-01-05T08:00:00Z","end":"2025-01-06T08:00:00Z","tipo":"Holiday"}},
 {"id":5,"attributes":{"title":"No date","tipo":"Holiday"}}
]}`

func TestCalendarMonth(t *testing.T) {
	fake, r := setup(t)
	fake.JSON("/api/events", http.StatusOK, calendar)

	var resp struct {
		Items []models.CalendarEvent `json:"items"`
		Types []string               `json:"types"`
	}
	require.Equal(t, http.StatusOK, get(t, r, "/api/calendar?month=2025-09", &resp))
	require.Len(t, resp.Items, 3)

	assert.Equal(t, "Trimester", resp.Items[0].Title)
	assert.Equal(t, "First term", resp.Items[0].Description)
	assert.Equal(t, "#5dd39e", resp.Items[0].Color.Background)

	assert.Equal(t, "Staff day", resp.Items[1].Title)
	assert.Equal(t, "Other", resp.Items[1].Type)
	assert.Equal(t, "#cfcfd9", resp.Items[1].Color.Background)

	assert.Equal(t, "Recital", resp.Items[2].Title)
	assert.Equal(t, "rgba(242,245,66,0.12)", resp.Items[2].Color.Soft)
	assert.Nil(t, resp.Items[2].End)
	assert.Len(t, resp.Types, 7)

	req, ok := fake.Last("/api/events")
	require.True(t, ok)
	assert.Equal(t, "2025-09-30T23:59:59Z", req.Query.Get("filters[$and][0][start][$lte]"))
	assert.Equal(t, "2025-09-01T00:00:00Z", req.Query.Get("filters[$and][1][$or][0][end][$gte]"))
	assert.Equal(t, "true", req.Query.Get("filters[$and][1][$or][1][end][$null]"))
	assert.Equal(t, "start:asc", req.Query.Get("sort[0]"))
	assert.Equal(t, "200", req.Query.Get("pagination[pageSize]"))
}

func TestCalendarDateOnlyRangeIncludesLastDay(t *testing.T) {
	fake, r := setup(t)
	fake.JSON("/api/events", http.StatusOK, `{"data":[
	 {"id":1,"attributes":{"title":"Last day concert","start":"2025-09-30T10:00:00Z","tipo":"Music"}},
	 {"id":2,"attributes":{"title":"Next month","start":"2025-10-01T00:00:00Z","tipo":"Music"}}
	]}`)

	var resp struct {
		Items []models.CalendarEvent `json:"items"`
	}
	require.Equal(t, http.StatusOK, get(t, r, "/api/calendar?from=2025-09-01&to=2025-09-30", &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Last day concert", resp.Items[0].Title)

	req, _ := fake.Last("/api/events")
	assert.Equal(t, "2025-09-30T23:59:59Z", req.Query.Get("filters[$and][0][start][$lte]"))

	// An explicit timestamp is used as given.
	require.Equal(t, http.StatusOK, get(t, r, "/api/calendar?from=2025-09-01&to=2025-09-30T09:00:00Z", &resp))
	assert.Empty(t, resp.Items)
	assert.Equal(t, http.StatusOK, get(t, r, "/api/calendar?from=2025-09-30&to=2025-09-30", nil))
}

func TestCalendarDefaultsToCurrentMonth(t *testing.T) {
	fake, r := setup(t)
	fake.JSON("/api/events", http.StatusOK, `{"data":[]}`)

	require.Equal(t, http.StatusOK, get(t, r, "/api/calendar", nil))
	req, _ := fake.Last("/api/events")
	assert.Equal(t, "2025-09-01T00:00:00Z", req.Query.Get("filters[$and][1][$or][0][end][$gte]"))
}

func TestCalendarRejectsBadWindow(t *testing.T) {
	_, r := setup(t)
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/api/calendar?month=september", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/api/calendar?from=2025-09-10&to=2025-09-01", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/api/calendar?from=2025-09-10", nil))
}

func TestColorForUnknown(t *testing.T) {
	assert.Equal(t, ColorFor("Other"), ColorFor("Basketball"))
	assert.Equal(t, "#ffffff", ColorFor("Holiday").Text)
}
