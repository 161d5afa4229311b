package models

import "time"

// Image is a resolved media asset: an absolute URL and its label.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// EventRecap is a blog post about a past school event.
type EventRecap struct {
	ID      string  `json:"id"`
	Slug    string  `json:"slug,omitempty"`
	Title   string  `json:"title"`
	Type    string  `json:"type,omitempty"`
	Date    string  `json:"date,omitempty"`
	Href    string  `json:"href"`
	Content string  `json:"content,omitempty"`
	Cover   *Image  `json:"cover,omitempty"`
	Gallery []Image `json:"gallery,omitempty"`
}

type CalendarEvent struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Start       time.Time  `json:"start"`
	End         *time.Time `json:"end,omitempty"`
	Location    string     `json:"location,omitempty"`
	Type        string     `json:"tipo"`
	Color       EventColor `json:"color"`
	TicketLink  string     `json:"ticketLink,omitempty"`
	Description string     `json:"description,omitempty"`
}

type EventColor struct {
	Background string `json:"bg"`
	Text       string `json:"text"`
	Border     string `json:"border"`
	Soft       string `json:"soft"`
}

// RobotCategory is one category of the high-school robotics contest.
// HelperPictures keeps the backend's field name, misspelling included.
type RobotCategory struct {
	ID                   string  `json:"id"`
	Title                string  `json:"title"`
	Description          string  `json:"description,omitempty"`
	Photo                *Image  `json:"categoryPhoto,omitempty"`
	EvaluationParameters string  `json:"evaluationParameters,omitempty"`
	TeamsDescription     string  `json:"teamsDescription,omitempty"`
	Characteristics      string  `json:"characteristics,omitempty"`
	Rules                string  `json:"rules,omitempty"`
	HelperPictures       []Image `json:"heperPictures"`
}

type Newspaper struct {
	ID      string  `json:"id"`
	Slug    string  `json:"slug,omitempty"`
	Title   string  `json:"title"`
	Date    string  `json:"date,omitempty"`
	Href    string  `json:"href"`
	Content string  `json:"content,omitempty"`
	Image   *Image  `json:"image,omitempty"`
	Gallery []Image `json:"gallery,omitempty"`
}

type Testimonial struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    string `json:"rol,omitempty"`
	Message string `json:"message"`
	Date    string `json:"date,omitempty"`
	Photo   *Image `json:"photo,omitempty"`
}

// Resource is a downloadable admissions document.
type Resource struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	Mime        string `json:"mime,omitempty"`
}

type Spotlight struct {
	ID                 string    `json:"id"`
	FullName           string    `json:"fullname"`
	City               string    `json:"city,omitempty"`
	University         string    `json:"university,omitempty"`
	Profession         string    `json:"profession,omitempty"`
	GraduationYear     string    `json:"graduationYear,omitempty"`
	Year               int       `json:"year,omitempty"`
	ArtisticPath       string    `json:"artisticPath,omitempty"`
	Accomplishments    string    `json:"accomplishments,omitempty"`
	HughesImpact       string    `json:"hughesImpact,omitempty"`
	MessageForStudents string    `json:"messageForStudents,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Page wraps a paginated list.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Paginate slices items for a 1-based page, clamping out-of-range pages.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = 10
	}
	total := len(items)
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	start := (page - 1) * size
	end := min(start+size, total)
	out := make([]T, 0, end-start)
	out = append(out, items[start:end]...)
	return Page[T]{Items: out, Page: page, PageSize: size, Total: total, TotalPages: pages}
}
