package cms

import "strings"

// Format names the backend generates for uploaded images.
const (
	FormatThumbnail = "thumbnail"
	FormatSmall     = "small"
	FormatMedium    = "medium"
	FormatLarge     = "large"
)

// DefaultOrigin is used when a resolver is built without an origin.
const DefaultOrigin = "http://localhost:1337"

var (
	// DefaultVariants is the preference for cards and thumbnails.
	DefaultVariants = []string{FormatMedium, FormatSmall}
	// HeroVariants is the preference for full-width images.
	HeroVariants = []string{FormatLarge, FormatMedium, FormatSmall}
)

// MediaResolver turns media rows into absolute URLs.
type MediaResolver struct {
	origin   string
	variants []string
}

// NewMediaResolver builds a resolver for origin. With no variants given
// DefaultVariants applies; the primary url is always the last fallback.
func NewMediaResolver(origin string, variants ...string) *MediaResolver {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		origin = DefaultOrigin
	}
	if len(variants) == 0 {
		variants = DefaultVariants
	}
	return &MediaResolver{origin: origin, variants: append([]string(nil), variants...)}
}

// WithVariants returns a resolver on the same origin with another preference.
func (m *MediaResolver) WithVariants(variants ...string) *MediaResolver {
	return NewMediaResolver(m.origin, variants...)
}

// Origin returns the origin relative paths are joined to.
func (m *MediaResolver) Origin() string {
	return m.origin
}

// URL resolves a media value (a row, or a relation wrapping one) to an
// absolute URL. It reports false when there is nothing to point at.
func (m *MediaResolver) URL(media any) (string, bool) {
	row := One(media)
	if row == nil {
		return "", false
	}

	if formats := AsRow(row.Get("formats")); formats != nil {
		for _, name := range m.variants {
			if u := AsRow(formats[name]).String("url"); u != "" {
				return m.Absolute(u), true
			}
		}
	}

	u := strings.TrimSpace(row.String("url"))
	if u == "" {
		return "", false
	}
	return m.Absolute(u), true
}

// URLs resolves every asset of a to-many media relation, skipping those
// without a usable URL.
func (m *MediaResolver) URLs(media any) []string {
	rows := Many(media)
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if u, ok := m.URL(r); ok {
			out = append(out, u)
		}
	}
	return out
}

// Absolute prefixes relative paths with the origin.
func (m *MediaResolver) Absolute(u string) string {
	if IsAbsoluteURL(u) {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return m.origin + u
}

// IsAbsoluteURL reports whether u already carries a network scheme.
func IsAbsoluteURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Label returns the accessible label of a media asset: its alternative
// text, else its file name.
func Label(media any) (string, bool) {
	row := One(media)
	if row == nil {
		return "", false
	}
	for _, key := range []string{"alternativeText", "name"} {
		if s := strings.TrimSpace(row.String(key)); s != "" {
			return s, true
		}
	}
	return "", false
}

// LabelOr is Label with a caller supplied fallback.
func LabelOr(media any, fallback string) string {
	if s, ok := Label(media); ok {
		return s
	}
	return fallback
}
