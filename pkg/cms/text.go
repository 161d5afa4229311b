package cms

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// PlainText flattens rich-text content to a string. Strings pass through;
// block trees are walked through their `text` and `children` keys, with
// blocks separated by blank lines.
func PlainText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, b := range t {
			if s := strings.TrimSpace(inlineText(b)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n\n")
	}
	return strings.TrimSpace(inlineText(v))
}

func inlineText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		var sb strings.Builder
		for _, c := range t {
			sb.WriteString(inlineText(c))
		}
		return sb.String()
	}
	row := AsRow(v)
	if row == nil {
		return ""
	}
	if s, ok := row["text"].(string); ok {
		return s
	}
	return inlineText(row["children"])
}

// Time parses a date or datetime field. Both RFC 3339 timestamps and plain
// YYYY-MM-DD dates are accepted.
func (r Row) Time(key string) (time.Time, bool) {
	s := strings.TrimSpace(r.String(key))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Decode copies the flattened row into out, a pointer to a struct whose
// fields are tagged `cms:"name"`. Relation fields are best declared as
// `any` and resolved with One or Many afterwards.
func Decode(r Row, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "cms",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("cms decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(r.Flatten())); err != nil {
		return fmt.Errorf("cms decode: %w", err)
	}
	return nil
}
