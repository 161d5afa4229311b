// Package cms normalizes Strapi-style content payloads.
//
// The content backend answers in two shapes. Flattened rows carry their
// fields directly (`{id, title, cover}`); enveloped rows nest them one level
// down (`{id, attributes: {title, cover}}`). Relations can additionally be
// wrapped as `{data: row | []row | null}`. Everything in this package is
// total and read-only: absent or malformed input resolves to "absent", it
// never panics and never mutates what it was given.
package cms

import (
	"strconv"
	"strings"
)

// Row is one decoded content item.
type Row map[string]any

// Shape tells which of the two row layouts a Row uses.
type Shape int

const (
	ShapeFlat Shape = iota
	ShapeEnveloped
)

func (s Shape) String() string {
	if s == ShapeEnveloped {
		return "enveloped"
	}
	return "flat"
}

const attributesKey = "attributes"

// AsRow returns v as a Row when it is a JSON object, nil otherwise.
func AsRow(v any) Row {
	switch t := v.(type) {
	case Row:
		return t
	case map[string]any:
		return Row(t)
	default:
		return nil
	}
}

// Shape reports whether fields are nested under attributes.
func (r Row) Shape() Shape {
	if AsRow(r[attributesKey]) != nil {
		return ShapeEnveloped
	}
	return ShapeFlat
}

// Field looks a key up directly on the row first, then under attributes.
// A nil value counts as missing at both levels, so an explicit null on the
// row does not shadow a value under attributes.
func (r Row) Field(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	if v, ok := r[key]; ok && v != nil {
		return v, true
	}
	if attrs := AsRow(r[attributesKey]); attrs != nil {
		if v, ok := attrs[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Get is Field without the presence flag.
func (r Row) Get(key string) any {
	v, _ := r.Field(key)
	return v
}

// String returns the field as a string. Numbers and booleans are rendered,
// anything else is "".
func (r Row) String(key string) string {
	v, ok := r.Field(key)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// Int returns the field as an int and whether it was numeric.
func (r Row) Int(key string) (int, bool) {
	v, ok := r.Field(key)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Bool returns the field as a bool; absent or non-boolean values are false.
func (r Row) Bool(key string) bool {
	b, _ := r.Get(key).(bool)
	return b
}

// ID returns the row id rendered as a string.
func (r Row) ID() string {
	return r.String("id")
}

// DocumentID returns the v5 documentId when present, falling back to the id.
func (r Row) DocumentID() string {
	if s := r.String("documentId"); s != "" {
		return s
	}
	return r.ID()
}

// Flatten merges the attributes level into a new map. Direct fields win.
func (r Row) Flatten() Row {
	out := make(Row, len(r))
	if attrs := AsRow(r[attributesKey]); attrs != nil {
		for k, v := range attrs {
			if v != nil {
				out[k] = v
			}
		}
	}
	for k, v := range r {
		if k == attributesKey || v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

