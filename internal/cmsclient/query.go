package cmsclient

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Query builds Strapi REST parameters. The zero value is ready to use and
// every method returns the receiver so calls chain.
type Query struct {
	values   url.Values
	sorts    int
	fields   int
	populate map[string][]string
}

func NewQuery() *Query {
	return &Query{}
}

func (q *Query) set(key, value string) *Query {
	if q.values == nil {
		q.values = url.Values{}
	}
	q.values.Add(key, value)
	return q
}

// replace is set for single-valued params: the last call wins.
func (q *Query) replace(key, value string) *Query {
	if q.values == nil {
		q.values = url.Values{}
	}
	q.values.Set(key, value)
	return q
}

// Filter adds filters[path...][op]=value. Path segments are field names,
// e.g. Filter("$eq", "alice@x", "email") or Filter("$in", "3", "sections", "id").
func (q *Query) Filter(op, value string, path ...string) *Query {
	var sb strings.Builder
	sb.WriteString("filters")
	for _, p := range path {
		sb.WriteString("[" + p + "]")
	}
	sb.WriteString("[" + op + "]")
	return q.set(sb.String(), value)
}

// Eq is Filter with $eq.
func (q *Query) Eq(value string, path ...string) *Query {
	return q.Filter("$eq", value, path...)
}

// In adds one $in entry per value.
func (q *Query) In(values []string, path ...string) *Query {
	for i, v := range values {
		key := "filters"
		for _, p := range path {
			key += "[" + p + "]"
		}
		q.set(key+"[$in]["+strconv.Itoa(i)+"]", v)
	}
	return q
}

// Sort appends sort[i]=field:dir.
func (q *Query) Sort(field string) *Query {
	q.set("sort["+strconv.Itoa(q.sorts)+"]", field)
	q.sorts++
	return q
}

// Fields restricts returned attributes.
func (q *Query) Fields(names ...string) *Query {
	for _, n := range names {
		q.set("fields["+strconv.Itoa(q.fields)+"]", n)
		q.fields++
	}
	return q
}

func (q *Query) PageSize(n int) *Query {
	return q.replace("pagination[pageSize]", strconv.Itoa(n))
}

func (q *Query) Page(n int) *Query {
	return q.replace("pagination[page]", strconv.Itoa(n))
}

// PopulateAll is populate=*.
func (q *Query) PopulateAll() *Query {
	return q.replace("populate", "*")
}

// Populate requests a relation by dotted path ("students.section"). Paths
// sharing a prefix are merged into one nested populate tree.
func (q *Query) Populate(paths ...string) *Query {
	if q.populate == nil {
		q.populate = map[string][]string{}
	}
	for _, p := range paths {
		head, rest, _ := strings.Cut(p, ".")
		if head == "" {
			continue
		}
		if _, ok := q.populate[head]; !ok {
			q.populate[head] = nil
		}
		if rest != "" {
			q.populate[head] = append(q.populate[head], rest)
		}
	}
	return q
}

// Values renders the query.
func (q *Query) Values() url.Values {
	out := url.Values{}
	if q == nil {
		return out
	}
	for k, vs := range q.values {
		out[k] = append([]string(nil), vs...)
	}
	writePopulate(out, "populate", q.populate)
	return out
}

// Encode renders the query as a stable string, used as a cache key part.
func (q *Query) Encode() string {
	return q.Values().Encode()
}

func writePopulate(out url.Values, prefix string, tree map[string][]string) {
	names := make([]string, 0, len(tree))
	for n := range tree {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		children := tree[name]
		key := prefix + "[" + name + "]"
		if len(children) == 0 {
			out.Set(key, "true")
			continue
		}
		sub := map[string][]string{}
		for _, c := range children {
			head, rest, _ := strings.Cut(c, ".")
			if _, ok := sub[head]; !ok {
				sub[head] = nil
			}
			if rest != "" {
				sub[head] = append(sub[head], rest)
			}
		}
		writePopulate(out, key+"[populate]", sub)
	}
}

// PopulateFields populates a top-level relation limited to some fields:
// populate[rel][fields][i]=name. Do not also pass rel to Populate.
func (q *Query) PopulateFields(relation string, names ...string) *Query {
	for i, n := range names {
		q.set("populate["+relation+"][fields]["+strconv.Itoa(i)+"]", n)
	}
	return q
}
