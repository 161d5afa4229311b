package cms

const dataKey = "data"

// Many resolves a to-many relation value to a slice of rows.
//
//	[]row          -> the rows
//	{data: []row}  -> the rows
//	{data: row}    -> [row]
//	{data: null}   -> []
//	row            -> [row]
//	nil            -> []
//
// Non-object elements are dropped. The result is never nil.
func Many(v any) []Row {
	switch t := v.(type) {
	case nil:
		return []Row{}
	case []Row:
		out := make([]Row, 0, len(t))
		for _, r := range t {
			if r != nil {
				out = append(out, r)
			}
		}
		return out
	case []any:
		return rowsOf(t)
	}

	row := AsRow(v)
	if row == nil {
		return []Row{}
	}
	inner, wrapped := row[dataKey]
	if !wrapped {
		return []Row{row}
	}
	switch d := inner.(type) {
	case nil:
		return []Row{}
	case []any:
		return rowsOf(d)
	case []Row:
		return Many(d)
	}
	if r := AsRow(inner); r != nil {
		return []Row{r}
	}
	return []Row{}
}

// One resolves a to-one relation value to a single row, or nil. When the
// value holds several rows the first one wins.
func One(v any) Row {
	switch v.(type) {
	case nil:
		return nil
	case []any, []Row:
		return first(Many(v))
	}

	row := AsRow(v)
	if row == nil {
		return nil
	}
	inner, wrapped := row[dataKey]
	if !wrapped {
		return row
	}
	switch inner.(type) {
	case []any, []Row:
		return first(Many(inner))
	}
	return AsRow(inner)
}

// ManyField resolves the to-many relation stored under key.
func (r Row) ManyField(key string) []Row {
	return Many(r.Get(key))
}

// OneField resolves the to-one relation stored under key.
func (r Row) OneField(key string) Row {
	return One(r.Get(key))
}

// ListRows unwraps a collection response: a bare array or {data: [...]}.
func ListRows(payload any) []Row {
	switch t := payload.(type) {
	case []any, []Row:
		return Many(t)
	}
	row := AsRow(payload)
	if row == nil {
		return []Row{}
	}
	inner, ok := row[dataKey]
	if !ok {
		return []Row{}
	}
	return Many(inner)
}

// ItemRow unwraps a single-item response: {data: {...}} or the bare row.
func ItemRow(payload any) Row {
	row := AsRow(payload)
	if row == nil {
		return One(payload)
	}
	if _, ok := row[dataKey]; ok {
		return One(row)
	}
	return row
}

func rowsOf(items []any) []Row {
	out := make([]Row, 0, len(items))
	for _, it := range items {
		if r := AsRow(it); r != nil {
			out = append(out, r)
		}
	}
	return out
}

func first(rows []Row) Row {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}
