package storage

import (
	"fmt"
	"strings"
)

const trendColumns = `id, title, category, platform, description, score, velocity,
	likes, shares, comments, source, external_url, source_id, created_at, updated_at`

// dialect captures the differences between the SQL backends
type dialect struct {
	placeholder func(n int) string
	// like renders a case-insensitive substring match of column against a
	// lowered, escaped pattern parameter
	like    func(column, param string) string
	noLimit string
}

var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	like: func(column, param string) string {
		return fmt.Sprintf(`%s(%s) LIKE %s ESCAPE '\'`, unicodeLower, column, param)
	},
	noLimit: "LIMIT -1",
}

var postgresDialect = dialect{
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	like: func(column, param string) string {
		return fmt.Sprintf(`%s ILIKE %s ESCAPE '\'`, column, param)
	},
	noLimit: "",
}

// buildQuery renders f as a SELECT over the trends table with the default
// ordering
func (d dialect) buildQuery(f Filter) (string, []interface{}) {
	var where []string
	var args []interface{}

	bind := func(v interface{}) string {
		args = append(args, v)
		return d.placeholder(len(args))
	}

	if f.Category != "" {
		where = append(where, "category = "+bind(string(f.Category)))
	}
	if f.Platform != "" {
		where = append(where, "platform = "+bind(string(f.Platform)))
	}
	if f.Source != "" {
		where = append(where, "source = "+bind(string(f.Source)))
	}
	if f.ExcludeID != 0 {
		where = append(where, "id <> "+bind(f.ExcludeID))
	}
	if f.Search != "" {
		pattern := likePattern(f.Search)
		where = append(where, fmt.Sprintf("(%s OR %s)",
			d.like("title", bind(pattern)),
			d.like("description", bind(pattern))))
	}
	if kws := f.keywords(); len(kws) > 0 {
		var alternatives []string
		for _, kw := range kws {
			pattern := likePattern(kw)
			alternatives = append(alternatives,
				d.like("title", bind(pattern)),
				d.like("description", bind(pattern)),
				d.like("category", bind(pattern)))
		}
		where = append(where, "("+strings.Join(alternatives, " OR ")+")")
	}

	var b strings.Builder
	b.WriteString("SELECT " + trendColumns + " FROM trends")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY score DESC, created_at DESC, id DESC")

	switch {
	case f.Limit > 0:
		b.WriteString(" LIMIT " + bind(f.Limit))
	case f.Offset > 0 && d.noLimit != "":
		b.WriteString(" " + d.noLimit)
	}
	if f.Offset > 0 {
		b.WriteString(" OFFSET " + bind(f.Offset))
	}

	return b.String(), args
}

// likePattern lowers s, escapes LIKE wildcards and wraps it for substring
// matching
func likePattern(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}
