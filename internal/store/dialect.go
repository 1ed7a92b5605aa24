package store

import (
	"strconv"
	"strings"
)

// dialect covers the few SQL differences between sqlite and postgres.
// Queries are written with ? placeholders and {{...}} type markers.
type dialect int

const (
	sqliteDialect dialect = iota
	postgresDialect
)

func (d dialect) String() string {
	if d == postgresDialect {
		return "postgres"
	}
	return "sqlite"
}

// rebind rewrites ? placeholders to $1, $2... for postgres
func (d dialect) rebind(query string) string {
	if d != postgresDialect || !strings.Contains(query, "?") {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// ddl substitutes column type markers in schema statements
func (d dialect) ddl(query string) string {
	var r *strings.Replacer
	if d == postgresDialect {
		r = strings.NewReplacer(
			"{{pk}}", "BIGSERIAL PRIMARY KEY",
			"{{real}}", "DOUBLE PRECISION",
			"{{fk_int}}", "BIGINT",
		)
	} else {
		r = strings.NewReplacer(
			"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{real}}", "REAL",
			"{{fk_int}}", "INTEGER",
		)
	}
	return r.Replace(query)
}
