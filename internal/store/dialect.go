package store

import (
	"strconv"
	"strings"
)

// Dialect names.
const (
	DialectLibSQL   = "libsql"
	DialectPostgres = "postgres"
)

// dialect holds the per-database differences. Queries are written with '?'
// placeholders and rebound for Postgres.
// Migrations live under migrations/<name>.
type dialect struct {
	name   string
	driver string
}

var (
	libsqlDialect   = dialect{name: DialectLibSQL, driver: "libsql"}
	postgresDialect = dialect{name: DialectPostgres, driver: "pgx"}
)

// rebind rewrites '?' placeholders as $1, $2, ... for Postgres.
func (d dialect) rebind(query string) string {
	if d.name != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// detectDialect picks a dialect from a DSN and normalises the DSN for its
// driver. postgres:// and postgresql:// (with an optional +driver suffix such
// as postgresql+psycopg://) select Postgres; anything else is a libSQL path
// or URL.
func detectDialect(dsn string) (dialect, string) {
	dsn = strings.TrimSpace(dsn)
	scheme, rest, ok := strings.Cut(dsn, "://")
	if ok {
		base, _, _ := strings.Cut(strings.ToLower(scheme), "+")
		if base == "postgres" || base == "postgresql" {
			return postgresDialect, "postgres://" + rest
		}
		return libsqlDialect, dsn
	}
	if strings.HasPrefix(dsn, "file:") {
		return libsqlDialect, dsn
	}
	return libsqlDialect, "file:" + dsn
}
