package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		dsn     string
		dialect string
		want    string
	}{
		{"./data/pdc.db", DialectLibSQL, "file:./data/pdc.db"},
		{"file:/tmp/pdc.db", DialectLibSQL, "file:/tmp/pdc.db"},
		{"libsql://db.example.turso.io", DialectLibSQL, "libsql://db.example.turso.io"},
		{"postgres://u:p@localhost:5432/pdc", DialectPostgres, "postgres://u:p@localhost:5432/pdc"},
		{"postgresql://u:p@localhost/pdc", DialectPostgres, "postgres://u:p@localhost/pdc"},
		{"postgresql+psycopg://u:p@db:5432/pdc", DialectPostgres, "postgres://u:p@db:5432/pdc"},
		{"  postgres://h/pdc  ", DialectPostgres, "postgres://h/pdc"},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			d, dsn := detectDialect(tt.dsn)
			assert.Equal(t, tt.dialect, d.name)
			assert.Equal(t, tt.want, dsn)
		})
	}
}

func TestRebind(t *testing.T) {
	q := "UPDATE artifacts SET status = ?, error = ? WHERE id = ?"

	assert.Equal(t, q, libsqlDialect.rebind(q))
	assert.Equal(t, "UPDATE artifacts SET status = $1, error = $2 WHERE id = $3", postgresDialect.rebind(q))
}

func TestLoadMigrations(t *testing.T) {
	for _, dir := range []string{DialectLibSQL, DialectPostgres} {
		ms, err := loadMigrations(dir)
		require.NoError(t, err, dir)
		require.NotEmpty(t, ms, dir)
		assert.Equal(t, 1, ms[0].version)
		assert.Equal(t, "artifacts", ms[0].name)
		assert.Len(t, splitStatements(ms[0].sql), 3, dir)
	}

	_, err := loadMigrations("mysql")
	assert.Error(t, err)
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- only a comment;\n\nSELECT 1;")
	assert.Equal(t, []string{"SELECT 1"}, stmts)

	stmts = splitStatements("CREATE TABLE t (a INT);\n  -- trailing note\nCREATE INDEX i ON t(a)")
	assert.Equal(t, []string{"CREATE TABLE t (a INT)", "CREATE INDEX i ON t(a)"}, stmts)
}
