package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/pdc/pkg/schema"
)

// SQLStore implements Store over database/sql with a libSQL or Postgres dialect.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to dsn. A postgres:// URL uses pgx; anything else is a libSQL
// database (a bare path becomes a file: URI).
func Open(dsn string) (*SQLStore, error) {
	d, normalized := detectDialect(dsn)
	db, err := sql.Open(d.driver, normalized)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}

	if d.name == DialectLibSQL {
		db.SetMaxOpenConns(1)
		// Some PRAGMAs return rows so we use QueryRow.
		for _, p := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA temp_store=MEMORY",
		} {
			var result string
			_ = db.QueryRow(p).Scan(&result)
		}
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	return &SQLStore{db: db, dialect: d}, nil
}

// DB returns the underlying *sql.DB.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Dialect returns libsql or postgres.
func (s *SQLStore) Dialect() string { return s.dialect.name }

// Close closes the database.
func (s *SQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *SQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db, s.dialect)
}

// Ping runs a trivial query.
func (s *SQLStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return storeError("ping", err)
	}
	return nil
}

const artifactColumns = "id, kind, status, diagram_type, request, spec, mermaid, xml, markdown, object_key, error, created_at, updated_at"

func (s *SQLStore) CreateArtifact(ctx context.Context, a *Artifact) error {
	if a.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "artifact id is required")
	}
	if !a.Kind.Valid() {
		return schema.NewErrorf(schema.ErrCodeValidation, "unknown artifact kind %q", a.Kind)
	}
	if a.Status == "" {
		a.Status = StatusCreated
	}
	a.CreatedAt = timeOrNow(a.CreatedAt)
	a.UpdatedAt = a.CreatedAt
	if len(a.Request) == 0 {
		a.Request = json.RawMessage("{}")
	}

	_, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`INSERT INTO artifacts (`+artifactColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, string(a.Kind), string(a.Status), nullStr(a.DiagramType),
		string(a.Request), nullRaw(a.Spec),
		nullStr(a.Mermaid), nullStr(a.XML), nullStr(a.Markdown),
		nullStr(a.ObjectKey), nullStr(a.Error),
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return storeError("create artifact", err)
	}
	return nil
}

func (s *SQLStore) GetArtifact(ctx context.Context, id string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`), id)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("artifact", id)
	}
	if err != nil {
		return nil, storeError("get artifact", err)
	}
	return a, nil
}

func (s *SQLStore) ListArtifacts(ctx context.Context, filter ArtifactFilter) ([]*Artifact, error) {
	var where []string
	var args []any

	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.DiagramType != "" {
		where = append(where, "diagram_type = ?")
		args = append(args, filter.DiagramType)
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := "SELECT " + artifactColumns + " FROM artifacts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query += fmt.Sprintf(" LIMIT %d", limit)
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, storeError("list artifacts", err)
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, storeError("scan artifact", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list artifacts", err)
	}
	return artifacts, nil
}

func (s *SQLStore) UpdateArtifactStatus(ctx context.Context, id string, status ArtifactStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`UPDATE artifacts SET status = ?, error = ?, updated_at = ? WHERE id = ?`),
		string(status), nullStr(errMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return storeError("update artifact", err)
	}
	return checkRowsAffected(res, "artifact", id)
}

func (s *SQLStore) DeleteArtifactsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`DELETE FROM artifacts WHERE created_at < ?`), cutoff.UTC())
	if err != nil {
		return 0, storeError("delete artifacts", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeError("delete artifacts", err)
	}
	return n, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*Artifact, error) {
	a := &Artifact{}
	var (
		kind, status, request                     string
		diagramType, spec, mermaid, xml, markdown sql.NullString
		objectKey, errMsg                         sql.NullString
	)
	if err := row.Scan(&a.ID, &kind, &status, &diagramType, &request, &spec,
		&mermaid, &xml, &markdown, &objectKey, &errMsg, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Kind = ArtifactKind(kind)
	a.Status = ArtifactStatus(status)
	a.DiagramType = diagramType.String
	a.Request = json.RawMessage(request)
	a.Spec = rawOrNil(spec)
	a.Mermaid = mermaid.String
	a.XML = xml.String
	a.Markdown = markdown.String
	a.ObjectKey = objectKey.String
	a.Error = errMsg.String
	return a, nil
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.PipelineError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id).
		WithDetails(map[string]any{"resource": resource, "id": id})
}

func storeError(op string, err error) *schema.PipelineError {
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %v", op, err).WithCause(err)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeError("rows affected", err)
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}
