package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/qustavo/dotsql"
)

//go:embed queries/*.sql
var queriesFS embed.FS

// Queries provides access to named SQL queries loaded from embedded .sql files.
// Uses dotsql for named query management and sqlx for database operations.
type Queries struct {
	dot *dotsql.DotSql
	db  *sqlx.DB
}

// LoadQueries loads all .sql files from the embedded filesystem.
// Named queries are accessible by name (e.g., "search-all", "fetch-bodies").
func LoadQueries(db *sqlx.DB) (*Queries, error) {
	var combinedSQL strings.Builder

	err := fs.WalkDir(queriesFS, "queries", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}

		content, err := queriesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		combinedSQL.Write(content)
		combinedSQL.WriteString("\n")
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load query files: %w", err)
	}

	dot, err := dotsql.LoadFromString(combinedSQL.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse queries: %w", err)
	}

	return &Queries{dot: dot, db: db}, nil
}

// raw returns the named query without its trailing semicolon, so it can be
// extended with further clauses.
func (q *Queries) raw(name string) (string, error) {
	query, err := q.dot.Raw(name)
	if err != nil {
		return "", fmt.Errorf("query not found: %s", name)
	}
	return strings.TrimSuffix(strings.TrimSpace(query), ";"), nil
}

// bind expands slice arguments for IN (?) clauses and rebinds placeholders
// for the driver ($1, $2 for PostgreSQL).
func (q *Queries) bind(query string, args ...interface{}) (string, []interface{}, error) {
	expanded, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, fmt.Errorf("expand query arguments: %w", err)
	}
	return q.db.Rebind(expanded), args, nil
}

// Exec executes a named query.
func (q *Queries) Exec(ctx context.Context, name string, args ...interface{}) (sql.Result, error) {
	return q.ExecTx(ctx, q.db, name, args...)
}

// ExecTx executes a named query on ext, which may be a transaction.
func (q *Queries) ExecTx(ctx context.Context, ext sqlx.ExecerContext, name string, args ...interface{}) (sql.Result, error) {
	query, err := q.raw(name)
	if err != nil {
		return nil, err
	}
	query, args, err = q.bind(query, args...)
	if err != nil {
		return nil, err
	}
	return ext.ExecContext(ctx, query, args...)
}

// Get retrieves a single row into dest using a named query.
func (q *Queries) Get(ctx context.Context, name string, dest interface{}, args ...interface{}) error {
	query, err := q.raw(name)
	if err != nil {
		return err
	}
	query, args, err = q.bind(query, args...)
	if err != nil {
		return err
	}
	return q.db.GetContext(ctx, dest, query, args...)
}

// Select retrieves multiple rows into dest using a named query.
func (q *Queries) Select(ctx context.Context, name string, dest interface{}, args ...interface{}) error {
	query, err := q.raw(name)
	if err != nil {
		return err
	}
	return q.SelectWith(ctx, dest, query, args...)
}

// SelectWith runs an already composed query built from named fragments.
func (q *Queries) SelectWith(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	query, args, err := q.bind(query, args...)
	if err != nil {
		return err
	}
	return q.db.SelectContext(ctx, dest, query, args...)
}
