package sqlc

import (
	"context"
	"database/sql"
	_ "embed"
	"strings"
)

//go:embed schema.sql
var ddl string

// CreateLocalTables creates all tables defined in schema.sql.
// This is used for testing and local development.
func CreateLocalTables(ctx context.Context, db *sql.DB) error {
	stmts := strings.Split(ddl, ";")
	for _, stmt := range stmts {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
