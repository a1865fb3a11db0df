package sqlitemem

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/bypptech/group-wallet-organizer/pkg/sqlc"
)

// NewSQLiteMem opens a uniquely named in-memory database with the schema
// applied. Each call gets its own database so tests stay isolated.
func NewSQLiteMem(ctx context.Context) (*sql.DB, func(), error) {
	uniqueName := ulid.Make().String()
	connStr := fmt.Sprintf("file:testdb_%s?mode=memory&cache=shared", uniqueName)

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, nil, err
	}

	if err := sqlc.CreateLocalTables(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		db.Close()
	}
	return db, cleanup, nil
}
