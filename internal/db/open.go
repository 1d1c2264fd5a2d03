package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/modfin/qualm/internal/db/vec"
	_ "modernc.org/sqlite"
)

// Open opens the sqlite database at path and makes sure the schema exists.
func Open(ctx context.Context, path string) (*sql.DB, *Queries, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database file, %s: %w", "file://"+path, err)
	}

	_, err = conn.ExecContext(ctx, Schema)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return conn, New(conn), nil
}

func Statistics() {
	vec.Statistics()
}
