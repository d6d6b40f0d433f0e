package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
)

const DialectDuckDB = "DuckDB"

type DuckDBOpener struct {
	Path     string
	ReadOnly bool
}

func (o DuckDBOpener) Open(ctx context.Context) (*Handle, error) {
	db, err := sql.Open("duckdb", duckDBDSN(o.Path, o.ReadOnly))
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return NewHandle(db, DialectDuckDB, nil), nil
}

func duckDBDSN(path string, readOnly bool) string {
	path = strings.TrimSpace(path)
	if path == "" || !readOnly {
		return path
	}
	return path + "?access_mode=read_only"
}
