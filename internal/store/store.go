// Package store opens short-lived database handles for a single pipeline invocation.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
	DriverParquet  = "parquet"
)

type Opener interface {
	Open(ctx context.Context) (*Handle, error)
}

// Handle owns one database connection and anything staged for it. Close must be
// called on every exit path.
type Handle struct {
	DB      *sql.DB
	Dialect string

	cleanup func() error
	closed  bool
}

func NewHandle(db *sql.DB, dialect string, cleanup func() error) *Handle {
	return &Handle{DB: db, Dialect: dialect, cleanup: cleanup}
}

func (h *Handle) Close() error {
	if h == nil || h.closed {
		return nil
	}
	h.closed = true

	var errs []error
	if h.DB != nil {
		if err := h.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	if h.cleanup != nil {
		if err := h.cleanup(); err != nil {
			errs = append(errs, fmt.Errorf("cleanup: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Ping opens a handle and closes it again; used by readiness checks.
func Ping(ctx context.Context, opener Opener) error {
	if opener == nil {
		return errors.New("store opener is not configured")
	}
	handle, err := opener.Open(ctx)
	if err != nil {
		return err
	}
	return handle.Close()
}

func ValidDriver(driver string) bool {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverDuckDB, DriverPostgres, DriverParquet:
		return true
	default:
		return false
	}
}
