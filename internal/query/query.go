// Package query executes generated statements and collects their results.
package query

import (
	"context"
	"database/sql"
	"time"
)

type Request struct {
	SQL      string
	Table    string
	RowLimit int
}

type Result struct {
	Columns  []string
	Rows     [][]any
	Table    string
	Duration time.Duration
}

type Executor interface {
	Execute(ctx context.Context, db *sql.DB, request Request) (Result, error)
}

// ExecutionError carries the database engine's message for a failed statement.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }
