// Package pipeline answers a free-text question by generating, repairing,
// checking and executing one query against the ledger tables.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ledgerask/ledgerask/internal/generation"
	"github.com/ledgerask/ledgerask/internal/ledger"
	"github.com/ledgerask/ledgerask/internal/observability"
	"github.com/ledgerask/ledgerask/internal/prompt"
	"github.com/ledgerask/ledgerask/internal/query"
	"github.com/ledgerask/ledgerask/internal/router"
	"github.com/ledgerask/ledgerask/internal/sanitize"
	"github.com/ledgerask/ledgerask/internal/sqlguard"
	"github.com/ledgerask/ledgerask/internal/store"
)

const MaxQuestionLength = 2000

type FailureKind string

const (
	FailureInvalidQuestion     FailureKind = "invalid_question"
	FailureStoreUnavailable    FailureKind = "store_unavailable"
	FailureUpstreamUnavailable FailureKind = "upstream_unavailable"
	FailureGenerationFailed    FailureKind = "generation_failed"
	FailureQueryRejected       FailureKind = "query_rejected"
	FailureExecutionFailed     FailureKind = "execution_failed"
)

type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Response is the outcome of one question. SQL is empty when generation failed.
type Response struct {
	RequestID string
	SQL       string
	Columns   []string
	Rows      [][]any
	Table     string
	Failure   *Failure
}

func (r Response) Failed() bool {
	return r.Failure != nil
}

type Describer interface {
	Describe(ctx context.Context, db *sql.DB, table string) (ledger.Table, error)
}

type Options struct {
	Opener       store.Opener
	Catalog      Describer
	Generator    generation.Generator
	Executor     query.Executor
	GuardEnabled bool
	RowLimit     int
	Logger       *slog.Logger
}

type Service struct {
	opener       store.Opener
	catalog      Describer
	generator    generation.Generator
	executor     query.Executor
	guardEnabled bool
	rowLimit     int
	logger       *slog.Logger
}

func NewService(opts Options) (*Service, error) {
	if opts.Opener == nil {
		return nil, fmt.Errorf("store opener is required")
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("schema catalog is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if opts.RowLimit < 0 {
		return nil, fmt.Errorf("row limit must be >= 0")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		opener:       opts.Opener,
		catalog:      opts.Catalog,
		generator:    opts.Generator,
		executor:     opts.Executor,
		guardEnabled: opts.GuardEnabled,
		rowLimit:     opts.RowLimit,
		logger:       logger,
	}, nil
}

// Ask runs the whole pipeline for one question. Failures are reported in the
// response, never as a Go error.
func (s *Service) Ask(ctx context.Context, question string) Response {
	requestID := uuid.NewString()
	logger := s.logger.With(slog.String("request_id", requestID))
	response := s.ask(ctx, logger, question)
	response.RequestID = requestID

	outcome := "ok"
	if response.Failure != nil {
		outcome = string(response.Failure.Kind)
		logger.WarnContext(ctx, "question failed",
			slog.String("kind", outcome),
			slog.String("sql", response.SQL),
			slog.String("error", response.Failure.Message),
		)
	} else {
		logger.InfoContext(ctx, "question answered",
			slog.String("table", response.Table),
			slog.Int("rows", len(response.Rows)),
		)
	}
	observability.ObserveQuestion(outcome)
	return response
}

func (s *Service) ask(ctx context.Context, logger *slog.Logger, question string) Response {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return failed("", FailureInvalidQuestion, "question is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxQuestionLength {
		return failed("", FailureInvalidQuestion, fmt.Sprintf("question exceeds %d characters", MaxQuestionLength))
	}

	handle, err := s.opener.Open(ctx)
	if err != nil {
		return failed("", FailureStoreUnavailable, err.Error())
	}
	defer func() {
		if err := handle.Close(); err != nil {
			logger.WarnContext(ctx, "close store handle", slog.String("error", err.Error()))
		}
	}()

	tables := router.SelectTables(trimmed)
	schemas := make([]ledger.Table, 0, len(tables))
	for _, table := range tables {
		described, err := s.catalog.Describe(ctx, handle.DB, table)
		if err != nil {
			logger.WarnContext(ctx, "schema lookup failed", slog.String("table", table), slog.String("error", err.Error()))
			described = ledger.Table{Name: table, Columns: []string{}}
		}
		schemas = append(schemas, described)
	}
	logger.DebugContext(ctx, "tables selected", slog.Any("tables", tables))

	instruction := prompt.Build(prompt.Input{Dialect: handle.Dialect, Schemas: schemas, Question: question})

	generationStart := time.Now()
	raw, err := s.generator.Generate(ctx, instruction)
	observability.ObserveGeneration(time.Since(generationStart))
	if err != nil {
		var unavailable *generation.UpstreamUnavailableError
		if errors.As(err, &unavailable) {
			return failed("", FailureUpstreamUnavailable, err.Error())
		}
		if errors.Is(err, generation.ErrNoCompletions) {
			return failed("", FailureGenerationFailed, "No choices found in the response.")
		}
		return failed("", FailureGenerationFailed, err.Error())
	}
	logger.DebugContext(ctx, "completion received", slog.String("raw", raw))

	sqlText := sanitize.Clean(raw)
	if s.guardEnabled {
		stmt, err := sqlguard.Check(sqlText)
		if err != nil {
			return failed(sqlText, FailureQueryRejected, err.Error())
		}
		sqlText = stmt.String()
	}

	target := router.ExecutionTarget(sqlText)
	logger.DebugContext(ctx, "executing query",
		slog.String("sql", sqlText),
		slog.String("table", target.Table),
		slog.Bool("join", target.Join),
	)

	result, err := s.executor.Execute(ctx, handle.DB, query.Request{SQL: sqlText, Table: target.Table, RowLimit: s.rowLimit})
	if err != nil {
		return failed(sqlText, FailureExecutionFailed, err.Error())
	}
	observability.ObserveQuery(result.Duration, len(result.Rows))

	return Response{
		SQL:     sqlText,
		Columns: result.Columns,
		Rows:    result.Rows,
		Table:   target.Table,
	}
}

func failed(sqlText string, kind FailureKind, message string) Response {
	return Response{SQL: sqlText, Failure: &Failure{Kind: kind, Message: message}}
}

// SchemaSnapshot is the live shape of the ledger tables in the configured store.
type SchemaSnapshot struct {
	Dialect string         `json:"dialect"`
	Tables  []ledger.Table `json:"tables"`
}

// Schema opens a fresh handle and describes every ledger table. Unlike Ask,
// lookup failures are returned to the caller.
func (s *Service) Schema(ctx context.Context) (SchemaSnapshot, error) {
	handle, err := s.opener.Open(ctx)
	if err != nil {
		return SchemaSnapshot{}, fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = handle.Close() }()

	snapshot := SchemaSnapshot{Dialect: handle.Dialect, Tables: make([]ledger.Table, 0, len(ledger.Names()))}
	for _, table := range ledger.Names() {
		described, err := s.catalog.Describe(ctx, handle.DB, table)
		if err != nil {
			return SchemaSnapshot{}, fmt.Errorf("describe %s: %w", table, err)
		}
		snapshot.Tables = append(snapshot.Tables, described)
	}
	return snapshot, nil
}
