// Package migrations creates the sales and orders tables on DuckDB or PostgreSQL.
package migrations

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const (
	sourceDir      = "sql"
	migrationTable = "ledgerask_schema_migrations"
)

// Scripts are named <version>_<name>.<up|down>.sql.
var scriptName = regexp.MustCompile(`^([0-9]+)_(.+)\.(up|down)\.sql$`)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type migration struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

// Status reports one known migration and whether it is applied.
type Status struct {
	Version int64
	Name    string
	Applied bool
}

type Runner struct {
	source fs.FS
}

func NewRunner() *Runner {
	return newRunnerFS(embeddedFS)
}

func newRunnerFS(source fs.FS) *Runner {
	return &Runner{source: source}
}

// Up applies pending migrations oldest first. steps <= 0 applies all of them.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	known, applied, err := r.prepare(ctx, db)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, m := range known {
		if steps > 0 && done == steps {
			break
		}
		if applied[m.Version] {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}

// Down rolls back the newest applied migrations. steps <= 0 rolls back one.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	steps = max(steps, 1)
	known, applied, err := r.prepare(ctx, db)
	if err != nil {
		return 0, err
	}
	byVersion := make(map[int64]migration, len(known))
	for _, m := range known {
		byVersion[m.Version] = m
	}
	newestFirst := make([]int64, 0, len(applied))
	for version := range applied {
		newestFirst = append(newestFirst, version)
	}
	slices.Sort(newestFirst)
	slices.Reverse(newestFirst)

	done := 0
	for _, version := range newestFirst[:min(steps, len(newestFirst))] {
		m, ok := byVersion[version]
		if !ok {
			return done, fmt.Errorf("applied migration %d is missing from source", version)
		}
		if err := revert(ctx, db, m); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}

// Status lists every known migration in version order.
func (r *Runner) Status(ctx context.Context, db *sql.DB) ([]Status, error) {
	known, applied, err := r.prepare(ctx, db)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(known))
	for _, m := range known {
		out = append(out, Status{Version: m.Version, Name: m.Name, Applied: applied[m.Version]})
	}
	return out, nil
}

func (r *Runner) prepare(ctx context.Context, db *sql.DB) ([]migration, map[int64]bool, error) {
	known, err := parseSource(r.source)
	if err != nil {
		return nil, nil, err
	}
	const ddl = `CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
	version BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, nil, fmt.Errorf("ensure migration table: %w", err)
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, nil, err
	}
	return known, applied, nil
}

func apply(ctx context.Context, db *sql.DB, m migration) error {
	record := psql.Insert(migrationTable).Columns("version", "name").Values(m.Version, m.Name)
	return inTx(ctx, db, "apply", m, m.Up, record)
}

func revert(ctx context.Context, db *sql.DB, m migration) error {
	record := psql.Delete(migrationTable).Where(sq.Eq{"version": m.Version})
	return inTx(ctx, db, "rollback", m, m.Down, record)
}

// inTx runs a script and its bookkeeping statement atomically.
func inTx(ctx context.Context, db *sql.DB, verb string, m migration, script string, record sq.Sqlizer) error {
	recordSQL, recordArgs, err := record.ToSql()
	if err != nil {
		return fmt.Errorf("build %s record for migration %d: %w", verb, m.Version, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s of migration %d: %w", verb, m.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, statement := range splitStatements(script) {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("%s migration %d (%s): %w", verb, m.Version, m.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, recordSQL, recordArgs...); err != nil {
		return fmt.Errorf("record %s of migration %d: %w", verb, m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s of migration %d: %w", verb, m.Version, err)
	}
	return nil
}

// splitStatements breaks a script on semicolons. Scripts hold plain DDL only.
func splitStatements(script string) []string {
	var statements []string
	for _, part := range strings.Split(script, ";") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			statements = append(statements, trimmed)
		}
	}
	return statements
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int64]bool, error) {
	query, args, err := psql.Select("version").From(migrationTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build applied versions query: %w", err)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := map[int64]bool{}
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied versions: %w", err)
	}
	return applied, nil
}

// parseSource pairs the up and down scripts found in the sql directory and
// orders them by version. Files not matching the naming scheme are ignored.
func parseSource(source fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(source, sourceDir)
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	byVersion := map[int64]*migration{}
	for _, entry := range entries {
		parts := scriptName.FindStringSubmatch(entry.Name())
		if entry.IsDir() || parts == nil {
			continue
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version for %q: %w", entry.Name(), err)
		}
		body, err := fs.ReadFile(source, sourceDir+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &migration{Version: version, Name: parts[2]}
			byVersion[version] = m
		} else if m.Name != parts[2] {
			return nil, fmt.Errorf("migration %d has mismatched names %q and %q", version, m.Name, parts[2])
		}
		if parts[3] == "up" {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	out := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		switch {
		case strings.TrimSpace(m.Up) == "":
			return nil, fmt.Errorf("migration %d missing up SQL", m.Version)
		case strings.TrimSpace(m.Down) == "":
			return nil, fmt.Errorf("migration %d missing down SQL", m.Version)
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b migration) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}
