package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/ledgerask/ledgerask/internal/ledger"
	"github.com/ledgerask/ledgerask/internal/storage"
)

// ParquetOpener stages the latest parquet snapshot of each ledger table from the
// object store and exposes them as views in an in-memory DuckDB database.
type ParquetOpener struct {
	Store   storage.ObjectStore
	Dataset string
}

func (o ParquetOpener) Open(ctx context.Context) (*Handle, error) {
	if o.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}

	workDir, err := os.MkdirTemp("", "ledgerask-snapshot-")
	if err != nil {
		return nil, fmt.Errorf("create snapshot temp dir: %w", err)
	}
	cleanup := func() error { return os.RemoveAll(workDir) }

	localPaths := make(map[string]string, len(ledger.Names()))
	for _, table := range ledger.Names() {
		localPath, err := o.stage(ctx, workDir, table)
		if err != nil {
			_ = cleanup()
			return nil, err
		}
		localPaths[table] = localPath
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db.SetMaxOpenConns(1)
	handle := NewHandle(db, DialectDuckDB, cleanup)

	for _, table := range ledger.Names() {
		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(table), quoteString(localPaths[table]))
		if _, err := db.ExecContext(ctx, viewSQL); err != nil {
			_ = handle.Close()
			return nil, fmt.Errorf("create view for table %q: %w", table, err)
		}
	}
	return handle, nil
}

func (o ParquetOpener) stage(ctx context.Context, workDir, table string) (string, error) {
	key, err := storage.BuildSnapshotPath(o.Dataset, table)
	if err != nil {
		return "", err
	}
	reader, err := o.Store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("get snapshot %q: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	localPath := filepath.Join(workDir, table+".parquet")
	if err := writeFile(localPath, reader); err != nil {
		return "", fmt.Errorf("write local parquet file %q: %w", localPath, err)
	}
	return localPath, nil
}

func writeFile(path string, reader io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if _, err := io.Copy(file, reader); err != nil {
		return err
	}
	return nil
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
