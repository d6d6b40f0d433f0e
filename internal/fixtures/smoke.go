package fixtures

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ledgerask/ledgerask/internal/ledger"
	"github.com/ledgerask/ledgerask/internal/query"
)

const SmokeRowLimit = 5

// Smoke runs "select * from <table> limit 5" for each ledger table.
func Smoke(ctx context.Context, db *sql.DB, executor query.Executor) ([]query.Result, error) {
	results := make([]query.Result, 0, len(ledger.Names()))
	for _, table := range ledger.Names() {
		statement := fmt.Sprintf("select * from %s limit %d", table, SmokeRowLimit)
		result, err := executor.Execute(ctx, db, query.Request{SQL: statement, Table: table})
		if err != nil {
			return results, fmt.Errorf("smoke check %s: %w", table, err)
		}
		results = append(results, result)
	}
	return results, nil
}
