package fixtures

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/ledgerask/ledgerask/internal/ledger"
)

var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const insertBatchSize = 200

type LoadOptions struct {
	// Replace deletes existing rows before inserting.
	Replace bool
}

// Load inserts the set inside one transaction.
func Load(ctx context.Context, db *sql.DB, set Set, opts LoadOptions) (Counts, error) {
	if err := set.Validate(); err != nil {
		return Counts{}, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Counts{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if opts.Replace {
		for _, table := range ledger.Names() {
			query, args, err := psq.Delete(table).ToSql()
			if err != nil {
				return Counts{}, fmt.Errorf("build delete for %s: %w", table, err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return Counts{}, fmt.Errorf("clear %s: %w", table, err)
			}
		}
	}

	salesRows := make([][]any, 0, len(set.Sales))
	for _, sale := range set.Sales {
		day, _ := parseDate(sale.SaleDate)
		salesRows = append(salesRows, []any{sale.CustomerName, sale.Revenue, sale.Region, day})
	}
	if err := insertRows(ctx, tx, ledger.Sales, salesRows); err != nil {
		return Counts{}, err
	}

	orderRows := make([][]any, 0, len(set.Orders))
	for _, order := range set.Orders {
		day, _ := parseDate(order.OrderDate)
		orderRows = append(orderRows, []any{order.CustomerName, order.OrderAmount, order.Product, day})
	}
	if err := insertRows(ctx, tx, ledger.Orders, orderRows); err != nil {
		return Counts{}, err
	}

	if err := tx.Commit(); err != nil {
		return Counts{}, fmt.Errorf("commit fixtures: %w", err)
	}
	return set.Counts(), nil
}

func insertRows(ctx context.Context, tx *sql.Tx, table ledger.Table, rows [][]any) error {
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		builder := psq.Insert(table.Name).Columns(table.Columns...)
		for _, row := range rows[start:end] {
			builder = builder.Values(row...)
		}
		query, args, err := builder.ToSql()
		if err != nil {
			return fmt.Errorf("build insert for %s: %w", table.Name, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert %s rows: %w", table.Name, err)
		}
	}
	return nil
}
