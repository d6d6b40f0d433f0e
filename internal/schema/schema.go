// Package schema reads the live column lists of the ledger tables.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/ledgerask/ledgerask/internal/ledger"
)

type Catalog struct {
	builder sq.StatementBuilderType
}

func NewCatalog() *Catalog {
	return &Catalog{builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// Describe returns the table's columns in declaration order. A table that does
// not exist yields an empty column list and no error.
func (c *Catalog) Describe(ctx context.Context, db *sql.DB, table string) (ledger.Table, error) {
	if db == nil {
		return ledger.Table{}, fmt.Errorf("database is required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return ledger.Table{}, fmt.Errorf("table name is required")
	}

	query, args, err := c.builder.
		Select("column_name").
		From("information_schema.columns").
		Where(sq.Eq{"table_name": table}).
		Where("table_schema = current_schema()").
		OrderBy("ordinal_position").
		ToSql()
	if err != nil {
		return ledger.Table{}, fmt.Errorf("build column lookup: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return ledger.Table{}, fmt.Errorf("lookup columns of %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	described := ledger.Table{Name: table, Columns: []string{}}
	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			return ledger.Table{}, fmt.Errorf("scan column of %q: %w", table, err)
		}
		described.Columns = append(described.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return ledger.Table{}, fmt.Errorf("iterate columns of %q: %w", table, err)
	}
	return described, nil
}

// Block renders a table the way the prompt lists it.
func Block(table ledger.Table) string {
	return fmt.Sprintf("Table: %s\nColumns: %s\n", table.Name, strings.Join(table.Columns, ", "))
}
