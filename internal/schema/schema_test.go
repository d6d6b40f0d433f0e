package schema

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/ledgerask/ledgerask/internal/ledger"
)

const columnLookup = `SELECT column_name FROM information_schema.columns WHERE table_name = $1 AND table_schema = current_schema() ORDER BY ordinal_position`

func TestDescribeReadsColumnsInOrder(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(columnLookup)).
		WithArgs("sales").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).
			AddRow("customer_name").AddRow("revenue").AddRow("region").AddRow("sale_date"))

	table, err := NewCatalog().Describe(context.Background(), db, "sales")
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	want := ledger.Sales.Columns
	if strings.Join(table.Columns, ",") != strings.Join(want, ",") {
		t.Fatalf("Columns = %v, want %v", table.Columns, want)
	}
	assertSQLMock(t, mock)
}

func TestDescribeMissingTableIsEmpty(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(columnLookup)).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}))

	table, err := NewCatalog().Describe(context.Background(), db, "orders")
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if table.Name != "orders" || len(table.Columns) != 0 {
		t.Fatalf("Describe() = %+v", table)
	}
	assertSQLMock(t, mock)
}

func TestDescribePropagatesDriverError(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(columnLookup)).
		WithArgs("sales").
		WillReturnError(errors.New("connection reset"))

	if _, err := NewCatalog().Describe(context.Background(), db, "sales"); err == nil {
		t.Fatal("expected driver error")
	}
	assertSQLMock(t, mock)
}

func TestDescribeAgainstDuckDB(t *testing.T) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Exec(`CREATE TABLE orders (customer_name VARCHAR, order_amount DOUBLE, product VARCHAR, order_date DATE)`); err != nil {
		t.Fatalf("create table error = %v", err)
	}

	table, err := NewCatalog().Describe(context.Background(), db, "orders")
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if strings.Join(table.Columns, ",") != "customer_name,order_amount,product,order_date" {
		t.Fatalf("Columns = %v", table.Columns)
	}

	missing, err := NewCatalog().Describe(context.Background(), db, "sales")
	if err != nil {
		t.Fatalf("Describe(sales) error = %v", err)
	}
	if len(missing.Columns) != 0 {
		t.Fatalf("Describe(sales) columns = %v", missing.Columns)
	}
}

func TestBlock(t *testing.T) {
	got := Block(ledger.Sales)
	want := "Table: sales\nColumns: customer_name, revenue, region, sale_date\n"
	if got != want {
		t.Fatalf("Block() = %q, want %q", got, want)
	}
	if got := Block(ledger.Table{Name: "orders"}); got != "Table: orders\nColumns: \n" {
		t.Fatalf("Block(empty) = %q", got)
	}
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
