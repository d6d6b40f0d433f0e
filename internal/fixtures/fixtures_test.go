package fixtures

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/ledgerask/ledgerask/internal/migrations"
	"github.com/ledgerask/ledgerask/internal/query"
	"github.com/ledgerask/ledgerask/internal/storage"
	"github.com/ledgerask/ledgerask/internal/store"
)

func TestDefaultFixturesParse(t *testing.T) {
	set, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	counts := set.Counts()
	if counts.Sales != 8 || counts.Orders != 8 {
		t.Fatalf("Counts() = %+v", counts)
	}
	monitors := 0
	for _, order := range set.Orders {
		if order.Product == "monitor" {
			monitors++
		}
	}
	if monitors == 0 {
		t.Fatal("expected monitor orders in default fixtures")
	}
}

func TestParseRejectsInvalidRows(t *testing.T) {
	cases := map[string]string{
		"bad date":        "sales:\n  - {customer_name: a, revenue: 1, region: n, sale_date: 05/01/2024}\n",
		"missing product": "orders:\n  - {customer_name: a, order_amount: 1, order_date: \"2024-01-01\"}\n",
		"missing name":    "sales:\n  - {revenue: 1, region: n, sale_date: \"2024-01-01\"}\n",
		"not yaml":        "sales: [",
	}
	for name, body := range cases {
		if _, err := Parse([]byte(body)); err == nil {
			t.Fatalf("Parse(%s) expected error", name)
		}
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	first := NewGenerator(42, 5).Set(20, 10)
	second := NewGenerator(42, 5).Set(20, 10)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("same seed produced different fixtures")
	}
	if err := first.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	for _, sale := range first.Sales {
		if sale.CustomerName < "customer-001" || sale.CustomerName > "customer-005" {
			t.Fatalf("customer outside cardinality: %q", sale.CustomerName)
		}
	}
	other := NewGenerator(7, 5).Set(20, 10)
	if reflect.DeepEqual(first, other) {
		t.Fatal("different seeds produced identical fixtures")
	}
}

func TestLoadSmokeAndReadBackOnDuckDB(t *testing.T) {
	db := migratedDuckDB(t)
	ctx := context.Background()

	set, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	counts, err := Load(ctx, db, set, LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if counts != set.Counts() {
		t.Fatalf("Load() = %+v", counts)
	}

	results, err := Smoke(ctx, db, query.NewEngine())
	if err != nil {
		t.Fatalf("Smoke() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Smoke() results = %d", len(results))
	}
	for _, result := range results {
		if len(result.Rows) != SmokeRowLimit {
			t.Fatalf("%s smoke rows = %d", result.Table, len(result.Rows))
		}
	}
	if strings.Join(results[0].Columns, ",") != "customer_name,revenue,region,sale_date" {
		t.Fatalf("sales columns = %v", results[0].Columns)
	}

	if _, err := Load(ctx, db, set, LoadOptions{Replace: true}); err != nil {
		t.Fatalf("Load(replace) error = %v", err)
	}
	readBack, err := ReadSet(ctx, db)
	if err != nil {
		t.Fatalf("ReadSet() error = %v", err)
	}
	if readBack.Counts() != set.Counts() {
		t.Fatalf("ReadSet() counts = %+v, want %+v", readBack.Counts(), set.Counts())
	}
	if readBack.Sales[0].SaleDate != set.Sales[0].SaleDate {
		t.Fatalf("sale date = %q, want %q", readBack.Sales[0].SaleDate, set.Sales[0].SaleDate)
	}
}

func TestLoadBuildsDollarPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	set := Set{
		Sales:  []Sale{{CustomerName: "alice", Revenue: 10, Region: "north", SaleDate: "2024-01-02"}},
		Orders: []Order{{CustomerName: "alice", OrderAmount: 5, Product: "monitor", OrderDate: "2024-01-03"}},
	}
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sales (customer_name,revenue,region,sale_date) VALUES ($1,$2,$3,$4)")).
		WithArgs("alice", 10.0, "north", time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders (customer_name,order_amount,product,order_date) VALUES ($1,$2,$3,$4)")).
		WithArgs("alice", 5.0, "monitor", time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if _, err := Load(context.Background(), db, set, LoadOptions{}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestExportedSnapshotsServeParquetOpener(t *testing.T) {
	set, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	objects := &memoryStore{objects: map[string][]byte{}}
	results, err := Export(context.Background(), objects, "ledger", set)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if len(results) != 2 || results[0].Key != "ledger/sales/snapshot.parquet" || results[1].Key != "ledger/orders/snapshot.parquet" {
		t.Fatalf("Export() = %+v", results)
	}

	handle, err := store.ParquetOpener{Store: objects, Dataset: "ledger"}.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = handle.Close() }()

	readBack, err := ReadSet(context.Background(), handle.DB)
	if err != nil {
		t.Fatalf("ReadSet() error = %v", err)
	}
	if !reflect.DeepEqual(readBack, set) {
		t.Fatalf("ReadSet() = %+v, want %+v", readBack, set)
	}
}

func migratedDuckDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)
	if _, err := migrations.NewRunner().Up(context.Background(), db, 0); err != nil {
		t.Fatalf("migrations Up() error = %v", err)
	}
	return db
}

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = data
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}
