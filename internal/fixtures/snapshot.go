package fixtures

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/parquet-go/parquet-go"

	"github.com/ledgerask/ledgerask/internal/ledger"
	"github.com/ledgerask/ledgerask/internal/storage"
)

type parquetSale struct {
	CustomerName string  `parquet:"customer_name"`
	Revenue      float64 `parquet:"revenue"`
	Region       string  `parquet:"region"`
	SaleDate     int32   `parquet:"sale_date,date"`
}

type parquetOrder struct {
	CustomerName string  `parquet:"customer_name"`
	OrderAmount  float64 `parquet:"order_amount"`
	Product      string  `parquet:"product"`
	OrderDate    int32   `parquet:"order_date,date"`
}

type ExportResult struct {
	Table string
	Key   string
	Rows  int
	Bytes int
}

// EncodeSales writes the sales rows as a parquet file with a DATE sale_date column.
func EncodeSales(sales []Sale) ([]byte, error) {
	rows := make([]parquetSale, 0, len(sales))
	for _, sale := range sales {
		day, err := parseDate(sale.SaleDate)
		if err != nil {
			return nil, err
		}
		rows = append(rows, parquetSale{
			CustomerName: sale.CustomerName,
			Revenue:      sale.Revenue,
			Region:       sale.Region,
			SaleDate:     epochDays(day),
		})
	}
	return encode(rows)
}

func EncodeOrders(orders []Order) ([]byte, error) {
	rows := make([]parquetOrder, 0, len(orders))
	for _, order := range orders {
		day, err := parseDate(order.OrderDate)
		if err != nil {
			return nil, err
		}
		rows = append(rows, parquetOrder{
			CustomerName: order.CustomerName,
			OrderAmount:  order.OrderAmount,
			Product:      order.Product,
			OrderDate:    epochDays(day),
		})
	}
	return encode(rows)
}

func encode[T any](rows []T) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func epochDays(day time.Time) int32 {
	return int32(day.UTC().Unix() / 86400)
}

// Export uploads one snapshot per ledger table under the dataset prefix.
func Export(ctx context.Context, store storage.ObjectStore, dataset string, set Set) ([]ExportResult, error) {
	salesData, err := EncodeSales(set.Sales)
	if err != nil {
		return nil, fmt.Errorf("encode sales snapshot: %w", err)
	}
	ordersData, err := EncodeOrders(set.Orders)
	if err != nil {
		return nil, fmt.Errorf("encode orders snapshot: %w", err)
	}

	payloads := []struct {
		table string
		data  []byte
		rows  int
	}{
		{table: ledger.SalesTable, data: salesData, rows: len(set.Sales)},
		{table: ledger.OrdersTable, data: ordersData, rows: len(set.Orders)},
	}

	results := make([]ExportResult, 0, len(payloads))
	for _, payload := range payloads {
		key, err := storage.BuildSnapshotPath(dataset, payload.table)
		if err != nil {
			return results, err
		}
		if _, err := store.Put(ctx, key, bytes.NewReader(payload.data), int64(len(payload.data)), storage.PutOptions{}); err != nil {
			return results, fmt.Errorf("upload %s snapshot: %w", payload.table, err)
		}
		results = append(results, ExportResult{Table: payload.table, Key: key, Rows: payload.rows, Bytes: len(payload.data)})
	}
	return results, nil
}

// ReadSet reads every row of both tables back from a database.
func ReadSet(ctx context.Context, db *sql.DB) (Set, error) {
	var set Set

	query, args, err := sq.Select(ledger.Sales.Columns...).From(ledger.SalesTable).ToSql()
	if err != nil {
		return Set{}, fmt.Errorf("build sales select: %w", err)
	}
	err = scanRows(ctx, db, query, args, func(rows *sql.Rows) error {
		var sale Sale
		var day time.Time
		if err := rows.Scan(&sale.CustomerName, &sale.Revenue, &sale.Region, &day); err != nil {
			return err
		}
		sale.SaleDate = day.Format(time.DateOnly)
		set.Sales = append(set.Sales, sale)
		return nil
	})
	if err != nil {
		return Set{}, fmt.Errorf("read sales: %w", err)
	}

	query, args, err = sq.Select(ledger.Orders.Columns...).From(ledger.OrdersTable).ToSql()
	if err != nil {
		return Set{}, fmt.Errorf("build orders select: %w", err)
	}
	err = scanRows(ctx, db, query, args, func(rows *sql.Rows) error {
		var order Order
		var day time.Time
		if err := rows.Scan(&order.CustomerName, &order.OrderAmount, &order.Product, &day); err != nil {
			return err
		}
		order.OrderDate = day.Format(time.DateOnly)
		set.Orders = append(set.Orders, order)
		return nil
	})
	if err != nil {
		return Set{}, fmt.Errorf("read orders: %w", err)
	}
	return set, nil
}

func scanRows(ctx context.Context, db *sql.DB, query string, args []any, scan func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
