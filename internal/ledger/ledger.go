// Package ledger describes the two fixed tables the question pipeline can query.
package ledger

const (
	SalesTable  = "sales"
	OrdersTable = "orders"
)

type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

var (
	Sales  = Table{Name: SalesTable, Columns: []string{"customer_name", "revenue", "region", "sale_date"}}
	Orders = Table{Name: OrdersTable, Columns: []string{"customer_name", "order_amount", "product", "order_date"}}
)

// Names returns the known table names in routing order.
func Names() []string {
	return []string{SalesTable, OrdersTable}
}

func Known(name string) bool {
	switch name {
	case SalesTable, OrdersTable:
		return true
	default:
		return false
	}
}

// Descriptor returns the declared shape of a known table.
func Descriptor(name string) (Table, bool) {
	switch name {
	case SalesTable:
		return clone(Sales), true
	case OrdersTable:
		return clone(Orders), true
	default:
		return Table{}, false
	}
}

func clone(t Table) Table {
	return Table{Name: t.Name, Columns: append([]string(nil), t.Columns...)}
}
