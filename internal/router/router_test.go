package router

import (
	"reflect"
	"testing"
)

func TestSelectTablesMatchesCues(t *testing.T) {
	cases := []struct {
		question string
		want     []string
	}{
		{question: "Total sales?", want: []string{"sales"}},
		{question: "Which REGION did best", want: []string{"sales"}},
		{question: "Top 3 customers by revenue?", want: []string{"sales"}},
		{question: "Show order amounts", want: []string{"orders"}},
		{question: "Who bought a product like monitor", want: []string{"orders"}},
		{question: "Product and revenue?", want: []string{"sales", "orders"}},
		{question: "Who bought monitor?", want: []string{"sales", "orders"}},
		{question: "Total customers?", want: []string{"sales", "orders"}},
	}
	for _, tc := range cases {
		if got := SelectTables(tc.question); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("SelectTables(%q) = %v, want %v", tc.question, got, tc.want)
		}
	}
}

func TestSelectTablesIsSubstringBased(t *testing.T) {
	// "bordering" contains "order"; accepted imprecision of substring cues.
	got := SelectTables("customers bordering the lake")
	if !reflect.DeepEqual(got, []string{"orders"}) {
		t.Fatalf("SelectTables() = %v", got)
	}
}

func TestExecutionTarget(t *testing.T) {
	cases := []struct {
		sql  string
		want Target
	}{
		{
			sql:  "select distinct s.customer_name, s.revenue from sales s join orders o on s.customer_name = o.customer_name",
			want: Target{Table: "sales", Join: true},
		},
		{sql: "select sum(revenue) as total_sales from sales", want: Target{Table: "sales"}},
		{sql: "select count(distinct customer_name) as total_orders from orders", want: Target{Table: "orders"}},
		{sql: "select product from orders where order_amount > 10", want: Target{Table: "orders"}},
	}
	for _, tc := range cases {
		if got := ExecutionTarget(tc.sql); got != tc.want {
			t.Fatalf("ExecutionTarget(%q) = %+v, want %+v", tc.sql, got, tc.want)
		}
	}
}
