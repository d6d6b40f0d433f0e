package sanitize

import "testing"

func TestClean(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "label and inline fences",
			raw:  "SQL Query: ```select * from sales;```",
			want: "select * from sales",
		},
		{
			name: "fenced block with language tag",
			raw:  "```sql\nSELECT customer_name\nFROM sales\nWHERE revenue > 100;\n```",
			want: "select customer_name from sales where revenue > 100",
		},
		{
			name: "lead-in prose and trailing explanation",
			raw:  "Here is the query you asked for:\nselect count(distinct customer_name) as total_customers from sales;\nThis counts every customer once.",
			want: "select count(distinct customer_name) as total_customers from sales",
		},
		{
			name: "prose mentioning select before the statement",
			raw:  "To select the right rows use:\n\nselect * from orders;",
			want: "select * from orders",
		},
		{
			name: "escaped quotes are removed",
			raw:  `select \"customer_name\" from sales`,
			want: "select customer_name from sales",
		},
		{
			name: "whitespace collapses",
			raw:  "select   customer_name,\t revenue\n\r from   sales",
			want: "select customer_name, revenue from sales",
		},
		{
			name: "joined product literal is requoted",
			raw:  "select distinct s.customer_name, s.revenue from sales s join orders o on s.customer_name = o.customer_name where o.product = monitor;",
			want: "select distinct s.customer_name, s.revenue from sales s join orders o on s.customer_name = o.customer_name where o.product = 'monitor'",
		},
		{
			name: "quoted literal survives quote stripping",
			raw:  "select customer_name from orders where product = 'Monitor';",
			want: "select customer_name from orders where product = 'monitor'",
		},
		{
			name: "literal followed by more clauses",
			raw:  "select customer_name, order_amount from orders where product = 'usb cable' order by order_amount desc limit 2;",
			want: "select customer_name, order_amount from orders where product = 'usb cable' order by order_amount desc limit 2",
		},
		{
			name: "literal followed by a conjunction",
			raw:  "select * from orders o where o.product = laptop and o.order_amount > 10",
			want: "select * from orders o where o.product = 'laptop' and o.order_amount > 10",
		},
		{
			name: "blank line between clauses",
			raw:  "select customer_name, revenue\n\nfrom sales\nwhere revenue > 100;",
			want: "select customer_name, revenue from sales where revenue > 100",
		},
		{
			name: "blank line before trailing prose",
			raw:  "select * from orders\n\norder by order_amount desc\n\nThis lists the largest orders first.",
			want: "select * from orders order by order_amount desc",
		},
		{
			name: "empty literal left alone",
			raw:  "select * from orders where product =",
			want: "select * from orders where product =",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Clean(tc.raw); got != tc.want {
				t.Fatalf("Clean() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		"select * from sales",
		"SQL Query: ```select * from sales;```",
		"select customer_name, sum(revenue) as total_revenue from sales group by customer_name order by total_revenue desc limit 3",
		"select distinct s.customer_name, s.revenue from sales s join orders o on s.customer_name = o.customer_name where o.product = 'monitor'",
		"select * from orders where product = keyboard order by order_amount desc",
		"```sql\nselect region, sum(revenue) from sales group by region;\n```",
	}
	for _, input := range inputs {
		once := Clean(input)
		if twice := Clean(once); twice != once {
			t.Fatalf("Clean(Clean(%q)) = %q, want %q", input, twice, once)
		}
	}
}
