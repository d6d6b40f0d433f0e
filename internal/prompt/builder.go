// Package prompt assembles the instruction sent to the text-generation service.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ledgerask/ledgerask/internal/ledger"
	"github.com/ledgerask/ledgerask/internal/schema"
)

const defaultDialect = "SQL"

type Input struct {
	Dialect  string
	Schemas  []ledger.Table
	Question string
}

// Example pairs a question with the query the model is expected to produce.
type Example struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
}

var rules = []string{
	"Use 'sales' table for queries about sales, revenue, region, or sale dates. Only use columns: customer_name, revenue, region, sale_date.",
	"Use 'orders' table for queries about orders, order amounts, products, or order dates. Only use columns: customer_name, order_amount, product, order_date.",
	"Do NOT use 'order_id' or 'id' in SELECT statements unless explicitly requested (e.g., 'show order IDs'), as they are auto-incrementing primary keys and may not be directly selectable.",
	"If the query contains 'more than', 'less than', 'equal to', use `where`.",
	"If the query asks for the 'highest' or 'lowest', use `order by revenue desc` or `asc` for sales, or `order by order_amount desc` or `asc` for orders.",
	"If the query asks for the 'top' or 'most', use `order by revenue desc limit X` for sales or `order by order_amount desc limit X` for orders, where X is the number specified (default to 3 if not specified).",
	"If the query asks for the 'least' or 'smallest', use `order by revenue asc limit X` for sales or `order by order_amount asc limit X` for orders, where X is the number specified (default to 3 if not specified).",
	"If it asks for 'total customers', interpret as the total unique customers from the sales table: select count(distinct customer_name) as total_customers from sales;",
	"If it asks for 'total orders', interpret as the total unique customers from the orders table: select count(distinct customer_name) as total_orders from orders;",
	"If it asks for 'total sales table' or 'total sales', interpret as the total revenue from the sales table: select sum(revenue) as total_sales from sales;",
	"If it asks for 'who sold more', interpret as 'top customers by total revenue' from the sales table: select customer_name, sum(revenue) as total_revenue from sales group by customer_name order by total_revenue desc limit 5;",
	"If it asks for 'who bought [product]', 'which customer bought [product]', 'who has [product]', 'who have [product]', or 'who brought [product]' (treating 'have', 'has', or 'brought' as typos for 'bought'), interpret as finding customers who ordered that exact product and their sales revenue by joining the tables. Use `select distinct s.customer_name, s.revenue from sales s join orders o on s.customer_name = o.customer_name where o.product = '[product]'` (e.g., `where o.product = 'monitor'`), ensuring the product value is enclosed in single quotes.",
	"If the query mentions both 'product' and 'revenue' (e.g., 'product and revenue'), join the 'sales' and 'orders' tables on customer_name to show customers with both sales revenue and product purchases: use `select distinct s.customer_name, s.revenue, o.product from sales s join orders o on s.customer_name = o.customer_name`.",
	"Always generate a proper %s query, no explanations.",
	"Always verify column names match the schemas provided EXACTLY, and only use exact column names listed (e.g., customer_name, not CustomerName or client_namn).",
	"Ensure column names, table names, and SQL keywords (e.g., select, from, where, group by, order by, distinct, as, count, sum, join) are lowercase and match the schema exactly (e.g., customer_name, sales, orders, not CUSTOMER_NAME, SALES, ORDERS).",
	"Ensure proper spacing and syntax: use SINGLE spaces between all keywords, identifiers, and operators (e.g., `select distinct s.customer_name, s.revenue from sales s join orders o on s.customer_name = o.customer_name`), with no special characters (e.g., backslashes, quotes) except as needed for strings in `where` clauses. Ensure string literals (e.g., product values) are enclosed in single quotes (e.g., `where o.product = 'monitor'`).",
	"EVERY select query MUST include a `from` clause with the correct table name (e.g., `from sales` or `from orders`). For joins, use `from sales s join orders o on s.customer_name = o.customer_name`.",
	"Handle numeric modifiers in queries (e.g., 'top 3 customers by 20 revenue') by interpreting '20 revenue' as 'revenue over 20' or similar thresholds, and always include `from`.",
}

var examples = []Example{
	{Question: "Who sold more than 100?", SQL: "select customer_name from sales where revenue > 100;"},
	{Question: "Top 3 customers by revenue?", SQL: "select customer_name, sum(revenue) as total_revenue from sales group by customer_name order by total_revenue desc limit 3;"},
	{Question: "Who bought monitor?", SQL: "select distinct s.customer_name, s.revenue from sales s join orders o on s.customer_name = o.customer_name where o.product = 'monitor';"},
	{Question: "Total customers?", SQL: "select count(distinct customer_name) as total_customers from sales;"},
	{Question: "Total sales table?", SQL: "select sum(revenue) as total_sales from sales;"},
	{Question: "Product and revenue?", SQL: "select distinct s.customer_name, s.revenue, o.product from sales s join orders o on s.customer_name = o.customer_name;"},
}

// Rules returns the rule catalog rendered for dialect.
func Rules(dialect string) []string {
	dialect = dialectOrDefault(dialect)
	rendered := make([]string, len(rules))
	for i, rule := range rules {
		if strings.Contains(rule, "%s") {
			rule = fmt.Sprintf(rule, dialect)
		}
		rendered[i] = rule
	}
	return rendered
}

func Examples() []Example {
	return append([]Example(nil), examples...)
}

// Build renders the full instruction. The output depends only on in.
func Build(in Input) string {
	dialect := dialectOrDefault(in.Dialect)

	var b strings.Builder
	fmt.Fprintf(&b, "You are an SQL expert for %s. Convert the user's request into a SINGLE valid %s query based on these database schemas, outputting ONLY the SQL query itself: NO explanations, comments, descriptions, or additional text of any kind (e.g., no 'To determine...', no notes, just the SQL query ending with a semicolon).\n\n", dialect, dialect)
	for _, table := range in.Schemas {
		b.WriteString(schema.Block(table))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nUser Query: %s\n\n", in.Question)

	b.WriteString("Rules:\n")
	for _, rule := range Rules(dialect) {
		b.WriteString("- ")
		b.WriteString(rule)
		b.WriteString("\n")
	}

	b.WriteString("\nExample Outputs (all must be lowercase, properly spaced, and end with a semicolon):\n")
	for _, example := range examples {
		fmt.Fprintf(&b, "- User: '%s' -> %s\n", example.Question, example.SQL)
	}
	return b.String()
}

func dialectOrDefault(dialect string) string {
	dialect = strings.TrimSpace(dialect)
	if dialect == "" {
		return defaultDialect
	}
	return dialect
}
