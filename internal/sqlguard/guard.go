// Package sqlguard admits only single read-only selects over the ledger tables.
package sqlguard

import (
	"fmt"
	"slices"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/ledgerask/ledgerask/internal/ledger"
)

type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "query rejected: " + e.Reason
}

func reject(format string, args ...any) *RejectionError {
	return &RejectionError{Reason: fmt.Sprintf(format, args...)}
}

var allowedFunctions = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"round": true, "lower": true, "upper": true, "coalesce": true, "abs": true,
	"length": true, "trim": true, "year": true, "month": true,
}

var allowedComparisons = map[string]bool{
	sqlparser.EqualStr: true, sqlparser.NotEqualStr: true,
	sqlparser.LessThanStr: true, sqlparser.GreaterThanStr: true,
	sqlparser.LessEqualStr: true, sqlparser.GreaterEqualStr: true,
	sqlparser.InStr: true, sqlparser.NotInStr: true,
	sqlparser.LikeStr: true, sqlparser.NotLikeStr: true,
}

var allowedArithmetic = map[string]bool{
	sqlparser.PlusStr: true, sqlparser.MinusStr: true,
	sqlparser.MultStr: true, sqlparser.DivStr: true, sqlparser.ModStr: true,
}

// Statement is a checked select.
type Statement struct {
	sel    *sqlparser.Select
	tables []string
}

// Tables lists the tables the statement reads, primary table first.
func (s Statement) Tables() []string {
	return slices.Clone(s.tables)
}

// String renders the statement canonically: lower-case keywords and
// identifiers, single spaces, comments dropped, string literals single-quoted.
func (s Statement) String() string {
	return render(s.sel)
}

// Check parses sqlText and returns its statement when it is a single select
// over known tables using allowed functions.
func Check(sqlText string) (Statement, error) {
	if strings.TrimSpace(sqlText) == "" {
		return Statement{}, reject("query is empty")
	}
	if err := singleStatement(sqlText); err != nil {
		return Statement{}, err
	}
	parsed, err := sqlparser.Parse(sqlText)
	if err != nil {
		return Statement{}, reject("could not parse query: %v", err)
	}

	sel, ok := parsed.(*sqlparser.Select)
	if !ok {
		switch stmt := parsed.(type) {
		case *sqlparser.Union:
			return Statement{}, reject("set operations are not allowed")
		case *sqlparser.ParenSelect:
			return Statement{}, reject("parenthesized selects are not allowed")
		default:
			return Statement{}, reject("only select statements are allowed, found %s", statementKind(stmt))
		}
	}
	if sel.Lock != "" {
		return Statement{}, reject("locking clauses are not allowed")
	}
	if len(sel.From) > 1 {
		return Statement{}, reject("implicit joins are not allowed")
	}
	if err := checkLimit(sel.Limit); err != nil {
		return Statement{}, err
	}

	c := &checker{}
	if err := sqlparser.Walk(c.visit, sel); err != nil {
		return Statement{}, err
	}
	return Statement{sel: sel, tables: c.tables}, nil
}

// singleStatement rejects text holding anything but comments after the first
// semicolon.
func singleStatement(sqlText string) error {
	tokenizer := sqlparser.NewStringTokenizer(sqlText)
	terminated := false
	for {
		typ, _ := tokenizer.Scan()
		switch {
		case typ == 0:
			return nil
		case typ == sqlparser.LEX_ERROR:
			return reject("could not parse query: invalid token at position %d", tokenizer.Position)
		case typ == ';':
			terminated = true
		case typ == sqlparser.COMMENT:
		case terminated:
			return reject("multiple statements are not allowed")
		}
	}
}

func checkLimit(limit *sqlparser.Limit) error {
	if limit == nil {
		return nil
	}
	for _, value := range []sqlparser.Expr{limit.Rowcount, limit.Offset} {
		if value == nil {
			continue
		}
		if literal, ok := value.(*sqlparser.SQLVal); !ok || literal.Type != sqlparser.IntVal || strings.HasPrefix(string(literal.Val), "-") {
			return reject("limit must be a whole number")
		}
	}
	return nil
}

type checker struct {
	tables []string
	joins  int
}

func (c *checker) visit(node sqlparser.SQLNode) (bool, error) {
	switch n := node.(type) {
	case *sqlparser.Subquery, *sqlparser.ExistsExpr:
		return false, reject("subqueries are not allowed")
	case *sqlparser.ParenTableExpr:
		return false, reject("parenthesized table expressions are not allowed")
	case *sqlparser.JoinTableExpr:
		c.joins++
		if c.joins > 1 {
			return false, reject("at most one join is allowed")
		}
		if n.Join != sqlparser.JoinStr && n.Join != sqlparser.LeftJoinStr {
			return false, reject("%s is not allowed", n.Join)
		}
		if n.Condition.On == nil {
			return false, reject("join requires an on condition")
		}
	case *sqlparser.AliasedTableExpr:
		name, ok := n.Expr.(sqlparser.TableName)
		if !ok {
			return false, reject("subqueries are not allowed")
		}
		table := strings.ToLower(name.Name.String())
		if !name.Qualifier.IsEmpty() || !ledger.Known(table) {
			return false, reject("unknown table %q", sqlparser.String(name))
		}
		if !slices.Contains(c.tables, table) {
			c.tables = append(c.tables, table)
		}
	case *sqlparser.FuncExpr:
		return true, checkFunction(n)
	case *sqlparser.GroupConcatExpr:
		return false, reject("function %q is not allowed", "group_concat")
	case *sqlparser.SubstrExpr:
		return false, reject("function %q is not allowed", "substr")
	case *sqlparser.ConvertExpr:
		return false, reject("function %q is not allowed", "convert")
	case *sqlparser.MatchExpr:
		return false, reject("function %q is not allowed", "match")
	case *sqlparser.ValuesFuncExpr:
		return false, reject("function %q is not allowed", "values")
	case *sqlparser.SQLVal:
		if n.Type == sqlparser.ValArg {
			return false, reject("bind variables are not allowed")
		}
	case *sqlparser.ComparisonExpr:
		if !allowedComparisons[n.Operator] {
			return false, reject("operator %q is not allowed", n.Operator)
		}
	case *sqlparser.BinaryExpr:
		if !allowedArithmetic[n.Operator] {
			return false, reject("operator %q is not allowed", n.Operator)
		}
	case *sqlparser.UnaryExpr:
		if n.Operator != sqlparser.UMinusStr && n.Operator != sqlparser.UPlusStr {
			return false, reject("operator %q is not allowed", strings.TrimSpace(n.Operator))
		}
	}
	return true, nil
}

func checkFunction(fn *sqlparser.FuncExpr) error {
	name := fn.Name.Lowered()
	if !fn.Qualifier.IsEmpty() || !allowedFunctions[name] {
		return reject("function %q is not allowed", sqlparser.String(fn.Name))
	}
	for _, arg := range fn.Exprs {
		if _, star := arg.(*sqlparser.StarExpr); star && name != "count" {
			return reject("%s(*) is not allowed", name)
		}
	}
	return nil
}

func statementKind(stmt sqlparser.Statement) string {
	switch n := stmt.(type) {
	case *sqlparser.Insert:
		return "insert"
	case *sqlparser.Update:
		return "update"
	case *sqlparser.Delete:
		return "delete"
	case *sqlparser.DDL:
		return n.Action
	case *sqlparser.Set:
		return "set"
	case *sqlparser.Show:
		return "show"
	default:
		return fmt.Sprintf("%T", stmt)
	}
}
