package sqlguard

import (
	"strings"

	"github.com/xwb1989/sqlparser"
)

func render(node sqlparser.SQLNode) string {
	buf := sqlparser.NewTrackedBuffer(canonical)
	buf.Myprintf("%v", node)
	return buf.String()
}

// canonical overrides the MySQL rendering where DuckDB reads it differently.
func canonical(buf *sqlparser.TrackedBuffer, node sqlparser.SQLNode) {
	switch n := node.(type) {
	case *sqlparser.Select:
		buf.Myprintf("select %s%v from %v%v%v%v%v%v",
			n.Distinct, n.SelectExprs, n.From, n.Where, n.GroupBy, n.Having, n.OrderBy, n.Limit)
	case *sqlparser.Limit:
		if n == nil {
			return
		}
		buf.Myprintf(" limit %v", n.Rowcount)
		if n.Offset != nil {
			buf.Myprintf(" offset %v", n.Offset)
		}
	case *sqlparser.SQLVal:
		if n.Type != sqlparser.StrVal {
			n.Format(buf)
			return
		}
		buf.WriteString("'" + strings.ReplaceAll(string(n.Val), "'", "''") + "'")
	case *sqlparser.FuncExpr:
		distinct := ""
		if n.Distinct {
			distinct = "distinct "
		}
		buf.Myprintf("%s(%s%v)", n.Name.Lowered(), distinct, n.Exprs)
	case *sqlparser.UnaryExpr:
		// A signed operand is parenthesized so "- -x" never becomes a comment.
		operand := render(n.Expr)
		if strings.HasPrefix(operand, "-") || strings.HasPrefix(operand, "+") {
			operand = "(" + operand + ")"
		}
		buf.Myprintf("%s%s", n.Operator, operand)
	case sqlparser.ColIdent:
		buf.WriteString(identifier(n.Lowered(), sqlparser.String(n)))
	case sqlparser.TableIdent:
		buf.WriteString(identifier(strings.ToLower(n.String()), sqlparser.String(n)))
	default:
		node.Format(buf)
	}
}

// identifier double-quotes names the parser had to backtick.
func identifier(lowered, mysql string) string {
	if !strings.HasPrefix(mysql, "`") {
		return lowered
	}
	return `"` + strings.ReplaceAll(lowered, `"`, `""`) + `"`
}
