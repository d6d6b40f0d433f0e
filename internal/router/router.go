// Package router decides which ledger tables a question or a generated query concerns.
package router

import (
	"strings"

	"github.com/ledgerask/ledgerask/internal/ledger"
)

var (
	salesCues  = []string{"sales", "revenue", "region", "sale"}
	ordersCues = []string{"orders", "order", "amount", "product"}
)

// SelectTables matches keyword cues by plain substring containment. When no cue
// matches, both tables are selected so the prompt always carries a schema.
func SelectTables(question string) []string {
	lowered := strings.ToLower(question)
	useSales := containsAny(lowered, salesCues)
	useOrders := containsAny(lowered, ordersCues)

	tables := make([]string, 0, 2)
	if useSales {
		tables = append(tables, ledger.SalesTable)
	}
	if useOrders {
		tables = append(tables, ledger.OrdersTable)
	}
	if len(tables) == 0 {
		return ledger.Names()
	}
	return tables
}

type Target struct {
	Table string `json:"table"`
	Join  bool   `json:"join"`
}

// ExecutionTarget derives the table a sanitized query is attributed to. Joins are
// attributed to sales, the primary side of every join the prompt asks for.
func ExecutionTarget(sqlText string) Target {
	lowered := strings.ToLower(sqlText)
	if containsWord(lowered, "join") {
		return Target{Table: ledger.SalesTable, Join: true}
	}
	if containsAny(lowered, salesCues) {
		return Target{Table: ledger.SalesTable}
	}
	return Target{Table: ledger.OrdersTable}
}

func containsAny(text string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}

func containsWord(text, word string) bool {
	for _, field := range strings.Fields(text) {
		if field == word {
			return true
		}
	}
	return false
}
