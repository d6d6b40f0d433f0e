// Package console runs the interactive question loop on a terminal.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/ledgerask/ledgerask/internal/pipeline"
)

const (
	Prompt    = "Enter your query (e.g., 'top 3 customers by revenue') or 'quit' to exit: "
	separator = "--------------------------------------------------"
)

type Asker interface {
	Ask(ctx context.Context, question string) pipeline.Response
}

var (
	promptColor = color.New(color.FgCyan)
	sqlColor    = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed)
	exitColor   = color.New(color.FgGreen)
)

// Run reads questions line by line until "quit", end of input or cancellation.
func Run(ctx context.Context, in io.Reader, out io.Writer, asker Asker) error {
	scanner := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, _ = promptColor.Fprint(out, Prompt)
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(out)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(question, "quit") {
			_, _ = exitColor.Fprintln(out, "Exiting...")
			return nil
		}
		if question == "" {
			continue
		}

		render(out, asker.Ask(ctx, question))
		_, _ = fmt.Fprintln(out, "\n"+separator)
	}
}

func render(out io.Writer, response pipeline.Response) {
	if response.SQL != "" {
		_, _ = sqlColor.Fprintf(out, "Generated SQL Query: %s\n", response.SQL)
	}
	if response.Failure != nil {
		_, _ = errorColor.Fprintf(out, "Error: %s\n", response.Failure.Message)
		return
	}

	_, _ = fmt.Fprintln(out, "Results:")
	table := tablewriter.NewWriter(out)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(response.Columns)
	for _, row := range response.Rows {
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = formatCell(value)
		}
		table.Append(cells)
	}
	table.Render()
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case float64:
		return fmt.Sprintf("%.2f", v)
	case float32:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprint(v)
	}
}
