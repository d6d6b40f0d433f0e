package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/ledgerask/ledgerask/internal/pipeline"
)

func TestRunPrintsResultsAndExitsOnQuit(t *testing.T) {
	color.NoColor = true
	asker := &fakeAsker{response: pipeline.Response{
		SQL:     "select customer_name, sum(revenue) from sales group by customer_name",
		Columns: []string{"customer_name", "total_revenue"},
		Rows:    [][]any{{"dave", 400.0}, {"bob", 200.5}},
		Table:   "sales",
	}}
	out := &bytes.Buffer{}

	err := Run(context.Background(), strings.NewReader("top customers\n\nQUIT\n"), out, asker)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	text := out.String()
	for _, want := range []string{
		Prompt,
		"Generated SQL Query: select customer_name, sum(revenue) from sales group by customer_name",
		"Results:",
		"customer_name",
		"total_revenue",
		"400.00",
		"200.50",
		separator,
		"Exiting...",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	if len(asker.questions) != 1 || asker.questions[0] != "top customers" {
		t.Fatalf("questions = %q", asker.questions)
	}
}

func TestRunPrintsFailureWithSQL(t *testing.T) {
	color.NoColor = true
	asker := &fakeAsker{response: pipeline.Response{
		SQL:     "select nope from sales",
		Failure: &pipeline.Failure{Kind: pipeline.FailureExecutionFailed, Message: "column nope not found"},
	}}
	out := &bytes.Buffer{}

	if err := Run(context.Background(), strings.NewReader("bad\nquit\n"), out, asker); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "Generated SQL Query: select nope from sales") || !strings.Contains(text, "Error: column nope not found") {
		t.Fatalf("unexpected output:\n%s", text)
	}
	if strings.Contains(text, "Results:") {
		t.Fatalf("failure should not print results:\n%s", text)
	}
}

func TestRunOmitsSQLForGenerationFailure(t *testing.T) {
	color.NoColor = true
	asker := &fakeAsker{response: pipeline.Response{
		Failure: &pipeline.Failure{Kind: pipeline.FailureGenerationFailed, Message: "No choices found in the response."},
	}}
	out := &bytes.Buffer{}

	if err := Run(context.Background(), strings.NewReader("anything\n"), out, asker); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.Contains(out.String(), "Generated SQL Query") {
		t.Fatalf("unexpected SQL line:\n%s", out.String())
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	asker := &fakeAsker{}
	if err := Run(ctx, strings.NewReader("question\n"), &bytes.Buffer{}, asker); err == nil {
		t.Fatal("expected context error")
	}
	if len(asker.questions) != 0 {
		t.Fatalf("questions = %q", asker.questions)
	}
}

func TestFormatCell(t *testing.T) {
	if got := formatCell(nil); got != "NULL" {
		t.Fatalf("formatCell(nil) = %q", got)
	}
	if got := formatCell(int64(3)); got != "3" {
		t.Fatalf("formatCell(3) = %q", got)
	}
	if got := formatCell(1.5); got != "1.50" {
		t.Fatalf("formatCell(1.5) = %q", got)
	}
}

type fakeAsker struct {
	response  pipeline.Response
	questions []string
}

func (f *fakeAsker) Ask(_ context.Context, question string) pipeline.Response {
	f.questions = append(f.questions, question)
	return f.response
}
