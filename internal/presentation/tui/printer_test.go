package tui

import (
	"bytes"
	"testing"
	"time"

	"github.com/aretw0/mnb/pkg/adapters/lsp"
	"github.com/aretw0/mnb/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestPrinter_PlainOutputForBuffers(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	assert.False(t, p.styled)

	code := domain.NewCodeCell("function f")
	code.Outputs = []domain.Output{domain.TextOutput("ok")}
	bad := domain.NewCodeCell("g")
	bad.Outputs = []domain.Output{domain.ErrorOutput("boom")}
	nb := domain.NewNotebook(domain.NewMarkupCell("# Title"), code, bad)

	p.PrintNotebook("demo", nb)
	out := buf.String()
	assert.Contains(t, out, "demo (3 cells)")
	assert.Contains(t, out, "[0] markup markdown\n# Title\n")
	assert.Contains(t, out, "[1] code syntheto\nfunction f\n=> ok\n")
	assert.Contains(t, out, "!! boom")
}

func TestPrinter_Executions(t *testing.T) {
	var buf bytes.Buffer
	start := time.Now()
	NewPrinter(&buf).PrintExecutions([]domain.CellExecution{
		{Index: 0, Order: 1, Status: domain.StatusSucceeded, Output: "line1\nline2", InsertedIndex: 1, StartedAt: start, EndedAt: start.Add(12 * time.Millisecond)},
		{Index: 2, Order: 2, Status: domain.StatusFailed, Output: "refused", InsertedIndex: -1, Warnings: []string{"insert rejected"}},
	})

	out := buf.String()
	assert.Contains(t, out, "[0] #1 succeeded 12ms\n    line1\n    line2\n    inserted cell 1\n")
	assert.Contains(t, out, "[2] #2 failed 0s\n    refused\n    warning: insert rejected\n")
}

func TestPrinter_History(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintHistory(nil)
	assert.Contains(t, buf.String(), "no executions recorded")

	buf.Reset()
	p.PrintHistory([]domain.JournalEntry{{Index: 3, Order: 7, Status: domain.StatusSucceeded, Output: "a\nb", RecordedAt: time.Now()}})
	assert.Contains(t, buf.String(), "cell 3  #7  succeeded  a ...")
}

func TestPrinter_Diagnostics(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	assert.False(t, p.PrintDiagnostics("ok.synth", nil))
	assert.Contains(t, buf.String(), "ok.synth: ok")

	failed := p.PrintDiagnostics("bad.synth", []lsp.Diagnostic{
		{Range: lsp.Range{Start: lsp.Position{Line: 2, Character: 4}}, Severity: lsp.SeverityWarning, Message: "unused"},
		{Severity: lsp.SeverityError, Message: "syntax error"},
	})
	assert.True(t, failed)
	assert.Contains(t, buf.String(), "bad.synth:3:5: warning unused")
	assert.Contains(t, buf.String(), "bad.synth:1:1: error syntax error")
}

func TestRenderer(t *testing.T) {
	render := NewRenderer(40)
	out, err := render("# Title")
	assert.NoError(t, err)
	assert.Contains(t, out, "Title")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "MIDAS NoteBook 1.2.3")
}

func TestPrinter_StripsEscapesFromOutputs(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintExecutions([]domain.CellExecution{
		{Index: 0, Order: 1, Status: domain.StatusSucceeded, Output: "\x1b]0;pwned\x07done", InsertedIndex: -1},
	})
	assert.NotContains(t, buf.String(), "\x1b")
	assert.Contains(t, buf.String(), "]0;pwneddone")
}
