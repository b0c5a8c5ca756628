package tui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aretw0/mnb/pkg/adapters/lsp"
	"github.com/aretw0/mnb/pkg/domain"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	codeStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			PaddingLeft(1)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	metaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Printer writes notebooks and execution results for humans.
// Styling and markdown rendering are only applied when writing to a terminal.
type Printer struct {
	w        io.Writer
	styled   bool
	markdown func(string) (string, error)
}

// NewPrinter creates a Printer for w.
func NewPrinter(w io.Writer) *Printer {
	p := &Printer{w: w}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		width, _, err := term.GetSize(int(f.Fd()))
		if err != nil {
			width = 0
		}
		p.styled = true
		p.markdown = NewRenderer(width)
	}
	return p
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

// PrintNotebook renders every cell with its first output.
func (p *Printer) PrintNotebook(name string, nb domain.Notebook) {
	fmt.Fprintln(p.w, p.style(headerStyle, fmt.Sprintf("%s (%d cells)", name, nb.Len())))
	for i, c := range nb.Cells {
		fmt.Fprintln(p.w)
		fmt.Fprintln(p.w, p.style(metaStyle, fmt.Sprintf("[%d] %s %s", i, c.Kind, c.Language)))

		switch {
		case c.IsCode():
			fmt.Fprintln(p.w, p.style(codeStyle, c.Text))
		case p.markdown != nil:
			out, err := p.markdown(c.Text)
			if err != nil {
				out = c.Text + "\n"
			}
			fmt.Fprint(p.w, out)
		default:
			fmt.Fprintln(p.w, c.Text)
		}

		if len(c.Outputs) > 0 {
			o := c.Outputs[0]
			label := "=> "
			s := okStyle
			if o.Mime == domain.MimeError {
				label = "!! "
				s = failStyle
			}
			fmt.Fprintln(p.w, p.style(s, label+Sanitize(o.Text())))
		}
	}
}

// PrintExecutions reports the outcome of each executed cell.
func (p *Printer) PrintExecutions(execs []domain.CellExecution) {
	for _, ex := range execs {
		status := p.style(okStyle, string(ex.Status))
		if ex.Status == domain.StatusFailed {
			status = p.style(failStyle, string(ex.Status))
		}
		fmt.Fprintf(p.w, "[%d] #%d %s %s\n", ex.Index, ex.Order, status, p.style(metaStyle, ex.Duration().Round(time.Millisecond).String()))
		if ex.Output != "" {
			fmt.Fprintln(p.w, indent(Sanitize(ex.Output)))
		}
		if ex.InsertedIndex >= 0 {
			fmt.Fprintln(p.w, p.style(metaStyle, fmt.Sprintf("    inserted cell %d", ex.InsertedIndex)))
		}
		for _, w := range ex.Warnings {
			fmt.Fprintln(p.w, p.style(warnStyle, "    warning: "+w))
		}
	}
}

// PrintHistory lists journal entries, newest first.
func (p *Printer) PrintHistory(entries []domain.JournalEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(p.w, p.style(metaStyle, "no executions recorded"))
		return
	}
	for _, e := range entries {
		status := p.style(okStyle, string(e.Status))
		if e.Status == domain.StatusFailed {
			status = p.style(failStyle, string(e.Status))
		}
		fmt.Fprintf(p.w, "%s  cell %d  #%d  %s  %s\n",
			p.style(metaStyle, e.RecordedAt.Local().Format(time.DateTime)),
			e.Index, e.Order, status, firstLine(Sanitize(e.Output)))
	}
}

// PrintDiagnostics lists the diagnostics of one file. It reports whether any is an error.
func (p *Printer) PrintDiagnostics(path string, diags []lsp.Diagnostic) bool {
	if len(diags) == 0 {
		fmt.Fprintf(p.w, "%s: %s\n", path, p.style(okStyle, "ok"))
		return false
	}
	failed := false
	for _, d := range diags {
		s := warnStyle
		if d.Severity == lsp.SeverityError {
			s = failStyle
			failed = true
		}
		fmt.Fprintf(p.w, "%s:%d:%d: %s %s\n", path, d.Range.Start.Line+1, d.Range.Start.Character+1,
			p.style(s, d.Severity.String()), Sanitize(d.Message))
	}
	return failed
}

func indent(s string) string {
	return "    " + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n    ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
