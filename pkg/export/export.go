// Package export writes notebooks out as plain source files.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aretw0/mnb/internal/fsutil"
	"github.com/aretw0/mnb/pkg/domain"
)

// SynthExtension is the file extension of exported Syntheto sources, without the dot.
const SynthExtension = "synth"

// Exporter renders a notebook into a target format.
type Exporter interface {
	Export(nb domain.Notebook, w io.Writer) error
	Extension() string
}

// Concatenate joins the text of every Code cell in document order,
// each followed by a newline. Markup cells are ignored.
func Concatenate(nb domain.Notebook) string {
	var b strings.Builder
	for _, c := range nb.Cells {
		if !c.IsCode() {
			continue
		}
		b.WriteString(c.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// SynthExporter exports the Code cells as a single .synth file.
type SynthExporter struct{}

// Export writes Concatenate(nb) to w.
func (SynthExporter) Export(nb domain.Notebook, w io.Writer) error {
	_, err := io.WriteString(w, Concatenate(nb))
	return err
}

// Extension returns "synth".
func (SynthExporter) Extension() string {
	return SynthExtension
}

// ExportError reports an export that could not be written to disk.
type ExportError struct {
	Path string
	Op   string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// WriteFile renders nb with exp and writes it atomically to path.
func WriteFile(exp Exporter, nb domain.Notebook, path string) error {
	var buf bytes.Buffer
	if err := exp.Export(nb, &buf); err != nil {
		return &ExportError{Path: path, Op: "render", Err: err}
	}
	if err := fsutil.WriteAtomic(path, buf.Bytes(), 0644); err != nil {
		op := "write"
		var werr *fsutil.WriteError
		if errors.As(err, &werr) {
			op = string(werr.Op)
		}
		return &ExportError{Path: path, Op: op, Err: err}
	}
	return nil
}

// DefaultPath derives the export destination from the notebook path by
// replacing its extension with the exporter's.
func DefaultPath(notebookPath string, exp Exporter) string {
	base := strings.TrimSuffix(notebookPath, filepath.Ext(notebookPath))
	return base + "." + exp.Extension()
}
