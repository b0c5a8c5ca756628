package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/mnb/internal/fsutil"
	"github.com/aretw0/mnb/internal/presentation/tui"
	"github.com/aretw0/mnb/pkg/adapters/lsp"
	"github.com/aretw0/mnb/pkg/domain"
	"github.com/aretw0/mnb/pkg/export"
)

// ErrCellsFailed is returned by RunFile when at least one cell failed.
var ErrCellsFailed = errors.New("cell execution failed")

// ErrDiagnostics is returned by Check when a file has error diagnostics.
var ErrDiagnostics = errors.New("language server reported errors")

// NotebookName derives a notebook name from its file path.
func NotebookName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadFile reads a notebook file. Unreadable content yields an empty notebook
// and a logged warning, the way an editor opens a damaged file.
func (rt *Runtime) LoadFile(path string) (domain.Notebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Notebook{}, err
	}
	return rt.Engine.Decode(data), nil
}

// RunFile executes cells of the notebook at path and prints the results.
// With save the updated notebook is written back atomically.
func (rt *Runtime) RunFile(ctx context.Context, path string, cells []int, save bool, p *tui.Printer) error {
	nb, err := rt.LoadFile(path)
	if err != nil {
		return err
	}

	updated, execs, err := rt.Engine.Run(ctx, nb, cells)
	if err != nil {
		return err
	}
	p.PrintExecutions(execs)

	if save {
		data, err := rt.Engine.Encode(updated)
		if err != nil {
			return err
		}
		if err := fsutil.WriteAtomic(path, data, 0644); err != nil {
			return err
		}
		rt.Logger.Info("Notebook saved", "path", path, "cells", updated.Len())
	}

	failed := 0
	for _, ex := range execs {
		if ex.Status == domain.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrCellsFailed, failed, len(execs))
	}
	return nil
}

// ShowFile prints the notebook at path.
func (rt *Runtime) ShowFile(path string, p *tui.Printer) error {
	nb, err := rt.LoadFile(path)
	if err != nil {
		return err
	}
	p.PrintNotebook(NotebookName(path), nb)
	return nil
}

// ExportFile writes the .synth form of the notebook at path. An empty out
// places it next to the notebook. It returns the written path.
func (rt *Runtime) ExportFile(path, out string) (string, error) {
	nb, err := rt.LoadFile(path)
	if err != nil {
		return "", err
	}
	exp := export.SynthExporter{}
	if out == "" {
		out = export.DefaultPath(path, exp)
	}
	if err := export.WriteFile(exp, nb, out); err != nil {
		return "", err
	}
	return out, nil
}

// DocumentChecker is the part of the language client used by Check.
type DocumentChecker interface {
	DidOpen(ctx context.Context, uri, text string) error
	WaitDiagnostics(ctx context.Context, uri string) ([]lsp.Diagnostic, error)
	DidClose(ctx context.Context, uri string) error
}

// Check opens each file on the language server and prints its diagnostics.
func Check(ctx context.Context, checker DocumentChecker, paths []string, p *tui.Printer) error {
	failed := false
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		text, err := os.ReadFile(abs)
		if err != nil {
			return err
		}

		uri := lsp.FileURI(abs)
		if err := checker.DidOpen(ctx, uri, string(text)); err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		diags, err := checker.WaitDiagnostics(ctx, uri)
		if err != nil {
			return fmt.Errorf("diagnostics for %s: %w", path, err)
		}
		if p.PrintDiagnostics(path, diags) {
			failed = true
		}
		if err := checker.DidClose(ctx, uri); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
	}
	if failed {
		return ErrDiagnostics
	}
	return nil
}
