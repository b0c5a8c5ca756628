package lsp

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/mnb/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// SynthExt is the extension of the files synchronized with the server.
const SynthExt = ".synth"

// FileNotifier receives workspace file events.
type FileNotifier interface {
	DidChangeWatchedFiles(ctx context.Context, changes []FileEvent) error
}

// Watcher forwards changes of *.synth files below a root directory.
type Watcher struct {
	root     string
	notifier FileNotifier
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// NewWatcher watches root and every directory below it, skipping hidden ones.
func NewWatcher(root string, notifier FileNotifier, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{root: root, notifier: notifier, logger: logger, fsw: fsw}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	_, err := w.walk(dir)
	return err
}

// walk watches every directory below dir and returns the *.synth files found there.
func (w *Watcher) walk(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if isSynth(p) {
				files = append(files, p)
			}
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			w.logger.Warn("Cannot watch directory", "dir", p, "error", err)
		}
		return nil
	})
	return files, err
}

func isSynth(path string) bool {
	return strings.EqualFold(filepath.Ext(path), SynthExt)
}

// Run forwards events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.handleDir(ctx, ev.Name)
			return
		}
	}
	if !isSynth(ev.Name) {
		return
	}

	typ, ok := changeType(ev.Op)
	if !ok {
		return
	}
	change := FileEvent{URI: FileURI(ev.Name), Type: typ}
	if err := w.notifier.DidChangeWatchedFiles(ctx, []FileEvent{change}); err != nil {
		w.logger.Warn("Failed to forward file event", "file", ev.Name, "error", err)
	}
}

// handleDir starts watching a directory that appeared in the workspace and
// reports the *.synth files it already holds, as when a tree is moved in.
func (w *Watcher) handleDir(ctx context.Context, dir string) {
	if strings.HasPrefix(filepath.Base(dir), ".") {
		return
	}
	files, _ := w.walk(dir)
	if len(files) == 0 {
		return
	}
	changes := make([]FileEvent, 0, len(files))
	for _, f := range files {
		changes = append(changes, FileEvent{URI: FileURI(f), Type: FileCreated})
	}
	if err := w.notifier.DidChangeWatchedFiles(ctx, changes); err != nil {
		w.logger.Warn("Failed to forward file events", "dir", dir, "files", len(files), "error", err)
	}
}

// changeType maps fsnotify operations onto LSP file change types.
// A rename is reported for the old name, so it counts as a deletion.
func changeType(op fsnotify.Op) (FileChangeType, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return FileCreated, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return FileDeleted, true
	case op.Has(fsnotify.Write):
		return FileChanged, true
	default:
		return 0, false
	}
}
