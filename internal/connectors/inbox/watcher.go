// Package inbox watches a directory and ingests every document dropped
// into it. The source type comes from the filename prefix, e.g.
// addendum_v2.pdf is ingested as an addendum.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
	"github.com/custodia-labs/traceq/internal/logger"
)

// DefaultDebounce is how long a file must stay quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("inbox: watcher is closed")

// Config configures a Watcher.
type Config struct {
	// Dir is the watched directory.
	Dir string

	// Journey receives every ingested document.
	Journey string

	// Debounce delays ingestion until writes settle. Zero uses DefaultDebounce.
	Debounce time.Duration
}

// Result reports the outcome of ingesting one file.
type Result struct {
	Path    string
	Version *domain.DocumentVersion
	Err     error
}

// Watcher ingests files created or rewritten in a directory.
type Watcher struct {
	cfg    Config
	ingest driving.IngestService

	mu      sync.Mutex
	closed  bool
	watcher *fsnotify.Watcher
	timers  map[string]*time.Timer
}

// New creates a watcher. Nothing is watched until Watch is called.
func New(cfg Config, ingest driving.IngestService) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Watcher{
		cfg:    cfg,
		ingest: ingest,
		timers: make(map[string]*time.Timer),
	}
}

// Watch starts watching and returns a channel of ingest results. The
// channel is closed once ctx is done.
func (w *Watcher) Watch(ctx context.Context) (<-chan Result, error) {
	info, err := os.Stat(w.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("inbox directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, w.cfg.Dir)
	}
	if strings.TrimSpace(w.cfg.Journey) == "" {
		return nil, fmt.Errorf("%w: journey is required", domain.ErrInvalidInput)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fw.Add(w.cfg.Dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", w.cfg.Dir, err)
	}
	w.watcher = fw

	results := make(chan Result)
	go w.loop(ctx, fw, results)

	logger.Info("watching inbox", "dir", w.cfg.Dir, "journey", w.cfg.Journey)
	return results, nil
}

// loop turns debounced fs events into sequential ingests.
func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, results chan<- Result) {
	ready := make(chan string)
	done := make(chan struct{})
	defer close(results)
	defer close(done)
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if path := w.handleFsEvent(ev); path != "" {
				w.schedule(path, ready, done)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn("inbox watcher error", "error", err)

		case path := <-ready:
			res := w.ingestFile(ctx, path)
			select {
			case results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// handleFsEvent returns the path to ingest for ev, or "" to ignore it.
func (w *Watcher) handleFsEvent(ev fsnotify.Event) string {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return ""
	}
	if isIgnored(filepath.Base(ev.Name)) {
		return ""
	}
	info, err := os.Stat(ev.Name)
	if err != nil || info.IsDir() {
		return ""
	}
	if domain.NormaliseFormat("", ev.Name) == "" {
		logger.Debug("skipping unsupported inbox file", "path", ev.Name)
		return ""
	}
	return ev.Name
}

// schedule (re)starts the debounce timer of path.
func (w *Watcher) schedule(path string, ready chan<- string, done <-chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.cfg.Debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case ready <- path:
		case <-done:
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) ingestFile(ctx context.Context, path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Path: path, Err: fmt.Errorf("reading %s: %w", path, err)}
	}

	name := filepath.Base(path)
	v, err := w.ingest.Ingest(ctx, driving.IngestRequest{
		Journey:    w.cfg.Journey,
		SourceType: SourceTypeFor(name),
		Filename:   name,
		Data:       data,
		Notes:      "ingested from inbox " + w.cfg.Dir,
	})
	if err != nil {
		logger.Warn("inbox ingest failed", "path", path, "error", err)
		return Result{Path: path, Err: err}
	}
	logger.Info("inbox document ingested", "path", path, "version", v.ID)
	return Result{Path: path, Version: v}
}

// Close stops the underlying fs watcher. It is idempotent.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

// SourceTypeFor infers the source type from a filename prefix such as
// "addendum_" or "meeting-notes-". Unknown prefixes default to fsd.
func SourceTypeFor(filename string) domain.SourceType {
	name := strings.ToLower(filepath.Base(filename))
	name = strings.ReplaceAll(name, "-", "_")
	for _, st := range domain.AllSourceTypes() {
		if strings.HasPrefix(name, string(st)+"_") {
			return st
		}
	}
	return domain.SourceFSD
}

// isIgnored filters hidden, editor swap and partial download files.
func isIgnored(name string) bool {
	switch {
	case strings.HasPrefix(name, "."), strings.HasPrefix(name, "~"):
		return true
	case strings.HasSuffix(name, "~"), strings.HasSuffix(name, ".swp"),
		strings.HasSuffix(name, ".tmp"), strings.HasSuffix(name, ".part"), strings.HasSuffix(name, ".crdownload"):
		return true
	}
	return false
}
