// Package watcher keeps the symbol database in step with the
// filesystem: modified files are flagged for reparsing and requeued,
// deleted files are removed from the database outright.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/codequarry/symdb/internal/logger"
	"github.com/codequarry/symdb/internal/parser"
	"github.com/codequarry/symdb/internal/tokens"
)

var log = logger.ForComponent("watcher")

type Config struct {
	Enabled        bool
	DebounceWindow time.Duration
	MaxBatchSize   int
	IgnorePatterns []string
	WatchHidden    bool
}

func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		DebounceWindow: 300 * time.Millisecond,
		MaxBatchSize:   100,
		IgnorePatterns: []string{
			"**/.git/**",
			"**/node_modules/**",
			"**/vendor/**",
			"**/build/**",
			"**/dist/**",
			"**/__pycache__/**",
			"**/*.log",
		},
		WatchHidden: false,
	}
}

type Watcher struct {
	config    Config
	tree      *tokens.Tree
	pool      *parser.Pool
	debouncer *Debouncer

	fsWatcher   *fsnotify.Watcher
	fsWatcherMu sync.Mutex

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(config Config, tree *tokens.Tree, pool *parser.Pool) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config:    config,
		tree:      tree,
		pool:      pool,
		fsWatcher: fsWatcher,
	}
	w.debouncer = NewDebouncer(config.DebounceWindow, config.MaxBatchSize, w.onFlush)
	return w, nil
}

// AddRoot registers path and its subdirectories for watching and
// queues its files for an initial parse.
func (w *Watcher) AddRoot(path string) error {
	log.Info("watching root", "path", path)
	if err := w.addToWatcher(path); err != nil {
		return err
	}
	return w.walkAndAdd(path)
}

func (w *Watcher) walkAndAdd(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		fullPath := filepath.Join(path, entry.Name())
		if w.shouldIgnore(fullPath) {
			continue
		}
		if entry.IsDir() {
			if err := w.addToWatcher(fullPath); err != nil {
				log.Debug("cannot watch directory", "path", fullPath, "error", err)
				continue
			}
			w.walkAndAdd(fullPath)
		} else if parser.LanguageFor(fullPath) != "" {
			w.pool.Enqueue(parser.Job{Path: fullPath, Priority: parser.PriorityLow})
		}
	}
	return nil
}

func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(ctx)

	go w.handleEvents()
	log.Info("file watcher started")
	return nil
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.cancel()
	w.mu.Unlock()

	w.debouncer.Stop()

	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	log.Info("file watcher stopped")
	return w.fsWatcher.Close()
}

func (w *Watcher) handleEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			// New directories need to join the watch set immediately;
			// their files go through the debouncer like everything
			// else.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !w.shouldIgnore(event.Name) {
						if err := w.addToWatcher(event.Name); err == nil {
							w.walkAndAdd(event.Name)
						}
					}
					continue
				}
			}

			if fe := w.convertEvent(event); fe != nil {
				w.debouncer.Add(*fe)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) convertEvent(event fsnotify.Event) *FileEvent {
	if w.shouldIgnore(event.Name) {
		return nil
	}
	if parser.LanguageFor(event.Name) == "" {
		return nil
	}

	var eventType EventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventCreate
	case event.Has(fsnotify.Write):
		eventType = EventModify
	case event.Has(fsnotify.Remove):
		eventType = EventDelete
	case event.Has(fsnotify.Rename):
		eventType = EventRename
	default:
		return nil
	}

	return &FileEvent{
		Path:      event.Name,
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

// onFlush applies a debounced batch to the database: removals drop the
// file's tokens, everything else gets flagged dirty and requeued.
func (w *Watcher) onFlush(events []FileEvent) {
	priority := classifyBatch(events)
	log.Debug("flushing events", "count", len(events), "priority", priority)

	for _, event := range events {
		switch event.Type {
		case EventDelete, EventRename:
			w.tree.Lock()
			w.tree.RemoveFile(event.Path)
			w.tree.Unlock()
			log.Info("file removed from database", "path", event.Path)

		default:
			w.tree.Lock()
			w.tree.FlagFileForReparsing(event.Path)
			w.tree.Unlock()
			w.pool.Enqueue(parser.Job{Path: event.Path, Priority: priority})
		}
	}
}

func (w *Watcher) shouldIgnore(path string) bool {
	if !w.config.WatchHidden && strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	slashed := filepath.ToSlash(path)
	for _, pattern := range w.config.IgnorePatterns {
		if matched, _ := doublestar.Match(pattern, slashed); matched {
			return true
		}
		if trimmed := strings.TrimSuffix(pattern, "/**"); trimmed != pattern {
			if matched, _ := doublestar.Match(trimmed, slashed); matched {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) addToWatcher(path string) error {
	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	return w.fsWatcher.Add(path)
}
