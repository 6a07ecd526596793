// symdb indexes a source tree into an in-memory symbol database,
// serves queries over a unix socket, and persists the database across
// runs through a binary cache and SQLite snapshots.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codequarry/symdb/internal/config"
	"github.com/codequarry/symdb/internal/logger"
	"github.com/codequarry/symdb/internal/parser"
	"github.com/codequarry/symdb/internal/rpc"
	"github.com/codequarry/symdb/internal/store"
	"github.com/codequarry/symdb/internal/tokens"
	"github.com/codequarry/symdb/internal/watcher"
)

func main() {
	cfg := config.Load()

	root := flag.String("root", "", "source tree to index")
	watch := flag.Bool("watch", false, "watch the root for changes and reparse")
	serve := flag.Bool("serve", false, "serve queries on the unix socket")
	snapshot := flag.Bool("snapshot", false, "export a SQLite snapshot on shutdown")
	logLevel := flag.String("log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", cfg.LogFormat, "log format (text, json)")
	cachePath := flag.String("cache", cfg.CachePath, "binary cache file")
	dbPath := flag.String("db", cfg.DBPath, "SQLite snapshot store")
	socketPath := flag.String("socket", cfg.SocketPath, "unix socket path")
	workers := flag.Int("workers", cfg.Parser.WorkerCount, "parse workers")
	flag.Parse()

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(*logLevel)
	logCfg.Format = *logFormat
	logger.Init(logCfg)

	cfg.CachePath = *cachePath
	cfg.DBPath = *dbPath
	cfg.SocketPath = *socketPath
	cfg.Parser.WorkerCount = *workers

	if err := run(cfg, *root, *watch, *serve, *snapshot); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, root string, watch, serve, snapshot bool) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree := tokens.NewTree()
	loadCache(tree, cfg.CachePath)

	pool := parser.NewPool(parser.New(tree), cfg.Parser)
	pool.Start()
	defer pool.Stop()

	if root != "" {
		start := time.Now()
		queued := pool.EnqueueDir(root, parser.PriorityNormal)

		if !watch && !serve {
			// Batch mode: index, persist, exit.
			if err := pool.Drain(ctx); err != nil {
				return err
			}
			stats := pool.GetStats()
			logger.Info("indexing finished",
				"files", queued,
				"parsed", stats.Parsed,
				"symbols", stats.Symbols,
				"failed", stats.Failed,
				"elapsed", time.Since(start))
			return persist(tree, cfg, snapshot)
		}
	}

	if watch {
		if root == "" {
			return fmt.Errorf("-watch requires -root")
		}
		w, err := watcher.New(cfg.Watcher, tree, pool)
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		if err := w.AddRoot(root); err != nil {
			return fmt.Errorf("watch root: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	if serve {
		srv := rpc.NewServer(cfg.SocketPath, tree)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("start rpc server: %w", err)
		}
		go func() {
			if err := srv.Serve(ctx); err != nil {
				logger.Error("rpc server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	if !watch && !serve {
		return nil
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return persist(tree, cfg, snapshot)
}

// loadCache warm-starts the tree from the binary cache when one
// exists; a corrupt cache just means a cold start.
func loadCache(tree *tokens.Tree, path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	tree.Lock()
	err = tree.ReadFrom(f)
	tree.Unlock()
	if err != nil {
		logger.Warn("cache load failed, starting cold", "path", path, "error", err)
		return
	}
	logger.Info("cache loaded", "path", path, "symbols", tree.RealSize())
}

func persist(tree *tokens.Tree, cfg *config.Config, snapshot bool) error {
	if err := writeCache(tree, cfg.CachePath); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}

	if snapshot {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}
		defer st.Close()

		id, err := st.Export(tree)
		if err != nil {
			return fmt.Errorf("export snapshot: %w", err)
		}
		logger.Info("snapshot exported", "id", id, "db", cfg.DBPath)
	}
	return nil
}

func writeCache(tree *tokens.Tree, path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	tree.Lock()
	err = tree.WriteTo(f)
	tree.Unlock()
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	logger.Info("cache written", "path", path, "symbols", tree.RealSize())
	return nil
}
