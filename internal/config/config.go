// Package config carries the daemon's settings and their defaults.
package config

import (
	"os"
	"path/filepath"

	"github.com/codequarry/symdb/internal/parser"
	"github.com/codequarry/symdb/internal/watcher"
)

type Config struct {
	LogLevel  string
	LogFormat string

	// CachePath is the binary cache written on shutdown and loaded on
	// start; DBPath is the SQLite snapshot store.
	CachePath  string
	DBPath     string
	SocketPath string

	Parser  parser.PoolConfig
	Watcher watcher.Config
}

func Load() *Config {
	homeDir, _ := os.UserHomeDir()
	baseDir := filepath.Join(homeDir, ".symdb")

	return &Config{
		LogLevel:   "info",
		LogFormat:  "text",
		CachePath:  filepath.Join(baseDir, "symbols.cache"),
		DBPath:     filepath.Join(baseDir, "snapshots.db"),
		SocketPath: filepath.Join(baseDir, "symdb.sock"),
		Parser:     parser.DefaultPoolConfig(),
		Watcher:    watcher.DefaultConfig(),
	}
}

func (c *Config) EnsureDirectories() error {
	for _, path := range []string{c.CachePath, c.DBPath, c.SocketPath} {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	}
	return nil
}
