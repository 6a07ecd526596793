package parser

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/codequarry/symdb/internal/logger"
)

var poolLog = logger.ForComponent("pool")

type JobPriority int

const (
	PriorityHigh JobPriority = iota
	PriorityNormal
	PriorityLow
)

type Job struct {
	Path     string
	Priority JobPriority
}

type PoolConfig struct {
	WorkerCount     int
	MaxQueueSize    int
	MaxFileSize     int64
	ExcludePatterns []string
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		WorkerCount:  2,
		MaxQueueSize: 1000,
		MaxFileSize:  10 * 1024 * 1024,
		ExcludePatterns: []string{
			"**/node_modules/**",
			"**/.git/**",
			"**/vendor/**",
			"**/__pycache__/**",
			"**/target/**",
			"**/build/**",
			"**/dist/**",
		},
	}
}

type PoolStats struct {
	Parsed    int64
	Symbols   int64
	Failed    int64
	Skipped   int64
	InQueue   int64
	IsRunning bool
	StartedAt time.Time
}

// Pool drains parse jobs through a fixed set of workers. Three queues
// give watcher-triggered reparses priority over the initial crawl.
type Pool struct {
	parser *Parser
	config PoolConfig

	highQueue   chan Job
	normalQueue chan Job
	lowQueue    chan Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	active  int64
	stats   PoolStats
	statsMu sync.RWMutex
}

func NewPool(parser *Parser, config PoolConfig) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		parser:      parser,
		config:      config,
		highQueue:   make(chan Job, 100),
		normalQueue: make(chan Job, config.MaxQueueSize),
		lowQueue:    make(chan Job, config.MaxQueueSize*2),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (p *Pool) Start() {
	p.statsMu.Lock()
	p.stats.IsRunning = true
	p.stats.StartedAt = time.Now()
	p.statsMu.Unlock()

	poolLog.Info("parse pool started", "workers", p.config.WorkerCount)

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()

	p.statsMu.Lock()
	p.stats.IsRunning = false
	p.statsMu.Unlock()

	poolLog.Info("parse pool stopped")
}

func (p *Pool) Enqueue(job Job) bool {
	var queue chan Job
	switch job.Priority {
	case PriorityHigh:
		queue = p.highQueue
	case PriorityLow:
		queue = p.lowQueue
	default:
		queue = p.normalQueue
	}

	select {
	case queue <- job:
		atomic.AddInt64(&p.stats.InQueue, 1)
		return true
	default:
		poolLog.Warn("enqueue failed, queue full", "path", job.Path, "priority", job.Priority)
		return false
	}
}

// EnqueueDir walks root and queues every file in a language the parser
// understands, skipping excluded directories whole. Returns the number
// of files queued.
func (p *Pool) EnqueueDir(root string, priority JobPriority) int {
	count := 0
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			poolLog.Debug("walk error", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if path != root && p.shouldExclude(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if LanguageFor(path) == "" || p.shouldExclude(path) {
			return nil
		}
		if p.Enqueue(Job{Path: path, Priority: priority}) {
			count++
		}
		return nil
	})
	poolLog.Info("directory queued", "root", root, "files", count)
	return count
}

func (p *Pool) GetStats() PoolStats {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()
	stats := p.stats
	stats.Parsed = atomic.LoadInt64(&p.stats.Parsed)
	stats.Symbols = atomic.LoadInt64(&p.stats.Symbols)
	stats.Failed = atomic.LoadInt64(&p.stats.Failed)
	stats.Skipped = atomic.LoadInt64(&p.stats.Skipped)
	stats.InQueue = atomic.LoadInt64(&p.stats.InQueue)
	return stats
}

// Drain blocks until every queued job has been picked up and finished,
// or the context expires. Meant for batch indexing runs.
func (p *Pool) Drain(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if atomic.LoadInt64(&p.stats.InQueue) == 0 && atomic.LoadInt64(&p.active) == 0 {
				return nil
			}
		}
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		var job Job
		var ok bool

		select {
		case job, ok = <-p.highQueue:
		default:
			select {
			case job, ok = <-p.normalQueue:
			default:
				select {
				case job, ok = <-p.lowQueue:
				default:
					time.Sleep(10 * time.Millisecond)
					continue
				}
			}
		}

		if !ok {
			continue
		}

		atomic.AddInt64(&p.active, 1)
		atomic.AddInt64(&p.stats.InQueue, -1)
		poolLog.Debug("worker picked job", "worker_id", id, "path", job.Path)
		p.processJob(job)
		atomic.AddInt64(&p.active, -1)
	}
}

func (p *Pool) processJob(job Job) {
	path := job.Path

	if p.shouldExclude(path) {
		atomic.AddInt64(&p.stats.Skipped, 1)
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		atomic.AddInt64(&p.stats.Failed, 1)
		poolLog.Warn("stat failed", "path", path, "error", err)
		return
	}
	if info.IsDir() {
		return
	}
	if info.Size() > p.config.MaxFileSize {
		atomic.AddInt64(&p.stats.Skipped, 1)
		poolLog.Debug("skipped file", "path", path, "reason", "too large")
		return
	}

	symbols, err := p.parser.ParseFile(path)
	if err != nil {
		atomic.AddInt64(&p.stats.Failed, 1)
		poolLog.Warn("parse failed", "path", path, "error", err)
		return
	}

	atomic.AddInt64(&p.stats.Parsed, 1)
	atomic.AddInt64(&p.stats.Symbols, int64(symbols))
}

func (p *Pool) shouldExclude(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range p.config.ExcludePatterns {
		if matched, _ := doublestar.Match(pattern, slashed); matched {
			return true
		}
		// "**/.git/**" should also prune the ".git" directory itself.
		if trimmed := strings.TrimSuffix(pattern, "/**"); trimmed != pattern {
			if matched, _ := doublestar.Match(trimmed, slashed); matched {
				return true
			}
		}
	}
	return false
}
