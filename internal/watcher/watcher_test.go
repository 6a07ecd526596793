package watcher

import (
	"sync"
	"testing"
	"time"

	"github.com/codequarry/symdb/internal/parser"
	"github.com/codequarry/symdb/internal/tokens"
)

func TestDebouncerCoalescesSamePath(t *testing.T) {
	var mu sync.Mutex
	var batches [][]FileEvent
	done := make(chan struct{}, 1)

	d := NewDebouncer(20*time.Millisecond, 100, func(events []FileEvent) {
		mu.Lock()
		batches = append(batches, events)
		mu.Unlock()
		done <- struct{}{}
	})
	defer d.Stop()

	d.Add(FileEvent{Path: "a.h", Type: EventCreate})
	d.Add(FileEvent{Path: "a.h", Type: EventModify})
	d.Add(FileEvent{Path: "b.h", Type: EventModify})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never flushed")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 {
		t.Fatalf("flushes = %d, want 1", len(batches))
	}
	if len(batches[0]) != 2 {
		t.Fatalf("batch size = %d, want 2 (a.h coalesced)", len(batches[0]))
	}
	for _, event := range batches[0] {
		if event.Path == "a.h" && event.Type != EventModify {
			t.Error("later event for a.h should have replaced the earlier one")
		}
	}
}

func TestDebouncerFlushesAtMaxBatch(t *testing.T) {
	flushed := make(chan int, 1)
	d := NewDebouncer(time.Hour, 2, func(events []FileEvent) {
		flushed <- len(events)
	})
	defer d.Stop()

	d.Add(FileEvent{Path: "a.h"})
	d.Add(FileEvent{Path: "b.h"})

	select {
	case n := <-flushed:
		if n != 2 {
			t.Errorf("batch = %d, want 2", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("max batch did not force a flush")
	}
}

func TestDebouncerStopFlushesPending(t *testing.T) {
	flushed := make(chan int, 1)
	d := NewDebouncer(time.Hour, 100, func(events []FileEvent) {
		flushed <- len(events)
	})

	d.Add(FileEvent{Path: "a.h"})
	d.Stop()

	select {
	case n := <-flushed:
		if n != 1 {
			t.Errorf("batch = %d, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not flush")
	}

	// Events after Stop are dropped.
	d.Add(FileEvent{Path: "b.h"})
	select {
	case <-flushed:
		t.Error("debouncer accepted events after stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClassifyBatch(t *testing.T) {
	single := make([]FileEvent, 1)
	several := make([]FileEvent, 5)
	burst := make([]FileEvent, 50)

	if got := classifyBatch(single); got != parser.PriorityHigh {
		t.Errorf("single = %v", got)
	}
	if got := classifyBatch(several); got != parser.PriorityNormal {
		t.Errorf("several = %v", got)
	}
	if got := classifyBatch(burst); got != parser.PriorityLow {
		t.Errorf("burst = %v", got)
	}
}

func TestOnFlushAppliesChangesToTree(t *testing.T) {
	tree := tokens.NewTree()
	p := parser.New(tree)
	if _, err := p.Parse("gone.h", "class Gone {};", "cpp"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Parse("stale.h", "class Stale {};", "cpp"); err != nil {
		t.Fatal(err)
	}

	pool := parser.NewPool(p, parser.DefaultPoolConfig())
	w, err := New(DefaultConfig(), tree, pool)
	if err != nil {
		t.Fatal(err)
	}
	defer w.fsWatcher.Close()

	w.onFlush([]FileEvent{
		{Path: "gone.h", Type: EventDelete},
		{Path: "stale.h", Type: EventModify},
	})

	tree.Lock()
	defer tree.Unlock()

	if tree.TokenExists("Gone", -1, tokens.KindClass) >= 0 {
		t.Error("deleted file's tokens survived")
	}
	if !tree.IsFileFlaggedForReparse("stale.h") {
		t.Error("modified file not flagged for reparsing")
	}
	if got := pool.GetStats().InQueue; got != 1 {
		t.Errorf("queued jobs = %d, want 1", got)
	}
}

func TestShouldIgnore(t *testing.T) {
	w, err := New(DefaultConfig(), tokens.NewTree(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.fsWatcher.Close()

	cases := map[string]bool{
		"proj/.git/HEAD":         true,
		"proj/node_modules/x.h":  true,
		"proj/.hidden.h":         true,
		"proj/src/main.cpp":      false,
		"proj/debug.log":         true,
	}
	for path, want := range cases {
		if got := w.shouldIgnore(path); got != want {
			t.Errorf("shouldIgnore(%q) = %v, want %v", path, got, want)
		}
	}
}
