package watcher

import (
	"time"

	"github.com/codequarry/symdb/internal/parser"
)

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

type FileEvent struct {
	Path      string
	Type      EventType
	Timestamp time.Time
}

// classifyBatch picks a reparse priority for a flushed batch: a single
// touched file is almost certainly the one the user is editing, a big
// burst is a branch switch or generated output and can wait.
func classifyBatch(events []FileEvent) parser.JobPriority {
	switch {
	case len(events) > 10:
		return parser.PriorityLow
	case len(events) >= 3:
		return parser.PriorityNormal
	default:
		return parser.PriorityHigh
	}
}
