// Package interner maps filenames to small stable integer ids so the
// rest of the database can store file references as ints instead of
// strings. Id 0 is reserved as "no file"; freed ids are recycled.
package interner

import "sync"

type Interner struct {
	mu   sync.Mutex
	ids  map[string]int
	rev  []string
	free []int
}

func New() *Interner {
	return &Interner{
		ids: make(map[string]int),
		rev: []string{""}, // id 0 stays invalid
	}
}

// Intern returns the id for name, assigning one if name is new.
// The empty string always maps to id 0.
func (in *Interner) Intern(name string) int {
	if name == "" {
		return 0
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if id, ok := in.ids[name]; ok {
		return id
	}

	var id int
	if n := len(in.free); n > 0 {
		id = in.free[n-1]
		in.free = in.free[:n-1]
		in.rev[id] = name
	} else {
		id = len(in.rev)
		in.rev = append(in.rev, name)
	}
	in.ids[name] = id
	return id
}

// Find returns the id for name without creating one, or 0 if unknown.
func (in *Interner) Find(name string) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.ids[name]
}

// Lookup returns the name for id, or "" if id is free or out of range.
func (in *Interner) Lookup(id int) string {
	in.mu.Lock()
	defer in.mu.Unlock()
	if id <= 0 || id >= len(in.rev) {
		return ""
	}
	return in.rev[id]
}

// Remove frees id for reuse. Unknown ids are a no-op.
func (in *Interner) Remove(id int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if id <= 0 || id >= len(in.rev) || in.rev[id] == "" {
		return
	}
	delete(in.ids, in.rev[id])
	in.rev[id] = ""
	in.free = append(in.free, id)
}

// Restore reinstates a name under a specific id, growing the table as
// needed. Used when loading a serialized table whose ids must survive.
func (in *Interner) Restore(id int, name string) {
	if id <= 0 || name == "" {
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	for len(in.rev) <= id {
		in.rev = append(in.rev, "")
	}
	if old := in.rev[id]; old != "" {
		delete(in.ids, old)
	}
	in.rev[id] = name
	in.ids[name] = id

	// Rebuild the free list so restored slots are not handed out again.
	in.free = in.free[:0]
	for i := 1; i < len(in.rev); i++ {
		if in.rev[i] == "" {
			in.free = append(in.free, i)
		}
	}
}

// Len reports how many names are currently interned.
func (in *Interner) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.ids)
}

// Each calls fn for every live (id, name) pair in ascending id order.
func (in *Interner) Each(fn func(id int, name string) bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for id := 1; id < len(in.rev); id++ {
		if in.rev[id] == "" {
			continue
		}
		if !fn(id, in.rev[id]) {
			return
		}
	}
}

// Clear resets the table to empty.
func (in *Interner) Clear() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.ids = make(map[string]int)
	in.rev = in.rev[:1]
	in.free = in.free[:0]
}
