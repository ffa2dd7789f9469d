package property

import (
	"sync"

	"polmem/process"
)

type valueState[T comparable] struct {
	current  T
	previous T
	changed  bool
	seen     bool
}

// tracker holds current/previous/changed per process id.
type tracker[T comparable] struct {
	mu     sync.Mutex
	states map[process.ProcessID]*valueState[T]
}

func newTracker[T comparable]() *tracker[T] {
	return &tracker[T]{states: make(map[process.ProcessID]*valueState[T])}
}

// update stores v. The first value for a pid and any value different from
// the current one set changed; an equal value leaves the flag alone.
func (t *tracker[T]) update(pid process.ProcessID, v T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.states[pid]
	if !ok {
		st = &valueState[T]{}
		t.states[pid] = st
	}
	if st.seen && st.current == v {
		return false
	}
	st.seen = true
	st.previous = st.current
	st.current = v
	st.changed = true
	return true
}

func (t *tracker[T]) get(pid process.ProcessID) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[pid]
	if !ok {
		var zero T
		return zero, false
	}
	return st.current, true
}

func (t *tracker[T]) transition(pid process.ProcessID) (from, to T, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[pid]
	if !ok {
		return from, to, false
	}
	return st.previous, st.current, true
}

func (t *tracker[T]) hasChanged(pid process.ProcessID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[pid]
	return ok && st.changed
}

func (t *tracker[T]) acknowledge(pid process.ProcessID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.states[pid]; ok {
		st.changed = false
	}
}

func (t *tracker[T]) forget(pid process.ProcessID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, pid)
}

func (t *tracker[T]) has(pid process.ProcessID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.states[pid]
	return ok
}
