package ledger

import "sync"

// Ledger records which message ids have already been surfaced to the
// assistant pipeline. It only ever grows.
type Ledger interface {
	// Seen reports whether id has been marked before.
	Seen(id string) bool

	// MarkSeen adds ids to the ledger. Marking an id twice is a no-op.
	MarkSeen(ids ...string)

	// Len returns the number of distinct ids recorded.
	Len() int
}

// Memory is a set-backed Ledger that lives for the lifetime of the process.
// It is safe for concurrent use: the assistant loop is the only writer but
// the control surface reads Len from another goroutine.
type Memory struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{ids: make(map[string]struct{})}
}

// Seen reports whether id is in the ledger.
func (m *Memory) Seen(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ids[id]
	return ok
}

// MarkSeen adds ids to the ledger. Empty ids are ignored.
func (m *Memory) MarkSeen(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if id == "" {
			continue
		}
		m.ids[id] = struct{}{}
	}
}

// markNew adds ids and returns the ones that were not present before.
func (m *Memory) markNew(ids []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var added []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := m.ids[id]; ok {
			continue
		}
		m.ids[id] = struct{}{}
		added = append(added, id)
	}
	return added
}

// Len returns the number of ids recorded.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}
