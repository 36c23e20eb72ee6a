package graph

import "sync"

// MemoryPlane is the per-run keyed store nodes read from and write into.
//
// Keys are written by exactly one node per run, except when a feedback loop
// revisits a producer node, in which case writes overwrite prior values.
// Reads by a node see the snapshot taken at the moment the node was
// scheduled; writes made during a node's execution are buffered by the
// caller and applied atomically via Merge.
type MemoryPlane struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewMemoryPlane creates a memory plane seeded with the run's initial input
// payload. The initial map is copied; callers may reuse or discard it.
func NewMemoryPlane(initial map[string]any) *MemoryPlane {
	data := make(map[string]any, len(initial))
	for k, v := range initial {
		data[k] = v
	}
	return &MemoryPlane{data: data}
}

// Write unconditionally overwrites a key.
func (m *MemoryPlane) Write(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// Read returns the value for key and whether it is present.
func (m *MemoryPlane) Read(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// Snapshot returns a copy-on-write view of the plane's contents at this
// instant, used to build a node's input view.
func (m *MemoryPlane) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// HasAll returns the keys in keys that are absent from the plane; the
// result is empty when every key is present.
func (m *MemoryPlane) HasAll(keys []string) (missing []string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, k := range keys {
		if _, ok := m.data[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

// Merge applies a node's buffered outputs atomically. nonNullable lists the
// node's declared output keys that must be present in partial; if any are
// missing, the merge is rejected in full (no partial application) and
// KindMissingRequiredOutput is returned.
func (m *MemoryPlane) Merge(partial map[string]any, nonNullable []string) error {
	for _, k := range nonNullable {
		if _, ok := partial[k]; !ok {
			return NewRuntimeError(KindMissingRequiredOutput, "", "output key "+k+" was not produced", nil)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range partial {
		m.data[k] = v
	}
	return nil
}
