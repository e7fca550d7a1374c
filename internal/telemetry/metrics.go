package telemetry

import (
	"sort"
	"sync"
)

// Metrics exposes the counter and gauge methods required by server
// components. Implementations must be safe for concurrent use.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// NopMetrics discards every update.
type NopMetrics struct{}

func (NopMetrics) Add(string, uint64)   {}
func (NopMetrics) Store(string, uint64) {}

// Registry is an in-memory Metrics implementation backing the diagnostics
// endpoint.
type Registry struct {
	mu     sync.Mutex
	values map[string]uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{values: make(map[string]uint64)}
}

// Add increments the counter at key by delta.
func (r *Registry) Add(key string, delta uint64) {
	if r == nil || key == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] += delta
}

// Store sets the gauge at key to value.
func (r *Registry) Store(key string, value uint64) {
	if r == nil || key == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
}

// Get returns the current value at key.
func (r *Registry) Get(key string) uint64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[key]
}

// Snapshot returns all values in key order.
func (r *Registry) Snapshot() []KeyValue {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make([]KeyValue, 0, len(r.values))
	for key, value := range r.values {
		snapshot = append(snapshot, KeyValue{Key: key, Value: value})
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Key < snapshot[j].Key })
	return snapshot
}

// KeyValue is one metrics entry.
type KeyValue struct {
	Key   string `json:"key"`
	Value uint64 `json:"value"`
}

var (
	_ Metrics = NopMetrics{}
	_ Metrics = (*Registry)(nil)
)
