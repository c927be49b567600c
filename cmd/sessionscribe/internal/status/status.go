// Package status models per-track pipeline progress and the registry the
// batch orchestrator polls. A status is a tagged value, not a parseable
// string: the transcribing state carries an explicit current/total pair.
//
// Registry semantics: one writer per key (the worker that owns the
// track), many readers (the progress reporter). There are no cross-key
// invariants, so single-key upsert is the only write operation.
package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// State identifies one phase of a track's pipeline.
type State string

const (
	StateWaiting      State = "waiting"
	StateConverting   State = "converting"
	StateSplitting    State = "splitting"
	StateLoadingModel State = "loading_model"
	StateTranscribing State = "transcribing"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Status is the progress of one track. Current/Total are meaningful only
// in StateTranscribing; Message only in StateFailed.
type Status struct {
	State   State  `json:"state"`
	Current int    `json:"current,omitempty"`
	Total   int    `json:"total,omitempty"`
	Message string `json:"message,omitempty"`
}

// Waiting returns the initial status of a scheduled track.
func Waiting() Status { return Status{State: StateWaiting} }

// Transcribing returns an in-progress status for segment current of total.
func Transcribing(current, total int) Status {
	return Status{State: StateTranscribing, Current: current, Total: total}
}

// Failed returns a terminal error status carrying the captured message.
func Failed(message string) Status {
	return Status{State: StateFailed, Message: message}
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s.State == StateDone || s.State == StateFailed
}

// Registry is the shared status store. Implementations must make Set
// atomic per key; readers observe each key's latest write.
type Registry interface {
	// Set upserts the status for key. The caller must be the key's
	// single writer.
	Set(key string, st Status) error

	// Get returns the current status for key and whether one exists.
	Get(key string) (Status, bool)

	// Snapshot returns a copy of all current statuses.
	Snapshot() map[string]Status
}

// Publisher binds a registry to a single key and enforces monotonic
// transitions: once a terminal status is published, later publishes are
// dropped.
type Publisher struct {
	reg      Registry
	key      string
	mu       sync.Mutex
	terminal bool
}

// NewPublisher creates a publisher for key, recording the initial
// waiting status.
func NewPublisher(reg Registry, key string) *Publisher {
	p := &Publisher{reg: reg, key: key}
	_ = reg.Set(key, Waiting())
	return p
}

// Publish upserts st for the bound key unless a terminal status was
// already published.
func (p *Publisher) Publish(st Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminal {
		return
	}
	if st.Terminal() {
		p.terminal = true
	}
	_ = p.reg.Set(p.key, st)
}

// MemoryRegistry is an in-process Registry used by the single-file
// pipeline and by tests.
type MemoryRegistry struct {
	mu sync.RWMutex
	m  map[string]Status
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{m: make(map[string]Status)}
}

func (r *MemoryRegistry) Set(key string, st Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[key] = st
	return nil
}

func (r *MemoryRegistry) Get(key string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.m[key]
	return st, ok
}

func (r *MemoryRegistry) Snapshot() map[string]Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Status, len(r.m))
	for k, v := range r.m {
		out[k] = v
	}
	return out
}

// DirRegistry is the process-shared Registry used between the batch
// orchestrator and its worker processes. Each key is one JSON file in a
// directory; writes go to a temp file first and are renamed into place,
// so readers never observe a partial status.
type DirRegistry struct {
	dir string
}

// NewDirRegistry creates (if needed) the status directory and returns a
// registry over it.
func NewDirRegistry(dir string) (*DirRegistry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create status dir: %w", err)
	}
	return &DirRegistry{dir: dir}, nil
}

// Dir returns the backing directory, for passing to worker processes.
func (r *DirRegistry) Dir() string { return r.dir }

func (r *DirRegistry) keyPath(key string) string {
	// Keys are file base names; guard against separators anyway.
	safe := strings.NewReplacer("/", "_", "\\", "_").Replace(key)
	return filepath.Join(r.dir, safe+".status.json")
}

func (r *DirRegistry) Set(key string, st Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	final := r.keyPath(key)
	tmp := fmt.Sprintf("%s.tmp.%d", final, os.Getpid())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, final)
}

func (r *DirRegistry) Get(key string) (Status, bool) {
	data, err := os.ReadFile(r.keyPath(key))
	if err != nil {
		return Status{}, false
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return Status{}, false
	}
	return st, true
}

func (r *DirRegistry) Snapshot() map[string]Status {
	out := make(map[string]Status)
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return out
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".status.json") {
			continue
		}
		key := strings.TrimSuffix(name, ".status.json")
		if st, ok := r.Get(key); ok {
			out[key] = st
		}
	}
	return out
}
