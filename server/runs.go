package server

import (
	"bytes"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/pix/pkg/bytecode"
)

// Run is a started program: a VM over its own memory plus the output the
// print intrinsics have produced and not yet been collected.
type Run struct {
	ID    string
	Name  string
	Words int

	vm    *bytecode.VM
	out   *bytes.Buffer
	fault string

	created  time.Time
	lastUsed time.Time
}

// newRun wraps mem in a VM writing to a private buffer.
func newRun(name string, mem *bytecode.Memory, words int, trace bool) *Run {
	out := &bytes.Buffer{}
	return &Run{
		Name:  name,
		Words: words,
		vm:    bytecode.NewVM(mem, bytecode.WithOutput(out), bytecode.WithTrace(trace)),
		out:   out,
	}
}

// drain returns and clears the buffered output.
func (r *Run) drain() string {
	s := r.out.String()
	r.out.Reset()
	return s
}

// RunStore maps opaque run IDs to started programs.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewRunStore creates an empty run store.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]*Run)}
}

// Add registers r under a fresh ID and returns the ID.
func (s *RunStore) Add(r *Run) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	r.ID = id
	r.created = now
	r.lastUsed = now
	s.runs[id] = r
	return id
}

// Lookup retrieves a run by ID and marks it used.
func (s *RunStore) Lookup(id string) (*Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, false
	}
	r.lastUsed = time.Now()
	return r, true
}

// Release removes a run. It reports whether the run existed.
func (s *RunStore) Release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return false
	}
	delete(s.runs, id)
	return true
}

// Len returns the number of live runs.
func (s *RunStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// Sweep removes runs that haven't been used within the TTL.
func (s *RunStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for id, r := range s.runs {
		if r.lastUsed.Before(cutoff) {
			delete(s.runs, id)
			removed++
		}
	}
	if removed > 0 {
		log.Debugf("swept %d idle runs", removed)
	}
	return removed
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *RunStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
