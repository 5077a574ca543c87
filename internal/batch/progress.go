package batch

import (
	"sync"
)

// State is the lifecycle position of a batch run
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Snapshot is a point-in-time view of a batch run
type Snapshot struct {
	State State `json:"state"`
	Rows  int   `json:"rows"`  // rows merged so far
	Total int   `json:"total"` // rows in the input
	Row   int   `json:"row"`   // 1-based row being processed, 0 when not running
	Err   error `json:"-"`
}

// Progress tracks a batch run. It is safe to read from other goroutines
// while the merger updates it.
type Progress struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewProgress returns a progress tracker in the idle state
func NewProgress() *Progress {
	return &Progress{snap: Snapshot{State: StateIdle}}
}

// Snapshot returns the current state
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Rows returns the number of rows merged so far
func (p *Progress) Rows() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap.Rows
}

// State returns the current lifecycle state
func (p *Progress) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap.State
}

func (p *Progress) start(total int) Snapshot {
	return p.update(func(s *Snapshot) {
		*s = Snapshot{State: StateRunning, Total: total}
	})
}

func (p *Progress) begin(row int) Snapshot {
	return p.update(func(s *Snapshot) {
		s.Row = row
	})
}

func (p *Progress) advance() Snapshot {
	return p.update(func(s *Snapshot) {
		s.Rows++
	})
}

func (p *Progress) complete() Snapshot {
	return p.update(func(s *Snapshot) {
		s.State = StateCompleted
		s.Row = 0
	})
}

func (p *Progress) fail(err error) Snapshot {
	return p.update(func(s *Snapshot) {
		s.State = StateFailed
		s.Err = err
	})
}

func (p *Progress) update(fn func(*Snapshot)) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.snap)
	return p.snap
}
