package frames

import (
	"sync"
	"time"
)

// Slot holds the most recent frame. Set always overwrites, so readers see the
// freshest frame even while the queue is dropping.
type Slot struct {
	mu      sync.RWMutex
	frame   *Frame
	updated time.Time
}

// Set replaces the held frame.
func (s *Slot) Set(f *Frame) {
	s.mu.Lock()
	s.frame = f
	s.updated = time.Now()
	s.mu.Unlock()
}

// Get returns the held frame, or false if nothing was captured yet.
func (s *Slot) Get() (*Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.frame != nil
}

// Updated returns when the slot was last written.
func (s *Slot) Updated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}
