package poller

import "sync"

// cursor is the id of the newest global message seen so far.
type cursor struct {
	mu  sync.Mutex
	id  string
	set bool
}

// swap stores id and returns the previous value and whether there was one.
func (c *cursor) swap(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, seen := c.id, c.set
	c.id, c.set = id, true
	return prev, seen
}

func (c *cursor) get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id, c.set
}

func (c *cursor) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id, c.set = "", false
}

// sequencer stamps requests of one loop and applies responses in issue
// order. A response older than the last applied one is dropped.
type sequencer struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
}

func (s *sequencer) next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

func (s *sequencer) apply(seq uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.applied {
		return false
	}
	s.applied = seq
	fn()
	return true
}
