// Package toast implements the single-slot transient notification holder.
package toast

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"NeuralClient/internal/domain"
)

const DefaultTTL = 3 * time.Second

type Timer interface {
	Stop() bool
}

// Queue holds at most one visible toast. A push replaces the current toast
// and restarts its dismissal timer; nothing is ever queued behind it.
type Queue struct {
	TTL       time.Duration
	Now       func() time.Time
	AfterFunc func(time.Duration, func()) Timer

	mu      sync.Mutex
	current *domain.Toast
	gen     uint64
	timer   Timer
	subs    map[uint64]func(domain.Toast)
	nextSub uint64
}

func New(ttl time.Duration) *Queue {
	return &Queue{TTL: ttl}
}

func (q *Queue) Push(message string) domain.Toast {
	ttl := q.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := q.Now
	if now == nil {
		now = time.Now
	}

	t := domain.Toast{ID: uuid.NewString(), Message: message, ShownAt: now()}

	q.mu.Lock()
	q.stopTimerLocked()
	q.gen++
	gen := q.gen
	q.current = &t
	q.timer = q.afterFunc(ttl, func() { q.expire(gen) })
	subs := make([]func(domain.Toast), 0, len(q.subs))
	for _, fn := range q.subs {
		subs = append(subs, fn)
	}
	q.mu.Unlock()

	for _, fn := range subs {
		fn(t)
	}
	return t
}

func (q *Queue) Dismiss() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopTimerLocked()
	q.gen++
	q.current = nil
}

func (q *Queue) Current() (domain.Toast, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return domain.Toast{}, false
	}
	return *q.current, true
}

// Subscribe registers fn for every pushed toast. fn runs on the pushing
// goroutine and must not block. Pushers release their own locks before
// pushing, so fn may read session and playback state.
func (q *Queue) Subscribe(fn func(domain.Toast)) (cancel func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.subs == nil {
		q.subs = make(map[uint64]func(domain.Toast))
	}
	q.nextSub++
	id := q.nextSub
	q.subs[id] = fn
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.subs, id)
	}
}

// Close cancels a pending dismissal timer and clears the slot.
func (q *Queue) Close() {
	q.Dismiss()
}

func (q *Queue) expire(gen uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.gen {
		return
	}
	q.current = nil
	q.timer = nil
}

func (q *Queue) stopTimerLocked() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

func (q *Queue) afterFunc(d time.Duration, f func()) Timer {
	if q.AfterFunc != nil {
		return q.AfterFunc(d, f)
	}
	return time.AfterFunc(d, f)
}
