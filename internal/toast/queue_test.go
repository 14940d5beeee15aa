package toast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NeuralClient/internal/domain"
)

type fakeTimer struct {
	d       time.Duration
	fire    func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{d: d, fire: f}
	c.timers = append(c.timers, t)
	return t
}

func newTestQueue() (*Queue, *fakeClock) {
	clock := &fakeClock{}
	q := New(3 * time.Second)
	q.AfterFunc = clock.AfterFunc
	return q, clock
}

func TestPushReplacesCurrentToast(t *testing.T) {
	q, clock := newTestQueue()

	q.Push("A")
	q.Push("B")

	cur, ok := q.Current()
	require.True(t, ok)
	require.Equal(t, "B", cur.Message)
	require.Len(t, clock.timers, 2)
	require.True(t, clock.timers[0].stopped, "first timer must be cancelled")

	// Stale timer from A firing late must not clear B.
	clock.timers[0].fire()
	cur, ok = q.Current()
	require.True(t, ok)
	require.Equal(t, "B", cur.Message)
}

func TestTimerExpiresToast(t *testing.T) {
	q, clock := newTestQueue()
	q.Push("hello")
	require.Equal(t, 3*time.Second, clock.timers[0].d)

	clock.timers[0].fire()

	_, ok := q.Current()
	require.False(t, ok)
}

func TestDismissCancelsTimer(t *testing.T) {
	q, clock := newTestQueue()
	q.Push("hello")

	q.Dismiss()

	_, ok := q.Current()
	require.False(t, ok)
	require.True(t, clock.timers[0].stopped)
}

func TestSubscribersSeeEveryPush(t *testing.T) {
	q, _ := newTestQueue()
	var seen []string
	cancel := q.Subscribe(func(t domain.Toast) { seen = append(seen, t.Message) })

	q.Push("one")
	q.Push("two")
	cancel()
	q.Push("three")

	require.Equal(t, []string{"one", "two"}, seen)
}

func TestDefaultTTL(t *testing.T) {
	clock := &fakeClock{}
	q := &Queue{AfterFunc: clock.AfterFunc}
	q.Push("x")
	require.Equal(t, DefaultTTL, clock.timers[0].d)
}
