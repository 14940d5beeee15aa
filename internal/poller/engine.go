// Package poller keeps the session in sync with the server by polling on
// fixed intervals. There is no push transport; each loop re-fetches a full
// snapshot and replaces the local copy.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rivo/uniseg"
	"golang.org/x/sync/errgroup"

	"NeuralClient/internal/domain"
	"NeuralClient/internal/session"
)

const (
	DefaultNotifyInterval       = 3 * time.Second
	DefaultRequestsInterval     = 3 * time.Second
	DefaultConversationInterval = 2 * time.Second
	DefaultPreviewLen           = 30
)

type Source interface {
	GetMessages(ctx context.Context, token string, scope domain.ConversationScope) ([]domain.Message, error)
	GetFriendRequests(ctx context.Context, token string) ([]domain.FriendRequest, error)
}

// Session is the slice of session.Store the loops write through.
type Session interface {
	Current() (session.Epoch, string, bool)
	ActiveChatScope() domain.ConversationScope
	Apply(e session.Epoch, fn func(session.Focus)) bool
	ReplaceFriendRequests(e session.Epoch, reqs []domain.FriendRequest) bool
	ReplaceConversation(e session.Epoch, scope domain.ConversationScope, msgs []domain.Message) bool
	Watch() (<-chan struct{}, func())
}

type Notifier interface {
	Push(message string) domain.Toast
}

// TickerFunc returns a tick channel and a stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type Engine struct {
	Source  Source
	Session Session
	Toasts  Notifier
	Logger  *slog.Logger

	NotifyInterval       time.Duration
	RequestsInterval     time.Duration
	ConversationInterval time.Duration
	PreviewLen           int
	NewTicker            TickerFunc

	// OnUnauthorized runs on its own goroutine when a poll is rejected
	// with domain.ErrUnauthorized.
	OnUnauthorized func()

	mu         sync.Mutex
	cancel     context.CancelFunc
	group      *errgroup.Group
	loopCtx    context.Context
	mounted    bool
	convCancel context.CancelFunc
	convDone   chan struct{}

	cursor      cursor
	notifySeq   sequencer
	requestsSeq sequencer
	convSeq     sequencer
	rejected    atomic.Bool
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Start launches the notification and friend-request loops, plus the
// conversation loop if a conversation is mounted. Calling Start on a running
// engine does nothing.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(loopCtx)
	e.cancel = cancel
	e.group = g
	e.loopCtx = gctx
	e.rejected.Store(false)

	g.Go(func() error {
		return e.run(gctx, "notifications", orDefault(e.NotifyInterval, DefaultNotifyInterval), e.pollNotifications, nil)
	})
	g.Go(func() error {
		return e.run(gctx, "friend_requests", orDefault(e.RequestsInterval, DefaultRequestsInterval), e.pollFriendRequests, nil)
	})
	if e.mounted {
		e.startConversationLocked()
	}
}

// Stop cancels every loop and waits for them to return. The notification
// cursor and the mounted conversation are forgotten so the next session
// starts without either.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, g, done := e.cancel, e.group, e.convDone
	e.cancel, e.group, e.loopCtx = nil, nil, nil
	e.mounted = false
	e.stopConversationLocked()
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
	if err := g.Wait(); err != nil {
		e.logger().Warn("poller: loop exited with error", "err", err)
	}
	e.cursor.reset()
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// ConversationActive reports whether the conversation loop is running.
func (e *Engine) ConversationActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.convCancel != nil
}

// MountConversation starts polling the active chat scope. It fetches
// immediately and again whenever the session's focus changes.
func (e *Engine) MountConversation() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mounted = true
	if e.cancel != nil && e.convCancel == nil {
		e.startConversationLocked()
	}
}

func (e *Engine) UnmountConversation() {
	e.mu.Lock()
	e.mounted = false
	done := e.convDone
	e.stopConversationLocked()
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}

// RefreshConversation fetches the active conversation once, outside the
// regular schedule.
func (e *Engine) RefreshConversation(ctx context.Context) error {
	return e.pollConversation(ctx)
}

func (e *Engine) startConversationLocked() {
	ctx, cancel := context.WithCancel(e.loopCtx)
	done := make(chan struct{})
	e.convCancel = cancel
	e.convDone = done

	kick, unwatch := e.Session.Watch()
	go func() {
		defer close(done)
		defer unwatch()
		_ = e.run(ctx, "conversation", orDefault(e.ConversationInterval, DefaultConversationInterval), e.pollConversation, kick)
	}()
}

func (e *Engine) stopConversationLocked() {
	if e.convCancel != nil {
		e.convCancel()
	}
	e.convCancel = nil
	e.convDone = nil
}

func (e *Engine) run(ctx context.Context, name string, interval time.Duration, tick func(context.Context) error, kick <-chan struct{}) error {
	newTicker := e.NewTicker
	if newTicker == nil {
		newTicker = realTicker
	}
	ticks, stop := newTicker(interval)
	defer stop()

	e.tick(ctx, name, tick)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
			e.tick(ctx, name, tick)
		case <-kick:
			e.tick(ctx, name, tick)
		}
	}
}

func (e *Engine) tick(ctx context.Context, name string, fn func(context.Context) error) {
	err := fn(ctx)
	if err == nil || ctx.Err() != nil {
		return
	}
	if errors.Is(err, domain.ErrUnauthorized) && e.OnUnauthorized != nil {
		e.logger().Warn("poller: session rejected", "loop", name)
		if e.rejected.CompareAndSwap(false, true) {
			go e.OnUnauthorized()
		}
		return
	}
	e.logger().Warn("poller: fetch failed", "loop", name, "err", err)
}

// pollNotifications watches the global channel and raises a toast when a
// new message from someone else arrives while the user is elsewhere.
func (e *Engine) pollNotifications(ctx context.Context) error {
	epoch, token, ok := e.Session.Current()
	if !ok {
		return nil
	}
	seq := e.notifySeq.next()
	msgs, err := e.Source.GetMessages(ctx, token, domain.Global())
	if err != nil {
		return fmt.Errorf("fetch global messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}
	last := msgs[len(msgs)-1]

	// The toast is decided under the session lock and pushed after it is
	// released; subscribers may read the session.
	var text string
	e.notifySeq.apply(seq, func() {
		e.Session.Apply(epoch, func(f session.Focus) {
			prev, seen := e.cursor.swap(last.ID)
			if !seen || prev == last.ID || last.IsOwn || f.ViewingGlobalChat() {
				return
			}
			text = notificationText(last, orDefaultInt(e.PreviewLen, DefaultPreviewLen))
		})
	})
	if text != "" {
		e.Toasts.Push(text)
	}
	return nil
}

func (e *Engine) pollFriendRequests(ctx context.Context) error {
	epoch, token, ok := e.Session.Current()
	if !ok {
		return nil
	}
	seq := e.requestsSeq.next()
	reqs, err := e.Source.GetFriendRequests(ctx, token)
	if err != nil {
		return fmt.Errorf("fetch friend requests: %w", err)
	}
	e.requestsSeq.apply(seq, func() {
		e.Session.ReplaceFriendRequests(epoch, reqs)
	})
	return nil
}

func (e *Engine) pollConversation(ctx context.Context) error {
	epoch, token, ok := e.Session.Current()
	if !ok {
		return nil
	}
	scope := e.Session.ActiveChatScope()
	seq := e.convSeq.next()
	msgs, err := e.Source.GetMessages(ctx, token, scope)
	if err != nil {
		return fmt.Errorf("fetch %s messages: %w", scope, err)
	}
	e.convSeq.apply(seq, func() {
		e.Session.ReplaceConversation(epoch, scope, msgs)
	})
	return nil
}

func notificationText(m domain.Message, n int) string {
	return fmt.Sprintf("Message from %s: %s...", m.SenderName, preview(m.Text, n))
}

// preview keeps the first n user-perceived characters of s.
func preview(s string, n int) string {
	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for i := 0; i < n && g.Next(); i++ {
		b.WriteString(g.Str())
	}
	return b.String()
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func orDefaultInt(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
