// Package session holds the process-wide session: identity, credential,
// view selection and the collections the poller keeps in sync.
//
// Every asynchronous write carries the Epoch observed when its request was
// issued. Login and logout advance the epoch, so a response that lands after
// the session changed is dropped instead of leaking into the new one.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"NeuralClient/internal/domain"
	"NeuralClient/internal/optimistic"
)

type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (domain.User, string, error)
	Register(ctx context.Context, name, password string) (domain.Registration, error)
}

type Epoch uint64

// Focus is what the user is looking at right now.
type Focus struct {
	View  domain.ViewID
	Scope domain.ConversationScope
}

// ViewingGlobalChat reports whether the global conversation is on screen.
func (f Focus) ViewingGlobalChat() bool {
	return f.View == domain.ViewMessages && f.Scope.IsGlobal()
}

type State struct {
	Identity          *domain.User
	Credential        string
	ActiveView        domain.ViewID
	ActiveChatScope   domain.ConversationScope
	FriendRequests    []domain.FriendRequest
	Conversation      []domain.Message
	ConversationScope domain.ConversationScope
	ViewedProfile     *domain.Profile
}

func (s State) Authenticated() bool { return s.Identity != nil }

type Store struct {
	Credentials CredentialStore
	Auth        Authenticator
	Logger      *slog.Logger

	mu                sync.RWMutex
	epoch             Epoch
	identity          *domain.User
	credential        string
	view              domain.ViewID
	scope             domain.ConversationScope
	conversation      []domain.Message
	conversationScope domain.ConversationScope
	viewedProfile     *domain.Profile
	requests          *optimistic.List[domain.FriendRequest]
	watchers          map[uint64]chan struct{}
	nextWatcher       uint64
}

func New(creds CredentialStore, auth Authenticator, logger *slog.Logger) *Store {
	return &Store{Credentials: creds, Auth: auth, Logger: logger}
}

func (s *Store) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Store) lazyInitLocked() {
	if s.requests == nil {
		s.requests = optimistic.NewList(func(r domain.FriendRequest) string { return r.RequestID })
	}
	if s.view == "" {
		s.view = domain.ViewLogin
	}
}

// Init validates a persisted credential. It is the only place an existing
// credential is retried; on failure the credential is discarded.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	s.lazyInitLocked()
	s.mu.Unlock()

	if s.Credentials == nil {
		return nil
	}
	token, err := s.Credentials.Load(ctx)
	if err != nil {
		s.logger().Warn("session: load credential failed", "err", err)
		return nil
	}
	if token == "" {
		return nil
	}

	user, issued, err := s.Auth.Login(ctx, domain.Credentials{Code: token})
	if err != nil {
		if clearErr := s.Credentials.Clear(ctx); clearErr != nil {
			s.logger().Error("session: clear credential failed", "err", clearErr)
		}
		return fmt.Errorf("restore session: %w", err)
	}
	if issued == "" {
		issued = token
	}
	if issued != token {
		if err := s.Credentials.Save(ctx, issued); err != nil {
			s.logger().Warn("session: persist rotated credential failed", "err", err)
		}
	}
	s.establish(user, issued)
	return nil
}

// Login authenticates and, only once the credential is persisted, swaps the
// new identity in. A failed login leaves the session untouched.
func (s *Store) Login(ctx context.Context, creds domain.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	user, token, err := s.Auth.Login(ctx, creds)
	if err != nil {
		return err
	}
	if s.Credentials != nil {
		if err := s.Credentials.Save(ctx, token); err != nil {
			return fmt.Errorf("persist credential: %w", err)
		}
	}
	s.establish(user, token)
	return nil
}

// Register creates an account. The session is not signed in by it; the
// returned secret code is the credential for a later Login.
func (s *Store) Register(ctx context.Context, name, password string) (domain.Registration, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Registration{}, domain.NewValidationError(map[string]string{"name": "required"})
	}
	return s.Auth.Register(ctx, name, password)
}

func (s *Store) establish(user domain.User, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lazyInitLocked()
	s.epoch++
	s.identity = &user
	s.credential = token
	s.view = domain.ViewFeed
	s.scope = domain.Global()
	s.conversation = nil
	s.conversationScope = domain.Global()
	s.viewedProfile = nil
	s.requests.Replace(nil)
	s.notifyLocked()
}

// Logout resets the whole session in one step. Writes tagged with an older
// epoch are rejected from here on.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.lazyInitLocked()
	s.epoch++
	s.identity = nil
	s.credential = ""
	s.view = domain.ViewLogin
	s.scope = domain.Global()
	s.conversation = nil
	s.conversationScope = domain.Global()
	s.viewedProfile = nil
	s.requests.Replace(nil)
	s.notifyLocked()
	s.mu.Unlock()

	if s.Credentials != nil {
		if err := s.Credentials.Clear(ctx); err != nil {
			s.logger().Error("session: clear credential failed", "err", err)
		}
	}
}

func (s *Store) Epoch() Epoch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Current returns the epoch, the credential and whether a user is signed in.
func (s *Store) Current() (Epoch, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch, s.credential, s.identity != nil
}

func (s *Store) Identity() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return domain.User{}, false
	}
	return *s.identity, true
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		Credential:        s.credential,
		ActiveView:        s.view,
		ActiveChatScope:   s.scope,
		Conversation:      append([]domain.Message(nil), s.conversation...),
		ConversationScope: s.conversationScope,
	}
	if st.ActiveView == "" {
		st.ActiveView = domain.ViewLogin
	}
	if s.identity != nil {
		u := *s.identity
		st.Identity = &u
	}
	if s.viewedProfile != nil {
		p := *s.viewedProfile
		st.ViewedProfile = &p
	}
	if s.requests != nil {
		st.FriendRequests = s.requests.Items()
	}
	return st
}

func (s *Store) ActiveChatScope() domain.ConversationScope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scope
}

func (s *Store) SetActiveChatScope(scope domain.ConversationScope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scope == scope {
		return
	}
	s.scope = scope
	s.notifyLocked()
}

func (s *Store) SetActiveView(view domain.ViewID) error {
	if !view.Valid() {
		return domain.NewValidationError(map[string]string{"view": "unknown view"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil && view != domain.ViewLogin {
		return domain.ErrNotAuthenticated
	}
	if s.view == view {
		return nil
	}
	s.view = view
	s.notifyLocked()
	return nil
}

// Apply runs fn under the session lock if e is still the live epoch of a
// signed-in session.
func (s *Store) Apply(e Epoch, fn func(Focus)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked(e) {
		return false
	}
	fn(Focus{View: s.view, Scope: s.scope})
	return true
}

func (s *Store) ReplaceFriendRequests(e Epoch, reqs []domain.FriendRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked(e) {
		return false
	}
	s.requests.Replace(reqs)
	return true
}

// RemoveFriendRequest optimistically hides a request the user responded to.
func (s *Store) RemoveFriendRequest(e Epoch, requestID string) (optimistic.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked(e) {
		return optimistic.Token{}, domain.ErrNotAuthenticated
	}
	tok, ok := s.requests.Remove(requestID)
	if !ok {
		return optimistic.Token{}, domain.ErrNotFound
	}
	return tok, nil
}

func (s *Store) RestoreFriendRequest(e Epoch, tok optimistic.Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked(e) {
		return false
	}
	return s.requests.Rollback(tok)
}

// ReplaceConversation installs a fetched conversation, but only while the
// user still has the scope it was fetched for selected.
func (s *Store) ReplaceConversation(e Epoch, scope domain.ConversationScope, msgs []domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked(e) || s.scope != scope {
		return false
	}
	s.conversation = append([]domain.Message(nil), msgs...)
	s.conversationScope = scope
	return true
}

func (s *Store) SetViewedProfile(e Epoch, p domain.Profile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked(e) {
		return false
	}
	s.viewedProfile = &p
	return true
}

// UpdateIdentity replaces the signed-in user's snapshot after a profile edit.
func (s *Store) UpdateIdentity(e Epoch, u domain.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked(e) {
		return false
	}
	s.identity = &u
	return true
}

// Watch returns a channel signalled after view, scope or identity changes.
// Signals coalesce; the channel never blocks the store.
func (s *Store) Watch() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchers == nil {
		s.watchers = make(map[uint64]chan struct{})
	}
	s.nextWatcher++
	id := s.nextWatcher
	ch := make(chan struct{}, 1)
	s.watchers[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

func (s *Store) liveLocked(e Epoch) bool {
	return s.identity != nil && e == s.epoch
}

func (s *Store) notifyLocked() {
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
