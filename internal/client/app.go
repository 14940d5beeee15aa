// Package client assembles the session, poller, toast queue, playback and
// post boards into one process-wide App with a New/Close lifecycle.
package client

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"NeuralClient/internal/domain"
	"NeuralClient/internal/feed"
	"NeuralClient/internal/playback"
	"NeuralClient/internal/poller"
	"NeuralClient/internal/session"
	"NeuralClient/internal/toast"
)

// API is everything the App needs from the server.
type API interface {
	session.Authenticator
	poller.Source
	feed.API
	playback.LikeToggler

	PostMessage(ctx context.Context, token, text string, scope domain.ConversationScope) (domain.Message, error)
	DeleteMessage(ctx context.Context, token, id string) error
	RespondToRequest(ctx context.Context, token, requestID string, action domain.RequestAction) error
	SendFriendRequest(ctx context.Context, token, handle string) (domain.FriendStatus, error)
	RemoveFriend(ctx context.Context, token, handle string) error
	GetFeed(ctx context.Context, token string) ([]domain.Post, error)
	GetProfile(ctx context.Context, token, handle string) (domain.Profile, error)
	UpdateProfile(ctx context.Context, token string, upd domain.ProfileUpdate) (domain.User, error)
	AdminToggleVerify(ctx context.Context, token, handle string) (bool, error)
	GetPlaylist(ctx context.Context, token string) ([]domain.Track, error)
	Search(ctx context.Context, token, query string) ([]domain.UserSummary, error)
}

type Options struct {
	API         API
	Credentials session.CredentialStore
	Player      playback.Player
	Logger      *slog.Logger

	PollInterval         time.Duration
	RequestsPollInterval time.Duration
	ChatPollInterval     time.Duration
	ToastTTL             time.Duration
	PreviewLen           int
	EndPolicy            domain.EndPolicy
	Volume               float64

	NewTicker poller.TickerFunc
}

type App struct {
	Session     *session.Store
	Toasts      *toast.Queue
	Poller      *poller.Engine
	Playback    *playback.Controller
	Feed        *feed.Board
	Profile     *feed.Board
	UserProfile *feed.Board

	api    API
	creds  session.CredentialStore
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(opts Options) (*App, error) {
	if opts.API == nil {
		return nil, errors.New("client: api required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	player := opts.Player
	if player == nil {
		player = playback.Discard
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		api:    opts.API,
		creds:  opts.Credentials,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	a.Toasts = toast.New(opts.ToastTTL)
	a.Session = session.New(opts.Credentials, opts.API, logger)
	a.Playback = playback.New(player, opts.API, a.Toasts, opts.EndPolicy, opts.Volume)
	a.Playback.Logger = logger
	a.Poller = &poller.Engine{
		Source:               opts.API,
		Session:              a.Session,
		Toasts:               a.Toasts,
		Logger:               logger,
		NotifyInterval:       opts.PollInterval,
		RequestsInterval:     opts.RequestsPollInterval,
		ConversationInterval: opts.ChatPollInterval,
		PreviewLen:           opts.PreviewLen,
		NewTicker:            opts.NewTicker,
		OnUnauthorized:       a.expire,
	}
	a.Feed = feed.NewBoard("feed", opts.API, opts.API.GetFeed, logger)
	a.Profile = feed.NewBoard("profile", opts.API, a.loadOwnProfile, logger)
	a.UserProfile = feed.NewBoard("user_profile", opts.API, a.loadViewedProfile, logger)
	return a, nil
}

// Close stops background work. The persisted credential is kept so the next
// start can restore the session.
func (a *App) Close() {
	a.Poller.Stop()
	a.Playback.Reset(context.Background())
	a.Toasts.Close()
	a.cancel()
}

// CredentialSavedAt reports when the stored credential was last written.
// ok is false when nothing is stored or the store keeps no timestamp.
func (a *App) CredentialSavedAt(ctx context.Context) (time.Time, bool) {
	st, ok := a.creds.(interface {
		UpdatedAt(context.Context) (*time.Time, error)
	})
	if !ok {
		return time.Time{}, false
	}
	ts, err := st.UpdatedAt(ctx)
	if err != nil {
		a.logger.Warn("client: credential timestamp", "err", err)
		return time.Time{}, false
	}
	if ts == nil {
		return time.Time{}, false
	}
	return *ts, true
}

// Init restores a persisted session if there is one.
func (a *App) Init(ctx context.Context) error {
	if err := a.Session.Init(ctx); err != nil {
		a.logger.Info("client: stored credential rejected", "err", err)
		return err
	}
	if a.Session.Snapshot().Authenticated() {
		a.started(ctx)
	}
	return nil
}

func (a *App) Login(ctx context.Context, creds domain.Credentials) error {
	if err := a.Session.Login(ctx, creds); err != nil {
		return a.fail(ctx, err)
	}
	a.started(ctx)
	return nil
}

func (a *App) Register(ctx context.Context, name, password string) (domain.Registration, error) {
	reg, err := a.Session.Register(ctx, name, password)
	if err != nil {
		return domain.Registration{}, a.fail(ctx, err)
	}
	return reg, nil
}

func (a *App) started(ctx context.Context) {
	a.Poller.Start(a.ctx)
	if err := a.loadPlaylist(ctx); err != nil {
		a.logger.Warn("client: playlist fetch failed", "err", err)
	}
	if err := a.refresh(ctx, a.Feed); err != nil {
		a.logger.Warn("client: feed fetch failed", "err", err)
	}
}

// Logout drops the session, stops every loop and silences playback.
func (a *App) Logout(ctx context.Context) {
	a.Session.Logout(ctx)
	a.Poller.Stop()
	a.Playback.Reset(ctx)
	a.Feed.Reset()
	a.Profile.Reset()
	a.UserProfile.Reset()
}

// expire is the forced logout after the server rejected the credential.
func (a *App) expire() {
	if !a.Session.Snapshot().Authenticated() {
		return
	}
	a.logger.Warn("client: session expired")
	a.Logout(a.ctx)
	a.Toasts.Push(domain.UserMessage(domain.ErrUnauthorized))
}

// fail shows err to the user. A rejected credential ends the session.
func (a *App) fail(ctx context.Context, err error) error {
	if errors.Is(err, domain.ErrUnauthorized) {
		a.Logout(ctx)
	}
	a.Toasts.Push(domain.UserMessage(err))
	return err
}

func (a *App) authed() (session.Epoch, string, error) {
	e, token, ok := a.Session.Current()
	if !ok {
		return 0, "", domain.ErrNotAuthenticated
	}
	return e, token, nil
}

func (a *App) token() string {
	_, token, _ := a.Session.Current()
	return token
}

// Navigate switches the active view and starts whatever the view needs.
func (a *App) Navigate(ctx context.Context, view domain.ViewID) error {
	if err := a.show(view); err != nil {
		return err
	}

	var err error
	switch view {
	case domain.ViewMusic:
		err = a.loadPlaylist(ctx)
	case domain.ViewFeed:
		err = a.refresh(ctx, a.Feed)
	case domain.ViewProfile:
		err = a.refresh(ctx, a.Profile)
	case domain.ViewUserProfile:
		err = a.refresh(ctx, a.UserProfile)
	}
	if err != nil {
		return a.fail(ctx, err)
	}
	return nil
}

// show switches the view without fetching anything. The conversation poll
// runs only while the messages view is shown.
func (a *App) show(view domain.ViewID) error {
	if err := a.Session.SetActiveView(view); err != nil {
		return err
	}
	if view == domain.ViewMessages {
		a.Poller.MountConversation()
	} else {
		a.Poller.UnmountConversation()
	}
	return nil
}

func (a *App) refresh(ctx context.Context, b *feed.Board) error {
	return b.Refresh(ctx, a.token())
}

func (a *App) loadPlaylist(ctx context.Context) error {
	e, token, err := a.authed()
	if err != nil {
		return err
	}
	tracks, err := a.api.GetPlaylist(ctx, token)
	if err != nil {
		return err
	}
	a.Session.Apply(e, func(session.Focus) {
		a.Playback.SetPlaylist(tracks)
	})
	return nil
}

func (a *App) loadOwnProfile(ctx context.Context, token string) ([]domain.Post, error) {
	me, ok := a.Session.Identity()
	if !ok {
		return nil, domain.ErrNotAuthenticated
	}
	p, err := a.api.GetProfile(ctx, token, me.Handle)
	if err != nil {
		return nil, err
	}
	return p.Posts, nil
}

func (a *App) loadViewedProfile(ctx context.Context, token string) ([]domain.Post, error) {
	st := a.Session.Snapshot()
	if st.ViewedProfile == nil {
		return nil, nil
	}
	e := a.Session.Epoch()
	p, err := a.api.GetProfile(ctx, token, st.ViewedProfile.User.Handle)
	if err != nil {
		return nil, err
	}
	a.Session.SetViewedProfile(e, p)
	return p.Posts, nil
}

// SelectChat switches the conversation shown in the messages view.
func (a *App) SelectChat(scope domain.ConversationScope) {
	a.Session.SetActiveChatScope(scope)
}

// StartChat opens the direct conversation with userID.
func (a *App) StartChat(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.NewValidationError(map[string]string{"user": "required"})
	}
	a.Session.SetActiveChatScope(domain.DirectWith(userID))
	return a.Navigate(ctx, domain.ViewMessages)
}

// OpenProfile shows the profile behind handle. The signed-in user's own
// handle goes to the profile view instead.
func (a *App) OpenProfile(ctx context.Context, handle string) error {
	e, token, err := a.authed()
	if err != nil {
		return err
	}
	me, _ := a.Session.Identity()
	if sameHandle(me.Handle, handle) {
		return a.Navigate(ctx, domain.ViewProfile)
	}

	p, err := a.api.GetProfile(ctx, token, handle)
	if err != nil {
		return a.fail(ctx, err)
	}
	if !a.Session.SetViewedProfile(e, p) {
		return nil
	}
	a.UserProfile.Replace(p.Posts)
	return a.show(domain.ViewUserProfile)
}

func sameHandle(a, b string) bool {
	norm := func(s string) string { return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@")) }
	return norm(a) != "" && norm(a) == norm(b)
}

// SendMessage posts to the active conversation and refreshes it. Nothing is
// appended locally.
func (a *App) SendMessage(ctx context.Context, text string) error {
	_, token, err := a.authed()
	if err != nil {
		return err
	}
	if _, err := a.api.PostMessage(ctx, token, text, a.Session.ActiveChatScope()); err != nil {
		return a.fail(ctx, err)
	}
	if err := a.Poller.RefreshConversation(ctx); err != nil {
		a.logger.Warn("client: refresh after send failed", "err", err)
	}
	return nil
}

func (a *App) DeleteMessage(ctx context.Context, id string) error {
	_, token, err := a.authed()
	if err != nil {
		return err
	}
	if err := a.api.DeleteMessage(ctx, token, id); err != nil {
		return a.fail(ctx, err)
	}
	if err := a.Poller.RefreshConversation(ctx); err != nil {
		a.logger.Warn("client: refresh after delete failed", "err", err)
	}
	return nil
}

// RespondToRequest hides the request at once and puts it back if the
// server refuses.
func (a *App) RespondToRequest(ctx context.Context, requestID string, action domain.RequestAction) error {
	e, token, err := a.authed()
	if err != nil {
		return err
	}
	tok, err := a.Session.RemoveFriendRequest(e, requestID)
	if err != nil {
		return err
	}
	if err := a.api.RespondToRequest(ctx, token, requestID, action); err != nil {
		a.Session.RestoreFriendRequest(e, tok)
		return a.fail(ctx, err)
	}
	if action == domain.RequestAccept {
		a.Toasts.Push("Request accepted")
	} else {
		a.Toasts.Push("Request declined")
	}
	return nil
}

func (a *App) SendFriendRequest(ctx context.Context, handle string) (domain.FriendStatus, error) {
	_, token, err := a.authed()
	if err != nil {
		return "", err
	}
	status, err := a.api.SendFriendRequest(ctx, token, handle)
	if err != nil {
		return "", a.fail(ctx, err)
	}
	return status, nil
}

func (a *App) RemoveFriend(ctx context.Context, handle string) error {
	_, token, err := a.authed()
	if err != nil {
		return err
	}
	if err := a.api.RemoveFriend(ctx, token, handle); err != nil {
		return a.fail(ctx, err)
	}
	return nil
}

func (a *App) LikePost(ctx context.Context, b *feed.Board, postID string) (domain.Post, error) {
	_, token, err := a.authed()
	if err != nil {
		return domain.Post{}, err
	}
	p, err := b.ToggleLike(ctx, token, postID)
	if err != nil {
		return domain.Post{}, a.fail(ctx, err)
	}
	return p, nil
}

func (a *App) Comment(ctx context.Context, b *feed.Board, postID, content string) (domain.Comment, error) {
	_, token, err := a.authed()
	if err != nil {
		return domain.Comment{}, err
	}
	c, err := b.AddComment(ctx, token, postID, content)
	if err != nil {
		return domain.Comment{}, a.fail(ctx, err)
	}
	return c, nil
}

func (a *App) Publish(ctx context.Context, np domain.NewPost) (domain.Post, error) {
	_, token, err := a.authed()
	if err != nil {
		return domain.Post{}, err
	}
	p, err := a.Feed.Publish(ctx, token, np)
	if err != nil {
		return domain.Post{}, a.fail(ctx, err)
	}
	return p, nil
}

func (a *App) UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) (domain.User, error) {
	e, token, err := a.authed()
	if err != nil {
		return domain.User{}, err
	}
	u, err := a.api.UpdateProfile(ctx, token, upd)
	if err != nil {
		return domain.User{}, a.fail(ctx, err)
	}
	if u.ID != "" {
		a.Session.UpdateIdentity(e, u)
	}
	return u, nil
}

// ToggleVerify flips the verified badge of handle. Admins only.
func (a *App) ToggleVerify(ctx context.Context, handle string) (bool, error) {
	_, token, err := a.authed()
	if err != nil {
		return false, err
	}
	if me, _ := a.Session.Identity(); !me.IsAdmin {
		return false, a.fail(ctx, domain.ErrForbidden)
	}
	verified, err := a.api.AdminToggleVerify(ctx, token, handle)
	if err != nil {
		return false, a.fail(ctx, err)
	}
	return verified, nil
}

func (a *App) Search(ctx context.Context, query string) ([]domain.UserSummary, error) {
	_, token, err := a.authed()
	if err != nil {
		return nil, err
	}
	users, err := a.api.Search(ctx, token, query)
	if err != nil {
		return nil, a.fail(ctx, err)
	}
	return users, nil
}

// PlayTrack selects the playlist track with id.
func (a *App) PlayTrack(ctx context.Context, id string) error {
	for _, t := range a.Playback.Playlist() {
		if t.ID == id {
			return a.Playback.Select(ctx, t)
		}
	}
	return domain.ErrNotFound
}

func (a *App) LikeTrack(ctx context.Context, id string) (bool, error) {
	_, token, err := a.authed()
	if err != nil {
		return false, err
	}
	liked, err := a.Playback.ToggleLike(ctx, token, id)
	if err != nil {
		return false, a.fail(ctx, err)
	}
	return liked, nil
}
