// Package playback is the single audio session: which track is loaded,
// whether it plays, and at what volume. Output goes through a Player.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"NeuralClient/internal/domain"
	"NeuralClient/internal/optimistic"
)

// Player is the media output. Load replaces whatever the output held and
// starts playing the new source.
type Player interface {
	Load(ctx context.Context, t domain.Track) error
	Resume(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	SetVolume(ctx context.Context, v float64) error
}

type LikeToggler interface {
	ToggleTrackLike(ctx context.Context, token, trackID string) (bool, error)
}

type Notifier interface {
	Push(message string) domain.Toast
}

const DefaultVolume = 1.0

type Controller struct {
	Player    Player
	Likes     LikeToggler
	Toasts    Notifier
	EndPolicy domain.EndPolicy
	Logger    *slog.Logger

	mu       sync.Mutex
	current  *domain.Track
	status   domain.PlaybackStatus
	volume   float64
	playlist *optimistic.List[domain.Track]

	// notice is a toast raised under mu, pushed by unlock.
	notice string
}

func New(player Player, likes LikeToggler, toasts Notifier, policy domain.EndPolicy, volume float64) *Controller {
	return &Controller{
		Player:    player,
		Likes:     likes,
		Toasts:    toasts,
		EndPolicy: policy,
		status:    domain.StatusIdle,
		volume:    domain.ClampVolume(volume),
		playlist:  newPlaylist(),
	}
}

func newPlaylist() *optimistic.List[domain.Track] {
	return optimistic.NewList(func(t domain.Track) string { return t.ID })
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// unlock releases mu and then pushes any toast raised while it was held.
func (c *Controller) unlock() {
	notice := c.notice
	c.notice = ""
	c.mu.Unlock()
	if notice != "" && c.Toasts != nil {
		c.Toasts.Push(notice)
	}
}

func (c *Controller) list() *optimistic.List[domain.Track] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playlist == nil {
		c.playlist = newPlaylist()
	}
	return c.playlist
}

func (c *Controller) State() domain.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := domain.PlaybackState{Status: c.statusLocked(), Volume: c.volume}
	if c.current != nil {
		t := *c.current
		st.Current = &t
	}
	return st
}

func (c *Controller) statusLocked() domain.PlaybackStatus {
	if c.status == "" {
		return domain.StatusIdle
	}
	return c.status
}

// Select plays t. Selecting the loaded track again toggles between playing
// and paused without reloading it.
func (c *Controller) Select(ctx context.Context, t domain.Track) error {
	c.mu.Lock()
	defer c.unlock()
	if c.current != nil && c.current.SameAs(t) {
		return c.toggleLocked(ctx)
	}
	return c.playLocked(ctx, t)
}

// TogglePlay flips between playing and paused. Without a loaded track it
// does nothing.
func (c *Controller) TogglePlay(ctx context.Context) error {
	c.mu.Lock()
	defer c.unlock()
	return c.toggleLocked(ctx)
}

func (c *Controller) toggleLocked(ctx context.Context) error {
	switch c.statusLocked() {
	case domain.StatusPlaying:
		if err := c.Player.Pause(ctx); err != nil {
			return c.failLocked(err)
		}
		c.status = domain.StatusPaused
	case domain.StatusPaused:
		if err := c.Player.Resume(ctx); err != nil {
			return c.failLocked(err)
		}
		c.status = domain.StatusPlaying
	}
	return nil
}

// OnTrackEnd is called by the output when the loaded track finishes. The
// output has stopped, so when there is no successor to load the controller
// pauses on the finished track.
func (c *Controller) OnTrackEnd(ctx context.Context) error {
	c.mu.Lock()
	defer c.unlock()
	if c.statusLocked() != domain.StatusPlaying {
		return nil
	}
	if c.EndPolicy == domain.EndStop {
		c.status = domain.StatusPaused
		return nil
	}
	moved, err := c.stepLocked(ctx, 1)
	if !moved {
		c.status = domain.StatusPaused
	}
	return err
}

func (c *Controller) Next(ctx context.Context) error {
	c.mu.Lock()
	defer c.unlock()
	_, err := c.stepLocked(ctx, 1)
	return err
}

func (c *Controller) Previous(ctx context.Context) error {
	c.mu.Lock()
	defer c.unlock()
	_, err := c.stepLocked(ctx, -1)
	return err
}

// stepLocked moves dir places through the playlist with wraparound. It
// reports false, and does nothing, when the loaded track is no longer listed.
func (c *Controller) stepLocked(ctx context.Context, dir int) (bool, error) {
	if c.current == nil || c.playlist == nil {
		return false, nil
	}
	items := c.playlist.Items()
	n := len(items)
	for i, t := range items {
		if t.SameAs(*c.current) {
			return true, c.playLocked(ctx, items[((i+dir)%n+n)%n])
		}
	}
	return false, nil
}

// playLocked fully stops the previous source before loading t.
func (c *Controller) playLocked(ctx context.Context, t domain.Track) error {
	if c.current != nil {
		if err := c.Player.Stop(ctx); err != nil {
			c.logger().Warn("playback: stop previous failed", "track_id", c.current.ID, "err", err)
		}
	}
	c.current = &t
	if err := c.Player.Load(ctx, t); err != nil {
		return c.failLocked(err)
	}
	c.status = domain.StatusPlaying
	return nil
}

// failLocked parks the controller in Paused and queues a toast for unlock.
// Nothing is retried.
func (c *Controller) failLocked(err error) error {
	c.status = domain.StatusPaused
	if c.current == nil {
		c.status = domain.StatusIdle
	}
	err = fmt.Errorf("%w: %v", domain.ErrPlayback, err)
	c.logger().Warn("playback failed", "err", err)
	c.notice = domain.UserMessage(err)
	return err
}

func (c *Controller) SetVolume(ctx context.Context, v float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = domain.ClampVolume(v)
	if err := c.Player.SetVolume(ctx, c.volume); err != nil {
		c.logger().Warn("playback: set volume failed", "err", err)
		return fmt.Errorf("%w: %v", domain.ErrPlayback, err)
	}
	return nil
}

// SetPlaylist replaces the playlist. The loaded track keeps playing even if
// the new list no longer contains it.
func (c *Controller) SetPlaylist(tracks []domain.Track) {
	c.list().Replace(tracks)
}

func (c *Controller) Playlist() []domain.Track {
	return c.list().Items()
}

func (c *Controller) Favourites() []domain.Track {
	var out []domain.Track
	for _, t := range c.list().Items() {
		if t.IsLiked {
			out = append(out, t)
		}
	}
	return out
}

// ToggleLike flips the like flag locally, then installs the server's answer.
// On failure the local flip is undone unless a newer write replaced it.
func (c *Controller) ToggleLike(ctx context.Context, token, trackID string) (bool, error) {
	list := c.list()
	tok, ok := list.Update(trackID, func(t domain.Track) domain.Track {
		t.IsLiked = !t.IsLiked
		return t
	})
	if !ok {
		return false, domain.ErrNotFound
	}

	liked, err := c.Likes.ToggleTrackLike(ctx, token, trackID)
	if err != nil {
		list.Rollback(tok)
		return false, err
	}
	if t, ok := list.Get(trackID); ok {
		t.IsLiked = liked
		list.Commit(tok, t)
	}

	c.mu.Lock()
	if c.current != nil && c.current.ID == trackID {
		c.current.IsLiked = liked
	}
	c.mu.Unlock()
	return liked, nil
}

// Reset stops output and forgets the track and playlist. Volume is kept.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		if err := c.Player.Stop(ctx); err != nil {
			c.logger().Warn("playback: stop on reset failed", "err", err)
		}
	}
	c.current = nil
	c.status = domain.StatusIdle
	if c.playlist != nil {
		c.playlist.Replace(nil)
	}
}
