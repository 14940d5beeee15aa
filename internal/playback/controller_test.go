package playback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"NeuralClient/internal/domain"
)

type fakePlayer struct {
	calls   []string
	loadErr error
	volume  float64
}

func (p *fakePlayer) Load(_ context.Context, t domain.Track) error {
	p.calls = append(p.calls, "load:"+t.ID)
	return p.loadErr
}

func (p *fakePlayer) Resume(context.Context) error {
	p.calls = append(p.calls, "resume")
	return nil
}

func (p *fakePlayer) Pause(context.Context) error {
	p.calls = append(p.calls, "pause")
	return nil
}

func (p *fakePlayer) Stop(context.Context) error {
	p.calls = append(p.calls, "stop")
	return nil
}

func (p *fakePlayer) SetVolume(_ context.Context, v float64) error {
	p.volume = v
	return nil
}

type fakeLikes struct {
	toggle func(id string) (bool, error)
}

func (f fakeLikes) ToggleTrackLike(_ context.Context, _, id string) (bool, error) {
	return f.toggle(id)
}

type toastLog struct{ msgs []string }

func (l *toastLog) Push(m string) domain.Toast {
	l.msgs = append(l.msgs, m)
	return domain.Toast{Message: m}
}

var (
	trackA = domain.Track{ID: "a", URL: "https://x/a.mp3", Title: "A"}
	trackB = domain.Track{ID: "b", URL: "https://x/b.mp3", Title: "B"}
	trackC = domain.Track{ID: "c", URL: "https://x/c.mp3", Title: "C"}
)

func newController(policy domain.EndPolicy) (*Controller, *fakePlayer, *toastLog) {
	p := &fakePlayer{}
	toasts := &toastLog{}
	c := New(p, nil, toasts, policy, DefaultVolume)
	c.SetPlaylist([]domain.Track{trackA, trackB, trackC})
	return c, p, toasts
}

func TestSelectSameTrackTogglesWithoutReload(t *testing.T) {
	c, p, _ := newController(domain.EndAdvance)
	ctx := context.Background()

	require.NoError(t, c.Select(ctx, trackA))
	require.Equal(t, domain.StatusPlaying, c.State().Status)

	require.NoError(t, c.Select(ctx, trackA))
	require.Equal(t, domain.StatusPaused, c.State().Status)
	require.Equal(t, []string{"load:a", "pause"}, p.calls)

	require.NoError(t, c.Select(ctx, trackA))
	require.Equal(t, domain.StatusPlaying, c.State().Status)
}

func TestSelectOtherTrackStopsPreviousFirst(t *testing.T) {
	c, p, _ := newController(domain.EndAdvance)
	ctx := context.Background()

	require.NoError(t, c.Select(ctx, trackA))
	require.NoError(t, c.Select(ctx, trackB))

	require.Equal(t, []string{"load:a", "stop", "load:b"}, p.calls)
	st := c.State()
	require.Equal(t, "b", st.Current.ID)
	require.Equal(t, domain.StatusPlaying, st.Status)
}

func TestSameURLDifferentIDIsAnotherTrack(t *testing.T) {
	c, p, _ := newController(domain.EndAdvance)
	ctx := context.Background()
	twin := domain.Track{ID: "z", URL: trackA.URL}

	require.NoError(t, c.Select(ctx, trackA))
	require.NoError(t, c.Select(ctx, twin))
	require.Equal(t, []string{"load:a", "stop", "load:z"}, p.calls)
}

func TestNextAndPreviousWrapAround(t *testing.T) {
	c, _, _ := newController(domain.EndAdvance)
	ctx := context.Background()

	require.NoError(t, c.Select(ctx, trackC))
	require.NoError(t, c.Next(ctx))
	require.Equal(t, "a", c.State().Current.ID)

	require.NoError(t, c.Previous(ctx))
	require.Equal(t, "c", c.State().Current.ID)
	require.NoError(t, c.Previous(ctx))
	require.Equal(t, "b", c.State().Current.ID)
	require.Equal(t, domain.StatusPlaying, c.State().Status)
}

func TestNextFromPausedPlays(t *testing.T) {
	c, _, _ := newController(domain.EndAdvance)
	ctx := context.Background()

	require.NoError(t, c.Select(ctx, trackA))
	require.NoError(t, c.TogglePlay(ctx))
	require.NoError(t, c.Next(ctx))
	st := c.State()
	require.Equal(t, "b", st.Current.ID)
	require.Equal(t, domain.StatusPlaying, st.Status)
}

func TestNextWithUnlistedTrackIsNoop(t *testing.T) {
	c, p, _ := newController(domain.EndAdvance)
	ctx := context.Background()
	stray := domain.Track{ID: "x", URL: "https://x/x.mp3"}

	require.NoError(t, c.Select(ctx, stray))
	require.NoError(t, c.Next(ctx))
	require.Equal(t, "x", c.State().Current.ID)
	require.Equal(t, []string{"load:x"}, p.calls)
}

func TestTogglePlayIdleIsNoop(t *testing.T) {
	c, p, _ := newController(domain.EndAdvance)
	require.NoError(t, c.TogglePlay(context.Background()))
	require.Equal(t, domain.StatusIdle, c.State().Status)
	require.Empty(t, p.calls)
}

func TestTrackEndAdvances(t *testing.T) {
	c, _, _ := newController(domain.EndAdvance)
	ctx := context.Background()

	require.NoError(t, c.Select(ctx, trackB))
	require.NoError(t, c.OnTrackEnd(ctx))
	require.Equal(t, "c", c.State().Current.ID)
}

func TestTrackEndStopPolicyKeepsTrack(t *testing.T) {
	c, _, _ := newController(domain.EndStop)
	ctx := context.Background()

	require.NoError(t, c.Select(ctx, trackB))
	require.NoError(t, c.OnTrackEnd(ctx))
	st := c.State()
	require.Equal(t, "b", st.Current.ID)
	require.Equal(t, domain.StatusPaused, st.Status)
}

func TestTrackEndWhilePausedIsIgnored(t *testing.T) {
	c, _, _ := newController(domain.EndAdvance)
	ctx := context.Background()

	require.NoError(t, c.Select(ctx, trackA))
	require.NoError(t, c.TogglePlay(ctx))
	require.NoError(t, c.OnTrackEnd(ctx))
	require.Equal(t, "a", c.State().Current.ID)
}

func TestTrackEndUnlistedTrackPauses(t *testing.T) {
	c, p, _ := newController(domain.EndAdvance)
	ctx := context.Background()
	stray := domain.Track{ID: "x", URL: "https://x/x.mp3"}

	require.NoError(t, c.Select(ctx, stray))
	require.NoError(t, c.OnTrackEnd(ctx))

	st := c.State()
	require.Equal(t, domain.StatusPaused, st.Status)
	require.Equal(t, "x", st.Current.ID)
	require.Equal(t, []string{"load:x"}, p.calls)
}

// reentrantToasts reads controller state from inside the toast callback,
// as a subscriber rendering the player would.
type reentrantToasts struct {
	c     *Controller
	state domain.PlaybackState
	msgs  []string
}

func (l *reentrantToasts) Push(m string) domain.Toast {
	l.state = l.c.State()
	l.msgs = append(l.msgs, m)
	return domain.Toast{Message: m}
}

func TestFailureToastIsPushedAfterUnlock(t *testing.T) {
	p := &fakePlayer{loadErr: errors.New("unsupported codec")}
	c := New(p, nil, nil, domain.EndAdvance, DefaultVolume)
	notifier := &reentrantToasts{c: c}
	c.Toasts = notifier

	err := c.Select(context.Background(), trackA)
	require.ErrorIs(t, err, domain.ErrPlayback)
	require.Len(t, notifier.msgs, 1)
	require.Equal(t, domain.StatusPaused, notifier.state.Status)
}

func TestLoadFailurePausesAndToasts(t *testing.T) {
	c, p, toasts := newController(domain.EndAdvance)
	p.loadErr = errors.New("codec unsupported")

	err := c.Select(context.Background(), trackA)
	require.ErrorIs(t, err, domain.ErrPlayback)
	st := c.State()
	require.Equal(t, domain.StatusPaused, st.Status)
	require.Equal(t, "a", st.Current.ID)
	require.Len(t, toasts.msgs, 1)
	require.Contains(t, toasts.msgs[0], "codec unsupported")
}

func TestSetVolumeClamps(t *testing.T) {
	c, p, _ := newController(domain.EndAdvance)
	ctx := context.Background()

	require.NoError(t, c.SetVolume(ctx, 1.7))
	require.Equal(t, 1.0, c.State().Volume)
	require.NoError(t, c.SetVolume(ctx, -0.2))
	require.Equal(t, 0.0, p.volume)
}

func TestToggleLikeServerWins(t *testing.T) {
	c, _, _ := newController(domain.EndAdvance)
	c.Likes = fakeLikes{toggle: func(string) (bool, error) { return false, nil }}

	liked, err := c.ToggleLike(context.Background(), "tok", "b")
	require.NoError(t, err)
	require.False(t, liked)
	require.Empty(t, c.Favourites())
}

func TestToggleLikeFailureRollsBack(t *testing.T) {
	c, _, _ := newController(domain.EndAdvance)
	c.Likes = fakeLikes{toggle: func(string) (bool, error) { return false, domain.ErrUnauthorized }}

	_, err := c.ToggleLike(context.Background(), "tok", "a")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	require.False(t, c.Playlist()[0].IsLiked)

	_, err = c.ToggleLike(context.Background(), "tok", "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResetKeepsVolume(t *testing.T) {
	c, p, _ := newController(domain.EndAdvance)
	ctx := context.Background()
	require.NoError(t, c.SetVolume(ctx, 0.4))
	require.NoError(t, c.Select(ctx, trackA))

	c.Reset(ctx)
	st := c.State()
	require.Nil(t, st.Current)
	require.Equal(t, domain.StatusIdle, st.Status)
	require.Equal(t, 0.4, st.Volume)
	require.Empty(t, c.Playlist())
	require.Equal(t, "stop", p.calls[len(p.calls)-1])
}
