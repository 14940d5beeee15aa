// Package mpd plays tracks through a Music Player Daemon. MPD streams the
// track URL itself; this package only drives its queue and watches the
// player subsystem to report when a track finishes.
package mpd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fhs/gompd/v2/mpd"

	"NeuralClient/internal/domain"
)

const reconnectDelay = 2 * time.Second

type Player struct {
	Network  string
	Addr     string
	Password string
	Logger   *slog.Logger

	// OnTrackEnd runs on the watcher goroutine when a track we started
	// reaches its end.
	OnTrackEnd func()

	playing atomic.Bool
}

// New returns a Player for addr. Absolute paths are unix sockets, anything
// else is host:port.
func New(addr, password string, logger *slog.Logger) *Player {
	network := "tcp"
	if strings.HasPrefix(addr, "/") {
		network = "unix"
	}
	return &Player{Network: network, Addr: addr, Password: password, Logger: logger}
}

func (p *Player) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// do runs fn on a short-lived connection. Idle watching uses its own
// connection, so commands never collide with it.
func (p *Player) do(fn func(c *mpd.Client) error) error {
	var (
		c   *mpd.Client
		err error
	)
	if p.Password != "" {
		c, err = mpd.DialAuthenticated(p.Network, p.Addr, p.Password)
	} else {
		c, err = mpd.Dial(p.Network, p.Addr)
	}
	if err != nil {
		return fmt.Errorf("mpd dial %s: %w", p.Addr, err)
	}
	defer c.Close()
	return fn(c)
}

func (p *Player) Load(_ context.Context, t domain.Track) error {
	p.playing.Store(false)
	err := p.do(func(c *mpd.Client) error {
		if err := c.Clear(); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		if err := c.Add(t.URL); err != nil {
			return fmt.Errorf("add %s: %w", t.URL, err)
		}
		return c.Play(0)
	})
	if err != nil {
		return err
	}
	p.playing.Store(true)
	return nil
}

func (p *Player) Resume(_ context.Context) error {
	err := p.do(func(c *mpd.Client) error {
		st, err := c.Status()
		if err != nil {
			return err
		}
		if st["state"] == "stop" {
			return c.Play(0)
		}
		return c.Pause(false)
	})
	if err != nil {
		return err
	}
	p.playing.Store(true)
	return nil
}

func (p *Player) Pause(_ context.Context) error {
	p.playing.Store(false)
	return p.do(func(c *mpd.Client) error { return c.Pause(true) })
}

func (p *Player) Stop(_ context.Context) error {
	p.playing.Store(false)
	return p.do(func(c *mpd.Client) error { return c.Stop() })
}

func (p *Player) SetVolume(_ context.Context, v float64) error {
	vol := int(math.Round(domain.ClampVolume(v) * 100))
	return p.do(func(c *mpd.Client) error { return c.SetVolume(vol) })
}

// Watch follows MPD's player subsystem until ctx ends, reconnecting after
// failures.
func (p *Player) Watch(ctx context.Context) error {
	for {
		w, err := mpd.NewWatcher(p.Network, p.Addr, p.Password, "player")
		if err != nil {
			p.logger().Warn("mpd: watcher init failed", "addr", p.Addr, "err", err)
		} else {
			err = p.runIdle(ctx, w)
			w.Close()
			if err == nil {
				return nil
			}
			p.logger().Warn("mpd: idle loop exited", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (p *Player) runIdle(ctx context.Context, w *mpd.Watcher) error {
	go func() {
		for err := range w.Error {
			p.logger().Debug("mpd: watcher error", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-w.Event:
			if !ok {
				return errors.New("watcher closed")
			}
			var state string
			err := p.do(func(c *mpd.Client) error {
				st, err := c.Status()
				if err != nil {
					return err
				}
				state = st["state"]
				return nil
			})
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			p.playerChanged(state)
		}
	}
}

// playerChanged reports a track end when MPD stopped on its own while we
// expected it to be playing.
func (p *Player) playerChanged(state string) {
	if state != "stop" || !p.playing.CompareAndSwap(true, false) {
		return
	}
	if p.OnTrackEnd != nil {
		p.OnTrackEnd()
	}
}
