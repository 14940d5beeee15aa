package playback

import (
	"context"

	"NeuralClient/internal/domain"
)

// Discard is a Player with no output. It is used when no media backend is
// configured, so the controller still tracks state.
var Discard Player = discard{}

type discard struct{}

func (discard) Load(context.Context, domain.Track) error { return nil }
func (discard) Resume(context.Context) error             { return nil }
func (discard) Pause(context.Context) error              { return nil }
func (discard) Stop(context.Context) error               { return nil }
func (discard) SetVolume(context.Context, float64) error { return nil }
