package domain

type Track struct {
	ID      string
	URL     string
	Title   string
	Artist  string
	Cover   string
	Genre   string
	IsLiked bool
}

// SameAs reports whether t and other are the same server-side track.
// Tracks are identified by ID only; two entries sharing a URL are distinct.
func (t Track) SameAs(other Track) bool {
	return t.ID != "" && t.ID == other.ID
}

type PlaybackStatus string

const (
	StatusIdle    PlaybackStatus = "idle"
	StatusPaused  PlaybackStatus = "paused"
	StatusPlaying PlaybackStatus = "playing"
)

type PlaybackState struct {
	Current *Track
	Status  PlaybackStatus
	Volume  float64
}

// EndPolicy decides what happens when the current track finishes.
type EndPolicy string

const (
	EndAdvance EndPolicy = "advance"
	EndStop    EndPolicy = "stop"
)

func ClampVolume(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
