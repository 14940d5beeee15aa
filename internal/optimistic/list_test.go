package optimistic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type counter struct {
	ID    string
	Likes int
	Liked bool
}

func newCounters(items ...counter) *List[counter] {
	l := NewList(func(c counter) string { return c.ID })
	l.Replace(items)
	return l
}

func toggle(c counter) counter {
	if c.Liked {
		c.Likes--
	} else {
		c.Likes++
	}
	c.Liked = !c.Liked
	return c
}

func TestCommitOverwritesOptimisticGuess(t *testing.T) {
	l := newCounters(counter{ID: "p1", Likes: 10})

	tok, ok := l.Update("p1", toggle)
	require.True(t, ok)
	got, _ := l.Get("p1")
	require.Equal(t, counter{ID: "p1", Likes: 11, Liked: true}, got)

	// Lost race: the server says the post is not liked after all.
	l.Commit(tok, counter{ID: "p1", Likes: 10, Liked: false})
	got, _ = l.Get("p1")
	require.Equal(t, counter{ID: "p1", Likes: 10, Liked: false}, got)
}

func TestRollbackRestoresPreviousValue(t *testing.T) {
	l := newCounters(counter{ID: "p1", Likes: 3})
	tok, _ := l.Update("p1", toggle)

	require.True(t, l.Rollback(tok))
	got, _ := l.Get("p1")
	require.Equal(t, counter{ID: "p1", Likes: 3}, got)
}

func TestRollbackSkippedAfterSnapshot(t *testing.T) {
	l := newCounters(counter{ID: "p1", Likes: 3})
	tok, _ := l.Update("p1", toggle)

	l.Replace([]counter{{ID: "p1", Likes: 7, Liked: true}})

	require.False(t, l.Rollback(tok))
	got, _ := l.Get("p1")
	require.Equal(t, counter{ID: "p1", Likes: 7, Liked: true}, got)
}

func TestRollbackSkippedAfterNewerWrite(t *testing.T) {
	l := newCounters(counter{ID: "p1"})
	first, _ := l.Update("p1", toggle)
	second, _ := l.Update("p1", toggle)

	require.False(t, l.Rollback(first))
	require.True(t, l.Rollback(second))
	got, _ := l.Get("p1")
	require.Equal(t, counter{ID: "p1", Likes: 1, Liked: true}, got)
}

func TestRemoveAndRollbackKeepsPosition(t *testing.T) {
	l := newCounters(counter{ID: "a"}, counter{ID: "b"}, counter{ID: "c"})

	tok, ok := l.Remove("b")
	require.True(t, ok)
	require.Equal(t, 2, l.Len())

	require.True(t, l.Rollback(tok))
	ids := []string{}
	for _, c := range l.Items() {
		ids = append(ids, c.ID)
	}
	require.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestRemoveRollbackSkippedAfterSnapshot(t *testing.T) {
	l := newCounters(counter{ID: "a"}, counter{ID: "b"})
	tok, _ := l.Remove("b")

	l.Replace([]counter{{ID: "a"}})

	require.False(t, l.Rollback(tok))
	require.Equal(t, 1, l.Len())
}

func TestUnknownKey(t *testing.T) {
	l := newCounters(counter{ID: "a"})
	_, ok := l.Update("zzz", toggle)
	require.False(t, ok)
	_, ok = l.Remove("zzz")
	require.False(t, ok)
}
