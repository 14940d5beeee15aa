// Package optimistic holds ordered collections that accept speculative local
// writes and reconcile them against authoritative server data.
//
// Server data always wins: Replace and Commit overwrite whatever is held,
// and Rollback only undoes a speculative write nothing newer has touched.
package optimistic

import "sync"

// Token identifies one speculative write.
type Token struct {
	key     string
	rev     uint64
	prev    any
	index   int
	removed bool
}

func (t Token) Key() string { return t.key }

type entry[T any] struct {
	value T
	rev   uint64
}

type List[T any] struct {
	mu    sync.RWMutex
	keyOf func(T) string
	items []entry[T]
	rev   uint64
}

func NewList[T any](keyOf func(T) string) *List[T] {
	return &List[T]{keyOf: keyOf}
}

// Replace installs a full authoritative snapshot. Pending tokens issued
// before the call can no longer roll anything back.
func (l *List[T]) Replace(items []T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rev++
	next := make([]entry[T], len(items))
	for i, it := range items {
		next[i] = entry[T]{value: it, rev: l.rev}
	}
	l.items = next
}

func (l *List[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, len(l.items))
	for i, e := range l.items {
		out[i] = e.value
	}
	return out
}

func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func (l *List[T]) Get(key string) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := l.indexLocked(key); i >= 0 {
		return l.items[i].value, true
	}
	var zero T
	return zero, false
}

// Update applies fn to the item with key as a speculative write.
func (l *List[T]) Update(key string, fn func(T) T) (Token, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(key)
	if i < 0 {
		return Token{}, false
	}
	prev := l.items[i].value
	l.rev++
	l.items[i] = entry[T]{value: fn(prev), rev: l.rev}
	return Token{key: key, rev: l.rev, prev: prev, index: i}, true
}

// Remove drops the item with key as a speculative write.
func (l *List[T]) Remove(key string) (Token, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(key)
	if i < 0 {
		return Token{}, false
	}
	prev := l.items[i].value
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.rev++
	return Token{key: key, rev: l.rev, prev: prev, index: i, removed: true}, true
}

// Commit writes the server's value for the token's item. It is the final
// state for that item regardless of what the speculative write guessed.
// For a removal token the item stays removed and value is ignored.
func (l *List[T]) Commit(tok Token, value T) {
	if tok.removed {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(tok.key)
	if i < 0 {
		return
	}
	l.rev++
	l.items[i] = entry[T]{value: value, rev: l.rev}
}

// Rollback undoes the speculative write behind tok. It reports false when a
// newer snapshot or write has superseded it, in which case nothing changes.
func (l *List[T]) Rollback(tok Token) bool {
	prev, ok := tok.prev.(T)
	if !ok {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if tok.removed {
		if l.rev != tok.rev || l.indexLocked(tok.key) >= 0 {
			return false
		}
		idx := min(tok.index, len(l.items))
		l.rev++
		l.items = append(l.items, entry[T]{})
		copy(l.items[idx+1:], l.items[idx:])
		l.items[idx] = entry[T]{value: prev, rev: l.rev}
		return true
	}
	i := l.indexLocked(tok.key)
	if i < 0 || l.items[i].rev != tok.rev {
		return false
	}
	l.rev++
	l.items[i] = entry[T]{value: prev, rev: l.rev}
	return true
}

func (l *List[T]) indexLocked(key string) int {
	for i, e := range l.items {
		if l.keyOf(e.value) == key {
			return i
		}
	}
	return -1
}
