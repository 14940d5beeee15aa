// Package feed keeps one screen's list of posts: the main feed or the posts
// on a profile. Each screen owns its Board; boards never share posts.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"NeuralClient/internal/domain"
	"NeuralClient/internal/optimistic"
)

type API interface {
	LikePost(ctx context.Context, token, postID string) (domain.LikeResult, error)
	PostComment(ctx context.Context, token, postID, content string) (domain.Comment, error)
	PostFeedItem(ctx context.Context, token string, p domain.NewPost) (domain.Post, error)
}

// LoadFunc fetches the board's posts from the server.
type LoadFunc func(ctx context.Context, token string) ([]domain.Post, error)

type Board struct {
	Name   string
	API    API
	Load   LoadFunc
	Logger *slog.Logger

	once  sync.Once
	posts *optimistic.List[domain.Post]

	mu      sync.Mutex
	issued  uint64
	applied uint64
}

func NewBoard(name string, api API, load LoadFunc, logger *slog.Logger) *Board {
	b := &Board{Name: name, API: api, Load: load, Logger: logger}
	b.list()
	return b
}

func (b *Board) list() *optimistic.List[domain.Post] {
	b.once.Do(func() {
		b.posts = optimistic.NewList(func(p domain.Post) string { return p.ID })
	})
	return b.posts
}

func (b *Board) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

func (b *Board) Posts() []domain.Post {
	return b.list().Items()
}

// Refresh replaces the board with a fresh fetch. A response that arrives
// after a newer refresh or a Reset is dropped.
func (b *Board) Refresh(ctx context.Context, token string) error {
	if b.Load == nil {
		return fmt.Errorf("feed %s: no loader", b.Name)
	}
	seq := b.stamp()
	posts, err := b.Load(ctx, token)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", b.Name, err)
	}
	if !b.install(seq, posts) {
		b.logger().Debug("feed: stale refresh dropped", "board", b.Name)
	}
	return nil
}

// Replace installs posts fetched elsewhere, such as a profile payload.
func (b *Board) Replace(posts []domain.Post) {
	b.install(b.stamp(), posts)
}

func (b *Board) stamp() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.issued++
	return b.issued
}

func (b *Board) install(seq uint64, posts []domain.Post) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq <= b.applied {
		return false
	}
	b.applied = seq
	b.list().Replace(posts)
	return true
}

// Reset empties the board and invalidates refreshes still in flight.
func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.issued++
	b.applied = b.issued
	b.list().Replace(nil)
}

// ToggleLike flips the like locally and then installs the server's counts,
// whatever the local guess was. If the request fails the guess is undone.
func (b *Board) ToggleLike(ctx context.Context, token, postID string) (domain.Post, error) {
	list := b.list()
	tok, ok := list.Update(postID, domain.Post.WithLike)
	if !ok {
		return domain.Post{}, domain.ErrNotFound
	}

	res, err := b.API.LikePost(ctx, token, postID)
	if err != nil {
		list.Rollback(tok)
		return domain.Post{}, err
	}
	p, ok := list.Get(postID)
	if !ok {
		return domain.Post{}, domain.ErrNotFound
	}
	p = p.Apply(res)
	list.Commit(tok, p)
	return p, nil
}

func (b *Board) AddComment(ctx context.Context, token, postID, content string) (domain.Comment, error) {
	c, err := b.API.PostComment(ctx, token, postID, content)
	if err != nil {
		return domain.Comment{}, err
	}
	b.list().Update(postID, func(p domain.Post) domain.Post {
		p.Comments = append(append([]domain.Comment(nil), p.Comments...), c)
		return p
	})
	return c, nil
}

// Publish creates a post and reloads the board so it shows in server order.
func (b *Board) Publish(ctx context.Context, token string, np domain.NewPost) (domain.Post, error) {
	p, err := b.API.PostFeedItem(ctx, token, np)
	if err != nil {
		return domain.Post{}, err
	}
	if err := b.Refresh(ctx, token); err != nil {
		b.logger().Warn("feed: refresh after publish failed", "board", b.Name, "err", err)
	}
	return p, nil
}
