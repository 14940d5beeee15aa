package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"NeuralClient/internal/domain"
)

// flexID accepts ids the server sends either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// parseTimestamp reads the server's ISO timestamps. Values without a zone
// are UTC.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func malformed(what string) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedResponse, what)
}

type wireUser struct {
	ID           flexID  `json:"id"`
	Name         string  `json:"name"`
	Handle       string  `json:"handle"`
	Avatar       string  `json:"avatar"`
	Bio          string  `json:"bio"`
	Status       string  `json:"status"`
	IsVerified   bool    `json:"isVerified"`
	IsAdmin      bool    `json:"isAdmin"`
	Reputation   int     `json:"reputation"`
	PostsCount   int     `json:"postsCount"`
	FriendsCount int     `json:"friendsCount"`
	LastSeen     *string `json:"lastSeen"`
	FriendStatus string  `json:"friendStatus"`
}

func (w wireUser) toDomain() domain.User {
	u := domain.User{
		ID:           string(w.ID),
		Handle:       w.Handle,
		Name:         w.Name,
		Avatar:       w.Avatar,
		Bio:          w.Bio,
		Status:       w.Status,
		IsVerified:   w.IsVerified,
		IsAdmin:      w.IsAdmin,
		Reputation:   w.Reputation,
		PostsCount:   w.PostsCount,
		FriendsCount: w.FriendsCount,
		FriendStatus: domain.FriendStatus(w.FriendStatus),
	}
	if u.FriendStatus == "" {
		u.FriendStatus = domain.FriendStatusNone
	}
	if w.LastSeen != nil {
		if t, ok := parseTimestamp(*w.LastSeen); ok {
			u.LastSeen = &t
		}
	}
	return u
}

type wireUserSummary struct {
	ID     flexID `json:"id"`
	Name   string `json:"name"`
	Handle string `json:"handle"`
	Avatar string `json:"avatar"`
}

func (w wireUserSummary) toDomain() (domain.UserSummary, error) {
	if w.Handle == "" {
		return domain.UserSummary{}, malformed("user without handle")
	}
	return domain.UserSummary{ID: string(w.ID), Name: w.Name, Handle: w.Handle, Avatar: w.Avatar}, nil
}

type wireLogin struct {
	User  *wireUser `json:"user"`
	Token string    `json:"token"`
}

type wireRegistration struct {
	SecretCode string `json:"secret_code"`
	Handle     string `json:"handle"`
}

type wireMessage struct {
	ID           flexID `json:"id"`
	SenderID     flexID `json:"senderId"`
	SenderName   string `json:"senderName"`
	SenderAvatar string `json:"senderAvatar"`
	Text         string `json:"text"`
	Timestamp    string `json:"timestamp"`
	IsOwn        bool   `json:"isOwn"`
}

func (w wireMessage) toDomain() (domain.Message, error) {
	if w.ID == "" {
		return domain.Message{}, malformed("message without id")
	}
	m := domain.Message{
		ID:           string(w.ID),
		SenderID:     string(w.SenderID),
		SenderName:   w.SenderName,
		SenderAvatar: w.SenderAvatar,
		Text:         w.Text,
		IsOwn:        w.IsOwn,
	}
	if t, ok := parseTimestamp(w.Timestamp); ok {
		m.Timestamp = t
	}
	return m, nil
}

type wireFriendRequest struct {
	RequestID    flexID `json:"requestId"`
	SenderName   string `json:"senderName"`
	SenderHandle string `json:"senderHandle"`
	SenderAvatar string `json:"senderAvatar"`
}

func (w wireFriendRequest) toDomain() (domain.FriendRequest, error) {
	if w.RequestID == "" {
		return domain.FriendRequest{}, malformed("friend request without id")
	}
	return domain.FriendRequest{
		RequestID:    string(w.RequestID),
		SenderHandle: w.SenderHandle,
		SenderName:   w.SenderName,
		SenderAvatar: w.SenderAvatar,
	}, nil
}

type wireComment struct {
	ID      flexID `json:"id"`
	Content string `json:"content"`
	Author  string `json:"author"`
	Handle  string `json:"handle"`
	Avatar  string `json:"avatar"`
}

func (w wireComment) toDomain() domain.Comment {
	return domain.Comment{
		ID:      string(w.ID),
		Content: w.Content,
		Author:  w.Author,
		Handle:  w.Handle,
		Avatar:  w.Avatar,
	}
}

type wirePost struct {
	ID        flexID        `json:"id"`
	Author    wireUser      `json:"author"`
	Content   string        `json:"content"`
	ImageURL  *string       `json:"imageUrl"`
	Timestamp string        `json:"timestamp"`
	Likes     int           `json:"likes"`
	IsLiked   bool          `json:"isLiked"`
	Comments  []wireComment `json:"comments"`
}

func (w wirePost) toDomain() (domain.Post, error) {
	if w.ID == "" {
		return domain.Post{}, malformed("post without id")
	}
	p := domain.Post{
		ID:        string(w.ID),
		Author:    w.Author.toDomain(),
		Content:   w.Content,
		Timestamp: w.Timestamp,
		Likes:     w.Likes,
		IsLiked:   w.IsLiked,
	}
	if w.ImageURL != nil {
		p.ImageURL = *w.ImageURL
	}
	for _, c := range w.Comments {
		p.Comments = append(p.Comments, c.toDomain())
	}
	return p, nil
}

type wireLike struct {
	Likes   *int  `json:"likes"`
	IsLiked *bool `json:"isLiked"`
}

type wireTrack struct {
	ID      flexID `json:"id"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	URL     string `json:"url"`
	Cover   string `json:"cover"`
	Genre   string `json:"genre"`
	IsLiked bool   `json:"isLiked"`
}

func (w wireTrack) toDomain() (domain.Track, error) {
	if w.ID == "" || w.URL == "" {
		return domain.Track{}, malformed("track without id or url")
	}
	return domain.Track{
		ID:      string(w.ID),
		URL:     w.URL,
		Title:   w.Title,
		Artist:  w.Artist,
		Cover:   w.Cover,
		Genre:   w.Genre,
		IsLiked: w.IsLiked,
	}, nil
}

type wireProfile struct {
	wireUser
	Posts       []wirePost        `json:"posts"`
	LikedPosts  []wirePost        `json:"likedPosts"`
	FriendsList []wireUserSummary `json:"friendsList"`
}

func convertAll[W any, D any](in []W, conv func(W) (D, error)) ([]D, error) {
	out := make([]D, 0, len(in))
	for _, w := range in {
		d, err := conv(w)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
