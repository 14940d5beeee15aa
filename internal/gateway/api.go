package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"NeuralClient/internal/domain"
)

func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.User, string, error) {
	if err := creds.Validate(); err != nil {
		return domain.User{}, "", err
	}
	body := map[string]string{}
	if creds.Code != "" {
		body["code"] = creds.Code
	} else {
		body["login"] = creds.Login
		body["password"] = creds.Password
	}

	var out wireLogin
	if err := c.do(ctx, call{method: http.MethodPost, path: "/login", body: body, login: true}, &out); err != nil {
		return domain.User{}, "", err
	}
	if out.User == nil || out.User.ID == "" || out.Token == "" {
		return domain.User{}, "", malformed("login response without user or token")
	}
	return out.User.toDomain(), out.Token, nil
}

func (c *Client) Register(ctx context.Context, name, password string) (domain.Registration, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Registration{}, domain.NewValidationError(map[string]string{"name": "required"})
	}
	body := map[string]string{"name": name}
	if password != "" {
		body["password"] = password
	}
	var out wireRegistration
	if err := c.do(ctx, call{method: http.MethodPost, path: "/register", body: body}, &out); err != nil {
		return domain.Registration{}, err
	}
	if out.SecretCode == "" {
		return domain.Registration{}, malformed("registration without secret code")
	}
	return domain.Registration{SecretCode: out.SecretCode, Handle: out.Handle}, nil
}

func (c *Client) GetMessages(ctx context.Context, token string, scope domain.ConversationScope) ([]domain.Message, error) {
	var q url.Values
	if !scope.IsGlobal() {
		q = url.Values{"partner_id": {scope.PartnerID}}
	}
	var out []wireMessage
	if err := c.do(ctx, call{method: http.MethodGet, path: "/messages", query: q, token: token}, &out); err != nil {
		return nil, err
	}
	return convertAll(out, wireMessage.toDomain)
}

func (c *Client) PostMessage(ctx context.Context, token, text string, scope domain.ConversationScope) (domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, domain.NewValidationError(map[string]string{"text": "required"})
	}
	body := map[string]any{"text": text, "recipientId": nil}
	if !scope.IsGlobal() {
		body["recipientId"] = scope.PartnerID
	}
	var out wireMessage
	if err := c.do(ctx, call{method: http.MethodPost, path: "/messages", token: token, body: body}, &out); err != nil {
		return domain.Message{}, err
	}
	return out.toDomain()
}

func (c *Client) DeleteMessage(ctx context.Context, token, id string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: "/messages", query: url.Values{"id": {id}}, token: token}, nil)
}

func (c *Client) GetFriendRequests(ctx context.Context, token string) ([]domain.FriendRequest, error) {
	var out []wireFriendRequest
	if err := c.do(ctx, call{method: http.MethodGet, path: "/friends/requests", token: token}, &out); err != nil {
		return nil, err
	}
	return convertAll(out, wireFriendRequest.toDomain)
}

func (c *Client) RespondToRequest(ctx context.Context, token, requestID string, action domain.RequestAction) error {
	switch action {
	case domain.RequestAccept, domain.RequestReject:
	default:
		return domain.NewValidationError(map[string]string{"action": "must be accept or reject"})
	}
	body := map[string]any{"requestId": requestIDValue(requestID), "action": string(action)}
	return c.do(ctx, call{method: http.MethodPost, path: "/friends/respond", token: token, body: body}, nil)
}

func (c *Client) SendFriendRequest(ctx context.Context, token, handle string) (domain.FriendStatus, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, call{method: http.MethodPost, path: "/friends/request", token: token, body: map[string]string{"handle": handle}}, &out); err != nil {
		return "", err
	}
	return domain.FriendStatus(out.Status), nil
}

func (c *Client) RemoveFriend(ctx context.Context, token, handle string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/friends/remove", token: token, body: map[string]string{"handle": handle}}, nil)
}

// GetFeed works without a token; the server then reports every post as
// not liked.
func (c *Client) GetFeed(ctx context.Context, token string) ([]domain.Post, error) {
	var out []wirePost
	if err := c.do(ctx, call{method: http.MethodGet, path: "/posts", token: token}, &out); err != nil {
		return nil, err
	}
	return convertAll(out, wirePost.toDomain)
}

func (c *Client) PostFeedItem(ctx context.Context, token string, p domain.NewPost) (domain.Post, error) {
	if err := p.Validate(); err != nil {
		return domain.Post{}, err
	}
	body := map[string]any{"content": p.Content, "imageUrl": nil}
	if p.ImageURL != "" {
		body["imageUrl"] = p.ImageURL
	}
	var out wirePost
	if err := c.do(ctx, call{method: http.MethodPost, path: "/posts", token: token, body: body}, &out); err != nil {
		return domain.Post{}, err
	}
	return out.toDomain()
}

func (c *Client) LikePost(ctx context.Context, token, postID string) (domain.LikeResult, error) {
	var out wireLike
	if err := c.do(ctx, call{method: http.MethodPost, path: "/posts/" + postID + "/like", token: token, body: struct{}{}}, &out); err != nil {
		return domain.LikeResult{}, err
	}
	if out.Likes == nil || out.IsLiked == nil {
		return domain.LikeResult{}, malformed("like response without likes or isLiked")
	}
	return domain.LikeResult{Likes: *out.Likes, IsLiked: *out.IsLiked}, nil
}

func (c *Client) PostComment(ctx context.Context, token, postID, content string) (domain.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Comment{}, domain.NewValidationError(map[string]string{"content": "required"})
	}
	var out wireComment
	if err := c.do(ctx, call{method: http.MethodPost, path: "/posts/" + postID + "/comments", token: token, body: map[string]string{"content": content}}, &out); err != nil {
		return domain.Comment{}, err
	}
	return out.toDomain(), nil
}

func (c *Client) GetProfile(ctx context.Context, token, handle string) (domain.Profile, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return domain.Profile{}, domain.NewValidationError(map[string]string{"handle": "required"})
	}
	var out wireProfile
	if err := c.do(ctx, call{method: http.MethodGet, path: "/users/" + handle, token: token}, &out); err != nil {
		return domain.Profile{}, err
	}
	if out.ID == "" {
		return domain.Profile{}, malformed("profile without id")
	}
	posts, err := convertAll(out.Posts, wirePost.toDomain)
	if err != nil {
		return domain.Profile{}, err
	}
	liked, err := convertAll(out.LikedPosts, wirePost.toDomain)
	if err != nil {
		return domain.Profile{}, err
	}
	friends, err := convertAll(out.FriendsList, wireUserSummary.toDomain)
	if err != nil {
		return domain.Profile{}, err
	}
	return domain.Profile{
		User:        out.wireUser.toDomain(),
		Posts:       posts,
		LikedPosts:  liked,
		FriendsList: friends,
	}, nil
}

func (c *Client) UpdateProfile(ctx context.Context, token string, upd domain.ProfileUpdate) (domain.User, error) {
	body := map[string]string{"bio": upd.Bio, "avatar": upd.Avatar, "status": upd.Status}
	var out wireUser
	if err := c.do(ctx, call{method: http.MethodPost, path: "/me/update", token: token, body: body}, &out); err != nil {
		return domain.User{}, err
	}
	return out.toDomain(), nil
}

func (c *Client) AdminToggleVerify(ctx context.Context, token, handle string) (bool, error) {
	var out struct {
		IsVerified bool `json:"isVerified"`
	}
	if err := c.do(ctx, call{method: http.MethodPost, path: "/admin/verify_toggle", token: token, body: map[string]string{"handle": handle}}, &out); err != nil {
		return false, err
	}
	return out.IsVerified, nil
}

func (c *Client) GetPlaylist(ctx context.Context, token string) ([]domain.Track, error) {
	var out []wireTrack
	if err := c.do(ctx, call{method: http.MethodGet, path: "/music", token: token}, &out); err != nil {
		return nil, err
	}
	return convertAll(out, wireTrack.toDomain)
}

func (c *Client) ToggleTrackLike(ctx context.Context, token, trackID string) (bool, error) {
	var out wireLike
	if err := c.do(ctx, call{method: http.MethodPost, path: "/music/" + trackID + "/like", token: token, body: struct{}{}}, &out); err != nil {
		return false, err
	}
	if out.IsLiked == nil {
		return false, malformed("track like response without isLiked")
	}
	return *out.IsLiked, nil
}

func (c *Client) Search(ctx context.Context, token, query string) ([]domain.UserSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	var out []wireUserSummary
	if err := c.do(ctx, call{method: http.MethodGet, path: "/search", query: url.Values{"q": {query}}, token: token}, &out); err != nil {
		return nil, err
	}
	return convertAll(out, wireUserSummary.toDomain)
}

// requestIDValue sends numeric request ids back as numbers, matching how
// the server issued them.
func requestIDValue(id string) any {
	for _, r := range id {
		if r < '0' || r > '9' {
			return id
		}
	}
	if id == "" {
		return id
	}
	return json.Number(id)
}
