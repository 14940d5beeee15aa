package domain

import "time"

type ViewID string

const (
	ViewLogin       ViewID = "login"
	ViewFeed        ViewID = "feed"
	ViewMessages    ViewID = "messages"
	ViewFriends     ViewID = "friends"
	ViewMusic       ViewID = "music"
	ViewProfile     ViewID = "profile"
	ViewUserProfile ViewID = "user_profile"
)

func (v ViewID) Valid() bool {
	switch v {
	case ViewLogin, ViewFeed, ViewMessages, ViewFriends, ViewMusic, ViewProfile, ViewUserProfile:
		return true
	}
	return false
}

type FriendStatus string

const (
	FriendStatusNone            FriendStatus = "none"
	FriendStatusFriends         FriendStatus = "friends"
	FriendStatusPendingSent     FriendStatus = "pending_sent"
	FriendStatusPendingReceived FriendStatus = "pending_received"
)

type User struct {
	ID           string
	Handle       string
	Name         string
	Avatar       string
	Bio          string
	Status       string
	IsVerified   bool
	IsAdmin      bool
	Reputation   int
	PostsCount   int
	FriendsCount int
	LastSeen     *time.Time
	FriendStatus FriendStatus
}

type UserSummary struct {
	ID     string
	Name   string
	Handle string
	Avatar string
}

type Profile struct {
	User        User
	Posts       []Post
	LikedPosts  []Post
	FriendsList []UserSummary
}

// Credentials identify a login attempt: either an access code or a
// login/password pair.
type Credentials struct {
	Code     string
	Login    string
	Password string
}

func (c Credentials) Validate() error {
	if c.Code != "" {
		return nil
	}
	fields := map[string]string{}
	if c.Login == "" {
		fields["login"] = "required"
	}
	if c.Password == "" {
		fields["password"] = "required"
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}

type Registration struct {
	SecretCode string
	Handle     string
}

type ProfileUpdate struct {
	Bio    string
	Avatar string
	Status string
}

type FriendRequest struct {
	RequestID    string
	SenderHandle string
	SenderName   string
	SenderAvatar string
}

type RequestAction string

const (
	RequestAccept RequestAction = "accept"
	RequestReject RequestAction = "reject"
)
