package domain

import "time"

// ConversationScope selects either the global channel (zero value) or a
// direct conversation with one partner.
type ConversationScope struct {
	PartnerID string
}

func Global() ConversationScope { return ConversationScope{} }

func DirectWith(partnerID string) ConversationScope {
	return ConversationScope{PartnerID: partnerID}
}

func (s ConversationScope) IsGlobal() bool { return s.PartnerID == "" }

func (s ConversationScope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	return "direct:" + s.PartnerID
}

type Message struct {
	ID           string
	SenderID     string
	SenderName   string
	SenderAvatar string
	Text         string
	Timestamp    time.Time
	IsOwn        bool
}

// Toast is the single transient notification slot.
type Toast struct {
	ID      string
	Message string
	ShownAt time.Time
}
