package types

import (
	"time"

	"github.com/google/uuid"
)

// ConversationState tags where a conversation is in the region → themes →
// preferences flow.
type ConversationState string

const (
	StateAwaitingRegion      ConversationState = "awaiting_region"
	StateAwaitingThemes      ConversationState = "awaiting_themes"
	StateAwaitingPreferences ConversationState = "awaiting_preferences"
	StateDone                ConversationState = "done"
)

type MessageSender string

const (
	SenderUser MessageSender = "user"
	SenderBot  MessageSender = "bot"
)

type ChatMessage struct {
	Sender MessageSender `json:"sender"`
	Text   string        `json:"text"`
	SentAt time.Time     `json:"sent_at"`
}

// Conversation holds one chat session's intermediate state. Owned by the chat
// layer, keyed by ID in a TTL store; concurrent conversations never share an
// instance.
type Conversation struct {
	ID          uuid.UUID         `json:"id"`
	State       ConversationState `json:"state"`
	Region      string            `json:"region,omitempty"`
	Themes      []string          `json:"themes,omitempty"`
	Preferences []string          `json:"preferences,omitempty"`
	Messages    []ChatMessage     `json:"messages"`
	Routes      []RouteStage      `json:"routes,omitempty"`
	Tours       []TourStage       `json:"tours,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Clone returns an independent copy of the conversation. The chat layer hands
// clones across its lock boundary so callers can read and encode them while
// the original keeps changing.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Themes = append([]string(nil), c.Themes...)
	cp.Preferences = append([]string(nil), c.Preferences...)
	cp.Messages = append([]ChatMessage(nil), c.Messages...)
	cp.Routes = append([]RouteStage(nil), c.Routes...)
	cp.Tours = append([]TourStage(nil), c.Tours...)
	return &cp
}
