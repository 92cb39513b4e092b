package store

import (
	"time"

	"github.com/aquilax/truncate"
)

// Message category values as emitted by the chat backend.
const (
	CategoryText  = "MESSAGE"
	CategoryInfo  = "INFO"
	CategoryImage = "NEW_IMAGE"
)

// SyntheticSender is the pseudo the backend uses for server-generated
// messages (joins, system notices). Never a real user.
const SyntheticSender = "SERVER"

// dedupContentLen is how much of the content participates in the dedup key.
const dedupContentLen = 50

// Message is a unit of chat content. The JSON tags match both the wire shape
// of chat-msg frames and the persisted pendingMessages blob, so the same
// struct round-trips through the transport and the durable queue.
type Message struct {
	Content   string `json:"content"`
	Categorie string `json:"categorie"`
	DateEmis  string `json:"dateEmis"` // ISO-8601, client- or server-assigned
	RoomName  string `json:"roomName"`
	Pseudo    string `json:"pseudo,omitempty"`
	UserID    string `json:"userId,omitempty"` // transport connection id, sender fallback

	// ImageURL is the derived display-ready form (data URL or remote URL).
	// It is never what goes on the wire as content.
	ImageURL string `json:"imageUrl,omitempty"`

	// TempID identifies a client-originated message until its server echo is
	// observed. Entries persisted to the durable queue carry the "pending-"
	// prefix; purely in-memory optimistic entries may carry other ids.
	TempID    string `json:"tempId,omitempty"`
	IsPending bool   `json:"isPending,omitempty"`
}

// IsImage reports whether the message is categorized as an image. Content
// that self-identifies as an image without the category is handled by the
// classifier at ingestion time, not here.
func (m *Message) IsImage() bool {
	return m.Categorie == CategoryImage
}

// Sender returns the display name, falling back to the transport connection
// id when the backend omitted the pseudo.
func (m *Message) Sender() string {
	if m.Pseudo != "" {
		return m.Pseudo
	}
	return m.UserID
}

// DedupKey derives the best-effort fingerprint used to detect redundant
// delivery: timestamp, sender, and a content prefix. The backend assigns no
// client-visible message ids, so collisions are possible and accepted.
func (m *Message) DedupKey() string {
	return m.DateEmis + "-" + m.Sender() + "-" +
		truncate.Truncate(m.Content, dedupContentLen, "", truncate.PositionEnd)
}

// SentTime parses DateEmis. Returns the zero time when unparseable.
func (m *Message) SentTime() time.Time {
	t, err := time.Parse(time.RFC3339, m.DateEmis)
	if err != nil {
		return time.Time{}
	}
	return t
}

// PhotoRecord is a captured photo kept in the local gallery. Records whose
// ImageURL is not a data URL are treated as corrupt and filtered at load.
type PhotoRecord struct {
	ID       string `json:"id"`
	ImageURL string `json:"imageUrl"`
	DateEmis string `json:"dateEmis"`
	RoomName string `json:"roomName"`
	Pseudo   string `json:"pseudo"`
}

// NotificationSettings maps room name to enabled state. Absent means
// disabled.
type NotificationSettings map[string]bool
