package transport

import (
	"encoding/json"
	"fmt"
)

// Wire event names understood by the chat backend.
const (
	// EventJoinRoom is emitted on room selection: {pseudo, roomName}.
	EventJoinRoom = "chat-join-room"
	// EventMessage carries chat content both ways:
	// {content, categorie, dateEmis, roomName, pseudo?, userId?}.
	EventMessage = "chat-msg"
	// EventImage is the outgoing image send: {content, userId, roomName}.
	EventImage = "chat-img"
	// EventWelcome is the server's first frame, carrying the connection id.
	EventWelcome = "chat-welcome"
)

// Envelope is the frame format on the websocket: an event name plus its
// JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// joinPayload is the body of a chat-join-room frame.
type joinPayload struct {
	Pseudo   string `json:"pseudo"`
	RoomName string `json:"roomName"`
}

// textPayload is the body of an outgoing chat-msg frame.
type textPayload struct {
	Content  string `json:"content"`
	RoomName string `json:"roomName"`
}

// imagePayload is the body of an outgoing chat-img frame. Content is the
// data-URL or base64 payload; UserID is the sender connection id.
type imagePayload struct {
	Content  string `json:"content"`
	UserID   string `json:"userId"`
	RoomName string `json:"roomName"`
}

// welcomePayload is the body of a chat-welcome frame.
type welcomePayload struct {
	ID string `json:"id"`
}

// encodeFrame builds an envelope frame for an event and payload.
func encodeFrame(event string, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return &Envelope{Event: event, Data: raw}, nil
}
