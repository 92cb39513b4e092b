// Package notify turns messages for non-active rooms into user
// notifications. Whether a message is notification-worthy at all (not own,
// not server-generated, room not in view) is decided upstream; this package
// applies the per-room toggle, the permission gate, and composes the
// notification itself.
package notify

import (
	"net/url"
	"time"

	"github.com/aquilax/truncate"
	"github.com/gavago/roomchat/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// bodyMaxLen bounds the notification body; longer content gets an ellipsis.
const bodyMaxLen = 100

// imageBody replaces image payloads in the notification body.
const imageBody = "📷 Image"

// autoDismissAfter is how long a posted notification stays up.
const autoDismissAfter = 5 * time.Second

// Notification is what gets posted to the user.
type Notification struct {
	Tag   string
	Title string
	Body  string
}

// Poster is the delivery seam to the host notification system.
type Poster interface {
	Post(n Notification) error
	Dismiss(tag string)
}

// Notifier gates and composes notifications. Implements the engine's
// Notifier interface.
type Notifier struct {
	settings   *store.SettingsStore
	poster     Poster
	permission func() bool
	logger     *zap.Logger

	dismissAfter time.Duration
}

// New creates a notifier. permission is consulted per delivery; the host
// may grant or revoke it at any time.
func New(settings *store.SettingsStore, poster Poster, permission func() bool, logger *zap.Logger) *Notifier {
	return &Notifier{
		settings:     settings,
		poster:       poster,
		permission:   permission,
		logger:       logger,
		dismissAfter: autoDismissAfter,
	}
}

// Deliver posts a notification for the message if the room's toggle is on
// and permission is granted. Posting is best-effort.
func (n *Notifier) Deliver(m *store.Message) {
	if !n.settings.Enabled(m.RoomName) {
		return
	}
	if n.permission != nil && !n.permission() {
		return
	}

	notif := Notification{
		Tag:   uuid.NewString(),
		Title: displayRoomName(m.RoomName),
		Body:  composeBody(m),
	}
	if err := n.poster.Post(notif); err != nil {
		n.logger.Warn("notification post failed", zap.String("room", m.RoomName), zap.Error(err))
		return
	}
	time.AfterFunc(n.dismissAfter, func() { n.poster.Dismiss(notif.Tag) })
}

// displayRoomName unescapes percent-encoded room names for the title; an
// unescapable name is shown as-is and an empty one gets a generic title.
func displayRoomName(roomName string) string {
	if roomName == "" {
		return "Nouveau message"
	}
	unescaped, err := url.PathUnescape(roomName)
	if err != nil {
		return roomName
	}
	return unescaped
}

// composeBody builds the notification body. The pseudo prefix is dropped
// when the backend omitted the pseudo or stamped the synthetic sender.
func composeBody(m *store.Message) string {
	var prefix string
	if m.Pseudo != "" && m.Pseudo != store.SyntheticSender {
		prefix = m.Pseudo + ": "
	}
	if m.IsImage() || m.ImageURL != "" {
		return prefix + imageBody
	}
	body := prefix + truncate.Truncate(m.Content, bodyMaxLen, "", truncate.PositionEnd)
	if len(m.Content) > bodyMaxLen {
		body += "..."
	}
	return body
}
