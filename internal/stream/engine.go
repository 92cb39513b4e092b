package stream

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gavago/roomchat/internal/bus"
	"github.com/gavago/roomchat/internal/imagex"
	"github.com/gavago/roomchat/internal/store"
	"go.uber.org/zap"
)

// ErrNoRoomSelected is returned for sends attempted before a room is chosen.
var ErrNoRoomSelected = errors.New("no room selected")

// Transport is the outbound surface the engine needs from the wire channel.
type Transport interface {
	Connected() bool
	ConnectionID() string
	CurrentRoom() string
	JoinRoom(roomName string) error
	SendText(content, roomName string) error
	SendImage(content, senderID, roomName string) error
}

// Notifier receives messages for rooms other than the selected one.
// Enablement and permission gating happen behind this interface.
type Notifier interface {
	Deliver(m *store.Message)
}

// OnlineChecker reports host connectivity as last observed.
type OnlineChecker interface {
	Online() bool
}

// Engine reconciles inbound wire messages against the local optimistic view
// and owns all sends. Every mutation of the stream goes through its mutex,
// so handlers see a consistent view even though the transport, the replay
// driver and user actions all feed it concurrently.
type Engine struct {
	pseudo    string
	stream    *Stream
	pending   *store.PendingStore
	bus       *bus.Bus
	transport Transport
	notifier  Notifier
	online    OnlineChecker
	logger    *zap.Logger

	mu           sync.Mutex
	selectedRoom string

	unsub func()
	done  chan struct{}
}

// NewEngine wires the engine. Notifier may be nil when notifications are
// disabled for the session.
func NewEngine(pseudo string, pending *store.PendingStore, b *bus.Bus, t Transport, n Notifier, online OnlineChecker, logger *zap.Logger) *Engine {
	return &Engine{
		pseudo:    pseudo,
		stream:    NewStream(),
		pending:   pending,
		bus:       b,
		transport: t,
		notifier:  n,
		online:    online,
		logger:    logger,
	}
}

// Start subscribes to inbound wire messages and reconciles them until Stop.
func (e *Engine) Start() {
	ch, unsub := e.bus.Subscribe("wire.message", 64)
	e.unsub = unsub
	e.done = make(chan struct{})
	go e.loop(ch)
}

// Stop detaches the engine from the bus.
func (e *Engine) Stop() {
	if e.unsub != nil {
		e.unsub()
	}
	if e.done != nil {
		close(e.done)
	}
}

func (e *Engine) loop(ch <-chan bus.Event) {
	for {
		select {
		case evt := <-ch:
			if m, ok := evt.Payload.(*store.Message); ok {
				e.Reconcile(m)
			}
		case <-e.done:
			return
		}
	}
}

// Room returns the currently selected room, empty before the first selection.
func (e *Engine) Room() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedRoom
}

// Messages returns a copy of the active room's message sequence.
func (e *Engine) Messages() []store.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stream.Snapshot()
}

// SelectRoom switches the active room: the view is rebuilt from the durable
// queue, the channel is told to join, and room.selected is announced.
func (e *Engine) SelectRoom(roomName string) error {
	e.mu.Lock()
	e.selectedRoom = roomName
	e.stream.clear()
	for _, pm := range e.pending.ListRoom(roomName) {
		if !e.stream.hasTempID(pm.TempID) {
			e.stream.append(pm)
		}
	}
	e.mu.Unlock()

	if e.transport.Connected() {
		if err := e.transport.JoinRoom(roomName); err != nil {
			e.logger.Warn("join room failed", zap.String("room", roomName), zap.Error(err))
		}
	}

	e.bus.Publish(bus.Event{Kind: "room.selected", Timestamp: time.Now(), Payload: roomName})
	return nil
}

// SendText sends a text message to the selected room. When the channel is
// down or the host is offline the message is queued durably and shown
// pending instead. A queue that cannot persist still renders the message.
func (e *Engine) SendText(content string) error {
	e.mu.Lock()
	room := e.selectedRoom
	e.mu.Unlock()
	if room == "" {
		return ErrNoRoomSelected
	}

	if e.transport.Connected() && e.online.Online() {
		return e.transport.SendText(content, room)
	}

	queued, err := e.pending.Add(store.Message{
		Content:   content,
		Categorie: store.CategoryText,
		DateEmis:  time.Now().UTC().Format(time.RFC3339),
		RoomName:  room,
		Pseudo:    e.pseudo,
	})
	if err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			e.logger.Warn("pending queue full, message shown but not durable", zap.Error(err))
		} else {
			e.logger.Error("failed to persist pending message", zap.Error(err))
		}
	}

	e.mu.Lock()
	e.stream.append(queued)
	e.mu.Unlock()
	e.bus.Publish(bus.Event{Kind: "message.appended", Timestamp: time.Now(), Payload: &queued})
	return nil
}

// SendImage sends an image (data URL or raw base64) to the selected room.
// The entry is always queued durably before dispatch, even when online: the
// server echo is matched against it rather than trusted to arrive.
func (e *Engine) SendImage(content string) error {
	e.mu.Lock()
	room := e.selectedRoom
	e.mu.Unlock()
	if room == "" {
		return ErrNoRoomSelected
	}

	queued, err := e.pending.Add(store.Message{
		Content:   content,
		Categorie: store.CategoryImage,
		DateEmis:  time.Now().UTC().Format(time.RFC3339),
		RoomName:  room,
		Pseudo:    e.pseudo,
		UserID:    e.transport.ConnectionID(),
		ImageURL:  imagex.NormalizeImageContent(content),
	})
	if err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			e.logger.Warn("pending queue full, image shown but not durable", zap.Error(err))
		} else {
			e.logger.Error("failed to persist pending image", zap.Error(err))
		}
	}

	e.mu.Lock()
	e.stream.append(queued)
	e.mu.Unlock()
	e.bus.Publish(bus.Event{Kind: "message.appended", Timestamp: time.Now(), Payload: &queued})

	if e.transport.Connected() && e.online.Online() {
		if err := e.transport.SendImage(content, e.transport.ConnectionID(), room); err != nil {
			// Entry stays queued; the replay driver retries it.
			e.logger.Warn("image dispatch failed, left in queue", zap.Error(err))
		}
	}
	return nil
}

// MarkSent flips a queued entry out of the pending state, both in the view
// and durably. The replay driver calls it for every flushed entry; a later
// echo is caught by the redundancy checks, not by pending matching.
func (e *Engine) MarkSent(tempID string) {
	e.mu.Lock()
	for i := range e.stream.msgs {
		if e.stream.msgs[i].TempID == tempID {
			e.stream.msgs[i].IsPending = false
		}
	}
	e.mu.Unlock()

	if strings.HasPrefix(tempID, store.DurableTempIDPrefix) {
		if err := e.pending.MarkSent(tempID); err != nil {
			e.logger.Error("failed to mark pending entry sent", zap.String("tempId", tempID), zap.Error(err))
		}
	}
}

// Reconcile folds one inbound wire message into the view. Exactly one of
// four outcomes happens: a pending entry is confirmed in place, the message
// is dropped as redundant, it is appended, or (for a non-selected room) the
// view is untouched and the notifier is offered the message.
func (e *Engine) Reconcile(m *store.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.classify(m)

	if m.RoomName != e.selectedRoom {
		e.maybeNotify(m)
		return
	}

	isImage := m.IsImage()
	isOwn := m.Pseudo == e.pseudo ||
		(m.UserID != "" && m.UserID == e.transport.ConnectionID())

	if idx := e.stream.findPendingMatch(m, isImage, isOwn); idx >= 0 {
		tempID := e.stream.msgs[idx].TempID
		confirmed := *m
		confirmed.TempID = tempID
		confirmed.IsPending = false
		if confirmed.ImageURL == "" {
			confirmed.ImageURL = e.stream.msgs[idx].ImageURL
		}
		e.stream.msgs[idx] = confirmed

		if strings.HasPrefix(tempID, store.DurableTempIDPrefix) {
			if err := e.pending.Remove(tempID); err != nil {
				e.logger.Error("failed to remove confirmed pending entry", zap.String("tempId", tempID), zap.Error(err))
			}
		}

		e.bus.Publish(bus.Event{Kind: "message.confirmed", Timestamp: time.Now(), Payload: &confirmed})
		return
	}

	if e.stream.hasDuplicate(m) {
		e.bus.Publish(bus.Event{Kind: "message.dropped", Timestamp: time.Now(), Payload: m})
		return
	}

	// An own image can be re-delivered after its pending entry already
	// confirmed; the dedup key misses it when the server re-stamped the
	// timestamp, so fall back to content similarity.
	if isImage && isOwn && e.stream.hasSimilarImage(m) {
		e.bus.Publish(bus.Event{Kind: "message.dropped", Timestamp: time.Now(), Payload: m})
		return
	}

	e.stream.append(*m)
	e.bus.Publish(bus.Event{Kind: "message.appended", Timestamp: time.Now(), Payload: m})
}

// classify derives the display form for image content. The backend sends
// images both with the image category and as bare base64 under the text
// category, so content-sniffing backs up the declared category.
func (e *Engine) classify(m *store.Message) {
	if !m.IsImage() && !imagex.IsImageContent(m.Content) {
		return
	}
	if m.ImageURL == "" {
		m.ImageURL = imagex.NormalizeImageContent(m.Content)
	}
	if m.Categorie == "" || m.Categorie == store.CategoryText {
		m.Categorie = store.CategoryImage
	}
}

func (e *Engine) maybeNotify(m *store.Message) {
	if e.notifier == nil {
		return
	}
	sender := m.Sender()
	if sender == "" || sender == e.pseudo || sender == store.SyntheticSender {
		return
	}
	e.notifier.Deliver(m)
}
