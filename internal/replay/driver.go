// Package replay flushes the durable pending queue back onto the wire once
// connectivity returns.
package replay

import (
	"sync"
	"time"

	"github.com/gavago/roomchat/internal/bus"
	"github.com/gavago/roomchat/internal/store"
	"github.com/gavago/roomchat/internal/stream"
	"go.uber.org/zap"
)

// DefaultGrace is how long the driver waits after a trigger before flushing,
// giving the channel time to settle and the room join to land server-side.
const DefaultGrace = 500 * time.Millisecond

// Driver watches the bus for connectivity and room changes and replays
// pending entries of the selected room. A flush only runs when the channel
// is up, the host is online and a room is selected; triggers arriving while
// a flush is in progress are absorbed by the single-flight guard.
type Driver struct {
	engine    *stream.Engine
	pending   *store.PendingStore
	transport stream.Transport
	online    stream.OnlineChecker
	bus       *bus.Bus
	logger    *zap.Logger
	grace     time.Duration

	mu       sync.Mutex
	inflight bool

	unsub func()
	done  chan struct{}
}

// NewDriver wires a replay driver.
func NewDriver(e *stream.Engine, p *store.PendingStore, t stream.Transport, online stream.OnlineChecker, b *bus.Bus, logger *zap.Logger) *Driver {
	return &Driver{
		engine:    e,
		pending:   p,
		transport: t,
		online:    online,
		bus:       b,
		logger:    logger,
		grace:     DefaultGrace,
	}
}

// Start subscribes to bus triggers until Stop.
func (d *Driver) Start() {
	ch, unsub := d.bus.Subscribe("", 64)
	d.unsub = unsub
	d.done = make(chan struct{})
	go d.loop(ch)
}

// Stop detaches the driver from the bus and cancels a pending grace wait.
func (d *Driver) Stop() {
	if d.unsub != nil {
		d.unsub()
	}
	if d.done != nil {
		close(d.done)
	}
}

func (d *Driver) loop(ch <-chan bus.Event) {
	for {
		select {
		case evt := <-ch:
			switch evt.Kind {
			case "wire.connected", "net.online", "room.selected":
				go d.flush()
			}
		case <-d.done:
			return
		}
	}
}

// flush replays the selected room's pending entries, tolerating per-entry
// failures. Every successfully emitted entry is marked sent; an image echo
// that arrives anyway is absorbed by the engine's redundancy checks.
func (d *Driver) flush() {
	d.mu.Lock()
	if d.inflight {
		d.mu.Unlock()
		return
	}
	d.inflight = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.inflight = false
		d.mu.Unlock()
	}()

	if d.grace > 0 {
		select {
		case <-time.After(d.grace):
		case <-d.done:
			return
		}
	}

	room := d.engine.Room()
	if room == "" || !d.transport.Connected() || !d.online.Online() {
		return
	}
	// The channel may have reconnected into no room, or into a stale one.
	if d.transport.CurrentRoom() != room {
		if err := d.transport.JoinRoom(room); err != nil {
			d.logger.Warn("rejoin before replay failed", zap.String("room", room), zap.Error(err))
			return
		}
	}

	entries := d.pending.ListRoom(room)
	if len(entries) == 0 {
		return
	}
	d.logger.Info("replaying pending messages", zap.String("room", room), zap.Int("count", len(entries)))

	for _, entry := range entries {
		var err error
		if entry.IsImage() || entry.ImageURL != "" {
			err = d.transport.SendImage(entry.Content, d.transport.ConnectionID(), room)
		} else {
			err = d.transport.SendText(entry.Content, room)
		}
		if err != nil {
			d.logger.Warn("replay failed, entry kept", zap.String("tempId", entry.TempID), zap.Error(err))
			continue
		}
		d.engine.MarkSent(entry.TempID)
	}
}
