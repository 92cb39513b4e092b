package daemon

import (
	"github.com/gavago/roomchat/internal/bus"
	"github.com/gavago/roomchat/internal/status"
	"go.uber.org/zap"
)

// tracker folds bus events into the connectivity state machine so /status
// reflects the session lifecycle.
type tracker struct {
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger

	unsub func()
	done  chan struct{}
}

func newTracker(m *status.Machine, b *bus.Bus, logger *zap.Logger) *tracker {
	return &tracker{machine: m, bus: b, logger: logger}
}

func (t *tracker) Start() {
	ch, unsub := t.bus.Subscribe("", 64)
	t.unsub = unsub
	t.done = make(chan struct{})
	go t.loop(ch)
}

func (t *tracker) Stop() {
	if t.unsub != nil {
		t.unsub()
	}
	if t.done != nil {
		close(t.done)
	}
}

func (t *tracker) loop(ch <-chan bus.Event) {
	for {
		select {
		case evt := <-ch:
			t.apply(evt.Kind)
		case <-t.done:
			return
		}
	}
}

func (t *tracker) apply(kind string) {
	var to status.State
	switch kind {
	case "wire.connected":
		to = status.Connected
	case "wire.disconnected":
		to = status.Reconnecting
	case "room.selected":
		to = status.Joined
	case "net.offline":
		to = status.Offline
	case "net.online":
		to = status.Connecting
	default:
		return
	}
	// Some transitions are invalid for the current state (a room selected
	// while disconnected, say); those are skipped, not errors.
	if err := t.machine.Transition(to); err != nil {
		t.logger.Debug("status transition skipped", zap.String("event", kind), zap.Error(err))
	}
}
