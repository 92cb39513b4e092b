package bus

import "time"

// Event represents a domain event published on the bus.
//
// Kinds are dot-namespaced. The ones in use:
//
//	wire.connected / wire.disconnected  — transport channel state
//	wire.message                        — inbound chat-msg frame (*store.Message)
//	net.online / net.offline            — device connectivity watcher
//	room.selected                       — active room changed (room name)
//	message.appended / message.confirmed / message.dropped — stream mutations
//	session.status_changed              — connectivity state machine
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
