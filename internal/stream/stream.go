// Package stream owns the in-memory view of the active room and the
// reconciliation engine that keeps it consistent with the wire channel.
//
// The channel delivers at-most-once and assigns no client-visible message
// ids, so agreement between the local optimistic view and the server's
// echoes is built from content fingerprints and bounded heuristics instead.
package stream

import "github.com/gavago/roomchat/internal/store"

// Stream is the ordered message sequence for the currently selected room.
// All access goes through the Engine, which serializes mutation.
type Stream struct {
	msgs []store.Message
}

// NewStream creates an empty stream.
func NewStream() *Stream {
	return &Stream{}
}

// Len returns the number of messages in view.
func (s *Stream) Len() int {
	return len(s.msgs)
}

// Snapshot returns a copy of the current sequence for rendering.
func (s *Stream) Snapshot() []store.Message {
	out := make([]store.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *Stream) append(m store.Message) {
	s.msgs = append(s.msgs, m)
}

func (s *Stream) clear() {
	s.msgs = nil
}

// hasTempID reports whether any message in view carries the given temp id.
func (s *Stream) hasTempID(tempID string) bool {
	for i := range s.msgs {
		if s.msgs[i].TempID == tempID {
			return true
		}
	}
	return false
}
