package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DurableTempIDPrefix marks temp ids whose entries live in the durable
// queue. The matching engine only removes entries carrying this prefix;
// ephemeral optimistic ids are never persisted and have nothing to remove.
const DurableTempIDPrefix = "pending-"

// PendingStore is the durable queue of messages not yet confirmed by the
// server. Entries are created for sends attempted while offline and
// speculatively for every locally-originated image send, so the server echo
// can be matched even when online.
//
// Single-writer-at-a-time is assumed: all mutation happens synchronously
// inside one event handler invocation, so no locking is done here.
type PendingStore struct {
	db     *DB
	logger *zap.Logger
}

// NewPendingStore creates a pending store over the app database.
func NewPendingStore(db *DB, logger *zap.Logger) *PendingStore {
	return &PendingStore{db: db, logger: logger}
}

// Add assigns a fresh unique temp id, marks the message pending, appends it
// to the durable list and persists. The created entry is returned even when
// persistence fails (the caller keeps rendering it; losing the save must not
// lose the message).
func (p *PendingStore) Add(m Message) (Message, error) {
	m.TempID = NewTempID()
	m.IsPending = true

	entries := p.load()
	entries = append(entries, m)
	if err := p.save(entries); err != nil {
		return m, err
	}
	return m, nil
}

// Remove deletes the entry with the given temp id and persists.
func (p *PendingStore) Remove(tempID string) error {
	entries := p.load()
	kept := entries[:0]
	for _, e := range entries {
		if e.TempID != tempID {
			kept = append(kept, e)
		}
	}
	return p.save(kept)
}

// MarkSent flips the entry's pending flag in place and persists. Used for
// entries flushed by the replay driver, which are not further reconciled
// against a server echo.
func (p *PendingStore) MarkSent(tempID string) error {
	entries := p.load()
	for i := range entries {
		if entries[i].TempID == tempID {
			entries[i].IsPending = false
		}
	}
	return p.save(entries)
}

// ListAll returns the durable list. Fails open: a missing or corrupt blob
// yields an empty list, logged but never raised.
func (p *PendingStore) ListAll() []Message {
	return p.load()
}

// ListRoom returns the still-pending entries belonging to the given room.
func (p *PendingStore) ListRoom(roomName string) []Message {
	var out []Message
	for _, e := range p.load() {
		if e.RoomName == roomName && e.IsPending {
			out = append(out, e)
		}
	}
	return out
}

func (p *PendingStore) load() []Message {
	raw, ok, err := p.db.GetBlob(KeyPendingMessages)
	if err != nil {
		p.logger.Error("failed to read pending messages", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var entries []Message
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		p.logger.Error("corrupt pending messages blob, starting empty", zap.Error(err))
		return nil
	}
	return entries
}

func (p *PendingStore) save(entries []Message) error {
	if entries == nil {
		entries = []Message{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode pending messages: %w", err)
	}
	return p.db.PutBlob(KeyPendingMessages, string(raw))
}

// NewTempID builds a durable temp id from the current time and a random
// component. Collision probability is treated as negligible, not eliminated.
func NewTempID() string {
	return fmt.Sprintf("%s%d-%s", DurableTempIDPrefix, time.Now().UnixMilli(), uuid.NewString())
}
