// Package push manages push-notification subscriptions for the daemon's
// HTTP surface. Subscriptions live in an injected store rather than a
// process-global map, so handlers, tests and the daemon can each own their
// lifetime.
package push

import (
	"sort"
	"sync"
)

// Subscription is one push endpoint registered by a user. The keys mirror
// the Web Push subscription shape; the daemon treats them as opaque.
type Subscription struct {
	UserID   string `json:"userId"`
	Endpoint string `json:"endpoint"`
	P256DH   string `json:"p256dh,omitempty"`
	Auth     string `json:"auth,omitempty"`
}

// SubscriptionStore holds subscriptions keyed by user id.
type SubscriptionStore interface {
	Get(userID string) (Subscription, bool)
	Set(sub Subscription)
	Delete(userID string)
	List() []Subscription
}

// Sender delivers a payload to one subscription. Transport details (VAPID
// signing, the push service protocol) live behind this seam.
type Sender interface {
	Send(sub Subscription, payload []byte) error
}

// MemoryStore is the in-process SubscriptionStore.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[string]Subscription
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[string]Subscription)}
}

func (s *MemoryStore) Get(userID string) (Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[userID]
	return sub, ok
}

func (s *MemoryStore) Set(sub Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.UserID] = sub
}

func (s *MemoryStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, userID)
}

// List returns all subscriptions ordered by user id.
func (s *MemoryStore) List() []Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
