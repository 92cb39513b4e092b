package stream

import (
	"time"

	"github.com/gavago/roomchat/internal/imagex"
	"github.com/gavago/roomchat/internal/store"
)

// base64ComparePrefixLen is how much of two base64 payloads is compared to
// decide that they are the same image. Comparing a short prefix instead of
// the full payload keeps matching O(1) per candidate; images sharing header
// bytes (same camera, resolution, quality) can collide. Tunable, not a
// contract.
const base64ComparePrefixLen = 100

// ownImageMatchWindow is the fallback window for matching an own image
// against its server echo when the content encodings differ.
const ownImageMatchWindow = 5000 * time.Millisecond

// findPendingMatch scans the stream for the pending entry that the incoming
// message confirms, trying the comparison strategies in priority order.
// Returns -1 when nothing matches.
func (s *Stream) findPendingMatch(m *store.Message, isImage, isOwn bool) int {
	for i := range s.msgs {
		cand := &s.msgs[i]
		if !cand.IsPending || cand.TempID == "" {
			continue
		}
		if cand.RoomName != m.RoomName {
			continue
		}

		// Image payloads may differ in encoding between the local capture
		// and the server echo; compare their normalized base64 prefixes.
		if isImage && cand.ImageURL != "" && m.ImageURL != "" &&
			imagePrefixEqual(cand.ImageURL, m.ImageURL) {
			return i
		}

		if cand.Content == m.Content {
			return i
		}

		// Last resort for own images: close-enough timestamps.
		if isImage && isOwn && withinWindow(cand, m, ownImageMatchWindow) {
			return i
		}
	}
	return -1
}

// hasDuplicate reports whether any displayed message, pending or not,
// shares the incoming message's dedup key.
func (s *Stream) hasDuplicate(m *store.Message) bool {
	key := m.DedupKey()
	for i := range s.msgs {
		if s.msgs[i].DedupKey() == key {
			return true
		}
	}
	return false
}

// hasSimilarImage guards against a re-delivered own image whose pending
// flag already cleared: any message in the room with an equal normalized
// base64 prefix counts.
func (s *Stream) hasSimilarImage(m *store.Message) bool {
	if m.ImageURL == "" {
		return false
	}
	for i := range s.msgs {
		cand := &s.msgs[i]
		if cand.RoomName != m.RoomName || cand.ImageURL == "" {
			continue
		}
		if imagePrefixEqual(cand.ImageURL, m.ImageURL) {
			return true
		}
	}
	return false
}

// imagePrefixEqual compares two image URLs by their base64 prefixes. A
// malformed payload abandons this comparison path (false), letting the
// caller degrade to the next strategy instead of raising.
func imagePrefixEqual(a, b string) bool {
	ab, err := comparableBase64(a)
	if err != nil {
		return false
	}
	bb, err := comparableBase64(b)
	if err != nil {
		return false
	}
	return base64Prefix(ab) == base64Prefix(bb)
}

func comparableBase64(imageURL string) (string, error) {
	if imagex.IsImageDataURL(imageURL) {
		return imagex.ExtractBase64(imageURL)
	}
	return imageURL, nil
}

func base64Prefix(b64 string) string {
	if len(b64) > base64ComparePrefixLen {
		return b64[:base64ComparePrefixLen]
	}
	return b64
}

func withinWindow(a, b *store.Message, window time.Duration) bool {
	at, bt := a.SentTime(), b.SentTime()
	if at.IsZero() || bt.IsZero() {
		return false
	}
	d := at.Sub(bt)
	if d < 0 {
		d = -d
	}
	return d < window
}
