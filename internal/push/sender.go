package push

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPSender posts payloads straight to the subscription endpoint. Payload
// encryption and VAPID signing are the caller's concern; this sender only
// moves bytes.
type HTTPSender struct {
	http *http.Client
}

// NewHTTPSender creates a sender with a bounded request timeout.
func NewHTTPSender() *HTTPSender {
	return &HTTPSender{http: &http.Client{Timeout: 10 * time.Second}}
}

func (s *HTTPSender) Send(sub Subscription, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("TTL", "60")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("push to %s: %w", sub.Endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push to %s: status %d", sub.Endpoint, resp.StatusCode)
	}
	return nil
}
