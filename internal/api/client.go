// Package api is the client for the remote room/image HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gavago/roomchat/internal/imagex"
	"go.uber.org/zap"
)

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d", e.Status)
}

// Room is one entry of the remote room listing. Rooms are not persisted
// locally; the list is rebuilt on every fetch.
type Room struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Cosmetic room glyphs, assigned by stable index of the sorted listing.
var roomGlyphs = []string{"💬", "👥", "🔧", "📝", "🎯"}

// Client talks to the room/image HTTP API.
type Client struct {
	base   string
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates an API client for the given base URL.
func NewClient(base string, logger *zap.Logger) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// GetRooms fetches the room universe. The response is a JSON object whose
// key set under "data" is the room names; keys are sorted so glyph
// assignment is stable across fetches.
func (c *Client) GetRooms(ctx context.Context) ([]Room, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/rooms", nil)
	if err != nil {
		return nil, fmt.Errorf("build rooms request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rooms: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode}
	}

	var payload struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}

	names := make([]string, 0, len(payload.Data))
	for name := range payload.Data {
		names = append(names, name)
	}
	sort.Strings(names)

	rooms := make([]Room, len(names))
	for i, name := range names {
		rooms[i] = Room{
			Name:   name,
			Avatar: roomGlyphs[i%len(roomGlyphs)],
		}
	}
	return rooms, nil
}

// PostImage mirrors an outgoing image to the HTTP side-channel. The body is
// {id, image_data} where image_data is the base64 section of the data URL.
// Callers treat failure as best-effort: it never blocks the wire send.
func (c *Client) PostImage(ctx context.Context, connectionID, imageDataURL string) error {
	b64, err := imagex.ExtractBase64(imageDataURL)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{
		"id":         connectionID,
		"image_data": b64,
	})
	if err != nil {
		return fmt.Errorf("encode image upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/images/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// GetImage fetches a stored image by id. The API answers either JSON (passed
// through as-is) or raw image bytes, which are wrapped into a data URL using
// the response content type.
func (c *Client) GetImage(ctx context.Context, imageID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/images/"+imageID, nil)
	if err != nil {
		return "", fmt.Errorf("build image request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read image body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		return string(data), nil
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return imagex.Base64ToDataURL(base64.StdEncoding.EncodeToString(data), contentType), nil
}
