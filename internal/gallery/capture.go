// Package gallery runs the photo capture pipeline: a captured frame is
// validated, mirrored to the HTTP side-channel, saved to the local gallery
// and sent into the selected room through the reconciliation engine.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gavago/roomchat/internal/device"
	"github.com/gavago/roomchat/internal/imagex"
	"github.com/gavago/roomchat/internal/store"
	"go.uber.org/zap"
)

// transportWait bounds how long a capture waits for the wire channel before
// proceeding without the HTTP mirror.
const transportWait = 5 * time.Second

// ErrNotAnImage is returned when the captured payload is not an image data
// URL.
var ErrNotAnImage = errors.New("captured payload is not an image data URL")

// Uploader mirrors captured images to the HTTP side-channel.
type Uploader interface {
	PostImage(ctx context.Context, connectionID, imageDataURL string) error
}

// Engine is the send path into the selected room.
type Engine interface {
	Room() string
	SendImage(content string) error
}

// Readiness reports wire channel state for the pre-upload wait.
type Readiness interface {
	Connected() bool
	ConnectionID() string
}

// Capturer handles captured photos.
type Capturer struct {
	pseudo    string
	photos    *store.PhotoStore
	uploader  Uploader
	engine    Engine
	transport Readiness
	logger    *zap.Logger
}

// NewCapturer wires the capture pipeline.
func NewCapturer(pseudo string, photos *store.PhotoStore, uploader Uploader, engine Engine, transport Readiness, logger *zap.Logger) *Capturer {
	return &Capturer{
		pseudo:    pseudo,
		photos:    photos,
		uploader:  uploader,
		engine:    engine,
		transport: transport,
		logger:    logger,
	}
}

// HandleCapture processes one captured frame. Validation failures abort
// before anything is sent or stored; mirror and gallery failures are logged
// and do not stop the chat send.
func (c *Capturer) HandleCapture(ctx context.Context, dataURL string) error {
	if !imagex.IsImageDataURL(dataURL) {
		return ErrNotAnImage
	}
	if _, err := imagex.ExtractBase64(dataURL); err != nil {
		return fmt.Errorf("captured payload: %w", err)
	}

	room := c.engine.Room()
	if room == "" {
		return errors.New("no room selected for capture")
	}

	// Best-effort mirror: wait briefly for the channel so the upload can
	// carry the connection id; a channel that stays down skips the mirror.
	connID, err := device.Acquire(ctx, transportWait, func() (string, bool) {
		if c.transport.Connected() {
			return c.transport.ConnectionID(), true
		}
		return "", false
	})
	if err != nil {
		c.logger.Warn("channel not ready, skipping image mirror", zap.Error(err))
	} else if err := c.uploader.PostImage(ctx, connID, dataURL); err != nil {
		c.logger.Warn("image mirror failed", zap.Error(err))
	}

	if err := c.photos.Save(store.PhotoRecord{
		ImageURL: dataURL,
		DateEmis: time.Now().UTC().Format(time.RFC3339),
		RoomName: room,
		Pseudo:   c.pseudo,
	}); err != nil {
		c.logger.Error("failed to save photo to gallery", zap.Error(err))
	}

	return c.engine.SendImage(dataURL)
}
