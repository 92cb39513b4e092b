// Package device composes chat messages from host device features (battery,
// geolocation) behind provider interfaces, and provides the bounded
// acquisition helper used wherever a resource takes time to become ready.
package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrTimeout is returned by a provider that could not produce a reading in
// its allotted time. Acquire returns it when the resource never became
// ready.
var ErrTimeout = errors.New("timed out")

// Geolocation timeouts follow the two-phase read: a fast standard-accuracy
// attempt, then one high-accuracy retry only when the first attempt timed
// out. Cached positions up to a minute old are acceptable on the first
// attempt.
const (
	standardFixTimeout     = 15 * time.Second
	highAccuracyFixTimeout = 20 * time.Second
	standardFixMaxAge      = time.Minute
)

// BatteryReading is a point-in-time battery state.
type BatteryReading struct {
	Level    int // percent
	Charging bool
}

// BatteryProvider reads the host battery.
type BatteryProvider interface {
	Battery(ctx context.Context) (BatteryReading, error)
}

// Position is a geolocation fix.
type Position struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64 // meters
}

// FixOptions tunes one geolocation attempt.
type FixOptions struct {
	HighAccuracy bool
	MaxAge       time.Duration
}

// LocationProvider reads the host position. Implementations honor the
// context deadline and return ErrTimeout when no fix arrives in time.
type LocationProvider interface {
	Position(ctx context.Context, opts FixOptions) (Position, error)
}

// Sender is the message-sending capability the composers need.
type Sender interface {
	SendText(content string) error
}

// Features exposes the device feature actions.
type Features struct {
	battery  BatteryProvider
	location LocationProvider
	sender   Sender
	logger   *zap.Logger
}

// NewFeatures wires the device features. A nil provider disables its action.
func NewFeatures(battery BatteryProvider, location LocationProvider, sender Sender, logger *zap.Logger) *Features {
	return &Features{battery: battery, location: location, sender: sender, logger: logger}
}

// ShareBattery reads the battery and sends its state to the selected room.
func (f *Features) ShareBattery(ctx context.Context) error {
	if f.battery == nil {
		return errors.New("battery not supported")
	}
	reading, err := f.battery.Battery(ctx)
	if err != nil {
		return fmt.Errorf("read battery: %w", err)
	}
	return f.sender.SendText(BatteryMessage(reading))
}

// ShareLocation obtains a fix and sends it to the selected room. A standard
// attempt that times out gets exactly one high-accuracy retry; any other
// failure is final.
func (f *Features) ShareLocation(ctx context.Context) error {
	if f.location == nil {
		return errors.New("geolocation not supported")
	}

	pos, err := f.fix(ctx, FixOptions{MaxAge: standardFixMaxAge}, standardFixTimeout)
	if errors.Is(err, ErrTimeout) {
		f.logger.Info("standard fix timed out, retrying with high accuracy")
		pos, err = f.fix(ctx, FixOptions{HighAccuracy: true}, highAccuracyFixTimeout)
	}
	if err != nil {
		return fmt.Errorf("obtain position: %w", err)
	}
	return f.sender.SendText(LocationMessage(pos))
}

func (f *Features) fix(ctx context.Context, opts FixOptions, timeout time.Duration) (Position, error) {
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return f.location.Position(fctx, opts)
}

// BatteryMessage formats a battery reading as chat content.
func BatteryMessage(r BatteryReading) string {
	msg := fmt.Sprintf("🔋 Batterie: %d%%", r.Level)
	if r.Charging {
		msg += " (en charge)"
	}
	return msg
}

// LocationMessage formats a fix as chat content with a maps link.
func LocationMessage(p Position) string {
	mapsURL := fmt.Sprintf("https://www.google.com/maps?q=%v,%v", p.Latitude, p.Longitude)
	return fmt.Sprintf("📍 Ma position: %.6f, %.6f (précision: %dm)\n%s",
		p.Latitude, p.Longitude, int(p.Accuracy+0.5), mapsURL)
}
