package store

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// SettingsStore holds the per-room notification toggles. A room absent from
// the map has notifications disabled.
type SettingsStore struct {
	db     *DB
	logger *zap.Logger
}

// NewSettingsStore creates a settings store over the app database.
func NewSettingsStore(db *DB, logger *zap.Logger) *SettingsStore {
	return &SettingsStore{db: db, logger: logger}
}

// Enabled reports whether notifications are on for a room.
func (s *SettingsStore) Enabled(roomName string) bool {
	return s.load()[roomName]
}

// Toggle flips a room's notification state and returns the new value.
func (s *SettingsStore) Toggle(roomName string) (bool, error) {
	settings := s.load()
	settings[roomName] = !settings[roomName]
	if err := s.save(settings); err != nil {
		return false, err
	}
	return settings[roomName], nil
}

// SetEnabled sets a room's notification state explicitly.
func (s *SettingsStore) SetEnabled(roomName string, enabled bool) error {
	settings := s.load()
	settings[roomName] = enabled
	return s.save(settings)
}

// All returns the full settings map.
func (s *SettingsStore) All() NotificationSettings {
	return s.load()
}

func (s *SettingsStore) load() NotificationSettings {
	settings := NotificationSettings{}
	raw, ok, err := s.db.GetBlob(KeyNotificationSettings)
	if err != nil {
		s.logger.Error("failed to read notification settings", zap.Error(err))
		return settings
	}
	if !ok {
		return settings
	}
	if err := json.Unmarshal([]byte(raw), &settings); err != nil || settings == nil {
		if err != nil {
			s.logger.Error("corrupt notification settings blob, starting empty", zap.Error(err))
		}
		return NotificationSettings{}
	}
	return settings
}

func (s *SettingsStore) save(settings NotificationSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode notification settings: %w", err)
	}
	return s.db.PutBlob(KeyNotificationSettings, string(raw))
}
