package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Storage keys, one JSON blob each.
const (
	KeyPendingMessages      = "pendingMessages"
	KeyGalleryPhotos        = "galleryPhotos"
	KeyNotificationSettings = "notificationSettings"
)

// ErrQuotaExceeded is returned when the underlying storage is out of space.
// The save is aborted but in-memory state is expected to stand: the caller
// keeps the message rendered and surfaces a recoverable error.
var ErrQuotaExceeded = errors.New("local storage quota exceeded")

// GetBlob returns the JSON blob stored under key. The second return is false
// when the key is absent.
func (db *DB) GetBlob(key string) (string, bool, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get blob %q: %w", key, err)
	}
	return value, true, nil
}

// PutBlob stores a JSON blob under key, replacing any previous value.
func (db *DB) PutBlob(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && (serr.Code == sqlite3.ErrFull || serr.Code == sqlite3.ErrIoErr) {
			return fmt.Errorf("put blob %q: %w", key, ErrQuotaExceeded)
		}
		return fmt.Errorf("put blob %q: %w", key, err)
	}
	return nil
}

// DeleteBlob removes a key. Deleting an absent key is not an error.
func (db *DB) DeleteBlob(key string) error {
	_, err := db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete blob %q: %w", key, err)
	}
	return nil
}
