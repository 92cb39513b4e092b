package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PhotoStore owns the local photo gallery: a flat ordered list, newest
// first. No cross-device sync.
type PhotoStore struct {
	db     *DB
	logger *zap.Logger
}

// NewPhotoStore creates a photo store over the app database.
func NewPhotoStore(db *DB, logger *zap.Logger) *PhotoStore {
	return &PhotoStore{db: db, logger: logger}
}

// Save appends a photo record, assigning an id when absent.
func (p *PhotoStore) Save(photo PhotoRecord) error {
	if photo.ID == "" {
		photo.ID = uuid.NewString()
	}
	photos := p.loadRaw()
	photos = append(photos, photo)
	return p.save(photos)
}

// Load returns the gallery sorted newest-first. Records whose ImageURL is
// not an image data URL are treated as corrupt and filtered out. Fails open
// to an empty gallery on read or parse failure.
func (p *PhotoStore) Load() []PhotoRecord {
	var valid []PhotoRecord
	for _, photo := range p.loadRaw() {
		if strings.HasPrefix(photo.ImageURL, "data:image") {
			valid = append(valid, photo)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		a := (&Message{DateEmis: valid[i].DateEmis}).SentTime()
		b := (&Message{DateEmis: valid[j].DateEmis}).SentTime()
		return a.After(b)
	})
	return valid
}

// Delete removes a photo by id and returns the remaining gallery.
func (p *PhotoStore) Delete(id string) ([]PhotoRecord, error) {
	photos := p.Load()
	kept := photos[:0]
	for _, photo := range photos {
		if photo.ID != id {
			kept = append(kept, photo)
		}
	}
	if err := p.save(kept); err != nil {
		return nil, err
	}
	return kept, nil
}

func (p *PhotoStore) loadRaw() []PhotoRecord {
	raw, ok, err := p.db.GetBlob(KeyGalleryPhotos)
	if err != nil {
		p.logger.Error("failed to read gallery", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var photos []PhotoRecord
	if err := json.Unmarshal([]byte(raw), &photos); err != nil {
		p.logger.Error("corrupt gallery blob, starting empty", zap.Error(err))
		return nil
	}
	return photos
}

func (p *PhotoStore) save(photos []PhotoRecord) error {
	if photos == nil {
		photos = []PhotoRecord{}
	}
	raw, err := json.Marshal(photos)
	if err != nil {
		return fmt.Errorf("encode gallery: %w", err)
	}
	return p.db.PutBlob(KeyGalleryPhotos, string(raw))
}
