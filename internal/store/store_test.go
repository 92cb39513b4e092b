package store

import (
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate once; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestBlobPutGetDelete(t *testing.T) {
	db := testDB(t)

	if _, ok, err := db.GetBlob("missing"); err != nil || ok {
		t.Fatalf("GetBlob(missing) = ok=%v err=%v, want absent", ok, err)
	}

	if err := db.PutBlob("k", `{"a":1}`); err != nil {
		t.Fatal(err)
	}
	// Replace in place.
	if err := db.PutBlob("k", `{"a":2}`); err != nil {
		t.Fatal(err)
	}
	v, ok, err := db.GetBlob("k")
	if err != nil || !ok {
		t.Fatalf("GetBlob(k) = ok=%v err=%v", ok, err)
	}
	if v != `{"a":2}` {
		t.Errorf("value = %q, want replaced blob", v)
	}

	if err := db.DeleteBlob("k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := db.GetBlob("k"); ok {
		t.Error("blob still present after delete")
	}
}

func TestPendingAddListRemove(t *testing.T) {
	db := testDB(t)
	p := NewPendingStore(db, zap.NewNop())

	entry, err := p.Add(Message{
		Content:   "hi",
		Categorie: CategoryText,
		DateEmis:  "2026-01-02T10:00:00Z",
		RoomName:  "general",
		Pseudo:    "alice",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !entry.IsPending {
		t.Error("added entry must be pending")
	}
	if !strings.HasPrefix(entry.TempID, DurableTempIDPrefix) {
		t.Errorf("temp id = %q, want %q prefix", entry.TempID, DurableTempIDPrefix)
	}

	all := p.ListAll()
	if len(all) != 1 || all[0].TempID != entry.TempID {
		t.Fatalf("ListAll = %+v, want the added entry", all)
	}

	if err := p.Remove(entry.TempID); err != nil {
		t.Fatal(err)
	}
	if len(p.ListAll()) != 0 {
		t.Error("entry still listed after remove")
	}
}

func TestPendingTempIDsUnique(t *testing.T) {
	db := testDB(t)
	p := NewPendingStore(db, zap.NewNop())

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		entry, err := p.Add(Message{Content: "x", RoomName: "r", DateEmis: "2026-01-02T10:00:00Z"})
		if err != nil {
			t.Fatal(err)
		}
		if seen[entry.TempID] {
			t.Fatalf("duplicate temp id %q", entry.TempID)
		}
		seen[entry.TempID] = true
	}
}

func TestPendingMarkSent(t *testing.T) {
	db := testDB(t)
	p := NewPendingStore(db, zap.NewNop())

	entry, err := p.Add(Message{Content: "offline text", RoomName: "general"})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.MarkSent(entry.TempID); err != nil {
		t.Fatal(err)
	}

	all := p.ListAll()
	if len(all) != 1 {
		t.Fatalf("got %d entries, want 1 (MarkSent keeps the entry)", len(all))
	}
	if all[0].IsPending {
		t.Error("entry still pending after MarkSent")
	}
	// A sent entry no longer shows up as room-pending.
	if got := p.ListRoom("general"); len(got) != 0 {
		t.Errorf("ListRoom = %d entries, want 0", len(got))
	}
}

func TestPendingListRoomFilters(t *testing.T) {
	db := testDB(t)
	p := NewPendingStore(db, zap.NewNop())

	if _, err := p.Add(Message{Content: "a", RoomName: "general"}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Add(Message{Content: "b", RoomName: "random"}); err != nil {
		t.Fatal(err)
	}

	got := p.ListRoom("general")
	if len(got) != 1 || got[0].Content != "a" {
		t.Errorf("ListRoom(general) = %+v, want only message a", got)
	}
}

// TestPendingFailsOpenOnCorruptBlob verifies the fail-open read contract:
// a blob that no longer parses yields an empty queue instead of an error.
func TestPendingFailsOpenOnCorruptBlob(t *testing.T) {
	db := testDB(t)
	p := NewPendingStore(db, zap.NewNop())

	if err := db.PutBlob(KeyPendingMessages, `{definitely not json`); err != nil {
		t.Fatal(err)
	}
	if got := p.ListAll(); len(got) != 0 {
		t.Errorf("ListAll on corrupt blob = %d entries, want 0", len(got))
	}

	// The store must recover: adds after corruption work normally.
	if _, err := p.Add(Message{Content: "recovered", RoomName: "r"}); err != nil {
		t.Fatal(err)
	}
	if got := p.ListAll(); len(got) != 1 {
		t.Errorf("got %d entries after recovery add, want 1", len(got))
	}
}

func TestGalleryFiltersCorruptRecords(t *testing.T) {
	db := testDB(t)
	g := NewPhotoStore(db, zap.NewNop())

	if err := g.Save(PhotoRecord{ID: "ok", ImageURL: "data:image/jpeg;base64,AAAA", DateEmis: "2026-01-02T10:00:00Z"}); err != nil {
		t.Fatal(err)
	}
	// A record whose ImageURL is not a data URL is corrupt and filtered.
	if err := g.Save(PhotoRecord{ID: "bad", ImageURL: "https://example.com/a.jpg", DateEmis: "2026-01-02T11:00:00Z"}); err != nil {
		t.Fatal(err)
	}

	photos := g.Load()
	if len(photos) != 1 || photos[0].ID != "ok" {
		t.Errorf("Load = %+v, want only the data-URL record", photos)
	}
}

func TestGallerySortsNewestFirst(t *testing.T) {
	db := testDB(t)
	g := NewPhotoStore(db, zap.NewNop())

	for _, p := range []PhotoRecord{
		{ID: "old", ImageURL: "data:image/jpeg;base64,A", DateEmis: "2026-01-01T10:00:00Z"},
		{ID: "new", ImageURL: "data:image/jpeg;base64,B", DateEmis: "2026-01-03T10:00:00Z"},
		{ID: "mid", ImageURL: "data:image/jpeg;base64,C", DateEmis: "2026-01-02T10:00:00Z"},
	} {
		if err := g.Save(p); err != nil {
			t.Fatal(err)
		}
	}

	photos := g.Load()
	if len(photos) != 3 {
		t.Fatalf("got %d photos, want 3", len(photos))
	}
	want := []string{"new", "mid", "old"}
	for i, id := range want {
		if photos[i].ID != id {
			t.Errorf("photos[%d] = %q, want %q", i, photos[i].ID, id)
		}
	}
}

func TestGalleryDeleteByID(t *testing.T) {
	db := testDB(t)
	g := NewPhotoStore(db, zap.NewNop())

	if err := g.Save(PhotoRecord{ID: "p1", ImageURL: "data:image/jpeg;base64,A", DateEmis: "2026-01-01T10:00:00Z"}); err != nil {
		t.Fatal(err)
	}
	if err := g.Save(PhotoRecord{ID: "p2", ImageURL: "data:image/jpeg;base64,B", DateEmis: "2026-01-02T10:00:00Z"}); err != nil {
		t.Fatal(err)
	}

	remaining, err := g.Delete("p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].ID != "p2" {
		t.Errorf("remaining = %+v, want only p2", remaining)
	}
}

func TestSettingsDefaultDisabled(t *testing.T) {
	db := testDB(t)
	s := NewSettingsStore(db, zap.NewNop())

	if s.Enabled("general") {
		t.Error("room with no setting must default to disabled")
	}
}

func TestSettingsToggle(t *testing.T) {
	db := testDB(t)
	s := NewSettingsStore(db, zap.NewNop())

	on, err := s.Toggle("general")
	if err != nil {
		t.Fatal(err)
	}
	if !on || !s.Enabled("general") {
		t.Error("first toggle should enable")
	}

	off, err := s.Toggle("general")
	if err != nil {
		t.Fatal(err)
	}
	if off || s.Enabled("general") {
		t.Error("second toggle should disable")
	}
}

func TestSettingsFailOpenOnCorruptBlob(t *testing.T) {
	db := testDB(t)
	s := NewSettingsStore(db, zap.NewNop())

	if err := db.PutBlob(KeyNotificationSettings, `[1,2,3`); err != nil {
		t.Fatal(err)
	}
	if s.Enabled("general") {
		t.Error("corrupt settings must read as all-disabled")
	}
	if err := s.SetEnabled("general", true); err != nil {
		t.Fatal(err)
	}
	if !s.Enabled("general") {
		t.Error("settings must recover after corruption")
	}
}

func TestMessageDedupKey(t *testing.T) {
	m := &Message{
		Content:  strings.Repeat("x", 80),
		DateEmis: "2026-01-02T10:00:00Z",
		Pseudo:   "alice",
	}
	key := m.DedupKey()
	want := "2026-01-02T10:00:00Z-alice-" + strings.Repeat("x", 50)
	if key != want {
		t.Errorf("key = %q, want %q", key, want)
	}

	// Pseudo absent: connection id takes its place.
	m2 := &Message{Content: "hi", DateEmis: "2026-01-02T10:00:00Z", UserID: "conn-9"}
	if got := m2.DedupKey(); got != "2026-01-02T10:00:00Z-conn-9-hi" {
		t.Errorf("key = %q, want connection id fallback", got)
	}
}

func TestMessageSentTime(t *testing.T) {
	m := &Message{DateEmis: "2026-01-02T10:00:00Z"}
	if m.SentTime().IsZero() {
		t.Error("valid RFC3339 timestamp should parse")
	}
	bad := &Message{DateEmis: "yesterday-ish"}
	if !bad.SentTime().IsZero() {
		t.Error("unparseable timestamp should yield zero time")
	}
}
