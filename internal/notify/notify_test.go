package notify

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gavago/roomchat/internal/store"
	"go.uber.org/zap"
)

type fakePoster struct {
	posted    chan Notification
	dismissed chan string
}

func newFakePoster() *fakePoster {
	return &fakePoster{
		posted:    make(chan Notification, 4),
		dismissed: make(chan string, 4),
	}
}

func (f *fakePoster) Post(n Notification) error {
	f.posted <- n
	return nil
}

func (f *fakePoster) Dismiss(tag string) {
	f.dismissed <- tag
}

func testSettings(t *testing.T) *store.SettingsStore {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	return store.NewSettingsStore(db, zap.NewNop())
}

func TestDeliverRespectsRoomToggle(t *testing.T) {
	settings := testSettings(t)
	poster := newFakePoster()
	n := New(settings, poster, func() bool { return true }, zap.NewNop())

	m := &store.Message{
		Content: "hello", Categorie: store.CategoryText,
		RoomName: "general", Pseudo: "bob",
	}

	// Default is off.
	n.Deliver(m)
	select {
	case got := <-poster.posted:
		t.Fatalf("posted %+v with notifications disabled", got)
	default:
	}

	if err := settings.SetEnabled("general", true); err != nil {
		t.Fatal(err)
	}
	n.Deliver(m)
	select {
	case got := <-poster.posted:
		if got.Title != "general" {
			t.Errorf("title = %q", got.Title)
		}
		if got.Body != "bob: hello" {
			t.Errorf("body = %q", got.Body)
		}
		if got.Tag == "" {
			t.Error("empty tag")
		}
	case <-time.After(time.Second):
		t.Fatal("nothing posted with notifications enabled")
	}
}

func TestDeliverRespectsPermission(t *testing.T) {
	settings := testSettings(t)
	if err := settings.SetEnabled("general", true); err != nil {
		t.Fatal(err)
	}
	poster := newFakePoster()
	n := New(settings, poster, func() bool { return false }, zap.NewNop())

	n.Deliver(&store.Message{Content: "hello", RoomName: "general", Pseudo: "bob"})
	select {
	case got := <-poster.posted:
		t.Fatalf("posted %+v without permission", got)
	default:
	}
}

func TestBodyTruncatedAndImageReplaced(t *testing.T) {
	settings := testSettings(t)
	if err := settings.SetEnabled("general", true); err != nil {
		t.Fatal(err)
	}
	poster := newFakePoster()
	n := New(settings, poster, func() bool { return true }, zap.NewNop())

	n.Deliver(&store.Message{
		Content: strings.Repeat("x", 300), RoomName: "general", Pseudo: "bob",
	})
	got := <-poster.posted
	if want := "bob: " + strings.Repeat("x", 100) + "..."; got.Body != want {
		t.Errorf("body = %q, want truncated with ellipsis", got.Body)
	}

	// Short content is passed through untouched.
	n.Deliver(&store.Message{Content: "salut", RoomName: "general", Pseudo: "bob"})
	got = <-poster.posted
	if got.Body != "bob: salut" {
		t.Errorf("body = %q", got.Body)
	}

	n.Deliver(&store.Message{
		Content: "data:image/jpeg;base64,AAAA", Categorie: store.CategoryImage,
		RoomName: "general", Pseudo: "bob",
	})
	got = <-poster.posted
	if got.Body != "bob: "+imageBody {
		t.Errorf("image body = %q", got.Body)
	}
}

func TestBodyPrefixOmittedWithoutPseudo(t *testing.T) {
	settings := testSettings(t)
	if err := settings.SetEnabled("general", true); err != nil {
		t.Fatal(err)
	}
	poster := newFakePoster()
	n := New(settings, poster, func() bool { return true }, zap.NewNop())

	n.Deliver(&store.Message{Content: "hello", RoomName: "general", UserID: "conn-9"})
	got := <-poster.posted
	if got.Body != "hello" {
		t.Errorf("body = %q, want no sender prefix", got.Body)
	}
}

func TestTitleUnescapesRoomName(t *testing.T) {
	settings := testSettings(t)
	if err := settings.SetEnabled("salle%20de%20jeux", true); err != nil {
		t.Fatal(err)
	}
	poster := newFakePoster()
	n := New(settings, poster, func() bool { return true }, zap.NewNop())

	n.Deliver(&store.Message{Content: "hello", RoomName: "salle%20de%20jeux", Pseudo: "bob"})
	got := <-poster.posted
	if got.Title != "salle de jeux" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestAutoDismiss(t *testing.T) {
	settings := testSettings(t)
	if err := settings.SetEnabled("general", true); err != nil {
		t.Fatal(err)
	}
	poster := newFakePoster()
	n := New(settings, poster, func() bool { return true }, zap.NewNop())
	n.dismissAfter = 10 * time.Millisecond

	n.Deliver(&store.Message{Content: "hello", RoomName: "general", Pseudo: "bob"})
	posted := <-poster.posted

	select {
	case tag := <-poster.dismissed:
		if tag != posted.Tag {
			t.Errorf("dismissed tag %q, posted %q", tag, posted.Tag)
		}
	case <-time.After(time.Second):
		t.Fatal("notification never dismissed")
	}
}
