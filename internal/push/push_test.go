package push

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type fakeSender struct {
	sent    []Subscription
	payload []byte
	err     error
}

func (f *fakeSender) Send(sub Subscription, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sub)
	f.payload = payload
	return nil
}

func testRouter(sender *fakeSender) (*mux.Router, *MemoryStore) {
	store := NewMemoryStore()
	r := mux.NewRouter()
	NewHandler(store, sender, zap.NewNop()).Register(r)
	return r, store
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSubscribeAndList(t *testing.T) {
	r, store := testRouter(&fakeSender{})

	rec := doJSON(t, r, http.MethodPost, "/push/subscriptions",
		`{"userId":"alice","endpoint":"https://push.example/ep1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if _, ok := store.Get("alice"); !ok {
		t.Fatal("subscription not stored")
	}

	rec = doJSON(t, r, http.MethodGet, "/push/subscriptions", "")
	var subs []Subscription
	if err := json.NewDecoder(rec.Body).Decode(&subs); err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].UserID != "alice" {
		t.Errorf("list = %+v", subs)
	}
}

func TestSubscribeRejectsIncompleteBody(t *testing.T) {
	r, store := testRouter(&fakeSender{})

	rec := doJSON(t, r, http.MethodPost, "/push/subscriptions", `{"userId":"alice"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if _, ok := store.Get("alice"); ok {
		t.Error("incomplete subscription stored")
	}
}

func TestUnsubscribe(t *testing.T) {
	r, store := testRouter(&fakeSender{})
	store.Set(Subscription{UserID: "alice", Endpoint: "https://push.example/ep1"})

	rec := doJSON(t, r, http.MethodDelete, "/push/subscriptions/alice", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, ok := store.Get("alice"); ok {
		t.Error("subscription still present")
	}

	rec = doJSON(t, r, http.MethodDelete, "/push/subscriptions/alice", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestNotifyDelivers(t *testing.T) {
	sender := &fakeSender{}
	r, store := testRouter(sender)
	store.Set(Subscription{UserID: "alice", Endpoint: "https://push.example/ep1"})

	rec := doJSON(t, r, http.MethodPost, "/push/notify/alice", `{"title":"ping"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(sender.sent) != 1 || sender.sent[0].UserID != "alice" {
		t.Errorf("sent = %+v", sender.sent)
	}
	if !bytes.Equal(sender.payload, []byte(`{"title":"ping"}`)) {
		t.Errorf("payload = %s", sender.payload)
	}
}

func TestNotifyUnknownUserAndFailedDelivery(t *testing.T) {
	sender := &fakeSender{}
	r, store := testRouter(sender)

	rec := doJSON(t, r, http.MethodPost, "/push/notify/ghost", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	store.Set(Subscription{UserID: "alice", Endpoint: "https://push.example/ep1"})
	sender.err = errors.New("push service down")
	rec = doJSON(t, r, http.MethodPost, "/push/notify/alice", `{}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestMemoryStoreListSorted(t *testing.T) {
	store := NewMemoryStore()
	store.Set(Subscription{UserID: "carol", Endpoint: "e3"})
	store.Set(Subscription{UserID: "alice", Endpoint: "e1"})
	store.Set(Subscription{UserID: "bob", Endpoint: "e2"})

	subs := store.List()
	if len(subs) != 3 || subs[0].UserID != "alice" || subs[2].UserID != "carol" {
		t.Errorf("list = %+v", subs)
	}
}
