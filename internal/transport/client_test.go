package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gavago/roomchat/internal/bus"
	"github.com/gavago/roomchat/internal/store"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// testServer is a minimal chat backend: it records received frames and lets
// tests push frames to the client.
type testServer struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader
	frames   chan Envelope
	conns    chan *websocket.Conn
}

func newTestServer(t *testing.T) *testServer {
	ts := &testServer{
		t:      t,
		frames: make(chan Envelope, 16),
		conns:  make(chan *websocket.Conn, 1),
	}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := ts.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		ts.conns <- conn
		for {
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			ts.frames <- env
		}
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func (ts *testServer) conn() *websocket.Conn {
	select {
	case c := <-ts.conns:
		return c
	case <-time.After(2 * time.Second):
		ts.t.Fatal("timeout waiting for server-side connection")
		return nil
	}
}

func (ts *testServer) recvFrame() Envelope {
	select {
	case f := <-ts.frames:
		return f
	case <-time.After(2 * time.Second):
		ts.t.Fatal("timeout waiting for frame")
		return Envelope{}
	}
}

func connectedClient(t *testing.T, ts *testServer, b *bus.Bus) *Client {
	t.Helper()
	c := NewClient(ts.wsURL(), "alice", b, zap.NewNop())
	if _, err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Stop)
	return c
}

func TestConnectPublishesEvent(t *testing.T) {
	ts := newTestServer(t)
	b := bus.New()
	ch, unsub := b.Subscribe("wire.connected", 1)
	defer unsub()

	c := connectedClient(t, ts, b)
	if !c.Connected() {
		t.Error("Connected() = false after Connect")
	}
	if c.ConnectionID() == "" {
		t.Error("connection id should be assigned on connect")
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no wire.connected event")
	}
}

func TestJoinRoomFrame(t *testing.T) {
	ts := newTestServer(t)
	c := connectedClient(t, ts, bus.New())

	if err := c.JoinRoom("general"); err != nil {
		t.Fatal(err)
	}
	if c.CurrentRoom() != "general" {
		t.Errorf("CurrentRoom = %q, want general", c.CurrentRoom())
	}

	frame := ts.recvFrame()
	if frame.Event != EventJoinRoom {
		t.Fatalf("event = %q, want %q", frame.Event, EventJoinRoom)
	}
	var p joinPayload
	if err := json.Unmarshal(frame.Data, &p); err != nil {
		t.Fatal(err)
	}
	if p.Pseudo != "alice" || p.RoomName != "general" {
		t.Errorf("payload = %+v", p)
	}
}

func TestSendTextAndImageFrames(t *testing.T) {
	ts := newTestServer(t)
	c := connectedClient(t, ts, bus.New())

	if err := c.SendText("hello", "general"); err != nil {
		t.Fatal(err)
	}
	frame := ts.recvFrame()
	if frame.Event != EventMessage {
		t.Fatalf("event = %q, want %q", frame.Event, EventMessage)
	}

	if err := c.SendImage("data:image/jpeg;base64,AAAA", "conn-1", "general"); err != nil {
		t.Fatal(err)
	}
	frame = ts.recvFrame()
	if frame.Event != EventImage {
		t.Fatalf("event = %q, want %q", frame.Event, EventImage)
	}
	var p imagePayload
	if err := json.Unmarshal(frame.Data, &p); err != nil {
		t.Fatal(err)
	}
	if p.UserID != "conn-1" || p.RoomName != "general" {
		t.Errorf("payload = %+v", p)
	}
}

func TestInboundMessagePublished(t *testing.T) {
	ts := newTestServer(t)
	b := bus.New()
	ch, unsub := b.Subscribe("wire.message", 4)
	defer unsub()

	_ = connectedClient(t, ts, b)
	conn := ts.conn()

	raw, _ := json.Marshal(store.Message{
		Content: "bonjour", Categorie: store.CategoryText,
		DateEmis: "2026-01-02T10:00:00Z", RoomName: "general", Pseudo: "bob",
	})
	if err := conn.WriteJSON(Envelope{Event: EventMessage, Data: raw}); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		m, ok := evt.Payload.(*store.Message)
		if !ok {
			t.Fatalf("payload type = %T", evt.Payload)
		}
		if m.Content != "bonjour" || m.Pseudo != "bob" {
			t.Errorf("message = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for wire.message")
	}
}

func TestWelcomeAdoptsConnectionID(t *testing.T) {
	ts := newTestServer(t)
	c := connectedClient(t, ts, bus.New())
	conn := ts.conn()

	raw, _ := json.Marshal(welcomePayload{ID: "server-given-id"})
	if err := conn.WriteJSON(Envelope{Event: EventWelcome, Data: raw}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.ConnectionID() == "server-given-id" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("connection id = %q, want server-given-id", c.ConnectionID())
}

func TestEmitWhileDisconnected(t *testing.T) {
	c := NewClient("ws://unused.invalid", "alice", bus.New(), zap.NewNop())
	if err := c.SendText("hello", "general"); err != ErrNotConnected {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
}

func TestDisconnectPublishesEvent(t *testing.T) {
	ts := newTestServer(t)
	b := bus.New()
	ch, unsub := b.Subscribe("wire.disconnected", 1)
	defer unsub()

	c := connectedClient(t, ts, b)
	_ = ts.conn().Close()

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no wire.disconnected event")
	}
	deadline := time.Now().Add(time.Second)
	for c.Connected() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if c.Connected() {
		t.Error("Connected() = true after server close")
	}
}
