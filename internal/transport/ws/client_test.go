package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/feed"
	"github.com/pentia/chatcore/internal/live"
	"github.com/pentia/chatcore/internal/notify"
	"github.com/pentia/chatcore/internal/push"
	"github.com/pentia/chatcore/internal/repository/kv"
	"github.com/pentia/chatcore/internal/service"
	"github.com/pentia/chatcore/internal/store"
)

const testSecret = "ws-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	kvs, err := kv.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	bus := live.NewLocalBus(zerolog.Nop())
	adapter := store.New(kv.NewRoomRepo(kvs), kv.NewMessageRepo(kvs), kv.NewSettingRepo(kvs), bus, zerolog.Nop())
	if err := adapter.CreateRoom(context.Background(), &domain.Room{ID: "r1", Name: "General"}); err != nil {
		t.Fatal(err)
	}

	deps := &Deps{
		Store:      adapter,
		Chat:       service.NewChatService(adapter, notify.NewManager(adapter, nil), zerolog.Nop()),
		PageSize:   20,
		LinkPrefix: "app://",
		SendRate:   rate.Inf,
		SendBurst:  1,
		JWTSecret:  testSecret,
		Logger:     zerolog.Nop(),
	}
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(ServeWS(hub, deps))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-hub.done
		bus.Close()
		kvs.Close()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server, sub string) *websocket.Conn {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub, "name": "Ana"})
	signed, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/?token="+signed, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func emit(t *testing.T, conn *websocket.Conn, eventType, roomID string, payload any) {
	t.Helper()
	evt := Event{Type: eventType, RoomID: roomID}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		evt.Payload = data
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, evt); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func next(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var evt Event
	if err := wsjson.Read(ctx, conn, &evt); err != nil {
		t.Fatalf("read: %v", err)
	}
	return evt
}

// until reads events until one of the given type arrives.
func until(t *testing.T, conn *websocket.Conn, eventType string) Event {
	t.Helper()
	for i := 0; i < 50; i++ {
		if evt := next(t, conn); evt.Type == eventType {
			return evt
		}
	}
	t.Fatalf("no %s event", eventType)
	return Event{}
}

func TestRejectsInvalidToken(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/?token=nope", nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("response = %v", resp)
	}
}

func TestOpenRoomSendAndSeeOwnMessage(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "u1")

	emit(t, conn, EventTypeRoomOpen, "r1", nil)
	state := until(t, conn, EventTypeNotificationsState)
	var s NotificationsStatePayload
	json.Unmarshal(state.Payload, &s)
	if s.Enabled {
		t.Fatal("notifications should start disabled")
	}

	emit(t, conn, EventTypeMessageSend, "r1", MessageSendPayload{Text: "hello", Nonce: "n1"})

	var sentID string
	var views []feed.View
	sawPrompt := false
	for i := 0; i < 50; i++ {
		evt := next(t, conn)
		switch evt.Type {
		case EventTypeNotificationsPrompt:
			sawPrompt = true
		case EventTypeMessageSent:
			var p MessageSentPayload
			json.Unmarshal(evt.Payload, &p)
			if p.Nonce != "n1" {
				t.Fatalf("nonce = %q", p.Nonce)
			}
			sentID = p.Message.ID
		case EventTypeFeedView:
			var v feed.View
			json.Unmarshal(evt.Payload, &v)
			views = append(views, v)
		}
		if sentID != "" && containsMessage(views, sentID) {
			if !sawPrompt {
				t.Fatal("first message should trigger the notification prompt")
			}
			return
		}
	}
	t.Fatal("sent message never appeared in a feed view")
}

func containsMessage(views []feed.View, id string) bool {
	for _, v := range views {
		for _, m := range v.Messages {
			if m.ID == id {
				return true
			}
		}
	}
	return false
}

func TestOpenMissingRoom(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "u1")

	emit(t, conn, EventTypeRoomOpen, "nope", nil)
	evt := until(t, conn, EventTypeError)
	var p ErrorPayload
	json.Unmarshal(evt.Payload, &p)
	if p.Code != "ROOM_NOT_FOUND" || evt.RoomID != "nope" {
		t.Fatalf("unexpected error %+v on %q", p, evt.RoomID)
	}
}

func TestOpenMalformedRoomID(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "u1")

	emit(t, conn, EventTypeRoomOpen, "a/b", nil)
	evt := until(t, conn, EventTypeError)
	var p ErrorPayload
	json.Unmarshal(evt.Payload, &p)
	if p.Code != "VALIDATION_ERROR" || evt.RoomID != "a/b" {
		t.Fatalf("unexpected error %+v on %q", p, evt.RoomID)
	}
}

func TestHelloWithRoomNotificationResetsNavigation(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "u1")

	emit(t, conn, EventTypeHello, "", HelloPayload{
		PushToken:           "tok",
		InitialNotification: &push.Payload{Data: map[string]string{"roomId": "r1"}},
	})
	evt := until(t, conn, EventTypeNavigateReset)
	var p NavigateResetPayload
	json.Unmarshal(evt.Payload, &p)
	if len(p.Routes) != 2 || p.Routes[1].RoomID != "r1" {
		t.Fatalf("routes = %+v", p.Routes)
	}

	emit(t, conn, EventTypeLinkOpen, "", LinkOpenPayload{URL: "app://rooms"})
	evt = until(t, conn, EventTypeNavigateURL)
	var u NavigateURLPayload
	json.Unmarshal(evt.Payload, &u)
	if u.URL != "app://rooms" {
		t.Fatalf("url = %q", u.URL)
	}
}

func TestBackgroundNotificationDefaults(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "u1")

	emit(t, conn, EventTypeNotificationBackground, "", push.Payload{Data: map[string]string{"roomId": "r1"}})
	evt := until(t, conn, EventTypeNotificationLocal)
	var n push.LocalNotification
	json.Unmarshal(evt.Payload, &n)
	if n.Title != "New Message" || n.Body != "Unknown sent a message" || n.RoomID != "r1" {
		t.Fatalf("notification = %+v", n)
	}
}

func TestToggleWithoutDeviceKeepsFlag(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "u1")

	emit(t, conn, EventTypeNotificationsToggle, "r1", nil)
	evt := until(t, conn, EventTypeNotificationsState)
	var s NotificationsStatePayload
	json.Unmarshal(evt.Payload, &s)
	if !s.Enabled || s.Warning == "" {
		t.Fatalf("state = %+v, want enabled with warning", s)
	}
}

func TestPing(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "u1")
	emit(t, conn, EventTypePing, "", nil)
	if evt := next(t, conn); evt.Type != EventTypePong {
		t.Fatalf("got %s, want pong", evt.Type)
	}
}
