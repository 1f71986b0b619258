package room

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsTestServer upgrades connections and exposes the server side conn.
func wsTestServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handler(conn, r)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClientConnectAndPublish(t *testing.T) {
	received := make(chan envelope, 4)

	server := wsTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		if got := r.URL.Query().Get("room"); got != "room-1" {
			t.Errorf("Expected room=room-1, got %q", got)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("Expected bearer token, got %q", auth)
		}
		for {
			var env envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			received <- env
		}
	})
	defer server.Close()

	client, err := NewClient(
		WithURL(wsURL(server)),
		WithToken("test-token"),
		WithRoomName("room-1"),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("Expected connected state")
	}

	payload, _ := json.Marshal(map[string]string{"action": "show_form"})
	if err := client.PublishData("email_request", payload); err != nil {
		t.Fatalf("PublishData failed: %v", err)
	}
	if err := client.SetMetadata(StateThinking); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}

	env := recvEnvelope(t, received)
	if env.Type != "data" || env.Topic != "email_request" {
		t.Errorf("Unexpected envelope: %+v", env)
	}

	env = recvEnvelope(t, received)
	if env.Type != "metadata" || env.State != StateThinking {
		t.Errorf("Unexpected envelope: %+v", env)
	}
}

func TestClientDispatchesTranscripts(t *testing.T) {
	server := wsTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		conn.WriteJSON(envelope{
			Type:  "transcript",
			Role:  "user",
			Text:  "hello coach",
			Final: true,
		})
		conn.WriteJSON(envelope{Type: "participant_joined", Identity: "user-42"})
		// Keep the connection open until the client leaves.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	client, _ := NewClient(
		WithURL(wsURL(server)),
		WithToken("test-token"),
		WithRoomName("room-1"),
	)

	transcripts := make(chan string, 1)
	participants := make(chan string, 1)
	client.OnTranscript(func(role, text string, final bool) {
		if role == "user" && final {
			transcripts <- text
		}
	})
	client.OnParticipant(func(identity string) {
		participants <- identity
	})

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	select {
	case text := <-transcripts:
		if text != "hello coach" {
			t.Errorf("Unexpected transcript: %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for transcript")
	}

	select {
	case identity := <-participants:
		if identity != "user-42" {
			t.Errorf("Unexpected identity: %q", identity)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for participant event")
	}
}

func TestClientPublishNotConnected(t *testing.T) {
	client, _ := NewClient(
		WithURL("ws://localhost:1"),
		WithToken("test-token"),
		WithRoomName("room-1"),
	)

	if err := client.PublishData("topic", nil); err != ErrNotConnected {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(WithToken("t")); err != ErrMissingURL {
		t.Errorf("Expected ErrMissingURL, got %v", err)
	}
	if _, err := NewClient(WithURL("ws://x")); err != ErrMissingToken {
		t.Errorf("Expected ErrMissingToken, got %v", err)
	}
}

func TestMockRoom(t *testing.T) {
	m := NewMock("room-1")

	if err := m.PublishData("t", nil); err != ErrNotConnected {
		t.Errorf("Expected ErrNotConnected before Connect, got %v", err)
	}

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	var got string
	m.OnTranscript(func(role, text string, final bool) { got = text })
	m.EmitTranscript("user", "hi", true)
	if got != "hi" {
		t.Errorf("Transcript not delivered: %q", got)
	}

	m.PublishData("email_request", []byte(`{}`))
	m.SetMetadata(StateListening)

	if len(m.Data()) != 1 || m.Data()[0].Topic != "email_request" {
		t.Errorf("Unexpected data log: %+v", m.Data())
	}
	if len(m.States()) != 1 || m.States()[0] != StateListening {
		t.Errorf("Unexpected state log: %+v", m.States())
	}
}

func recvEnvelope(t *testing.T, ch chan envelope) envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for envelope")
		return envelope{}
	}
}
