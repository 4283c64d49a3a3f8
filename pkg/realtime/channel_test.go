package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestEndpointNormalization(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"https to wss", "https://api.example.com/v1/realtime", "wss://api.example.com/v1/realtime?model=m1"},
		{"http to ws", "http://localhost:8080/realtime", "ws://localhost:8080/realtime?model=m1"},
		{"wss passthrough", "wss://api.example.com/v1/realtime", "wss://api.example.com/v1/realtime?model=m1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &WebSocketTransport{URL: tt.url, Model: "m1"}
			got, err := transport.endpoint()
			if err != nil {
				t.Fatalf("endpoint: %v", err)
			}
			if got != tt.want {
				t.Fatalf("endpoint = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEndpointRejectsOtherSchemes(t *testing.T) {
	transport := &WebSocketTransport{URL: "ftp://example.com"}
	if _, err := transport.endpoint(); err == nil {
		t.Fatal("ftp scheme must be rejected")
	}
}

func TestDialSendsAuthAndDeliversInOrder(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotAuth, gotBeta string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBeta = r.Header.Get("OpenAI-Beta")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, frame := range []string{`{"type":"a"}`, `{"type":"b"}`, `{"type":"c"}`} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		// Echo one client frame back, then close normally.
		if _, msg, err := conn.ReadMessage(); err == nil {
			_ = conn.WriteMessage(websocket.TextMessage, msg)
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	}))
	defer server.Close()

	var mu sync.Mutex
	var received []string
	opened := false
	closed := make(chan struct{})

	transport := &WebSocketTransport{URL: server.URL, Model: "m1"}
	channel, err := transport.Dial(context.Background(), "ek_test", ChannelHandlers{
		OnOpen: func() { opened = true },
		OnClose: func() {
			close(closed)
		},
		OnMessage: func(payload []byte) {
			mu.Lock()
			received = append(received, string(payload))
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer channel.Close()

	if !opened {
		t.Fatal("OnOpen must fire before Dial returns")
	}
	if gotAuth != "Bearer ek_test" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotBeta != "realtime=v1" {
		t.Fatalf("OpenAI-Beta = %q", gotBeta)
	}

	if err := channel.Send([]byte(`{"type":"d"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("OnClose never fired after server close")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{`{"type":"a"}`, `{"type":"b"}`, `{"type":"c"}`, `{"type":"d"}`}
	if len(received) != len(want) {
		t.Fatalf("received = %v, want %v", received, want)
	}
	for i := range want {
		if received[i] != want[i] {
			t.Fatalf("received[%d] = %q, want %q", i, received[i], want[i])
		}
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	transport := &WebSocketTransport{URL: server.URL}
	channel, err := transport.Dial(context.Background(), "ek_test", ChannelHandlers{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := channel.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := channel.Send([]byte(`{}`)); err == nil {
		t.Fatal("Send after Close must fail")
	}
	// Closing twice is safe.
	if err := channel.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestDialRejectedByServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	transport := &WebSocketTransport{URL: server.URL}
	if _, err := transport.Dial(context.Background(), "bad", ChannelHandlers{}); err == nil {
		t.Fatal("Dial must fail when the server rejects the upgrade")
	}
}
