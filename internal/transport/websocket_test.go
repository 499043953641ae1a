package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/flowsync/internal/command"
	"github.com/hitoshi/flowsync/internal/room"
	"github.com/hitoshi/flowsync/internal/tracker"
)

type noopObserver struct{}

func (noopObserver) RecordCommand(operation string, success bool, duration time.Duration) {}
func (noopObserver) RecordEphemeralUpdate()    {}
func (noopObserver) RecordFinalizedUpdate()    {}
func (noopObserver) RecordBroadcast(n int)     {}
func (noopObserver) SetConnectedClients(n int) {}
func (noopObserver) SetActiveRooms(n int)      {}

type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(raw string) string { return raw }

// newTestServer はストアに触れない操作だけを想定したテストサーバーを立てる。
func newTestServer(t *testing.T, opts Options) (*httptest.Server, *Dispatcher) {
	t.Helper()

	tr := tracker.New(nil, nil, nil, nil, room.NewRegistry(), passthroughSanitizer{})
	router := command.NewRouter(tr, noopObserver{})
	dispatcher := NewDispatcher()
	handler := NewHandler(router, tr, dispatcher, noopObserver{}, opts)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)
	return httptest.NewServer(mux), dispatcher
}

func dialWS(t *testing.T, server *httptest.Server, origin string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return ws
}

// TestHandler_RoundTrip は接続から失敗・成功応答の往復までを検証する。
func TestHandler_RoundTrip(t *testing.T) {
	server, dispatcher := newTestServer(t, DefaultOptions())
	defer server.Close()

	ws := dialWS(t, server, "")
	defer ws.Close()

	// 未登録の操作は失敗エンベロープで返る
	request := map[string]any{"operationName": "NoSuchOperation", "payload": map[string]any{}}
	if err := ws.WriteJSON(request); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var content command.Content
	if err := ws.ReadJSON(&content); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if content.WasSuccessful {
		t.Error("WasSuccessful = true, want false")
	}
	if content.MessageType != "NoSuchOperation" {
		t.Errorf("MessageType = %q, want NoSuchOperation", content.MessageType)
	}

	// ストアに触れない操作は成功する
	request = map[string]any{
		"operationName": "LogoutUser",
		"payload":       map[string]any{"flowUser": map[string]any{"Username": "alice"}},
	}
	if err := ws.WriteJSON(request); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := ws.ReadJSON(&content); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !content.WasSuccessful || content.MessageType != "LogoutUser" {
		t.Errorf("content = %+v, want successful LogoutUser", content)
	}

	if dispatcher.ConnectedClients() != 1 {
		t.Errorf("ConnectedClients = %d, want 1", dispatcher.ConnectedClients())
	}
}

// TestHandler_DisconnectCleansUp は切断後に接続が登録から消えることを検証する。
func TestHandler_DisconnectCleansUp(t *testing.T) {
	server, dispatcher := newTestServer(t, DefaultOptions())
	defer server.Close()

	ws := dialWS(t, server, "")
	ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for dispatcher.ConnectedClients() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("ConnectedClients = %d, want 0 after close", dispatcher.ConnectedClients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestHandler_OriginCheck は許可外オリジンからのアップグレードが拒否されることを検証する。
func TestHandler_OriginCheck(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowedOrigin = "https://editor.example.com"
	server, _ := newTestServer(t, opts)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Error("dial from disallowed origin succeeded")
	}

	// 許可オリジンからは接続できる
	ws := dialWS(t, server, "https://editor.example.com")
	ws.Close()
}

// TestHandler_UnparsableFrame は壊れたフレームが接続を落とさないことを検証する。
func TestHandler_UnparsableFrame(t *testing.T) {
	server, _ := newTestServer(t, DefaultOptions())
	defer server.Close()

	ws := dialWS(t, server, "")
	defer ws.Close()

	if err := ws.WriteMessage(websocket.TextMessage, []byte("{broken")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var content command.Content
	if err := json.Unmarshal(payload, &content); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if content.WasSuccessful {
		t.Error("WasSuccessful = true, want false")
	}
}
