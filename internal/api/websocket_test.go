package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"neon-survivor/internal/api"
	"neon-survivor/internal/game"
)

func startHub(t *testing.T, mock *MockEngine, cfg api.HubConfig) *httptest.Server {
	t.Helper()
	if cfg.BroadcastInterval == 0 {
		cfg.BroadcastInterval = 10 * time.Millisecond
	}
	srv := api.NewServer(mock, api.ServerConfig{Hub: cfg})

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Hub().Run(ctx)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return ts
}

func dial(t *testing.T, ts *httptest.Server, query, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func waitForCall(t *testing.T, mock *MockEngine, call string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, c := range mock.Calls() {
			if c == call {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("Expected call %q, got %v", call, mock.Calls())
}

func TestHubBroadcastsJSON(t *testing.T) {
	mock := NewMockEngine()
	ts := startHub(t, mock, api.HubConfig{})

	conn, _, err := dial(t, ts, "", "http://localhost:3000")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Expected a snapshot, got %v", err)
	}
	if mt != websocket.TextMessage {
		t.Errorf("Expected text frame, got %d", mt)
	}

	var env struct {
		Event string        `json:"event"`
		Data  game.Snapshot `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatal(err)
	}
	if env.Event != api.EventSnapshot || env.Data.Status != game.StatusDemo || len(env.Data.Enemies) != 1 {
		t.Errorf("Unexpected envelope %s %+v", env.Event, env.Data.Status)
	}
}

func TestHubBroadcastsMsgpack(t *testing.T) {
	mock := NewMockEngine()
	ts := startHub(t, mock, api.HubConfig{})

	conn, _, err := dial(t, ts, "?codec=msgpack", "http://localhost:5173")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Expected a snapshot, got %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Errorf("Expected binary frame, got %d", mt)
	}

	var env map[string]any
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&env); err != nil {
		t.Fatal(err)
	}
	if env["event"] != api.EventSnapshot {
		t.Errorf("Expected event %q, got %v", api.EventSnapshot, env["event"])
	}
	snap, ok := env["data"].(map[string]any)
	if !ok || snap["status"] != game.StatusDemo {
		t.Errorf("Expected json-named keys in msgpack frame, got %v", env["data"])
	}
}

func TestHubSkipsUnchangedFrames(t *testing.T) {
	mock := NewMockEngine()
	ts := startHub(t, mock, api.HubConfig{})

	conn, _, err := dial(t, ts, "", "http://localhost")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("Expected no frame while the sequence is unchanged")
	}
}

func TestHubDispatchesCommands(t *testing.T) {
	mock := NewMockEngine()
	ts := startHub(t, mock, api.HubConfig{})

	conn, _, err := dial(t, ts, "", "http://127.0.0.1:8080")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"start"}`))
	waitForCall(t, mock, "start")

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"input","right":true,"pointerX":12}`))
	waitForCall(t, mock, "input")
	if in := mock.Input(); !in.Right || in.PointerX != 12 {
		t.Errorf("Expected decoded input, got %+v", in)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pause","paused":true}`))
	waitForCall(t, mock, "pause:true")

	bin, err := api.Encode(api.CodecMsgpack, api.ClientMessage{Type: "choice", Index: 2})
	if err != nil {
		t.Fatal(err)
	}
	conn.WriteMessage(websocket.BinaryMessage, bin)
	waitForCall(t, mock, "choice:2")
}

func TestHubRejectsBadOrigin(t *testing.T) {
	ts := startHub(t, NewMockEngine(), api.HubConfig{})

	tests := []struct {
		name   string
		origin string
	}{
		{"foreign", "http://evil.example.com"},
		{"missing", ""},
		{"lookalike", "http://localhost.evil.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := dial(t, ts, "", tt.origin)
			if err == nil {
				conn.Close()
				t.Fatal("Expected dial to fail")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("Expected 403, got %v", resp)
			}
		})
	}
}

func TestHubAllowsConfiguredOrigin(t *testing.T) {
	ts := startHub(t, NewMockEngine(), api.HubConfig{AllowedOrigins: []string{"https://neon.example.com"}})

	conn, _, err := dial(t, ts, "", "https://neon.example.com")
	if err != nil {
		t.Fatalf("Expected configured origin accepted, got %v", err)
	}
	conn.Close()
}

func TestHubPerIPLimit(t *testing.T) {
	ts := startHub(t, NewMockEngine(), api.HubConfig{MaxPerIP: 1})

	first, _, err := dial(t, ts, "", "http://localhost")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer first.Close()

	second, resp, err := dial(t, ts, "", "http://localhost")
	if err == nil {
		second.Close()
		t.Fatal("Expected second connection from the same IP to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %v", resp)
	}
}

func TestHubUnknownCodec(t *testing.T) {
	ts := startHub(t, NewMockEngine(), api.HubConfig{})

	_, resp, err := dial(t, ts, "?codec=xml", "http://localhost")
	if err == nil {
		t.Fatal("Expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %v", resp)
	}
}
