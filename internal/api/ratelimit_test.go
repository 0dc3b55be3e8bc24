package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"neon-survivor/internal/game"
)

func TestIsAllowedOrigin(t *testing.T) {
	allowed := []string{"https://neon.example.com"}
	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:5173", true},
		{"https://neon.example.com", true},
		{"https://neon.example.com.evil.io", false},
		{"http://localhost.evil.io", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsAllowedOrigin(tt.origin, allowed); got != tt.want {
			t.Errorf("IsAllowedOrigin(%q): Expected %v, got %v", tt.origin, tt.want, got)
		}
	}
}

func TestConnLimiter(t *testing.T) {
	c := NewConnLimiter(2)

	if !c.Acquire("1.2.3.4") || !c.Acquire("1.2.3.4") {
		t.Fatal("Expected two slots")
	}
	if c.Acquire("1.2.3.4") {
		t.Error("Expected third slot refused")
	}
	if !c.Acquire("5.6.7.8") {
		t.Error("Expected other IPs unaffected")
	}

	c.Release("1.2.3.4")
	if c.Count("1.2.3.4") != 1 || !c.Acquire("1.2.3.4") {
		t.Error("Expected a released slot to be reusable")
	}
	if c.Rejected() != 1 {
		t.Errorf("Expected 1 rejection, got %d", c.Rejected())
	}

	c.Release("5.6.7.8")
	c.Release("5.6.7.8")
	if c.Count("5.6.7.8") != 0 {
		t.Errorf("Expected count floor of 0, got %d", c.Count("5.6.7.8"))
	}
}

func TestIPRateLimiterCleanup(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, CleanupInterval: time.Hour})
	defer rl.Stop()

	if !rl.Allow("10.0.0.1") {
		t.Fatal("Expected first request allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("Expected burst exhausted")
	}

	rl.cleanup(time.Now().Add(time.Minute))
	if _, ok := rl.limiters.Load("10.0.0.1"); ok {
		t.Error("Expected idle limiter dropped")
	}
	if !rl.Allow("10.0.0.1") {
		t.Error("Expected a fresh budget after cleanup")
	}

	stats := rl.GetStats()
	if stats["allowed"] != 2 || stats["rejected"] != 1 {
		t.Errorf("Unexpected stats %v", stats)
	}
	rl.Stop()
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.7 "}, "10.0.0.1:80", "198.51.100.7"},
		{"no port", nil, "192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{game.ErrUnknownTree, http.StatusBadRequest},
		{fmt.Errorf("%w: index 9", game.ErrInvalidChoice), http.StatusBadRequest},
		{game.ErrNoMatch, http.StatusConflict},
		{game.ErrMatchInProgress, http.StatusConflict},
		{game.ErrPerkLocked, http.StatusConflict},
		{game.ErrNoPoints, http.StatusConflict},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v): Expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:6060", true},
		{"localhost:6060", true},
		{"[::1]:6060", true},
		{"0.0.0.0:6060", false},
		{":6060", false},
		{"10.0.0.5:6060", false},
	}

	for _, tt := range tests {
		if got := isLoopback(tt.addr); got != tt.want {
			t.Errorf("isLoopback(%q): Expected %v, got %v", tt.addr, tt.want, got)
		}
	}
}

func TestCodecRoundTrip(t *testing.T) {
	for _, codec := range []Codec{CodecJSON, CodecMsgpack} {
		t.Run(codec.String(), func(t *testing.T) {
			msg := ClientMessage{Type: "input", Input: game.Input{Up: true, PointerX: 33}}
			data, err := Encode(codec, msg)
			if err != nil {
				t.Fatal(err)
			}

			frame := websocket.TextMessage
			if codec == CodecMsgpack {
				frame = websocket.BinaryMessage
			}
			got, err := decodeClientMessage(frame, data)
			if err != nil {
				t.Fatal(err)
			}
			if got.Type != "input" || !got.Up || got.PointerX != 33 {
				t.Errorf("Expected input to survive %s, got %+v", codec, got)
			}
		})
	}

	if _, err := decodeClientMessage(websocket.PingMessage, nil); err == nil {
		t.Error("Expected control frames rejected")
	}
	if _, err := ParseCodec("xml"); err == nil {
		t.Error("Expected unknown codec rejected")
	}
}

func TestRecordEventIgnoresForeignPayloads(t *testing.T) {
	// Must not panic on payloads of the wrong type.
	RecordEvent(game.EventTypeMatchEnd, nil)
	RecordEvent(game.EventTypeEnemyKilled, "DRONE")
	RecordEvent(game.EventTypePerkPurchased, game.PerkPurchasedPayload{Tree: game.PerkSpeed, Tier: 1})
	RecordTick(game.TickInfo{Running: true, Enemies: 3})
}
