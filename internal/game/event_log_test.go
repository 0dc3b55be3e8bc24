package game

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe for the writer goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

func TestEventLogWritesJSONLines(t *testing.T) {
	var out syncBuffer
	el := NewEventLog()
	if err := el.StartWriter(&out); err != nil {
		t.Fatal(err)
	}

	el.EmitSimple(EventTypeMatchStart, 1, "m1", MatchStartPayload{Speed: 220})
	el.EmitSimple(EventTypeEnemyKilled, 2, "m1", EnemyKilledPayload{Kind: "DRONE", Exp: 2})
	el.Stop()

	lines := out.Lines()
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %v", len(lines), lines)
	}

	var ev Event
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Name != "enemy_killed" || ev.Sequence != 2 || ev.MatchID != "m1" || ev.TickNum != 2 {
		t.Errorf("Unexpected event %+v", ev)
	}

	var payload EnemyKilledPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.Kind != "DRONE" {
		t.Errorf("Expected DRONE payload, got %+v (%v)", payload, err)
	}
}

func TestEventLogRejectsWhenStopped(t *testing.T) {
	el := NewEventLog()
	if el.EmitSimple(EventTypeTick, 1, "", nil) {
		t.Error("Expected emit before start to fail")
	}

	el.StartWriter(nil)
	el.Stop()
	el.Stop()
	if el.EmitSimple(EventTypeTick, 1, "", nil) {
		t.Error("Expected emit after stop to fail")
	}
}

func TestEventLogPerMatchRateLimit(t *testing.T) {
	el := NewEventLog()
	el.StartWriter(nil)
	defer el.Stop()

	accepted := 0
	for i := 0; i < 180; i++ {
		if el.EmitSimple(EventTypePlayerHit, uint64(i), "noisy", nil) {
			accepted++
		}
	}
	if accepted >= 180 || el.GetDroppedCount() == 0 {
		t.Errorf("Expected the noisy match to be throttled, accepted %d", accepted)
	}

	if !el.EmitSimple(EventTypePlayerHit, 1, "quiet", nil) {
		t.Error("Expected another match to be unaffected")
	}
}

func TestEventLogRecent(t *testing.T) {
	el := NewEventLog()
	el.StartWriter(nil)
	defer el.Stop()

	for i := 1; i <= 5; i++ {
		el.EmitSimple(EventTypeTick, uint64(i), "", nil)
	}

	recent := el.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(recent))
	}
	if recent[0].TickNum != 3 || recent[2].TickNum != 5 {
		t.Errorf("Expected ticks 3..5 oldest first, got %d..%d", recent[0].TickNum, recent[2].TickNum)
	}
	if len(el.Recent(100)) != 5 {
		t.Errorf("Expected Recent capped at accepted count, got %d", len(el.Recent(100)))
	}
}

func TestEventLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	el := NewEventLog()
	if err := el.Start(path); err != nil {
		t.Fatal(err)
	}
	el.EmitSimple(EventTypeMatchEnd, 10, "m", MatchEndPayload{Seconds: 12})
	el.Stop()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(raw, []byte(`"name":"match_end"`)) {
		t.Errorf("Expected match_end line, got %s", raw)
	}
}

func TestEventLogFlushesInBackground(t *testing.T) {
	var out syncBuffer
	el := NewEventLog()
	el.StartWriter(&out)
	defer el.Stop()

	el.EmitSimple(EventTypeTick, 1, "", nil)
	deadline := time.Now().Add(2 * time.Second)
	for len(out.Lines()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(out.Lines()) != 1 {
		t.Error("Expected the writer to flush without Stop")
	}

	stats := el.GetStats()
	if stats["total"].(uint64) != 1 || stats["pending"].(uint64) != 0 {
		t.Errorf("Unexpected stats %v", stats)
	}
}

func TestMatchLimiterCleanup(t *testing.T) {
	el := NewEventLog()
	el.StartWriter(nil)
	defer el.Stop()

	el.EmitSimple(EventTypeTick, 1, "old", nil)
	el.cleanupMatchLimiters(time.Now().Add(time.Minute))

	if _, ok := el.matchLimiters.Load("old"); ok {
		t.Error("Expected idle limiter removed")
	}
}
