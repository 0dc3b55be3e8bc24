package game

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	EventBufferSize     = 1024                   // Ring buffer size
	MaxEventsPerSec     = 2000                   // Global rate limit
	MaxEventsPerMatch   = 500                    // Per-match rate limit per second
	BatchFlushSize      = 64                     // Events per batch write
	BatchFlushInterval  = 100 * time.Millisecond // How often to flush
	MatchLimiterCleanup = 5 * time.Minute        // Idle time before a match limiter is dropped
)

// EventLog is a bounded, rate-limited event journal. Events are queued in a
// ring buffer and written as JSON lines by a background goroutine. When the
// buffer is full the oldest pending event is dropped.
type EventLog struct {
	mu      sync.Mutex
	buffer  [EventBufferSize]Event
	head    uint64 // next sequence to write
	tail    uint64 // next sequence to flush
	recent  [EventBufferSize]Event
	written uint64 // events ever accepted, indexes recent

	globalLimiter *rate.Limiter
	matchLimiters sync.Map // map[string]*matchLimiterEntry

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	out    io.Writer
	closer io.Closer

	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
}

type matchLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nano
}

// NewEventLog creates a new bounded event log
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start opens filePath for append and begins the async writer.
// An empty path keeps events in memory only.
func (el *EventLog) Start(filePath string) error {
	if filePath == "" {
		return el.StartWriter(nil)
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	if err := el.StartWriter(file); err != nil {
		file.Close()
		return err
	}
	el.closer = file
	return nil
}

// StartWriter begins the async writer goroutine with w as output (nil discards).
func (el *EventLog) StartWriter(w io.Writer) error {
	if !el.running.CompareAndSwap(false, true) {
		return nil
	}
	el.out = w

	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()
	return nil
}

// Stop flushes pending events and shuts down the writer.
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		if !el.running.Swap(false) {
			return
		}
		close(el.stopChan)
		el.writerWg.Wait()
		if el.closer != nil {
			el.closer.Close()
		}
	})
}

// Emit queues an event. Returns false if rate limited or the log is stopped.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	// One runaway match cannot starve the rest.
	if event.MatchID != "" && !el.matchLimiter(event.MatchID).Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	el.mu.Lock()
	if el.head-el.tail >= EventBufferSize {
		el.tail++
		atomic.AddUint64(&el.droppedCount, 1)
	}
	el.head++
	event.Sequence = el.head
	el.buffer[el.head%EventBufferSize] = event
	el.recent[el.written%EventBufferSize] = event
	el.written++
	el.mu.Unlock()

	atomic.AddUint64(&el.totalCount, 1)
	return true
}

// EmitSimple is a convenience method to emit an event with automatic creation
func (el *EventLog) EmitSimple(eventType EventType, tickNum uint64, matchID string, payload any) bool {
	return el.Emit(NewEvent(eventType, tickNum, matchID, payload))
}

// Recent returns up to n of the most recently accepted events, oldest first.
func (el *EventLog) Recent(n int) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()

	if n > EventBufferSize {
		n = EventBufferSize
	}
	if uint64(n) > el.written {
		n = int(el.written)
	}
	out := make([]Event, 0, n)
	for i := el.written - uint64(n); i < el.written; i++ {
		out = append(out, el.recent[i%EventBufferSize])
	}
	return out
}

func (el *EventLog) matchLimiter(matchID string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := el.matchLimiters.Load(matchID); ok {
		entry := v.(*matchLimiterEntry)
		entry.lastUsed.Store(now)
		return entry.limiter
	}

	entry := &matchLimiterEntry{limiter: rate.NewLimiter(MaxEventsPerMatch, MaxEventsPerMatch/5)}
	entry.lastUsed.Store(now)
	actual, _ := el.matchLimiters.LoadOrStore(matchID, entry)
	return actual.(*matchLimiterEntry).limiter
}

// writerLoop batches and writes events asynchronously
func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)
	for {
		select {
		case <-el.stopChan:
			// Drain everything that is left.
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}
		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

// cleanupLoop drops limiters of matches that stopped emitting
func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(MatchLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			el.cleanupMatchLimiters(time.Now().Add(-MatchLimiterCleanup))
		}
	}
}

func (el *EventLog) cleanupMatchLimiters(cutoff time.Time) {
	el.matchLimiters.Range(func(key, value any) bool {
		if value.(*matchLimiterEntry).lastUsed.Load() < cutoff.UnixNano() {
			el.matchLimiters.Delete(key)
		}
		return true
	})
}

// collectBatch moves up to BatchFlushSize pending events into batch.
func (el *EventLog) collectBatch(batch []Event) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()

	for el.tail < el.head && len(batch) < BatchFlushSize {
		el.tail++
		batch = append(batch, el.buffer[el.tail%EventBufferSize])
	}
	return batch
}

// flushBatch writes events as newline-delimited JSON
func (el *EventLog) flushBatch(batch []Event) {
	if el.out == nil {
		return
	}

	bw := bufio.NewWriter(el.out)
	enc := json.NewEncoder(bw)
	for _, event := range batch {
		if err := enc.Encode(event); err != nil {
			atomic.AddUint64(&el.droppedCount, 1)
		}
	}
	bw.Flush()
}

// GetStats returns metrics for monitoring
func (el *EventLog) GetStats() map[string]any {
	el.mu.Lock()
	pending := el.head - el.tail
	el.mu.Unlock()

	return map[string]any{
		"total":   atomic.LoadUint64(&el.totalCount),
		"dropped": atomic.LoadUint64(&el.droppedCount),
		"pending": pending,
		"running": el.running.Load(),
	}
}

// GetDroppedCount returns the number of dropped events
func (el *EventLog) GetDroppedCount() uint64 {
	return atomic.LoadUint64(&el.droppedCount)
}

// GetTotalCount returns the total number of events accepted
func (el *EventLog) GetTotalCount() uint64 {
	return atomic.LoadUint64(&el.totalCount)
}
