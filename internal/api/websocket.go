package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/time/rate"

	"neon-survivor/internal/game"
)

// EventSnapshot is the envelope event carrying a game.Snapshot.
const EventSnapshot = "game:snapshot"

const (
	writeWait      = time.Second
	maxMessageSize = 4096
)

// Codec selects the wire format of a connection.
type Codec uint8

const (
	CodecJSON Codec = iota
	CodecMsgpack
)

func (c Codec) String() string {
	if c == CodecMsgpack {
		return "msgpack"
	}
	return "json"
}

// ParseCodec maps the ?codec= query value; empty means JSON.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "", "json":
		return CodecJSON, nil
	case "msgpack":
		return CodecMsgpack, nil
	default:
		return CodecJSON, fmt.Errorf("unknown codec %q", s)
	}
}

// Envelope wraps every server-to-client message.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// ClientMessage is a command sent by a browser. Input fields are inline so
// {"type":"input","up":true,"pointerX":10} decodes directly.
type ClientMessage struct {
	Type string `json:"type"`
	game.Input
	Index  int  `json:"index"`
	Paused bool `json:"paused"`
}

// Encode serializes v for codec. msgpack frames use the json field names so
// both codecs carry identical keys.
func Encode(c Codec, v any) ([]byte, error) {
	if c == CodecMsgpack {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return json.Marshal(v)
}

// decodeClientMessage picks the codec from the frame type: text frames are
// JSON, binary frames msgpack.
func decodeClientMessage(messageType int, data []byte) (ClientMessage, error) {
	var msg ClientMessage
	switch messageType {
	case websocket.TextMessage:
		if err := json.Unmarshal(data, &msg); err != nil {
			return msg, err
		}
	case websocket.BinaryMessage:
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		if err := dec.Decode(&msg); err != nil {
			return msg, err
		}
	default:
		return msg, fmt.Errorf("unsupported frame type %d", messageType)
	}
	return msg, nil
}

// HubConfig bounds the hub.
type HubConfig struct {
	MaxConnections    int
	MaxPerIP          int
	AllowedOrigins    []string // Exact origins accepted besides localhost
	BroadcastInterval time.Duration
	MessageRate       float64 // Client messages per second per connection
	MessageBurst      int
}

// DefaultHubConfig returns production defaults
func DefaultHubConfig() HubConfig {
	return HubConfig{
		MaxConnections:    100,
		MaxPerIP:          5,
		BroadcastInterval: 50 * time.Millisecond,
		MessageRate:       120,
		MessageBurst:      240,
	}
}

type wsClient struct {
	conn  *websocket.Conn
	ip    string
	codec Codec
}

// WebSocketHub pushes snapshots to every client and feeds client commands
// to the engine. A single Run goroutine owns registration and all writes.
type WebSocketHub struct {
	engine   EngineInterface
	cfg      HubConfig
	upgrader websocket.Upgrader
	conns    *ConnLimiter

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	lastSeq    uint64
}

// NewWebSocketHub creates a hub. Nothing runs until Run.
func NewWebSocketHub(engine EngineInterface, cfg HubConfig) *WebSocketHub {
	def := DefaultHubConfig()
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = def.MaxConnections
	}
	if cfg.MaxPerIP <= 0 {
		cfg.MaxPerIP = def.MaxPerIP
	}
	if cfg.BroadcastInterval <= 0 {
		cfg.BroadcastInterval = def.BroadcastInterval
	}
	if cfg.MessageRate <= 0 {
		cfg.MessageRate, cfg.MessageBurst = def.MessageRate, def.MessageBurst
	}

	h := &WebSocketHub{
		engine:     engine,
		cfg:        cfg,
		conns:      NewConnLimiter(cfg.MaxPerIP),
		clients:    make(map[*wsClient]struct{}),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if IsAllowedOrigin(origin, h.cfg.AllowedOrigins) {
		return true
	}
	log.Printf("⚠️ WebSocket connection rejected from origin: %q", origin)
	RecordConnectionRejected("origin")
	return false
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every connection.
func (h *WebSocketHub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.BroadcastInterval)
	defer ticker.Stop()
	defer h.closeAll()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client connected from %s via %s (%d total)", c.ip, c.codec, count)
			UpdateWSConnections(count)

		case c := <-h.unregister:
			h.remove(c)

		case <-ticker.C:
			h.broadcastSnapshot()
		}
	}
}

func (h *WebSocketHub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	h.conns.Release(c.ip)
	c.conn.Close()
	log.Printf("📱 Client disconnected (%d remaining)", count)
	UpdateWSConnections(count)
}

func (h *WebSocketHub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		c.conn.Close()
		h.conns.Release(c.ip)
	}
	UpdateWSConnections(0)
}

// broadcastSnapshot encodes the latest frame once per codec in use and
// writes it to every client. Frames already sent are skipped.
func (h *WebSocketHub) broadcastSnapshot() {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	var need [2]bool
	for c := range h.clients {
		clients = append(clients, c)
		need[c.codec] = true
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	var frames [2][]byte
	var seq uint64
	h.engine.ViewSnapshot(func(s *game.Snapshot) {
		if s.Sequence == h.lastSeq {
			return
		}
		seq = s.Sequence
		env := Envelope{Event: EventSnapshot, Data: s}
		for codec, want := range need {
			if !want {
				continue
			}
			data, err := Encode(Codec(codec), env)
			if err != nil {
				log.Printf("⚠️ Snapshot encode (%s) failed: %v", Codec(codec), err)
				continue
			}
			frames[codec] = data
		}
	})
	if seq == 0 {
		return
	}
	h.lastSeq = seq

	for _, c := range clients {
		data := frames[c.codec]
		if data == nil {
			continue
		}
		msgType := websocket.TextMessage
		if c.codec == CodecMsgpack {
			msgType = websocket.BinaryMessage
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(msgType, data); err != nil {
			h.remove(c)
			continue
		}
		RecordWSMessage("sent")
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request after the connection limits and
// origin check pass.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	codec, err := ParseCodec(r.URL.Query().Get("codec"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if total := h.ClientCount(); total >= h.cfg.MaxConnections {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", total)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.conns.Acquire(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.conns.Release(ip)
		return
	}

	c := &wsClient{conn: conn, ip: ip, codec: codec}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		h.conns.Release(ip)
		return
	}

	go h.readLoop(c)
}

func (h *WebSocketHub) readLoop(c *wsClient) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	limiter := rate.NewLimiter(rate.Limit(h.cfg.MessageRate), h.cfg.MessageBurst)

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		RecordWSMessage("received")

		if !limiter.Allow() {
			RecordConnectionRejected("ws_msg_rate")
			continue
		}
		msg, err := decodeClientMessage(mt, data)
		if err != nil {
			continue
		}
		if err := h.dispatch(msg); err != nil {
			log.Printf("📨 Command %q from %s rejected: %v", msg.Type, c.ip, err)
		}
	}
}

// dispatch applies one client command to the engine.
func (h *WebSocketHub) dispatch(msg ClientMessage) error {
	switch msg.Type {
	case "input":
		h.engine.SetInput(msg.Input)
		return nil
	case "choice":
		_, err := h.engine.Choose(msg.Index)
		return err
	case "pause":
		return h.engine.SetPaused(msg.Paused)
	case "start":
		_, err := h.engine.StartMatch()
		return err
	case "end":
		_, err := h.engine.EndMatch()
		return err
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}
