package api

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"neon-survivor/internal/game"
)

// Metrics use bounded label sets only: entity kinds, event reasons and route
// patterns.
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Time spent in one simulation tick",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.033},
	})

	tickDelta = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_delta_ms",
		Help:    "Wall-clock delta fed to the world per tick",
		Buckets: []float64{8, 16, 17, 20, 33, 60, 100},
	})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "render_frame_duration_seconds",
		Help:    "Time spent rasterizing a frame",
		Buckets: []float64{0.005, 0.01, 0.02, 0.033, 0.05, 0.1},
	})

	entityCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "game_entities",
		Help: "Live entities per kind",
	}, []string{"kind"})

	poolObjects = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "game_pool_objects",
		Help: "Pooled objects per kind and state",
	}, []string{"kind", "state"}) // state: active, free

	quadtreeNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_quadtree_nodes",
		Help: "Quadtree nodes after the last rebuild",
	})

	quadtreeDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_quadtree_depth",
		Help: "Deepest quadtree level after the last rebuild",
	})

	matchRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_match_running",
		Help: "1 while a match is in progress",
	})

	matchesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_matches_started_total",
		Help: "Matches started",
	})

	matchesEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_matches_ended_total",
		Help: "Matches ended by death or abandonment",
	})

	matchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_match_duration_seconds",
		Help:    "Survival time of finished matches",
		Buckets: []float64{15, 30, 60, 120, 240, 480, 900},
	})

	levelUps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_level_ups_total",
		Help: "Level-ups applied",
	})

	enemiesKilled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_enemies_killed_total",
		Help: "Enemies killed per kind",
	}, []string{"kind"})

	playerHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_player_hits_total",
		Help: "Contact hits taken by the player",
	})

	perkPurchases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_perk_purchases_total",
		Help: "Perk tiers purchased per tree",
	}, []string{"tree"})

	// DoS detection
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // rate_limit, origin, ws_total_limit, ws_ip_limit, ws_msg_rate

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "WebSocket messages by direction",
	}, []string{"direction"}) // sent, received
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled    bool
	ListenAddr string // Forced to loopback unless AllowExternal
	// AllowExternal permits a non-loopback ListenAddr
	AllowExternal bool
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// DebugHandler serves pprof, /metrics and /health.
func DebugHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// RunDebugServer serves DebugHandler until ctx is done. pprof can be used to
// stall the process, so the server binds to loopback unless AllowExternal.
func RunDebugServer(ctx context.Context, cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if !cfg.AllowExternal && !isLoopback(cfg.ListenAddr) {
		log.Println("⚠️ Debug server forced to localhost for security")
		cfg.ListenAddr = DefaultObservabilityConfig().ListenAddr
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           DebugHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
	log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
	log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// RecordTick updates the loop, entity, pool and quadtree metrics.
// Install it as the engine's OnTick hook.
func RecordTick(info game.TickInfo) {
	tickDuration.Observe(info.Duration.Seconds())
	tickDelta.Observe(info.DeltaMs)

	entityCount.WithLabelValues("enemy").Set(float64(info.Enemies))
	entityCount.WithLabelValues("projectile").Set(float64(info.Projectiles))
	entityCount.WithLabelValues("particle").Set(float64(info.Particles))
	entityCount.WithLabelValues("exp_orb").Set(float64(info.ExpOrbs))
	entityCount.WithLabelValues("loot_box").Set(float64(info.LootBoxes))

	for kind, st := range info.Pools {
		poolObjects.WithLabelValues(kind, "active").Set(float64(st.Active))
		poolObjects.WithLabelValues(kind, "free").Set(float64(st.Free))
	}

	quadtreeNodes.Set(float64(info.Quadtree.Nodes))
	quadtreeDepth.Set(float64(info.Quadtree.MaxDepth))

	if info.Running {
		matchRunning.Set(1)
	} else {
		matchRunning.Set(0)
	}
}

// RecordEvent counts gameplay events. Install it as the engine's OnEvent
// hook; it only touches metrics.
func RecordEvent(t game.EventType, payload any) {
	switch t {
	case game.EventTypeMatchStart:
		matchesStarted.Inc()
	case game.EventTypeMatchEnd:
		matchesEnded.Inc()
		if p, ok := payload.(game.MatchEndPayload); ok {
			matchDuration.Observe(float64(p.Seconds))
		}
	case game.EventTypeLevelUp:
		levelUps.Inc()
	case game.EventTypeEnemyKilled:
		kind := "unknown"
		if p, ok := payload.(game.EnemyKilledPayload); ok {
			kind = p.Kind
		}
		enemiesKilled.WithLabelValues(kind).Inc()
	case game.EventTypePlayerHit:
		playerHits.Inc()
	case game.EventTypePerkPurchased:
		tree := "unknown"
		if p, ok := payload.(game.PerkPurchasedPayload); ok {
			tree = string(p.Tree)
		}
		perkPurchases.WithLabelValues(tree).Inc()
	}
}

// RecordRender records render timing
func RecordRender(duration time.Duration) {
	renderDuration.Observe(duration.Seconds())
}

// RecordConnectionRejected increments the rejection counter.
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// RecordWSMessage counts one WebSocket message; direction is sent or received.
func RecordWSMessage(direction string) {
	wsMessagesTotal.WithLabelValues(direction).Inc()
}
