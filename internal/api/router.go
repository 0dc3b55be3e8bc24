package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"neon-survivor/internal/config"
	"neon-survivor/internal/game"
	"neon-survivor/internal/game/pool"
	"neon-survivor/internal/game/spatial"
)

// EngineInterface defines the game engine methods used by the API.
// This interface enables mocking for tests without spinning up the game loop.
type EngineInterface interface {
	// Status returns a cheap summary of the current state
	Status() game.Status
	// GetSnapshot returns a deep copy of the latest frame
	GetSnapshot() game.Snapshot
	// ViewSnapshot reads the latest frame in place; fn must not retain it
	ViewSnapshot(fn func(*game.Snapshot)) bool

	StartMatch() (string, error)
	EndMatch() (game.MatchSummary, error)
	SetPaused(paused bool) error
	SetInput(in game.Input)
	Choose(index int) (game.Choice, error)

	BuyPerk(tree game.PerkTree, tier int) (game.PerkState, error)
	Progression() game.ProgressView

	Tuning() config.Tuning
	TickCount() uint64
	PoolStats() map[string]pool.Stats
	QuadtreeStats() spatial.QuadtreeStats
	QuadtreeNodes() []game.QuadtreeNode
	GetEventLogStats() map[string]any
	RecentEvents(n int) []game.Event
}

// FrameRenderer rasterizes snapshots for /api/frame.png.
type FrameRenderer interface {
	RenderPNG(snap *game.Snapshot, nodes []game.QuadtreeNode) ([]byte, error)
}

// SfxSource serves synthesized sound cues.
type SfxSource interface {
	Cue(name string) ([]byte, bool)
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Engine: mockEngine,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000,
//	        Burst:             1000,
//	    },
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the game engine (required)
	Engine EngineInterface

	// Renderer draws /api/frame.png. Nil answers 503.
	Renderer FrameRenderer

	// Sfx serves /api/sfx/{cue}. Nil answers 404.
	Sfx SfxSource

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is only used if RateLimiter is nil.
	// If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, localhost on any port is allowed.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the dependencies the handler functions close over.
type routerHandlers struct {
	engine   EngineInterface
	renderer FrameRenderer
	sfx      SfxSource
}

// NewRouter constructs the HTTP router with all middleware and routes.
// It opens no listeners; the only goroutine started is the rate limiter's
// cleanup loop, and only when no RateLimiter is supplied.
//
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/api/state")
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - order matters
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting before CORS to reject early
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	h := &routerHandlers{
		engine:   cfg.Engine,
		renderer: cfg.Renderer,
		sfx:      cfg.Sfx,
	}

	r.Route("/api", func(r chi.Router) {
		// Read-only views
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/config", h.handleGetConfig)
		r.Get("/events", h.handleGetEvents)

		// Match control
		r.Route("/match", func(r chi.Router) {
			r.Post("/start", h.handleMatchStart)
			r.Post("/end", h.handleMatchEnd)
			r.Post("/pause", h.handleMatchPause)
			r.Post("/choice", h.handleMatchChoice)
		})
		r.Post("/input", h.handleInput)

		// Meta progression
		r.Get("/progression", h.handleGetProgression)
		r.Post("/progression/buy", h.handleBuyPerk)

		// Collaborators
		r.Get("/frame.png", h.handleFrame)
		r.Get("/sfx/{cue}", h.handleSfx)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	return r
}

// metricsMiddleware records request count and latency keyed by the chi route
// pattern, never the raw path, to keep label cardinality bounded.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, pattern, status, time.Since(start))
	})
}
