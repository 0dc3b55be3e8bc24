package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"neon-survivor/internal/api"
	"neon-survivor/internal/audio"
	"neon-survivor/internal/config"
	"neon-survivor/internal/game"
	"neon-survivor/internal/render"
	"neon-survivor/internal/store"
)

func main() {
	// Load .env file (try parent directory first, then current)
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("⚠️  No .env file found, using environment variables")
		}
	}

	log.Println("🕹️  Neon Survivor - Game Server")
	log.Println("================================")

	cfg := config.Load()

	tuning, err := config.LoadTuning(cfg.Storage.TuningPath)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	// CANVAS_WIDTH/CANVAS_HEIGHT win over the tuning file.
	if cfg.Canvas != config.DefaultCanvas() {
		tuning.Canvas = cfg.Canvas
	}
	log.Printf("📐 Canvas: %.0fx%.0f @ %d TPS", tuning.Canvas.Width, tuning.Canvas.Height, cfg.Server.TickRate)

	kv, err := store.OpenFileStore(cfg.Storage.StorePath)
	if err != nil {
		log.Fatalf("❌ Failed to open progress store: %v", err)
	}
	log.Printf("💾 Progress store: %s", kv.Path())

	engine := game.NewEngine(game.EngineConfig{
		TickRate: cfg.Server.TickRate,
		Tuning:   tuning,
		Limits:   cfg.Limits,
		Store:    kv,
		Seed:     int64(getEnvInt("SEED", 0)),
	})
	engine.OnTick = api.RecordTick
	engine.OnEvent = api.RecordEvent

	if cfg.Storage.EventLogPath != "" {
		if err := engine.StartEventLog(cfg.Storage.EventLogPath); err != nil {
			log.Printf("⚠️  Event log disabled: %v", err)
		}
	}

	hubCfg := api.DefaultHubConfig()
	hubCfg.BroadcastInterval = time.Duration(cfg.Server.BroadcastIntervalMs) * time.Millisecond
	hubCfg.MaxConnections = getEnvInt("WS_MAX_CONNECTIONS", hubCfg.MaxConnections)
	hubCfg.MaxPerIP = getEnvInt("WS_MAX_PER_IP", hubCfg.MaxPerIP)
	origins := getEnvList("ALLOWED_ORIGINS")
	hubCfg.AllowedOrigins = origins

	server := api.NewServer(engine, api.ServerConfig{
		Renderer:    render.NewRenderer(tuning.Canvas),
		Sfx:         audio.NewBank(cfg.Audio),
		Hub:         hubCfg,
		CORSOrigins: origins,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(gctx, fmt.Sprintf(":%d", cfg.Server.Port))
	})

	// Debug server (pprof + metrics) on localhost only
	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		obsCfg := api.DefaultObservabilityConfig()
		obsCfg.ListenAddr = getEnvWithDefault("DEBUG_ADDR", obsCfg.ListenAddr)
		g.Go(func() error {
			// A busy debug port must not take the game down with it.
			if err := api.RunDebugServer(gctx, obsCfg); err != nil {
				log.Printf("⚠️  Debug server error: %v", err)
			}
			return nil
		})
	}

	engine.Start()

	log.Println("✅ All systems running!")
	log.Printf("   API: http://localhost:%d/api/state", cfg.Server.Port)
	log.Printf("   WebSocket: ws://localhost:%d/ws", cfg.Server.Port)
	log.Println("   Press Ctrl+C to stop")

	<-gctx.Done()
	log.Println("\n🛑 Shutting down...")

	if err := g.Wait(); err != nil {
		log.Printf("⚠️  %v", err)
	}

	engine.Stop()
	engine.StopEventLog()
	log.Println("👋 Goodbye!")
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
