// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for server settings and game tuning.
//
// Gameplay numbers live in tuning.go; process settings live here.
package config

import (
	"os"
	"strconv"
)

// =============================================================================
// CANVAS CONFIGURATION
// =============================================================================

// CanvasConfig is the play area. The quadtree root and the off-screen
// culling margins are derived from it.
type CanvasConfig struct {
	Width  float64 `toml:"width" json:"width"`
	Height float64 `toml:"height" json:"height"`
}

// DefaultCanvas returns the default play area (720p).
func DefaultCanvas() CanvasConfig {
	return CanvasConfig{
		Width:  1280,
		Height: 720,
	}
}

// CanvasFromEnv returns canvas configuration with environment variable overrides.
func CanvasFromEnv() CanvasConfig {
	cfg := DefaultCanvas()

	if w := getEnvInt("CANVAS_WIDTH", 0); w > 0 {
		cfg.Width = float64(w)
	}
	if h := getEnvInt("CANVAS_HEIGHT", 0); h > 0 {
		cfg.Height = float64(h)
	}

	return cfg
}

// =============================================================================
// SNAPSHOT LIMITS
// =============================================================================

// ResourceLimits caps how many entities of each kind are copied into a
// snapshot. The simulation itself is capped separately by the tuning table.
type ResourceLimits struct {
	MaxEnemies     int // Per-snapshot enemy limit
	MaxProjectiles int // Per-snapshot projectile limit
	MaxParticles   int // Per-snapshot particle limit
	MaxExpOrbs     int // Per-snapshot exp orb limit
	MaxLootBoxes   int // Per-snapshot loot box limit
	MaxSfx         int // Per-snapshot sound cue limit
}

// DefaultLimits returns the default snapshot limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxEnemies:     400,
		MaxProjectiles: 300,
		MaxParticles:   600,
		MaxExpOrbs:     200,
		MaxLootBoxes:   32,
		MaxSfx:         16,
	}
}

// =============================================================================
// AUDIO CONFIGURATION
// =============================================================================

// AudioConfig holds SFX synthesis settings.
type AudioConfig struct {
	SampleRate int     // Audio sample rate in Hz
	Volume     float64 // Cue volume (0.0 to 1.0)
	Enabled    bool    // Whether cues are synthesized at all
}

// DefaultAudio returns the default audio configuration.
func DefaultAudio() AudioConfig {
	return AudioConfig{
		SampleRate: 44100,
		Volume:     0.25,
		Enabled:    true,
	}
}

// AudioFromEnv returns audio configuration with environment variable overrides.
func AudioFromEnv() AudioConfig {
	cfg := DefaultAudio()

	if v := getEnvFloat("SFX_VOLUME", -1); v >= 0 {
		cfg.Volume = v
	}
	if os.Getenv("SFX_ENABLED") == "false" {
		cfg.Enabled = false
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server and loop settings.
type ServerConfig struct {
	Port                int
	TickRate            int // Simulation ticks per second
	BroadcastIntervalMs int // WebSocket snapshot cadence
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:                3000,
		TickRate:            60,
		BroadcastIntervalMs: 50, // 20 updates per second
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if bi := getEnvInt("BROADCAST_INTERVAL_MS", 0); bi > 0 {
		cfg.BroadcastIntervalMs = bi
	}

	return cfg
}

// =============================================================================
// STORAGE CONFIGURATION
// =============================================================================

// StorageConfig holds file locations for persisted data.
type StorageConfig struct {
	StorePath    string // Key-value store for perks and highscore
	EventLogPath string // JSONL event log ("" disables file output)
	TuningPath   string // Optional TOML tuning overlay
}

// DefaultStorage returns the default storage configuration.
func DefaultStorage() StorageConfig {
	return StorageConfig{
		StorePath:    "data/progress.json",
		EventLogPath: "events.jsonl",
	}
}

// StorageFromEnv returns storage configuration with environment variable overrides.
func StorageFromEnv() StorageConfig {
	cfg := DefaultStorage()

	if p := os.Getenv("STORE_PATH"); p != "" {
		cfg.StorePath = p
	}
	if p, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.EventLogPath = p
	}
	if p := os.Getenv("TUNING_FILE"); p != "" {
		cfg.TuningPath = p
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Canvas  CanvasConfig
	Audio   AudioConfig
	Server  ServerConfig
	Storage StorageConfig
	Limits  ResourceLimits
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Canvas:  CanvasFromEnv(),
		Audio:   AudioFromEnv(),
		Server:  ServerFromEnv(),
		Storage: StorageFromEnv(),
		Limits:  DefaultLimits(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
