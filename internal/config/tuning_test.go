package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTuningIsValid(t *testing.T) {
	if err := DefaultTuning().Validate(); err != nil {
		t.Fatalf("Expected default tuning to validate, got %v", err)
	}
}

func TestDefaultTuningValues(t *testing.T) {
	tn := DefaultTuning()

	tests := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"player speed", tn.Player.Speed, 220},
		{"basic damage", tn.Weapons.Basic.Damage, 12},
		{"spread cooldown", tn.Weapons.Spread.CooldownMs, 400},
		{"laser speed", tn.Weapons.Laser.Speed, 1600},
		{"tank armor", tn.Enemies.Tank.Armor, 0.15},
		{"brute health", tn.Enemies.Brute.Health, 220},
		{"loot chance", tn.Game.LootBoxChance, 0.18},
		{"spawn threshold", tn.Spawn.AccumulatorThreshold, 800},
		{"hunter cap", tn.Spawn.TypeSpeedCaps.Hunter, 2.2},
		{"knockback", tn.Visual.Knockback, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, tt.got)
			}
		})
	}
}

func TestLoadTuningEmptyPath(t *testing.T) {
	tn, err := LoadTuning("")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if tn.Player.Health != 100 {
		t.Errorf("Expected default health 100, got %v", tn.Player.Health)
	}
}

func TestLoadTuningOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.toml")
	body := `
[player]
speed = 300.0

[weapons.basic]
damage = 15.0

[spawn]
max_spawns_per_frame = 3
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	tn, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if tn.Player.Speed != 300 {
		t.Errorf("Expected speed 300, got %v", tn.Player.Speed)
	}
	if tn.Weapons.Basic.Damage != 15 {
		t.Errorf("Expected basic damage 15, got %v", tn.Weapons.Basic.Damage)
	}
	if tn.Weapons.Basic.CooldownMs != 600 {
		t.Errorf("Expected untouched cooldown 600, got %v", tn.Weapons.Basic.CooldownMs)
	}
	if tn.Spawn.MaxSpawnsPerFrame != 3 {
		t.Errorf("Expected 3 spawns per frame, got %d", tn.Spawn.MaxSpawnsPerFrame)
	}
}

func TestLoadTuningRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.toml")
	if err := os.WriteFile(path, []byte("[player]\nsped = 1.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadTuning(path); err == nil {
		t.Error("Expected error for unknown key")
	}
}

func TestLoadTuningRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.toml")
	if err := os.WriteFile(path, []byte("[enemies.tank]\narmor = 1.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadTuning(path)
	if !errors.Is(err, ErrInvalidTuning) {
		t.Errorf("Expected ErrInvalidTuning, got %v", err)
	}
}

func TestServerFromEnv(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("TICK_RATE", "30")

	cfg := ServerFromEnv()
	if cfg.Port != 8081 {
		t.Errorf("Expected port 8081, got %d", cfg.Port)
	}
	if cfg.TickRate != 30 {
		t.Errorf("Expected tick rate 30, got %d", cfg.TickRate)
	}
	if cfg.BroadcastIntervalMs != 50 {
		t.Errorf("Expected default broadcast interval 50, got %d", cfg.BroadcastIntervalMs)
	}
}

func TestStorageFromEnvEventLogCanBeDisabled(t *testing.T) {
	t.Setenv("EVENT_LOG_PATH", "")

	cfg := StorageFromEnv()
	if cfg.EventLogPath != "" {
		t.Errorf("Expected empty event log path, got %q", cfg.EventLogPath)
	}
}
