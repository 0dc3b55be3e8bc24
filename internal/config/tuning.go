package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// GAMEPLAY TUNING
// =============================================================================

// PlayerTuning holds the starting player stats.
type PlayerTuning struct {
	Size              float64 `toml:"size" json:"size"`
	Speed             float64 `toml:"speed" json:"speed"` // px/s
	Health            float64 `toml:"health" json:"health"`
	InvulnerabilityMs float64 `toml:"invulnerability_ms" json:"invulnerabilityMs"`
	ExpToNext         int     `toml:"exp_to_next" json:"expToNext"`
	LevelExpGrowth    float64 `toml:"level_exp_growth" json:"levelExpGrowth"`
}

// WeaponStats is one weapon archetype. Count > 1 fans out projectiles.
type WeaponStats struct {
	Name        string  `toml:"name" json:"name"`
	Damage      float64 `toml:"damage" json:"damage"`
	Speed       float64 `toml:"speed" json:"speed"` // projectile px/s
	CooldownMs  float64 `toml:"cooldown_ms" json:"cooldownMs"`
	Color       string  `toml:"color" json:"color"`
	Size        float64 `toml:"size" json:"size"`
	UnlockLevel int     `toml:"unlock_level" json:"unlockLevel"`
	Count       int     `toml:"count" json:"count"`
}

// WeaponTable holds every weapon the player can own.
type WeaponTable struct {
	Basic  WeaponStats `toml:"basic" json:"basic"`
	Spread WeaponStats `toml:"spread" json:"spread"`
	Laser  WeaponStats `toml:"laser" json:"laser"`
}

// EnemyStats is one enemy archetype before difficulty scaling.
type EnemyStats struct {
	Size   float64 `toml:"size" json:"size"`
	Speed  float64 `toml:"speed" json:"speed"`
	Health float64 `toml:"health" json:"health"`
	Damage float64 `toml:"damage" json:"damage"`
	Color  string  `toml:"color" json:"color"`
	Exp    int     `toml:"exp" json:"exp"`
	Armor  float64 `toml:"armor" json:"armor"`
}

// EnemyTable holds every enemy archetype.
type EnemyTable struct {
	Drone    EnemyStats `toml:"drone" json:"drone"`
	Hunter   EnemyStats `toml:"hunter" json:"hunter"`
	Tank     EnemyStats `toml:"tank" json:"tank"`
	Assassin EnemyStats `toml:"assassin" json:"assassin"`
	Brute    EnemyStats `toml:"brute" json:"brute"`
}

// GameTuning holds global lifetimes, caps and pickup constants.
type GameTuning struct {
	MaxParticles        int     `toml:"max_particles" json:"maxParticles"`
	ProjectileLifeMs    float64 `toml:"projectile_life_ms" json:"projectileLifeMs"`
	ExpOrbLifeMs        float64 `toml:"exp_orb_life_ms" json:"expOrbLifeMs"`
	LootBoxLifeMs       float64 `toml:"loot_box_life_ms" json:"lootBoxLifeMs"`
	LootBoxChance       float64 `toml:"loot_box_chance" json:"lootBoxChance"`
	ExpAttractionRange  float64 `toml:"exp_attraction_range" json:"expAttractionRange"`
	ExpBaseSpeed        float64 `toml:"exp_base_speed" json:"expBaseSpeed"`
	ExpMagnetMultiplier float64 `toml:"exp_magnet_multiplier" json:"expMagnetMultiplier"`
	MinWeaponCooldownMs float64 `toml:"min_weapon_cooldown_ms" json:"minWeaponCooldownMs"`
	MaxFrameDeltaMs     float64 `toml:"max_frame_delta_ms" json:"maxFrameDeltaMs"`
}

// SpeedCaps bounds the difficulty multiplier applied to fast archetypes.
type SpeedCaps struct {
	Hunter   float64 `toml:"hunter" json:"hunter"`
	Assassin float64 `toml:"assassin" json:"assassin"`
}

// SpawnTuning drives the spawn accumulator.
type SpawnTuning struct {
	BaseSpawnRate        float64   `toml:"base_spawn_rate" json:"baseSpawnRate"`
	DifficultyScale      float64   `toml:"difficulty_scale" json:"difficultyScale"`
	MaxSpawnsPerFrame    int       `toml:"max_spawns_per_frame" json:"maxSpawnsPerFrame"`
	AccumulatorThreshold float64   `toml:"accumulator_threshold" json:"accumulatorThreshold"`
	TypeSpeedCaps        SpeedCaps `toml:"type_speed_caps" json:"typeSpeedCaps"`
}

// ProgressionTuning holds the match-end point economy.
type ProgressionTuning struct {
	PointThresholds   []int `toml:"point_thresholds" json:"pointThresholds"`
	MaxPointsPerMatch int   `toml:"max_points_per_match" json:"maxPointsPerMatch"`
}

// VisualTuning holds particle spawn ranges and hit feedback.
type VisualTuning struct {
	ParticleLifeMin float64 `toml:"particle_life_min" json:"particleLifeMin"`
	ParticleLifeMax float64 `toml:"particle_life_max" json:"particleLifeMax"`
	ParticleSizeMin float64 `toml:"particle_size_min" json:"particleSizeMin"`
	ParticleSizeMax float64 `toml:"particle_size_max" json:"particleSizeMax"`
	ParticleSpeed   float64 `toml:"particle_speed" json:"particleSpeed"`
	Knockback       float64 `toml:"knockback" json:"knockback"`
	ShakeIntensity  float64 `toml:"shake_intensity" json:"shakeIntensity"`
	ShakeMs         float64 `toml:"shake_ms" json:"shakeMs"`
}

// QuadtreeTuning sizes the spatial index.
type QuadtreeTuning struct {
	Capacity int `toml:"capacity" json:"capacity"`
	MaxDepth int `toml:"max_depth" json:"maxDepth"`
}

// Tuning is the read-only table every system is built from.
type Tuning struct {
	Canvas      CanvasConfig      `toml:"canvas" json:"canvas"`
	Player      PlayerTuning      `toml:"player" json:"player"`
	Weapons     WeaponTable       `toml:"weapons" json:"weapons"`
	Enemies     EnemyTable        `toml:"enemies" json:"enemies"`
	Game        GameTuning        `toml:"game" json:"game"`
	Spawn       SpawnTuning       `toml:"spawn" json:"spawn"`
	Progression ProgressionTuning `toml:"progression" json:"progression"`
	Visual      VisualTuning      `toml:"visual" json:"visual"`
	Quadtree    QuadtreeTuning    `toml:"quadtree" json:"quadtree"`
}

// DefaultTuning returns the shipped balance.
func DefaultTuning() Tuning {
	return Tuning{
		Canvas: DefaultCanvas(),
		Player: PlayerTuning{
			Size:              20,
			Speed:             220,
			Health:            100,
			InvulnerabilityMs: 800,
			ExpToNext:         10,
			LevelExpGrowth:    1.2,
		},
		Weapons: WeaponTable{
			Basic:  WeaponStats{Name: "Neon Blaster", Damage: 12, Speed: 900, CooldownMs: 600, Color: "#00ff88", Size: 4, UnlockLevel: 1, Count: 1},
			Spread: WeaponStats{Name: "Plasma Spread", Damage: 8, Speed: 700, CooldownMs: 400, Color: "#ff0088", Size: 3, UnlockLevel: 3, Count: 3},
			Laser:  WeaponStats{Name: "Cyber Laser", Damage: 20, Speed: 1600, CooldownMs: 900, Color: "#0088ff", Size: 5, UnlockLevel: 5, Count: 1},
		},
		Enemies: EnemyTable{
			Drone:    EnemyStats{Size: 18, Speed: 70, Health: 30, Damage: 10, Color: "#ff4444", Exp: 2, Armor: 0},
			Hunter:   EnemyStats{Size: 14, Speed: 120, Health: 20, Damage: 15, Color: "#ff8800", Exp: 3, Armor: 0},
			Tank:     EnemyStats{Size: 28, Speed: 40, Health: 120, Damage: 25, Color: "#8800ff", Exp: 6, Armor: 0.15},
			Assassin: EnemyStats{Size: 12, Speed: 180, Health: 18, Damage: 18, Color: "#00ffaa", Exp: 4, Armor: 0},
			Brute:    EnemyStats{Size: 34, Speed: 38, Health: 220, Damage: 32, Color: "#aa44ff", Exp: 10, Armor: 0.3},
		},
		Game: GameTuning{
			MaxParticles:        600,
			ProjectileLifeMs:    2000,
			ExpOrbLifeMs:        8000,
			LootBoxLifeMs:       12000,
			LootBoxChance:       0.18,
			ExpAttractionRange:  120,
			ExpBaseSpeed:        240,
			ExpMagnetMultiplier: 1.5,
			MinWeaponCooldownMs: 100,
			MaxFrameDeltaMs:     60,
		},
		Spawn: SpawnTuning{
			BaseSpawnRate:        0.6,
			DifficultyScale:      0.4,
			MaxSpawnsPerFrame:    5,
			AccumulatorThreshold: 800,
			TypeSpeedCaps:        SpeedCaps{Hunter: 2.2, Assassin: 2.0},
		},
		Progression: ProgressionTuning{
			PointThresholds:   []int{50, 150},
			MaxPointsPerMatch: 3,
		},
		Visual: VisualTuning{
			ParticleLifeMin: 40,
			ParticleLifeMax: 70,
			ParticleSizeMin: 1,
			ParticleSizeMax: 5,
			ParticleSpeed:   240,
			Knockback:       40,
			ShakeIntensity:  8,
			ShakeMs:         150,
		},
		Quadtree: QuadtreeTuning{
			Capacity: 8,
			MaxDepth: 6,
		},
	}
}

// LoadTuning overlays a TOML file on DefaultTuning. Keys missing from the
// file keep their defaults; unknown keys are rejected so typos surface.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	md, err := toml.DecodeFile(path, &t)
	if err != nil {
		return DefaultTuning(), fmt.Errorf("decode tuning %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return DefaultTuning(), fmt.Errorf("tuning %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	if err := t.Validate(); err != nil {
		return DefaultTuning(), fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}

// ErrInvalidTuning is wrapped by every Validate failure.
var ErrInvalidTuning = errors.New("invalid tuning")

// Validate rejects tables the simulation cannot run with.
func (t Tuning) Validate() error {
	if t.Canvas.Width <= 0 || t.Canvas.Height <= 0 {
		return fmt.Errorf("%w: canvas must be positive", ErrInvalidTuning)
	}
	if t.Player.Size <= 0 || t.Player.Speed <= 0 || t.Player.Health <= 0 || t.Player.ExpToNext <= 0 {
		return fmt.Errorf("%w: player stats must be positive", ErrInvalidTuning)
	}

	weapons := map[string]WeaponStats{"basic": t.Weapons.Basic, "spread": t.Weapons.Spread, "laser": t.Weapons.Laser}
	for id, w := range weapons {
		if w.Damage <= 0 || w.Speed <= 0 || w.CooldownMs <= 0 || w.Size <= 0 {
			return fmt.Errorf("%w: weapon %s stats must be positive", ErrInvalidTuning, id)
		}
	}

	enemies := map[string]EnemyStats{
		"drone": t.Enemies.Drone, "hunter": t.Enemies.Hunter, "tank": t.Enemies.Tank,
		"assassin": t.Enemies.Assassin, "brute": t.Enemies.Brute,
	}
	for id, e := range enemies {
		if e.Size <= 0 || e.Speed <= 0 || e.Health <= 0 {
			return fmt.Errorf("%w: enemy %s stats must be positive", ErrInvalidTuning, id)
		}
		if e.Armor < 0 || e.Armor > 0.9 {
			return fmt.Errorf("%w: enemy %s armor %.2f outside [0, 0.9]", ErrInvalidTuning, id, e.Armor)
		}
	}

	if t.Spawn.AccumulatorThreshold <= 0 || t.Spawn.MaxSpawnsPerFrame <= 0 {
		return fmt.Errorf("%w: spawn threshold and per-frame cap must be positive", ErrInvalidTuning)
	}
	if t.Game.MaxFrameDeltaMs <= 0 || t.Game.MinWeaponCooldownMs <= 0 {
		return fmt.Errorf("%w: frame delta and cooldown floor must be positive", ErrInvalidTuning)
	}
	if t.Quadtree.Capacity <= 0 || t.Quadtree.MaxDepth < 0 {
		return fmt.Errorf("%w: quadtree capacity must be positive", ErrInvalidTuning)
	}
	return nil
}
