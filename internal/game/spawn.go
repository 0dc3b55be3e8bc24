package game

import (
	"math"

	"neon-survivor/internal/config"
)

// Difficulty is the scaling state derived from match time and player level.
type Difficulty struct {
	Minutes     float64 `json:"minutes"`
	Ramp        float64 `json:"ramp"`
	Spike       float64 `json:"spike"`
	LevelFactor float64 `json:"levelFactor"`
	Total       float64 `json:"total"`
}

// ComputeDifficulty derives difficulty from elapsed match time and level.
//
//	ramp        = 1 + min(minutes*0.8, 5)
//	spike       = sin(elapsed/30000 * pi) * 0.3
//	levelFactor = max(0.7, 1 - level*0.02)
//	total       = ramp + spike
func ComputeDifficulty(elapsedMs float64, level int) Difficulty {
	minutes := elapsedMs / 60000
	ramp := 1 + math.Min(minutes*0.8, 5)
	spike := math.Sin(elapsedMs/30000*math.Pi) * 0.3
	return Difficulty{
		Minutes:     minutes,
		Ramp:        ramp,
		Spike:       spike,
		LevelFactor: math.Max(0.7, 1-float64(level)*0.02),
		Total:       ramp + spike,
	}
}

// EnemyDifficulty is the factor new enemies are scaled by. Late game gets
// a boost after two and again after five minutes.
func EnemyDifficulty(d Difficulty) float64 {
	df := d.Total
	if d.Minutes > 2 {
		df *= 1.2
	}
	if d.Minutes > 5 {
		df *= 1.5
	}
	return df
}

// SpawnAccumulator converts elapsed time into a whole number of spawns.
type SpawnAccumulator struct {
	Value float64
}

// Advance adds this frame's spawn pressure and returns how many enemies to
// spawn, at most MaxSpawnsPerFrame. Whole thresholds are subtracted only for
// spawns actually returned, so capped pressure carries over.
func (a *SpawnAccumulator) Advance(deltaMs float64, d Difficulty, cfg config.SpawnTuning) int {
	a.Value += deltaMs * (cfg.BaseSpawnRate + d.Total*cfg.DifficultyScale) * d.LevelFactor

	n := int(math.Floor(a.Value / cfg.AccumulatorThreshold))
	if n > cfg.MaxSpawnsPerFrame {
		n = cfg.MaxSpawnsPerFrame
	}
	if n < 0 {
		n = 0
	}
	a.Value -= float64(n) * cfg.AccumulatorThreshold
	return n
}

// Reset clears carried pressure.
func (a *SpawnAccumulator) Reset() { a.Value = 0 }

// RollEnemyKind picks an archetype for difficulty df using a uniform roll in [0, 1).
func RollEnemyKind(df, roll float64) EnemyKind {
	switch {
	case df > 5:
		switch {
		case roll > 0.85:
			return EnemyBrute
		case roll > 0.6:
			return EnemyAssassin
		case roll > 0.35:
			return EnemyTank
		default:
			return EnemyHunter
		}
	case df > 3:
		switch {
		case roll > 0.75:
			return EnemyTank
		case roll > 0.45:
			return EnemyHunter
		case roll > 0.3:
			return EnemyAssassin
		}
	case df > 2:
		switch {
		case roll > 0.8:
			return EnemyTank
		case roll > 0.4:
			return EnemyHunter
		}
	case df > 1.5:
		switch {
		case roll > 0.9:
			return EnemyTank
		case roll > 0.6:
			return EnemyHunter
		}
	}
	return EnemyDrone
}

// speedCap returns the difficulty cap on speed scaling for kind, or +Inf.
func speedCap(kind EnemyKind, caps config.SpeedCaps) float64 {
	switch kind {
	case EnemyHunter:
		return caps.Hunter
	case EnemyAssassin:
		return caps.Assassin
	}
	return math.Inf(1)
}

// NewEnemyFromArchetype scales an archetype by df.
//
//	speed  = base * min(df, cap(kind))
//	health = floor(base * df)
//	damage = max(1, floor(base * df))
func NewEnemyFromArchetype(kind EnemyKind, stats config.EnemyStats, df, x, y float64, caps config.SpeedCaps) Enemy {
	health := math.Floor(stats.Health * df)
	return Enemy{
		X:         x,
		Y:         y,
		Kind:      kind,
		Size:      stats.Size,
		Speed:     stats.Speed * math.Min(df, speedCap(kind, caps)),
		Health:    health,
		MaxHealth: health,
		Damage:    math.Max(1, math.Floor(stats.Damage*df)),
		Color:     stats.Color,
		Exp:       stats.Exp,
		Armor:     clamp(stats.Armor, 0, MaxArmor),
	}
}

// SpawnPosition places an entity just outside the given canvas edge.
// side is 0 top, 1 right, 2 bottom, 3 left; t in [0, 1) is the position along it.
func SpawnPosition(side int, t, size float64, canvas config.CanvasConfig) (float64, float64) {
	switch side & 3 {
	case 0:
		return t * canvas.Width, -size
	case 1:
		return canvas.Width + size, t * canvas.Height
	case 2:
		return t * canvas.Width, canvas.Height + size
	default:
		return -size, t * canvas.Height
	}
}
