package game

import (
	"fmt"
	"strings"

	"neon-survivor/internal/config"
)

// EnemyKind identifies an enemy archetype.
type EnemyKind uint8

const (
	EnemyDrone EnemyKind = iota
	EnemyHunter
	EnemyTank
	EnemyAssassin
	EnemyBrute
)

// String returns the archetype name used in snapshots and events.
func (k EnemyKind) String() string {
	switch k {
	case EnemyDrone:
		return "DRONE"
	case EnemyHunter:
		return "HUNTER"
	case EnemyTank:
		return "TANK"
	case EnemyAssassin:
		return "ASSASSIN"
	case EnemyBrute:
		return "BRUTE"
	default:
		return "UNKNOWN"
	}
}

// ParseEnemyKind is the inverse of String (case-insensitive).
func ParseEnemyKind(s string) (EnemyKind, error) {
	switch strings.ToUpper(s) {
	case "DRONE":
		return EnemyDrone, nil
	case "HUNTER":
		return EnemyHunter, nil
	case "TANK":
		return EnemyTank, nil
	case "ASSASSIN":
		return EnemyAssassin, nil
	case "BRUTE":
		return EnemyBrute, nil
	}
	return EnemyDrone, fmt.Errorf("unknown enemy kind %q", s)
}

// Enemy is a hostile unit. Its stats are frozen at spawn time.
type Enemy struct {
	X, Y      float64
	Kind      EnemyKind
	Size      float64
	Speed     float64
	Health    float64
	MaxHealth float64
	Damage    float64
	Color     string
	Exp       int
	Armor     float64
}

// Circle implements spatial.Collider.
func (e *Enemy) Circle() (float64, float64, float64) { return e.X, e.Y, e.Size }

// archetype returns the base stats for kind.
func archetype(t config.EnemyTable, kind EnemyKind) config.EnemyStats {
	switch kind {
	case EnemyHunter:
		return t.Hunter
	case EnemyTank:
		return t.Tank
	case EnemyAssassin:
		return t.Assassin
	case EnemyBrute:
		return t.Brute
	default:
		return t.Drone
	}
}
