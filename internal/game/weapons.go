package game

import (
	"math"
	"math/rand"

	"neon-survivor/internal/config"
)

// Weapon IDs as used by the tuning table and unlock choices.
const (
	WeaponBasic  = "basic"
	WeaponSpread = "spread"
	WeaponLaser  = "laser"
)

const (
	spreadAngle   = 0.3 // radians between fanned projectiles
	critColor     = "#ffffff"
	critSizeScale = 1.5
)

// Weapon is one owned weapon with its mutable upgrade state.
// Stats.Damage stays the base damage; upgrades live in DamageMultiplier.
type Weapon struct {
	ID               string             `json:"id"`
	Stats            config.WeaponStats `json:"stats"`
	DamageMultiplier float64            `json:"damageMultiplier"`
	SinceFireMs      float64            `json:"sinceFireMs"`
}

// ShotDamage is round(base * (1 + multiplier)).
func (w *Weapon) ShotDamage() float64 {
	return math.Round(w.Stats.Damage * (1 + w.DamageMultiplier))
}

// WeaponSystem owns every weapon and decides when each one fires.
//
// Each weapon keeps its own time-since-last-fire accumulator, advanced by the
// frame delta, so paused time never counts toward a cooldown.
type WeaponSystem struct {
	weapons        map[string]*Weapon
	order          []string
	active         []string
	CriticalChance float64

	projectileLifeMs float64
	minCooldownMs    float64
}

// NewWeaponSystem copies the weapon table. Only the basic weapon starts active.
func NewWeaponSystem(t config.Tuning) *WeaponSystem {
	ws := &WeaponSystem{
		weapons:          make(map[string]*Weapon, 3),
		order:            []string{WeaponBasic, WeaponSpread, WeaponLaser},
		active:           []string{WeaponBasic},
		projectileLifeMs: t.Game.ProjectileLifeMs,
		minCooldownMs:    t.Game.MinWeaponCooldownMs,
	}
	for id, stats := range map[string]config.WeaponStats{
		WeaponBasic:  t.Weapons.Basic,
		WeaponSpread: t.Weapons.Spread,
		WeaponLaser:  t.Weapons.Laser,
	} {
		if stats.Count < 1 {
			stats.Count = 1
		}
		// Ready to fire on the first frame with a target.
		ws.weapons[id] = &Weapon{ID: id, Stats: stats, SinceFireMs: stats.CooldownMs}
	}
	return ws
}

// Update advances every active weapon's accumulator and fires those whose
// cooldown has elapsed at the enemy nearest to the player. Each projectile
// is handed to emit. Returns the number of projectiles fired.
func (ws *WeaponSystem) Update(deltaMs float64, p *Player, enemies []*Enemy, rng *rand.Rand, emit func(Projectile)) int {
	fired := 0
	var target *Enemy
	targeted := false

	for _, id := range ws.active {
		w := ws.weapons[id]
		w.SinceFireMs += deltaMs
		if w.SinceFireMs < w.Stats.CooldownMs {
			continue
		}

		if !targeted {
			target = nearestEnemy(p.X, p.Y, enemies)
			targeted = true
		}
		if target == nil {
			continue
		}

		w.SinceFireMs = 0
		fired += ws.fire(w, p, target, rng, emit)
	}
	return fired
}

func (ws *WeaponSystem) fire(w *Weapon, p *Player, target *Enemy, rng *rand.Rand, emit func(Projectile)) int {
	angle := math.Atan2(target.Y-p.Y, target.X-p.X)
	count := w.Stats.Count

	for i := 0; i < count; i++ {
		a := angle + (float64(i)-float64(count-1)/2)*spreadAngle

		proj := Projectile{
			X:      p.X,
			Y:      p.Y,
			DX:     math.Cos(a) * w.Stats.Speed,
			DY:     math.Sin(a) * w.Stats.Speed,
			Damage: w.ShotDamage(),
			Color:  w.Stats.Color,
			Size:   w.Stats.Size,
			LifeMs: ws.projectileLifeMs,
		}
		if ws.CriticalChance > 0 && rng.Float64() < ws.CriticalChance {
			proj.Damage *= 2
			proj.Color = critColor
			proj.Size *= critSizeScale
			proj.Critical = true
		}
		emit(proj)
	}
	return count
}

// UpgradeDamage compounds pct into every weapon's multiplier:
// mult = (1 + mult)(1 + pct) - 1.
func (ws *WeaponSystem) UpgradeDamage(pct float64) {
	for _, w := range ws.weapons {
		w.DamageMultiplier = (1+w.DamageMultiplier)*(1+pct) - 1
	}
}

// UpgradeFireRate shortens every cooldown by pct, never below the floor.
func (ws *WeaponSystem) UpgradeFireRate(pct float64) {
	for _, w := range ws.weapons {
		w.Stats.CooldownMs = math.Max(ws.minCooldownMs, math.Floor(w.Stats.CooldownMs*(1-pct)))
	}
}

// UpgradeProjectileSpeed raises every weapon's projectile speed by pct.
func (ws *WeaponSystem) UpgradeProjectileSpeed(pct float64) {
	for _, w := range ws.weapons {
		w.Stats.Speed = math.Floor(w.Stats.Speed * (1 + pct))
	}
}

// UnlockWeapon activates a weapon. It reports whether anything changed;
// unknown and already-active weapons return false.
func (ws *WeaponSystem) UnlockWeapon(id string) bool {
	if _, ok := ws.weapons[id]; !ok || ws.IsActive(id) {
		return false
	}
	ws.active = append(ws.active, id)
	return true
}

// IsActive reports whether id is in the active list.
func (ws *WeaponSystem) IsActive(id string) bool {
	for _, a := range ws.active {
		if a == id {
			return true
		}
	}
	return false
}

// Active returns a copy of the active weapon IDs in unlock order.
func (ws *WeaponSystem) Active() []string {
	out := make([]string, len(ws.active))
	copy(out, ws.active)
	return out
}

// Weapon returns the weapon with the given ID, or nil.
func (ws *WeaponSystem) Weapon(id string) *Weapon {
	return ws.weapons[id]
}

// All returns every weapon in table order.
func (ws *WeaponSystem) All() []*Weapon {
	out := make([]*Weapon, 0, len(ws.order))
	for _, id := range ws.order {
		out = append(out, ws.weapons[id])
	}
	return out
}
