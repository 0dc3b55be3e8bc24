package game

import (
	"math"

	"neon-survivor/internal/config"
)

// MaxArmor caps damage reduction for players and enemies alike.
const MaxArmor = 0.9

// Input is the latest movement intent received from a client.
// The pointer only drives the reticle; aiming is automatic.
type Input struct {
	Up       bool    `json:"up" msgpack:"up"`
	Down     bool    `json:"down" msgpack:"down"`
	Left     bool    `json:"left" msgpack:"left"`
	Right    bool    `json:"right" msgpack:"right"`
	PointerX float64 `json:"pointerX" msgpack:"pointerX"`
	PointerY float64 `json:"pointerY" msgpack:"pointerY"`
}

// Player is the single player-controlled avatar.
type Player struct {
	X, Y      float64
	Size      float64
	Speed     float64 // px/s
	Health    float64
	MaxHealth float64
	Armor     float64 // fractional damage reduction, [0, MaxArmor]

	Level     int
	Exp       int
	ExpToNext int

	Invulnerable   bool
	InvulnerableMs float64 // remaining window

	ExpMagnet   bool
	HealthRegen float64 // hp/s

	invulnWindowMs float64
	expGrowth      float64
}

// NewPlayer creates a level-1 player at (x, y).
func NewPlayer(t config.PlayerTuning, x, y float64) *Player {
	growth := t.LevelExpGrowth
	if growth < 1 {
		growth = 1
	}
	return &Player{
		X:              x,
		Y:              y,
		Size:           t.Size,
		Speed:          t.Speed,
		Health:         t.Health,
		MaxHealth:      t.Health,
		Level:          1,
		ExpToNext:      t.ExpToNext,
		invulnWindowMs: t.InvulnerabilityMs,
		expGrowth:      growth,
	}
}

// Circle implements spatial.Collider.
func (p *Player) Circle() (float64, float64, float64) { return p.X, p.Y, p.Size }

// Update counts down invulnerability, applies regen and moves the player by
// the normalized intent vector, clamped to the canvas.
func (p *Player) Update(deltaMs float64, in Input, bounds config.CanvasConfig) {
	if p.Invulnerable {
		p.InvulnerableMs -= deltaMs
		if p.InvulnerableMs <= 0 {
			p.Invulnerable = false
			p.InvulnerableMs = 0
		}
	}

	if p.HealthRegen > 0 {
		p.Health = math.Min(p.MaxHealth, p.Health+p.HealthRegen*deltaMs/1000)
	}

	var dx, dy float64
	if in.Up {
		dy--
	}
	if in.Down {
		dy++
	}
	if in.Left {
		dx--
	}
	if in.Right {
		dx++
	}
	if l := math.Hypot(dx, dy); l > 0 {
		dx /= l
		dy /= l
	}

	step := p.Speed * deltaMs / 1000
	p.X = clamp(p.X+dx*step, p.Size, bounds.Width-p.Size)
	p.Y = clamp(p.Y+dy*step, p.Size, bounds.Height-p.Size)
}

// TakeDamage applies armor-reduced damage and starts the invulnerability
// window. It is a no-op while invulnerable. Returns true when the hit is lethal.
func (p *Player) TakeDamage(damage float64) bool {
	if p.Invulnerable {
		return false
	}
	p.Health = math.Max(0, p.Health-effectiveDamage(damage, p.Armor))
	p.Invulnerable = true
	p.InvulnerableMs = p.invulnWindowMs
	return p.Health <= 0
}

// AddExp adds exp and reports whether the next threshold has been reached.
func (p *Player) AddExp(amount int) bool {
	p.Exp += amount
	return p.Exp >= p.ExpToNext
}

// LevelUp consumes one threshold worth of exp.
func (p *Player) LevelUp() {
	p.Level++
	p.Exp -= p.ExpToNext
	p.ExpToNext = p.nextThreshold(p.ExpToNext)
}

func (p *Player) nextThreshold(current int) int {
	next := int(math.Floor(float64(current) * p.expGrowth))
	if next < 1 {
		next = 1
	}
	return next
}

// Heal restores health up to MaxHealth.
func (p *Player) Heal(amount float64) {
	p.Health = math.Min(p.MaxHealth, p.Health+amount)
}

// IncreaseMaxHealth raises both max and current health.
func (p *Player) IncreaseMaxHealth(amount float64) {
	p.MaxHealth += amount
	p.Health += amount
}

func (p *Player) IncreaseSpeed(amount float64) {
	p.Speed += amount
}

// SetArmor sets damage reduction, clamped to [0, MaxArmor].
func (p *Player) SetArmor(armor float64) {
	p.Armor = clamp(armor, 0, MaxArmor)
}

// HealthPercent returns health as a percentage of max health.
func (p *Player) HealthPercent() float64 {
	if p.MaxHealth <= 0 {
		return 0
	}
	return p.Health / p.MaxHealth * 100
}
