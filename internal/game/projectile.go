package game

// Projectile is a player-owned shot travelling in a straight line.
type Projectile struct {
	X, Y     float64
	DX, DY   float64 // px/s
	Damage   float64
	Color    string
	Size     float64
	LifeMs   float64
	Critical bool
}

// Circle implements spatial.Collider.
func (p *Projectile) Circle() (float64, float64, float64) { return p.X, p.Y, p.Size }

// ExpOrb is dropped by a dying enemy and carries its exp value.
type ExpOrb struct {
	X, Y   float64
	Value  int
	LifeMs float64
}

// Circle implements spatial.Collider.
func (o *ExpOrb) Circle() (float64, float64, float64) { return o.X, o.Y, expOrbRadius }

// LootBox opens a loot choice when the player walks over it.
type LootBox struct {
	X, Y   float64
	LifeMs float64
	Opened bool
}

// Circle implements spatial.Collider.
func (b *LootBox) Circle() (float64, float64, float64) { return b.X, b.Y, lootBoxRadius }

const (
	expOrbRadius  = 5
	lootBoxRadius = 12
)
