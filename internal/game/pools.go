package game

import "neon-survivor/internal/game/pool"

// Initial free-list sizes per entity kind.
const (
	initialEnemies     = 50
	initialProjectiles = 100
	initialParticles   = 200
	initialExpOrbs     = 50
	initialLootBoxes   = 10
)

// Pools bundles one record pool per recyclable entity kind.
type Pools struct {
	Enemies     *pool.Pool[Enemy]
	Projectiles *pool.Pool[Projectile]
	Particles   *pool.Pool[Particle]
	ExpOrbs     *pool.Pool[ExpOrb]
	LootBoxes   *pool.Pool[LootBox]
}

// NewPools pre-allocates every pool.
func NewPools() *Pools {
	return &Pools{
		Enemies:     pool.New[Enemy](initialEnemies),
		Projectiles: pool.New[Projectile](initialProjectiles),
		Particles:   pool.New[Particle](initialParticles),
		ExpOrbs:     pool.New[ExpOrb](initialExpOrbs),
		LootBoxes:   pool.New[LootBox](initialLootBoxes),
	}
}

// Stats reports active/free counts keyed by kind.
func (p *Pools) Stats() map[string]pool.Stats {
	return map[string]pool.Stats{
		"enemies":     p.Enemies.Stats(),
		"projectiles": p.Projectiles.Stats(),
		"particles":   p.Particles.Stats(),
		"expOrbs":     p.ExpOrbs.Stats(),
		"lootBoxes":   p.LootBoxes.Stats(),
	}
}

// ReleaseAll returns every record to its free list.
func (p *Pools) ReleaseAll() {
	p.Enemies.ReleaseAll()
	p.Projectiles.ReleaseAll()
	p.Particles.ReleaseAll()
	p.ExpOrbs.ReleaseAll()
	p.LootBoxes.ReleaseAll()
}
