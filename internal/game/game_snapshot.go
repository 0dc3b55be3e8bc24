package game

import (
	"sync"
	"sync/atomic"
	"time"

	"neon-survivor/internal/config"
)

// Match status strings carried by snapshots.
const (
	StatusDemo     = "demo"
	StatusRunning  = "running"
	StatusPaused   = "paused"
	StatusChoosing = "choosing"
)

// PlayerSnapshot is an immutable copy of player state for rendering
type PlayerSnapshot struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Size         float64 `json:"size"`
	Speed        float64 `json:"speed"`
	Health       float64 `json:"health"`
	MaxHealth    float64 `json:"maxHealth"`
	Armor        float64 `json:"armor"`
	Level        int     `json:"level"`
	Exp          int     `json:"exp"`
	ExpToNext    int     `json:"expToNext"`
	Invulnerable bool    `json:"invulnerable"`
	ExpMagnet    bool    `json:"expMagnet"`
	HealthRegen  float64 `json:"healthRegen"`
	PointerX     float64 `json:"pointerX"`
	PointerY     float64 `json:"pointerY"`
}

// EnemySnapshot is an immutable enemy for rendering
type EnemySnapshot struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Kind      string  `json:"kind"`
	Size      float64 `json:"size"`
	Health    float64 `json:"health"`
	MaxHealth float64 `json:"maxHealth"`
	Color     string  `json:"color"`
}

// ProjectileSnapshot is an immutable projectile for rendering
type ProjectileSnapshot struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Size     float64 `json:"size"`
	Color    string  `json:"color"`
	Critical bool    `json:"critical,omitempty"`
}

// OrbSnapshot is an immutable exp orb
type OrbSnapshot struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value int     `json:"value"`
}

// LootSnapshot is an immutable loot box
type LootSnapshot struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	LifeMs float64 `json:"lifeMs"`
}

// ParticleSnapshot is an immutable particle for rendering
type ParticleSnapshot struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Size  float64 `json:"size"`
	Color string  `json:"color"`
	Alpha float64 `json:"alpha"`
}

// ShakeSnapshot captures screen shake state
type ShakeSnapshot struct {
	Intensity float64 `json:"intensity"`
	TimeMs    float64 `json:"timeMs"`
}

// ChoiceSnapshot is the open modal, if any.
type ChoiceSnapshot struct {
	Kind    string   `json:"kind"`
	Options []Choice `json:"options"`
}

// Snapshot is a complete immutable frame for rendering and broadcast.
// All slices are pre-allocated and capped by the resource limits.
type Snapshot struct {
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	TickNumber uint64    `json:"tick"`

	MatchID   string  `json:"matchId,omitempty"`
	Status    string  `json:"status"`
	ElapsedMs float64 `json:"elapsedMs"`
	Paused    bool    `json:"paused"`
	Highscore int     `json:"highscore"`
	Kills     int     `json:"kills"`

	Canvas     config.CanvasConfig `json:"canvas"`
	Difficulty Difficulty          `json:"difficulty"`
	Choice     ChoiceSnapshot      `json:"choice"`

	HasPlayer bool           `json:"hasPlayer"`
	Player    PlayerSnapshot `json:"player"`
	Weapons   []string       `json:"weapons"`
	DemoX     float64        `json:"demoX"`
	DemoY     float64        `json:"demoY"`

	Enemies     []EnemySnapshot      `json:"enemies"`
	Projectiles []ProjectileSnapshot `json:"projectiles"`
	ExpOrbs     []OrbSnapshot        `json:"expOrbs"`
	LootBoxes   []LootSnapshot       `json:"lootBoxes"`
	Particles   []ParticleSnapshot   `json:"particles"`
	Shake       ShakeSnapshot        `json:"shake"`
	Sfx         []string             `json:"sfx"`
}

// Clone returns a deep copy that shares no slices with s.
func (s *Snapshot) Clone() Snapshot {
	c := *s
	c.Choice.Options = append([]Choice(nil), s.Choice.Options...)
	c.Weapons = append([]string(nil), s.Weapons...)
	c.Enemies = append([]EnemySnapshot(nil), s.Enemies...)
	c.Projectiles = append([]ProjectileSnapshot(nil), s.Projectiles...)
	c.ExpOrbs = append([]OrbSnapshot(nil), s.ExpOrbs...)
	c.LootBoxes = append([]LootSnapshot(nil), s.LootBoxes...)
	c.Particles = append([]ParticleSnapshot(nil), s.Particles...)
	c.Sfx = append([]string(nil), s.Sfx...)
	return c
}

type snapshotSlot struct {
	mu   sync.RWMutex
	snap Snapshot
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure.
//
// Triple buffering: the single producer fills one slot while readers see the
// last published one. Each slot carries its own RWMutex, so a slow reader can
// only delay the producer when it is still holding a slot two frames old.
type SnapshotPool struct {
	slots     [3]snapshotSlot
	limits    config.ResourceLimits
	writeIdx  atomic.Uint32
	readIdx   atomic.Uint32
	sequence  atomic.Uint64
	published atomic.Bool
	writing   *snapshotSlot
}

// NewSnapshotPool creates a pool with pre-allocated slices
func NewSnapshotPool(limits config.ResourceLimits) *SnapshotPool {
	pool := &SnapshotPool{limits: limits}
	for i := range pool.slots {
		pool.slots[i].snap = Snapshot{
			Enemies:     make([]EnemySnapshot, 0, limits.MaxEnemies),
			Projectiles: make([]ProjectileSnapshot, 0, limits.MaxProjectiles),
			ExpOrbs:     make([]OrbSnapshot, 0, limits.MaxExpOrbs),
			LootBoxes:   make([]LootSnapshot, 0, limits.MaxLootBoxes),
			Particles:   make([]ParticleSnapshot, 0, limits.MaxParticles),
			Sfx:         make([]string, 0, limits.MaxSfx),
			Weapons:     make([]string, 0, 3),
		}
	}
	return pool
}

// AcquireWrite locks the next write slot and resets it, keeping capacity.
// Producer only; must be paired with PublishWrite.
func (p *SnapshotPool) AcquireWrite() *Snapshot {
	idx := p.writeIdx.Add(1) % 3
	slot := &p.slots[idx]
	slot.mu.Lock()
	p.writing = slot

	snap := &slot.snap
	snap.Enemies = snap.Enemies[:0]
	snap.Projectiles = snap.Projectiles[:0]
	snap.ExpOrbs = snap.ExpOrbs[:0]
	snap.LootBoxes = snap.LootBoxes[:0]
	snap.Particles = snap.Particles[:0]
	snap.Sfx = snap.Sfx[:0]
	snap.Weapons = snap.Weapons[:0]
	snap.Choice = ChoiceSnapshot{Kind: ChoiceNone.String()}
	snap.Player = PlayerSnapshot{}
	snap.HasPlayer = false
	snap.Shake = ShakeSnapshot{}

	snap.Sequence = p.sequence.Add(1)
	snap.Timestamp = time.Now()
	return snap
}

// PublishWrite unlocks the written slot and makes it the latest.
func (p *SnapshotPool) PublishWrite() {
	if p.writing == nil {
		return
	}
	p.writing.mu.Unlock()
	p.writing = nil
	p.readIdx.Store(p.writeIdx.Load())
	p.published.Store(true)
}

// View calls fn with the latest published snapshot under a read lock.
// fn must not retain the pointer. Returns false before the first publish.
func (p *SnapshotPool) View(fn func(*Snapshot)) bool {
	if !p.published.Load() {
		return false
	}
	slot := &p.slots[p.readIdx.Load()%3]
	slot.mu.RLock()
	defer slot.mu.RUnlock()
	fn(&slot.snap)
	return true
}

// Latest returns a deep copy of the latest published snapshot.
func (p *SnapshotPool) Latest() (Snapshot, bool) {
	var out Snapshot
	ok := p.View(func(s *Snapshot) { out = s.Clone() })
	return out, ok
}

// GetLimits returns the resource limits
func (p *SnapshotPool) GetLimits() config.ResourceLimits {
	return p.limits
}

// fillSnapshot copies world state into snap, honoring the per-kind limits.
func fillSnapshot(snap *Snapshot, w *World, limits config.ResourceLimits) {
	m := w.match
	snap.MatchID = m.ID
	snap.ElapsedMs = m.ElapsedMs
	snap.Paused = m.Paused
	snap.Kills = m.Kills
	snap.Canvas = w.canvas
	snap.Difficulty = w.difficulty

	switch {
	case !m.Running:
		snap.Status = StatusDemo
	case w.choice.Open():
		snap.Status = StatusChoosing
	case m.Paused:
		snap.Status = StatusPaused
	default:
		snap.Status = StatusRunning
	}

	if w.choice.Open() {
		snap.Choice = ChoiceSnapshot{Kind: w.choice.Kind.String(), Options: w.choice.Options}
	}

	if p := w.player; p != nil {
		snap.HasPlayer = true
		snap.Player = PlayerSnapshot{
			X: p.X, Y: p.Y, Size: p.Size, Speed: p.Speed,
			Health: p.Health, MaxHealth: p.MaxHealth, Armor: p.Armor,
			Level: p.Level, Exp: p.Exp, ExpToNext: p.ExpToNext,
			Invulnerable: p.Invulnerable, ExpMagnet: p.ExpMagnet, HealthRegen: p.HealthRegen,
			PointerX: w.input.PointerX, PointerY: w.input.PointerY,
		}
	}
	if w.weapons != nil {
		snap.Weapons = append(snap.Weapons, w.weapons.active...)
	}
	snap.DemoX, snap.DemoY = w.demo.X, w.demo.Y

	for _, e := range w.enemies {
		if len(snap.Enemies) >= limits.MaxEnemies {
			break
		}
		snap.Enemies = append(snap.Enemies, EnemySnapshot{
			X: e.X, Y: e.Y, Kind: e.Kind.String(), Size: e.Size,
			Health: e.Health, MaxHealth: e.MaxHealth, Color: e.Color,
		})
	}
	for _, p := range w.projectiles {
		if len(snap.Projectiles) >= limits.MaxProjectiles {
			break
		}
		snap.Projectiles = append(snap.Projectiles, ProjectileSnapshot{
			X: p.X, Y: p.Y, Size: p.Size, Color: p.Color, Critical: p.Critical,
		})
	}
	for _, o := range w.orbs {
		if len(snap.ExpOrbs) >= limits.MaxExpOrbs {
			break
		}
		snap.ExpOrbs = append(snap.ExpOrbs, OrbSnapshot{X: o.X, Y: o.Y, Value: o.Value})
	}
	for _, b := range w.loot {
		if len(snap.LootBoxes) >= limits.MaxLootBoxes {
			break
		}
		snap.LootBoxes = append(snap.LootBoxes, LootSnapshot{X: b.X, Y: b.Y, LifeMs: b.LifeMs})
	}
	for _, p := range w.particles {
		if len(snap.Particles) >= limits.MaxParticles {
			break
		}
		snap.Particles = append(snap.Particles, ParticleSnapshot{
			X: p.X, Y: p.Y, Size: p.Size, Color: p.Color, Alpha: p.Alpha(),
		})
	}
	for _, c := range w.cues {
		if len(snap.Sfx) >= limits.MaxSfx {
			break
		}
		snap.Sfx = append(snap.Sfx, string(c))
	}
	snap.Shake = ShakeSnapshot{Intensity: w.shake.Intensity, TimeMs: w.shake.TimeMs}
}
