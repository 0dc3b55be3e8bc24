package game

import (
	"math"
	"math/rand"

	"neon-survivor/internal/config"
	"neon-survivor/internal/game/spatial"
)

// Cue names a sound effect triggered during a frame.
type Cue string

const (
	CueShoot  Cue = "shoot"
	CueHit    Cue = "hit"
	CuePickup Cue = "pickup"
)

// Culling margins around the canvas.
const (
	enemyCullMargin      = 2000
	projectileCullMargin = 500
	lootPickupPadding    = 20
	minPickupRadius      = 22
)

// Particle colors.
const (
	colorPlayerHit  = "#ff4444"
	colorEnemyDeath = "#00ff00"
)

// MatchState tracks the match in progress.
type MatchState struct {
	ID         string
	Running    bool
	Paused     bool
	ElapsedMs  float64 // unpaused time only
	SessionExp int
	Kills      int
	Over       bool // set on a lethal hit, cleared by EndMatch
}

// MatchResult summarizes a finished match.
type MatchResult struct {
	ID         string
	ElapsedMs  float64
	SessionExp int
	Level      int
	Kills      int
}

// WorldEvent is a gameplay event raised during a step, drained by the engine.
type WorldEvent struct {
	Type    EventType
	Payload any
}

// World is the complete simulation context. It owns every entity, the
// pools, the spatial index and the RNG. A World is not safe for concurrent
// use; the engine serializes access to it.
type World struct {
	tuning config.Tuning
	canvas config.CanvasConfig
	rng    *rand.Rand

	player  *Player
	weapons *WeaponSystem
	input   Input

	enemies     []*Enemy
	projectiles []*Projectile
	orbs        []*ExpOrb
	loot        []*LootBox
	particles   []*Particle
	shake       ScreenShake

	pools      *Pools
	tree       *spatial.Quadtree
	candidates []spatial.Collider

	spawner    SpawnAccumulator
	difficulty Difficulty

	match           MatchState
	choice          ChoiceState
	pendingLevelUps int

	demo demoState

	cues   []Cue
	events []WorldEvent
	fire   func(Projectile)
}

// NewWorld creates an idle world running the attract-mode demo.
func NewWorld(t config.Tuning, seed int64) *World {
	w := &World{
		tuning:      t,
		canvas:      t.Canvas,
		rng:         rand.New(rand.NewSource(seed)),
		enemies:     make([]*Enemy, 0, initialEnemies),
		projectiles: make([]*Projectile, 0, initialProjectiles),
		orbs:        make([]*ExpOrb, 0, initialExpOrbs),
		loot:        make([]*LootBox, 0, initialLootBoxes),
		particles:   make([]*Particle, 0, initialParticles),
		pools:       NewPools(),
		tree: spatial.NewQuadtree(
			spatial.Rect{W: t.Canvas.Width, H: t.Canvas.Height},
			t.Quadtree.Capacity, t.Quadtree.MaxDepth,
		),
		candidates: make([]spatial.Collider, 0, 64),
		difficulty: ComputeDifficulty(0, 1),
	}
	w.fire = w.addProjectile
	w.startDemo()
	return w
}

// StartMatch resets the world and begins a match with perks applied.
func (w *World) StartMatch(id string, perks PerkState) {
	w.resetEntities()

	w.player = NewPlayer(w.tuning.Player, w.canvas.Width/2, w.canvas.Height/2)
	w.weapons = NewWeaponSystem(w.tuning)
	ApplyPerks(perks, w.player, w.weapons)

	w.match = MatchState{ID: id, Running: true}
	w.choice = ChoiceState{}
	w.pendingLevelUps = 0
	w.spawner.Reset()
	w.shake = ScreenShake{}
	w.difficulty = ComputeDifficulty(0, w.player.Level)
	w.demo.active = false

	// Opening wave so the arena is never empty.
	for _, df := range []float64{1, 1.1, 1.2} {
		w.spawnRandomEnemy(df)
	}

	w.emit(EventTypeMatchStart, MatchStartPayload{
		Speed:  w.player.Speed,
		Armor:  w.player.Armor,
		Perks:  perks.Summary(),
		Canvas: w.canvas,
	})
}

// EndMatch finishes the current match and returns to the demo.
func (w *World) EndMatch() MatchResult {
	res := MatchResult{
		ID:         w.match.ID,
		ElapsedMs:  w.match.ElapsedMs,
		SessionExp: w.match.SessionExp,
		Kills:      w.match.Kills,
	}
	if w.player != nil {
		res.Level = w.player.Level
	}

	w.match = MatchState{}
	w.choice = ChoiceState{}
	w.pendingLevelUps = 0
	w.player = nil
	w.weapons = nil
	w.input = Input{}
	w.resetEntities()
	w.startDemo()
	return res
}

func (w *World) resetEntities() {
	w.pools.ReleaseAll()
	clear(w.enemies)
	clear(w.projectiles)
	clear(w.orbs)
	clear(w.loot)
	clear(w.particles)
	w.enemies = w.enemies[:0]
	w.projectiles = w.projectiles[:0]
	w.orbs = w.orbs[:0]
	w.loot = w.loot[:0]
	w.particles = w.particles[:0]
	w.tree.Clear()
}

// SetPaused pauses or resumes a running match.
func (w *World) SetPaused(paused bool) {
	if w.match.Running {
		w.match.Paused = paused
	}
}

// SetInput stores the latest movement intent.
func (w *World) SetInput(in Input) { w.input = in }

// Resize changes the play area and re-roots the spatial index.
func (w *World) Resize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	w.canvas = config.CanvasConfig{Width: width, Height: height}
	w.tree.Init(spatial.Rect{W: width, H: height})
}

// Step advances the simulation by deltaMs.
func (w *World) Step(deltaMs float64) {
	deltaMs = clamp(deltaMs, 0, w.tuning.Game.MaxFrameDeltaMs)
	w.cues = w.cues[:0]
	if w.match.Over {
		return
	}

	if w.match.Running {
		if w.match.Paused || w.choice.Open() {
			return
		}
		w.match.ElapsedMs += deltaMs
		w.difficulty = ComputeDifficulty(w.match.ElapsedMs, w.player.Level)

		n := w.spawner.Advance(deltaMs, w.difficulty, w.tuning.Spawn)
		df := EnemyDifficulty(w.difficulty)
		for i := 0; i < n; i++ {
			w.spawnRandomEnemy(df)
		}

		w.player.Update(deltaMs, w.input, w.canvas)
	} else {
		w.updateDemo(deltaMs)
	}

	w.updateEnemies(deltaMs)
	if w.match.Over {
		return
	}
	if w.match.Running {
		w.weapons.Update(deltaMs, w.player, w.enemies, w.rng, w.fire)
	}
	w.updateProjectiles(deltaMs)
	w.updateExpOrbs(deltaMs)
	w.updateLootBoxes(deltaMs)
	w.updateParticles()
	w.shake.Update(deltaMs)
	w.pumpLevelUps()
}

// =============================================================================
// SPAWNING
// =============================================================================

func (w *World) spawnRandomEnemy(df float64) *Enemy {
	return w.SpawnEnemy(RollEnemyKind(df, w.rng.Float64()), df)
}

// SpawnEnemy spawns kind scaled by df just outside a random canvas edge.
func (w *World) SpawnEnemy(kind EnemyKind, df float64) *Enemy {
	stats := archetype(w.tuning.Enemies, kind)
	x, y := SpawnPosition(w.rng.Intn(4), w.rng.Float64(), stats.Size, w.canvas)
	return w.AddEnemy(NewEnemyFromArchetype(kind, stats, df, x, y, w.tuning.Spawn.TypeSpeedCaps))
}

// AddEnemy places a fully specified enemy into the world.
func (w *World) AddEnemy(e Enemy) *Enemy {
	ptr := w.pools.Enemies.Acquire(e)
	w.enemies = append(w.enemies, ptr)
	return ptr
}

func (w *World) addProjectile(p Projectile) {
	w.projectiles = append(w.projectiles, w.pools.Projectiles.Acquire(p))
	w.emitCue(CueShoot)
}

// =============================================================================
// UPDATE PHASES
// =============================================================================

// rebuildTree reinserts every live enemy, every projectile and the player.
func (w *World) rebuildTree() {
	w.tree.Clear()
	for _, e := range w.enemies {
		if e.Health > 0 {
			w.tree.Insert(e)
		}
	}
	for _, p := range w.projectiles {
		w.tree.Insert(p)
	}
	if w.player != nil {
		w.tree.Insert(w.player)
	}
}

func (w *World) updateEnemies(deltaMs float64) {
	tx, ty, scale := w.demo.X, w.demo.Y, demoSpeedScale
	if w.match.Running {
		tx, ty, scale = w.player.X, w.player.Y, 1
	}

	for _, e := range w.enemies {
		dx, dy := tx-e.X, ty-e.Y
		if d := math.Hypot(dx, dy); d > 0 {
			step := e.Speed * scale * deltaMs / 1000
			e.X += dx / d * step
			e.Y += dy / d * step
		}
	}

	if w.match.Running {
		w.rebuildTree()
		p := w.player
		for _, e := range w.enemies {
			if p.Invulnerable {
				break
			}
			w.candidates = w.tree.Retrieve(e, w.candidates[:0])
			for _, c := range w.candidates {
				if c != p {
					continue
				}
				if distance(p.X, p.Y, e.X, e.Y) < p.Size+e.Size {
					w.hitPlayer(e)
				}
				break
			}
			if w.match.Over {
				return
			}
		}
	}

	kept := w.enemies[:0]
	for _, e := range w.enemies {
		if outside(e.X, e.Y, w.canvas.Width, w.canvas.Height, enemyCullMargin) {
			w.pools.Enemies.Release(e)
			continue
		}
		kept = append(kept, e)
	}
	clear(w.enemies[len(kept):])
	w.enemies = kept
}

func (w *World) hitPlayer(e *Enemy) {
	p := w.player
	dmg := effectiveDamage(e.Damage, p.Armor)

	if p.TakeDamage(e.Damage) {
		w.emit(EventTypePlayerHit, PlayerHitPayload{Enemy: e.Kind.String(), Damage: dmg, Health: p.Health, Lethal: true})
		w.match.Running = false
		w.match.Over = true
		return
	}

	angle := math.Atan2(p.Y-e.Y, p.X-e.X)
	p.X += math.Cos(angle) * w.tuning.Visual.Knockback
	p.Y += math.Sin(angle) * w.tuning.Visual.Knockback
	p.X = clamp(p.X, p.Size, w.canvas.Width-p.Size)
	p.Y = clamp(p.Y, p.Size, w.canvas.Height-p.Size)

	w.spawnParticles(e.X, e.Y, colorPlayerHit, 8)
	w.emitCue(CueHit)
	w.shake.Start(w.tuning.Visual.ShakeIntensity, w.tuning.Visual.ShakeMs)
	w.emit(EventTypePlayerHit, PlayerHitPayload{Enemy: e.Kind.String(), Damage: dmg, Health: p.Health})
}

func (w *World) updateProjectiles(deltaMs float64) {
	w.rebuildTree()

	kept := w.projectiles[:0]
	for _, p := range w.projectiles {
		p.X += p.DX * deltaMs / 1000
		p.Y += p.DY * deltaMs / 1000
		p.LifeMs -= deltaMs

		if w.projectileHit(p) || p.LifeMs <= 0 ||
			outside(p.X, p.Y, w.canvas.Width, w.canvas.Height, projectileCullMargin) {
			w.pools.Projectiles.Release(p)
			continue
		}
		kept = append(kept, p)
	}
	clear(w.projectiles[len(kept):])
	w.projectiles = kept

	w.reapEnemies()
}

// projectileHit damages the first live enemy p overlaps and reports whether
// the projectile was consumed.
func (w *World) projectileHit(p *Projectile) bool {
	w.candidates = w.tree.Retrieve(p, w.candidates[:0])
	for _, c := range w.candidates {
		e, ok := c.(*Enemy)
		if !ok || e.Health <= 0 {
			continue
		}
		if distance(p.X, p.Y, e.X, e.Y) >= p.Size+e.Size {
			continue
		}

		e.Health -= effectiveDamage(p.Damage, e.Armor)
		w.spawnParticles(e.X, e.Y, p.Color, 4)
		w.emitCue(CueHit)
		if e.Health <= 0 {
			w.killEnemy(e)
		}
		return true
	}
	return false
}

func (w *World) killEnemy(e *Enemy) {
	w.orbs = append(w.orbs, w.pools.ExpOrbs.Acquire(ExpOrb{
		X: e.X, Y: e.Y, Value: e.Exp, LifeMs: w.tuning.Game.ExpOrbLifeMs,
	}))
	w.spawnParticles(e.X, e.Y, colorEnemyDeath, 12)

	if w.rng.Float64() < w.tuning.Game.LootBoxChance {
		w.loot = append(w.loot, w.pools.LootBoxes.Acquire(LootBox{
			X: e.X, Y: e.Y, LifeMs: w.tuning.Game.LootBoxLifeMs,
		}))
	}

	w.match.Kills++
	w.emit(EventTypeEnemyKilled, EnemyKilledPayload{Kind: e.Kind.String(), X: e.X, Y: e.Y, Exp: e.Exp})
}

// reapEnemies releases enemies killed this frame.
func (w *World) reapEnemies() {
	kept := w.enemies[:0]
	for _, e := range w.enemies {
		if e.Health <= 0 {
			w.pools.Enemies.Release(e)
			continue
		}
		kept = append(kept, e)
	}
	clear(w.enemies[len(kept):])
	w.enemies = kept
}

func (w *World) updateExpOrbs(deltaMs float64) {
	g := w.tuning.Game
	kept := w.orbs[:0]
	for _, o := range w.orbs {
		o.LifeMs -= deltaMs

		if w.match.Running {
			p := w.player
			d := distance(o.X, o.Y, p.X, p.Y)
			attraction := math.Max(g.ExpAttractionRange, p.Speed*0.6)
			if p.ExpMagnet {
				attraction *= g.ExpMagnetMultiplier
			}
			if d < attraction {
				angle := math.Atan2(p.Y-o.Y, p.X-o.X)
				step := (g.ExpBaseSpeed + p.Speed*0.8) * deltaMs / 1000
				o.X += math.Cos(angle) * step
				o.Y += math.Sin(angle) * step

				if d < math.Max(minPickupRadius, p.Size+6) {
					w.collectOrb(o)
					w.pools.ExpOrbs.Release(o)
					continue
				}
			}
		} else {
			o.X += (w.rng.Float64() - 0.5) * 6 * deltaMs / 16
			o.Y += (w.rng.Float64() - 0.5) * 6 * deltaMs / 16
		}

		if o.LifeMs <= 0 {
			w.pools.ExpOrbs.Release(o)
			continue
		}
		kept = append(kept, o)
	}
	clear(w.orbs[len(kept):])
	w.orbs = kept
}

func (w *World) collectOrb(o *ExpOrb) {
	w.player.AddExp(o.Value)
	w.match.SessionExp += o.Value
	w.queueLevelUps()
	w.emitCue(CuePickup)
}

func (w *World) updateLootBoxes(deltaMs float64) {
	kept := w.loot[:0]
	for _, b := range w.loot {
		b.LifeMs -= deltaMs

		if w.match.Running && !b.Opened && !w.choice.Open() {
			p := w.player
			if distance(p.X, p.Y, b.X, b.Y) < p.Size+lootPickupPadding {
				b.Opened = true
				w.openLoot()
				w.pools.LootBoxes.Release(b)
				continue
			}
		}

		if b.LifeMs <= 0 {
			w.pools.LootBoxes.Release(b)
			continue
		}
		kept = append(kept, b)
	}
	clear(w.loot[len(kept):])
	w.loot = kept
}

// =============================================================================
// CUES & EVENTS
// =============================================================================

func (w *World) emitCue(c Cue) {
	w.cues = append(w.cues, c)
}

func (w *World) emit(t EventType, payload any) {
	w.events = append(w.events, WorldEvent{Type: t, Payload: payload})
}

// DrainEvents hands every pending event to fn and clears the queue.
func (w *World) DrainEvents(fn func(WorldEvent)) {
	for _, ev := range w.events {
		fn(ev)
	}
	clear(w.events)
	w.events = w.events[:0]
}

// =============================================================================
// ACCESSORS
// =============================================================================

func (w *World) Player() *Player { return w.player }
func (w *World) Weapons() *WeaponSystem { return w.weapons }
func (w *World) Enemies() []*Enemy { return w.enemies }
func (w *World) Projectiles() []*Projectile { return w.projectiles }
func (w *World) ExpOrbs() []*ExpOrb { return w.orbs }
func (w *World) LootBoxes() []*LootBox { return w.loot }
func (w *World) Particles() []*Particle { return w.particles }
func (w *World) Pools() *Pools { return w.pools }
func (w *World) Match() MatchState { return w.match }
func (w *World) Choice() ChoiceState { return w.choice }
func (w *World) Difficulty() Difficulty { return w.difficulty }
func (w *World) Shake() ScreenShake { return w.shake }
func (w *World) Cues() []Cue { return w.cues }
func (w *World) Canvas() config.CanvasConfig { return w.canvas }
func (w *World) Input() Input { return w.input }
func (w *World) PendingLevelUps() int { return w.pendingLevelUps }
func (w *World) QuadtreeStats() spatial.QuadtreeStats { return w.tree.Stats() }

// WalkQuadtree visits the index nodes from the last rebuild.
func (w *World) WalkQuadtree(fn func(bounds spatial.Rect, depth, count int)) {
	w.tree.Walk(fn)
}

// GameOver reports whether the last step ended the match.
func (w *World) GameOver() bool { return w.match.Over }
