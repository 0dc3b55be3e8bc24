package game

import (
	"testing"

	"neon-survivor/internal/config"
	"neon-survivor/internal/game/spatial"
)

// =============================================================================
// BENCHMARK SUITE: CRITICAL PATH PERFORMANCE TESTS
// Run with: go test -bench=. -benchmem ./internal/game/...
// =============================================================================

// crowdedWorld returns a running match with n enemies spread over the canvas.
func crowdedWorld(b *testing.B, n int) *World {
	b.Helper()
	tuning := config.DefaultTuning()
	tuning.Player.Health = 1e9
	w := NewWorld(tuning, 1)
	w.StartMatch("bench", NewPerkState())
	for i := 0; i < n; i++ {
		x := float64((i * 97) % int(tuning.Canvas.Width))
		y := float64((i * 53) % int(tuning.Canvas.Height))
		w.AddEnemy(Enemy{X: x, Y: y, Kind: EnemyDrone, Size: 12, Health: 1e6, MaxHealth: 1e6, Speed: 60, Damage: 1})
	}
	w.DrainEvents(func(WorldEvent) {})
	return w
}

// -----------------------------------------------------------------------------
// WORLD STEP BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkWorldStep_50Enemies(b *testing.B)  { benchmarkWorldStep(b, 50) }
func BenchmarkWorldStep_200Enemies(b *testing.B) { benchmarkWorldStep(b, 200) }
func BenchmarkWorldStep_400Enemies(b *testing.B) { benchmarkWorldStep(b, 400) }

func benchmarkWorldStep(b *testing.B, n int) {
	w := crowdedWorld(b, n)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		w.Step(16)
		if w.Choice().Open() {
			w.Choose(0)
		}
		w.DrainEvents(func(WorldEvent) {})
	}
}

// -----------------------------------------------------------------------------
// SNAPSHOT GENERATION BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkProduceSnapshot_50Enemies(b *testing.B)  { benchmarkSnapshot(b, 50) }
func BenchmarkProduceSnapshot_400Enemies(b *testing.B) { benchmarkSnapshot(b, 400) }

func benchmarkSnapshot(b *testing.B, n int) {
	w := crowdedWorld(b, n)
	w.spawnParticles(640, 360, "#fff", 400)
	pool := NewSnapshotPool(config.DefaultLimits())

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		snap := pool.AcquireWrite()
		fillSnapshot(snap, w, pool.GetLimits())
		pool.PublishWrite()
	}
}

// -----------------------------------------------------------------------------
// COLLISION BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkProjectileSweep_Quadtree(b *testing.B) {
	w := crowdedWorld(b, 300)
	for i := 0; i < 200; i++ {
		w.projectiles = append(w.projectiles, w.pools.Projectiles.Acquire(Projectile{
			X: float64(i * 6), Y: float64(i * 3), Size: 4, LifeMs: 1e9,
		}))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.rebuildTree()
		hits := 0
		for _, p := range w.projectiles {
			w.candidates = w.tree.Retrieve(p, w.candidates[:0])
			hits += len(w.candidates)
		}
		_ = hits
	}
}

func BenchmarkProjectileSweep_BruteForce(b *testing.B) {
	w := crowdedWorld(b, 300)
	projectiles := make([]Projectile, 200)
	for i := range projectiles {
		projectiles[i] = Projectile{X: float64(i * 6), Y: float64(i * 3), Size: 4}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hits := 0
		for _, p := range projectiles {
			for _, e := range w.enemies {
				if distance(p.X, p.Y, e.X, e.Y) < p.Size+e.Size {
					hits++
				}
			}
		}
		_ = hits
	}
}

func BenchmarkQuadtreeRebuild(b *testing.B) {
	w := crowdedWorld(b, 400)
	tree := spatial.NewQuadtree(spatial.Rect{W: 1280, H: 720}, 8, 6)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		tree.Clear()
		for _, e := range w.enemies {
			tree.Insert(e)
		}
	}
}

// -----------------------------------------------------------------------------
// ENGINE TICK BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkEngineStep_Demo(b *testing.B) {
	e := NewEngine(EngineConfig{Tuning: config.DefaultTuning(), Limits: config.DefaultLimits(), Seed: 1})

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		e.Step(16)
	}
}
