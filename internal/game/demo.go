package game

import "math"

// Attract mode: while no match runs, drones chase a drifting target so
// spectators always see motion.
const (
	demoSpawnIntervalMs = 700
	demoSeedEnemies     = 4
	demoMaxEnemies      = 40
	demoSpeedScale      = 0.6
	demoEnemyColor      = "#ff8844"
)

type demoState struct {
	active       bool
	X, Y         float64
	phase        float64 // seconds since the demo started
	sinceSpawnMs float64
}

func (w *World) startDemo() {
	w.demo = demoState{
		active: true,
		X:      w.canvas.Width / 2,
		Y:      w.canvas.Height / 2,
	}
	for i := 0; i < demoSeedEnemies; i++ {
		w.spawnDemoEnemy()
	}
}

func (w *World) updateDemo(deltaMs float64) {
	if !w.demo.active {
		return
	}

	// Pace a slow figure-eight around the centre.
	w.demo.phase += deltaMs / 1000
	cx, cy := w.canvas.Width/2, w.canvas.Height/2
	w.demo.X = cx + math.Sin(w.demo.phase*0.5)*w.canvas.Width*0.25
	w.demo.Y = cy + math.Sin(w.demo.phase)*w.canvas.Height*0.15

	w.demo.sinceSpawnMs += deltaMs
	for w.demo.sinceSpawnMs >= demoSpawnIntervalMs {
		w.demo.sinceSpawnMs -= demoSpawnIntervalMs
		if len(w.enemies) < demoMaxEnemies {
			w.spawnDemoEnemy()
		}
	}
}

// spawnDemoEnemy adds a harmless drone with randomized looks.
func (w *World) spawnDemoEnemy() {
	size := 12 + w.rng.Float64()*18
	health := 18 + math.Floor(w.rng.Float64()*20)
	x, y := SpawnPosition(w.rng.Intn(4), w.rng.Float64(), size, w.canvas)
	w.AddEnemy(Enemy{
		X:         x,
		Y:         y,
		Kind:      EnemyDrone,
		Size:      size,
		Speed:     40 + w.rng.Float64()*60,
		Health:    health,
		MaxHealth: health,
		Damage:    6,
		Color:     demoEnemyColor,
		Exp:       2,
	})
}

// DemoTarget returns the attract-mode target position and whether the demo is running.
func (w *World) DemoTarget() (float64, float64, bool) {
	return w.demo.X, w.demo.Y, w.demo.active
}
