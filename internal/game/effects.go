package game

// Particle is a short-lived visual spark. Life counts frames, not ms.
type Particle struct {
	X, Y    float64
	DX, DY  float64
	Color   string
	Life    float64
	MaxLife float64
	Size    float64
}

// Circle implements spatial.Collider.
func (p *Particle) Circle() (float64, float64, float64) { return p.X, p.Y, p.Size }

// Alpha is the remaining life fraction, used for fading.
func (p *Particle) Alpha() float64 {
	if p.MaxLife <= 0 {
		return 0
	}
	return p.Life / p.MaxLife
}

// ScreenShake is camera shake from player hits.
type ScreenShake struct {
	Intensity float64
	TimeMs    float64
}

// Start begins a shake, keeping whichever of the current and new values is stronger.
func (s *ScreenShake) Start(intensity, durationMs float64) {
	if intensity > s.Intensity {
		s.Intensity = intensity
	}
	if durationMs > s.TimeMs {
		s.TimeMs = durationMs
	}
}

// Update decays the shake.
func (s *ScreenShake) Update(deltaMs float64) {
	if s.TimeMs > 0 {
		s.TimeMs -= deltaMs
		s.Intensity *= 0.9
		return
	}
	s.TimeMs = 0
	s.Intensity = 0
}

// particleFrameMs is the fixed step particles integrate with.
const particleFrameMs = 16

// spawnParticles emits up to count particles around (x, y). Spawning stops
// once the population reaches the cap.
func (w *World) spawnParticles(x, y float64, color string, count int) {
	v := w.tuning.Visual
	limit := w.tuning.Game.MaxParticles
	for i := 0; i < count; i++ {
		if len(w.particles) >= limit {
			return
		}
		life := v.ParticleLifeMin + w.rng.Float64()*(v.ParticleLifeMax-v.ParticleLifeMin)
		p := w.pools.Particles.Acquire(Particle{
			X:       x + (w.rng.Float64()-0.5)*20,
			Y:       y + (w.rng.Float64()-0.5)*20,
			DX:      (w.rng.Float64() - 0.5) * v.ParticleSpeed,
			DY:      (w.rng.Float64() - 0.5) * v.ParticleSpeed,
			Color:   color,
			Life:    life,
			MaxLife: life,
			Size:    v.ParticleSizeMin + w.rng.Float64()*(v.ParticleSizeMax-v.ParticleSizeMin),
		})
		w.particles = append(w.particles, p)
	}
}

// updateParticles advances particles with a fixed step and friction,
// filtering expired ones in place.
func (w *World) updateParticles() {
	kept := w.particles[:0]
	for _, p := range w.particles {
		p.X += p.DX * particleFrameMs / 1000
		p.Y += p.DY * particleFrameMs / 1000
		p.DX *= 0.94
		p.DY *= 0.94
		p.Life--
		if p.Life <= 0 {
			w.pools.Particles.Release(p)
			continue
		}
		kept = append(kept, p)
	}
	clear(w.particles[len(kept):])
	w.particles = kept
}
