package game

import (
	"math"
	"math/rand"
	"testing"

	"neon-survivor/internal/config"
)

func collect(out *[]Projectile) func(Projectile) {
	return func(p Projectile) { *out = append(*out, p) }
}

func TestWeaponSystemStartsWithBasic(t *testing.T) {
	ws := NewWeaponSystem(config.DefaultTuning())

	active := ws.Active()
	if len(active) != 1 || active[0] != WeaponBasic {
		t.Errorf("Expected [basic], got %v", active)
	}
	if len(ws.All()) != 3 {
		t.Errorf("Expected 3 weapons, got %d", len(ws.All()))
	}

	active[0] = "mutated"
	if ws.Active()[0] != WeaponBasic {
		t.Error("Expected Active to return a copy")
	}
}

func TestWeaponFiresAtNearestEnemy(t *testing.T) {
	ws := NewWeaponSystem(config.DefaultTuning())
	p := newTestPlayer()
	rng := rand.New(rand.NewSource(1))
	enemies := []*Enemy{
		{X: p.X + 300, Y: p.Y, Health: 10},
		{X: p.X, Y: p.Y + 100, Health: 10},
	}

	var shots []Projectile
	if n := ws.Update(16, p, enemies, rng, collect(&shots)); n != 1 {
		t.Fatalf("Expected 1 shot on the first frame, got %d", n)
	}

	s := shots[0]
	if s.Damage != 12 || s.Color != "#00ff88" || s.LifeMs != 2000 {
		t.Errorf("Unexpected projectile %+v", s)
	}
	if math.Abs(s.DX) > 1e-9 || math.Abs(s.DY-900) > 1e-9 {
		t.Errorf("Expected velocity (0, 900) toward the closer enemy, got (%v, %v)", s.DX, s.DY)
	}

	shots = shots[:0]
	if n := ws.Update(599, p, enemies, rng, collect(&shots)); n != 0 {
		t.Errorf("Expected cooldown to block firing, got %d shots", n)
	}
	if n := ws.Update(1, p, enemies, rng, collect(&shots)); n != 1 {
		t.Errorf("Expected shot once 600ms elapsed, got %d", n)
	}
}

func TestWeaponHoldsFireWithoutTarget(t *testing.T) {
	ws := NewWeaponSystem(config.DefaultTuning())
	p := newTestPlayer()
	rng := rand.New(rand.NewSource(1))

	var shots []Projectile
	ws.Update(1000, p, nil, rng, collect(&shots))
	ws.Update(1000, p, []*Enemy{{X: 0, Y: 0, Health: 0}}, rng, collect(&shots))
	if len(shots) != 0 {
		t.Errorf("Expected no shots without a live target, got %d", len(shots))
	}

	// Still ready when a target appears.
	ws.Update(0, p, []*Enemy{{X: 0, Y: 0, Health: 5}}, rng, collect(&shots))
	if len(shots) != 1 {
		t.Errorf("Expected immediate shot once a target exists, got %d", len(shots))
	}
}

func TestSpreadFansThreeProjectiles(t *testing.T) {
	ws := NewWeaponSystem(config.DefaultTuning())
	ws.active = nil
	if !ws.UnlockWeapon(WeaponSpread) {
		t.Fatal("Expected unlock to succeed")
	}
	if ws.UnlockWeapon(WeaponSpread) {
		t.Error("Expected second unlock to be a no-op")
	}
	if ws.UnlockWeapon("railgun") {
		t.Error("Expected unknown weapon to be rejected")
	}

	p := newTestPlayer()
	var shots []Projectile
	ws.Update(16, p, []*Enemy{{X: p.X + 100, Y: p.Y, Health: 5}}, rand.New(rand.NewSource(1)), collect(&shots))
	if len(shots) != 3 {
		t.Fatalf("Expected 3 projectiles, got %d", len(shots))
	}

	angles := make([]float64, 3)
	for i, s := range shots {
		angles[i] = math.Atan2(s.DY, s.DX)
	}
	want := []float64{-0.3, 0, 0.3}
	for i := range want {
		if math.Abs(angles[i]-want[i]) > 1e-9 {
			t.Errorf("Projectile %d: Expected angle %v, got %v", i, want[i], angles[i])
		}
	}
}

func TestUpgradeDamageCompounds(t *testing.T) {
	ws := NewWeaponSystem(config.DefaultTuning())
	for i := 0; i < 4; i++ {
		ws.UpgradeDamage(0.2)
	}

	w := ws.Weapon(WeaponBasic)
	if math.Abs(w.DamageMultiplier-1.0736) > 1e-9 {
		t.Errorf("Expected multiplier 1.0736, got %v", w.DamageMultiplier)
	}
	if w.Stats.Damage != 12 {
		t.Errorf("Expected base damage untouched, got %v", w.Stats.Damage)
	}
	if w.ShotDamage() != 25 {
		t.Errorf("Expected round(12 * 2.0736) = 25, got %v", w.ShotDamage())
	}
}

func TestUpgradeFireRateFloor(t *testing.T) {
	ws := NewWeaponSystem(config.DefaultTuning())

	ws.UpgradeFireRate(0.5)
	if got := ws.Weapon(WeaponBasic).Stats.CooldownMs; got != 300 {
		t.Errorf("Expected 300, got %v", got)
	}

	for i := 0; i < 50; i++ {
		ws.UpgradeFireRate(0.15)
	}
	for _, w := range ws.All() {
		if w.Stats.CooldownMs != 100 {
			t.Errorf("%s: Expected cooldown floor 100, got %v", w.ID, w.Stats.CooldownMs)
		}
	}
}

func TestUpgradeProjectileSpeed(t *testing.T) {
	ws := NewWeaponSystem(config.DefaultTuning())
	ws.UpgradeProjectileSpeed(0.1)

	if got := ws.Weapon(WeaponBasic).Stats.Speed; got != 990 {
		t.Errorf("Expected 990, got %v", got)
	}
}

func TestCriticalShots(t *testing.T) {
	ws := NewWeaponSystem(config.DefaultTuning())
	ws.CriticalChance = 1
	p := newTestPlayer()

	var shots []Projectile
	ws.Update(16, p, []*Enemy{{X: 0, Y: 0, Health: 5}}, rand.New(rand.NewSource(1)), collect(&shots))

	s := shots[0]
	if !s.Critical || s.Damage != 24 || s.Color != critColor || s.Size != 6 {
		t.Errorf("Expected doubled white critical, got %+v", s)
	}
}
