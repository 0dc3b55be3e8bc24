package game

import "math"

// effectiveDamage is the armor-reduced damage of a single hit:
// max(0, round(damage * (1 - armor))).
func effectiveDamage(damage, armor float64) float64 {
	return math.Max(0, math.Round(damage*(1-armor)))
}

func distance(ax, ay, bx, by float64) float64 {
	return math.Hypot(bx-ax, by-ay)
}

// nearestEnemy returns the live enemy closest to (x, y), or nil.
func nearestEnemy(x, y float64, enemies []*Enemy) *Enemy {
	var best *Enemy
	bestDist := math.Inf(1)
	for _, e := range enemies {
		if e.Health <= 0 {
			continue
		}
		if d := distance(x, y, e.X, e.Y); d < bestDist {
			best = e
			bestDist = d
		}
	}
	return best
}

// outside reports whether (x, y) lies beyond the canvas expanded by margin.
func outside(x, y, width, height, margin float64) bool {
	return x < -margin || x > width+margin || y < -margin || y > height+margin
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
