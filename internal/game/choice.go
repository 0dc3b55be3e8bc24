package game

import (
	"errors"
	"fmt"
)

// ChoiceKind is the modal the simulation is waiting on.
type ChoiceKind uint8

const (
	ChoiceNone ChoiceKind = iota
	ChoiceLevelUp
	ChoiceLoot
)

func (k ChoiceKind) String() string {
	switch k {
	case ChoiceLevelUp:
		return "level_up"
	case ChoiceLoot:
		return "loot"
	default:
		return "none"
	}
}

var (
	ErrNoPendingChoice = errors.New("no pending choice")
	ErrInvalidChoice   = errors.New("invalid choice")
)

// optionsPerChoice is how many options a modal offers.
const optionsPerChoice = 3

// Choice is one selectable option. Exactly one effect runs per modal.
type Choice struct {
	ID          string `json:"id" msgpack:"id"`
	Name        string `json:"name" msgpack:"name"`
	Description string `json:"description" msgpack:"description"`

	apply func(w *World)
}

// ChoiceState is the open modal, if any. While Kind is not ChoiceNone the
// match is frozen.
type ChoiceState struct {
	Kind    ChoiceKind
	Options []Choice
}

// Open reports whether a modal is waiting for a choice.
func (c ChoiceState) Open() bool { return c.Kind != ChoiceNone }

// Choose applies option index of the open modal, closes it and opens the
// next queued level-up, if any.
func (w *World) Choose(index int) (Choice, error) {
	if !w.choice.Open() {
		return Choice{}, ErrNoPendingChoice
	}
	if index < 0 || index >= len(w.choice.Options) {
		return Choice{}, fmt.Errorf("%w: index %d of %d", ErrInvalidChoice, index, len(w.choice.Options))
	}

	kind := w.choice.Kind
	opt := w.choice.Options[index]
	w.choice = ChoiceState{}
	opt.apply(w)

	w.emit(EventTypeChoiceMade, ChoicePayload{Kind: kind.String(), ID: opt.ID, Name: opt.Name})
	w.pumpLevelUps()
	return opt, nil
}

// queueLevelUps enqueues one event per exp threshold crossed. The projection
// starts from the state after already-queued level-ups, so exp is never
// counted twice.
func (w *World) queueLevelUps() {
	p := w.player
	exp, next := p.Exp, p.ExpToNext
	for i := 0; i < w.pendingLevelUps; i++ {
		exp -= next
		next = p.nextThreshold(next)
	}
	for exp >= next {
		w.pendingLevelUps++
		exp -= next
		next = p.nextThreshold(next)
	}
}

// pumpLevelUps opens the next queued level-up when no modal is open.
func (w *World) pumpLevelUps() {
	if !w.match.Running || w.choice.Open() || w.pendingLevelUps == 0 {
		return
	}
	w.pendingLevelUps--
	w.player.LevelUp()
	w.emit(EventTypeLevelUp, LevelUpPayload{Level: w.player.Level, ExpToNext: w.player.ExpToNext})

	w.choice = ChoiceState{
		Kind:    ChoiceLevelUp,
		Options: w.pickOptions(w.levelUpOptions()),
	}
}

// openLoot opens a loot modal.
func (w *World) openLoot() {
	w.choice = ChoiceState{
		Kind:    ChoiceLoot,
		Options: w.pickOptions(lootOptions()),
	}
	w.emit(EventTypeLootOpened, ChoicePayload{Kind: ChoiceLoot.String()})
}

// pickOptions returns up to optionsPerChoice random distinct options.
func (w *World) pickOptions(all []Choice) []Choice {
	w.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if len(all) > optionsPerChoice {
		all = all[:optionsPerChoice]
	}
	return all
}

func (w *World) levelUpOptions() []Choice {
	opts := []Choice{
		{ID: "health_boost", Name: "Health Boost", Description: "Increase max health by 25",
			apply: func(w *World) { w.player.IncreaseMaxHealth(25) }},
		{ID: "speed", Name: "Speed Enhancement", Description: "Increase movement speed by 30",
			apply: func(w *World) { w.player.IncreaseSpeed(30) }},
		{ID: "damage", Name: "Weapon Damage +40%", Description: "Increase all weapon damage by 40% (stacks)",
			apply: func(w *World) { w.weapons.UpgradeDamage(0.4) }},
		{ID: "fire_rate", Name: "Fire Rate +15%", Description: "Reduce weapon cooldown by 15%",
			apply: func(w *World) { w.weapons.UpgradeFireRate(0.15) }},
		{ID: "projectile_speed", Name: "Projectile Speed +10%", Description: "Increase projectile speed for all weapons",
			apply: func(w *World) { w.weapons.UpgradeProjectileSpeed(0.1) }},
		{ID: "exp_magnet", Name: "Exp Magnet", Description: "Increase experience orb attraction range",
			apply: func(w *World) { w.player.ExpMagnet = true }},
		{ID: "critical", Name: "Critical Hits", Description: "10% chance to deal double damage",
			apply: func(w *World) { w.weapons.CriticalChance = 0.1 }},
		{ID: "regen", Name: "Health Regeneration", Description: "Regenerate 1 health per second",
			apply: func(w *World) { w.player.HealthRegen = 1 }},
	}

	unlocks := []struct {
		id   string
		desc string
	}{
		{WeaponSpread, "Fires 3 projectiles in a spread pattern"},
		{WeaponLaser, "High damage, long range laser weapon"},
	}
	for _, u := range unlocks {
		weapon := w.weapons.Weapon(u.id)
		if weapon == nil || w.weapons.IsActive(u.id) || w.player.Level < weapon.Stats.UnlockLevel {
			continue
		}
		id := u.id
		opts = append(opts, Choice{
			ID:          "unlock_" + id,
			Name:        "Unlock " + weapon.Stats.Name,
			Description: u.desc,
			apply:       func(w *World) { w.weapons.UnlockWeapon(id) },
		})
	}
	return opts
}

func lootOptions() []Choice {
	return []Choice{
		{ID: "minor_health", Name: "Minor Health", Description: "Restore 30 health",
			apply: func(w *World) { w.player.Heal(30) }},
		{ID: "exp_cache", Name: "Exp Cache", Description: "Gain 5 experience",
			apply: func(w *World) {
				w.player.Exp += 5
				w.queueLevelUps()
			}},
		{ID: "speed_chip", Name: "Speed Chip", Description: "Increase movement speed by 30",
			apply: func(w *World) { w.player.IncreaseSpeed(30) }},
		{ID: "weapon_shard", Name: "Weapon Shard", Description: "Increase all weapon damage by 25%",
			apply: func(w *World) { w.weapons.UpgradeDamage(0.25) }},
		{ID: "max_health", Name: "Max Health", Description: "Increase max health by 20",
			apply: func(w *World) { w.player.IncreaseMaxHealth(20) }},
	}
}
