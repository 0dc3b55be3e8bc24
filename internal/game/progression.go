package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"

	"neon-survivor/internal/config"
	"neon-survivor/internal/store"
)

// PerkTree names one of the three persistent upgrade trees.
type PerkTree string

const (
	PerkSpeed    PerkTree = "speed"
	PerkStrength PerkTree = "strength"
	PerkDefense  PerkTree = "defense"
)

// MaxPerkTier is the number of tiers in every tree.
const MaxPerkTier = 4

// PerkTrees lists trees in display order.
var PerkTrees = []PerkTree{PerkSpeed, PerkStrength, PerkDefense}

// Tier bonuses, indexed by tier (index 0 unused).
var (
	speedTierBonus   = [MaxPerkTier + 1]float64{0, 0.08, 0.12, 0.18, 0.25}
	defenseTierArmor = [MaxPerkTier + 1]float64{0, 0.05, 0.10, 0.16, 0.25}
)

const strengthTierDamage = 0.20

var (
	ErrUnknownTree = errors.New("unknown perk tree")
	ErrUnknownTier = errors.New("unknown perk tier")
	ErrPerkOwned   = errors.New("perk already owned")
	ErrPerkLocked  = errors.New("previous tier not owned")
	ErrNoPoints    = errors.New("no perk points")
)

// PerkState is the persisted perk economy: unspent points plus owned tiers.
type PerkState struct {
	Points int                       `json:"points" msgpack:"points"`
	Trees  map[PerkTree]map[int]bool `json:"trees" msgpack:"trees"`
}

// NewPerkState returns the zero state with all three trees present and empty.
func NewPerkState() PerkState {
	s := PerkState{Trees: make(map[PerkTree]map[int]bool, len(PerkTrees))}
	for _, t := range PerkTrees {
		s.Trees[t] = make(map[int]bool)
	}
	return s
}

func validTree(tree PerkTree) bool {
	for _, t := range PerkTrees {
		if t == tree {
			return true
		}
	}
	return false
}

// normalize drops unknown trees and tiers and fills in missing trees.
func (s *PerkState) normalize() {
	clean := NewPerkState()
	clean.Points = max(0, s.Points)
	for tree, tiers := range s.Trees {
		if !validTree(tree) {
			continue
		}
		for tier, owned := range tiers {
			if owned && tier >= 1 && tier <= MaxPerkTier {
				clean.Trees[tree][tier] = true
			}
		}
	}
	*s = clean
}

// Owned reports whether tier of tree has been bought.
func (s PerkState) Owned(tree PerkTree, tier int) bool {
	return s.Trees[tree][tier]
}

// Count returns the number of owned tiers in tree.
func (s PerkState) Count(tree PerkTree) int {
	return len(s.Trees[tree])
}

func (s PerkState) check(tree PerkTree, tier int) error {
	if !validTree(tree) {
		return fmt.Errorf("%w: %q", ErrUnknownTree, tree)
	}
	if tier < 1 || tier > MaxPerkTier {
		return fmt.Errorf("%w: %d", ErrUnknownTier, tier)
	}
	if s.Owned(tree, tier) {
		return ErrPerkOwned
	}
	if tier > 1 && !s.Owned(tree, tier-1) {
		return ErrPerkLocked
	}
	if s.Points <= 0 {
		return ErrNoPoints
	}
	return nil
}

// CanBuy reports whether tier of tree is purchasable right now.
func (s PerkState) CanBuy(tree PerkTree, tier int) bool {
	return s.check(tree, tier) == nil
}

// Buy spends one point on tier of tree.
func (s *PerkState) Buy(tree PerkTree, tier int) error {
	if err := s.check(tree, tier); err != nil {
		return err
	}
	if s.Trees == nil {
		s.Trees = make(map[PerkTree]map[int]bool)
	}
	if s.Trees[tree] == nil {
		s.Trees[tree] = make(map[int]bool)
	}
	s.Trees[tree][tier] = true
	s.Points--
	return nil
}

func (s PerkState) tierSum(tree PerkTree, table [MaxPerkTier + 1]float64) float64 {
	sum := 0.0
	for tier := range s.Trees[tree] {
		if tier >= 1 && tier <= MaxPerkTier {
			sum += table[tier]
		}
	}
	return sum
}

// ApplyPerks applies owned perks to a fresh player and weapon system.
// Speed tiers add up into one bonus, each strength tier compounds damage by
// 20%, and defense tiers add up into armor capped at MaxArmor.
func ApplyPerks(s PerkState, p *Player, ws *WeaponSystem) {
	if bonus := s.tierSum(PerkSpeed, speedTierBonus); bonus > 0 {
		p.Speed = math.Round(p.Speed * (1 + bonus))
	}
	for i := 0; i < s.Count(PerkStrength); i++ {
		ws.UpgradeDamage(strengthTierDamage)
	}
	if armor := s.tierSum(PerkDefense, defenseTierArmor); armor > 0 {
		p.SetArmor(math.Min(MaxArmor, armor))
	}
}

// Summary renders owned perks, e.g. "Dmg +20% • Spd +8% • Armor +5%".
// Empty trees are omitted.
func (s PerkState) Summary() string {
	var parts []string
	if n := s.Count(PerkStrength); n > 0 {
		pct := math.Round((math.Pow(1+strengthTierDamage, float64(n)) - 1) * 100)
		parts = append(parts, fmt.Sprintf("Dmg +%d%%", int(pct)))
	}
	if s.Count(PerkSpeed) > 0 {
		parts = append(parts, fmt.Sprintf("Spd +%d%%", int(math.Round(s.tierSum(PerkSpeed, speedTierBonus)*100))))
	}
	if s.Count(PerkDefense) > 0 {
		parts = append(parts, fmt.Sprintf("Armor +%d%%", int(math.Round(s.tierSum(PerkDefense, defenseTierArmor)*100))))
	}
	return strings.Join(parts, " • ")
}

// OwnedTiers returns the owned tiers of tree in ascending order.
func (s PerkState) OwnedTiers(tree PerkTree) []int {
	tiers := make([]int, 0, len(s.Trees[tree]))
	for t := range s.Trees[tree] {
		tiers = append(tiers, t)
	}
	sort.Ints(tiers)
	return tiers
}

// PointsForMatch awards one point per match plus one per exp threshold
// reached, capped at MaxPointsPerMatch.
func PointsForMatch(sessionExp int, cfg config.ProgressionTuning) int {
	points := 1
	for _, threshold := range cfg.PointThresholds {
		if sessionExp >= threshold {
			points++
		}
	}
	if cfg.MaxPointsPerMatch > 0 && points > cfg.MaxPointsPerMatch {
		points = cfg.MaxPointsPerMatch
	}
	return points
}

// =============================================================================
// PERSISTENCE
// =============================================================================

const (
	perksKey     = "neon_perks"
	highscoreKey = "neon_highscore"
)

// ProgressRepository loads and saves perk state and the highscore.
// Corrupt or missing records read as the zero state.
type ProgressRepository struct {
	kv store.KeyValueStore
}

// NewProgressRepository wraps a key-value store.
func NewProgressRepository(kv store.KeyValueStore) *ProgressRepository {
	return &ProgressRepository{kv: kv}
}

// LoadPerks returns the stored perk state, or the zero state.
func (r *ProgressRepository) LoadPerks() PerkState {
	raw, err := r.kv.Get(perksKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("⚠️ Failed to read perks: %v", err)
		}
		return NewPerkState()
	}

	var s PerkState
	if err := json.Unmarshal(raw, &s); err != nil {
		log.Printf("⚠️ Corrupt perk record, starting fresh: %v", err)
		return NewPerkState()
	}
	s.normalize()
	return s
}

// SavePerks persists the perk state.
func (r *ProgressRepository) SavePerks(s PerkState) error {
	s.normalize()
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode perks: %w", err)
	}
	if err := r.kv.Set(perksKey, raw); err != nil {
		return fmt.Errorf("save perks: %w", err)
	}
	return nil
}

// Highscore returns the best survival time in seconds, or 0.
func (r *ProgressRepository) Highscore() int {
	raw, err := r.kv.Get(highscoreKey)
	if err != nil {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// SubmitHighscore stores seconds if it beats the previous best and reports
// whether it did.
func (r *ProgressRepository) SubmitHighscore(seconds int) (bool, error) {
	if seconds <= r.Highscore() {
		return false, nil
	}
	if err := r.kv.Set(highscoreKey, []byte(strconv.Itoa(seconds))); err != nil {
		return false, fmt.Errorf("save highscore: %w", err)
	}
	return true, nil
}
