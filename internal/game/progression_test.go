package game

import (
	"errors"
	"math"
	"testing"

	"neon-survivor/internal/config"
	"neon-survivor/internal/store"
)

func TestPerkPurchaseRules(t *testing.T) {
	tests := []struct {
		name    string
		points  int
		owned   []int
		tree    PerkTree
		tier    int
		wantErr error
	}{
		{"first tier", 1, nil, PerkSpeed, 1, nil},
		{"next tier", 1, []int{1}, PerkSpeed, 2, nil},
		{"skipping a tier", 1, []int{1}, PerkSpeed, 3, ErrPerkLocked},
		{"already owned", 1, []int{1}, PerkSpeed, 1, ErrPerkOwned},
		{"no points", 0, nil, PerkStrength, 1, ErrNoPoints},
		{"unknown tree", 1, nil, PerkTree("luck"), 1, ErrUnknownTree},
		{"tier out of range", 1, nil, PerkSpeed, 5, ErrUnknownTier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewPerkState()
			s.Points = tt.points
			for _, tier := range tt.owned {
				s.Trees[PerkSpeed][tier] = true
			}
			points := s.Points

			err := s.Buy(tt.tree, tt.tier)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Expected success, got %v", err)
				}
				if s.Points != points-1 || !s.Owned(tt.tree, tt.tier) {
					t.Errorf("Expected tier owned and one point spent, got %+v", s)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if s.Points != points {
				t.Errorf("Expected points unchanged on failure, got %d", s.Points)
			}
		})
	}
}

func TestPerkTierThreeBeforeTwoRejected(t *testing.T) {
	s := NewPerkState()
	s.Points = 3
	if err := s.Buy(PerkStrength, 1); err != nil {
		t.Fatal(err)
	}
	if s.CanBuy(PerkStrength, 3) {
		t.Error("Expected tier 3 to be locked until tier 2 is owned")
	}
	if err := s.Buy(PerkStrength, 2); err != nil {
		t.Fatal(err)
	}
	if !s.CanBuy(PerkStrength, 3) {
		t.Error("Expected tier 3 purchasable after tier 2")
	}
}

func TestApplyPerks(t *testing.T) {
	tuning := config.DefaultTuning()
	s := NewPerkState()
	s.Points = 7
	for _, buy := range []struct {
		tree PerkTree
		tier int
	}{
		{PerkSpeed, 1}, {PerkSpeed, 2},
		{PerkStrength, 1}, {PerkStrength, 2},
		{PerkDefense, 1}, {PerkDefense, 2}, {PerkDefense, 3},
	} {
		if err := s.Buy(buy.tree, buy.tier); err != nil {
			t.Fatalf("buy %s %d: %v", buy.tree, buy.tier, err)
		}
	}

	p := NewPlayer(tuning.Player, 0, 0)
	ws := NewWeaponSystem(tuning)
	ApplyPerks(s, p, ws)

	if p.Speed != 264 {
		t.Errorf("Expected round(220 * 1.20) = 264, got %v", p.Speed)
	}
	if math.Abs(ws.Weapon(WeaponBasic).DamageMultiplier-0.44) > 1e-9 {
		t.Errorf("Expected compounded multiplier 0.44, got %v", ws.Weapon(WeaponBasic).DamageMultiplier)
	}
	if math.Abs(p.Armor-0.31) > 1e-9 {
		t.Errorf("Expected armor 0.31, got %v", p.Armor)
	}

	if got := s.Summary(); got != "Dmg +44% • Spd +20% • Armor +31%" {
		t.Errorf("Unexpected summary %q", got)
	}
}

func TestPerkSummaryOmitsEmptyTrees(t *testing.T) {
	s := NewPerkState()
	if s.Summary() != "" {
		t.Errorf("Expected empty summary, got %q", s.Summary())
	}

	s.Points = 1
	s.Buy(PerkDefense, 1)
	if got := s.Summary(); got != "Armor +5%" {
		t.Errorf("Expected 'Armor +5%%', got %q", got)
	}
}

func TestPointsForMatch(t *testing.T) {
	cfg := config.DefaultTuning().Progression
	tests := []struct {
		exp  int
		want int
	}{
		{0, 1},
		{49, 1},
		{50, 2},
		{149, 2},
		{150, 3},
		{5000, 3},
	}

	for _, tt := range tests {
		if got := PointsForMatch(tt.exp, cfg); got != tt.want {
			t.Errorf("PointsForMatch(%d): Expected %d, got %d", tt.exp, tt.want, got)
		}
	}

	capped := config.ProgressionTuning{PointThresholds: []int{1, 2, 3}, MaxPointsPerMatch: 2}
	if got := PointsForMatch(10, capped); got != 2 {
		t.Errorf("Expected cap of 2, got %d", got)
	}
}

func TestProgressRepository(t *testing.T) {
	kv := store.NewMemoryStore()
	repo := NewProgressRepository(kv)

	if s := repo.LoadPerks(); s.Points != 0 || len(s.Trees) != 3 {
		t.Errorf("Expected zero state on empty store, got %+v", s)
	}

	s := NewPerkState()
	s.Points = 2
	s.Buy(PerkSpeed, 1)
	if err := repo.SavePerks(s); err != nil {
		t.Fatal(err)
	}

	loaded := repo.LoadPerks()
	if loaded.Points != 1 || !loaded.Owned(PerkSpeed, 1) {
		t.Errorf("Expected round-tripped perks, got %+v", loaded)
	}
}

func TestProgressRepositoryCorruptRecords(t *testing.T) {
	kv := store.NewMemoryStore()
	repo := NewProgressRepository(kv)

	kv.Set(perksKey, []byte("{broken"))
	if s := repo.LoadPerks(); s.Points != 0 || s.Count(PerkSpeed) != 0 {
		t.Errorf("Expected zero state for corrupt record, got %+v", s)
	}

	kv.Set(perksKey, []byte(`{"points":-4,"trees":{"speed":{"1":true,"9":true},"luck":{"1":true}}}`))
	s := repo.LoadPerks()
	if s.Points != 0 {
		t.Errorf("Expected negative points clamped to 0, got %d", s.Points)
	}
	if s.Count(PerkSpeed) != 1 || s.Owned(PerkSpeed, 9) {
		t.Errorf("Expected only valid tiers kept, got %v", s.Trees)
	}
	if _, ok := s.Trees["luck"]; ok {
		t.Error("Expected unknown tree dropped")
	}

	kv.Set(highscoreKey, []byte("not a number"))
	if repo.Highscore() != 0 {
		t.Errorf("Expected 0 for corrupt highscore, got %d", repo.Highscore())
	}
}

func TestHighscoreOnlyImproves(t *testing.T) {
	kv := store.NewMemoryStore()
	repo := NewProgressRepository(kv)

	if ok, _ := repo.SubmitHighscore(90); !ok {
		t.Error("Expected first score to be a highscore")
	}
	if ok, _ := repo.SubmitHighscore(60); ok {
		t.Error("Expected lower score to be rejected")
	}
	if ok, _ := repo.SubmitHighscore(90); ok {
		t.Error("Expected tie to be rejected")
	}

	raw, _ := kv.Get(highscoreKey)
	if string(raw) != "90" {
		t.Errorf("Expected stored '90', got %q", raw)
	}
}
