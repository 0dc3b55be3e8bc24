package api_test

import (
	"fmt"
	"sync"

	"neon-survivor/internal/config"
	"neon-survivor/internal/game"
	"neon-survivor/internal/game/pool"
	"neon-survivor/internal/game/spatial"
)

// MockEngine implements api.EngineInterface for testing
type MockEngine struct {
	mu sync.Mutex

	running bool
	paused  bool
	input   game.Input
	options []game.Choice
	perks   game.PerkState
	high    int
	snap    game.Snapshot
	events  []game.Event
	nodes   []game.QuadtreeNode
	calls   []string
}

func NewMockEngine() *MockEngine {
	return &MockEngine{
		perks: game.NewPerkState(),
		snap: game.Snapshot{
			Sequence: 1,
			Status:   game.StatusDemo,
			Canvas:   config.DefaultCanvas(),
			Enemies:  []game.EnemySnapshot{{X: 10, Y: 10, Kind: "DRONE", Size: 10, Health: 30, MaxHealth: 30, Color: "#ff8844"}},
		},
	}
}

func (m *MockEngine) record(call string) {
	m.calls = append(m.calls, call)
}

// Calls returns the commands received so far.
func (m *MockEngine) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Input returns the last input received.
func (m *MockEngine) Input() game.Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.input
}

// OpenChoice puts a modal with n options on screen.
func (m *MockEngine) OpenChoice(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.options = nil
	for i := 0; i < n; i++ {
		m.options = append(m.options, game.Choice{ID: fmt.Sprintf("opt_%d", i), Name: fmt.Sprintf("Option %d", i)})
	}
	m.snap.Status = game.StatusChoosing
	m.snap.Choice = game.ChoiceSnapshot{Kind: "level_up", Options: m.options}
	m.snap.Sequence++
}

// Advance bumps the snapshot sequence as a tick would.
func (m *MockEngine) Advance() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.Sequence++
	m.snap.TickNumber++
}

func (m *MockEngine) Status() game.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return game.Status{State: m.snap.Status, Highscore: m.high, Enemies: len(m.snap.Enemies)}
}

func (m *MockEngine) GetSnapshot() game.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone()
}

func (m *MockEngine) ViewSnapshot(fn func(*game.Snapshot)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.snap)
	return true
}

func (m *MockEngine) StartMatch() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("start")
	if m.running {
		return "", game.ErrMatchInProgress
	}
	m.running = true
	m.snap.Status = game.StatusRunning
	m.snap.MatchID = "mock-match"
	m.snap.HasPlayer = true
	m.snap.Player = game.PlayerSnapshot{X: 640, Y: 360, Size: 12, Health: 100, MaxHealth: 100, Level: 1, ExpToNext: 12}
	m.snap.Sequence++
	return "mock-match", nil
}

func (m *MockEngine) EndMatch() (game.MatchSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("end")
	if !m.running {
		return game.MatchSummary{}, game.ErrNoMatch
	}
	m.running = false
	m.perks.Points++
	m.snap.Status = game.StatusDemo
	m.snap.HasPlayer = false
	m.snap.Sequence++
	return game.MatchSummary{ID: "mock-match", Seconds: 42, Level: 3, Points: 1}, nil
}

func (m *MockEngine) SetPaused(paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(fmt.Sprintf("pause:%v", paused))
	if !m.running {
		return game.ErrNoMatch
	}
	m.paused = paused
	return nil
}

func (m *MockEngine) SetInput(in game.Input) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("input")
	m.input = in
}

func (m *MockEngine) Choose(index int) (game.Choice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(fmt.Sprintf("choice:%d", index))
	if len(m.options) == 0 {
		return game.Choice{}, game.ErrNoPendingChoice
	}
	if index < 0 || index >= len(m.options) {
		return game.Choice{}, fmt.Errorf("%w: index %d", game.ErrInvalidChoice, index)
	}
	opt := m.options[index]
	m.options = nil
	m.snap.Choice = game.ChoiceSnapshot{Kind: "none"}
	return opt, nil
}

func (m *MockEngine) BuyPerk(tree game.PerkTree, tier int) (game.PerkState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.perks.Buy(tree, tier); err != nil {
		return m.perks, err
	}
	return m.perks, nil
}

func (m *MockEngine) Progression() game.ProgressView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return game.ProgressView{Perks: m.perks, Summary: m.perks.Summary(), Highscore: m.high}
}

func (m *MockEngine) Tuning() config.Tuning { return config.DefaultTuning() }

func (m *MockEngine) TickCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.TickNumber
}

func (m *MockEngine) PoolStats() map[string]pool.Stats {
	return map[string]pool.Stats{"enemy": {Active: 1, Free: 3}}
}

func (m *MockEngine) QuadtreeStats() spatial.QuadtreeStats {
	return spatial.QuadtreeStats{Nodes: 1, Objects: 1}
}

func (m *MockEngine) QuadtreeNodes() []game.QuadtreeNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("quadtree")
	return m.nodes
}

func (m *MockEngine) GetEventLogStats() map[string]any {
	return map[string]any{"total": uint64(0), "dropped": uint64(0)}
}

func (m *MockEngine) RecentEvents(n int) []game.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.events) {
		n = len(m.events)
	}
	return append([]game.Event(nil), m.events[len(m.events)-n:]...)
}
