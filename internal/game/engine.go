package game

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"neon-survivor/internal/config"
	"neon-survivor/internal/game/pool"
	"neon-survivor/internal/game/spatial"
	"neon-survivor/internal/store"
)

var (
	ErrNoMatch         = errors.New("no match in progress")
	ErrMatchInProgress = errors.New("match already in progress")
	ErrInvalidCanvas   = errors.New("canvas size must be positive")
)

// EngineConfig configures a new Engine.
type EngineConfig struct {
	TickRate int
	Tuning   config.Tuning
	Limits   config.ResourceLimits
	Store    store.KeyValueStore // nil keeps progress in memory
	Seed     int64               // 0 seeds from the clock
}

// TickInfo is reported to the OnTick hook after every tick.
type TickInfo struct {
	Duration    time.Duration
	DeltaMs     float64
	Tick        uint64
	Running     bool
	Enemies     int
	Projectiles int
	Particles   int
	ExpOrbs     int
	LootBoxes   int
	Pools       map[string]pool.Stats
	Quadtree    spatial.QuadtreeStats
}

// MatchSummary is the outcome of the last finished match.
type MatchSummary struct {
	ID           string `json:"id"`
	Seconds      int    `json:"seconds"`
	Level        int    `json:"level"`
	Kills        int    `json:"kills"`
	SessionExp   int    `json:"sessionExp"`
	Points       int    `json:"points"`
	NewHighscore bool   `json:"newHighscore"`
}

// Status is a cheap summary of the engine state.
type Status struct {
	State        string        `json:"state"`
	MatchID      string        `json:"matchId,omitempty"`
	ElapsedMs    float64       `json:"elapsedMs"`
	Level        int           `json:"level"`
	Health       float64       `json:"health"`
	MaxHealth    float64       `json:"maxHealth"`
	Kills        int           `json:"kills"`
	SessionExp   int           `json:"sessionExp"`
	Enemies      int           `json:"enemies"`
	Projectiles  int           `json:"projectiles"`
	Choice       string        `json:"choice"`
	PendingLevel int           `json:"pendingLevelUps"`
	Tick         uint64        `json:"tick"`
	Highscore    int           `json:"highscore"`
	LastMatch    *MatchSummary `json:"lastMatch,omitempty"`
}

// ProgressView is what the progression screen shows.
type ProgressView struct {
	Perks     PerkState `json:"perks"`
	Summary   string    `json:"summary"`
	Highscore int       `json:"highscore"`
}

// Engine is the authoritative game loop. It owns the World and advances it
// on a ticker goroutine; every public method serializes through mu.
type Engine struct {
	mu    sync.RWMutex
	world *World

	tuning config.Tuning
	limits config.ResourceLimits

	repo      *ProgressRepository
	perks     PerkState
	highscore int
	lastMatch *MatchSummary

	tickRate  int
	running   bool
	ticker    *time.Ticker
	stopChan  chan struct{}
	lastTick  time.Time
	tickCount uint64
	seed      int64

	// Snapshot system for lock-free render separation
	snapshotPool *SnapshotPool

	eventLog *EventLog

	// OnTick is called after every tick outside the engine lock.
	// Set it before Start.
	OnTick func(TickInfo)

	// OnEvent sees every event offered to the event log, accepted or not.
	// It runs under the engine lock and must not call back into the engine.
	OnEvent func(EventType, any)
}

// NewEngine creates an engine in demo mode. Perk state and highscore are
// loaded from the store.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 60
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	kv := cfg.Store
	if kv == nil {
		kv = store.NewMemoryStore()
	}
	repo := NewProgressRepository(kv)

	e := &Engine{
		world:        NewWorld(cfg.Tuning, cfg.Seed),
		tuning:       cfg.Tuning,
		limits:       cfg.Limits,
		repo:         repo,
		perks:        repo.LoadPerks(),
		highscore:    repo.Highscore(),
		tickRate:     cfg.TickRate,
		stopChan:     make(chan struct{}),
		seed:         cfg.Seed,
		snapshotPool: NewSnapshotPool(cfg.Limits),
		eventLog:     NewEventLog(),
	}
	e.produceSnapshot()
	return e
}

// Start begins the game loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.lastTick = time.Now()
	e.ticker = time.NewTicker(time.Second / time.Duration(e.tickRate))
	e.mu.Unlock()

	go func() {
		for {
			select {
			case <-e.ticker.C:
				e.tick()
			case <-e.stopChan:
				return
			}
		}
	}()

	log.Printf("🎮 Game engine started at %d TPS", e.tickRate)
}

// Stop stops the game loop
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
	log.Println("🛑 Game engine stopped")
}

// tick measures the wall-clock delta since the previous tick and steps.
func (e *Engine) tick() {
	start := time.Now()

	e.mu.Lock()
	deltaMs := float64(start.Sub(e.lastTick)) / float64(time.Millisecond)
	e.lastTick = start
	e.step(deltaMs)
	info := e.tickInfo(deltaMs)
	e.mu.Unlock()

	if e.OnTick != nil {
		info.Duration = time.Since(start)
		e.OnTick(info)
	}
}

// Step advances the simulation by deltaMs synchronously. The ticker uses the
// same path; tests drive it directly.
func (e *Engine) Step(deltaMs float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.step(deltaMs)
}

// step must be called with mu held.
func (e *Engine) step(deltaMs float64) {
	e.tickCount++
	e.world.Step(deltaMs)

	matchID := e.world.match.ID
	e.world.DrainEvents(func(ev WorldEvent) {
		e.emit(ev.Type, e.tickCount, matchID, ev.Payload)
	})

	if e.world.GameOver() {
		e.endMatch()
	}

	if e.tickCount%uint64(e.tickRate) == 0 {
		e.emit(EventTypeTick, e.tickCount, "", TickPayload{
			Seed:        e.seed,
			Enemies:     len(e.world.enemies),
			Projectiles: len(e.world.projectiles),
			DeltaMs:     deltaMs,
		})
	}

	e.produceSnapshot()
}

func (e *Engine) tickInfo(deltaMs float64) TickInfo {
	w := e.world
	return TickInfo{
		DeltaMs:     deltaMs,
		Tick:        e.tickCount,
		Running:     w.match.Running,
		Enemies:     len(w.enemies),
		Projectiles: len(w.projectiles),
		Particles:   len(w.particles),
		ExpOrbs:     len(w.orbs),
		LootBoxes:   len(w.loot),
		Pools:       w.pools.Stats(),
		Quadtree:    w.tree.Stats(),
	}
}

// emit forwards to the event log and the OnEvent hook. Called with mu held.
func (e *Engine) emit(t EventType, tick uint64, matchID string, payload any) {
	e.eventLog.EmitSimple(t, tick, matchID, payload)
	if e.OnEvent != nil {
		e.OnEvent(t, payload)
	}
}

// produceSnapshot publishes the current frame. Called with mu held.
func (e *Engine) produceSnapshot() {
	snap := e.snapshotPool.AcquireWrite()
	snap.TickNumber = e.tickCount
	fillSnapshot(snap, e.world, e.limits)
	snap.Highscore = e.highscore
	e.snapshotPool.PublishWrite()
}

// =============================================================================
// MATCH LIFECYCLE
// =============================================================================

// StartMatch begins a new match with the stored perks applied and returns
// its id.
func (e *Engine) StartMatch() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.world.match.Running {
		return "", ErrMatchInProgress
	}

	id := uuid.NewString()
	e.world.StartMatch(id, e.perks)
	e.world.DrainEvents(func(ev WorldEvent) {
		e.emit(ev.Type, e.tickCount, id, ev.Payload)
	})
	e.produceSnapshot()

	log.Printf("⚔️ Match %s started (%s)", id, orNone(e.perks.Summary()))
	return id, nil
}

// EndMatch abandons the running match, scoring it like a death.
func (e *Engine) EndMatch() (MatchSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.world.match.Running {
		return MatchSummary{}, ErrNoMatch
	}
	summary := e.endMatch()
	e.produceSnapshot()
	return summary, nil
}

// endMatch persists the highscore and perk points, then returns the world to
// demo mode. Called with mu held.
func (e *Engine) endMatch() MatchSummary {
	res := e.world.EndMatch()
	seconds := int(math.Floor(res.ElapsedMs / 1000))

	newHigh, err := e.repo.SubmitHighscore(seconds)
	if err != nil {
		log.Printf("⚠️ %v", err)
	}
	if newHigh {
		e.highscore = seconds
	}

	points := PointsForMatch(res.SessionExp, e.tuning.Progression)
	e.perks.Points += points
	if err := e.repo.SavePerks(e.perks); err != nil {
		log.Printf("⚠️ %v", err)
	}

	summary := MatchSummary{
		ID:           res.ID,
		Seconds:      seconds,
		Level:        res.Level,
		Kills:        res.Kills,
		SessionExp:   res.SessionExp,
		Points:       points,
		NewHighscore: newHigh,
	}
	e.lastMatch = &summary

	e.emit(EventTypeMatchEnd, e.tickCount, res.ID, MatchEndPayload{
		Seconds:      seconds,
		Level:        res.Level,
		Kills:        res.Kills,
		SessionExp:   res.SessionExp,
		Points:       points,
		NewHighscore: newHigh,
	})
	log.Printf("🏁 Match %s ended: %ds, level %d, %d kills, +%d perk points", res.ID, seconds, res.Level, res.Kills, points)
	return summary
}

// SetPaused pauses or resumes the running match.
func (e *Engine) SetPaused(paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.world.match.Running {
		return ErrNoMatch
	}
	e.world.SetPaused(paused)
	e.produceSnapshot()
	return nil
}

// SetInput stores the latest movement intent.
func (e *Engine) SetInput(in Input) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.world.SetInput(in)
}

// Choose resolves the open modal.
func (e *Engine) Choose(index int) (Choice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	opt, err := e.world.Choose(index)
	if err != nil {
		return Choice{}, err
	}
	matchID := e.world.match.ID
	e.world.DrainEvents(func(ev WorldEvent) {
		e.emit(ev.Type, e.tickCount, matchID, ev.Payload)
	})
	e.produceSnapshot()
	return opt, nil
}

// =============================================================================
// PROGRESSION
// =============================================================================

// BuyPerk spends a perk point and persists the result.
func (e *Engine) BuyPerk(tree PerkTree, tier int) (PerkState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := clonePerks(e.perks)
	if err := next.Buy(tree, tier); err != nil {
		return clonePerks(e.perks), err
	}
	if err := e.repo.SavePerks(next); err != nil {
		return clonePerks(e.perks), fmt.Errorf("buy perk: %w", err)
	}
	e.perks = next

	e.emit(EventTypePerkPurchased, e.tickCount, "", PerkPurchasedPayload{
		Tree: tree, Tier: tier, Remaining: next.Points,
	})
	log.Printf("⭐ Perk %s tier %d purchased (%d points left)", tree, tier, next.Points)
	return clonePerks(next), nil
}

// Progression returns perk state, summary and highscore.
func (e *Engine) Progression() ProgressView {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return ProgressView{
		Perks:     clonePerks(e.perks),
		Summary:   e.perks.Summary(),
		Highscore: e.highscore,
	}
}

func clonePerks(s PerkState) PerkState {
	out := NewPerkState()
	out.Points = s.Points
	for tree, tiers := range s.Trees {
		if out.Trees[tree] == nil {
			out.Trees[tree] = make(map[int]bool, len(tiers))
		}
		for tier, owned := range tiers {
			out.Trees[tree][tier] = owned
		}
	}
	return out
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Resize changes the play area.
func (e *Engine) Resize(width, height float64) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidCanvas
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.world.Resize(width, height)
	return nil
}

// GetSnapshot returns a deep copy of the latest frame.
func (e *Engine) GetSnapshot() Snapshot {
	snap, _ := e.snapshotPool.Latest()
	return snap
}

// ViewSnapshot calls fn with the latest frame without copying it.
// fn must not retain the pointer.
func (e *Engine) ViewSnapshot(fn func(*Snapshot)) bool {
	return e.snapshotPool.View(fn)
}

// Status returns a summary of the current state.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	w := e.world
	st := Status{
		State:        StatusDemo,
		MatchID:      w.match.ID,
		ElapsedMs:    w.match.ElapsedMs,
		Kills:        w.match.Kills,
		SessionExp:   w.match.SessionExp,
		Enemies:      len(w.enemies),
		Projectiles:  len(w.projectiles),
		Choice:       w.choice.Kind.String(),
		PendingLevel: w.pendingLevelUps,
		Tick:         e.tickCount,
		Highscore:    e.highscore,
	}
	switch {
	case !w.match.Running:
	case w.choice.Open():
		st.State = StatusChoosing
	case w.match.Paused:
		st.State = StatusPaused
	default:
		st.State = StatusRunning
	}
	if p := w.player; p != nil {
		st.Level = p.Level
		st.Health = p.Health
		st.MaxHealth = p.MaxHealth
	}
	if e.lastMatch != nil {
		last := *e.lastMatch
		st.LastMatch = &last
	}
	return st
}

// PoolStats returns active/free counts per entity kind.
func (e *Engine) PoolStats() map[string]pool.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.world.pools.Stats()
}

// QuadtreeStats returns the spatial index shape from the last rebuild.
func (e *Engine) QuadtreeStats() spatial.QuadtreeStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.world.tree.Stats()
}

// QuadtreeNodes returns the node rectangles and depths from the last rebuild.
func (e *Engine) QuadtreeNodes() []QuadtreeNode {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var nodes []QuadtreeNode
	e.world.tree.Walk(func(r spatial.Rect, depth, count int) {
		nodes = append(nodes, QuadtreeNode{Bounds: r, Depth: depth, Objects: count})
	})
	return nodes
}

// QuadtreeNode is one node of the debug overlay.
type QuadtreeNode struct {
	Bounds  spatial.Rect `json:"bounds"`
	Depth   int          `json:"depth"`
	Objects int          `json:"objects"`
}

// Tuning returns the tuning table the engine was built with.
func (e *Engine) Tuning() config.Tuning {
	return e.tuning
}

// TickCount returns the number of ticks processed.
func (e *Engine) TickCount() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tickCount
}

// StartEventLog initializes the event logging system
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog gracefully stops the event logging system
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns event log statistics for monitoring
func (e *Engine) GetEventLogStats() map[string]any {
	return e.eventLog.GetStats()
}

// RecentEvents returns up to n of the latest events.
func (e *Engine) RecentEvents(n int) []Event {
	return e.eventLog.Recent(n)
}

func orNone(s string) string {
	if s == "" {
		return "no perks"
	}
	return s
}
