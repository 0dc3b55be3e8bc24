package game

import (
	"encoding/json"
	"time"

	"neon-survivor/internal/config"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // Periodic tick summary
	EventTypeMatchStart
	EventTypeMatchEnd
	EventTypePlayerHit
	EventTypeEnemyKilled
	EventTypeLevelUp
	EventTypeLootOpened
	EventTypeChoiceMade
	EventTypePerkPurchased
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure for the event log
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Name      string          `json:"name"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`
	TickNum   uint64          `json:"tickNum"`
	MatchID   string          `json:"matchId,omitempty"` // rate limiting key
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeMatchStart:
		return "match_start"
	case EventTypeMatchEnd:
		return "match_end"
	case EventTypePlayerHit:
		return "player_hit"
	case EventTypeEnemyKilled:
		return "enemy_killed"
	case EventTypeLevelUp:
		return "level_up"
	case EventTypeLootOpened:
		return "loot_opened"
	case EventTypeChoiceMade:
		return "choice_made"
	case EventTypePerkPurchased:
		return "perk_purchased"
	default:
		return "unknown"
	}
}

// Typed payloads for different event types

// TickPayload summarizes one engine tick.
type TickPayload struct {
	Seed        int64   `json:"seed"`
	Enemies     int     `json:"enemies"`
	Projectiles int     `json:"projectiles"`
	DeltaMs     float64 `json:"deltaMs"`
}

// MatchStartPayload records the starting loadout.
type MatchStartPayload struct {
	Speed  float64             `json:"speed"`
	Armor  float64             `json:"armor"`
	Perks  string              `json:"perks"`
	Canvas config.CanvasConfig `json:"canvas"`
}

// MatchEndPayload records the outcome and the points awarded.
type MatchEndPayload struct {
	Seconds      int  `json:"seconds"`
	Level        int  `json:"level"`
	Kills        int  `json:"kills"`
	SessionExp   int  `json:"sessionExp"`
	Points       int  `json:"points"`
	NewHighscore bool `json:"newHighscore"`
}

// PlayerHitPayload contains contact damage details
type PlayerHitPayload struct {
	Enemy  string  `json:"enemy"`
	Damage float64 `json:"damage"`
	Health float64 `json:"health"`
	Lethal bool    `json:"lethal,omitempty"`
}

// EnemyKilledPayload contains kill details
type EnemyKilledPayload struct {
	Kind string  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Exp  int     `json:"exp"`
}

// LevelUpPayload is emitted when a queued level-up is applied.
type LevelUpPayload struct {
	Level     int `json:"level"`
	ExpToNext int `json:"expToNext"`
}

// ChoicePayload describes a modal being opened or resolved.
type ChoicePayload struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// PerkPurchasedPayload contains perk purchase details
type PerkPurchasedPayload struct {
	Tree      PerkTree `json:"tree"`
	Tier      int      `json:"tier"`
	Remaining int      `json:"remaining"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload any) json.RawMessage {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, matchID string, payload any) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Name:      eventType.String(),
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		MatchID:   matchID,
		Payload:   EncodePayload(payload),
	}
}
