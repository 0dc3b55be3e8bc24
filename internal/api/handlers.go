package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"neon-survivor/internal/game"
)

// Handler methods for routerHandlers. Shared by the standalone router used in
// tests and the full Server.

// stateResponse is the GET /api/state body.
type stateResponse struct {
	Status   game.Status          `json:"status"`
	Player   *game.PlayerSnapshot `json:"player,omitempty"`
	Weapons  []string             `json:"weapons"`
	Choice   game.ChoiceSnapshot  `json:"choice"`
	Counts   map[string]int       `json:"counts"`
	Sequence uint64               `json:"sequence"`
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{Status: h.engine.Status()}
	h.engine.ViewSnapshot(func(s *game.Snapshot) {
		if s.HasPlayer {
			p := s.Player
			resp.Player = &p
		}
		resp.Weapons = append([]string(nil), s.Weapons...)
		resp.Choice = game.ChoiceSnapshot{
			Kind:    s.Choice.Kind,
			Options: append([]game.Choice(nil), s.Choice.Options...),
		}
		resp.Counts = map[string]int{
			"enemies":     len(s.Enemies),
			"projectiles": len(s.Projectiles),
			"expOrbs":     len(s.ExpOrbs),
			"lootBoxes":   len(s.LootBoxes),
			"particles":   len(s.Particles),
		}
		resp.Sequence = s.Sequence
	})
	writeJSON(w, resp)
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"tick":     h.engine.TickCount(),
		"pools":    h.engine.PoolStats(),
		"quadtree": h.engine.QuadtreeStats(),
		"eventLog": h.engine.GetEventLogStats(),
	})
}

func (h *routerHandlers) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Tuning())
}

func (h *routerHandlers) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	n := 50
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = min(parsed, 500)
	}
	writeJSON(w, h.engine.RecentEvents(n))
}

func (h *routerHandlers) handleMatchStart(w http.ResponseWriter, r *http.Request) {
	id, err := h.engine.StartMatch()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, map[string]string{"matchId": id})
}

func (h *routerHandlers) handleMatchEnd(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.EndMatch()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, summary)
}

func (h *routerHandlers) handleMatchPause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paused *bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Paused == nil {
		writeError(w, "paused is required", http.StatusBadRequest)
		return
	}
	if err := h.engine.SetPaused(*req.Paused); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"paused": *req.Paused})
}

func (h *routerHandlers) handleMatchChoice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index *int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		writeError(w, "index is required", http.StatusBadRequest)
		return
	}
	choice, err := h.engine.Choose(*req.Index)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, choice)
}

func (h *routerHandlers) handleInput(w http.ResponseWriter, r *http.Request) {
	var in game.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	h.engine.SetInput(in)
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleGetProgression(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Progression())
}

func (h *routerHandlers) handleBuyPerk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tree string `json:"tree"`
		Tier int    `json:"tier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	perks, err := h.engine.BuyPerk(game.PerkTree(req.Tree), req.Tier)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, game.ProgressView{Perks: perks, Summary: perks.Summary(), Highscore: h.engine.Progression().Highscore})
}

func (h *routerHandlers) handleFrame(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeError(w, "Renderer not configured", http.StatusServiceUnavailable)
		return
	}

	var nodes []game.QuadtreeNode
	if r.URL.Query().Get("debug") == "1" {
		nodes = h.engine.QuadtreeNodes()
	}

	// Render from a copy so the snapshot slot is not held while drawing.
	snap := h.engine.GetSnapshot()
	start := time.Now()
	data, err := h.renderer.RenderPNG(&snap, nodes)
	RecordRender(time.Since(start))
	if err != nil {
		log.Printf("⚠️ Frame render failed: %v", err)
		writeError(w, "Render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func (h *routerHandlers) handleSfx(w http.ResponseWriter, r *http.Request) {
	if h.sfx == nil {
		writeError(w, "SFX disabled", http.StatusNotFound)
		return
	}
	clip, ok := h.sfx.Cue(chi.URLParam(r, "cue"))
	if !ok {
		writeError(w, "Unknown cue", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(clip)
}

// Helper functions (package-level for reuse)

// errorStatus maps engine sentinel errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, game.ErrUnknownTree),
		errors.Is(err, game.ErrUnknownTier),
		errors.Is(err, game.ErrInvalidChoice),
		errors.Is(err, game.ErrInvalidCanvas):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrNoMatch),
		errors.Is(err, game.ErrMatchInProgress),
		errors.Is(err, game.ErrNoPendingChoice),
		errors.Is(err, game.ErrPerkOwned),
		errors.Is(err, game.ErrPerkLocked),
		errors.Is(err, game.ErrNoPoints):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		log.Printf("❌ Engine error: %v", err)
	}
	writeError(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
