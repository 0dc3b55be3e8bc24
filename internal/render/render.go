// Package render rasterizes game snapshots into PNG frames.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"neon-survivor/internal/config"
	"neon-survivor/internal/game"
)

var (
	backgroundColor = color.RGBA{8, 8, 20, 255}
	gridColor       = color.RGBA{24, 32, 56, 255}
	orbColor        = color.RGBA{80, 220, 255, 255}
	lootColor       = color.RGBA{255, 200, 60, 255}
	playerColor     = color.RGBA{0, 255, 200, 255}
	hudColor        = color.RGBA{230, 230, 255, 255}
	overlayColor    = color.RGBA{255, 0, 200, 90}
)

const gridSize = 80.0

// Renderer draws snapshots with a reusable gg context. Safe for concurrent
// use; frames are serialized on an internal mutex.
type Renderer struct {
	mu     sync.Mutex
	width  int
	height int
	dc     *gg.Context
}

// NewRenderer creates a renderer for the given canvas.
func NewRenderer(canvas config.CanvasConfig) *Renderer {
	w, h := int(canvas.Width), int(canvas.Height)
	if w <= 0 || h <= 0 {
		def := config.DefaultCanvas()
		w, h = int(def.Width), int(def.Height)
	}
	return &Renderer{width: w, height: h, dc: gg.NewContext(w, h)}
}

// Size returns the output dimensions in pixels.
func (r *Renderer) Size() (int, int) {
	return r.width, r.height
}

// Render draws snap and returns a copy of the frame. nodes, when non-nil,
// are drawn as a quadtree overlay.
func (r *Renderer) Render(snap *game.Snapshot, nodes []game.QuadtreeNode) image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.draw(snap, nodes)

	src := r.dc.Image()
	out := image.NewRGBA(src.Bounds())
	if rgba, ok := src.(*image.RGBA); ok {
		copy(out.Pix, rgba.Pix)
		return out
	}
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, src.At(x, y))
		}
	}
	return out
}

// RenderPNG draws snap and encodes the frame as PNG.
func (r *Renderer) RenderPNG(snap *game.Snapshot, nodes []game.QuadtreeNode) ([]byte, error) {
	img := r.Render(snap, nodes)
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) draw(snap *game.Snapshot, nodes []game.QuadtreeNode) {
	dc := r.dc
	dc.Identity()

	dc.SetColor(backgroundColor)
	dc.DrawRectangle(0, 0, float64(r.width), float64(r.height))
	dc.Fill()

	// World layer, scaled from canvas units and offset by shake.
	dc.Push()
	sx, sy := r.scale(snap.Canvas)
	dc.Scale(sx, sy)
	if dx, dy := shakeOffset(snap.Shake, snap.Sequence); dx != 0 || dy != 0 {
		dc.Translate(dx, dy)
	}

	r.drawGrid(dc, snap.Canvas)
	drawOrbs(dc, snap.ExpOrbs)
	drawLoot(dc, snap.LootBoxes)
	drawEnemies(dc, snap.Enemies)
	drawProjectiles(dc, snap.Projectiles)
	drawParticles(dc, snap.Particles)
	if snap.HasPlayer {
		drawPlayer(dc, snap.Player)
	} else {
		dc.SetColor(color.RGBA{255, 255, 255, 60})
		dc.DrawCircle(snap.DemoX, snap.DemoY, 6)
		dc.Fill()
	}
	if nodes != nil {
		drawQuadtree(dc, nodes)
	}
	dc.Pop()

	r.drawHUD(dc, snap)
}

func (r *Renderer) scale(canvas config.CanvasConfig) (float64, float64) {
	if canvas.Width <= 0 || canvas.Height <= 0 {
		return 1, 1
	}
	return float64(r.width) / canvas.Width, float64(r.height) / canvas.Height
}

// shakeOffset is deterministic per frame so identical snapshots render
// identically.
func shakeOffset(s game.ShakeSnapshot, seq uint64) (float64, float64) {
	if s.TimeMs <= 0 || s.Intensity <= 0 {
		return 0, 0
	}
	phase := float64(seq)
	return math.Sin(phase*12.9898) * s.Intensity, math.Cos(phase*78.233) * s.Intensity
}

func (r *Renderer) drawGrid(dc *gg.Context, canvas config.CanvasConfig) {
	w, h := canvas.Width, canvas.Height
	if w <= 0 || h <= 0 {
		w, h = float64(r.width), float64(r.height)
	}
	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	for x := 0.0; x <= w; x += gridSize {
		dc.DrawLine(x, 0, x, h)
		dc.Stroke()
	}
	for y := 0.0; y <= h; y += gridSize {
		dc.DrawLine(0, y, w, y)
		dc.Stroke()
	}
}

func drawOrbs(dc *gg.Context, orbs []game.OrbSnapshot) {
	dc.SetColor(orbColor)
	for _, o := range orbs {
		dc.DrawCircle(o.X, o.Y, 3+math.Min(float64(o.Value), 5))
		dc.Fill()
	}
}

func drawLoot(dc *gg.Context, boxes []game.LootSnapshot) {
	for _, b := range boxes {
		dc.SetColor(lootColor)
		dc.DrawRectangle(b.X-8, b.Y-8, 16, 16)
		dc.Fill()
		dc.SetColor(color.White)
		dc.SetLineWidth(2)
		dc.DrawRectangle(b.X-8, b.Y-8, 16, 16)
		dc.Stroke()
	}
}

func drawEnemies(dc *gg.Context, enemies []game.EnemySnapshot) {
	for _, e := range enemies {
		dc.SetColor(parseHexColor(e.Color))
		dc.DrawCircle(e.X, e.Y, e.Size)
		dc.Fill()

		if e.MaxHealth <= 0 || e.Health >= e.MaxHealth {
			continue
		}
		// Health bar only once damaged
		barW := e.Size * 2
		pct := math.Max(0, e.Health/e.MaxHealth)
		dc.SetColor(color.RGBA{51, 51, 51, 255})
		dc.DrawRectangle(e.X-barW/2, e.Y-e.Size-8, barW, 4)
		dc.Fill()
		dc.SetColor(healthColor(pct))
		dc.DrawRectangle(e.X-barW/2, e.Y-e.Size-8, barW*pct, 4)
		dc.Fill()
	}
}

func drawProjectiles(dc *gg.Context, projectiles []game.ProjectileSnapshot) {
	for _, p := range projectiles {
		dc.SetColor(parseHexColor(p.Color))
		dc.DrawCircle(p.X, p.Y, p.Size)
		dc.Fill()
	}
}

func drawParticles(dc *gg.Context, particles []game.ParticleSnapshot) {
	for _, p := range particles {
		c := parseHexColor(p.Color)
		c.A = uint8(math.Max(0, math.Min(1, p.Alpha)) * 255)
		if c.A == 0 {
			continue
		}
		dc.SetColor(premultiply(c))
		dc.DrawCircle(p.X, p.Y, p.Size)
		dc.Fill()
	}
}

func drawPlayer(dc *gg.Context, p game.PlayerSnapshot) {
	if p.Invulnerable {
		dc.SetColor(color.RGBA{255, 255, 255, 77})
		dc.DrawCircle(p.X, p.Y, p.Size+6)
		dc.Fill()
	}
	dc.SetColor(playerColor)
	dc.DrawCircle(p.X, p.Y, p.Size)
	dc.Fill()
	dc.SetColor(color.White)
	dc.SetLineWidth(2)
	dc.DrawCircle(p.X, p.Y, p.Size)
	dc.Stroke()

	// Reticle at the pointer
	dc.SetColor(color.RGBA{255, 255, 255, 160})
	dc.SetLineWidth(1)
	dc.DrawCircle(p.PointerX, p.PointerY, 8)
	dc.Stroke()
	dc.DrawLine(p.PointerX-12, p.PointerY, p.PointerX+12, p.PointerY)
	dc.Stroke()
	dc.DrawLine(p.PointerX, p.PointerY-12, p.PointerX, p.PointerY+12)
	dc.Stroke()
}

func drawQuadtree(dc *gg.Context, nodes []game.QuadtreeNode) {
	dc.SetColor(overlayColor)
	dc.SetLineWidth(1)
	for _, n := range nodes {
		b := n.Bounds
		dc.DrawRectangle(b.X, b.Y, b.W, b.H)
		dc.Stroke()
	}
}

func (r *Renderer) drawHUD(dc *gg.Context, snap *game.Snapshot) {
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(hudColor)
	dc.DrawString(hudLine(snap), 10, 20)

	if !snap.HasPlayer {
		return
	}
	pct := 0.0
	if snap.Player.MaxHealth > 0 {
		pct = math.Max(0, snap.Player.Health/snap.Player.MaxHealth)
	}
	barW := 200.0
	dc.SetColor(color.RGBA{51, 51, 51, 255})
	dc.DrawRectangle(10, 28, barW, 8)
	dc.Fill()
	dc.SetColor(healthColor(pct))
	dc.DrawRectangle(10, 28, barW*pct, 8)
	dc.Fill()

	if snap.Player.ExpToNext > 0 {
		exp := math.Min(1, float64(snap.Player.Exp)/float64(snap.Player.ExpToNext))
		dc.SetColor(orbColor)
		dc.DrawRectangle(10, 40, barW*exp, 4)
		dc.Fill()
	}
}

// hudLine formats the single status line drawn at the top of each frame.
func hudLine(snap *game.Snapshot) string {
	secs := int(snap.ElapsedMs / 1000)
	switch snap.Status {
	case game.StatusDemo:
		return fmt.Sprintf("NEON SURVIVOR  best %ds", snap.Highscore)
	case game.StatusChoosing:
		return fmt.Sprintf("LV %d  %02d:%02d  choose %s", snap.Player.Level, secs/60, secs%60, snap.Choice.Kind)
	}
	line := fmt.Sprintf("LV %d  %02d:%02d  kills %d  best %ds",
		snap.Player.Level, secs/60, secs%60, snap.Kills, snap.Highscore)
	if snap.Status == game.StatusPaused {
		line += "  PAUSED"
	}
	return line
}

func healthColor(pct float64) color.RGBA {
	switch {
	case pct > 0.5:
		return color.RGBA{83, 255, 69, 255}
	case pct > 0.25:
		return color.RGBA{255, 200, 0, 255}
	default:
		return color.RGBA{255, 60, 60, 255}
	}
}

// premultiply converts a straight-alpha color for gg, which expects
// color.Color values in premultiplied form.
func premultiply(c color.RGBA) color.RGBA {
	a := uint16(c.A)
	return color.RGBA{
		R: uint8(uint16(c.R) * a / 255),
		G: uint8(uint16(c.G) * a / 255),
		B: uint8(uint16(c.B) * a / 255),
		A: c.A,
	}
}

// parseHexColor parses "#rrggbb", falling back to white.
func parseHexColor(hex string) color.RGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return color.RGBA{255, 255, 255, 255}
	}
	return color.RGBA{
		R: hexToByte(hex[1], hex[2]),
		G: hexToByte(hex[3], hex[4]),
		B: hexToByte(hex[5], hex[6]),
		A: 255,
	}
}

func hexToByte(h1, h2 byte) uint8 {
	return hexNibble(h1)<<4 | hexNibble(h2)
}

func hexNibble(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
