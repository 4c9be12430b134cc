// Package window shows the simulation in a desktop window. Ebiten's update
// callback drives the loop, so the engine is only touched from Ebiten's
// game goroutine.
package window

import (
	"context"
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/banshee-data/cellwatch/internal/monitoring"
	"github.com/banshee-data/cellwatch/internal/sim"
)

var logf = monitoring.Prefixed("window")

// Options configure the window.
type Options struct {
	Title  string
	Width  int
	Height int
	// TPS is the update rate; the engine simulates on its own cadence
	// within it.
	TPS int
}

// Game adapts an Engine to ebiten.Game.
type Game struct {
	ctx    context.Context
	engine *sim.Engine
	vp     sim.Viewport
}

var (
	_ ebiten.Game = (*Game)(nil)
	_ sim.Display = (*Game)(nil)
	_ sim.Canvas  = screenCanvas{}
)

// NewGame creates the adapter. The viewport starts at the window size and
// follows Layout afterwards.
func NewGame(ctx context.Context, engine *sim.Engine, opts Options) *Game {
	return &Game{ctx: ctx, engine: engine, vp: sim.Viewport{Width: opts.Width, Height: opts.Height}}
}

// Viewport implements sim.Display.
func (g *Game) Viewport() sim.Viewport { return g.vp }

// Update advances the loop. 'f' toggles fullscreen; 'q', Escape or ctx
// cancellation end the game.
func (g *Game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		logf("quit requested")
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	g.engine.Advance(g.vp)
	return nil
}

// Draw renders the grid onto the screen.
func (g *Game) Draw(screen *ebiten.Image) {
	g.engine.Render(screenCanvas{screen})
}

// Layout uses the outside size as the logical screen so the grid grows and
// shrinks with the window.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.vp = sim.Viewport{Width: outsideWidth, Height: outsideHeight}
	return outsideWidth, outsideHeight
}

type screenCanvas struct {
	img *ebiten.Image
}

func (c screenCanvas) Fill(col color.Color) { c.img.Fill(col) }

func (c screenCanvas) Line(x0, y0, x1, y1 float32, col color.Color) {
	vector.StrokeLine(c.img, x0, y0, x1, y1, 1, col, false)
}

func (c screenCanvas) Rect(x, y, w, h float32, col color.Color) {
	vector.DrawFilledRect(c.img, x, y, w, h, col, false)
}

// Run opens the window and blocks until it is closed, a quit key is pressed
// or ctx is done.
func Run(ctx context.Context, engine *sim.Engine, opts Options) error {
	if opts.TPS <= 0 {
		opts.TPS = 60
	}
	ebiten.SetWindowTitle(opts.Title)
	ebiten.SetWindowSize(opts.Width, opts.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(opts.TPS)

	logf("window %dx%d at %d TPS", opts.Width, opts.Height, opts.TPS)
	if err := ebiten.RunGame(NewGame(ctx, engine, opts)); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	return nil
}
