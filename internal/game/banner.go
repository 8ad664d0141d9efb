package game

import (
	"errors"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/ncruces/zenity"

	"github.com/iburimskiy/meteor-shower/internal/config"
	"github.com/iburimskiy/meteor-shower/internal/palette"
)

type bannerResult struct {
	path   string
	scheme palette.Scheme
	err    error
}

// pickBanner asks for an image and derives a scheme from it. An empty path
// with no error means the dialog was cancelled.
func pickBanner() bannerResult {
	path, err := zenity.SelectFile(
		zenity.Title("Choose Banner Image"),
		zenity.FileFilters{{
			Name:     "Images",
			Patterns: []string{"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp"},
		}},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return bannerResult{}
		}
		return bannerResult{err: err}
	}
	scheme, err := palette.LoadFile(path)
	return bannerResult{path: path, scheme: scheme, err: err}
}

// openBannerDialog runs the picker off the game goroutine; the result is
// applied by the next Update.
func (g *Game) openBannerDialog() {
	if g.dialogOpen {
		return
	}
	g.dialogOpen = true
	go func() {
		g.banners <- g.pick()
	}()
}

func (g *Game) applyBanner(res bannerResult) {
	g.dialogOpen = false
	switch {
	case res.err != nil:
		g.lastErr = res.err
		g.log.Warn("banner not applied", "error", res.err)
	case res.path == "":
		g.log.Debug("banner dialog cancelled")
	default:
		g.sky.SetScheme(res.scheme)
		g.lastErr = nil
		g.log.Info("banner scheme applied", "path", res.path)
	}
}

func buttonHit(x, y int) bool {
	return x >= config.ButtonX && x <= config.ButtonX+config.ButtonWidth &&
		y >= config.ButtonY && y <= config.ButtonY+config.ButtonHeight
}

func (g *Game) drawButton(screen *ebiten.Image) {
	primary := g.sky.Scheme().Primary(g.sky.Variant())

	var bg color.RGBA
	switch {
	case g.buttonPressed:
		bg = palette.Fade(primary, 1)
	case g.buttonHovered:
		bg = palette.Fade(primary, 0.85)
	default:
		bg = palette.Fade(primary, 0.65)
	}
	vector.DrawFilledRect(screen, config.ButtonX, config.ButtonY, config.ButtonWidth, config.ButtonHeight, bg, false)
	vector.StrokeRect(screen, config.ButtonX, config.ButtonY, config.ButtonWidth, config.ButtonHeight, 2, primary, false)

	text := "Banner..."
	if g.dialogOpen {
		text = "Choosing..."
	}
	textWidth := len(text) * 6
	textX := config.ButtonX + (config.ButtonWidth-textWidth)/2
	textY := config.ButtonY + (config.ButtonHeight-16)/2
	ebitenutil.DebugPrintAt(screen, text, textX, textY)
}
