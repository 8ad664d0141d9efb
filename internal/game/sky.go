package game

import (
	"image/color"
	"math"
	"slices"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/iburimskiy/meteor-shower/internal/config"
	"github.com/iburimskiy/meteor-shower/internal/meteor"
	"github.com/iburimskiy/meteor-shower/internal/palette"
)

const (
	trailSegments = 10
	fadeOutFrom   = 0.8
	goldenRatio   = 0.6180339887
)

// painted is a meteor plus the paint the sky gave it.
type painted struct {
	m     *meteor.Meteor
	shade float64
	tint  palette.Tint
}

// Sky is the rendering surface meteors fall across.
type Sky struct {
	meteors []*painted
	scheme  palette.Scheme
	variant meteor.Theme
}

// NewSky creates an empty sky painted with scheme under variant.
func NewSky(scheme palette.Scheme, variant meteor.Theme) *Sky {
	return &Sky{scheme: scheme, variant: variant}
}

// Insert implements meteor.Surface.
func (s *Sky) Insert(m *meteor.Meteor) {
	shade := math.Mod(float64(m.ID())*goldenRatio, 1)
	s.meteors = append(s.meteors, &painted{
		m:     m,
		shade: shade,
		tint:  palette.MeteorTint(s.scheme, s.variant, shade),
	})
}

// Remove implements meteor.Surface.
func (s *Sky) Remove(m *meteor.Meteor) bool {
	i := slices.IndexFunc(s.meteors, func(p *painted) bool { return p.m == m })
	if i < 0 {
		return false
	}
	s.meteors = slices.Delete(s.meteors, i, i+1)
	return true
}

// Len returns how many meteors are attached.
func (s *Sky) Len() int { return len(s.meteors) }

// Variant returns the theme the sky is painted for.
func (s *Sky) Variant() meteor.Theme { return s.variant }

// Scheme returns the current color scheme.
func (s *Sky) Scheme() palette.Scheme { return s.scheme }

// Restyle repaints the given meteors for theme. It is installed as the
// shower's theme adjuster.
func (s *Sky) Restyle(theme meteor.Theme, active []*meteor.Meteor) {
	s.variant = theme
	for _, p := range s.meteors {
		if slices.Contains(active, p.m) {
			p.tint = palette.MeteorTint(s.scheme, theme, p.shade)
		}
	}
}

// SetScheme repaints every attached meteor with a new scheme.
func (s *Sky) SetScheme(scheme palette.Scheme) {
	s.scheme = scheme
	for _, p := range s.meteors {
		p.tint = palette.MeteorTint(scheme, s.variant, p.shade)
	}
}

// position places m's head at now on a sky of the given height. Meteors fall
// from LaunchTop to the same distance below the bottom edge, drifting left.
func position(m *meteor.Meteor, now time.Time, height int) (x, y, opacity float64, visible bool) {
	progress, started := m.Progress(now)
	if !started {
		return 0, 0, 0, false
	}
	fall := float64(height) - 2*meteor.LaunchTop
	y = meteor.LaunchTop + progress*fall
	x = m.StartX() - progress*fall*config.FallAngle

	opacity = 1.0
	if progress > fadeOutFrom {
		opacity = clamp01((1 - progress) / (1 - fadeOutFrom))
	}
	return x, y, opacity, opacity > 0
}

// Draw paints every attached meteor. glow in [0, 1] brightens the heads.
func (s *Sky) Draw(screen *ebiten.Image, now time.Time, glow float64) {
	height := screen.Bounds().Dy()
	dx, dy := direction()

	for _, p := range s.meteors {
		x, y, opacity, ok := position(p.m, now, height)
		if !ok {
			continue
		}
		size := p.m.Size()
		length := size * config.TrailLength

		for i := 0; i < trailSegments; i++ {
			t0 := float64(i) / trailSegments
			t1 := float64(i+1) / trailSegments
			alpha := opacity * (1 - t0) * 0.8
			width := float32(math.Max(1, size/6*(1-t0)))
			vector.StrokeLine(screen,
				float32(x-dx*length*t0), float32(y-dy*length*t0),
				float32(x-dx*length*t1), float32(y-dy*length*t1),
				width, palette.Fade(p.tint.Trail, alpha), true)
		}

		radius := float32(math.Max(1.5, size/8))
		halo := palette.Fade(p.tint.Trail, opacity*(0.25+0.5*clamp01(glow)))
		vector.DrawFilledCircle(screen, float32(x), float32(y), radius*(2+float32(glow)), halo, true)
		vector.DrawFilledCircle(screen, float32(x), float32(y), radius, palette.Fade(p.tint.Head, opacity), true)
	}
}

// direction is the unit vector of a meteor's travel.
func direction() (dx, dy float64) {
	n := math.Hypot(config.FallAngle, 1)
	return -config.FallAngle / n, 1 / n
}

// drawBackground fills the sky with a vertical gradient for the current theme.
func drawBackground(screen *ebiten.Image, scheme palette.Scheme, variant meteor.Theme) {
	top, bottom := palette.Background(scheme, variant)
	b := screen.Bounds()
	w, h := float32(b.Dx()), b.Dy()
	for y := 0; y < h; y++ {
		ratio := float64(y) / float64(max(1, h-1))
		c := color.RGBA{
			R: lerp8(top.R, bottom.R, ratio),
			G: lerp8(top.G, bottom.G, ratio),
			B: lerp8(top.B, bottom.B, ratio),
			A: 0xff,
		}
		vector.DrawFilledRect(screen, 0, float32(y), w, 1, c, false)
	}
}

func lerp8(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}
