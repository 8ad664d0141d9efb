package game

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/iburimskiy/meteor-shower/internal/config"
	"github.com/iburimskiy/meteor-shower/internal/host"
	"github.com/iburimskiy/meteor-shower/internal/meteor"
	"github.com/iburimskiy/meteor-shower/internal/palette"
	"github.com/iburimskiy/meteor-shower/internal/theme"
)

const showerListener = "shower"

// Chimes plays a sound for each launched meteor.
type Chimes interface {
	Play(size float64)
	Level() float64
}

// Game is the composition root: it owns the shower, the sky it draws on and
// the host loop that schedules both, and feeds them window events.
type Game struct {
	settings config.Settings
	log      *slog.Logger
	now      func() time.Time
	pick     func() bannerResult

	loop     *host.Loop
	sky      *Sky
	env      *windowEnv
	surfaces map[string]meteor.Surface
	shower   *meteor.Controller
	mounted  bool

	themes        *theme.Switcher
	themeThrottle *host.Throttle
	chimes        Chimes
	rng           *rand.Rand

	width, height int
	lastWidth     int
	hidden        bool
	visible       bool
	started       time.Time

	buttonHovered bool
	buttonPressed bool
	dialogOpen    bool
	banners       chan bannerResult

	lastErr error
}

// Option configures a Game.
type Option func(*Game)

// WithChimes plays c for every launched meteor.
func WithChimes(c Chimes) Option {
	return func(g *Game) { g.chimes = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Game) { g.now = now }
}

// WithRandom seeds meteor attributes from r.
func WithRandom(r *rand.Rand) Option {
	return func(g *Game) { g.rng = r }
}

// New assembles a game from settings. The shower itself is mounted on the
// first update, once the window has a size.
func New(settings config.Settings, log *slog.Logger, opts ...Option) *Game {
	g := &Game{
		settings: settings,
		log:      log,
		now:      time.Now,
		pick:     pickBanner,
		env:      &windowEnv{reduced: settings.ReducedMotion},
		banners:  make(chan bannerResult, 1),
		visible:  true,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(g.now().UnixNano()))
	}

	g.started = g.now()
	g.loop = host.NewLoop(g.started)
	g.themes = theme.NewSwitcher(settings.ThemeMode, settings.OSDark, g.log)
	g.themeThrottle = host.NewThrottle(g.loop, config.ThemeThrottle, g.themes.Cycle)

	g.sky = NewSky(g.startScheme(), g.themes.Variant())
	g.surfaces = map[string]meteor.Surface{config.SurfaceIDSky: g.sky}

	g.themes.Subscribe(showerListener, func(v meteor.Theme) {
		if g.shower != nil {
			g.shower.HandleThemeChange(v)
			return
		}
		g.sky.Restyle(v, nil)
	})
	return g
}

// startScheme prefers the banner image, then the flat banner color.
func (g *Game) startScheme() palette.Scheme {
	if path := g.settings.BannerPath; path != "" {
		s, err := palette.LoadFile(path)
		if err == nil {
			return s
		}
		g.log.Warn("banner not applied", "path", path, "error", err)
	}
	if hex := g.settings.BannerColor; hex != "" {
		c, err := palette.ParseColor(hex)
		if err == nil {
			return palette.FromRGB(c.R, c.G, c.B)
		}
		g.log.Warn("banner color not applied", "color", hex, "error", err)
	}
	return palette.Default
}

func (g *Game) lookupSurface(id string) (meteor.Surface, bool) {
	s, ok := g.surfaces[id]
	return s, ok
}

// mount builds the shower on the configured surface. A missing surface leaves
// the rest of the app running without the effect.
func (g *Game) mount() {
	g.mounted = true
	shower, err := meteor.Mount(g.lookupSurface, g.settings.SurfaceID, g.loop, g.env,
		meteor.WithConfig(g.settings.Meteor),
		meteor.WithRandom(g.rng),
		meteor.WithLogger(g.log),
		meteor.WithThemeAdjuster(g.sky.Restyle),
		meteor.WithLaunchObserver(g.onLaunch),
	)
	if err != nil {
		g.lastErr = err
		return
	}
	g.shower = shower
}

func (g *Game) onLaunch(m *meteor.Meteor) {
	if g.chimes == nil {
		return
	}
	cfg := g.shower.Status().Config
	g.chimes.Play(sizeFraction(m.Size(), cfg.MinSize, cfg.MaxSize))
}

// advance runs one frame of game logic at now. minimized reports whether the
// window is currently minimized.
func (g *Game) advance(now time.Time, minimized bool) {
	select {
	case res := <-g.banners:
		g.applyBanner(res)
	default:
	}

	g.env.width = g.width
	if !g.mounted && g.width > 0 {
		g.lastWidth = g.width
		g.mount()
	}

	if g.shower != nil {
		if g.width != g.lastWidth {
			g.lastWidth = g.width
			g.shower.HandleResize()
		}
		visible := !g.hidden && !minimized
		if visible != g.visible {
			g.visible = visible
			g.shower.HandleVisibility(visible)
		}
	}

	g.loop.Step(now)
}

// ToggleShower flips the effect on or off.
func (g *Game) ToggleShower() {
	if g.shower == nil {
		return
	}
	g.shower.Toggle()
}

// Status reports the shower state; ok is false when no shower is mounted.
func (g *Game) Status() (status meteor.Status, ok bool) {
	if g.shower == nil {
		return meteor.Status{}, false
	}
	return g.shower.Status(), true
}

func (g *Game) toggleReducedMotion() {
	g.env.reduced = !g.env.reduced
	g.log.Info("reduced motion preference changed", "reduced", g.env.reduced)
	if g.shower != nil {
		g.shower.HandlePreferenceChange()
	}
}

func (g *Game) toggleOSDark() {
	g.themes.SetOSDark(!g.themes.OSDark())
	g.log.Info("platform dark preference changed", "dark", g.themes.OSDark())
}

// close stops the shower and detaches it from the theme.
func (g *Game) close() {
	g.themes.Unsubscribe(showerListener)
	if g.shower != nil {
		g.shower.Stop()
	}
}

func (g *Game) handleInput() error {
	mouseX, mouseY := ebiten.CursorPosition()
	g.buttonHovered = buttonHit(mouseX, mouseY)
	if g.buttonHovered && inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		g.buttonPressed = true
	}
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		if g.buttonPressed && g.buttonHovered {
			g.openBannerDialog()
		}
		g.buttonPressed = false
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape), inpututil.IsKeyJustPressed(ebiten.KeyQ):
		return ebiten.Termination
	case inpututil.IsKeyJustPressed(ebiten.KeyM):
		g.ToggleShower()
	case inpututil.IsKeyJustPressed(ebiten.KeyT):
		g.themeThrottle.Call()
	case inpututil.IsKeyJustPressed(ebiten.KeyB):
		g.openBannerDialog()
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.toggleReducedMotion()
	case inpututil.IsKeyJustPressed(ebiten.KeyH):
		g.hidden = !g.hidden
	case inpututil.IsKeyJustPressed(ebiten.KeyO):
		g.toggleOSDark()
	}
	return nil
}

func (g *Game) Update() error {
	if err := g.handleInput(); err != nil {
		return err
	}
	g.advance(g.now(), ebiten.IsWindowMinimized())
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	drawBackground(screen, g.sky.Scheme(), g.sky.Variant())

	glow := 0.0
	if g.chimes != nil {
		glow = g.chimes.Level() * 4
	}
	g.sky.Draw(screen, g.loop.Now(), glow)

	g.drawButton(screen)
	ebitenutil.DebugPrintAt(screen, g.statusLine(), 12, 12)
}

func (g *Game) statusLine() string {
	up := formatDuration(g.loop.Now().Sub(g.started))
	themeText := fmt.Sprintf("theme %s (%s)", g.themes.Mode(), g.themes.Variant())

	var line string
	if st, ok := g.Status(); ok {
		state := "stopped"
		if st.Running {
			state = "running"
		}
		line = fmt.Sprintf("meteors %s %d/%d | %s | up %s", state, st.ActiveCount, st.Config.MaxConcurrent, themeText, up)
	} else {
		line = fmt.Sprintf("meteors unavailable | %s | up %s", themeText, up)
	}
	if g.env.reduced {
		line += " | reduced motion"
	}
	if g.hidden {
		line += " | hidden"
	}
	if g.lastErr != nil {
		line += " | error: " + g.lastErr.Error()
	}
	return line
}

// Layout keeps the logical screen equal to the window so the viewport width
// the shower gates on is the real one.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.width, g.height = outsideWidth, outsideHeight
	return outsideWidth, outsideHeight
}

// Run opens the window and blocks until it is closed.
func Run(g *Game) error {
	ebiten.SetWindowSize(config.WindowWidth, config.WindowHeight)
	ebiten.SetWindowTitle(config.WindowTitle)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetRunnableOnUnfocused(true)

	defer g.close()
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}
