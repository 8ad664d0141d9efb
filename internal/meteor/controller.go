package meteor

import (
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"slices"
	"time"

	"github.com/iburimskiy/meteor-shower/internal/host"
)

// ErrSurfaceNotFound is returned by Mount when no surface is registered under
// the requested identifier.
var ErrSurfaceNotFound = errors.New("meteor: rendering surface not found")

// Status is a point-in-time view of a Controller.
type Status struct {
	Running     bool
	ActiveCount int
	Config      Config
}

// Controller spawns, animates and retires meteors on a Surface.
//
// A Controller is not safe for concurrent use: all methods, and all callbacks
// it hands to its Scheduler, must run on one goroutine.
type Controller struct {
	surface Surface
	sched   Scheduler
	env     Environment
	rng     Random
	log     *slog.Logger

	config       Config
	running      bool
	frame        host.FrameID
	framePending bool
	lastCreation time.Time
	created      bool
	active       []*Meteor
	nextID       uint64

	adjust    ThemeAdjuster
	observers []LaunchObserver
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.config = cfg.normalized() }
}

// WithRandom sets the random source used for every drawn attribute.
func WithRandom(r Random) Option {
	return func(c *Controller) { c.rng = r }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithThemeAdjuster installs the theme-change hook.
func WithThemeAdjuster(fn ThemeAdjuster) Option {
	return func(c *Controller) { c.adjust = fn }
}

// WithLaunchObserver adds a callback run after each meteor is inserted.
func WithLaunchObserver(fn LaunchObserver) Option {
	return func(c *Controller) { c.observers = append(c.observers, fn) }
}

// New builds a stopped Controller.
func New(surface Surface, sched Scheduler, env Environment, opts ...Option) *Controller {
	c := &Controller{
		surface: surface,
		sched:   sched,
		env:     env,
		config:  DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(sched.Now().UnixNano()))
	}
	if c.log == nil {
		c.log = optionLogger(nil)
	}
	return c
}

// Mount looks up the surface registered as id and builds a Controller on it,
// starting it when gating allows. If the surface is missing it logs a warning
// and returns ErrSurfaceNotFound with no Controller.
func Mount(lookup SurfaceLookup, id string, sched Scheduler, env Environment, opts ...Option) (*Controller, error) {
	surface, ok := lookup(id)
	if !ok || surface == nil {
		optionLogger(opts).Warn("meteor shower surface not found", "surface", id)
		return nil, ErrSurfaceNotFound
	}

	c := New(surface, sched, env, opts...)
	if c.ShouldEnable() {
		c.Start()
	} else {
		c.log.Info("meteor shower gated off at startup", "surface", id)
	}
	return c, nil
}

// optionLogger resolves the logger from opts without building a Controller.
func optionLogger(opts []Option) *slog.Logger {
	var probe Controller
	for _, opt := range opts {
		opt(&probe)
	}
	if probe.log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return probe.log
}

// Start begins the creation loop. It is a no-op when already running.
func (c *Controller) Start() {
	if c.running {
		return
	}
	c.running = true
	c.requestFrame()
	c.log.Info("meteor shower started")
}

// Stop halts the creation loop and clears every active meteor from the
// surface. It is a no-op when already stopped. Removal timers of meteors
// already in flight are left to fire; they find nothing to do.
func (c *Controller) Stop() {
	if !c.running {
		return
	}
	c.running = false
	if c.framePending {
		c.sched.CancelFrame(c.frame)
		c.framePending = false
	}
	c.clearAll()
	c.log.Info("meteor shower stopped")
}

// Toggle starts a stopped controller and stops a running one.
func (c *Controller) Toggle() {
	if c.Status().Running {
		c.Stop()
		return
	}
	c.Start()
}

// UpdateConfig merges p into the configuration and re-applies gating.
func (c *Controller) UpdateConfig(p Patch) {
	c.config = p.Apply(c.config).normalized()
	c.log.Debug("meteor shower config updated",
		"max_concurrent", c.config.MaxConcurrent,
		"enable_on_narrow", c.config.EnableOnNarrowViewport)
	c.regate()
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	return Status{
		Running:     c.running,
		ActiveCount: len(c.active),
		Config:      c.config,
	}
}

// ShouldEnable reports whether the environment currently permits the effect.
// It is evaluated fresh on every call and fails closed on query errors.
func (c *Controller) ShouldEnable() bool {
	width, err := c.env.ViewportWidth()
	if err != nil {
		c.log.Warn("viewport width unavailable, disabling meteor shower", "error", err)
		return false
	}
	if width <= NarrowViewportWidth && !c.config.EnableOnNarrowViewport {
		return false
	}

	reduced, err := c.env.PrefersReducedMotion()
	if err != nil {
		c.log.Warn("reduced-motion preference unavailable, disabling meteor shower", "error", err)
		return false
	}
	return !reduced
}

// HandleResize re-applies gating after the viewport changes size.
func (c *Controller) HandleResize() { c.regate() }

// HandlePreferenceChange re-applies gating after the reduced-motion
// preference flips.
func (c *Controller) HandlePreferenceChange() { c.regate() }

// HandleVisibility stops the effect when hidden and restarts it when visible.
// The restart skips gating unless RegateOnVisible is set.
func (c *Controller) HandleVisibility(visible bool) {
	if !visible {
		c.Stop()
		return
	}
	if c.config.RegateOnVisible && !c.ShouldEnable() {
		return
	}
	c.Start()
}

// HandleThemeChange passes the active meteors to the theme adjuster, if any.
func (c *Controller) HandleThemeChange(theme Theme) {
	if c.adjust == nil {
		return
	}
	c.adjust(theme, slices.Clone(c.active))
}

// RemoveMeteor retires m. It is safe to call more than once and after Stop.
func (c *Controller) RemoveMeteor(m *Meteor) {
	if i := slices.Index(c.active, m); i >= 0 {
		c.active = slices.Delete(c.active, i, i+1)
	}
	c.surface.Remove(m)
}

func (c *Controller) regate() {
	enable := c.ShouldEnable()
	switch {
	case !enable && c.running:
		c.Stop()
	case enable && !c.running:
		c.Start()
	}
}

func (c *Controller) requestFrame() {
	c.frame = c.sched.RequestFrame(c.tick)
	c.framePending = true
}

// tick is the per-frame creation step. A frame queued just before Stop can
// still arrive, so the running check comes first.
func (c *Controller) tick() {
	c.framePending = false
	if !c.running {
		return
	}

	now := c.sched.Now()
	if c.intervalElapsed(now) && len(c.active) < c.config.MaxConcurrent {
		if c.createMeteor(now) {
			c.lastCreation = now
			c.created = true
		}
	}

	if c.running {
		c.requestFrame()
	}
}

// intervalElapsed draws a fresh interval on every call, so arrivals form an
// uneven stream rather than a fixed cadence. The first meteor never waits.
func (c *Controller) intervalElapsed(now time.Time) bool {
	interval := c.between(c.config.MinInterval, c.config.MaxInterval)
	return !c.created || now.Sub(c.lastCreation) >= interval
}

func (c *Controller) createMeteor(now time.Time) bool {
	width, err := c.env.ViewportWidth()
	if err != nil {
		c.log.Warn("viewport width unavailable, skipping meteor", "error", err)
		return false
	}

	c.nextID++
	m := &Meteor{
		id:         c.nextID,
		size:       c.uniform(c.config.MinSize, c.config.MaxSize),
		duration:   c.between(c.config.MinDuration, c.config.MaxDuration),
		startX:     c.uniform(-EdgeOvershoot, float64(width)+EdgeOvershoot),
		delay:      time.Duration(c.rng.Float64() * float64(MaxLaunchDelay)),
		launchedAt: now,
	}

	c.surface.Insert(m)
	c.sched.AfterFunc(m.Lifetime(), func() { c.RemoveMeteor(m) })
	c.active = append(c.active, m)

	for _, fn := range c.observers {
		fn(m)
	}
	return true
}

func (c *Controller) clearAll() {
	for _, m := range c.active {
		c.surface.Remove(m)
	}
	c.active = nil
}

func (c *Controller) uniform(lo, hi float64) float64 {
	return lo + c.rng.Float64()*(hi-lo)
}

func (c *Controller) between(lo, hi time.Duration) time.Duration {
	return lo + time.Duration(c.rng.Float64()*float64(hi-lo))
}
