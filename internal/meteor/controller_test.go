package meteor

import (
	"errors"
	"testing"
	"time"

	"github.com/iburimskiy/meteor-shower/internal/host"
)

var epoch = time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

const frame = 16 * time.Millisecond

type fakeSurface struct {
	attached map[*Meteor]bool
	inserts  int
	removes  int
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{attached: make(map[*Meteor]bool)}
}

func (s *fakeSurface) Insert(m *Meteor) {
	s.attached[m] = true
	s.inserts++
}

func (s *fakeSurface) Remove(m *Meteor) bool {
	if !s.attached[m] {
		return false
	}
	delete(s.attached, m)
	s.removes++
	return true
}

func (s *fakeSurface) count() int { return len(s.attached) }

type fakeEnv struct {
	width     int
	reduced   bool
	widthErr  error
	motionErr error
}

func (e *fakeEnv) ViewportWidth() (int, error)         { return e.width, e.widthErr }
func (e *fakeEnv) PrefersReducedMotion() (bool, error) { return e.reduced, e.motionErr }

// scriptedRandom replays vals in a cycle.
type scriptedRandom struct {
	vals []float64
	i    int
}

func (r *scriptedRandom) Float64() float64 {
	if len(r.vals) == 0 {
		return 0
	}
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v
}

func constRandom(v float64) *scriptedRandom { return &scriptedRandom{vals: []float64{v}} }

type fixture struct {
	loop    *host.Loop
	surface *fakeSurface
	env     *fakeEnv
	ctrl    *Controller
}

func newFixture(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		loop:    host.NewLoop(epoch),
		surface: newFakeSurface(),
		env:     &fakeEnv{width: 1280},
	}
	opts = append([]Option{WithConfig(cfg), WithRandom(constRandom(0.5))}, opts...)
	f.ctrl = New(f.surface, f.loop, f.env, opts...)
	return f
}

func (f *fixture) step() { f.loop.Step(f.loop.Now().Add(frame)) }

func TestActiveCountNeverExceedsMax(t *testing.T) {
	for _, limit := range []int{0, 1, 3, 7} {
		cfg := DefaultConfig()
		cfg.MaxConcurrent = limit
		cfg.MinInterval = 0
		cfg.MaxInterval = 0
		cfg.MinDuration = 300 * time.Millisecond
		cfg.MaxDuration = 900 * time.Millisecond

		f := newFixture(t, cfg, WithRandom(&scriptedRandom{vals: []float64{0.1, 0.9, 0.4, 0.7, 0.2}}))
		f.ctrl.Start()

		peak := 0
		for i := 0; i < 400; i++ {
			f.step()
			st := f.ctrl.Status()
			if st.ActiveCount > limit {
				t.Fatalf("max=%d: active count = %d at frame %d", limit, st.ActiveCount, i)
			}
			if st.ActiveCount != f.surface.count() {
				t.Fatalf("max=%d: active count = %d, surface holds %d", limit, st.ActiveCount, f.surface.count())
			}
			peak = max(peak, st.ActiveCount)
		}
		if peak != limit {
			t.Fatalf("peak active = %d, want %d", peak, limit)
		}
	}
}

func TestStopClearsSurface(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinInterval = 0
	cfg.MaxInterval = 0
	f := newFixture(t, cfg)
	f.ctrl.Start()
	for i := 0; i < 25; i++ {
		f.step()
	}
	if f.ctrl.Status().ActiveCount == 0 {
		t.Fatal("no meteors created before stop")
	}

	f.ctrl.Stop()

	if got := f.ctrl.Status(); got.Running || got.ActiveCount != 0 {
		t.Fatalf("status after stop = %+v, want stopped and empty", got)
	}
	if f.surface.count() != 0 {
		t.Fatalf("surface holds %d meteors after stop, want 0", f.surface.count())
	}
	if f.loop.PendingFrames() != 0 {
		t.Fatalf("pending frames after stop = %d, want 0", f.loop.PendingFrames())
	}

	f.ctrl.Stop()
	if f.surface.removes != f.surface.inserts {
		t.Fatalf("removes = %d, inserts = %d", f.surface.removes, f.surface.inserts)
	}
}

func TestStartTwiceMatchesStartOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrent = 10
	script := []float64{0.3, 0.8, 0.05, 0.6, 0.95, 0.4}

	once := newFixture(t, cfg, WithRandom(&scriptedRandom{vals: script}))
	twice := newFixture(t, cfg, WithRandom(&scriptedRandom{vals: script}))

	once.ctrl.Start()
	twice.ctrl.Start()
	twice.ctrl.Start()

	if twice.loop.PendingFrames() != 1 {
		t.Fatalf("pending frames after double start = %d, want 1", twice.loop.PendingFrames())
	}
	for i := 0; i < 200; i++ {
		once.step()
		twice.step()
		a, b := once.ctrl.Status().ActiveCount, twice.ctrl.Status().ActiveCount
		if a != b {
			t.Fatalf("frame %d: active count %d after one start, %d after two", i, a, b)
		}
	}
}

func TestRemoveMeteorTwiceIsNoop(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.ctrl.Start()
	f.step()
	f.step()

	if f.ctrl.Status().ActiveCount != 1 {
		t.Fatalf("active count = %d, want 1", f.ctrl.Status().ActiveCount)
	}
	m := f.ctrl.active[0]

	f.ctrl.RemoveMeteor(m)
	f.ctrl.RemoveMeteor(m)

	if got := f.ctrl.Status().ActiveCount; got != 0 {
		t.Fatalf("active count = %d, want 0", got)
	}
	if f.surface.removes != 1 {
		t.Fatalf("surface removes = %d, want 1", f.surface.removes)
	}
}

func TestShouldEnable(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		narrow  bool
		reduced bool
		want    bool
	}{
		{name: "phone width", width: 500, want: false},
		{name: "threshold is narrow", width: 768, want: false},
		{name: "just above threshold", width: 769, want: true},
		{name: "narrow allowed", width: 500, narrow: true, want: true},
		{name: "reduced motion", width: 1920, reduced: true, want: false},
		{name: "reduced motion wins over narrow opt-in", width: 500, narrow: true, reduced: true, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.EnableOnNarrowViewport = tt.narrow
			f := newFixture(t, cfg)
			f.env.width = tt.width
			f.env.reduced = tt.reduced

			if got := f.ctrl.ShouldEnable(); got != tt.want {
				t.Fatalf("ShouldEnable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldEnableFailsClosed(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	f.env.widthErr = errors.New("no window")
	if f.ctrl.ShouldEnable() {
		t.Fatal("ShouldEnable() = true with width error")
	}

	f.env.widthErr = nil
	f.env.motionErr = errors.New("no media query")
	if f.ctrl.ShouldEnable() {
		t.Fatal("ShouldEnable() = true with motion error")
	}
}

func TestFixedIntervalFillsToMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinInterval = 50 * time.Millisecond
	cfg.MaxInterval = 50 * time.Millisecond
	cfg.MaxConcurrent = 3
	cfg.MinDuration = 10 * time.Second
	cfg.MaxDuration = 10 * time.Second
	f := newFixture(t, cfg)
	f.ctrl.Start()

	for elapsed := time.Duration(0); elapsed <= 3*50*time.Millisecond+frame; elapsed += 10 * time.Millisecond {
		f.loop.Step(epoch.Add(elapsed))
	}
	if got := f.ctrl.Status().ActiveCount; got != 3 {
		t.Fatalf("active count = %d, want 3", got)
	}

	for i := 0; i < 500; i++ {
		f.loop.Step(f.loop.Now().Add(10 * time.Millisecond))
		if got := f.ctrl.Status().ActiveCount; got != 3 {
			t.Fatalf("active count = %d at %s, want 3", got, f.loop.Now().Sub(epoch))
		}
	}
}

func TestIntervalHoldsWhenClockStartsAtZeroTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinInterval = 50 * time.Millisecond
	cfg.MaxInterval = 50 * time.Millisecond
	cfg.MinDuration = 10 * time.Second
	cfg.MaxDuration = 10 * time.Second

	var zero time.Time
	loop := host.NewLoop(zero)
	surface := newFakeSurface()
	c := New(surface, loop, &fakeEnv{width: 1280}, WithConfig(cfg), WithRandom(constRandom(0.5)))
	c.Start()

	loop.Step(zero)
	if got := c.Status().ActiveCount; got != 1 {
		t.Fatalf("active count after first frame = %d, want 1", got)
	}
	for elapsed := 10 * time.Millisecond; elapsed <= 40*time.Millisecond; elapsed += 10 * time.Millisecond {
		loop.Step(zero.Add(elapsed))
	}
	if got := c.Status().ActiveCount; got != 1 {
		t.Fatalf("active count after 40ms with a 50ms interval = %d, want 1", got)
	}
	loop.Step(zero.Add(50 * time.Millisecond))
	if got := c.Status().ActiveCount; got != 2 {
		t.Fatalf("active count after 50ms = %d, want 2", got)
	}
}

func TestUpdateConfigStopsAtNarrowViewport(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableOnNarrowViewport = true
	f := newFixture(t, cfg)
	f.env.width = 600

	f.ctrl.Start()
	f.step()
	if !f.ctrl.Status().Running {
		t.Fatal("controller not running before update")
	}

	f.ctrl.UpdateConfig(Patch{EnableOnNarrowViewport: Ptr(false)})

	st := f.ctrl.Status()
	if st.Running {
		t.Fatal("controller still running after disabling narrow viewports")
	}
	if st.ActiveCount != 0 || f.surface.count() != 0 {
		t.Fatalf("active = %d, surface = %d after gated stop", st.ActiveCount, f.surface.count())
	}
}

func TestUpdateConfigStartsWhenGatingAllows(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.env.width = 600

	f.ctrl.UpdateConfig(Patch{MaxConcurrent: Ptr(5)})
	if f.ctrl.Status().Running {
		t.Fatal("started on a narrow viewport")
	}

	f.ctrl.UpdateConfig(Patch{EnableOnNarrowViewport: Ptr(true)})
	st := f.ctrl.Status()
	if !st.Running {
		t.Fatal("not started after enabling narrow viewports")
	}
	if st.Config.MaxConcurrent != 5 {
		t.Fatalf("max concurrent = %d, want 5 kept from earlier patch", st.Config.MaxConcurrent)
	}
}

func TestUpdateConfigNormalizesInvertedRanges(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.ctrl.UpdateConfig(Patch{
		MinSize:       Ptr(40.0),
		MaxSize:       Ptr(10.0),
		MaxConcurrent: Ptr(-2),
	})

	cfg := f.ctrl.Status().Config
	if cfg.MinSize != 10 || cfg.MaxSize != 40 {
		t.Fatalf("size range = %g..%g, want 10..40", cfg.MinSize, cfg.MaxSize)
	}
	if cfg.MaxConcurrent != 0 {
		t.Fatalf("max concurrent = %d, want 0", cfg.MaxConcurrent)
	}
}

func TestUpdateConfigKeepsExistingMeteors(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.ctrl.Start()
	f.step()
	m := f.ctrl.active[0]
	size, dur := m.Size(), m.Duration()

	f.ctrl.UpdateConfig(Patch{MinSize: Ptr(100.0), MaxSize: Ptr(200.0)})

	if m.Size() != size || m.Duration() != dur {
		t.Fatalf("meteor changed to size %g duration %s", m.Size(), m.Duration())
	}
}

func TestMeteorAttributes(t *testing.T) {
	cfg := DefaultConfig()
	f := newFixture(t, cfg, WithRandom(&scriptedRandom{vals: []float64{
		0,    // interval
		0.5,  // size
		0.25, // duration
		0,    // start x
		1,    // delay
	}}))
	f.env.width = 1000
	f.ctrl.Start()
	f.step()

	m := f.ctrl.active[0]
	if m.Size() != 21 {
		t.Fatalf("size = %g, want 21", m.Size())
	}
	if want := 2125 * time.Millisecond; m.Duration() != want {
		t.Fatalf("duration = %s, want %s", m.Duration(), want)
	}
	if m.StartX() != -EdgeOvershoot {
		t.Fatalf("start x = %g, want %d", m.StartX(), -EdgeOvershoot)
	}
	if m.Delay() != MaxLaunchDelay {
		t.Fatalf("delay = %s, want %s", m.Delay(), MaxLaunchDelay)
	}
	if !m.LaunchedAt().Equal(f.loop.Now()) {
		t.Fatalf("launched at %v, want %v", m.LaunchedAt(), f.loop.Now())
	}
}

func TestStartXSpansBothEdges(t *testing.T) {
	f := newFixture(t, DefaultConfig(), WithRandom(constRandom(1)))
	f.env.width = 1000
	f.ctrl.Start()
	f.step()

	if got := f.ctrl.active[0].StartX(); got != 1000+EdgeOvershoot {
		t.Fatalf("start x = %g, want %d", got, 1000+EdgeOvershoot)
	}
}

func TestMeteorRemovedAfterLifetime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrent = 1
	cfg.MinDuration = time.Second
	cfg.MaxDuration = time.Second
	f := newFixture(t, cfg, WithRandom(constRandom(0)))
	f.ctrl.Start()
	f.step()

	m := f.ctrl.active[0]
	if m.Lifetime() != time.Second {
		t.Fatalf("lifetime = %s, want 1s", m.Lifetime())
	}

	f.loop.Step(m.LaunchedAt().Add(999 * time.Millisecond))
	if !f.surface.attached[m] {
		t.Fatal("meteor removed before its lifetime")
	}

	f.loop.Step(m.LaunchedAt().Add(time.Second))
	if f.surface.attached[m] {
		t.Fatal("meteor still attached after its lifetime")
	}
	for _, a := range f.ctrl.active {
		if a == m {
			t.Fatal("meteor still active after its lifetime")
		}
	}
}

func TestRemovalTimersAfterStopAreHarmless(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinInterval = 0
	cfg.MaxInterval = 0
	cfg.MinDuration = 200 * time.Millisecond
	cfg.MaxDuration = 200 * time.Millisecond
	f := newFixture(t, cfg)
	f.ctrl.Start()
	for i := 0; i < 5; i++ {
		f.step()
	}
	f.ctrl.Stop()
	if f.loop.PendingTimers() == 0 {
		t.Fatal("expected in-flight removal timers after stop")
	}

	f.ctrl.Start()
	f.step()
	fresh := f.ctrl.active[0]

	// Every stale timer is due by 530ms; the fresh meteor lives until 546ms.
	f.loop.Step(epoch.Add(535 * time.Millisecond))
	if !f.surface.attached[fresh] {
		t.Fatal("stale timers detached a fresh meteor")
	}
	if f.ctrl.active[0] != fresh {
		t.Fatal("stale timers dropped a fresh meteor from the active set")
	}
	if f.surface.removes != 5 {
		t.Fatalf("surface removes = %d, want 5 from the stop", f.surface.removes)
	}
}

// stubbornScheduler ignores cancellation, like a host whose frame was already
// dispatched when Stop ran.
type stubbornScheduler struct {
	*host.Loop
}

func (stubbornScheduler) CancelFrame(host.FrameID) {}

func TestStaleFrameAfterStopDoesNothing(t *testing.T) {
	loop := host.NewLoop(epoch)
	surface := newFakeSurface()
	env := &fakeEnv{width: 1280}
	cfg := DefaultConfig()
	cfg.MinInterval = 0
	cfg.MaxInterval = 0
	c := New(surface, stubbornScheduler{loop}, env, WithConfig(cfg), WithRandom(constRandom(0.5)))

	c.Start()
	loop.Step(epoch.Add(frame))
	c.Stop()
	if loop.PendingFrames() != 1 {
		t.Fatalf("pending frames = %d, want the uncancelled one", loop.PendingFrames())
	}

	loop.Step(epoch.Add(2 * frame))
	if surface.count() != 0 || c.Status().ActiveCount != 0 {
		t.Fatalf("stale frame created meteors: surface %d active %d", surface.count(), c.Status().ActiveCount)
	}
	if loop.PendingFrames() != 0 {
		t.Fatalf("stale frame rescheduled itself: pending %d", loop.PendingFrames())
	}
}

func TestToggle(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.ctrl.Toggle()
	if !f.ctrl.Status().Running {
		t.Fatal("toggle did not start")
	}
	f.ctrl.Toggle()
	if f.ctrl.Status().Running {
		t.Fatal("toggle did not stop")
	}
}

func TestHandleResize(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.ctrl.HandleResize()
	if !f.ctrl.Status().Running {
		t.Fatal("not running on a wide viewport after resize")
	}

	f.env.width = 700
	f.ctrl.HandleResize()
	if f.ctrl.Status().Running {
		t.Fatal("still running after shrinking to a narrow viewport")
	}

	f.env.width = 1024
	f.ctrl.HandleResize()
	if !f.ctrl.Status().Running {
		t.Fatal("not restarted after widening")
	}
}

func TestHandleVisibility(t *testing.T) {
	t.Run("restart is unconditional by default", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.env.reduced = true

		f.ctrl.HandleVisibility(false)
		f.ctrl.HandleVisibility(true)
		if !f.ctrl.Status().Running {
			t.Fatal("visibility return did not restart")
		}
	})

	t.Run("regate on visible", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RegateOnVisible = true
		f := newFixture(t, cfg)
		f.env.reduced = true

		f.ctrl.HandleVisibility(true)
		if f.ctrl.Status().Running {
			t.Fatal("restarted despite reduced motion")
		}

		f.env.reduced = false
		f.ctrl.HandleVisibility(true)
		if !f.ctrl.Status().Running {
			t.Fatal("not restarted once gating allows")
		}
	})

	t.Run("hidden stops and clears", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.ctrl.Start()
		f.step()
		f.ctrl.HandleVisibility(false)
		if f.ctrl.Status().Running || f.surface.count() != 0 {
			t.Fatalf("hidden left running=%v surface=%d", f.ctrl.Status().Running, f.surface.count())
		}
	})
}

func TestHandleThemeChange(t *testing.T) {
	var gotTheme Theme
	var gotCount int
	f := newFixture(t, DefaultConfig(), WithThemeAdjuster(func(theme Theme, active []*Meteor) {
		gotTheme = theme
		gotCount = len(active)
	}))
	f.ctrl.Start()
	f.step()

	f.ctrl.HandleThemeChange(ThemeDark)
	if gotTheme != ThemeDark || gotCount != 1 {
		t.Fatalf("adjuster got theme %q with %d meteors, want dark with 1", gotTheme, gotCount)
	}
}

func TestLaunchObserver(t *testing.T) {
	var launched []*Meteor
	f := newFixture(t, DefaultConfig(), WithLaunchObserver(func(m *Meteor) {
		launched = append(launched, m)
	}))
	f.ctrl.Start()
	f.step()

	if len(launched) != 1 || launched[0] != f.ctrl.active[0] {
		t.Fatalf("observer saw %d meteors, want the one created", len(launched))
	}
}

func TestMount(t *testing.T) {
	loop := host.NewLoop(epoch)
	surface := newFakeSurface()
	lookup := func(id string) (Surface, bool) {
		if id == "meteor-shower" {
			return surface, true
		}
		return nil, false
	}

	t.Run("missing surface", func(t *testing.T) {
		c, err := Mount(lookup, "nope", loop, &fakeEnv{width: 1280})
		if !errors.Is(err, ErrSurfaceNotFound) {
			t.Fatalf("err = %v, want ErrSurfaceNotFound", err)
		}
		if c != nil {
			t.Fatal("controller returned for missing surface")
		}
	})

	t.Run("gated off", func(t *testing.T) {
		c, err := Mount(lookup, "meteor-shower", loop, &fakeEnv{width: 400})
		if err != nil {
			t.Fatalf("Mount: %v", err)
		}
		if c.Status().Running {
			t.Fatal("started on a narrow viewport")
		}
	})

	t.Run("starts", func(t *testing.T) {
		c, err := Mount(lookup, "meteor-shower", loop, &fakeEnv{width: 1280})
		if err != nil {
			t.Fatalf("Mount: %v", err)
		}
		if !c.Status().Running {
			t.Fatal("not started on a wide viewport")
		}
	})
}

func TestMeteorProgress(t *testing.T) {
	m := &Meteor{duration: time.Second, delay: 200 * time.Millisecond, launchedAt: epoch}

	if _, ok := m.Progress(epoch.Add(100 * time.Millisecond)); ok {
		t.Fatal("visible during launch delay")
	}
	if p, ok := m.Progress(epoch.Add(700 * time.Millisecond)); !ok || p != 0.5 {
		t.Fatalf("progress = %v, %v; want 0.5, true", p, ok)
	}
	if p, _ := m.Progress(epoch.Add(5 * time.Second)); p != 1 {
		t.Fatalf("progress = %v, want 1", p)
	}
}
