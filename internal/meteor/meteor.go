package meteor

import "time"

// LaunchTop is the vertical offset, in pixels, every meteor starts from.
const LaunchTop = -100

// EdgeOvershoot is how far past either viewport edge a meteor may start.
const EdgeOvershoot = 100

// MaxLaunchDelay bounds the random delay between insertion and motion.
const MaxLaunchDelay = 500 * time.Millisecond

// Meteor is the handle for one inserted visual element. The controller owns it
// from creation until removal; its attributes never change.
type Meteor struct {
	id         uint64
	size       float64
	duration   time.Duration
	startX     float64
	delay      time.Duration
	launchedAt time.Time
}

func (m *Meteor) ID() uint64              { return m.id }
func (m *Meteor) Size() float64           { return m.size }
func (m *Meteor) Duration() time.Duration { return m.duration }
func (m *Meteor) StartX() float64         { return m.startX }
func (m *Meteor) Delay() time.Duration    { return m.delay }
func (m *Meteor) LaunchedAt() time.Time   { return m.launchedAt }

// Lifetime is how long after launch the meteor is removed.
func (m *Meteor) Lifetime() time.Duration { return m.duration + m.delay }

// Progress returns how far through its fall the meteor is at now, in [0, 1].
// It reports false while the launch delay is still running.
func (m *Meteor) Progress(now time.Time) (float64, bool) {
	elapsed := now.Sub(m.launchedAt) - m.delay
	if elapsed < 0 {
		return 0, false
	}
	if m.duration <= 0 || elapsed >= m.duration {
		return 1, true
	}
	return float64(elapsed) / float64(m.duration), true
}
