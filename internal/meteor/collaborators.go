package meteor

import (
	"time"

	"github.com/iburimskiy/meteor-shower/internal/host"
)

// Scheduler is the host's callback machinery. Every callback must run on the
// same goroutine that calls into the Controller.
type Scheduler interface {
	RequestFrame(fn func()) host.FrameID
	CancelFrame(id host.FrameID)
	AfterFunc(d time.Duration, fn func()) host.TimerID
	Now() time.Time
}

// Environment answers the gating questions. An error from either query is
// treated as "disabled".
type Environment interface {
	ViewportWidth() (int, error)
	PrefersReducedMotion() (bool, error)
}

// Surface is the container meteors are drawn into.
type Surface interface {
	Insert(m *Meteor)
	// Remove detaches m and reports whether it was attached.
	Remove(m *Meteor) bool
}

// SurfaceLookup finds a surface by its identifier.
type SurfaceLookup func(id string) (Surface, bool)

// Random yields uniform values in [0, 1). *math/rand.Rand satisfies it.
type Random interface {
	Float64() float64
}

// Theme names the active color theme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ThemeAdjuster is invoked with the active meteors when the theme changes.
// It may restyle them on the surface; it must not retain the slice.
type ThemeAdjuster func(theme Theme, active []*Meteor)

// LaunchObserver is told about every meteor right after it is inserted.
type LaunchObserver func(m *Meteor)
