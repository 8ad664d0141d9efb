package theme

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/iburimskiy/meteor-shower/internal/meteor"
)

// Mode is the user's theme choice.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeLight Mode = "light"
	ModeDark  Mode = "dark"
)

var cycle = []Mode{ModeAuto, ModeLight, ModeDark}

// ParseMode accepts the mode names plus the "true"/"false" spellings used by
// older theme configs for dark and light.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "light", "false":
		return ModeLight, nil
	case "dark", "true":
		return ModeDark, nil
	}
	return "", fmt.Errorf("unknown theme mode %q", s)
}

// Next returns the mode after m in the auto → light → dark cycle.
func (m Mode) Next() Mode {
	i := slices.Index(cycle, m)
	return cycle[(i+1)%len(cycle)]
}

// Resolve maps a mode to the variant actually shown.
func (m Mode) Resolve(osDark bool) meteor.Theme {
	if m == ModeDark || (m == ModeAuto && osDark) {
		return meteor.ThemeDark
	}
	return meteor.ThemeLight
}

// Listener receives the resolved variant each time the theme is set.
type Listener func(meteor.Theme)

type subscription struct {
	key string
	fn  Listener
}

// Switcher holds the current mode and tells subscribers whenever it is set.
// Listeners are keyed; subscribing an existing key again is ignored.
//
// Switcher is not safe for concurrent use.
type Switcher struct {
	mode   Mode
	osDark bool
	subs   []subscription
	log    *slog.Logger
}

// NewSwitcher starts in mode. osDark is the platform's dark preference used by ModeAuto.
func NewSwitcher(mode Mode, osDark bool, log *slog.Logger) *Switcher {
	if log == nil {
		log = slog.Default()
	}
	return &Switcher{mode: mode, osDark: osDark, log: log}
}

func (s *Switcher) Mode() Mode { return s.mode }

// Variant is the currently shown theme.
func (s *Switcher) Variant() meteor.Theme { return s.mode.Resolve(s.osDark) }

// OSDark reports the platform dark preference ModeAuto follows.
func (s *Switcher) OSDark() bool { return s.osDark }

// Subscribe registers fn under key and reports whether it was added.
func (s *Switcher) Subscribe(key string, fn Listener) bool {
	if slices.ContainsFunc(s.subs, func(sub subscription) bool { return sub.key == key }) {
		return false
	}
	s.subs = append(s.subs, subscription{key: key, fn: fn})
	return true
}

// Unsubscribe removes the listener registered under key.
func (s *Switcher) Unsubscribe(key string) {
	s.subs = slices.DeleteFunc(s.subs, func(sub subscription) bool { return sub.key == key })
}

// Set switches to mode and notifies every listener with the resolved variant,
// even when the mode is unchanged.
func (s *Switcher) Set(mode Mode) {
	s.mode = mode
	variant := s.Variant()
	s.log.Info("theme set", "mode", mode, "variant", variant)
	for _, sub := range slices.Clone(s.subs) {
		sub.fn(variant)
	}
}

// Cycle advances to the next mode.
func (s *Switcher) Cycle() { s.Set(s.mode.Next()) }

// SetOSDark updates the platform preference and re-announces the theme when
// the mode follows it.
func (s *Switcher) SetOSDark(dark bool) {
	if s.osDark == dark {
		return
	}
	s.osDark = dark
	if s.mode == ModeAuto {
		s.Set(ModeAuto)
	}
}
