package game

import "errors"

var errNoViewport = errors.New("window not laid out yet")

// windowEnv answers the shower's gating questions from the window state.
type windowEnv struct {
	width   int
	reduced bool
}

func (e *windowEnv) ViewportWidth() (int, error) {
	if e.width <= 0 {
		return 0, errNoViewport
	}
	return e.width, nil
}

func (e *windowEnv) PrefersReducedMotion() (bool, error) { return e.reduced, nil }
