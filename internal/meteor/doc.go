// Package meteor runs the meteor shower: a creation loop ticked once per
// rendered frame that inserts short-lived meteors into a Surface and retires
// each one after its own duration and launch delay.
//
// The package never touches a window, a clock or a random source directly.
// The host supplies a Scheduler (frame callbacks, one-shot delays and the
// current time), an Environment (viewport width, reduced-motion preference)
// and a Surface; tests drive the same code with a synthetic clock.
package meteor
