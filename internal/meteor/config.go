package meteor

import (
	"fmt"
	"time"
)

// NarrowViewportWidth is the widest viewport, in logical pixels, treated as a
// narrow (phone-sized) device.
const NarrowViewportWidth = 768

// Config tunes the shower. A Config is replaced wholesale on update; meteors
// already in flight keep the attributes they were created with.
type Config struct {
	MaxConcurrent int

	MinInterval time.Duration
	MaxInterval time.Duration

	MinDuration time.Duration
	MaxDuration time.Duration

	MinSize float64
	MaxSize float64

	EnableOnNarrowViewport bool

	// RegateOnVisible makes a visibility-return consult ShouldEnable instead
	// of restarting unconditionally.
	RegateOnVisible bool
}

// DefaultConfig returns the stock shower tuning.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 100,
		MinInterval:   50 * time.Millisecond,
		MaxInterval:   200 * time.Millisecond,
		MinDuration:   1500 * time.Millisecond,
		MaxDuration:   4000 * time.Millisecond,
		MinSize:       12,
		MaxSize:       30,
	}
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	switch {
	case c.MaxConcurrent < 0:
		return fmt.Errorf("max concurrent must be >= 0, got %d", c.MaxConcurrent)
	case c.MinInterval < 0 || c.MaxInterval < 0:
		return fmt.Errorf("intervals must be >= 0, got %s..%s", c.MinInterval, c.MaxInterval)
	case c.MinInterval > c.MaxInterval:
		return fmt.Errorf("min interval %s exceeds max interval %s", c.MinInterval, c.MaxInterval)
	case c.MinDuration <= 0 || c.MaxDuration <= 0:
		return fmt.Errorf("durations must be > 0, got %s..%s", c.MinDuration, c.MaxDuration)
	case c.MinDuration > c.MaxDuration:
		return fmt.Errorf("min duration %s exceeds max duration %s", c.MinDuration, c.MaxDuration)
	case c.MinSize <= 0 || c.MaxSize <= 0:
		return fmt.Errorf("sizes must be > 0, got %g..%g", c.MinSize, c.MaxSize)
	case c.MinSize > c.MaxSize:
		return fmt.Errorf("min size %g exceeds max size %g", c.MinSize, c.MaxSize)
	}
	return nil
}

// normalized swaps inverted ranges and clamps negative counts so a bad update
// can never make the creation loop draw outside a range.
func (c Config) normalized() Config {
	if c.MaxConcurrent < 0 {
		c.MaxConcurrent = 0
	}
	if c.MinInterval > c.MaxInterval {
		c.MinInterval, c.MaxInterval = c.MaxInterval, c.MinInterval
	}
	if c.MinDuration > c.MaxDuration {
		c.MinDuration, c.MaxDuration = c.MaxDuration, c.MinDuration
	}
	if c.MinSize > c.MaxSize {
		c.MinSize, c.MaxSize = c.MaxSize, c.MinSize
	}
	return c
}

// Patch is a partial Config. Nil fields leave the current value alone.
type Patch struct {
	MaxConcurrent *int

	MinInterval *time.Duration
	MaxInterval *time.Duration

	MinDuration *time.Duration
	MaxDuration *time.Duration

	MinSize *float64
	MaxSize *float64

	EnableOnNarrowViewport *bool
	RegateOnVisible        *bool
}

// Apply returns c with every set field of p copied over it.
func (p Patch) Apply(c Config) Config {
	if p.MaxConcurrent != nil {
		c.MaxConcurrent = *p.MaxConcurrent
	}
	if p.MinInterval != nil {
		c.MinInterval = *p.MinInterval
	}
	if p.MaxInterval != nil {
		c.MaxInterval = *p.MaxInterval
	}
	if p.MinDuration != nil {
		c.MinDuration = *p.MinDuration
	}
	if p.MaxDuration != nil {
		c.MaxDuration = *p.MaxDuration
	}
	if p.MinSize != nil {
		c.MinSize = *p.MinSize
	}
	if p.MaxSize != nil {
		c.MaxSize = *p.MaxSize
	}
	if p.EnableOnNarrowViewport != nil {
		c.EnableOnNarrowViewport = *p.EnableOnNarrowViewport
	}
	if p.RegateOnVisible != nil {
		c.RegateOnVisible = *p.RegateOnVisible
	}
	return c
}

// Ptr returns a pointer to v, for building a Patch inline.
func Ptr[T any](v T) *T { return &v }
