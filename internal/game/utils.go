package game

import (
	"fmt"
	"time"
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// formatDuration formats a duration as MM:SS
func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// sizeFraction places size within [lo, hi] as a value in [0, 1].
func sizeFraction(size, lo, hi float64) float64 {
	if hi <= lo {
		return 0.5
	}
	return clamp01((size - lo) / (hi - lo))
}
