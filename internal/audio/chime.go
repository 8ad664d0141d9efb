package audio

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

const (
	sampleRate = beep.SampleRate(44100)
	ringSize   = 4096
	levelSpan  = 1024

	chimeLength = 450 * time.Millisecond
	chimeGain   = 0.18
)

// Size range mapped onto pitch; larger meteors sound lower.
const (
	lowHz  = 330.0
	highHz = 880.0
)

// Chime synthesizes a short decaying two-partial tone. size is the meteor's
// position in its size range, in [0, 1].
func Chime(sr beep.SampleRate, size float64) beep.Streamer {
	size = math.Max(0, math.Min(1, size))
	freq := highHz - size*(highHz-lowHz)
	total := sr.N(chimeLength)
	pos := 0

	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= total {
			return 0, false
		}
		n := 0
		for i := range samples {
			if pos >= total {
				break
			}
			t := float64(pos) / float64(sr)
			env := math.Exp(-7*t) * math.Min(1, t*200)
			v := chimeGain * env * (math.Sin(2*math.Pi*freq*t) + 0.3*math.Sin(4*math.Pi*freq*t))
			samples[i][0] = v
			samples[i][1] = v
			pos++
			n++
		}
		return n, true
	})
}

// Player mixes chimes onto the system speaker.
type Player struct {
	mixer *beep.Mixer
	tap   *levelTap
	log   *slog.Logger
}

// NewPlayer opens the speaker and starts an always-running mixer on it.
func NewPlayer(log *slog.Logger) (*Player, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/20)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}

	mixer := &beep.Mixer{}
	p := &Player{mixer: mixer, tap: newLevelTap(mixer, ringSize), log: log}
	speaker.Play(p.tap)
	log.Info("launch chimes enabled", "sample_rate", int(sampleRate))
	return p, nil
}

// Play queues a chime for a meteor whose size sits at size within its range.
func (p *Player) Play(size float64) {
	speaker.Lock()
	p.mixer.Add(Chime(sampleRate, size))
	speaker.Unlock()
}

// Level is the loudness of what the speaker just played, in [0, 1].
func (p *Player) Level() float64 {
	return p.tap.level(levelSpan)
}

// Close silences the speaker.
func (p *Player) Close() {
	speaker.Lock()
	speaker.Clear()
	speaker.Unlock()
	p.log.Debug("launch chimes closed")
}
