package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/iburimskiy/meteor-shower/internal/meteor"
	"github.com/iburimskiy/meteor-shower/internal/palette"
	"github.com/iburimskiy/meteor-shower/internal/theme"
)

const (
	WindowWidth  = 1280
	WindowHeight = 720
	WindowTitle  = "Meteor Shower - M: toggle, T: theme, B: banner, R: reduced motion, O: OS dark, H: hide, Esc/Q: quit"

	// Button dimensions
	ButtonWidth  = 120
	ButtonHeight = 32
	ButtonX      = 12
	ButtonY      = 36

	// Sky rendering
	TrailLength   = 7.0
	FallAngle     = 0.6
	ThemeThrottle = time.Second
	SurfaceIDSky  = "meteor-shower"
	defaultFile   = "meteor.toml"
	maxConcurrent = 1000
	maxMillis     = 60_000
)

// Settings captures everything main needs to assemble the app.
type Settings struct {
	Meteor meteor.Config

	SurfaceID     string
	ThemeMode     theme.Mode
	OSDark        bool
	ReducedMotion bool
	Sound         bool
	BannerPath    string
	BannerColor   string

	LogFile  string
	LogLevel slog.Level
}

// fileSettings mirrors the TOML file. Pointer fields distinguish "absent" from zero.
type fileSettings struct {
	Meteor struct {
		MaxConcurrent          *int     `toml:"max_concurrent"`
		MinIntervalMS          *int     `toml:"min_interval_ms"`
		MaxIntervalMS          *int     `toml:"max_interval_ms"`
		MinDurationMS          *int     `toml:"min_duration_ms"`
		MaxDurationMS          *int     `toml:"max_duration_ms"`
		MinSize                *float64 `toml:"min_size"`
		MaxSize                *float64 `toml:"max_size"`
		EnableOnNarrowViewport *bool    `toml:"enable_on_narrow_viewport"`
		RegateOnVisible        *bool    `toml:"regate_on_visible"`
	} `toml:"meteor"`
	Display struct {
		Surface       *string `toml:"surface"`
		Theme         *string `toml:"theme"`
		OSDark        *bool   `toml:"os_dark"`
		ReducedMotion *bool   `toml:"reduced_motion"`
		Sound         *bool   `toml:"sound"`
		Banner        *string `toml:"banner"`
		BannerColor   *string `toml:"banner_color"`
	} `toml:"display"`
	Log struct {
		File  *string `toml:"file"`
		Level *string `toml:"level"`
	} `toml:"log"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Meteor:    meteor.DefaultConfig(),
		SurfaceID: SurfaceIDSky,
		ThemeMode: theme.ModeAuto,
		OSDark:    true,
		LogLevel:  slog.LevelInfo,
	}
}

// Load builds Settings from defaults, then the TOML file named by
// METEOR_CONFIG (meteor.toml when unset, skipped if missing), then METEOR_*
// environment variables. A .env file in the working directory fills in
// variables that are not already set.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("load .env: %w", err)
	}

	s := Defaults()

	path, explicit := os.LookupEnv("METEOR_CONFIG")
	if !explicit {
		path = defaultFile
	}
	if err := s.applyFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, err
		}
	}

	if err := s.applyEnv(); err != nil {
		return Settings{}, err
	}
	if err := s.Meteor.Validate(); err != nil {
		return Settings{}, fmt.Errorf("meteor settings: %w", err)
	}
	if s.BannerColor != "" {
		if _, err := palette.ParseColor(s.BannerColor); err != nil {
			return Settings{}, fmt.Errorf("banner color: %w", err)
		}
	}
	return s, nil
}

func (s *Settings) applyFile(path string) error {
	var f fileSettings
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	m := &s.Meteor
	setInt(&m.MaxConcurrent, f.Meteor.MaxConcurrent)
	setMillis(&m.MinInterval, f.Meteor.MinIntervalMS)
	setMillis(&m.MaxInterval, f.Meteor.MaxIntervalMS)
	setMillis(&m.MinDuration, f.Meteor.MinDurationMS)
	setMillis(&m.MaxDuration, f.Meteor.MaxDurationMS)
	if f.Meteor.MinSize != nil {
		m.MinSize = *f.Meteor.MinSize
	}
	if f.Meteor.MaxSize != nil {
		m.MaxSize = *f.Meteor.MaxSize
	}
	setBool(&m.EnableOnNarrowViewport, f.Meteor.EnableOnNarrowViewport)
	setBool(&m.RegateOnVisible, f.Meteor.RegateOnVisible)

	if f.Display.Surface != nil {
		s.SurfaceID = *f.Display.Surface
	}
	if f.Display.Theme != nil {
		mode, err := theme.ParseMode(*f.Display.Theme)
		if err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		s.ThemeMode = mode
	}
	setBool(&s.OSDark, f.Display.OSDark)
	setBool(&s.ReducedMotion, f.Display.ReducedMotion)
	setBool(&s.Sound, f.Display.Sound)
	if f.Display.Banner != nil {
		s.BannerPath = *f.Display.Banner
	}
	if f.Display.BannerColor != nil {
		s.BannerColor = *f.Display.BannerColor
	}

	if f.Log.File != nil {
		s.LogFile = *f.Log.File
	}
	if f.Log.Level != nil {
		level, err := parseLevel(*f.Log.Level)
		if err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		s.LogLevel = level
	}
	return nil
}

func (s *Settings) applyEnv() error {
	m := &s.Meteor
	var err error

	if m.MaxConcurrent, err = readInt("METEOR_MAX_CONCURRENT", m.MaxConcurrent, 0, maxConcurrent); err != nil {
		return err
	}
	if m.MinInterval, err = readMillis("METEOR_MIN_INTERVAL_MS", m.MinInterval, 0); err != nil {
		return err
	}
	if m.MaxInterval, err = readMillis("METEOR_MAX_INTERVAL_MS", m.MaxInterval, 0); err != nil {
		return err
	}
	if m.MinDuration, err = readMillis("METEOR_MIN_DURATION_MS", m.MinDuration, 1); err != nil {
		return err
	}
	if m.MaxDuration, err = readMillis("METEOR_MAX_DURATION_MS", m.MaxDuration, 1); err != nil {
		return err
	}
	if m.MinSize, err = readFloat("METEOR_MIN_SIZE", m.MinSize); err != nil {
		return err
	}
	if m.MaxSize, err = readFloat("METEOR_MAX_SIZE", m.MaxSize); err != nil {
		return err
	}
	if m.EnableOnNarrowViewport, err = readBool("METEOR_ENABLE_ON_NARROW", m.EnableOnNarrowViewport); err != nil {
		return err
	}
	if m.RegateOnVisible, err = readBool("METEOR_REGATE_ON_VISIBLE", m.RegateOnVisible); err != nil {
		return err
	}

	if v, ok := lookupTrimmed("METEOR_SURFACE"); ok {
		s.SurfaceID = v
	}
	if v, ok := lookupTrimmed("METEOR_THEME"); ok {
		mode, err := theme.ParseMode(v)
		if err != nil {
			return fmt.Errorf("METEOR_THEME: %w", err)
		}
		s.ThemeMode = mode
	}
	if s.OSDark, err = readBool("METEOR_OS_DARK", s.OSDark); err != nil {
		return err
	}
	if s.ReducedMotion, err = readBool("METEOR_REDUCED_MOTION", s.ReducedMotion); err != nil {
		return err
	}
	if s.Sound, err = readBool("METEOR_SOUND", s.Sound); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("METEOR_BANNER"); ok {
		s.BannerPath = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("METEOR_BANNER_COLOR"); ok {
		s.BannerColor = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("METEOR_LOG_FILE"); ok {
		s.LogFile = strings.TrimSpace(v)
	}
	if v, ok := lookupTrimmed("METEOR_LOG_LEVEL"); ok {
		level, err := parseLevel(v)
		if err != nil {
			return fmt.Errorf("METEOR_LOG_LEVEL: %w", err)
		}
		s.LogLevel = level
	}
	return nil
}

func lookupTrimmed(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v := strings.TrimSpace(raw)
	return v, v != ""
}

func readInt(key string, fallback, min, max int) (int, error) {
	raw, ok := lookupTrimmed(key)
	if !ok {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s must be between %d and %d", key, min, max)
	}
	return v, nil
}

func readMillis(key string, fallback time.Duration, min int) (time.Duration, error) {
	ms, err := readInt(key, int(fallback/time.Millisecond), min, maxMillis)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func readFloat(key string, fallback float64) (float64, error) {
	raw, ok := lookupTrimmed(key)
	if !ok {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return v, nil
}

func readBool(key string, fallback bool) (bool, error) {
	raw, ok := lookupTrimmed(key)
	if !ok {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return v, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setMillis(dst *time.Duration, v *int) {
	if v != nil {
		*dst = time.Duration(*v) * time.Millisecond
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
