package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/iburimskiy/meteor-shower/internal/audio"
	"github.com/iburimskiy/meteor-shower/internal/config"
	"github.com/iburimskiy/meteor-shower/internal/game"
	"github.com/iburimskiy/meteor-shower/internal/logging"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, closer, err := logging.Setup(logging.Options{File: settings.LogFile, Level: settings.LogLevel})
	if err != nil {
		fmt.Fprintln(os.Stderr, "open log file:", err)
		os.Exit(2)
	}
	defer closer.Close()

	var opts []game.Option
	if settings.Sound {
		player, err := audio.NewPlayer(log)
		if err != nil {
			log.Warn("launch chimes disabled", "error", err)
		} else {
			defer player.Close()
			opts = append(opts, game.WithChimes(player))
		}
	}

	log.Info("starting meteor shower",
		"surface", settings.SurfaceID,
		"max_concurrent", settings.Meteor.MaxConcurrent,
		"theme", settings.ThemeMode)

	if err := game.Run(game.New(settings, log, opts...)); err != nil {
		log.Error("meteor shower exited", slog.Any("error", err))
		closer.Close()
		os.Exit(1)
	}
}
