package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// WatchSchedules reloads schedules.yaml on change and calls onUpdate with the latest config.
// It performs an initial load before entering the watch loop. Invalid edits are
// logged and the previous config stays in effect.
func WatchSchedules(ctx context.Context, path string, interval time.Duration, logger zerolog.Logger, onUpdate func(*SchedulesConfig)) error {
	if path == "" {
		path = "configs/schedules.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cfg, err := LoadSchedules(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				lastMod = info.ModTime()
				cfg, err := LoadSchedules(path)
				if err != nil {
					logger.Error().Err(err).Str("path", path).Msg("schedules reload rejected")
					continue
				}
				logger.Info().Str("path", path).Int("staff", len(cfg.Staff)).Msg("schedules reloaded")
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}()

	return nil
}
