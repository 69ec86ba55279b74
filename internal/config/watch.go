package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"discoverycall/internal/widget"
)

// Watch polls path every interval and hands each edited, valid config to
// onUpdate. The caller is expected to have loaded the current file already;
// only later edits are delivered. Unreadable files, bad YAML and widget
// settings NewMachine would reject are logged and skipped until the next edit.
func Watch(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*Config)) error {
	if path == "" {
		path = defaultPath
	}
	if interval <= 0 {
		interval = defaultReloadInterval
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	w := &watcher{path: path, lastMod: info.ModTime(), logger: logger, onUpdate: onUpdate}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.poll()
			}
		}
	}()
	return nil
}

type watcher struct {
	path     string
	lastMod  time.Time
	statErr  bool
	logger   *zerolog.Logger
	onUpdate func(*Config)
}

func (w *watcher) poll() {
	info, err := os.Stat(w.path)
	if err != nil {
		// Editors replace files with a rename; log once per outage.
		if !w.statErr {
			w.logger.Warn().Err(err).Str("path", w.path).Msg("config file unavailable")
			w.statErr = true
		}
		return
	}
	w.statErr = false
	if !info.ModTime().After(w.lastMod) {
		return
	}
	w.lastMod = info.ModTime()

	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error().Err(err).Str("path", w.path).Msg("config reload rejected")
		return
	}
	if _, err := widget.NewMachine(cfg.Widget.WidgetConfig()); err != nil {
		w.logger.Error().Err(err).Str("path", w.path).Msg("widget settings rejected")
		return
	}
	w.logger.Info().Str("path", w.path).Time("modified", w.lastMod).Msg("config reloaded")
	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
}
