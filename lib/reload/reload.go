// Package reload re-reads the config file when it is written and applies
// the parts that can change at runtime.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jhenstridge/go-inotify"

	"github.com/fosdem/webrendersrc/lib/config"
	"github.com/fosdem/webrendersrc/lib/source/websource"
)

// Target is the source whose properties follow the config file
type Target interface {
	Properties() websource.Properties
	SetProperties(websource.Properties) error
	Start() error
	Stop() error
	Running() bool
}

type Reloader struct {
	path   string
	target Target
	level  *slog.LevelVar

	// editors write in several steps, wait for them to finish
	Settle time.Duration

	log *slog.Logger
}

func New(path string, target Target, level *slog.LevelVar) *Reloader {
	return &Reloader{
		path:   path,
		target: target,
		level:  level,
		Settle: 100 * time.Millisecond,
		log:    slog.With("module", "reload"),
	}
}

func PropertiesFromConfig(cfg *config.SourceCfg) websource.Properties {
	return websource.Properties{
		URL:    cfg.URL,
		Width:  cfg.Width,
		Height: cfg.Height,
	}
}

// Apply brings the target in line with cfg. Properties can only change
// while stopped, so a running source is stopped and started again around
// the change. It reports whether the source was touched.
func (r *Reloader) Apply(cfg *config.Config) (bool, error) {
	if r.level != nil {
		lvl, err := config.ParseLevel(cfg.LogLevel)
		if err == nil && lvl != r.level.Level() {
			r.log.Info("changing log level", "level", lvl)
			r.level.Set(lvl)
		}
	}

	props := PropertiesFromConfig(cfg.Source)
	if props == r.target.Properties() {
		return false, nil
	}

	wasRunning := r.target.Running()
	if wasRunning {
		err := r.target.Stop()
		if err != nil {
			return true, fmt.Errorf("could not stop source: %w", err)
		}
	}

	err := r.target.SetProperties(props)
	if err != nil {
		err = fmt.Errorf("could not apply properties: %w", err)
	} else {
		r.log.Info("applied new properties", "url", props.URL, "width", props.Width, "height", props.Height)
	}

	if wasRunning {
		startErr := r.target.Start()
		if startErr != nil && err == nil {
			err = fmt.Errorf("could not restart source: %w", startErr)
		}
	}
	return true, err
}

// Reload parses the config file and applies it
func (r *Reloader) Reload() error {
	cfg, err := config.Parse(r.path)
	if err != nil {
		return err
	}
	_, err = r.Apply(cfg)
	return err
}

// Watch reloads the config on every completed write until ctx is done.
// The directory is watched so that editors replacing the file are noticed.
func (r *Reloader) Watch(ctx context.Context) error {
	watcher, err := inotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create inotify watcher: %w", err)
	}

	dir, base := filepath.Split(r.path)
	if dir == "" {
		dir = "."
	}
	_, err = watcher.Watch(dir)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("could not start inotify watcher: %w", err)
	}

	go func() {
		<-ctx.Done()
		err := watcher.Close()
		if err != nil {
			r.log.Debug("could not close watcher", "error", err)
		}
	}()

	r.log.Info("watching config", "path", r.path)
	for ev := range watcher.Event {
		if filepath.Base(ev.Name) != base {
			continue
		}
		if ev.Mask&(inotify.IN_CLOSE_WRITE|inotify.IN_MOVED_TO) == 0 {
			continue
		}

		r.log.Debug("reloading config due to inotify event")
		if !sleep(ctx, r.Settle) {
			break
		}
		err := r.Reload()
		if err != nil {
			r.log.Error("could not reload config", "error", err)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
