// Package runner builds the source, sinks, pipeline and control surfaces
// from a config and runs them.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fosdem/webrendersrc/lib/api"
	"github.com/fosdem/webrendersrc/lib/browser"
	"github.com/fosdem/webrendersrc/lib/browser/cdpengine"
	"github.com/fosdem/webrendersrc/lib/browser/plutoengine"
	"github.com/fosdem/webrendersrc/lib/config"
	"github.com/fosdem/webrendersrc/lib/encdec"
	"github.com/fosdem/webrendersrc/lib/kbdctl"
	"github.com/fosdem/webrendersrc/lib/pipeline"
	"github.com/fosdem/webrendersrc/lib/reload"
	"github.com/fosdem/webrendersrc/lib/sink/ffmpegsink"
	"github.com/fosdem/webrendersrc/lib/sink/gstsink"
	"github.com/fosdem/webrendersrc/lib/sink/nullsink"
	"github.com/fosdem/webrendersrc/lib/sink/omtsink"
	"github.com/fosdem/webrendersrc/lib/sink/windowsink"
	"github.com/fosdem/webrendersrc/lib/source/websource"
	"github.com/fosdem/webrendersrc/lib/stats"
)

type Runner struct {
	cfg *config.Config

	Source   *websource.Source
	Pipeline *pipeline.Pipeline
	Window   *windowsink.WindowSink
	Stats    *stats.Stats

	reloader *reload.Reloader

	quitOnce sync.Once
	quit     chan struct{}

	log *slog.Logger
}

// Settings maps the engine config onto the browser settings
func Settings(cfg *config.EngineCfg) browser.Settings {
	s := browser.DefaultSettings()
	if cfg == nil {
		return s
	}
	if cfg.DebugPort != nil {
		s.RemoteDebuggingPort = *cfg.DebugPort
	}
	if cfg.SubprocessPath != "" {
		s.BrowserSubprocessPath = cfg.SubprocessPath
	}
	if lvl, err := config.ParseLevel(cfg.LogSeverity); err == nil {
		s.LogSeverity = lvl
	}
	if cfg.FrameRate > 0 {
		s.WindowlessFrameRate = cfg.FrameRate
	}
	return s
}

// NewEngine returns the engine selected in the source config
func NewEngine(cfg *config.Config) (browser.Engine, error) {
	e := cfg.Engine
	switch cfg.Source.Engine {
	case "plutobook":
		var refresh time.Duration
		if e.FrameRate > 0 {
			refresh = time.Second / time.Duration(e.FrameRate)
		}
		return plutoengine.New(plutoengine.Options{
			UserStyle: string(e.UserStyle),
			Refresh:   refresh,
		})
	case "cdp", "":
		headless := true
		if e.Headless != nil {
			headless = *e.Headless
		}
		return cdpengine.New(cdpengine.Options{
			BrowserPath: string(e.BrowserPath),
			Headless:    headless,
			Format:      e.Format,
		}), nil
	default:
		return nil, fmt.Errorf("unknown engine %s", cfg.Source.Engine)
	}
}

func ControllerFactory(cfg *config.Config) websource.ControllerFactory {
	settings := Settings(cfg.Engine)
	return func() (*browser.Controller, error) {
		engine, err := NewEngine(cfg)
		if err != nil {
			return nil, err
		}
		return browser.New(engine, settings), nil
	}
}

// BuildSinks creates the configured sinks in name order. The window sink,
// if any, is returned separately as well since it needs the main thread.
func BuildSinks(cfg *config.Config) ([]pipeline.Sink, *windowsink.WindowSink, error) {
	names := make([]string, 0, len(cfg.Sinks))
	for name := range cfg.Sinks {
		names = append(names, name)
	}
	sort.Strings(names)

	var sinks []pipeline.Sink
	var window *windowsink.WindowSink
	for _, name := range names {
		var sink pipeline.Sink
		var err error
		switch c := cfg.Sinks[name].Cfg.(type) {
		case *config.FFmpegSinkCfg:
			sink = ffmpegsink.New(name, c)
		case *config.WindowSinkCfg:
			window = windowsink.New(name, c)
			sink = window
		case *config.GstSinkCfg:
			sink, err = gstsink.New(name, c)
		case *config.OmtSinkCfg:
			sink, err = omtsink.New(name, c)
		case *config.NullSinkCfg:
			sink = nullsink.New(name, c)
		default:
			err = fmt.Errorf("unknown sink type %T", c)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("could not create sink %s: %w", name, err)
		}
		sinks = append(sinks, sink)
	}
	return sinks, window, nil
}

func allocator(cfg *config.SourceCfg) encdec.FrameAllocator {
	if cfg.FrameBudgetMB > 0 {
		return &encdec.BudgetFrameAllocator{MaxBytes: int64(cfg.FrameBudgetMB) << 20}
	}
	return &encdec.DumbFrameAllocator{}
}

type Options struct {
	Config *config.Config
	// ConfigPath is watched for changes when the config enables it
	ConfigPath string
	// Args are the process arguments
	Args  []string
	Level *slog.LevelVar
	// NewController overrides the engine selected in the config
	NewController websource.ControllerFactory
}

// New builds everything but starts nothing
func New(opts Options) (*Runner, error) {
	cfg := opts.Config
	r := &Runner{
		cfg:   cfg,
		Stats: stats.New(),
		quit:  make(chan struct{}),
		log:   slog.With("module", "runner"),
	}

	factory := opts.NewController
	if factory == nil {
		factory = ControllerFactory(cfg)
	}
	r.Source = websource.New(websource.Options{
		Name:          "webrender",
		Properties:    reload.PropertiesFromConfig(cfg.Source),
		NewController: factory,
		Args:          opts.Args,
		Allocator:     allocator(cfg.Source),
		PumpInterval:  time.Duration(cfg.Source.PumpIntervalMs) * time.Millisecond,
	})
	r.Source.OnStateChange(r.Stats.SetRunning)

	sinks, window, err := BuildSinks(cfg)
	if err != nil {
		return nil, err
	}
	r.Window = window
	r.Pipeline = pipeline.New(r.Source, r.Stats, sinks...)

	if cfg.Watch && opts.ConfigPath != "" {
		r.reloader = reload.New(opts.ConfigPath, r.Source, opts.Level)
	}
	return r, nil
}

// Run starts the source and pumps frames until ctx is done or something
// asks to quit. When a window sink is configured Run must be called from
// the main thread.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	startErr := r.Source.Start()
	var helper websource.HelperExitCode
	if errors.As(startErr, &helper) {
		return startErr
	}
	if startErr != nil {
		r.log.Error("could not start source, use the api to retry", "error", startErr)
	}
	defer r.Source.Close()

	theApi := api.ServeInBackground(r.cfg.Api, r.Source, r.Pipeline, r.Stats, r.Quit)
	if theApi != nil {
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			theApi.Shutdown(shutdownCtx)
		}()
	}

	if r.reloader != nil {
		go func() {
			err := r.reloader.Watch(ctx)
			if err != nil {
				r.log.Error("config watcher failed", "error", err)
			}
		}()
	}

	var wg sync.WaitGroup
	var pipeErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		pipeErr = r.Pipeline.Run(ctx)
		r.Quit()
	}()

	var err error
	if r.Window != nil {
		err = r.Window.MakeWindow()
		if err != nil {
			r.Quit()
			wg.Wait()
			return err
		}
		kbdctl.SetupShortcutKeys(r.Window, r)
		err = r.Window.RunMain(ctx)
		r.Quit()
	}
	wg.Wait()

	if err != nil {
		return err
	}
	return pipeErr
}

func (r *Runner) Quit() {
	r.quitOnce.Do(func() {
		r.log.Info("quitting")
		close(r.quit)
	})
}

// Restart and ToggleRunning are called from the window's event loop and
// must not block it while the browser comes up.
func (r *Runner) Restart() {
	go func() {
		r.Source.Stop()
		err := r.Source.Start()
		if err != nil {
			r.log.Error("could not restart source", "error", err)
		}
	}()
}

func (r *Runner) ToggleRunning() {
	go func() {
		if r.Source.Running() {
			r.Source.Stop()
			return
		}
		err := r.Source.Start()
		if err != nil {
			r.log.Error("could not start source", "error", err)
		}
	}()
}
