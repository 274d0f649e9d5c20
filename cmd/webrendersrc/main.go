package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fosdem/webrendersrc/lib/browser"
	"github.com/fosdem/webrendersrc/lib/browser/cdpengine"
	"github.com/fosdem/webrendersrc/lib/config"
	wlog "github.com/fosdem/webrendersrc/lib/log"
	"github.com/fosdem/webrendersrc/lib/runner"
	"github.com/fosdem/webrendersrc/lib/source/websource"
)

func init() {
	// The OpenGL stuff must be in one thread
	runtime.LockOSThread()
}

func main() {
	// the browser may start us again as one of its helpers
	if browser.IsHelperProcess(os.Args) {
		os.Exit(cdpengine.New(cdpengine.Options{}).ExecHelper(os.Args))
	}

	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <config file>", os.Args[0])
	}
	cfg, err := config.Parse(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	lv := wlog.Setup(level)

	r, err := runner.New(runner.Options{
		Config:     cfg,
		ConfigPath: os.Args[1],
		Args:       os.Args,
		Level:      lv,
	})
	if err != nil {
		slog.Error("could not set up", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = r.Run(ctx)
	var helper websource.HelperExitCode
	if errors.As(err, &helper) {
		os.Exit(int(helper))
	}
	if err != nil {
		slog.Error("stopped with error", "error", err)
		os.Exit(1)
	}
}
