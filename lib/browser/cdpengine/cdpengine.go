// Package cdpengine drives a headless Chromium over the DevTools protocol
// and turns its screencast into off-screen paints.
package cdpengine

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"golang.org/x/sys/unix"

	"github.com/fosdem/webrendersrc/lib/browser"
	"github.com/fosdem/webrendersrc/lib/encdec"
)

// BrowserEnv names the environment variable the helper trampoline reads
// to find the real browser binary.
const BrowserEnv = "WEBRENDER_BROWSER"

var browserCandidates = []string{
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"headless-shell",
}

type Options struct {
	// BrowserPath is the real Chromium binary. Looked up in $PATH if empty.
	BrowserPath string
	Headless    bool
	// Format is the screencast image format, "png" or "jpeg"
	Format     string
	ExtraFlags map[string]any
}

type Engine struct {
	opts Options

	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	handler  browser.RenderHandler
	frames   chan *page.EventScreencastFrame
	interval time.Duration

	// only touched from DoMessageLoopWork
	lastPaint time.Time
	buf       []byte

	quit     atomic.Bool
	shutdown sync.Once

	log *slog.Logger
}

func New(opts Options) *Engine {
	if opts.Format == "" {
		opts.Format = "png"
	}
	return &Engine{
		opts:   opts,
		frames: make(chan *page.EventScreencastFrame, 4),
		log:    slog.With("module", "cdp"),
	}
}

func (e *Engine) ExecuteProcess(args []string) int {
	role := browser.ProcessType(args)
	if role == "" {
		return -1
	}
	e.log.Debug("dispatching helper process", "type", role)
	return e.ExecHelper(args)
}

// ExecHelper replaces the current process with the real browser binary,
// passing args[1:] through. It only returns if that fails.
func (e *Engine) ExecHelper(args []string) int {
	path, err := e.browserPath()
	if err != nil {
		e.log.Error("no browser to hand over to", "error", err)
		return 1
	}
	argv := append([]string{path}, args[1:]...)
	err = unix.Exec(path, argv, os.Environ())
	e.log.Error("could not exec browser", "path", path, "error", err)
	return 1
}

func (e *Engine) Initialize(settings browser.Settings) error {
	realPath, err := e.browserPath()
	if err != nil {
		return err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", e.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-gpu-compositing", true),
		chromedp.Flag("enable-begin-frame-scheduling", true),
		chromedp.Flag("enable-media-stream", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("log-level", logLevel(settings.LogSeverity)),
		chromedp.Env(BrowserEnv+"="+realPath),
	)
	if settings.RemoteDebuggingPort > 0 {
		opts = append(opts, chromedp.Flag("remote-debugging-port", settings.RemoteDebuggingPort))
	}
	for k, v := range e.opts.ExtraFlags {
		opts = append(opts, chromedp.Flag(k, v))
	}

	execPath := realPath
	if helper := resolveHelper(settings.BrowserSubprocessPath); helper != "" {
		execPath = helper
	} else if settings.BrowserSubprocessPath != "" {
		e.log.Warn("helper executable not found, launching browser directly",
			"subprocess_path", settings.BrowserSubprocessPath)
	}
	opts = append(opts, chromedp.ExecPath(execPath))

	if settings.WindowlessFrameRate > 0 {
		e.interval = time.Second / time.Duration(settings.WindowlessFrameRate)
	}

	e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	e.log.Debug("allocator ready", "exec", execPath, "browser", realPath)
	return nil
}

func (e *Engine) CreateBrowser(info browser.WindowInfo, handler browser.RenderHandler, url string) error {
	if e.allocCtx == nil {
		return fmt.Errorf("engine is not initialized")
	}
	if info.WindowlessFrameRate > 0 {
		e.interval = time.Second / time.Duration(info.WindowlessFrameRate)
	}

	rect, ok := handler.GetViewRect()
	if !ok {
		rect = browser.Rect{Width: info.Width, Height: info.Height}
	}

	e.ctx, e.cancel = chromedp.NewContext(e.allocCtx,
		chromedp.WithLogf(e.logf(slog.LevelDebug)),
		chromedp.WithErrorf(e.logf(slog.LevelWarn)),
	)
	e.handler = handler
	chromedp.ListenTarget(e.ctx, e.onEvent)

	format := page.ScreencastFormatPng
	if e.opts.Format == "jpeg" {
		format = page.ScreencastFormatJpeg
	}
	err := chromedp.Run(e.ctx,
		emulation.SetDeviceMetricsOverride(int64(rect.Width), int64(rect.Height), 1, false),
		page.StartScreencast().
			WithFormat(format).
			WithMaxWidth(int64(rect.Width)).
			WithMaxHeight(int64(rect.Height)).
			WithEveryNthFrame(1),
	)
	if err != nil {
		e.cancel()
		return fmt.Errorf("could not start screencast: %w", err)
	}
	handler.OnAfterCreated()

	go func() {
		err := chromedp.Run(e.ctx, chromedp.Navigate(url))
		if err != nil && e.ctx.Err() == nil {
			e.log.Error("navigation failed", "url", url, "error", err)
		}
	}()
	return nil
}

func (e *Engine) onEvent(ev any) {
	switch ev := ev.(type) {
	case *page.EventScreencastFrame:
		select {
		case e.frames <- ev:
		default:
			// nobody is pumping; keep the screencast flowing regardless
			go e.ack(ev.SessionID)
		}
	case *page.EventLoadEventFired:
		e.log.Debug("page load finished")
	}
}

func (e *Engine) DoMessageLoopWork() {
	if e.quit.Load() {
		return
	}
	for {
		select {
		case ev := <-e.frames:
			e.paint(ev)
		default:
			return
		}
	}
}

func (e *Engine) paint(ev *page.EventScreencastFrame) {
	go e.ack(ev.SessionID)

	now := time.Now()
	if e.interval > 0 && now.Sub(e.lastPaint) < e.interval {
		return
	}

	raw, err := base64.StdEncoding.DecodeString(ev.Data)
	if err != nil {
		e.log.Warn("could not decode screencast frame", "error", err)
		return
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		e.log.Warn("could not decode screencast image", "error", err)
		return
	}

	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if len(e.buf) != w*h*4 {
		e.buf = make([]byte, w*h*4)
	}
	err = encdec.BGRAFromImage(img, e.buf)
	if err != nil {
		e.log.Warn("could not convert screencast frame", "error", err)
		return
	}

	e.lastPaint = now
	dirty := []browser.Rect{{Width: w, Height: h}}
	e.handler.OnPaint(browser.PaintElementView, dirty, e.buf, w, h)
}

func (e *Engine) ack(sessionID int64) {
	err := chromedp.Run(e.ctx, page.ScreencastFrameAck(sessionID))
	if err != nil && e.ctx.Err() == nil {
		e.log.Debug("screencast ack failed", "error", err)
	}
}

func (e *Engine) QuitMessageLoop() {
	e.quit.Store(true)
}

func (e *Engine) Shutdown() {
	e.shutdown.Do(func() {
		if e.ctx != nil {
			if e.handler != nil {
				e.handler.OnBeforeClose()
			}
			err := chromedp.Cancel(e.ctx)
			if err != nil {
				e.log.Debug("browser did not close cleanly", "error", err)
			}
			e.cancel()
		}
		if e.allocCancel != nil {
			e.allocCancel()
		}
	})
}

func (e *Engine) browserPath() (string, error) {
	if e.opts.BrowserPath != "" {
		return e.opts.BrowserPath, nil
	}
	if p := os.Getenv(BrowserEnv); p != "" {
		return p, nil
	}
	for _, name := range browserCandidates {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("could not find a chromium binary, set %s or browser_path", BrowserEnv)
}

func (e *Engine) logf(level slog.Level) func(string, ...any) {
	return func(format string, args ...any) {
		e.log.Log(context.Background(), level, fmt.Sprintf(format, args...))
	}
}

// resolveHelper finds the helper executable next to our own binary or in
// $PATH.
func resolveHelper(name string) string {
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err == nil {
			return name
		}
		return ""
	}
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	return ""
}

func logLevel(l slog.Level) int {
	switch {
	case l >= slog.LevelError:
		return 2
	case l >= slog.LevelWarn:
		return 1
	default:
		return 0
	}
}
