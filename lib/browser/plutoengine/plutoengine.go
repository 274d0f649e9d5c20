//go:build plutobook

// Package plutoengine renders pages in-process with plutobook. It has no
// script engine, so pages are static and get re-rendered at the frame rate.
package plutoengine

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fosdem/webrendersrc/lib/browser"
	"github.com/fosdem/webrendersrc/lib/browser/plutoengine/plutobook"
)

const Enabled = true

type Options struct {
	UserStyle string
	// Refresh is how often the page is re-rendered. Defaults to the
	// windowless frame interval.
	Refresh time.Duration
}

type Engine struct {
	opts Options

	book    *plutobook.Book
	canvas  *plutobook.Canvas
	handler browser.RenderHandler
	rect    browser.Rect
	buf     []byte

	lastRender time.Time
	quit       atomic.Bool

	log *slog.Logger
}

func New(opts Options) (browser.Engine, error) {
	return &Engine{
		opts: opts,
		log:  slog.With("module", "plutobook"),
	}, nil
}

func (e *Engine) ExecuteProcess(args []string) int {
	if role := browser.ProcessType(args); role != "" {
		e.log.Warn("plutobook has no helper processes", "type", role)
		return 0
	}
	return -1
}

func (e *Engine) Initialize(settings browser.Settings) error {
	if e.opts.Refresh == 0 && settings.WindowlessFrameRate > 0 {
		e.opts.Refresh = time.Second / time.Duration(settings.WindowlessFrameRate)
	}
	e.log.Info("using plutobook", "version", plutobook.VersionString())
	return nil
}

func (e *Engine) CreateBrowser(info browser.WindowInfo, handler browser.RenderHandler, url string) error {
	rect, ok := handler.GetViewRect()
	if !ok {
		rect = browser.Rect{Width: info.Width, Height: info.Height}
	}

	book := plutobook.New(rect.Width, rect.Height, plutobook.MediaTypeScreen)
	book.SetFetcher(func(res string) *plutobook.Resource {
		e.log.Debug("fetching resource", "url", res)
		return plutobook.Fetch(res)
	})
	err := book.LoadURL(url, e.opts.UserStyle, "")
	if err != nil {
		book.Destroy()
		return fmt.Errorf("could not load page: %w", err)
	}

	e.book = book
	e.canvas = plutobook.NewCanvas(rect.Width, rect.Height)
	e.rect = rect
	e.buf = make([]byte, rect.Width*rect.Height*4)
	e.handler = handler
	handler.OnAfterCreated()
	return nil
}

func (e *Engine) DoMessageLoopWork() {
	if e.quit.Load() || e.book == nil {
		return
	}
	now := time.Now()
	if now.Sub(e.lastRender) < e.opts.Refresh {
		return
	}
	e.lastRender = now

	e.canvas.Clear(1, 1, 1, 1)
	e.book.RenderRect(e.canvas, e.rect.Width, e.rect.Height)
	e.canvas.CopyTo(e.buf)

	dirty := []browser.Rect{{Width: e.rect.Width, Height: e.rect.Height}}
	e.handler.OnPaint(browser.PaintElementView, dirty, e.buf, e.rect.Width, e.rect.Height)
}

func (e *Engine) QuitMessageLoop() {
	e.quit.Store(true)
}

func (e *Engine) Shutdown() {
	if e.handler != nil {
		e.handler.OnBeforeClose()
		e.handler = nil
	}
	if e.canvas != nil {
		e.canvas.Destroy()
		e.canvas = nil
	}
	if e.book != nil {
		e.book.Destroy()
		e.book = nil
	}
}
