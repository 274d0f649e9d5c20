// Package browsertest provides an in-memory browser engine whose paints are
// triggered by the test.
package browsertest

import (
	"sync"
	"time"

	"github.com/fosdem/webrendersrc/lib/browser"
)

type Engine struct {
	// HelperExitCode is returned by ExecuteProcess for helper process args
	HelperExitCode int
	InitErr        error
	CreateErr      error
	// CreateDelay makes CreateBrowser block, like a slow browser launch
	CreateDelay time.Duration

	mu          sync.Mutex
	handler     browser.RenderHandler
	settings    browser.Settings
	info        browser.WindowInfo
	url         string
	initialized int
	created     int
	loopWork    int
	quit        int
	shutdown    int
	helperRuns  int
}

func New() *Engine {
	return &Engine{}
}

func (e *Engine) ExecuteProcess(args []string) int {
	if !browser.IsHelperProcess(args) {
		return -1
	}
	e.mu.Lock()
	e.helperRuns++
	e.mu.Unlock()
	return e.HelperExitCode
}

func (e *Engine) Initialize(settings browser.Settings) error {
	if e.InitErr != nil {
		return e.InitErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = settings
	e.initialized++
	return nil
}

func (e *Engine) CreateBrowser(info browser.WindowInfo, handler browser.RenderHandler, url string) error {
	time.Sleep(e.CreateDelay)
	if e.CreateErr != nil {
		return e.CreateErr
	}
	e.mu.Lock()
	e.info = info
	e.url = url
	e.handler = handler
	e.created++
	e.mu.Unlock()

	handler.OnAfterCreated()
	return nil
}

func (e *Engine) DoMessageLoopWork() {
	e.mu.Lock()
	e.loopWork++
	e.mu.Unlock()
}

func (e *Engine) QuitMessageLoop() {
	e.mu.Lock()
	e.quit++
	e.mu.Unlock()
}

func (e *Engine) Shutdown() {
	e.mu.Lock()
	handler := e.handler
	e.handler = nil
	e.shutdown++
	e.mu.Unlock()

	if handler != nil {
		handler.OnBeforeClose()
	}
}

// Paint delivers a main view paint to the current browser, as the engine's
// paint thread would. It reports whether a browser existed.
func (e *Engine) Paint(buffer []byte, width, height int) bool {
	return e.paint(browser.PaintElementView, buffer, width, height)
}

func (e *Engine) PaintPopup(buffer []byte, width, height int) bool {
	return e.paint(browser.PaintElementPopup, buffer, width, height)
}

func (e *Engine) paint(typ browser.PaintElementType, buffer []byte, width, height int) bool {
	e.mu.Lock()
	handler := e.handler
	e.mu.Unlock()

	if handler == nil {
		return false
	}
	dirty := []browser.Rect{{Width: width, Height: height}}
	handler.OnPaint(typ, dirty, buffer, width, height)
	return true
}

// ViewRect asks the current browser's handler for its view rect
func (e *Engine) ViewRect() (browser.Rect, bool) {
	e.mu.Lock()
	handler := e.handler
	e.mu.Unlock()
	if handler == nil {
		return browser.Rect{}, false
	}
	return handler.GetViewRect()
}

type Counts struct {
	Initialized int
	Created     int
	LoopWork    int
	Quit        int
	Shutdown    int
	HelperRuns  int
}

func (e *Engine) Counts() Counts {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Counts{
		Initialized: e.initialized,
		Created:     e.created,
		LoopWork:    e.loopWork,
		Quit:        e.quit,
		Shutdown:    e.shutdown,
		HelperRuns:  e.helperRuns,
	}
}

func (e *Engine) Settings() browser.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

func (e *Engine) WindowInfo() browser.WindowInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info
}

func (e *Engine) URL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.url
}
