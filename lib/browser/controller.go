package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

type State int32

const (
	Uninitialized State = iota
	Initialized
	Running
	Ended
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyInitialized = errors.New("browser is already initialized")
	ErrSessionActive      = errors.New("another browser session is active in this process")
	ErrEnded              = errors.New("browser session has ended")
	ErrNotInitialized     = errors.New("browser is not initialized")
	ErrAlreadyCreated     = errors.New("browser frame was already created")
)

// The engines we embed only support one browser process per host process.
var activeSession atomic.Pointer[Controller]

// ActiveSession returns the controller currently holding the process-wide
// browser session, if any.
func ActiveSession() *Controller {
	return activeSession.Load()
}

// Paint is a copy of one painted view, handed to the FrameSink
type Paint struct {
	Width  int
	Height int
	Data   []byte
	Dirty  []Rect
}

// FrameSink receives painted frames. It is called on whichever goroutine
// the engine paints on.
type FrameSink func(p *Paint)

// Controller owns one browser engine session and drives it through
// Uninitialized -> Initialized -> Running -> Ended. A controller is used
// for a single session; start a new one with a new Controller.
type Controller struct {
	engine   Engine
	settings Settings

	state    atomic.Int32
	sink     atomic.Pointer[FrameSink]
	viewRect atomic.Pointer[Rect]

	// serialises state transitions and message loop passes
	mu sync.Mutex

	log *slog.Logger
}

func New(engine Engine, settings Settings) *Controller {
	c := &Controller{
		engine:   engine,
		settings: settings,
		log:      slog.With("module", "browser"),
	}
	c.viewRect.Store(&Rect{Width: 1280, Height: 720})
	return c
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

// Init hands control to the engine's sub-process dispatch first. When args
// describe an engine helper process, the helper's work is done right here
// and its exit code (>= 0) is returned: the caller must exit with it and
// do nothing else. Otherwise exitCode is negative and the engine is
// initialised for the browser process. Calling Init on an initialised
// controller changes nothing and returns ErrAlreadyInitialized.
func (c *Controller) Init(args []string, sink FrameSink) (exitCode int, err error) {
	if code := c.engine.ExecuteProcess(args); code >= 0 {
		return code, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.State() {
	case Initialized, Running:
		return -1, ErrAlreadyInitialized
	case Ended:
		return -1, ErrEnded
	}

	if !activeSession.CompareAndSwap(nil, c) {
		return -1, ErrSessionActive
	}

	c.sink.Store(&sink)
	err = c.engine.Initialize(c.settings)
	if err != nil {
		activeSession.CompareAndSwap(c, nil)
		return -1, fmt.Errorf("could not initialise browser engine: %w", err)
	}

	c.state.Store(int32(Initialized))
	c.log.Info("browser engine initialised",
		"debug_port", c.settings.RemoteDebuggingPort,
		"subprocess", c.settings.BrowserSubprocessPath)
	return -1, nil
}

// CreateFrame creates the off-screen browser showing url at width x height
func (c *Controller) CreateFrame(url string, width, height int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.State() {
	case Uninitialized:
		return ErrNotInitialized
	case Running:
		return ErrAlreadyCreated
	case Ended:
		return ErrEnded
	}

	c.viewRect.Store(&Rect{Width: width, Height: height})

	info := WindowInfo{
		Width:                      width,
		Height:                     height,
		WindowlessRenderingEnabled: true,
		WindowlessFrameRate:        c.frameRate(),
	}
	err := c.engine.CreateBrowser(info, NewClient(c), url)
	if err != nil {
		return fmt.Errorf("could not create browser for %s: %w", url, err)
	}

	c.state.Store(int32(Running))
	c.log.Info("browser created", "url", url, "width", width, "height", height)
	return nil
}

// Run does a single pass of the engine's message loop. It does nothing
// unless the engine is initialised.
func (c *Controller) Run() {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.State()
	if s != Initialized && s != Running {
		return
	}
	c.engine.DoMessageLoopWork()
}

// End stops the message loop and shuts the engine down. Calling it more
// than once, or on a controller that was never initialised, does nothing.
func (c *Controller) End() {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.State()
	if s == Uninitialized || s == Ended {
		return
	}
	c.state.Store(int32(Ended))

	c.engine.QuitMessageLoop()
	c.engine.Shutdown()
	activeSession.CompareAndSwap(c, nil)
	c.log.Info("browser engine shut down")
}

func (c *Controller) Close() error {
	c.End()
	return nil
}

func (c *Controller) GetViewRect() Rect {
	return *c.viewRect.Load()
}

// OnPaint copies a painted main view and forwards it to the frame sink
func (c *Controller) OnPaint(typ PaintElementType, dirty []Rect, buffer []byte, width, height int) {
	if typ != PaintElementView {
		return
	}
	if c.State() == Ended {
		return
	}
	sink := c.sink.Load()
	if sink == nil || *sink == nil {
		return
	}

	size := width * height * 4
	if width <= 0 || height <= 0 || len(buffer) < size {
		c.log.Warn("ignoring short paint buffer", "bytes", len(buffer), "width", width, "height", height)
		return
	}

	p := &Paint{
		Width:  width,
		Height: height,
		Data:   make([]byte, size),
		Dirty:  append([]Rect(nil), dirty...),
	}
	copy(p.Data, buffer[:size])
	(*sink)(p)
}

func (c *Controller) OnAfterCreated() {
	c.log.Debug("browser life span started")
}

func (c *Controller) OnBeforeClose() {
	c.log.Debug("browser life span ending")
}

func (c *Controller) frameRate() int {
	if c.settings.WindowlessFrameRate > 0 {
		return c.settings.WindowlessFrameRate
	}
	return DefaultFrameRate
}
