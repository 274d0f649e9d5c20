package browser

import (
	"log/slog"
	"strings"
)

// Engine is the embedded browser engine as seen by the controller. Calls
// mirror the engine's own process-global API: an implementation wraps
// exactly one engine instance.
type Engine interface {
	// ExecuteProcess runs the engine's sub-process logic if args describe
	// one of its helper processes, and returns that helper's exit code. It
	// returns a negative number for the main browser process.
	ExecuteProcess(args []string) int
	Initialize(settings Settings) error
	// CreateBrowser creates a single off-screen browser bound to handler.
	// It returns once creation has been scheduled; painting starts later.
	CreateBrowser(info WindowInfo, handler RenderHandler, url string) error
	// DoMessageLoopWork performs one non-blocking pass of the engine's
	// message loop.
	DoMessageLoopWork()
	QuitMessageLoop()
	Shutdown()
}

// RenderHandler is the callback surface an engine drives for an off-screen
// browser.
type RenderHandler interface {
	GetViewRect() (Rect, bool)
	OnPaint(typ PaintElementType, dirty []Rect, buffer []byte, width, height int)
	OnAfterCreated()
	OnBeforeClose()
}

type PaintElementType int

const (
	PaintElementView PaintElementType = iota
	PaintElementPopup
)

func (p PaintElementType) String() string {
	switch p {
	case PaintElementView:
		return "view"
	case PaintElementPopup:
		return "popup"
	default:
		return "unknown"
	}
}

type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

type WindowInfo struct {
	Width                      int
	Height                     int
	WindowlessRenderingEnabled bool
	WindowlessFrameRate        int
}

// Settings are the engine-global settings applied at initialisation
type Settings struct {
	WindowlessRenderingEnabled bool
	RemoteDebuggingPort        int
	// BrowserSubprocessPath is the executable the engine launches for its
	// helper processes, so the host program never gets re-executed.
	BrowserSubprocessPath string
	LogSeverity           slog.Level
	WindowlessFrameRate   int
}

const (
	DefaultDebugPort      = 2012
	DefaultSubprocessPath = "webrender-helper"
	DefaultFrameRate      = 30
)

func DefaultSettings() Settings {
	return Settings{
		WindowlessRenderingEnabled: true,
		RemoteDebuggingPort:        DefaultDebugPort,
		BrowserSubprocessPath:      DefaultSubprocessPath,
		LogSeverity:                slog.LevelWarn,
		WindowlessFrameRate:        DefaultFrameRate,
	}
}

// ProcessType returns the helper role named by a --type= switch, or "" for
// the main browser process.
func ProcessType(args []string) string {
	for _, arg := range args {
		if role, ok := strings.CutPrefix(arg, "--type="); ok {
			return role
		}
	}
	return ""
}

func IsHelperProcess(args []string) bool {
	return ProcessType(args) != ""
}
