package windowsink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/fosdem/webrendersrc/lib/config"
	"github.com/fosdem/webrendersrc/lib/encdec"
	"github.com/fosdem/webrendersrc/lib/pipeline"
	"github.com/fosdem/webrendersrc/lib/source/websource"
	"github.com/fosdem/webrendersrc/lib/utils"
)

// WindowSink previews the stream in a glfw window. Consume may be called
// from any goroutine; everything touching the window happens in RunMain,
// which has to run on the main thread.
type WindowSink struct {
	name   string
	cfg    config.WindowSinkCfg
	Window *glfw.Window

	mu      sync.Mutex
	pending []byte
	caps    websource.Caps
	fresh   bool

	texture uint32
	fbo     uint32
	texCaps websource.Caps

	quit atomic.Bool
	log  *slog.Logger
}

func New(name string, cfg *config.WindowSinkCfg) *WindowSink {
	w := &WindowSink{
		name: name,
		cfg:  *cfg,
		log:  slog.With("module", name),
	}
	if w.cfg.Title == "" {
		w.cfg.Title = name
	}
	return w
}

func (w *WindowSink) Name() string {
	return w.name
}

func (w *WindowSink) Start(caps websource.Caps) error {
	w.mu.Lock()
	w.caps = caps
	w.pending = nil
	w.fresh = false
	w.mu.Unlock()
	return nil
}

func (w *WindowSink) Consume(buf *encdec.Buffer) error {
	if w.quit.Load() {
		return pipeline.ErrShutdown
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) != len(buf.Data) {
		w.pending = make([]byte, len(buf.Data))
	}
	copy(w.pending, buf.Data)
	w.fresh = true
	return nil
}

func (w *WindowSink) Close() error {
	return nil
}

// RequestQuit makes RunMain return and the pipeline shut down
func (w *WindowSink) RequestQuit() {
	w.quit.Store(true)
}

func (w *WindowSink) QuitRequested() bool {
	return w.quit.Load()
}

// MakeWindow creates the window and its GL context on the calling thread
func (w *WindowSink) MakeWindow() error {
	if w.Window != nil {
		return nil
	}
	w.log.Debug("initializing window")
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize glfw: %w", err)
	}

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	width, height := w.cfg.Width, w.cfg.Height
	if width == 0 || height == 0 {
		width, height = 960, 540
	}
	window, err := glfw.CreateWindow(width, height, w.cfg.Title, nil, nil)
	if err != nil {
		return fmt.Errorf("could not create window: %w", err)
	}
	window.MakeContextCurrent()
	if w.cfg.VSync {
		glfw.SwapInterval(1)
	}

	err = gl.Init()
	if err != nil {
		return fmt.Errorf("could not initialise OpenGL context: %w", err)
	}

	vendor := gl.GoStr(gl.GetString(gl.VENDOR))
	renderer := gl.GoStr(gl.GetString(gl.RENDERER))
	version := gl.GoStr(gl.GetString(gl.VERSION))
	w.log.Info("OpenGL ready", "vendor", vendor, "renderer", renderer, "version", version)

	w.Window = window
	return nil
}

// RunMain shows frames until ctx is done, the window is closed or a quit
// was requested. It must be called from the main thread.
func (w *WindowSink) RunMain(ctx context.Context) error {
	err := w.MakeWindow()
	if err != nil {
		return err
	}
	defer glfw.Terminate()

	bg := w.background()
	for ctx.Err() == nil && !w.quit.Load() {
		glfw.PollEvents()
		if w.Window.ShouldClose() {
			w.log.Info("window closed")
			w.RequestQuit()
			break
		}

		w.upload()
		fbWidth, fbHeight := w.Window.GetFramebufferSize()
		gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
		gl.Viewport(0, 0, int32(fbWidth), int32(fbHeight))
		gl.ClearColor(bg[0], bg[1], bg[2], bg[3])
		gl.Clear(gl.COLOR_BUFFER_BIT)
		if w.fbo != 0 {
			w.blit(fbWidth, fbHeight)
		}
		w.Window.SwapBuffers()

		if !w.cfg.VSync {
			time.Sleep(10 * time.Millisecond)
		}
	}
	return nil
}

// upload copies the newest frame into the texture, recreating it when the
// caps changed.
func (w *WindowSink) upload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.fresh {
		return
	}
	w.fresh = false
	if len(w.pending) != w.caps.FrameSize() {
		return
	}

	if w.texCaps != w.caps || w.texture == 0 {
		w.setupTexture(w.caps)
	}
	gl.BindTexture(gl.TEXTURE_2D, w.texture)
	gl.TexSubImage2D(
		gl.TEXTURE_2D,
		0,
		0,
		0,
		int32(w.caps.Width),
		int32(w.caps.Height),
		gl.BGRA,
		gl.UNSIGNED_BYTE,
		gl.Ptr(&w.pending[0]),
	)
}

func (w *WindowSink) setupTexture(caps websource.Caps) {
	if w.texture != 0 {
		gl.DeleteTextures(1, &w.texture)
		gl.DeleteFramebuffers(1, &w.fbo)
	}

	gl.GenTextures(1, &w.texture)
	gl.BindTexture(gl.TEXTURE_2D, w.texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexImage2D(
		gl.TEXTURE_2D,
		0,
		gl.RGBA,
		int32(caps.Width),
		int32(caps.Height),
		0,
		gl.BGRA,
		gl.UNSIGNED_BYTE,
		nil,
	)

	gl.GenFramebuffers(1, &w.fbo)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, w.fbo)
	gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, w.texture, 0)
	if gl.CheckFramebufferStatus(gl.READ_FRAMEBUFFER) != gl.FRAMEBUFFER_COMPLETE {
		w.log.Error("preview framebuffer is incomplete")
	}
	w.texCaps = caps
}

func (w *WindowSink) blit(fbWidth, fbHeight int) {
	src := mgl32.Vec2{float32(w.texCaps.Width), float32(w.texCaps.Height)}
	pos, size := Letterbox(src, mgl32.Vec2{float32(fbWidth), float32(fbHeight)})

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, w.fbo)
	// frames are top row first, GL wants the bottom row first
	gl.BlitFramebuffer(
		0, 0, int32(src.X()), int32(src.Y()),
		int32(pos.X()), int32(pos.Y()+size.Y()), int32(pos.X()+size.X()), int32(pos.Y()),
		gl.COLOR_BUFFER_BIT, gl.LINEAR,
	)
}

func (w *WindowSink) background() mgl32.Vec4 {
	return utils.ColourVec(w.cfg.Background, mgl32.Vec4{0, 0, 0, 1})
}

// Letterbox fits src into dst keeping the aspect ratio and returns the
// centred position and size.
func Letterbox(src, dst mgl32.Vec2) (pos, size mgl32.Vec2) {
	if src.X() <= 0 || src.Y() <= 0 {
		return mgl32.Vec2{}, mgl32.Vec2{}
	}
	scale := min(dst.X()/src.X(), dst.Y()/src.Y())
	size = src.Mul(scale)
	pos = dst.Sub(size).Mul(0.5)
	return pos, size
}
