package browser_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fosdem/webrendersrc/lib/browser"
	"github.com/fosdem/webrendersrc/lib/browser/browsertest"
)

var mainArgs = []string{"webrendersrc", "config.yaml"}

func newController(t *testing.T) (*browser.Controller, *browsertest.Engine) {
	t.Helper()
	engine := browsertest.New()
	c := browser.New(engine, browser.DefaultSettings())
	t.Cleanup(c.End)
	return c, engine
}

func TestInitTwiceIsNoop(t *testing.T) {
	c, engine := newController(t)

	code, err := c.Init(mainArgs, nil)
	require.NoError(t, err)
	assert.Negative(t, code)
	assert.Equal(t, browser.Initialized, c.State())

	code, err = c.Init(mainArgs, nil)
	assert.ErrorIs(t, err, browser.ErrAlreadyInitialized)
	assert.Negative(t, code)
	assert.Equal(t, browser.Initialized, c.State())
	assert.Equal(t, 1, engine.Counts().Initialized)
}

func TestInitAppliesSettings(t *testing.T) {
	c, engine := newController(t)
	_, err := c.Init(mainArgs, nil)
	require.NoError(t, err)

	s := engine.Settings()
	assert.True(t, s.WindowlessRenderingEnabled)
	assert.Equal(t, 2012, s.RemoteDebuggingPort)
	assert.Equal(t, "webrender-helper", s.BrowserSubprocessPath)
}

func TestInitInHelperProcess(t *testing.T) {
	c, engine := newController(t)
	engine.HelperExitCode = 3

	code, err := c.Init([]string{"webrender-helper", "--type=renderer"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, browser.Uninitialized, c.State())
	assert.Equal(t, 0, engine.Counts().Initialized)
	assert.Equal(t, 1, engine.Counts().HelperRuns)
}

func TestInitFailureReleasesSession(t *testing.T) {
	c, engine := newController(t)
	engine.InitErr = errors.New("no display")

	_, err := c.Init(mainArgs, nil)
	assert.Error(t, err)
	assert.Equal(t, browser.Uninitialized, c.State())
	assert.Nil(t, browser.ActiveSession())
}

func TestSingleSessionPerProcess(t *testing.T) {
	first, _ := newController(t)
	second, _ := newController(t)

	_, err := first.Init(mainArgs, nil)
	require.NoError(t, err)
	_, err = second.Init(mainArgs, nil)
	assert.ErrorIs(t, err, browser.ErrSessionActive)

	first.End()
	_, err = second.Init(mainArgs, nil)
	assert.NoError(t, err)
}

func TestEndWithoutInit(t *testing.T) {
	c, engine := newController(t)
	c.End()
	assert.Equal(t, browser.Uninitialized, c.State())
	assert.Equal(t, 0, engine.Counts().Shutdown)
	assert.NoError(t, c.Close())
}

func TestEndIsIdempotent(t *testing.T) {
	c, engine := newController(t)
	_, err := c.Init(mainArgs, nil)
	require.NoError(t, err)

	c.End()
	c.End()
	assert.Equal(t, browser.Ended, c.State())
	assert.Equal(t, 1, engine.Counts().Quit)
	assert.Equal(t, 1, engine.Counts().Shutdown)

	_, err = c.Init(mainArgs, nil)
	assert.ErrorIs(t, err, browser.ErrEnded)
}

func TestRunOnlyWhileInitialized(t *testing.T) {
	c, engine := newController(t)

	c.Run()
	assert.Equal(t, 0, engine.Counts().LoopWork)

	_, err := c.Init(mainArgs, nil)
	require.NoError(t, err)
	c.Run()
	require.NoError(t, c.CreateFrame("http://example.test", 4, 4))
	c.Run()
	assert.Equal(t, 2, engine.Counts().LoopWork)

	c.End()
	c.Run()
	assert.Equal(t, 2, engine.Counts().LoopWork)
}

func TestCreateFrame(t *testing.T) {
	c, engine := newController(t)

	assert.ErrorIs(t, c.CreateFrame("http://example.test", 320, 240), browser.ErrNotInitialized)

	_, err := c.Init(mainArgs, nil)
	require.NoError(t, err)
	require.NoError(t, c.CreateFrame("http://example.test", 320, 240))
	assert.Equal(t, browser.Running, c.State())

	info := engine.WindowInfo()
	assert.Equal(t, 320, info.Width)
	assert.Equal(t, 240, info.Height)
	assert.Equal(t, 30, info.WindowlessFrameRate)
	assert.True(t, info.WindowlessRenderingEnabled)
	assert.Equal(t, "http://example.test", engine.URL())

	rect, ok := engine.ViewRect()
	require.True(t, ok)
	assert.Equal(t, browser.Rect{Width: 320, Height: 240}, rect)

	assert.ErrorIs(t, c.CreateFrame("http://example.test", 320, 240), browser.ErrAlreadyCreated)
}

func TestViewRectBeforeCreate(t *testing.T) {
	c, _ := newController(t)
	assert.Equal(t, browser.Rect{Width: 1280, Height: 720}, c.GetViewRect())
}

func TestOnPaintForwardsCopy(t *testing.T) {
	c, engine := newController(t)

	var got []*browser.Paint
	_, err := c.Init(mainArgs, func(p *browser.Paint) { got = append(got, p) })
	require.NoError(t, err)
	require.NoError(t, c.CreateFrame("http://example.test", 2, 2))

	buf := bytes.Repeat([]byte{5}, 2*2*4)
	require.True(t, engine.Paint(buf, 2, 2))
	buf[0] = 99

	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Width)
	assert.Equal(t, 2, got[0].Height)
	assert.Equal(t, byte(5), got[0].Data[0], "paint must be copied")
	assert.Len(t, got[0].Data, 16)
}

func TestOnPaintFiltersPopups(t *testing.T) {
	c, engine := newController(t)

	calls := 0
	_, err := c.Init(mainArgs, func(*browser.Paint) { calls++ })
	require.NoError(t, err)
	require.NoError(t, c.CreateFrame("http://example.test", 2, 2))

	engine.PaintPopup(make([]byte, 16), 2, 2)
	c.OnPaint(browser.PaintElementPopup, nil, make([]byte, 16), 2, 2)
	assert.Equal(t, 0, calls)
}

func TestOnPaintShortBuffer(t *testing.T) {
	c, _ := newController(t)
	calls := 0
	_, err := c.Init(mainArgs, func(*browser.Paint) { calls++ })
	require.NoError(t, err)

	c.OnPaint(browser.PaintElementView, nil, make([]byte, 3), 2, 2)
	assert.Equal(t, 0, calls)
}

func TestOnPaintAfterEnd(t *testing.T) {
	c, _ := newController(t)
	calls := 0
	_, err := c.Init(mainArgs, func(*browser.Paint) { calls++ })
	require.NoError(t, err)
	c.End()

	c.OnPaint(browser.PaintElementView, nil, make([]byte, 16), 2, 2)
	assert.Equal(t, 0, calls)
}

func TestProcessType(t *testing.T) {
	assert.Equal(t, "", browser.ProcessType([]string{"webrendersrc"}))
	assert.Equal(t, "gpu-process", browser.ProcessType([]string{"x", "--no-sandbox", "--type=gpu-process"}))
	assert.True(t, browser.IsHelperProcess([]string{"x", "--type=renderer"}))
	assert.False(t, browser.IsHelperProcess(nil))
}
