package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fosdem/webrendersrc/lib/config"
	"github.com/fosdem/webrendersrc/lib/source/websource"
	"github.com/fosdem/webrendersrc/lib/stats"
)

type fakeSource struct {
	mu        sync.Mutex
	props     websource.Properties
	running   bool
	startErr  error
	listeners []func(bool)
}

func (f *fakeSource) Properties() websource.Properties {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.props
}

func (f *fakeSource) SetProperties(p websource.Properties) error {
	if err := p.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return websource.ErrRunning
	}
	f.props = p
	return nil
}

func (f *fakeSource) setRunning(r bool) {
	f.mu.Lock()
	f.running = r
	listeners := f.listeners
	f.mu.Unlock()
	for _, l := range listeners {
		l(r)
	}
}

func (f *fakeSource) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.setRunning(true)
	return nil
}

func (f *fakeSource) Stop() error {
	f.setRunning(false)
	return nil
}

func (f *fakeSource) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeSource) Caps() websource.Caps {
	p := f.Properties()
	return websource.NewCaps(p.Width, p.Height)
}

func (f *fakeSource) OnStateChange(l func(bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
}

type fakeFrames struct {
	data []byte
	caps websource.Caps
}

func (f *fakeFrames) LastFrame() ([]byte, websource.Caps, bool) {
	return f.data, f.caps, f.data != nil
}

func newTestApi(t *testing.T) (*Api, *fakeSource, *fakeFrames, *httptest.Server) {
	t.Helper()
	src := &fakeSource{props: websource.Properties{URL: "http://example.test", Width: 4, Height: 2}}
	frames := &fakeFrames{}
	a := New(&config.ApiCfg{Bind: "127.0.0.1:0"}, src, frames, stats.New())
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return a, src, frames, srv
}

func do(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var b bytes.Buffer
	_, err = b.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, b.String()
}

func TestProperties(t *testing.T) {
	_, src, _, srv := newTestApi(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/properties", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"url":"http://example.test","width":4,"height":2}`, body)

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/properties", `{"url":"http://other.test"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://other.test", src.Properties().URL)
	assert.Equal(t, 4, src.Properties().Width, "omitted fields are kept")

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/properties", `{"width":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/properties", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.NoError(t, src.Start())
	resp, _ = do(t, http.MethodPut, srv.URL+"/api/properties", `{"url":"http://third.test"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "http://other.test", src.Properties().URL)
}

func TestStartStop(t *testing.T) {
	a, src, _, srv := newTestApi(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/start", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, src.Running())
	assert.True(t, a.Stats.Get().Running)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/stop", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, src.Running())
	assert.False(t, a.Stats.Get().Running)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/start", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	src.startErr = errors.New("no browser")
	resp, body := do(t, http.MethodPost, srv.URL+"/api/start", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, "no browser")
}

func TestCapsAndStats(t *testing.T) {
	_, _, _, srv := newTestApi(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/caps", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var caps websource.Caps
	require.NoError(t, json.Unmarshal([]byte(body), &caps))
	assert.Equal(t, "BGRA", caps.Format)
	assert.Equal(t, 4, caps.Width)

	resp, body = do(t, http.MethodGet, srv.URL+"/api/stats", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var snap stats.Snapshot
	require.NoError(t, json.Unmarshal([]byte(body), &snap))
	assert.False(t, snap.Running)
}

func TestFrame(t *testing.T) {
	_, _, frames, srv := newTestApi(t)

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/frame/png", "")
	assert.Equal(t, http.StatusFailedDependency, resp.StatusCode)

	// one blue pixel in BGRA
	frames.data = []byte{255, 0, 0, 255}
	frames.caps = websource.NewCaps(1, 1)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/frame/png", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(strings.NewReader(body))
	require.NoError(t, err)
	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{0, 0, 0xffff}, []uint32{r, g, b})

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/frame", "")
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/frame/gif", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestKill(t *testing.T) {
	a, _, _, srv := newTestApi(t)
	killed := false
	a.OnKill = func() { killed = true }

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/kill", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, killed)
}

func TestSwaggerDoc(t *testing.T) {
	_, _, _, srv := newTestApi(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/swagger/doc.json", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &doc))
	assert.Contains(t, doc["paths"], "/api/properties")
}

func TestMetrics(t *testing.T) {
	_, _, _, srv := newTestApi(t)
	resp, _ := do(t, http.MethodGet, srv.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebsocketStateEvents(t *testing.T) {
	a, src, _, srv := newTestApi(t)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	var ev StateEvent
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, StateEvent{Event: "state", Running: false}, ev)

	assert.Eventually(t, func() bool {
		return a.Stats.Get().WsClients == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, src.Start())
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, StateEvent{Event: "state", Running: true}, ev)

	ws.Close()
	assert.Eventually(t, func() bool {
		return a.Stats.Get().WsClients == 0
	}, time.Second, 10*time.Millisecond)
}

func TestStalledWebsocketClientDoesNotBlockStart(t *testing.T) {
	a, src, _, srv := newTestApi(t)

	// a client whose writer never drains its queue
	stalled := new(websocket.Conn)
	a.wsMutex.Lock()
	a.wsClients[stalled] = make(chan []byte)
	a.wsMutex.Unlock()
	t.Cleanup(func() {
		a.wsMutex.Lock()
		delete(a.wsClients, stalled)
		a.wsMutex.Unlock()
	})

	begin := time.Now()
	resp, _ := do(t, http.MethodPost, srv.URL+"/api/start", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, src.Running())
	assert.Less(t, time.Since(begin), time.Second)
}
