package reload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fosdem/webrendersrc/lib/config"
	"github.com/fosdem/webrendersrc/lib/source/websource"
)

type fakeTarget struct {
	mu      sync.Mutex
	props   websource.Properties
	running bool
	calls   []string
}

func (f *fakeTarget) Properties() websource.Properties {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.props
}

func (f *fakeTarget) SetProperties(p websource.Properties) error {
	err := p.Validate()
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return websource.ErrRunning
	}
	f.calls = append(f.calls, "set")
	f.props = p
	return nil
}

func (f *fakeTarget) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "start")
	f.running = true
	return nil
}

func (f *fakeTarget) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "stop")
	f.running = false
	return nil
}

func (f *fakeTarget) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeTarget) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func configFor(url string, w, h int) *config.Config {
	return &config.Config{
		Source:   &config.SourceCfg{URL: url, Width: w, Height: h},
		LogLevel: "info",
	}
}

var initial = websource.Properties{URL: "http://example.test", Width: 320, Height: 240}

func TestApplyUnchanged(t *testing.T) {
	target := &fakeTarget{props: initial, running: true}
	r := New("unused.yaml", target, nil)

	changed, err := r.Apply(configFor("http://example.test", 320, 240))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, target.Calls())
}

func TestApplyRestartsRunningSource(t *testing.T) {
	target := &fakeTarget{props: initial, running: true}
	r := New("unused.yaml", target, nil)

	changed, err := r.Apply(configFor("http://other.test", 640, 480))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"stop", "set", "start"}, target.Calls())
	assert.Equal(t, "http://other.test", target.Properties().URL)
	assert.True(t, target.Running())
}

func TestApplyKeepsStoppedSourceStopped(t *testing.T) {
	target := &fakeTarget{props: initial}
	r := New("unused.yaml", target, nil)

	_, err := r.Apply(configFor("http://other.test", 320, 240))
	require.NoError(t, err)
	assert.Equal(t, []string{"set"}, target.Calls())
	assert.False(t, target.Running())
}

func TestApplyInvalidStillRestarts(t *testing.T) {
	target := &fakeTarget{props: initial, running: true}
	r := New("unused.yaml", target, nil)

	_, err := r.Apply(configFor("", 320, 240))
	assert.Error(t, err)
	assert.True(t, target.Running())
	assert.Equal(t, initial, target.Properties())
}

func TestApplyLogLevel(t *testing.T) {
	lv := &slog.LevelVar{}
	r := New("unused.yaml", &fakeTarget{props: initial}, lv)

	cfg := configFor("http://example.test", 320, 240)
	cfg.LogLevel = "error"
	_, err := r.Apply(cfg)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelError, lv.Level())
}

const cfgTemplate = `
source:
  url: %s
  width: 320
  height: 240
sinks:
  discard:
    type: discard
`

func writeCfg(t *testing.T, path, url string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(cfgTemplate, url)), 0o644))
}

func TestReloadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webrender.yaml")
	writeCfg(t, path, "http://file.test")

	target := &fakeTarget{props: initial}
	require.NoError(t, New(path, target, nil).Reload())
	assert.Equal(t, "http://file.test", target.Properties().URL)
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webrender.yaml")
	writeCfg(t, path, "http://example.test")

	target := &fakeTarget{props: initial, running: true}
	r := New(path, target, nil)
	r.Settle = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- r.Watch(ctx) }()

	// give the watcher a moment to be installed
	time.Sleep(50 * time.Millisecond)
	writeCfg(t, path, "http://changed.test")

	assert.Eventually(t, func() bool {
		return target.Properties().URL == "http://changed.test"
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, target.Running())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
