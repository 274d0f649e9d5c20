package kbdctl

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	quit, restart, toggle int
}

func (r *recorder) Quit()          { r.quit++ }
func (r *recorder) Restart()       { r.restart++ }
func (r *recorder) ToggleRunning() { r.toggle++ }

func TestQuitNeedsCtrlShift(t *testing.T) {
	r := &recorder{}
	cb := keyCallback(r)

	cb(nil, glfw.KeyQ, 0, glfw.Release, 0)
	cb(nil, glfw.KeyQ, 0, glfw.Release, glfw.ModControl)
	cb(nil, glfw.KeyQ, 0, glfw.Press, glfw.ModControl|glfw.ModShift)
	assert.Equal(t, 0, r.quit)

	cb(nil, glfw.KeyQ, 0, glfw.Release, glfw.ModControl|glfw.ModShift)
	assert.Equal(t, 1, r.quit)
}

func TestSourceKeys(t *testing.T) {
	r := &recorder{}
	cb := keyCallback(r)

	cb(nil, glfw.KeyR, 0, glfw.Press, 0)
	cb(nil, glfw.KeyS, 0, glfw.Press, 0)
	cb(nil, glfw.KeyS, 0, glfw.Release, 0)
	cb(nil, glfw.KeyS, 0, glfw.Press, glfw.ModControl)
	assert.Equal(t, 1, r.restart)
	assert.Equal(t, 1, r.toggle)
}
