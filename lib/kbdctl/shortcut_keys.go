package kbdctl

import (
	"log/slog"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/fosdem/webrendersrc/lib/sink/windowsink"
)

// Actions are what the preview window's keys control
type Actions interface {
	Quit()
	Restart()
	ToggleRunning()
}

func SetupShortcutKeys(ws *windowsink.WindowSink, actions Actions) {
	ws.Window.SetKeyCallback(keyCallback(actions))
}

func keyCallback(actions Actions) func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	log := slog.With("module", "kbdctl")

	return func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action == glfw.Release {
			if key == glfw.KeyQ &&
				mods&glfw.ModControl != 0 &&
				mods&glfw.ModShift != 0 {
				log.Info("told to quit, exiting")
				actions.Quit()
			}
		}
		if action == glfw.Press && mods == 0 {
			switch key {
			case glfw.KeyR:
				log.Info("restarting source")
				actions.Restart()
			case glfw.KeyS:
				log.Info("toggling source")
				actions.ToggleRunning()
			}
		}
	}
}
