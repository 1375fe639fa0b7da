package main

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/normanking/physicam/internal/config"
	"github.com/normanking/physicam/internal/viewer"
)

var keyActions = map[glfw.Key]viewer.Action{
	glfw.KeyM:            viewer.ToggleExposureMode,
	glfw.KeyT:            viewer.CycleTonemap,
	glfw.KeyY:            viewer.ToggleTonemap,
	glfw.KeyB:            viewer.ToggleBloom,
	glfw.KeyL:            viewer.ToggleLensFlare,
	glfw.KeyF:            viewer.ToggleDoF,
	glfw.KeyA:            viewer.ToggleAutofocus,
	glfw.KeyV:            viewer.ToggleShowFocus,
	glfw.KeyG:            viewer.ToggleGrain,
	glfw.KeyUp:           viewer.CompensationUp,
	glfw.KeyDown:         viewer.CompensationDown,
	glfw.KeyI:            viewer.ISOUp,
	glfw.KeyK:            viewer.ISODown,
	glfw.KeyRight:        viewer.ApertureUp,
	glfw.KeyLeft:         viewer.ApertureDown,
	glfw.KeyRightBracket: viewer.ShutterSlower,
	glfw.KeyLeftBracket:  viewer.ShutterFaster,
	glfw.KeyPageUp:       viewer.FocalLonger,
	glfw.KeyPageDown:     viewer.FocalShorter,
	glfw.KeyHome:         viewer.ResetView,
}

// newWindow opens a 4.1 core profile window and makes its context current.
func newWindow(cfg config.WindowConfig) (*glfw.Window, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	window.MakeContextCurrent()

	if cfg.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}
	return window, nil
}

// bindInput routes window events to the app. Callbacks run inside
// glfw.PollEvents, on the render thread.
func bindInput(window *glfw.Window, app *viewer.App, onError func(error)) {
	controls := app.Controls()

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action != glfw.Press && action != glfw.Repeat {
			return
		}
		if key == glfw.KeyEscape {
			w.SetShouldClose(true)
			return
		}
		if a, ok := keyActions[key]; ok {
			controls.Apply(a)
		}
	})

	window.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		dragging := w.GetMouseButton(glfw.MouseButtonLeft) == glfw.Press
		controls.MouseMove(float32(x), float32(y), dragging)
	})

	window.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		controls.Scroll(float32(yoff))
	})

	window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		if err := app.Resize(width, height); err != nil {
			onError(err)
		}
	})
}
