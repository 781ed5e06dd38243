package main

import (
	"errors"
	"math"

	uv "github.com/charmbracelet/ultraviolet"

	"github.com/taigrr/diorama/pkg/event"
	"github.com/taigrr/diorama/pkg/scene"
)

var errQuit = errors.New("quit")

const (
	keyOrbitStep = 10.0 // pixels of drag per arrow key
	keyRollStep  = 0.1  // radians per Q/E
	zoomStep     = 1.1
)

// screen is the part of the terminal an action may touch.
type screen interface {
	Erase()
	Resize(width, height int) error
}

// action runs on the render goroutine between frames. errQuit ends the
// viewer.
type action func(v *viewer, scr screen) error

// input turns terminal events into actions. It keeps the mouse state, so
// it belongs to the event goroutine.
type input struct {
	down         bool
	dragged      bool
	lastX, lastY int
}

// translate returns nil for events the viewer ignores.
func (in *input) translate(ev uv.Event) action {
	switch ev := ev.(type) {
	case uv.WindowSizeEvent:
		cols, rows := ev.Width, ev.Height
		return func(v *viewer, scr screen) error {
			scr.Erase()
			scr.Resize(cols, rows)
			v.resize(cols, rows)
			return nil
		}

	case uv.KeyPressEvent:
		return in.key(ev)

	case uv.MouseClickEvent:
		if ev.Button != uv.MouseLeft {
			return nil
		}
		in.down, in.dragged = true, false
		in.lastX, in.lastY = ev.X, ev.Y

	case uv.MouseMotionEvent:
		if !in.down {
			return nil
		}
		// a cell is one pixel wide and two tall
		dx, dy := float64(ev.X-in.lastX), float64(2*(ev.Y-in.lastY))
		if dx == 0 && dy == 0 {
			return nil
		}
		in.dragged = true
		in.lastX, in.lastY = ev.X, ev.Y
		return touch(event.Touch{
			Action: event.Move,
			X:      float64(ev.X),
			Y:      float64(2 * ev.Y),
			DX:     dx,
			DY:     dy,
			Length: math.Hypot(dx, dy),
		})

	case uv.MouseReleaseEvent:
		if !in.down {
			return nil
		}
		in.down = false
		if in.dragged {
			return nil
		}
		return touch(event.Touch{Action: event.Click, X: float64(ev.X), Y: float64(2*ev.Y) + 0.5})

	case uv.MouseWheelEvent:
		switch ev.Button {
		case uv.MouseWheelUp:
			return touch(event.Touch{Action: event.Pinch, Zoom: zoomStep})
		case uv.MouseWheelDown:
			return touch(event.Touch{Action: event.Pinch, Zoom: 1 / zoomStep})
		}
	}
	return nil
}

func (in *input) key(ev uv.KeyPressEvent) action {
	switch {
	case ev.MatchString("escape"), ev.MatchString("ctrl+c"):
		return func(*viewer, screen) error { return errQuit }

	case ev.MatchString("left"):
		return orbit(-keyOrbitStep, 0)
	case ev.MatchString("right"):
		return orbit(keyOrbitStep, 0)
	case ev.MatchString("up"):
		return orbit(0, -keyOrbitStep)
	case ev.MatchString("down"):
		return orbit(0, keyOrbitStep)
	case ev.MatchString("q"):
		return touch(event.Touch{Action: event.Rotate, Angle: -keyRollStep})
	case ev.MatchString("e"):
		return touch(event.Touch{Action: event.Rotate, Angle: keyRollStep})
	case ev.MatchString("+", "="):
		return touch(event.Touch{Action: event.Pinch, Zoom: zoomStep})
	case ev.MatchString("-", "_"):
		return touch(event.Touch{Action: event.Pinch, Zoom: 1 / zoomStep})

	case ev.MatchString("w"):
		return sceneToggle((*scene.Scene).ToggleWireframe)
	case ev.MatchString("t"):
		return sceneToggle((*scene.Scene).ToggleTextures)
	case ev.MatchString("l"):
		return sceneToggle((*scene.Scene).ToggleLighting)
	case ev.MatchString("b"):
		return sceneToggle((*scene.Scene).ToggleBlending)
	case ev.MatchString("3"):
		return sceneToggle((*scene.Scene).ToggleStereoscopic)
	case ev.MatchString("c"):
		return sceneToggle((*scene.Scene).ToggleCollision)
	case ev.MatchString("o"):
		return sceneToggle((*scene.Scene).ToggleBoundingBox)
	case ev.MatchString("a"):
		return sceneToggle((*scene.Scene).ToggleAnimation)
	case ev.MatchString("n"):
		return sceneToggle((*scene.Scene).ToggleSmooth)

	case ev.MatchString("p"):
		return func(v *viewer, _ screen) error { v.renderer.ToggleProjection(); return nil }
	case ev.MatchString("k"):
		return func(v *viewer, _ screen) error { v.renderer.ToggleSkyBox(); return nil }
	case ev.MatchString("r"):
		return func(v *viewer, _ screen) error { v.scene.Camera().Reset(); return nil }
	case ev.MatchString("?"), ev.MatchString("shift+/"):
		return func(v *viewer, _ screen) error { v.hud.Toggle(); return nil }
	}
	return nil
}

// touch hands a gesture to the router.
func touch(t event.Touch) action {
	return func(v *viewer, _ screen) error {
		v.router.Handle(t)
		return nil
	}
}

func sceneToggle(toggle func(*scene.Scene)) action {
	return func(v *viewer, _ screen) error {
		toggle(v.scene)
		return nil
	}
}

func orbit(dx, dy float64) action {
	return touch(event.Touch{Action: event.Move, DX: dx, DY: dy, Length: math.Hypot(dx, dy)})
}
