// Package event defines the input events the engine consumes and the
// notifications it produces, plus a small synchronous listener bus.
package event

import (
	"fmt"
	"sync"

	"github.com/taigrr/diorama/pkg/math3d"
	"github.com/taigrr/diorama/pkg/models"
)

// Event is any input event or outbound notification.
type Event interface {
	fmt.Stringer
	isEvent()
}

// TouchAction is the gesture a Touch event carries.
type TouchAction int

const (
	Click TouchAction = iota
	Move
	Rotate
	Pinch
)

func (a TouchAction) String() string {
	switch a {
	case Click:
		return "CLICK"
	case Move:
		return "MOVE"
	case Rotate:
		return "ROTATE"
	case Pinch:
		return "PINCH"
	}
	return fmt.Sprintf("TouchAction(%d)", int(a))
}

// Touch is a recognized gesture. X and Y are the pointer position in
// framebuffer pixels; DX and DY the drag delta; Angle the twist in radians;
// Length the drag length in pixels; Zoom the pinch ratio (1 is no change).
type Touch struct {
	Action TouchAction
	X, Y   float64
	DX, DY float64
	Angle  float64
	Length float64
	Zoom   float64
}

// Collision reports a pick hit. Point is the hit position in world space,
// nil when the picker could not resolve one.
type Collision struct {
	Object *models.Object
	Point  *math3d.Vec3
}

// SurfaceCreated fires once the render target exists.
type SurfaceCreated struct{}

// SurfaceChanged fires when the render target is resized.
type SurfaceChanged struct {
	Width, Height int
}

// SelectionChanged fires when the selected object changes. Object is nil
// after a deselection.
type SelectionChanged struct {
	Object *models.Object
}

// ProjectionChanged fires after the projection mode changes.
type ProjectionChanged struct {
	Projection string
}

// FPS reports the frame count of the last second.
type FPS struct {
	FPS int
}

// Notice is a short user-facing message.
type Notice struct {
	Text string
}

func (Touch) isEvent()             {}
func (Collision) isEvent()         {}
func (SurfaceCreated) isEvent()    {}
func (SurfaceChanged) isEvent()    {}
func (SelectionChanged) isEvent()  {}
func (ProjectionChanged) isEvent() {}
func (FPS) isEvent()               {}
func (Notice) isEvent()            {}

func (e Touch) String() string {
	return fmt.Sprintf("touch %s (%.0f,%.0f) d=(%.1f,%.1f) angle=%.3f len=%.1f zoom=%.3f",
		e.Action, e.X, e.Y, e.DX, e.DY, e.Angle, e.Length, e.Zoom)
}

func (e Collision) String() string {
	name := "<nil>"
	if e.Object != nil {
		name = e.Object.Name
	}
	if e.Point == nil {
		return "collision " + name
	}
	return fmt.Sprintf("collision %s at %v", name, *e.Point)
}

func (SurfaceCreated) String() string { return "surface created" }

func (e SurfaceChanged) String() string {
	return fmt.Sprintf("surface changed %dx%d", e.Width, e.Height)
}

func (e SelectionChanged) String() string {
	if e.Object == nil {
		return "selection cleared"
	}
	return "selected " + e.Object.Name
}

func (e ProjectionChanged) String() string { return "projection " + e.Projection }

func (e FPS) String() string { return fmt.Sprintf("%d fps", e.FPS) }

func (e Notice) String() string { return e.Text }

// Listener receives events.
type Listener interface {
	OnEvent(ev Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ev Event)

// OnEvent calls f(ev).
func (f ListenerFunc) OnEvent(ev Event) {
	f(ev)
}

// Bus delivers events synchronously to every registered listener, in
// registration order. It is safe for concurrent use.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
}

// Add registers l. A nil listener is ignored.
func (b *Bus) Add(l Listener) {
	if l == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Fire delivers ev to every listener. Listeners may fire further events or
// register listeners without deadlocking.
func (b *Bus) Fire(ev Event) {
	b.mu.RLock()
	ls := make([]Listener, len(b.listeners))
	copy(ls, b.listeners)
	b.mu.RUnlock()

	for _, l := range ls {
		l.OnEvent(ev)
	}
}
