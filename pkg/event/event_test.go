package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taigrr/diorama/pkg/math3d"
	"github.com/taigrr/diorama/pkg/models"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestBusDeliversInOrder(t *testing.T) {
	var bus Bus
	var order []string
	bus.Add(ListenerFunc(func(Event) { order = append(order, "first") }))
	bus.Add(ListenerFunc(func(Event) { order = append(order, "second") }))
	bus.Add(nil)

	bus.Fire(FPS{FPS: 30})
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, 2, bus.Len())
}

func TestBusReentrantFire(t *testing.T) {
	var bus Bus
	rec := &recorder{}
	bus.Add(ListenerFunc(func(ev Event) {
		if _, ok := ev.(SurfaceCreated); ok {
			bus.Fire(Notice{Text: "ready"})
			bus.Add(rec)
		}
	}))
	bus.Add(rec)

	bus.Fire(SurfaceCreated{})
	assert.Len(t, rec.events, 2)
	assert.Equal(t, Notice{Text: "ready"}, rec.events[0])
	assert.Equal(t, SurfaceCreated{}, rec.events[1])
}

func TestBusConcurrentFire(t *testing.T) {
	var bus Bus
	rec := &recorder{}
	bus.Add(rec)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				bus.Fire(FPS{FPS: 1})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, rec.events, 400)
}

func TestEventStrings(t *testing.T) {
	obj := models.NewObject("teapot", models.NewMesh("teapot"))
	p := math3d.V3(1, 2, 3)

	tests := []struct {
		ev   Event
		want string
	}{
		{Touch{Action: Pinch, Zoom: 1.5}, "touch PINCH (0,0) d=(0.0,0.0) angle=0.000 len=0.0 zoom=1.500"},
		{Collision{Object: obj}, "collision teapot"},
		{Collision{Object: obj, Point: &p}, "collision teapot at {1 2 3}"},
		{Collision{}, "collision <nil>"},
		{SurfaceChanged{Width: 80, Height: 48}, "surface changed 80x48"},
		{SelectionChanged{}, "selection cleared"},
		{SelectionChanged{Object: obj}, "selected teapot"},
		{ProjectionChanged{Projection: "ISOMETRIC"}, "projection ISOMETRIC"},
		{FPS{FPS: 24}, "24 fps"},
		{Notice{Text: "Wireframe"}, "Wireframe"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.ev.String())
		})
	}
	assert.Equal(t, "TouchAction(9)", TouchAction(9).String())
}
