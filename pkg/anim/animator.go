// Package anim advances skeletal animation for scene objects.
package anim

import (
	"math"
	"sync"
	"time"

	"github.com/taigrr/diorama/pkg/models"
)

// Animated is an object that may carry a skeleton.
type Animated interface {
	ID() models.ID
	Skin() *models.Skeleton
}

// Animator poses skeletons from a shared clock. Every object is posed at
// most once per frame for a given bind-pose flag; BeginFrame starts a new
// frame.
type Animator struct {
	mu    sync.Mutex
	now   func() time.Time
	start time.Time
	speed float64
	frame uint64
	seen  map[models.ID]stamp
}

type stamp struct {
	frame    uint64
	bindPose bool
}

// Option configures an Animator.
type Option func(*Animator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Animator) { a.now = now }
}

// WithSpeed scales playback; 1 is real time.
func WithSpeed(speed float64) Option {
	return func(a *Animator) { a.speed = speed }
}

// New returns an animator whose clip time starts now.
func New(opts ...Option) *Animator {
	a := &Animator{
		now:   time.Now,
		speed: 1,
		seen:  make(map[models.ID]stamp),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.start = a.now()
	return a
}

// BeginFrame marks the start of a new render frame.
func (a *Animator) BeginFrame() {
	a.mu.Lock()
	a.frame++
	a.mu.Unlock()
}

// Update poses obj for the current frame: the bind pose when bindPose is
// set, otherwise the clip sampled at the animator clock, looping over the
// clip duration. Objects without a skeleton are ignored.
func (a *Animator) Update(obj Animated, bindPose bool) {
	skel := obj.Skin()
	if skel == nil || len(skel.Joints) == 0 {
		return
	}

	a.mu.Lock()
	id := obj.ID()
	if st, ok := a.seen[id]; ok && st.frame == a.frame && st.bindPose == bindPose {
		a.mu.Unlock()
		return
	}
	a.seen[id] = stamp{frame: a.frame, bindPose: bindPose}
	elapsed := a.now().Sub(a.start).Seconds() * a.speed
	a.mu.Unlock()

	if bindPose || !skel.HasAnimation() {
		skel.ResetBindPose()
		return
	}

	t := elapsed
	if d := skel.Animation.Duration; d > 0 {
		t = math.Mod(elapsed, d)
	}
	skel.Pose(t)
}

// Forget drops the per-object frame bookkeeping.
func (a *Animator) Forget(id models.ID) {
	a.mu.Lock()
	delete(a.seen, id)
	a.mu.Unlock()
}
