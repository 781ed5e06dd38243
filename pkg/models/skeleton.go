package models

import (
	"sort"

	"github.com/taigrr/diorama/pkg/math3d"
)

// Joint is one bone of a skeleton. The TRS fields hold the bind-pose local
// transform relative to Parent (-1 for a root).
type Joint struct {
	Name        string
	Parent      int
	InverseBind math3d.Mat4
	Translation math3d.Vec3
	Rotation    math3d.Quat
	Scale       math3d.Vec3
}

// Path is the joint property an animation channel drives.
type Path int

const (
	PathTranslation Path = iota
	PathRotation
	PathScale
)

// Interpolation selects how keyframes are blended.
type Interpolation int

const (
	InterpolationLinear Interpolation = iota
	InterpolationStep
)

// Channel is a keyframe track for one joint property. Values carry xyz for
// translation and scale, xyzw for rotation.
type Channel struct {
	Joint         int
	Path          Path
	Interpolation Interpolation
	Times         []float64
	Values        []math3d.Vec4
}

// Animation is a clip over a skeleton. Duration is in seconds.
type Animation struct {
	Name     string
	Duration float64
	Channels []Channel
}

// Skeleton is the joint hierarchy of a skinned object plus its current pose.
type Skeleton struct {
	Joints    []Joint
	Animation *Animation

	// Time is the clip time of the current pose, in seconds.
	Time     float64
	BindPose bool

	// Globals holds each joint's model-space transform for the current pose.
	Globals []math3d.Mat4
	// JointMatrices holds Globals[i] * InverseBind[i], the skinning matrices.
	JointMatrices []math3d.Mat4
}

// HasAnimation reports whether the skeleton carries a playable clip.
func (s *Skeleton) HasAnimation() bool {
	return s != nil && s.Animation != nil && len(s.Animation.Channels) > 0
}

// ResetBindPose puts every joint back in its bind transform.
func (s *Skeleton) ResetBindPose() {
	s.solve(s.bindLocals())
	s.Time = 0
	s.BindPose = true
}

// Pose samples the clip at t seconds and recomputes the joint matrices.
// Without a clip the skeleton stays in bind pose.
func (s *Skeleton) Pose(t float64) {
	locals := s.bindLocals()
	if s.HasAnimation() {
		for _, ch := range s.Animation.Channels {
			if ch.Joint < 0 || ch.Joint >= len(locals) || len(ch.Values) == 0 {
				continue
			}
			v := ch.sample(t)
			switch ch.Path {
			case PathTranslation:
				locals[ch.Joint].t = v.Vec3()
			case PathRotation:
				locals[ch.Joint].r = math3d.QuatFromXYZW(v.X, v.Y, v.Z, v.W).Normalize()
			case PathScale:
				locals[ch.Joint].s = v.Vec3()
			}
		}
	}
	s.solve(locals)
	s.Time = t
	s.BindPose = false
}

// JointPositions returns the model-space origin of every joint in the
// current pose.
func (s *Skeleton) JointPositions() []math3d.Vec3 {
	if len(s.Globals) != len(s.Joints) {
		s.ResetBindPose()
	}
	out := make([]math3d.Vec3, len(s.Globals))
	for i, g := range s.Globals {
		out[i] = g.Translation()
	}
	return out
}

type trs struct {
	t math3d.Vec3
	r math3d.Quat
	s math3d.Vec3
}

func (s *Skeleton) bindLocals() []trs {
	locals := make([]trs, len(s.Joints))
	for i, j := range s.Joints {
		locals[i] = trs{t: j.Translation, r: j.Rotation, s: j.Scale}
	}
	return locals
}

func (s *Skeleton) solve(locals []trs) {
	n := len(s.Joints)
	if len(s.Globals) != n {
		s.Globals = make([]math3d.Mat4, n)
		s.JointMatrices = make([]math3d.Mat4, n)
	}

	done := make([]bool, n)
	var visit func(i int)
	visit = func(i int) {
		if done[i] {
			return
		}
		done[i] = true
		l := locals[i]
		local := math3d.Compose(l.t, l.r, l.s)
		if p := s.Joints[i].Parent; p >= 0 && p < n {
			visit(p)
			s.Globals[i] = s.Globals[p].Mul(local)
		} else {
			s.Globals[i] = local
		}
		s.JointMatrices[i] = s.Globals[i].Mul(s.Joints[i].InverseBind)
	}
	for i := range n {
		visit(i)
	}
}

func (c Channel) sample(t float64) math3d.Vec4 {
	n := len(c.Times)
	if n == 0 || t <= c.Times[0] {
		return c.Values[0]
	}
	if t >= c.Times[n-1] || n > len(c.Values) {
		return c.Values[min(n, len(c.Values))-1]
	}

	i := sort.SearchFloat64s(c.Times, t)
	if c.Interpolation == InterpolationStep {
		return c.Values[i-1]
	}

	t0, t1 := c.Times[i-1], c.Times[i]
	f := (t - t0) / (t1 - t0)
	a, b := c.Values[i-1], c.Values[i]
	if c.Path == PathRotation {
		q := math3d.Slerp(
			math3d.QuatFromXYZW(a.X, a.Y, a.Z, a.W),
			math3d.QuatFromXYZW(b.X, b.Y, b.Z, b.W),
			f,
		)
		return math3d.V4(q.V[0], q.V[1], q.V[2], q.W)
	}
	return a.Lerp(b, f)
}
