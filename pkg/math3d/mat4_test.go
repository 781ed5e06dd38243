package math3d

import (
	"math"
	"testing"
)

const eps = 1e-9

func TestFrustumMapsNearPlaneCorners(t *testing.T) {
	near, far := 1.0, 100.0
	ratio := 2.0
	proj := Frustum(-ratio*near, ratio*near, -near, near, near, far)

	tests := []struct {
		name string
		in   Vec3
		want Vec3
	}{
		{"top right", V3(ratio*near, near, -near), V3(1, 1, -1)},
		{"bottom left", V3(-ratio*near, -near, -near), V3(-1, -1, -1)},
		{"far center", V3(0, 0, -far), V3(0, 0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := proj.MulVec4(V4FromV3(tt.in, 1)).PerspectiveDivide()
			if !got.ApproxEqual(tt.want, 1e-6) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFrustumMatchesPerspective(t *testing.T) {
	// A symmetric frustum with extents ±near is a 90 degree field of view.
	a := Frustum(-1.5, 1.5, -1, 1, 1, 50)
	b := Perspective(math.Pi/2, 1.5, 1, 50)
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			t.Fatalf("element %d: frustum %f, perspective %f", i, a[i], b[i])
		}
	}
}

func TestOrthographicMapsBox(t *testing.T) {
	proj := Orthographic(-200, 200, -100, 100, 1, 1000)
	got := proj.MulVec3(V3(200, -100, -1))
	if !got.ApproxEqual(V3(1, -1, -1), eps) {
		t.Errorf("got %+v", got)
	}
}

func TestComposeOrder(t *testing.T) {
	q := QuatAxisAngle(V3(0, 0, 1), math.Pi/2)
	m := Compose(V3(10, 0, 0), q, V3(2, 2, 2))

	// Scale first, then rotate +X onto +Y, then translate.
	got := m.MulVec3(V3(1, 0, 0))
	if !got.ApproxEqual(V3(10, 2, 0), 1e-9) {
		t.Errorf("got %+v, want (10, 2, 0)", got)
	}
}

func TestInverseRoundTrip(t *testing.T) {
	m := Translate(V3(1, 2, 3)).Mul(RotateY(0.7)).Mul(Scale(V3(2, 3, 4)))
	p := V3(5, -6, 7)
	got := m.Inverse().MulVec3(m.MulVec3(p))
	if !got.ApproxEqual(p, 1e-9) {
		t.Errorf("got %+v, want %+v", got, p)
	}
}

func TestQuatAxisAngle(t *testing.T) {
	tests := []struct {
		name  string
		axis  Vec3
		angle float64
		in    Vec3
		want  Vec3
	}{
		{"x quarter turn", V3(1, 0, 0), math.Pi / 2, V3(0, 1, 0), V3(0, 0, 1)},
		{"unnormalized axis", V3(0, 5, 0), math.Pi, V3(1, 0, 0), V3(-1, 0, 0)},
		{"zero axis is identity", Vec3{}, 1.2, V3(1, 2, 3), V3(1, 2, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RotateVec3(QuatAxisAngle(tt.axis, tt.angle), tt.in)
			if !got.ApproxEqual(tt.want, 1e-9) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestQuatMat4MatchesRotate(t *testing.T) {
	axis := V3(1, 1, 0)
	a := QuatMat4(QuatAxisAngle(axis, 0.8))
	b := Rotate(axis, 0.8)
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			t.Fatalf("element %d: quat %f, axis-angle %f", i, a[i], b[i])
		}
	}
}

func TestSlerpEndpoints(t *testing.T) {
	a := QuatIdent()
	b := QuatAxisAngle(V3(0, 1, 0), math.Pi/2)

	mid := RotateVec3(Slerp(a, b, 0.5), V3(1, 0, 0))
	want := RotateVec3(QuatAxisAngle(V3(0, 1, 0), math.Pi/4), V3(1, 0, 0))
	if !mid.ApproxEqual(want, 1e-9) {
		t.Errorf("midpoint %+v, want %+v", mid, want)
	}
}
