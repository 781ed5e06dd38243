package math3d

import "github.com/go-gl/mathgl/mgl64"

// Quat is an orientation quaternion. Composition, normalization and slerp
// come from mgl64.
type Quat = mgl64.Quat

// QuatIdent returns the identity rotation.
func QuatIdent() Quat {
	return mgl64.QuatIdent()
}

// QuatAxisAngle returns the rotation of angle radians about axis.
// A zero axis yields the identity.
func QuatAxisAngle(axis Vec3, angle float64) Quat {
	if axis.LenSq() == 0 {
		return mgl64.QuatIdent()
	}
	return mgl64.QuatRotate(angle, axis.Normalize().MGL())
}

// QuatFromXYZW builds a quaternion from glTF component order.
func QuatFromXYZW(x, y, z, w float64) Quat {
	return Quat{W: w, V: mgl64.Vec3{x, y, z}}
}

// QuatMat4 returns the rotation matrix of the normalized q.
func QuatMat4(q Quat) Mat4 {
	return Mat4(q.Normalize().Mat4())
}

// RotateVec3 rotates v by q.
func RotateVec3(q Quat, v Vec3) Vec3 {
	return FromMGL(q.Rotate(v.MGL()))
}

// Slerp interpolates between two orientations along the shorter arc.
func Slerp(a, b Quat, t float64) Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, t).Normalize()
}
