package cull

import "github.com/go-gl/mathgl/mgl32"

// Camera is the pose and projection state a frustum is built from.
// Forward, Up and Right must be orthonormal.
type Camera struct {
	Position mgl32.Vec3
	Forward  mgl32.Vec3
	Up       mgl32.Vec3
	Right    mgl32.Vec3

	FOV    float32 // vertical field of view, radians
	Aspect float32
	Near   float32
	Far    float32
}

// NewCamera builds a camera from position and a forward/up pair,
// deriving the right vector and renormalizing the basis.
func NewCamera(pos, forward, up mgl32.Vec3, fov, aspect, near, far float32) Camera {
	f := forward.Normalize()
	r := f.Cross(up).Normalize()
	u := r.Cross(f)
	return Camera{
		Position: pos,
		Forward:  f,
		Up:       u,
		Right:    r,
		FOV:      fov,
		Aspect:   aspect,
		Near:     near,
		Far:      far,
	}
}
