package cull

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// plane is a half-space with unit normal and signed offset
// d = dot(point_on_plane, normal). The positive side is inside the
// frustum.
type plane struct {
	normal mgl32.Vec3
	d      float32
}

// distance returns the signed distance of p from the plane.
func (pl plane) distance(p mgl32.Vec3) float32 {
	return pl.normal.Dot(p) - pl.d
}

func planeThrough(origin, normal mgl32.Vec3) plane {
	n := normal.Normalize()
	return plane{normal: n, d: n.Dot(origin)}
}

// ray is a half-line from the camera position through a far-plane
// corner.
type ray struct {
	origin mgl32.Vec3
	dir    mgl32.Vec3
}

// intersectsAABB is the slab test: per axis with nonzero direction,
// compute entry/exit t and narrow the running [tmin,tmax]; hit iff
// tmax >= tmin.
func (r ray) intersectsAABB(b AABB) bool {
	tmin := float32(0)
	tmax := float32(math.MaxFloat32)
	for axis := 0; axis < 3; axis++ {
		o, d := r.origin[axis], r.dir[axis]
		lo, hi := b.Min[axis], b.Max[axis]
		if d == 0 {
			// Parallel to the slab: miss unless the origin lies inside it.
			if o < lo || o > hi {
				return false
			}
			continue
		}
		t0 := (lo - o) / d
		t1 := (hi - o) / d
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tmin {
			tmin = t0
		}
		if t1 < tmax {
			tmax = t1
		}
		if tmax < tmin {
			return false
		}
	}
	return true
}

// Frustum is the truncated-pyramid visible volume: six half-space
// planes plus the four rays from the camera position through the far
// plane's corners.
type Frustum struct {
	planes [6]plane
	rays   [4]ray
	camPos mgl32.Vec3
}

// Plane indices.
const (
	planeNear = iota
	planeFar
	planeLeft
	planeRight
	planeTop
	planeBottom
)

// NewFrustum builds a frustum from the camera's pose and projection.
func NewFrustum(cam Camera) Frustum {
	halfH := float32(math.Tan(float64(cam.FOV)/2)) * cam.Far
	halfW := halfH / cam.Aspect

	farCenter := cam.Position.Add(cam.Forward.Mul(cam.Far))
	upH := cam.Up.Mul(halfH)
	rightW := cam.Right.Mul(halfW)

	// Far corners, cycling bottom-left, top-left, top-right,
	// bottom-right so consecutive pairs wind the side planes inward.
	fbl := farCenter.Sub(upH).Sub(rightW)
	ftl := farCenter.Add(upH).Sub(rightW)
	ftr := farCenter.Add(upH).Add(rightW)
	fbr := farCenter.Sub(upH).Add(rightW)

	var f Frustum
	f.camPos = cam.Position

	nearCenter := cam.Position.Add(cam.Forward.Mul(cam.Near))
	f.planes[planeNear] = planeThrough(nearCenter, cam.Forward)
	f.planes[planeFar] = planeThrough(farCenter, cam.Forward.Mul(-1))

	// Side planes from cross products of edge vectors toward each
	// consecutive far-corner pair, anchored at the camera position.
	toFBL := fbl.Sub(cam.Position)
	toFTL := ftl.Sub(cam.Position)
	toFTR := ftr.Sub(cam.Position)
	toFBR := fbr.Sub(cam.Position)
	f.planes[planeLeft] = planeThrough(cam.Position, toFBL.Cross(toFTL))
	f.planes[planeTop] = planeThrough(cam.Position, toFTL.Cross(toFTR))
	f.planes[planeRight] = planeThrough(cam.Position, toFTR.Cross(toFBR))
	f.planes[planeBottom] = planeThrough(cam.Position, toFBR.Cross(toFBL))

	f.rays = [4]ray{
		{origin: cam.Position, dir: toFBL},
		{origin: cam.Position, dir: toFTL},
		{origin: cam.Position, dir: toFTR},
		{origin: cam.Position, dir: toFBR},
	}
	return f
}

// Contains reports whether p lies on the positive side of all six
// planes.
func (f Frustum) Contains(p mgl32.Vec3) bool {
	for _, pl := range f.planes {
		if pl.distance(p) < 0 {
			return false
		}
	}
	return true
}

// IntersectsAABB tests a box for visibility. Tiered and
// short-circuiting, cheapest test first:
//
//  1. the camera sits inside the box
//  2. the box center is contained
//  3. every corner strictly behind the near plane rejects the box
//  4. any corner is contained
//  5. any far-corner ray hits the box
func (f Frustum) IntersectsAABB(b AABB) bool {
	if b.ContainsPoint(f.camPos) {
		return true
	}
	if f.Contains(b.Center()) {
		return true
	}

	corners := b.Corners()

	// A box entirely behind the near plane is definitively not
	// visible, whatever the other planes say.
	behindNear := true
	for _, c := range corners {
		if f.planes[planeNear].distance(c) >= 0 {
			behindNear = false
			break
		}
	}
	if behindNear {
		return false
	}

	for _, c := range corners {
		if f.Contains(c) {
			return true
		}
	}

	for _, r := range f.rays {
		if r.intersectsAABB(b) {
			return true
		}
	}
	return false
}
