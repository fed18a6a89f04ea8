// Package cull builds view frustums from camera state and tests
// world-space chunk bounds against them. Frustums are rebuilt every
// visibility pass; they carry no persistent identity.
package cull

import "github.com/go-gl/mathgl/mgl32"

// AABB is an axis-aligned bounding box given by its lo/hi corners.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Center returns the box midpoint.
func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// ContainsPoint reports whether p lies inside the box, boundary
// inclusive.
func (b AABB) ContainsPoint(p mgl32.Vec3) bool {
	return p.X() >= b.Min.X() && p.X() <= b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() <= b.Max.Y() &&
		p.Z() >= b.Min.Z() && p.Z() <= b.Max.Z()
}

// Corners returns the eight box corners.
func (b AABB) Corners() [8]mgl32.Vec3 {
	return [8]mgl32.Vec3{
		{b.Min.X(), b.Min.Y(), b.Min.Z()},
		{b.Min.X(), b.Min.Y(), b.Max.Z()},
		{b.Min.X(), b.Max.Y(), b.Min.Z()},
		{b.Min.X(), b.Max.Y(), b.Max.Z()},
		{b.Max.X(), b.Min.Y(), b.Min.Z()},
		{b.Max.X(), b.Min.Y(), b.Max.Z()},
		{b.Max.X(), b.Max.Y(), b.Min.Z()},
		{b.Max.X(), b.Max.Y(), b.Max.Z()},
	}
}
