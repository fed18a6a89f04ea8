package world

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds reports a coordinate outside the addressable volume.
var ErrOutOfBounds = errors.New("out of bounds")

// ChunkCoord identifies a chunk within the chunk array.
type ChunkCoord struct {
	X, Y, Z int
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Dims is the shape of the chunk array, in chunks.
type Dims struct {
	X, Y, Z int
}

// Volume returns the total number of chunk slots.
func (d Dims) Volume() int {
	return d.X * d.Y * d.Z
}

// VoxelPos is a world-space voxel position.
type VoxelPos struct {
	X, Y, Z int
}

func (p VoxelPos) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// LinearIndex maps a chunk coordinate to its row-major storage slot,
// z fastest-varying. Storage, noise sampling and neighbor lookup all
// share this layout.
func LinearIndex(c ChunkCoord, d Dims) int {
	return (c.X*d.Y+c.Y)*d.Z + c.Z
}

// CoordFromIndex is the inverse of LinearIndex.
func CoordFromIndex(i int, d Dims) ChunkCoord {
	return ChunkCoord{
		X: i / (d.Y * d.Z),
		Y: (i / d.Z) % d.Y,
		Z: i % d.Z,
	}
}

// CoordSpace converts between chunk-array coordinates, storage indices
// and noise sample coordinates for a fixed array shape and chunk side.
type CoordSpace struct {
	dims Dims
	side int
}

// NewCoordSpace creates a coordinate space. The chunk side length must
// be a power of two.
func NewCoordSpace(dims Dims, side int) (CoordSpace, error) {
	if dims.X <= 0 || dims.Y <= 0 || dims.Z <= 0 {
		return CoordSpace{}, fmt.Errorf("invalid dims %+v", dims)
	}
	if side <= 0 || side&(side-1) != 0 {
		return CoordSpace{}, fmt.Errorf("chunk side %d is not a power of two", side)
	}
	return CoordSpace{dims: dims, side: side}, nil
}

// Dims returns the chunk array shape.
func (s CoordSpace) Dims() Dims { return s.dims }

// Side returns the chunk side length in voxels.
func (s CoordSpace) Side() int { return s.side }

// Contains reports whether c addresses a chunk slot.
func (s CoordSpace) Contains(c ChunkCoord) bool {
	return c.X >= 0 && c.X < s.dims.X &&
		c.Y >= 0 && c.Y < s.dims.Y &&
		c.Z >= 0 && c.Z < s.dims.Z
}

// ContainsVoxel reports whether p lies inside the addressable volume
// (dims * side voxels per axis).
func (s CoordSpace) ContainsVoxel(p VoxelPos) bool {
	return p.X >= 0 && p.X < s.dims.X*s.side &&
		p.Y >= 0 && p.Y < s.dims.Y*s.side &&
		p.Z >= 0 && p.Z < s.dims.Z*s.side
}

// SampleCoord maps a world voxel position to noise sample coordinates.
// The heightmap is sampled on the XZ plane, one sample per voxel column.
func (s CoordSpace) SampleCoord(p VoxelPos) (sx, sz int, err error) {
	if !s.ContainsVoxel(p) {
		return 0, 0, fmt.Errorf("voxel %v: %w", p, ErrOutOfBounds)
	}
	return p.X, p.Z, nil
}

// Split returns the chunk containing p and p's local coordinates
// within that chunk.
func (s CoordSpace) Split(p VoxelPos) (ChunkCoord, int, int, int, error) {
	if !s.ContainsVoxel(p) {
		return ChunkCoord{}, 0, 0, 0, fmt.Errorf("voxel %v: %w", p, ErrOutOfBounds)
	}
	c := ChunkCoord{X: p.X / s.side, Y: p.Y / s.side, Z: p.Z / s.side}
	return c, p.X % s.side, p.Y % s.side, p.Z % s.side, nil
}
