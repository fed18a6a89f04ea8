package world

// Mesh is the opaque per-chunk render payload produced by the mesher.
type Mesh []uint32

// Chunk is a cubic block of voxels, the unit of generation and streaming.
// Voxel data is only ever written by the coordinator's drain-and-apply
// pass or installed wholesale from a finished generation job.
type Chunk struct {
	Coord ChunkCoord

	side   int
	voxels []VoxelID
	mesh   Mesh
	dirty  bool
}

// NewChunk creates an empty chunk at the given chunk coordinates.
func NewChunk(coord ChunkCoord, side int) *Chunk {
	return &Chunk{
		Coord:  coord,
		side:   side,
		voxels: make([]VoxelID, side*side*side),
		dirty:  true,
	}
}

// Side returns the chunk side length in voxels.
func (c *Chunk) Side() int { return c.side }

// index converts local coordinates to a flat slot, matching the
// row-major z-fastest layout used everywhere else.
func (c *Chunk) index(x, y, z int) int {
	return (x*c.side+y)*c.side + z
}

func (c *Chunk) inRange(x, y, z int) bool {
	return x >= 0 && x < c.side && y >= 0 && y < c.side && z >= 0 && z < c.side
}

// Get returns the voxel at the given local coordinates. Out-of-range
// reads yield air.
func (c *Chunk) Get(x, y, z int) VoxelID {
	if !c.inRange(x, y, z) {
		return VoxelAir
	}
	return c.voxels[c.index(x, y, z)]
}

// Set writes the voxel at the given local coordinates and marks the
// chunk dirty if the value changed. Out-of-range writes are ignored.
func (c *Chunk) Set(x, y, z int, id VoxelID) {
	if !c.inRange(x, y, z) {
		return
	}
	i := c.index(x, y, z)
	if c.voxels[i] != id {
		c.voxels[i] = id
		c.dirty = true
	}
}

// IsDirty reports whether the chunk's generated data is stale relative
// to its voxel contents.
func (c *Chunk) IsDirty() bool { return c.dirty }

// MarkDirty flags the chunk for regeneration.
func (c *Chunk) MarkDirty() { c.dirty = true }

// SetClean clears the dirty flag after results are installed.
func (c *Chunk) SetClean() { c.dirty = false }

// Mesh returns the current render payload, nil if dropped or never built.
func (c *Chunk) Mesh() Mesh { return c.mesh }

// SetMesh installs a freshly built render payload.
func (c *Chunk) SetMesh(m Mesh) { c.mesh = m }

// DropMesh discards the render payload, keeping voxel data.
func (c *Chunk) DropMesh() { c.mesh = nil }

// Voxels exposes the backing buffer. Callers must not retain it across
// coordinator ticks.
func (c *Chunk) Voxels() []VoxelID { return c.voxels }

// CloneVoxels returns a copy of the voxel buffer, for parking evicted
// chunks.
func (c *Chunk) CloneVoxels() []VoxelID {
	out := make([]VoxelID, len(c.voxels))
	copy(out, c.voxels)
	return out
}

// RestoreVoxels replaces the buffer with previously parked data.
func (c *Chunk) RestoreVoxels(v []VoxelID) bool {
	if len(v) != len(c.voxels) {
		return false
	}
	copy(c.voxels, v)
	c.dirty = true
	return true
}
