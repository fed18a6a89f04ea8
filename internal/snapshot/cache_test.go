package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelstream/internal/world"
)

func TestParkRestore(t *testing.T) {
	c, err := NewCache()
	require.NoError(t, err)

	coord := world.ChunkCoord{X: 1, Y: 2, Z: 3}
	voxels := make([]world.VoxelID, 16*16*16)
	for i := range voxels {
		voxels[i] = world.VoxelID(i % 5)
	}

	c.Park(coord, voxels)
	assert.Equal(t, 1, c.Len())
	assert.Less(t, c.CompressedBytes(), 2*len(voxels), "terrain data should compress")

	got, ok := c.Restore(coord)
	require.True(t, ok)
	assert.Equal(t, voxels, got)

	// Restore consumes the entry.
	_, ok = c.Restore(coord)
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestRestoreMissing(t *testing.T) {
	c, err := NewCache()
	require.NoError(t, err)
	_, ok := c.Restore(world.ChunkCoord{X: 9, Y: 9, Z: 9})
	assert.False(t, ok)
}

func TestParkReplaces(t *testing.T) {
	c, err := NewCache()
	require.NoError(t, err)

	coord := world.ChunkCoord{}
	c.Park(coord, []world.VoxelID{1, 1, 1})
	c.Park(coord, []world.VoxelID{2, 2, 2})

	got, ok := c.Restore(coord)
	require.True(t, ok)
	assert.Equal(t, []world.VoxelID{2, 2, 2}, got)
}

func TestClear(t *testing.T) {
	c, err := NewCache()
	require.NoError(t, err)
	c.Park(world.ChunkCoord{X: 1}, []world.VoxelID{1})
	c.Park(world.ChunkCoord{X: 2}, []world.VoxelID{2})
	c.Clear()
	assert.Zero(t, c.Len())
}
