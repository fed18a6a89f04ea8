package command

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelstream/internal/world"
)

func TestDrainFIFO(t *testing.T) {
	q := NewQueue()
	a := SetVoxel{Pos: world.VoxelPos{X: 1}, ID: world.VoxelStone}
	b := SetVoxel{Pos: world.VoxelPos{X: 2}, ID: world.VoxelDirt}

	require.NoError(t, q.Enqueue(a))
	require.NoError(t, q.Enqueue(b))

	got := q.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0])
	assert.Equal(t, b, got[1])
	assert.Empty(t, q.Drain())
}

// TestFIFOPerProducer verifies relative order from a single producer is
// preserved under concurrent interleavings from other producers.
func TestFIFOPerProducer(t *testing.T) {
	q := NewQueue()
	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				err := q.Enqueue(SetVoxel{
					Pos: world.VoxelPos{X: p, Y: i},
				})
				assert.NoError(t, err)
			}
		}(p)
	}
	wg.Wait()

	got := q.Drain()
	require.Len(t, got, producers*perProducer)

	lastSeen := make([]int, producers)
	for i := range lastSeen {
		lastSeen[i] = -1
	}
	for _, cmd := range got {
		sv, ok := cmd.(SetVoxel)
		require.True(t, ok)
		p, seq := sv.Pos.X, sv.Pos.Y
		assert.Equal(t, lastSeen[p]+1, seq, "producer %d out of order", p)
		lastSeen[p] = seq
	}
}

func TestEnqueueAfterCloseFails(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Enqueue(DropAllMeshes{}))
	q.Close()

	err := q.Enqueue(DropAllMeshes{})
	assert.ErrorIs(t, err, ErrClosed)

	// Already-queued commands stay drainable.
	assert.Len(t, q.Drain(), 1)
}

func TestClear(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Enqueue(DropAllMeshes{}))
	require.NoError(t, q.Enqueue(GenerateNew{Sizes: world.Dims{X: 2, Y: 2, Z: 2}}))

	assert.Equal(t, 2, q.Clear())
	assert.Zero(t, q.Len())
	assert.Empty(t, q.Drain())
}
