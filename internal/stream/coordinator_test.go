package stream

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelstream/internal/command"
	"voxelstream/internal/config"
	"voxelstream/internal/cull"
	"voxelstream/internal/job"
	"voxelstream/internal/world"
)

// testConfig is a 2x1x2 world with side-8 chunks, small enough to
// generate completely within a few ticks.
func testConfig() config.Settings {
	s := config.Default()
	s.World.DimsX, s.World.DimsY, s.World.DimsZ = 2, 1, 2
	s.World.ChunkSide = 8
	s.World.BaseHeight = 4
	s.World.Amplitude = 3
	s.Stream.Workers = 2
	s.Stream.QueueSize = 64
	s.Stream.MaxJobsPerTick = 64
	s.Stream.RetentionMargin = 2
	return s
}

// lookAtWorld sees every chunk of the test world; lookAway sees none.
func lookAtWorld() cull.Camera {
	return cull.NewCamera(
		mgl32.Vec3{8, 4, 40},
		mgl32.Vec3{0, 0, -1},
		mgl32.Vec3{0, 1, 0},
		mgl32.DegToRad(90), 1.0, 0.1, 200,
	)
}

func lookAway() cull.Camera {
	return cull.NewCamera(
		mgl32.Vec3{8, 4, 40},
		mgl32.Vec3{0, 0, 1},
		mgl32.Vec3{0, 1, 0},
		mgl32.DegToRad(90), 1.0, 0.1, 200,
	)
}

// countingMesher records how many payloads it built.
func countingMesher(calls *atomic.Int64) Mesher {
	return func(c *world.Chunk) world.Mesh {
		calls.Add(1)
		return world.Mesh{uint32(len(c.Voxels()))}
	}
}

func newTestCoordinator(t *testing.T, cam *cameraSwitch, mesher Mesher) *Coordinator {
	t.Helper()
	logger := log.New(os.Stderr, "stream-test ", log.LstdFlags)
	c, err := New(testConfig(), logger, cam.current, mesher)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

// cameraSwitch lets tests swap the camera between ticks.
type cameraSwitch struct {
	mu  sync.Mutex
	cam cull.Camera
}

func (s *cameraSwitch) current() cull.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cam
}

func (s *cameraSwitch) set(cam cull.Camera) {
	s.mu.Lock()
	s.cam = cam
	s.mu.Unlock()
}

// tickUntil runs coordinator ticks until cond holds or the deadline
// passes.
func tickUntil(t *testing.T, c *Coordinator, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, c.Tick(context.Background()))
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestVisibleChunksGenerate(t *testing.T) {
	cam := &cameraSwitch{cam: lookAtWorld()}
	var meshes atomic.Int64
	c := newTestCoordinator(t, cam, countingMesher(&meshes))

	volume := c.Space().Dims().Volume()
	tickUntil(t, c, func() bool { return c.Store().Len() == volume },
		"world never finished generating")

	for _, chunk := range c.Store().All() {
		assert.False(t, chunk.IsDirty(), "chunk %v still dirty", chunk.Coord)
		assert.NotNil(t, chunk.Mesh(), "chunk %v has no mesh", chunk.Coord)
	}
	assert.GreaterOrEqual(t, meshes.Load(), int64(volume))
	assert.Equal(t, uint64(volume), c.Stats().Generated)
}

func TestInvisibleChunksStayEmpty(t *testing.T) {
	cam := &cameraSwitch{cam: lookAway()}
	c := newTestCoordinator(t, cam, nil)

	for i := 0; i < 10; i++ {
		require.NoError(t, c.Tick(context.Background()))
	}
	assert.Zero(t, c.Store().Len(), "chunks outside the frustum must not generate")
	assert.Zero(t, c.Stats().InFlight)
	assert.Zero(t, c.Stats().QueuedJobs)
	assert.Equal(t, testConfig().Stream.Workers, c.Stats().Workers)
}

// TestAtMostOneJobPerChunk blocks the mesher and verifies repeated
// ticks never start a second job for a slot that already has one in
// flight.
func TestAtMostOneJobPerChunk(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int64
	blockingMesher := func(c *world.Chunk) world.Mesh {
		started.Add(1)
		<-release
		return nil
	}

	cam := &cameraSwitch{cam: lookAtWorld()}
	c := newTestCoordinator(t, cam, blockingMesher)
	defer close(release)

	volume := c.Space().Dims().Volume()
	require.NoError(t, c.Tick(context.Background()))
	assert.Equal(t, volume, len(c.jobs))

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Tick(context.Background()))
		assert.Equal(t, volume, len(c.jobs), "tick %d spawned a duplicate job", i)
	}
	// Only the pool's workers have actually entered the mesher, but
	// nothing beyond one start per slot can ever happen.
	assert.LessOrEqual(t, started.Load(), int64(volume))
}

func TestEditAppliedAndRemeshed(t *testing.T) {
	cam := &cameraSwitch{cam: lookAtWorld()}
	c := newTestCoordinator(t, cam, countingMesher(new(atomic.Int64)))

	volume := c.Space().Dims().Volume()
	tickUntil(t, c, func() bool { return c.Store().Len() == volume },
		"world never finished generating")

	pos := world.VoxelPos{X: 3, Y: 7, Z: 3}
	require.NoError(t, c.Queue().Enqueue(command.SetVoxel{Pos: pos, ID: world.VoxelGrass}))

	coord, lx, ly, lz, err := c.Space().Split(pos)
	require.NoError(t, err)

	tickUntil(t, c, func() bool {
		chunk := c.Store().Get(coord)
		return chunk != nil && chunk.Get(lx, ly, lz) == world.VoxelGrass && !chunk.IsDirty()
	}, "edit never applied and re-meshed")

	assert.Equal(t, uint64(1), c.Stats().EditsApplied)
	assert.GreaterOrEqual(t, c.Stats().Meshed, uint64(1))
}

func TestOutOfRangeEditDroppedNotFatal(t *testing.T) {
	cam := &cameraSwitch{cam: lookAtWorld()}
	c := newTestCoordinator(t, cam, nil)

	require.NoError(t, c.Queue().Enqueue(command.SetVoxel{
		Pos: world.VoxelPos{X: 9999, Y: 0, Z: 0},
		ID:  world.VoxelStone,
	}))
	require.NoError(t, c.Tick(context.Background()))
	assert.Equal(t, uint64(1), c.Stats().EditsDropped)
}

// TestEditDuringGenerationIsNotLost pins the chosen race policy: an
// edit landing while the chunk is still generating is parked and
// replayed after the generated voxels install, so stale job output
// never clobbers it.
func TestEditDuringGenerationIsNotLost(t *testing.T) {
	release := make(chan struct{})
	blockingMesher := func(c *world.Chunk) world.Mesh {
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
		return nil
	}

	cam := &cameraSwitch{cam: lookAtWorld()}
	c := newTestCoordinator(t, cam, blockingMesher)

	// First tick spawns generation jobs that now sit in the mesher.
	require.NoError(t, c.Tick(context.Background()))
	require.NotEmpty(t, c.jobs)

	pos := world.VoxelPos{X: 1, Y: 1, Z: 1}
	require.NoError(t, c.Queue().Enqueue(command.SetVoxel{Pos: pos, ID: world.VoxelBedrock}))
	require.NoError(t, c.Tick(context.Background()))

	close(release)

	coord, lx, ly, lz, err := c.Space().Split(pos)
	require.NoError(t, err)
	tickUntil(t, c, func() bool {
		chunk := c.Store().Get(coord)
		return chunk != nil && chunk.Get(lx, ly, lz) == world.VoxelBedrock
	}, "edit was clobbered by concurrently generated data")
}

func TestEvictionParksAndRestoresEdits(t *testing.T) {
	cam := &cameraSwitch{cam: lookAtWorld()}
	c := newTestCoordinator(t, cam, nil)

	volume := c.Space().Dims().Volume()
	tickUntil(t, c, func() bool { return c.Store().Len() == volume },
		"world never finished generating")

	// Edit, then look away until everything is evicted.
	pos := world.VoxelPos{X: 5, Y: 2, Z: 5}
	require.NoError(t, c.Queue().Enqueue(command.SetVoxel{Pos: pos, ID: world.VoxelGrass}))
	tickUntil(t, c, func() bool { return c.Stats().EditsApplied == 1 },
		"edit never applied")

	cam.set(lookAway())
	tickUntil(t, c, func() bool { return c.Store().Len() == 0 },
		"chunks were never evicted")
	assert.Equal(t, volume, c.Stats().Parked)

	// Look back: chunks restore from the parking cache, edit intact.
	cam.set(lookAtWorld())
	coord, lx, ly, lz, err := c.Space().Split(pos)
	require.NoError(t, err)
	tickUntil(t, c, func() bool {
		chunk := c.Store().Get(coord)
		return chunk != nil && chunk.Get(lx, ly, lz) == world.VoxelGrass
	}, "edited voxel did not survive eviction and restore")
}

func TestDropAllMeshes(t *testing.T) {
	cam := &cameraSwitch{cam: lookAtWorld()}
	var meshes atomic.Int64
	c := newTestCoordinator(t, cam, countingMesher(&meshes))

	volume := c.Space().Dims().Volume()
	tickUntil(t, c, func() bool { return c.Store().Len() == volume },
		"world never finished generating")
	before := meshes.Load()

	require.NoError(t, c.Queue().Enqueue(command.DropAllMeshes{}))
	tickUntil(t, c, func() bool {
		for _, chunk := range c.Store().All() {
			if chunk.Mesh() == nil || chunk.IsDirty() {
				return false
			}
		}
		return true
	}, "meshes were never rebuilt after DropAllMeshes")

	assert.Greater(t, meshes.Load(), before, "mesher must run again after DropAllMeshes")
}

func TestGenerateNewResizesWorld(t *testing.T) {
	cam := &cameraSwitch{cam: lookAtWorld()}
	c := newTestCoordinator(t, cam, nil)

	tickUntil(t, c, func() bool { return c.Store().Len() > 0 },
		"world never started generating")

	newDims := world.Dims{X: 3, Y: 1, Z: 3}
	require.NoError(t, c.Queue().Enqueue(command.GenerateNew{Sizes: newDims}))
	require.NoError(t, c.Tick(context.Background()))

	assert.Equal(t, newDims, c.Space().Dims())
	tickUntil(t, c, func() bool { return c.Store().Len() == newDims.Volume() },
		"resized world never finished generating")
}

func TestPanickedJobSurfacesAndSlotRecovers(t *testing.T) {
	cam := &cameraSwitch{cam: lookAtWorld()}
	var calls atomic.Int64
	panickyMesher := func(c *world.Chunk) world.Mesh {
		if calls.Add(1) == 1 {
			panic("mesher defect")
		}
		return nil
	}
	c := newTestCoordinator(t, cam, panickyMesher)

	var tickErr error
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if tickErr = c.Tick(context.Background()); tickErr != nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.Error(t, tickErr, "crashed job never surfaced")
	assert.ErrorIs(t, tickErr, job.ErrPanicked)
	assert.Regexp(t, `job [0-9a-f-]{36}`, tickErr.Error(),
		"failure must name the job for log correlation")

	// The failed chunk's slot resolved out of Generating; continuing
	// regenerates everything, so no slot is permanently stuck.
	volume := c.Space().Dims().Volume()
	tickUntil(t, c, func() bool { return c.Store().Len() == volume },
		"world never recovered after a crashed job")
	for coord, e := range c.entries {
		assert.NotEqual(t, StateGenerating, e.state,
			"slot %v stuck generating after a crash", coord)
	}
}

func TestRebuildNoiseRegenerates(t *testing.T) {
	cam := &cameraSwitch{cam: lookAtWorld()}
	c := newTestCoordinator(t, cam, nil)

	volume := c.Space().Dims().Volume()
	tickUntil(t, c, func() bool { return c.Store().Len() == volume },
		"world never finished generating")
	modBefore := c.Store().ModCount()

	c.Field().SetSeed(987654)
	require.NoError(t, c.Queue().Enqueue(command.RebuildNoise{}))
	require.NoError(t, c.Tick(context.Background()))

	tickUntil(t, c, func() bool {
		return c.Store().Len() == volume && c.Store().ModCount() > modBefore
	}, "world never regenerated after noise rebuild")
}
