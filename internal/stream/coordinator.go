// Package stream orchestrates chunk generation: it drains the edit
// queue, recomputes visibility, schedules background jobs on the worker
// pool, installs finished results and evicts chunks that left the view.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/command"
	"voxelstream/internal/config"
	"voxelstream/internal/cull"
	"voxelstream/internal/job"
	"voxelstream/internal/snapshot"
	"voxelstream/internal/world"
)

// ChunkState is the coordinator-side lifecycle of a chunk slot.
type ChunkState int

const (
	// StateEmpty means no voxel data is resident for the slot.
	StateEmpty ChunkState = iota
	// StateGenerating means a background job is producing data.
	StateGenerating
	// StateReady means voxel data (and possibly a mesh) is installed.
	StateReady
)

// Mesher turns a chunk's voxels into an opaque render payload. The
// algorithm is a collaborator concern; the coordinator only schedules
// it.
type Mesher func(*world.Chunk) world.Mesh

// CameraProvider supplies the camera pose a visibility pass is built
// from. Called once per tick, from the tick goroutine.
type CameraProvider func() cull.Camera

// genResult is what a generation job delivers back to the tick loop.
type genResult struct {
	chunk *world.Chunk // nil for mesh-only regeneration
	mesh  world.Mesh
	epoch uint64 // edit epoch captured at spawn
}

// entry is the coordinator's bookkeeping for one chunk slot.
type entry struct {
	state       ChunkState
	editEpoch   uint64
	lastVisible uint64 // tick the slot was last inside the frustum
	visible     bool

	// Edits that arrived while no voxel data was resident; applied
	// right after the generated voxels are installed.
	pendingEdits []command.Command
}

// Coordinator owns every moving part of the streaming pipeline. All
// state lives in this struct; construct one per world.
type Coordinator struct {
	log *log.Logger
	cfg config.Settings

	space  world.CoordSpace
	store  *world.ChunkStore
	queue  *command.Queue
	pool   *job.Pool
	field  *world.NoiseField
	gen    world.TerrainGenerator
	mesher Mesher
	camera CameraProvider
	cache  *snapshot.Cache

	entries map[world.ChunkCoord]*entry
	jobs    map[world.ChunkCoord]*job.Job[genResult]
	tick    uint64

	stats statsCollector
}

// New wires a coordinator from settings. The camera provider and
// mesher are collaborator callbacks; mesher may be nil, in which case
// chunks carry voxel data only.
func New(cfg config.Settings, logger *log.Logger, camera CameraProvider, mesher Mesher) (*Coordinator, error) {
	space, err := world.NewCoordSpace(world.Dims{
		X: cfg.World.DimsX,
		Y: cfg.World.DimsY,
		Z: cfg.World.DimsZ,
	}, cfg.World.ChunkSide)
	if err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}

	field, err := world.NewNoiseField(world.FieldParams{
		Seed:        cfg.Noise.Seed,
		Width:       cfg.World.DimsX * cfg.World.ChunkSide,
		Height:      cfg.World.DimsZ * cfg.World.ChunkSide,
		Frequency:   cfg.Noise.Frequency,
		Octaves:     cfg.Noise.Octaves,
		Persistence: cfg.Noise.Persistence,
		Lacunarity:  cfg.Noise.Lacunarity,
	})
	if err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}

	cache, err := snapshot.NewCache()
	if err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}

	if mesher == nil {
		mesher = func(*world.Chunk) world.Mesh { return nil }
	}

	c := &Coordinator{
		log:     logger,
		cfg:     cfg,
		space:   space,
		store:   world.NewChunkStore(),
		queue:   command.NewQueue(),
		pool:    job.NewPool(cfg.Stream.Workers, cfg.Stream.QueueSize),
		field:   field,
		mesher:  mesher,
		camera:  camera,
		cache:   cache,
		entries: make(map[world.ChunkCoord]*entry),
		jobs:    make(map[world.ChunkCoord]*job.Job[genResult]),
	}
	c.gen = world.NewFieldGenerator(field, space, cfg.World.BaseHeight, cfg.World.Amplitude)
	return c, nil
}

// Queue returns the edit queue; producers may enqueue from any
// goroutine. The coordinator is the only consumer.
func (c *Coordinator) Queue() *command.Queue { return c.queue }

// Field returns the noise field for runtime tuning.
func (c *Coordinator) Field() *world.NoiseField { return c.field }

// Store exposes read access to resident chunks for collaborators.
func (c *Coordinator) Store() *world.ChunkStore { return c.store }

// Space returns the current coordinate space.
func (c *Coordinator) Space() world.CoordSpace { return c.space }

// Close shuts the pipeline down: further enqueues fail, in-flight jobs
// are canceled and the workers are joined.
func (c *Coordinator) Close() {
	c.queue.Close()
	for coord, j := range c.jobs {
		j.Cancel()
		delete(c.jobs, coord)
	}
	c.pool.Shutdown()
}

// Tick runs one coordinator pass. It never blocks on job completion; a
// returned error is structural (crashed job, impossible state) and
// means the pipeline must not keep running.
func (c *Coordinator) Tick(ctx context.Context) error {
	c.tick++

	if err := c.drainCommands(); err != nil {
		return err
	}

	frustum := cull.NewFrustum(c.camera())
	c.updateVisibility(frustum)

	if err := c.installFinished(); err != nil {
		return err
	}
	c.spawnNeeded()
	c.evictStale()

	c.stats.publish(c)
	return nil
}

// entryFor returns the bookkeeping entry for coord, creating it on
// first use.
func (c *Coordinator) entryFor(coord world.ChunkCoord) *entry {
	e, ok := c.entries[coord]
	if !ok {
		e = &entry{}
		c.entries[coord] = e
	}
	return e
}

// chunkAABB returns the world-space bounds of a chunk slot.
func (c *Coordinator) chunkAABB(coord world.ChunkCoord) cull.AABB {
	side := float32(c.space.Side())
	lo := mgl32.Vec3{
		float32(coord.X) * side,
		float32(coord.Y) * side,
		float32(coord.Z) * side,
	}
	return cull.AABB{Min: lo, Max: lo.Add(mgl32.Vec3{side, side, side})}
}

// updateVisibility runs the frustum test over every chunk slot.
func (c *Coordinator) updateVisibility(f cull.Frustum) {
	dims := c.space.Dims()
	for i := 0; i < dims.Volume(); i++ {
		coord := world.CoordFromIndex(i, dims)
		e := c.entryFor(coord)
		e.visible = f.IntersectsAABB(c.chunkAABB(coord))
		if e.visible {
			e.lastVisible = c.tick
		}
	}
}

// retained reports whether an invisible slot is still inside the
// retention window.
func (c *Coordinator) retained(e *entry) bool {
	return c.tick-e.lastVisible <= uint64(c.cfg.Stream.RetentionMargin)
}

// spawnNeeded starts generation jobs for visible or retained slots
// that are unborn or dirty and have no job outstanding. At most one
// job per chunk is ever in flight; the slot map enforces it.
func (c *Coordinator) spawnNeeded() {
	spawned := 0
	dims := c.space.Dims()
	for i := 0; i < dims.Volume() && spawned < c.cfg.Stream.MaxJobsPerTick; i++ {
		coord := world.CoordFromIndex(i, dims)
		e := c.entries[coord]
		if e == nil {
			continue
		}
		if _, busy := c.jobs[coord]; busy {
			continue
		}

		switch e.state {
		case StateEmpty:
			// Unborn slots only start generating when actually visible.
			if !e.visible {
				continue
			}
			c.spawnGenerate(coord, e)
			spawned++
		case StateReady:
			chunk := c.store.Get(coord)
			if chunk == nil || !chunk.IsDirty() {
				continue
			}
			if !e.visible && !c.retained(e) {
				continue
			}
			c.spawnRemesh(coord, e, chunk)
			spawned++
		}
	}
}

// spawnGenerate produces voxel data (restored from the parking cache
// when available, synthesized from the noise field otherwise) plus a
// mesh.
func (c *Coordinator) spawnGenerate(coord world.ChunkCoord, e *entry) {
	e.state = StateGenerating
	epoch := e.editEpoch
	side := c.space.Side()
	gen := c.gen
	mesher := c.mesher
	cache := c.cache

	c.jobs[coord] = job.Spawn(c.pool, func(ctx context.Context) (genResult, error) {
		chunk := world.NewChunk(coord, side)
		if parked, ok := cache.Restore(coord); ok && chunk.RestoreVoxels(parked) {
			// Parked data reused as-is.
		} else if err := gen.PopulateChunk(chunk); err != nil {
			return genResult{}, fmt.Errorf("generate %v: %w", coord, err)
		}
		if err := ctx.Err(); err != nil {
			return genResult{}, err
		}
		return genResult{chunk: chunk, mesh: mesher(chunk), epoch: epoch}, nil
	})
}

// spawnRemesh rebuilds the render payload of an edited chunk from a
// snapshot of its current voxels. Voxel data stays authoritative on
// the tick goroutine; the job only sees the copy.
func (c *Coordinator) spawnRemesh(coord world.ChunkCoord, e *entry, chunk *world.Chunk) {
	e.state = StateGenerating
	epoch := e.editEpoch
	side := c.space.Side()
	mesher := c.mesher

	snapshotChunk := world.NewChunk(coord, side)
	snapshotChunk.RestoreVoxels(chunk.CloneVoxels())

	c.jobs[coord] = job.Spawn(c.pool, func(ctx context.Context) (genResult, error) {
		if err := ctx.Err(); err != nil {
			return genResult{}, err
		}
		return genResult{mesh: mesher(snapshotChunk), epoch: epoch}, nil
	})
}

// installFinished polls outstanding jobs without blocking and installs
// completed results. A result whose edit epoch is stale is discarded;
// the slot stays dirty so the next tick regenerates it with the edit
// applied.
func (c *Coordinator) installFinished() error {
	// Every polled result is handled before an error surfaces, so a
	// crash in one job never leaves sibling slots stuck in Generating.
	var firstErr error
	for coord, res := range job.TakeFinished(c.jobs) {
		e := c.entryFor(coord)

		if res.Err != nil {
			// A crashed job is a defect. Resolve the slot out of
			// Generating before surfacing so a caller that chooses to
			// continue can retry.
			if c.store.Has(coord) {
				e.state = StateReady
			} else {
				e.state = StateEmpty
			}
			if errors.Is(res.Err, context.Canceled) {
				continue
			}
			c.log.Printf("error: chunk %v job %s failed: %v", coord, res.ID, res.Err)
			if firstErr == nil {
				firstErr = fmt.Errorf("chunk %v generation failed (job %s): %w", coord, res.ID, res.Err)
			}
			continue
		}

		if res.Value.chunk != nil {
			// Fresh voxel data.
			fresh := res.Value.chunk
			c.store.Replace(coord, fresh)
			e.state = StateReady
			if len(e.pendingEdits) > 0 {
				c.applyPending(coord, fresh, e)
				continue // stays dirty, re-meshed next tick
			}
			if res.Value.epoch == e.editEpoch {
				fresh.SetMesh(res.Value.mesh)
				fresh.SetClean()
				c.stats.generated++
			}
			continue
		}

		// Mesh-only result for a resident chunk.
		chunk := c.store.Get(coord)
		e.state = StateReady
		if chunk == nil {
			continue // evicted while meshing; nothing to install
		}
		if res.Value.epoch != e.editEpoch {
			continue // edited mid-flight, regenerate next tick
		}
		chunk.SetMesh(res.Value.mesh)
		chunk.SetClean()
		c.stats.meshed++
	}
	return firstErr
}

// evictStale demotes chunks that stayed outside the frustum beyond the
// retention margin: the mesh is dropped and the voxels parked in the
// compressed cache.
func (c *Coordinator) evictStale() {
	for coord, e := range c.entries {
		if e.state != StateReady || e.visible || c.retained(e) {
			continue
		}
		chunk := c.store.Remove(coord)
		if chunk == nil {
			e.state = StateEmpty
			continue
		}
		chunk.DropMesh()
		c.cache.Park(coord, chunk.Voxels())
		e.state = StateEmpty
		c.stats.evicted++
	}
}
