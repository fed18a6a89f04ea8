package stream

import (
	"fmt"

	"voxelstream/internal/command"
	"voxelstream/internal/world"
)

// drainCommands empties the edit queue and applies each command in
// FIFO order. This pass is the only code path that mutates resident
// voxel data. Malformed single edits are logged and dropped; they are
// never fatal.
func (c *Coordinator) drainCommands() error {
	for _, cmd := range c.queue.Drain() {
		switch cmd := cmd.(type) {
		case command.SetVoxel:
			c.applySetVoxel(cmd)
		case command.FillVoxels:
			c.applyFillVoxels(cmd)
		case command.DropAllMeshes:
			c.applyDropAllMeshes()
		case command.GenerateNew:
			if err := c.applyGenerateNew(cmd); err != nil {
				return err
			}
		case command.RebuildNoise:
			c.rebuildNoise()
		default:
			c.log.Printf("warn: dropping unknown command %T", cmd)
			c.stats.editsDropped++
		}
	}
	return nil
}

func (c *Coordinator) applySetVoxel(cmd command.SetVoxel) {
	coord, lx, ly, lz, err := c.space.Split(cmd.Pos)
	if err != nil {
		c.log.Printf("warn: dropping edit at %v: %v", cmd.Pos, err)
		c.stats.editsDropped++
		return
	}
	c.setVoxelAt(coord, lx, ly, lz, cmd.ID, cmd)
	c.stats.editsApplied++
}

func (c *Coordinator) applyFillVoxels(cmd command.FillVoxels) {
	if !c.space.ContainsVoxel(cmd.From) || !c.space.ContainsVoxel(cmd.To) {
		c.log.Printf("warn: dropping fill %v..%v: %v", cmd.From, cmd.To, world.ErrOutOfBounds)
		c.stats.editsDropped++
		return
	}
	lo, hi := normalizeBox(cmd.From, cmd.To)
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				pos := world.VoxelPos{X: x, Y: y, Z: z}
				coord, lx, ly, lz, err := c.space.Split(pos)
				if err != nil {
					continue // unreachable, both corners validated
				}
				c.setVoxelAt(coord, lx, ly, lz, cmd.ID, command.SetVoxel{Pos: pos, ID: cmd.ID})
			}
		}
	}
	c.stats.editsApplied++
}

// setVoxelAt lands one voxel write. Resident chunks are edited in
// place and their edit epoch bumped, so an in-flight job for the same
// chunk cannot clobber the edit: its result arrives with a stale epoch
// and is discarded. Edits to non-resident chunks are parked on the
// slot and replayed once generated voxels install.
func (c *Coordinator) setVoxelAt(coord world.ChunkCoord, lx, ly, lz int, id world.VoxelID, raw command.Command) {
	e := c.entryFor(coord)
	if chunk := c.store.Get(coord); chunk != nil {
		chunk.Set(lx, ly, lz, id)
		e.editEpoch++
		return
	}
	e.pendingEdits = append(e.pendingEdits, raw)
	e.editEpoch++
}

// applyPending replays edits that arrived while the chunk was being
// generated, leaving the chunk dirty for a re-mesh.
func (c *Coordinator) applyPending(coord world.ChunkCoord, chunk *world.Chunk, e *entry) {
	for _, cmd := range e.pendingEdits {
		sv, ok := cmd.(command.SetVoxel)
		if !ok {
			continue
		}
		_, lx, ly, lz, err := c.space.Split(sv.Pos)
		if err != nil {
			continue
		}
		chunk.Set(lx, ly, lz, sv.ID)
	}
	e.pendingEdits = nil
	chunk.MarkDirty()
}

func (c *Coordinator) applyDropAllMeshes() {
	for _, chunk := range c.store.All() {
		if chunk.Mesh() != nil {
			chunk.DropMesh()
			chunk.MarkDirty()
		}
	}
}

// applyGenerateNew discards the world and rebuilds the chunk array
// with new dimensions. Outstanding jobs are canceled; their results
// can never install because the slot map is replaced.
func (c *Coordinator) applyGenerateNew(cmd command.GenerateNew) error {
	space, err := world.NewCoordSpace(cmd.Sizes, c.space.Side())
	if err != nil {
		c.log.Printf("warn: dropping generate-new %+v: %v", cmd.Sizes, err)
		c.stats.editsDropped++
		return nil
	}

	for coord, j := range c.jobs {
		j.Cancel()
		delete(c.jobs, coord)
	}
	c.store.Clear()
	c.cache.Clear()
	c.entries = make(map[world.ChunkCoord]*entry)

	c.space = space
	c.gen = world.NewFieldGenerator(c.field, space, c.cfg.World.BaseHeight, c.cfg.World.Amplitude)
	if err := c.field.Resize(cmd.Sizes.X*space.Side(), cmd.Sizes.Z*space.Side()); err != nil {
		return fmt.Errorf("generate-new: %w", err)
	}
	c.log.Printf("world regenerated with dims %+v", cmd.Sizes)
	return nil
}

// rebuildNoise resynthesizes the noise field from its current tuning
// snapshot and drops all derived data, forcing full regeneration on
// the following ticks. Edits made so far are discarded with the old
// terrain.
func (c *Coordinator) rebuildNoise() {
	c.field.Rebuild()
	for coord, j := range c.jobs {
		j.Cancel()
		delete(c.jobs, coord)
	}
	c.store.Clear()
	c.cache.Clear()
	c.entries = make(map[world.ChunkCoord]*entry)
}

func normalizeBox(a, b world.VoxelPos) (lo, hi world.VoxelPos) {
	lo, hi = a, b
	if lo.X > hi.X {
		lo.X, hi.X = hi.X, lo.X
	}
	if lo.Y > hi.Y {
		lo.Y, hi.Y = hi.Y, lo.Y
	}
	if lo.Z > hi.Z {
		lo.Z, hi.Z = hi.Z, lo.Z
	}
	return lo, hi
}
