// Package command defines the world-edit commands and the
// multi-producer, single-consumer queue that carries them. Draining the
// queue is the only permitted mutation path for chunk voxel data.
package command

import "voxelstream/internal/world"

// Command is a world edit. Producers enqueue from any goroutine;
// exactly one consumer drains in strict FIFO order.
type Command interface {
	isCommand()
}

// SetVoxel replaces a single voxel.
type SetVoxel struct {
	Pos world.VoxelPos
	ID  world.VoxelID
}

// FillVoxels replaces every voxel in the inclusive box [From, To].
type FillVoxels struct {
	From world.VoxelPos
	To   world.VoxelPos
	ID   world.VoxelID
}

// DropAllMeshes discards every chunk's render payload, keeping voxels.
type DropAllMeshes struct{}

// GenerateNew discards the world and regenerates it with new array
// dimensions.
type GenerateNew struct {
	Sizes world.Dims
}

// RebuildNoise resynthesizes the noise field from its current tuning
// parameters and regenerates all terrain derived from it.
type RebuildNoise struct{}

func (SetVoxel) isCommand()      {}
func (FillVoxels) isCommand()    {}
func (DropAllMeshes) isCommand() {}
func (GenerateNew) isCommand()   {}
func (RebuildNoise) isCommand()  {}
