package world

// VoxelID identifies a voxel type. Zero is empty space.
type VoxelID uint16

const (
	VoxelAir VoxelID = iota
	VoxelBedrock
	VoxelStone
	VoxelDirt
	VoxelGrass
)

// VoxelForDepth returns the voxel placed at world height y in a column
// whose surface lies at height surface.
func VoxelForDepth(y, surface int) VoxelID {
	switch {
	case y > surface:
		return VoxelAir
	case y == 0:
		return VoxelBedrock
	case y == surface:
		return VoxelGrass
	case surface-y <= 3:
		return VoxelDirt
	default:
		return VoxelStone
	}
}
