package world

import "math"

// TerrainGenerator produces voxel contents for chunks.
type TerrainGenerator interface {
	// HeightAt computes the surface height (voxel Y) at world X,Z.
	HeightAt(worldX, worldZ int) (int, error)
	// PopulateChunk fills a chunk from the heightmap.
	PopulateChunk(c *Chunk) error
}

// FieldGenerator derives terrain from a NoiseField.
type FieldGenerator struct {
	field      *NoiseField
	space      CoordSpace
	baseHeight int
	amplitude  float64
}

// NewFieldGenerator creates a generator sampling field over space.
func NewFieldGenerator(field *NoiseField, space CoordSpace, baseHeight int, amplitude float64) *FieldGenerator {
	return &FieldGenerator{
		field:      field,
		space:      space,
		baseHeight: baseHeight,
		amplitude:  amplitude,
	}
}

// HeightAt computes the surface height at world X,Z, rounded to the
// nearest integer.
func (g *FieldGenerator) HeightAt(worldX, worldZ int) (int, error) {
	sx, sz, err := g.space.SampleCoord(VoxelPos{X: worldX, Y: 0, Z: worldZ})
	if err != nil {
		return 0, err
	}
	n, err := g.field.Sample(sx, sz)
	if err != nil {
		return 0, err
	}
	h := int(math.Round(float64(g.baseHeight) + n*g.amplitude))
	if h < 0 {
		h = 0
	}
	return h, nil
}

// PopulateChunk fills c column by column using the heightmap.
func (g *FieldGenerator) PopulateChunk(c *Chunk) error {
	side := c.Side()
	baseY := c.Coord.Y * side
	for lx := 0; lx < side; lx++ {
		for lz := 0; lz < side; lz++ {
			worldX := c.Coord.X*side + lx
			worldZ := c.Coord.Z*side + lz
			height, err := g.HeightAt(worldX, worldZ)
			if err != nil {
				return err
			}
			for ly := 0; ly < side; ly++ {
				c.Set(lx, ly, lz, VoxelForDepth(baseY+ly, height))
			}
		}
	}
	c.MarkDirty()
	return nil
}

// FlatGenerator produces terrain with a constant surface height.
// Used in tests and as a debugging world.
type FlatGenerator struct {
	height int
}

// NewFlatGenerator creates a generator with a fixed surface height.
func NewFlatGenerator(height int) *FlatGenerator {
	return &FlatGenerator{height: height}
}

func (g *FlatGenerator) HeightAt(worldX, worldZ int) (int, error) {
	return g.height, nil
}

func (g *FlatGenerator) PopulateChunk(c *Chunk) error {
	side := c.Side()
	baseY := c.Coord.Y * side
	for lx := 0; lx < side; lx++ {
		for lz := 0; lz < side; lz++ {
			for ly := 0; ly < side; ly++ {
				c.Set(lx, ly, lz, VoxelForDepth(baseY+ly, g.height))
			}
		}
	}
	c.MarkDirty()
	return nil
}
