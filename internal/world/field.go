package world

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// FieldParams is a snapshot of the tunable noise parameters.
type FieldParams struct {
	Seed        uint32
	Width       int
	Height      int
	Frequency   float32
	Octaves     int
	Persistence float32
	Lacunarity  float32
}

// NoiseField is a precomputed deterministic heightmap over a fixed
// sample grid. Tuning parameters are held in independent atomics so
// collaborators can adjust them from any goroutine; Rebuild resamples
// the grid from the current snapshot and swaps it in wholesale, so
// readers see either the fully-old or fully-new field, never a mix.
type NoiseField struct {
	seed        atomic.Uint32
	frequency   atomic.Uint32 // float32 bits
	octaves     atomic.Int32
	persistence atomic.Uint32 // float32 bits
	lacunarity  atomic.Uint32 // float32 bits

	mu      sync.RWMutex
	width   int
	height  int
	samples []float64
}

// NewNoiseField builds a field from p and synthesizes the initial grid.
func NewNoiseField(p FieldParams) (*NoiseField, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("invalid sample grid %dx%d", p.Width, p.Height)
	}
	f := &NoiseField{width: p.Width, height: p.Height}
	f.seed.Store(p.Seed)
	f.frequency.Store(math.Float32bits(p.Frequency))
	f.octaves.Store(int32(p.Octaves))
	f.persistence.Store(math.Float32bits(p.Persistence))
	f.lacunarity.Store(math.Float32bits(p.Lacunarity))
	f.Rebuild()
	return f, nil
}

// Params returns the current tuning snapshot.
func (f *NoiseField) Params() FieldParams {
	f.mu.RLock()
	w, h := f.width, f.height
	f.mu.RUnlock()
	return FieldParams{
		Seed:        f.seed.Load(),
		Width:       w,
		Height:      h,
		Frequency:   math.Float32frombits(f.frequency.Load()),
		Octaves:     int(f.octaves.Load()),
		Persistence: math.Float32frombits(f.persistence.Load()),
		Lacunarity:  math.Float32frombits(f.lacunarity.Load()),
	}
}

// SetSeed updates the seed; takes effect on the next Rebuild.
func (f *NoiseField) SetSeed(v uint32) { f.seed.Store(v) }

// SetFrequency updates the base sample frequency.
func (f *NoiseField) SetFrequency(v float32) { f.frequency.Store(math.Float32bits(v)) }

// SetOctaves updates the octave count.
func (f *NoiseField) SetOctaves(v int) { f.octaves.Store(int32(v)) }

// SetPersistence updates the per-octave amplitude falloff.
func (f *NoiseField) SetPersistence(v float32) { f.persistence.Store(math.Float32bits(v)) }

// SetLacunarity updates the per-octave frequency gain.
func (f *NoiseField) SetLacunarity(v float32) { f.lacunarity.Store(math.Float32bits(v)) }

// Rebuild resynthesizes the sample grid from the current parameter
// snapshot and installs it atomically.
func (f *NoiseField) Rebuild() {
	p := f.Params()
	f.rebuildGrid(p.Width, p.Height, p)
}

// Resize changes the sample grid shape and rebuilds.
func (f *NoiseField) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid sample grid %dx%d", width, height)
	}
	f.rebuildGrid(width, height, f.Params())
	return nil
}

func (f *NoiseField) rebuildGrid(width, height int, p FieldParams) {
	// Synthesize outside the lock; swap under it.
	samples := make([]float64, width*height)
	freq := float64(p.Frequency)
	for x := 0; x < width; x++ {
		for z := 0; z < height; z++ {
			samples[x*height+z] = fbm2(
				float64(x)*freq, float64(z)*freq,
				int64(p.Seed), p.Octaves,
				float64(p.Persistence), float64(p.Lacunarity),
			)
		}
	}

	f.mu.Lock()
	f.width = width
	f.height = height
	f.samples = samples
	f.mu.Unlock()
}

// Sample returns the field value at sample coordinates (x,z), in [0,1].
// Consumers round derived heights to the nearest integer.
func (f *NoiseField) Sample(x, z int) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if x < 0 || x >= f.width || z < 0 || z >= f.height {
		return 0, fmt.Errorf("sample (%d,%d): %w", x, z, ErrOutOfBounds)
	}
	return f.samples[x*f.height+z], nil
}

// GridSize returns the current sample grid shape.
func (f *NoiseField) GridSize() (int, int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.width, f.height
}
