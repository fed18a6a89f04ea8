package world

import "math"

// Deterministic 2D value noise with fractal octave summation.
// Lattice values come from integer hashing, stable across runs for the
// same seed.

// fade is the smoothstep-like curve 6t^5 - 15t^4 + 10t^3.
func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// latticeHash is a SplitMix64-style integer hash over a 2D lattice point.
func latticeHash(x, z int64, seed int64) uint64 {
	v := uint64(x)*0x9E3779B97F4A7C15 + uint64(z)*0x6C62272E07BB0142 + uint64(seed)
	v += 0x9E3779B97F4A7C15
	v = (v ^ (v >> 30)) * 0xBF58476D1CE4E5B9
	v = (v ^ (v >> 27)) * 0x94D049BB133111EB
	return v ^ (v >> 31)
}

// latticeValue maps a lattice point to [0,1].
func latticeValue(x, z int64, seed int64) float64 {
	return float64(latticeHash(x, z, seed)&0xFFFFFFFF) / float64(0xFFFFFFFF)
}

// valueNoise2 evaluates smoothed value noise at (x,z), in [0,1].
func valueNoise2(x, z float64, seed int64) float64 {
	x0 := math.Floor(x)
	z0 := math.Floor(z)

	fx := fade(x - x0)
	fz := fade(z - z0)

	ix0, iz0 := int64(x0), int64(z0)
	v00 := latticeValue(ix0, iz0, seed)
	v10 := latticeValue(ix0+1, iz0, seed)
	v01 := latticeValue(ix0, iz0+1, seed)
	v11 := latticeValue(ix0+1, iz0+1, seed)

	return lerp(lerp(v00, v10, fx), lerp(v01, v11, fx), fz)
}

// fbm2 sums octaves of value noise, each octave's amplitude scaled by
// persistence^n and frequency by lacunarity^n, normalized back to [0,1].
func fbm2(x, z float64, seed int64, octaves int, persistence, lacunarity float64) float64 {
	amplitude := 1.0
	frequency := 1.0
	sum := 0.0
	norm := 0.0
	for i := 0; i < octaves; i++ {
		sum += valueNoise2(x*frequency, z*frequency, seed+int64(i*131)) * amplitude
		norm += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}
