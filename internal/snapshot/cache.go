// Package snapshot parks the voxel data of evicted chunks in
// compressed form so re-entering the visible set does not force a full
// regeneration. The cache is memory-only; durable world storage is a
// separate concern.
package snapshot

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"voxelstream/internal/world"
)

// Cache holds zstd-compressed voxel buffers keyed by chunk coordinate.
type Cache struct {
	mu      sync.Mutex
	entries map[world.ChunkCoord][]byte
	enc     *zstd.Encoder
	dec     *zstd.Decoder
}

// NewCache creates an empty cache.
func NewCache() (*Cache, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("snapshot: new encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: new decoder: %w", err)
	}
	return &Cache{
		entries: make(map[world.ChunkCoord][]byte),
		enc:     enc,
		dec:     dec,
	}, nil
}

// Park stores a compressed copy of voxels under coord, replacing any
// previous entry.
func (c *Cache) Park(coord world.ChunkCoord, voxels []world.VoxelID) {
	raw := make([]byte, 2*len(voxels))
	for i, v := range voxels {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(v))
	}
	compressed := c.enc.EncodeAll(raw, nil)

	c.mu.Lock()
	c.entries[coord] = compressed
	c.mu.Unlock()
}

// Restore returns the parked voxels for coord and removes the entry.
// The second result is false when nothing was parked.
func (c *Cache) Restore(coord world.ChunkCoord) ([]world.VoxelID, bool) {
	c.mu.Lock()
	compressed, ok := c.entries[coord]
	if ok {
		delete(c.entries, coord)
	}
	c.mu.Unlock()
	if !ok {
		return nil, false
	}

	raw, err := c.dec.DecodeAll(compressed, nil)
	if err != nil || len(raw)%2 != 0 {
		// A corrupt entry is unrecoverable; regenerate instead.
		return nil, false
	}
	voxels := make([]world.VoxelID, len(raw)/2)
	for i := range voxels {
		voxels[i] = world.VoxelID(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return voxels, true
}

// Len returns the number of parked chunks.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CompressedBytes returns the total compressed size of all entries.
func (c *Cache) CompressedBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, e := range c.entries {
		total += len(e)
	}
	return total
}

// Clear drops every parked chunk.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[world.ChunkCoord][]byte)
	c.mu.Unlock()
}
