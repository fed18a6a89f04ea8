package world

import "sync"

// ChunkStore manages the storage and retrieval of chunks.
type ChunkStore struct {
	mu       sync.RWMutex
	chunks   map[ChunkCoord]*Chunk
	modCount uint64 // increases on any chunk add/remove
}

// NewChunkStore creates a new chunk store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{chunks: make(map[ChunkCoord]*Chunk)}
}

// Get returns the chunk at coord, nil if absent.
func (cs *ChunkStore) Get(coord ChunkCoord) *Chunk {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.chunks[coord]
}

// Has checks if a chunk exists without creating it.
func (cs *ChunkStore) Has(coord ChunkCoord) bool {
	cs.mu.RLock()
	_, ok := cs.chunks[coord]
	cs.mu.RUnlock()
	return ok
}

// Replace installs a chunk, overwriting any existing one.
func (cs *ChunkStore) Replace(coord ChunkCoord, chunk *Chunk) {
	cs.mu.Lock()
	cs.chunks[coord] = chunk
	cs.modCount++
	cs.mu.Unlock()
}

// Remove deletes the chunk at coord and returns it, nil if absent.
func (cs *ChunkStore) Remove(coord ChunkCoord) *Chunk {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	chunk, ok := cs.chunks[coord]
	if !ok {
		return nil
	}
	delete(cs.chunks, coord)
	cs.modCount++
	return chunk
}

// Clear drops every chunk and returns how many were removed.
func (cs *ChunkStore) Clear() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	n := len(cs.chunks)
	if n > 0 {
		cs.chunks = make(map[ChunkCoord]*Chunk)
		cs.modCount++
	}
	return n
}

// Len returns the number of resident chunks.
func (cs *ChunkStore) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.chunks)
}

// ModCount returns the current modification count of the chunk map.
func (cs *ChunkStore) ModCount() uint64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.modCount
}

// All returns a snapshot slice of every resident chunk.
func (cs *ChunkStore) All() []*Chunk {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make([]*Chunk, 0, len(cs.chunks))
	for _, chunk := range cs.chunks {
		out = append(out, chunk)
	}
	return out
}
