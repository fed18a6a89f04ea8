// Package config holds the streamer's settings, loaded once at startup
// and injected into the components that need them.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Settings is the full configuration. Zero fields are filled in by
// ApplyDefaults; Validate clamps and checks the rest.
type Settings struct {
	World    WorldSettings    `yaml:"world"`
	Noise    NoiseSettings    `yaml:"noise"`
	Stream   StreamSettings   `yaml:"stream"`
	Observer ObserverSettings `yaml:"observer"`
}

// WorldSettings shapes the chunk array.
type WorldSettings struct {
	DimsX     int `yaml:"dims_x"`
	DimsY     int `yaml:"dims_y"`
	DimsZ     int `yaml:"dims_z"`
	ChunkSide int `yaml:"chunk_side"` // power of two

	BaseHeight int     `yaml:"base_height"`
	Amplitude  float64 `yaml:"amplitude"`
}

// NoiseSettings seeds the terrain heightmap.
type NoiseSettings struct {
	Seed        uint32  `yaml:"seed"`
	Frequency   float32 `yaml:"frequency"`
	Octaves     int     `yaml:"octaves"`
	Persistence float32 `yaml:"persistence"`
	Lacunarity  float32 `yaml:"lacunarity"`
}

// StreamSettings tune the coordinator.
type StreamSettings struct {
	Workers         int `yaml:"workers"`
	QueueSize       int `yaml:"queue_size"`
	MaxJobsPerTick  int `yaml:"max_jobs_per_tick"`
	RetentionMargin int `yaml:"retention_margin"` // chunks kept beyond the frustum, in ticks of invisibility
	TickMillis      int `yaml:"tick_millis"`

	CameraFOVDegrees float32 `yaml:"camera_fov_degrees"`
	CameraAspect     float32 `yaml:"camera_aspect"`
	CameraNear       float32 `yaml:"camera_near"`
	CameraFar        float32 `yaml:"camera_far"`
}

// ObserverSettings configure the loopback observer endpoint.
type ObserverSettings struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Settings {
	var s Settings
	s.ApplyDefaults()
	return s
}

// Load reads settings from a yaml file and applies defaults on top of
// missing fields.
func Load(path string) (Settings, error) {
	var s Settings
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("config %s: %w", path, err)
	}
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("config %s: %w", path, err)
	}
	return s, nil
}

// ApplyDefaults fills zero-valued fields.
func (s *Settings) ApplyDefaults() {
	if s.World.DimsX == 0 {
		s.World.DimsX = 16
	}
	if s.World.DimsY == 0 {
		s.World.DimsY = 4
	}
	if s.World.DimsZ == 0 {
		s.World.DimsZ = 16
	}
	if s.World.ChunkSide == 0 {
		s.World.ChunkSide = 16
	}
	if s.World.BaseHeight == 0 {
		s.World.BaseHeight = 20
	}
	if s.World.Amplitude == 0 {
		s.World.Amplitude = 24
	}

	if s.Noise.Frequency == 0 {
		s.Noise.Frequency = 1.0 / 64.0
	}
	if s.Noise.Octaves == 0 {
		s.Noise.Octaves = 4
	}
	if s.Noise.Persistence == 0 {
		s.Noise.Persistence = 0.5
	}
	if s.Noise.Lacunarity == 0 {
		s.Noise.Lacunarity = 2.0
	}

	if s.Stream.Workers == 0 {
		s.Stream.Workers = max(runtime.NumCPU(), 1)
	}
	if s.Stream.QueueSize == 0 {
		s.Stream.QueueSize = 4096
	}
	if s.Stream.MaxJobsPerTick == 0 {
		s.Stream.MaxJobsPerTick = 256
	}
	if s.Stream.RetentionMargin == 0 {
		s.Stream.RetentionMargin = 60
	}
	if s.Stream.TickMillis == 0 {
		s.Stream.TickMillis = 16
	}
	if s.Stream.CameraFOVDegrees == 0 {
		s.Stream.CameraFOVDegrees = 70
	}
	if s.Stream.CameraAspect == 0 {
		s.Stream.CameraAspect = 16.0 / 9.0
	}
	if s.Stream.CameraNear == 0 {
		s.Stream.CameraNear = 0.1
	}
	if s.Stream.CameraFar == 0 {
		s.Stream.CameraFar = 400
	}

	if s.Observer.Addr == "" {
		s.Observer.Addr = "127.0.0.1:8551"
	}
}

// Validate rejects impossible values and clamps the merely unreasonable.
func (s *Settings) Validate() error {
	w := &s.World
	if w.DimsX <= 0 || w.DimsY <= 0 || w.DimsZ <= 0 {
		return fmt.Errorf("world dims must be positive, got %dx%dx%d", w.DimsX, w.DimsY, w.DimsZ)
	}
	if w.ChunkSide <= 0 || w.ChunkSide&(w.ChunkSide-1) != 0 {
		return fmt.Errorf("chunk_side must be a power of two, got %d", w.ChunkSide)
	}
	if s.Noise.Octaves < 1 {
		s.Noise.Octaves = 1
	}
	if s.Noise.Octaves > 16 {
		s.Noise.Octaves = 16
	}
	if s.Stream.Workers < 1 {
		s.Stream.Workers = 1
	}
	if s.Stream.CameraNear <= 0 || s.Stream.CameraFar <= s.Stream.CameraNear {
		return fmt.Errorf("camera near/far invalid: near=%f far=%f", s.Stream.CameraNear, s.Stream.CameraFar)
	}
	if s.Stream.CameraFOVDegrees <= 0 || s.Stream.CameraFOVDegrees >= 180 {
		return fmt.Errorf("camera_fov_degrees must be in (0,180), got %f", s.Stream.CameraFOVDegrees)
	}
	if s.Stream.CameraAspect <= 0 {
		return fmt.Errorf("camera_aspect must be positive, got %f", s.Stream.CameraAspect)
	}
	return nil
}
