package main

import (
	"context"
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/config"
	"voxelstream/internal/cull"
	"voxelstream/internal/observer"
	"voxelstream/internal/stream"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	flag.Parse()

	logger := log.New(os.Stderr, "voxelstream ", log.LstdFlags|log.Lmsgprefix)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	cam := newOrbitCamera(cfg)
	coord, err := stream.New(cfg, logger, cam.current, nil)
	if err != nil {
		logger.Fatalf("init: %v", err)
	}
	defer coord.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Observer.Enabled {
		srv := observer.NewServer(coord, logger)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Observer.Addr); err != nil {
				logger.Printf("observer: %v", err)
			}
		}()
		logger.Printf("observer listening on %s", cfg.Observer.Addr)
	}

	logger.Printf("streaming %dx%dx%d chunks (side %d), %d workers",
		cfg.World.DimsX, cfg.World.DimsY, cfg.World.DimsZ,
		cfg.World.ChunkSide, cfg.Stream.Workers)

	ticker := time.NewTicker(time.Duration(cfg.Stream.TickMillis) * time.Millisecond)
	defer ticker.Stop()
	report := time.NewTicker(5 * time.Second)
	defer report.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Printf("shutting down")
			return
		case now := <-ticker.C:
			cam.advance(now)
			if err := coord.Tick(ctx); err != nil {
				logger.Fatalf("tick: %v", err)
			}
		case <-report.C:
			s := coord.Stats()
			logger.Printf("tick=%d resident=%d visible=%d in-flight=%d parked=%d generated=%d evicted=%d",
				s.Tick, s.Resident, s.Visible, s.InFlight, s.Parked, s.Generated, s.Evicted)
		}
	}
}

// orbitCamera slowly circles the world center so the streamer keeps
// loading chunks entering the view and evicting the ones it left.
type orbitCamera struct {
	mu     sync.Mutex
	cfg    config.Settings
	center mgl32.Vec3
	radius float32
	angle  float64
	last   time.Time
}

func newOrbitCamera(cfg config.Settings) *orbitCamera {
	worldX := float32(cfg.World.DimsX * cfg.World.ChunkSide)
	worldY := float32(cfg.World.DimsY * cfg.World.ChunkSide)
	worldZ := float32(cfg.World.DimsZ * cfg.World.ChunkSide)
	return &orbitCamera{
		cfg:    cfg,
		center: mgl32.Vec3{worldX / 2, worldY / 2, worldZ / 2},
		radius: worldX * 0.75,
		last:   time.Now(),
	}
}

func (o *orbitCamera) advance(now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	dt := now.Sub(o.last).Seconds()
	o.last = now
	o.angle += dt * 0.1 // radians per second
	if o.angle > 2*math.Pi {
		o.angle -= 2 * math.Pi
	}
}

func (o *orbitCamera) current() cull.Camera {
	o.mu.Lock()
	defer o.mu.Unlock()
	pos := o.center.Add(mgl32.Vec3{
		o.radius * float32(math.Cos(o.angle)),
		o.center.Y(),
		o.radius * float32(math.Sin(o.angle)),
	})
	forward := o.center.Sub(pos).Normalize()
	return cull.NewCamera(
		pos, forward, mgl32.Vec3{0, 1, 0},
		mgl32.DegToRad(o.cfg.Stream.CameraFOVDegrees),
		o.cfg.Stream.CameraAspect,
		o.cfg.Stream.CameraNear,
		o.cfg.Stream.CameraFar,
	)
}
