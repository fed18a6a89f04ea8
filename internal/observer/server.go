// Package observer exposes a loopback HTTP/websocket endpoint for
// inspecting a running coordinator and feeding it edit commands. It is
// a development surface: connections from non-loopback addresses are
// rejected.
package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"voxelstream/internal/command"
	"voxelstream/internal/stream"
	"voxelstream/internal/world"
)

// Server serves coordinator stats and accepts edits.
type Server struct {
	coord *stream.Coordinator
	log   *log.Logger

	upgrader     websocket.Upgrader
	pushInterval time.Duration
}

// NewServer creates an observer for coord.
func NewServer(coord *stream.Coordinator, logger *log.Logger) *Server {
	return &Server{
		coord: coord,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		pushInterval: 250 * time.Millisecond,
	}
}

// Routes returns the observer's HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.guard(s.handleStats))
	mux.HandleFunc("/edit", s.guard(s.handleEdit))
	mux.HandleFunc("/noise", s.guard(s.handleNoise))
	mux.HandleFunc("/watch", s.guard(s.handleWatch))
	return mux
}

// ListenAndServe blocks until ctx is canceled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Routes()}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) guard(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func (s *Server) handleStats(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(rw, s.coord.Stats())
}

// editRequest is the wire form of a world edit.
type editRequest struct {
	Op    string  `json:"op"`
	Pos   *[3]int `json:"pos,omitempty"`
	From  *[3]int `json:"from,omitempty"`
	To    *[3]int `json:"to,omitempty"`
	ID    uint16  `json:"id,omitempty"`
	Sizes *[3]int `json:"sizes,omitempty"`
}

func (s *Server) handleEdit(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	cmd, err := req.toCommand()
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.coord.Queue().Enqueue(cmd); err != nil {
		// Closed queue means the pipeline is shutting down.
		http.Error(rw, err.Error(), http.StatusServiceUnavailable)
		return
	}
	rw.WriteHeader(http.StatusAccepted)
}

func (r editRequest) toCommand() (command.Command, error) {
	switch r.Op {
	case "set_voxel":
		if r.Pos == nil {
			return nil, errors.New("set_voxel requires pos")
		}
		return command.SetVoxel{
			Pos: world.VoxelPos{X: r.Pos[0], Y: r.Pos[1], Z: r.Pos[2]},
			ID:  world.VoxelID(r.ID),
		}, nil
	case "fill_voxels":
		if r.From == nil || r.To == nil {
			return nil, errors.New("fill_voxels requires from and to")
		}
		return command.FillVoxels{
			From: world.VoxelPos{X: r.From[0], Y: r.From[1], Z: r.From[2]},
			To:   world.VoxelPos{X: r.To[0], Y: r.To[1], Z: r.To[2]},
			ID:   world.VoxelID(r.ID),
		}, nil
	case "drop_all_meshes":
		return command.DropAllMeshes{}, nil
	case "generate_new":
		if r.Sizes == nil {
			return nil, errors.New("generate_new requires sizes")
		}
		return command.GenerateNew{
			Sizes: world.Dims{X: r.Sizes[0], Y: r.Sizes[1], Z: r.Sizes[2]},
		}, nil
	case "rebuild_noise":
		return command.RebuildNoise{}, nil
	default:
		return nil, fmt.Errorf("unknown op %q", r.Op)
	}
}

// noiseRequest tunes the field. Only present fields are applied;
// rebuild enqueues the regeneration.
type noiseRequest struct {
	Seed        *uint32  `json:"seed,omitempty"`
	Frequency   *float32 `json:"frequency,omitempty"`
	Octaves     *int     `json:"octaves,omitempty"`
	Persistence *float32 `json:"persistence,omitempty"`
	Lacunarity  *float32 `json:"lacunarity,omitempty"`
	Rebuild     bool     `json:"rebuild,omitempty"`
}

func (s *Server) handleNoise(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(rw, s.coord.Field().Params())
	case http.MethodPost:
		var req noiseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		field := s.coord.Field()
		if req.Seed != nil {
			field.SetSeed(*req.Seed)
		}
		if req.Frequency != nil {
			field.SetFrequency(*req.Frequency)
		}
		if req.Octaves != nil {
			field.SetOctaves(*req.Octaves)
		}
		if req.Persistence != nil {
			field.SetPersistence(*req.Persistence)
		}
		if req.Lacunarity != nil {
			field.SetLacunarity(*req.Lacunarity)
		}
		if req.Rebuild {
			if err := s.coord.Queue().Enqueue(command.RebuildNoise{}); err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		writeJSON(rw, field.Params())
	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleWatch upgrades to a websocket and pushes a stats snapshot at a
// fixed cadence until the peer goes away.
func (s *Server) handleWatch(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		s.log.Printf("observer: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Reader goroutine only notices closure.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(s.coord.Stats()); err != nil {
				return
			}
		}
	}
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	host = strings.Trim(host, "[]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
