package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"worldforge.ai/internal/observerproto"
	"worldforge.ai/internal/sim/encoding"
	"worldforge.ai/internal/sim/region"
	"worldforge.ai/internal/sim/spatial"
	"worldforge.ai/internal/sim/stream"
	"worldforge.ai/internal/sim/tile"
)

type Config struct {
	WorldID string
	Dims    spatial.Dims
	PushHz  int
}

// PlanetFunc reports the current planet generation state.
type PlanetFunc func() observerproto.PlanetState

// Server is a read-only feed of generation progress and the resident chunk
// set. Only loopback clients are accepted.
type Server struct {
	cfg     Config
	stream  *stream.Manager
	regions *region.Table
	planet  PlanetFunc
	log     *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	seq      atomic.Uint64
	active   atomic.Int64
}

func NewServer(cfg Config, sm *stream.Manager, regions *region.Table, planet PlanetFunc, logger *log.Logger) *Server {
	if cfg.PushHz <= 0 {
		cfg.PushHz = 2
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Server{
		cfg:     cfg,
		stream:  sm,
		regions: regions,
		planet:  planet,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Sessions is the number of connected observers.
func (s *Server) Sessions() int { return int(s.active.Load()) }

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		d := s.cfg.Dims
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         s.cfg.WorldID,
			WorldParams: observerproto.WorldParams{
				Width:        d.WorldWidth,
				Height:       d.WorldHeight,
				RegionWidth:  d.RegionWidth,
				RegionHeight: d.RegionHeight,
				ChunkSize:    d.ChunkSize,
				PushHz:       s.cfg.PushHz,
			},
		}
		for _, t := range tile.All() {
			resp.TilePalette = append(resp.TilePalette, observerproto.TileInfo{
				Code:  t.Code(),
				Name:  t.String(),
				Glyph: string(t.Glyph()),
			})
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// StatusHandler serves the same status frame the websocket pushes.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.Status())
	}
}

// Status builds one status frame.
func (s *Server) Status() observerproto.StatusMsg {
	msg := observerproto.StatusMsg{
		Type:            "STATUS",
		ProtocolVersion: observerproto.Version,
		Seq:             s.seq.Add(1),
		Regions:         []observerproto.RegionState{},
	}
	if s.planet != nil {
		msg.Planet = s.planet()
	}
	if s.regions != nil {
		for _, rs := range s.regions.Summaries() {
			msg.Regions = append(msg.Regions, observerproto.RegionState{
				Region:       [2]int{rs.Location.X, rs.Location.Y},
				Status:       rs.Status,
				ChunksLoaded: rs.ChunksLoaded,
				ChunksTotal:  rs.ChunksTotal,
				Error:        rs.Error,
			})
		}
	}
	if s.stream != nil {
		rep := s.stream.LastReport()
		v := s.stream.Viewer()
		msg.Stream = observerproto.StreamState{
			Tick: rep.Tick,
			Viewer: observerproto.Viewer{
				Region: [2]int{v.Region.X, v.Region.Y},
				Tile:   [2]int{v.Tile.X, v.Tile.Y},
			},
			Resident:      chunkIDs(rep.Resident),
			Dirty:         chunkIDs(rep.Dirty),
			QueuedCreate:  rep.QueuedCreate,
			QueuedDestroy: rep.QueuedDestroy,
			InFlight:      rep.InFlight,
			Failed:        rep.Failed,
		}
	}
	return msg
}

type session struct {
	id string

	mu        sync.Mutex
	chunks    bool
	maxChunks int

	// Only touched by the writer goroutine.
	sent map[stream.Key][32]byte
}

func (ss *session) settings() (bool, int) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.chunks, ss.maxChunks
}

func (ss *session) apply(sub observerproto.SubscribeMsg) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.chunks = sub.Chunks
	ss.maxChunks = sub.MaxChunks
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		ss := &session{id: fmt.Sprintf("O%d", s.nextID.Add(1)), sent: map[stream.Key][32]byte{}}
		ss.apply(sub)
		s.active.Add(1)
		defer s.active.Add(-1)
		s.log.Printf("observer %s connected from %s", ss.id, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			writeErr <- s.writeLoop(ctx, conn, ss)
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := parseSubscribe(msg); ok {
				ss.apply(sub)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		s.log.Printf("observer %s disconnected", ss.id)
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, ss *session) error {
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.PushHz))
	defer ticker.Stop()
	for {
		for _, b := range s.frame(ss) {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// frame returns the messages for one push: a status frame, then chunk
// updates and evictions relative to what the session was already sent.
func (s *Server) frame(ss *session) [][]byte {
	var out [][]byte
	if b, err := json.Marshal(s.Status()); err == nil {
		out = append(out, b)
	}
	if s.stream == nil {
		return out
	}

	withChunks, maxChunks := ss.settings()
	resident := s.stream.LastReport().Resident
	want := map[stream.Key]bool{}
	if withChunks {
		for _, k := range resident {
			if len(want) >= maxChunks {
				break
			}
			want[k] = true
		}
	}

	for k := range ss.sent {
		if want[k] {
			continue
		}
		delete(ss.sent, k)
		b, _ := json.Marshal(observerproto.ChunkEvictMsg{
			Type:            "CHUNK_EVICT",
			ProtocolVersion: observerproto.Version,
			ChunkID:         chunkID(k),
		})
		out = append(out, b)
	}
	for _, k := range resident {
		if !want[k] {
			continue
		}
		codes, digest, ok := s.stream.ChunkView(k)
		if !ok {
			continue
		}
		if prev, seen := ss.sent[k]; seen && prev == digest {
			continue
		}
		ss.sent[k] = digest
		b, _ := json.Marshal(observerproto.ChunkMsg{
			Type:            "CHUNK",
			ProtocolVersion: observerproto.Version,
			ChunkID:         chunkID(k),
			Encoding:        "RLE_U16",
			Data:            encoding.EncodeRLE(codes),
		})
		out = append(out, b)
	}
	return out
}

func parseSubscribe(raw []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(raw, &sub); err != nil {
		return sub, false
	}
	if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	normalizeSubscribe(&sub)
	return sub, true
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.MaxChunks <= 0 {
		sub.MaxChunks = 256
	}
	if sub.MaxChunks > 4096 {
		sub.MaxChunks = 4096
	}
}

func chunkID(k stream.Key) observerproto.ChunkID {
	return observerproto.ChunkID{
		Region: [2]int{k.Region.X, k.Region.Y},
		Chunk:  [2]int{k.Chunk.X, k.Chunk.Y},
	}
}

func chunkIDs(keys []stream.Key) []observerproto.ChunkID {
	out := make([]observerproto.ChunkID, 0, len(keys))
	for _, k := range keys {
		out = append(out, chunkID(k))
	}
	return out
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
