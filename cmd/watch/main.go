package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"worldforge.ai/internal/observerproto"
	"worldforge.ai/internal/sim/encoding"
)

// watch follows a running worldgen through the observer feed and logs
// generation progress and the resident chunk set.
func main() {
	var (
		url       = flag.String("url", "ws://127.0.0.1:8080/v1/observer/ws", "observer ws url")
		chunks    = flag.Bool("chunks", true, "subscribe to chunk contents")
		maxChunks = flag.Int("max_chunks", 256, "chunk cap requested from the server")
		every     = flag.Uint64("every", 10, "log every Nth status message")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: observerproto.Version,
		Chunks:          *chunks,
		MaxChunks:       *maxChunks,
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	c := newCache()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("closed: %v", err)
			return
		}
		c.handle(msg, logger, *every)
	}
}

// maxChunkTiles bounds one decoded chunk.
const maxChunkTiles = 1 << 20

type cache struct {
	chunks map[observerproto.ChunkID][]uint16
	bad    int
}

func newCache() *cache {
	return &cache{chunks: map[observerproto.ChunkID][]uint16{}}
}

func (c *cache) handle(msg []byte, logger *log.Logger, every uint64) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &base); err != nil {
		c.bad++
		return
	}
	switch base.Type {
	case "STATUS":
		var st observerproto.StatusMsg
		if err := json.Unmarshal(msg, &st); err != nil {
			c.bad++
			return
		}
		if every > 0 && st.Seq%every != 0 {
			return
		}
		done := 0
		for _, r := range st.Regions {
			if r.Status == "done" {
				done++
			}
		}
		logger.Printf("seq=%d planet=%s regions=%d/%d viewer=%v/%v resident=%d cached=%d queued=+%d/-%d failed=%d",
			st.Seq, st.Planet.Status, done, len(st.Regions), st.Stream.Viewer.Region, st.Stream.Viewer.Tile,
			len(st.Stream.Resident), len(c.chunks), st.Stream.QueuedCreate, st.Stream.QueuedDestroy, st.Stream.Failed)
		if st.Planet.Error != "" {
			logger.Printf("planet error: %s", st.Planet.Error)
		}
	case "CHUNK":
		var m observerproto.ChunkMsg
		if err := json.Unmarshal(msg, &m); err != nil || m.Encoding != "RLE_U16" {
			c.bad++
			return
		}
		codes, err := encoding.DecodeRLE(m.Data, maxChunkTiles)
		if err != nil {
			c.bad++
			logger.Printf("chunk %v/%v: %v", m.Region, m.Chunk, err)
			return
		}
		c.chunks[m.ChunkID] = codes
	case "CHUNK_EVICT":
		var m observerproto.ChunkEvictMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			c.bad++
			return
		}
		delete(c.chunks, m.ChunkID)
	}
}
