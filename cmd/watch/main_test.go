package main

import (
	"encoding/json"
	"io"
	"log"
	"testing"

	"worldforge.ai/internal/observerproto"
	"worldforge.ai/internal/sim/encoding"
)

func TestCache_ChunkAndEvict(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	c := newCache()
	id := observerproto.ChunkID{Region: [2]int{1, 2}, Chunk: [2]int{8, 0}}

	chunk, _ := json.Marshal(observerproto.ChunkMsg{
		Type: "CHUNK", ProtocolVersion: observerproto.Version, ChunkID: id,
		Encoding: "RLE_U16", Data: encoding.EncodeRLE([]uint16{1, 1, 1, 3}),
	})
	c.handle(chunk, logger, 1)
	if got := c.chunks[id]; len(got) != 4 || got[3] != 3 {
		t.Fatalf("cached=%v", got)
	}

	status, _ := json.Marshal(observerproto.StatusMsg{Type: "STATUS", Seq: 2})
	c.handle(status, logger, 1)

	evict, _ := json.Marshal(observerproto.ChunkEvictMsg{Type: "CHUNK_EVICT", ChunkID: id})
	c.handle(evict, logger, 1)
	if len(c.chunks) != 0 || c.bad != 0 {
		t.Fatalf("chunks=%d bad=%d", len(c.chunks), c.bad)
	}

	c.handle([]byte("{"), logger, 1)
	bad, _ := json.Marshal(observerproto.ChunkMsg{Type: "CHUNK", Encoding: "RAW"})
	c.handle(bad, logger, 1)
	if c.bad != 2 {
		t.Fatalf("bad=%d", c.bad)
	}
}
