// Package observerproto is the wire format of the read-only observer feed.
package observerproto

// Version is the observer protocol version.
const Version = "0.2"

// Client -> Server. First message on the observer WS connection; may be
// re-sent to change settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// Chunks enables CHUNK/CHUNK_EVICT messages for the resident set.
	Chunks    bool `json:"chunks"`
	MaxChunks int  `json:"max_chunks"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	WorldParams     WorldParams `json:"world_params"`
	TilePalette     []TileInfo  `json:"tile_palette"`
}

type WorldParams struct {
	Width        int `json:"width"`
	Height       int `json:"height"`
	RegionWidth  int `json:"region_width"`
	RegionHeight int `json:"region_height"`
	ChunkSize    int `json:"chunk_size"`
	PushHz       int `json:"push_hz"`
}

type TileInfo struct {
	Code  uint16 `json:"code"`
	Name  string `json:"name"`
	Glyph string `json:"glyph"`
}

// Server -> Client. Sent at the push rate.
type StatusMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq"`

	Planet  PlanetState   `json:"planet"`
	Regions []RegionState `json:"regions"`
	Stream  StreamState   `json:"stream"`
}

type PlanetState struct {
	Status string `json:"status"`
	Done   bool   `json:"done"`
	Error  string `json:"error,omitempty"`
}

type RegionState struct {
	Region       [2]int `json:"region"`
	Status       string `json:"status"`
	ChunksLoaded int    `json:"chunks_loaded"`
	ChunksTotal  int    `json:"chunks_total"`
	Error        string `json:"error,omitempty"`
}

type StreamState struct {
	Tick          uint64    `json:"tick"`
	Viewer        Viewer    `json:"viewer"`
	Resident      []ChunkID `json:"resident"`
	Dirty         []ChunkID `json:"dirty,omitempty"`
	QueuedCreate  int       `json:"queued_create"`
	QueuedDestroy int       `json:"queued_destroy"`
	InFlight      int       `json:"in_flight"`
	Failed        int       `json:"failed"`
}

type Viewer struct {
	Region [2]int `json:"region"`
	Tile   [2]int `json:"tile"`
}

type ChunkID struct {
	Region [2]int `json:"region"`
	Chunk  [2]int `json:"chunk"`
}

// Server -> Client. Full tile codes of a chunk, row-major.
// Encoding "RLE_U16" is base64 of (code, run) uvarint pairs.
type ChunkMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ChunkID
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
}

// Server -> Client. Drop a chunk from the client cache.
type ChunkEvictMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ChunkID
}
