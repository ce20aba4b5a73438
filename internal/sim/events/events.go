// Package events carries generation and streaming events to whatever wants
// them: the compressed event log, the index database, the backup mirror.
package events

import "time"

const (
	KindPlanetStage   = "PLANET_STAGE"
	KindPlanetSaved   = "PLANET_SAVED"
	KindPlanetFailed  = "PLANET_FAILED"
	KindRegionStatus  = "REGION_STATUS"
	KindRegionFailed  = "REGION_FAILED"
	KindChunkSaved    = "CHUNK_SAVED"
	KindChunkLoaded   = "CHUNK_LOADED"
	KindChunkGenerate = "CHUNK_GENERATED"
)

type Event struct {
	Kind    string `json:"kind"`
	WorldID string `json:"world_id"`
	RunID   string `json:"run_id,omitempty"`
	TimeMS  int64  `json:"ts_ms"`

	Stage  string  `json:"stage,omitempty"`
	Region *[2]int `json:"region,omitempty"`
	Chunk  *[2]int `json:"chunk,omitempty"`
	Path   string  `json:"path,omitempty"`
	Bytes  int     `json:"bytes,omitempty"`
	SHA256 string  `json:"sha256,omitempty"`
	Error  string  `json:"error,omitempty"`

	Data map[string]any `json:"data,omitempty"`
}

// New stamps the current time.
func New(kind, worldID string) Event {
	return Event{Kind: kind, WorldID: worldID, TimeMS: time.Now().UnixMilli()}
}

func (e Event) WithRegion(x, y int) Event {
	e.Region = &[2]int{x, y}
	return e
}

func (e Event) WithChunk(x, y int) Event {
	e.Chunk = &[2]int{x, y}
	return e
}

// Sink must be safe for concurrent use and must not block for long.
type Sink interface {
	Emit(Event)
}

type discard struct{}

func (discard) Emit(Event) {}

// Discard drops every event.
var Discard Sink = discard{}

// Multi fans out to every non-nil sink in order.
type Multi []Sink

func (m Multi) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// Func adapts a function to a Sink.
type Func func(Event)

func (f Func) Emit(e Event) { f(e) }

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}
