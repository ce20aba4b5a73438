package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"worldforge.ai/internal/sim/catalogs"
	"worldforge.ai/internal/sim/events"
	"worldforge.ai/internal/sim/tuning"
)

// SQLiteIndex is a secondary, queryable index of generation output. Writes
// go through a buffered channel to one writer goroutine; the event log stays
// the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropped atomic.Uint64
	written atomic.Uint64
}

type reqKind int

const (
	reqPlanet reqKind = iota + 1
	reqRegion
	reqChunk
)

type req struct {
	kind  reqKind
	event events.Event
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// A region divide emits one save per chunk in a burst.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

// OpenReadOnly opens an existing index for queries without a writer.
func OpenReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS planets (
			world_id TEXT NOT NULL,
			sha256 TEXT NOT NULL,
			run_id TEXT NOT NULL,
			seed TEXT NOT NULL,
			path TEXT NOT NULL,
			bytes INTEGER NOT NULL,
			water_height INTEGER NOT NULL,
			plains_height INTEGER NOT NULL,
			hills_height INTEGER NOT NULL,
			rivers INTEGER NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (world_id, sha256)
		);`,
		`CREATE TABLE IF NOT EXISTS regions (
			world_id TEXT NOT NULL,
			rx INTEGER NOT NULL,
			ry INTEGER NOT NULL,
			stage TEXT NOT NULL,
			error TEXT,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (world_id, rx, ry)
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			world_id TEXT NOT NULL,
			rx INTEGER NOT NULL,
			ry INTEGER NOT NULL,
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			path TEXT NOT NULL,
			bytes INTEGER NOT NULL,
			sha256 TEXT NOT NULL,
			trees INTEGER NOT NULL,
			plants INTEGER NOT NULL,
			saves INTEGER NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (world_id, rx, ry, cx, cy)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_updated ON chunks(world_id, updated_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Emit implements events.Sink. Events the index does not store are ignored.
func (s *SQLiteIndex) Emit(e events.Event) {
	if s == nil || s.closed.Load() {
		return
	}
	var kind reqKind
	switch e.Kind {
	case events.KindPlanetSaved:
		kind = reqPlanet
	case events.KindRegionStatus, events.KindRegionFailed:
		if e.Region == nil {
			return
		}
		kind = reqRegion
	case events.KindChunkSaved:
		if e.Region == nil || e.Chunk == nil {
			return
		}
		kind = reqChunk
	default:
		return
	}
	select {
	case s.ch <- req{kind: kind, event: e}:
	default:
		// Drop if the indexer falls behind.
		s.dropped.Add(1)
	}
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	DropTotal     uint64
	WrittenTotal  uint64
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTotal:     s.dropped.Load(),
		WrittenTotal:  s.written.Load(),
	}
}

// UpsertCatalog records the loaded bundles and the applied tuning.
func (s *SQLiteIndex) UpsertCatalog(cat *catalogs.Catalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	for _, t := range []struct {
		name string
		v    any
	}{{"biomes", cat.Biomes}, {"materials", cat.Materials}, {"plants", cat.Plants}} {
		b, err := json.Marshal(t.v)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: t.name, digest: hex.EncodeToString(sum[:]), json: b})
	}
	if b, err := json.Marshal(cat.BundleDigests); err == nil {
		rows = append(rows, kv{name: "bundles", digest: cat.Digest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertPlanet, _ := s.db.Prepare(`INSERT OR REPLACE INTO planets(world_id,sha256,run_id,seed,path,bytes,water_height,plains_height,hills_height,rivers,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	upsertRegion, _ := s.db.Prepare(`INSERT INTO regions(world_id,rx,ry,stage,error,updated_at) VALUES(?,?,?,?,?,?)
		ON CONFLICT(world_id,rx,ry) DO UPDATE SET stage=CASE WHEN excluded.stage='' THEN regions.stage ELSE excluded.stage END,
			error=excluded.error, updated_at=excluded.updated_at`)
	upsertChunk, _ := s.db.Prepare(`INSERT INTO chunks(world_id,rx,ry,cx,cy,path,bytes,sha256,trees,plants,saves,updated_at) VALUES(?,?,?,?,?,?,?,?,?,?,1,?)
		ON CONFLICT(world_id,rx,ry,cx,cy) DO UPDATE SET path=excluded.path, bytes=excluded.bytes, sha256=excluded.sha256,
			trees=excluded.trees, plants=excluded.plants, saves=chunks.saves+1, updated_at=excluded.updated_at`)
	defer func() {
		for _, st := range []*sql.Stmt{insertPlanet, upsertRegion, upsertChunk} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err == nil {
			s.written.Add(uint64(opCount))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		e := r.event
		at := time.UnixMilli(e.TimeMS).UTC().Format(time.RFC3339Nano)
		var err error
		switch r.kind {
		case reqPlanet:
			if insertPlanet == nil {
				continue
			}
			_, err = tx.Stmt(insertPlanet).Exec(
				e.WorldID, e.SHA256, e.RunID,
				dataString(e.Data, "seed"), e.Path, e.Bytes,
				dataInt(e.Data, "water_height"), dataInt(e.Data, "plains_height"), dataInt(e.Data, "hills_height"),
				dataInt(e.Data, "rivers"), at,
			)
		case reqRegion:
			if upsertRegion == nil {
				continue
			}
			var errText any
			if e.Error != "" {
				errText = e.Error
			}
			_, err = tx.Stmt(upsertRegion).Exec(e.WorldID, e.Region[0], e.Region[1], e.Stage, errText, at)
		case reqChunk:
			if upsertChunk == nil {
				continue
			}
			_, err = tx.Stmt(upsertChunk).Exec(
				e.WorldID, e.Region[0], e.Region[1], e.Chunk[0], e.Chunk[1],
				e.Path, e.Bytes, e.SHA256,
				dataInt(e.Data, "trees"), dataInt(e.Data, "plants"), at,
			)
		}
		if err != nil {
			rollback()
			continue
		}
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}

func dataInt(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case uint32:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func dataString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
