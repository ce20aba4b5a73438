package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"worldforge.ai/internal/persistence/indexdb"
	"worldforge.ai/internal/sim/catalogs"
	"worldforge.ai/internal/sim/events"
	"worldforge.ai/internal/sim/tuning"
)

// runtimeIndex is the read-model backend fed by generation events.
type runtimeIndex interface {
	events.Sink
	Close() error
}

// catalogIndex is implemented by backends that also record the catalogs.
type catalogIndex interface {
	UpsertCatalog(cat *catalogs.Catalog, tune tuning.Tuning) error
}

func indexPath(worldDir string) string { return filepath.Join(worldDir, "index", "world.sqlite") }

func openRuntimeIndex(worldDir, worldID string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("WF_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(indexPath(worldDir))
	case "d1":
		endpoint := strings.TrimSpace(os.Getenv("WF_INDEX_D1_INGEST_URL"))
		if endpoint == "" {
			return nil, fmt.Errorf("WF_INDEX_BACKEND=d1 but WF_INDEX_D1_INGEST_URL is empty")
		}
		return indexdb.OpenD1(indexdb.D1Config{
			Endpoint:      endpoint,
			Token:         strings.TrimSpace(os.Getenv("WF_INDEX_D1_TOKEN")),
			WorldID:       worldID,
			BatchSize:     envInt("WF_INDEX_D1_BATCH_SIZE", 128),
			FlushInterval: time.Duration(envInt("WF_INDEX_D1_FLUSH_MS", 500)) * time.Millisecond,
			Logger:        logger,
		})
	default:
		return nil, fmt.Errorf("unsupported WF_INDEX_BACKEND: %s", backend)
	}
}
