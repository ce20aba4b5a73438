package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"worldforge.ai/internal/persistence/r2s3"
	"worldforge.ai/internal/sim/events"
)

type r2MirrorRuntime struct {
	enabled      bool
	rotateLayout string
	mirror       *r2s3.Mirror
}

func buildR2MirrorRuntime(dataDir string, logger *log.Logger) (*r2MirrorRuntime, error) {
	if !envBool("WF_R2_MIRROR", false) {
		return &r2MirrorRuntime{}, nil
	}
	cfg, ok := r2s3.ConfigFromEnv()
	if !ok {
		return nil, fmt.Errorf("WF_R2_MIRROR=true but WF_R2_ENDPOINT is empty")
	}
	client, err := r2s3.New(cfg)
	if err != nil {
		return nil, err
	}
	mirror := r2s3.NewMirror(client, dataDir, cfg.Prefix, r2s3.MirrorOptions{
		Workers:     envInt("WF_R2_UPLOAD_WORKERS", 2),
		EnqueueWait: time.Duration(envInt("WF_R2_ENQUEUE_WAIT_MS", 25)) * time.Millisecond,
	}, logger)
	return &r2MirrorRuntime{
		enabled: true,
		// Minute segments keep the mirrored event log close behind.
		rotateLayout: "2006-01-02-15-04",
		mirror:       mirror,
	}, nil
}

func (r *r2MirrorRuntime) Close() {
	if r == nil || r.mirror == nil {
		return
	}
	r.mirror.Close()
}

func (r *r2MirrorRuntime) Enqueue(localPath string) {
	if r == nil || !r.enabled || r.mirror == nil {
		return
	}
	r.mirror.Enqueue(localPath)
}

// Sink returns nil when mirroring is off so events.Multi skips it.
func (r *r2MirrorRuntime) Sink() events.Sink {
	if r == nil || !r.enabled || r.mirror == nil {
		return nil
	}
	return r.mirror
}

func (r *r2MirrorRuntime) Stats() r2s3.Stats {
	if r == nil || r.mirror == nil {
		return r2s3.Stats{}
	}
	return r.mirror.Stats()
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
