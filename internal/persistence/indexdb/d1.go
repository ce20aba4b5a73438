package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"worldforge.ai/internal/sim/events"
)

// D1Config points the remote index at an HTTP ingest endpoint that accepts
// {"events": [...]} batches.
type D1Config struct {
	Endpoint      string
	Token         string
	WorldID       string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	// RetryBase is the first backoff step; it doubles per attempt.
	RetryBase time.Duration
	Logger    *log.Logger
}

// D1Index forwards persisted generation output to a remote index. It is an
// events.Sink; only saves and region transitions leave the process.
type D1Index struct {
	cfg        D1Config
	httpClient *http.Client

	ch   chan events.Event
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropped   atomic.Uint64
	sent      atomic.Uint64
	flushFail atomic.Uint64
}

func OpenD1(cfg D1Config) (*D1Index, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.WorldID = strings.TrimSpace(cfg.WorldID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty d1 ingest endpoint")
	}
	if cfg.WorldID == "" {
		return nil, fmt.Errorf("empty world id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 100 * time.Millisecond
	}

	d := &D1Index{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		ch:         make(chan events.Event, 32768),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

// Close flushes what is queued and stops the sender.
func (d *D1Index) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *D1Index) Emit(e events.Event) {
	if d == nil || d.closed.Load() {
		return
	}
	switch e.Kind {
	case events.KindPlanetSaved, events.KindPlanetFailed,
		events.KindRegionStatus, events.KindRegionFailed,
		events.KindChunkSaved:
	default:
		return
	}
	if e.WorldID == "" {
		e.WorldID = d.cfg.WorldID
	}
	select {
	case d.ch <- e:
	default:
		d.dropped.Add(1)
		d.printf("d1 index queue full; drop kind=%s world=%s", e.Kind, e.WorldID)
	}
}

type D1Stats struct {
	QueueDepth     int
	DropTotal      uint64
	SentTotal      uint64
	FlushFailTotal uint64
}

func (d *D1Index) Stats() D1Stats {
	return D1Stats{
		QueueDepth:     len(d.ch),
		DropTotal:      d.dropped.Load(),
		SentTotal:      d.sent.Load(),
		FlushFailTotal: d.flushFail.Load(),
	}
}

func (d *D1Index) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	// A failed batch is kept and retried on the next flush, bounded so a dead
	// endpoint cannot grow it without limit.
	maxRetained := d.cfg.BatchSize * 16
	batch := make([]events.Event, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.flushFail.Add(1)
			d.printf("d1 index flush failed batch=%d err=%v", len(batch), err)
			if over := len(batch) - maxRetained; over > 0 {
				d.dropped.Add(uint64(over))
				batch = append(batch[:0], batch[over:]...)
			}
			return
		}
		d.sent.Add(uint64(len(batch)))
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *D1Index) sendBatch(batch []events.Event) error {
	body := struct {
		Events []events.Event `json:"events"`
	}{Events: batch}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")
		if d.cfg.Token != "" {
			req.Header.Set("x-wf-index-token", d.cfg.Token)
		}

		resp, err := d.httpClient.Do(req)
		if err == nil {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		lastErr = err
		time.Sleep(d.cfg.RetryBase * time.Duration(1<<attempt))
	}
	return lastErr
}

func (d *D1Index) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
