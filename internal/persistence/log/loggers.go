package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"worldforge.ai/internal/sim/events"
)

type Options struct {
	// RotateLayout is a time layout; a new segment starts whenever the
	// formatted UTC time changes. Defaults to hourly.
	RotateLayout string
	// OnClose receives the path of every finished segment.
	OnClose func(path string)
}

// JSONLZstdWriter appends JSON lines to zstd-compressed, time-rotated segments.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	opts    Options

	mu      sync.Mutex
	curSeg  string
	curPath string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string, opts Options) *JSONLZstdWriter {
	if opts.RotateLayout == "" {
		opts.RotateLayout = "2006-01-02-15"
	}
	return &JSONLZstdWriter{baseDir: baseDir, prefix: prefix, opts: opts}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	seg := time.Now().UTC().Format(w.opts.RotateLayout)
	if seg != w.curSeg {
		if err := w.rotateLocked(seg); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(seg string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathFor(seg)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curSeg = seg
	w.curPath = path
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
		if w.opts.OnClose != nil && w.curPath != "" {
			w.opts.OnClose(w.curPath)
		}
	}
	w.w = nil
	w.curSeg = ""
	return err1
}

func (w *JSONLZstdWriter) pathFor(seg string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, seg))
}

// EventLogger writes generation events under <worldDir>/events.
type EventLogger struct {
	w      *JSONLZstdWriter
	logger *stdlog.Logger
}

func NewEventLogger(worldDir string, opts Options, logger *stdlog.Logger) *EventLogger {
	return &EventLogger{
		w:      NewJSONLZstdWriter(filepath.Join(worldDir, "events"), "events", opts),
		logger: logger,
	}
}

// Emit never fails the caller; write errors are logged.
func (l *EventLogger) Emit(e events.Event) {
	if err := l.w.Write(e); err != nil && l.logger != nil {
		l.logger.Printf("event log: %v", err)
	}
}

func (l *EventLogger) Close() error { return l.w.Close() }
