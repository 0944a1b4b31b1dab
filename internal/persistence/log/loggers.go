package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"firemaze.ai/internal/sim/strategy"
)

// JSONLZstdWriter appends JSON lines to a zstd-compressed file. The file is
// opened on first write; entries become readable once the writer is closed.
type JSONLZstdWriter struct {
	path string

	mu     sync.Mutex
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
	lines  int64
	closed bool
}

func NewJSONLZstdWriter(path string) *JSONLZstdWriter {
	return &JSONLZstdWriter{path: path}
}

func (w *JSONLZstdWriter) Path() string { return w.path }

// Lines reports how many entries have been written.
func (w *JSONLZstdWriter) Lines() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("jsonl writer closed")
	}
	if w.w == nil {
		if err := w.openLocked(); err != nil {
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
	w.lines++
	return nil
}

func (w *JSONLZstdWriter) openLocked() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
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
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		err1 = w.w.Flush()
	}
	if w.enc != nil {
		if err := w.enc.Close(); err1 == nil {
			err1 = err
		}
		w.enc = nil
	}
	if w.f != nil {
		if err := w.f.Close(); err1 == nil {
			err1 = err
		}
		w.f = nil
	}
	w.w = nil
	return err1
}

// TickPath is where a run's tick log lives under dataDir.
func TickPath(dataDir, runID string) string {
	return filepath.Join(dataDir, "ticks", fmt.Sprintf("%s.jsonl.zst", runID))
}

// TickLogger records one compressed JSONL entry per strategy tick. It
// satisfies strategy.TickSink and is safe for concurrent trials.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(dataDir, runID string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(TickPath(dataDir, runID))}
}

func (l *TickLogger) WriteTick(e strategy.TickEntry) error { return l.w.Write(e) }
func (l *TickLogger) Path() string                         { return l.w.Path() }
func (l *TickLogger) Lines() int64                         { return l.w.Lines() }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// ScanTicks streams the entries of a tick log to fn in file order. Returning
// io.EOF from fn stops the scan without error.
func ScanTicks(path string, fn func(strategy.TickEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		var e strategy.TickEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if err := fn(e); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
	return sc.Err()
}

// ReadTicks loads a whole tick log.
func ReadTicks(path string) ([]strategy.TickEntry, error) {
	var out []strategy.TickEntry
	err := ScanTicks(path, func(e strategy.TickEntry) error {
		out = append(out, e)
		return nil
	})
	return out, err
}
