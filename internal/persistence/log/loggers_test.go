package log

import (
	"io"
	"os"
	"sync"
	"testing"

	"firemaze.ai/internal/sim/grid"
	"firemaze.ai/internal/sim/strategy"
)

func TestTickLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir, "run-1")

	want := []strategy.TickEntry{
		{Trial: "a", Strategy: "replan", Tick: 0, Agent: grid.Pos{Row: 1, Col: 0}, Ignited: []grid.Pos{{Row: 2, Col: 2}}, Burning: 2, PlanHops: 4},
		{Trial: "a", Strategy: "replan", Tick: 1, Agent: grid.Pos{Row: 1, Col: 1}, Burning: 2, PlanHops: 3},
		{Trial: "a", Strategy: "replan", Tick: 2, Agent: grid.Pos{Row: 2, Col: 1}, Burning: 2, Event: strategy.ReasonEscaped},
	}
	for _, e := range want {
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if l.Lines() != int64(len(want)) {
		t.Fatalf("lines: got %d want %d", l.Lines(), len(want))
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if l.Path() != TickPath(dir, "run-1") {
		t.Fatalf("path: %s", l.Path())
	}

	got, err := ReadTicks(l.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("entries: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Tick != want[i].Tick || got[i].Agent != want[i].Agent || got[i].Event != want[i].Event {
			t.Fatalf("entry %d: got %+v want %+v", i, got[i], want[i])
		}
	}
	if len(got[0].Ignited) != 1 || got[0].Ignited[0] != (grid.Pos{Row: 2, Col: 2}) {
		t.Fatalf("ignited lost: %+v", got[0])
	}
}

func TestTickLogger_NoWritesNoFile(t *testing.T) {
	l := NewTickLogger(t.TempDir(), "empty")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(l.Path()); !os.IsNotExist(err) {
		t.Fatalf("expected no file, stat err=%v", err)
	}
}

func TestJSONLZstdWriter_WriteAfterClose(t *testing.T) {
	w := NewJSONLZstdWriter(TickPath(t.TempDir(), "x"))
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Write(map[string]int{"a": 1}); err == nil {
		t.Fatalf("expected error writing to closed writer")
	}
}

func TestTickLogger_ConcurrentWriters(t *testing.T) {
	l := NewTickLogger(t.TempDir(), "conc")
	const workers, per = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < per; j++ {
				if err := l.WriteTick(strategy.TickEntry{Strategy: "follow_plan", Tick: j, Agent: grid.Pos{Row: i}}); err != nil {
					t.Errorf("write: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	got, err := ReadTicks(l.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != workers*per {
		t.Fatalf("entries: got %d want %d", len(got), workers*per)
	}
}

func TestScanTicks_StopEarly(t *testing.T) {
	l := NewTickLogger(t.TempDir(), "stop")
	for i := 0; i < 10; i++ {
		if err := l.WriteTick(strategy.TickEntry{Tick: i}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	n := 0
	err := ScanTicks(l.Path(), func(e strategy.TickEntry) error {
		n++
		if e.Tick == 3 {
			return io.EOF
		}
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected scan to stop after 4 entries, got %d", n)
	}
}
