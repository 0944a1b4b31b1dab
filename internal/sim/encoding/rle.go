package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"firemaze.ai/internal/sim/grid"
)

// EncodeGrid run-length encodes the cells of g in row-major order as
// base64(varint pairs), each pair being (cell_state, run_len).
func EncodeGrid(g *grid.Grid) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	var (
		cur grid.CellState
		run uint64
	)
	flush := func() {
		if run == 0 {
			return
		}
		n := binary.PutUvarint(tmp[:], uint64(cur))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], run)
		buf.Write(tmp[:n])
	}
	g.Each(func(_ grid.Pos, s grid.CellState) {
		if run > 0 && s == cur {
			run++
			return
		}
		flush()
		cur, run = s, 1
	})
	flush()

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeGrid rebuilds an n×n grid from EncodeGrid output.
func DecodeGrid(n int, b64 string) (*grid.Grid, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	g, err := grid.New(n)
	if err != nil {
		return nil, err
	}
	total := n * n
	cell := 0
	for i := 0; i < len(raw); {
		s, k := binary.Uvarint(raw[i:])
		if k <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += k
		run, k := binary.Uvarint(raw[i:])
		if k <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += k
		if s > uint64(grid.OnFire) {
			return nil, fmt.Errorf("cell state out of range: %d", s)
		}
		if run == 0 || run > uint64(total-cell) {
			return nil, fmt.Errorf("run of %d at cell %d overflows %d cells", run, cell, total)
		}
		for end := cell + int(run); cell < end; cell++ {
			g.Put(grid.Pos{Row: cell / n, Col: cell % n}, grid.CellState(s))
		}
	}
	if cell != total {
		return nil, fmt.Errorf("layout covers %d of %d cells", cell, total)
	}
	return g, nil
}
