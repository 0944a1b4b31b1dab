package grid

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var ErrOutOfBounds = errors.New("position out of bounds")

// Grid is an N×N matrix of cell states stored row-major.
type Grid struct {
	n     int
	cells []CellState
}

// New returns an n×n grid with every cell Empty.
func New(n int) (*Grid, error) {
	if n < 1 {
		return nil, fmt.Errorf("grid dimension %d: must be >= 1", n)
	}
	return &Grid{n: n, cells: make([]CellState, n*n)}, nil
}

// FromRows builds a grid from a square matrix. Used by tests and fixtures.
func FromRows(rows [][]CellState) (*Grid, error) {
	g, err := New(len(rows))
	if err != nil {
		return nil, err
	}
	for r, row := range rows {
		if len(row) != g.n {
			return nil, fmt.Errorf("row %d has %d cells, want %d", r, len(row), g.n)
		}
		copy(g.cells[r*g.n:(r+1)*g.n], row)
	}
	return g, nil
}

func (g *Grid) Dim() int { return g.n }

func (g *Grid) Start() Pos { return Pos{} }

func (g *Grid) Goal() Pos { return Pos{Row: g.n - 1, Col: g.n - 1} }

func (g *Grid) InBounds(p Pos) bool {
	return p.Row >= 0 && p.Row < g.n && p.Col >= 0 && p.Col < g.n
}

func (g *Grid) index(p Pos) int {
	return p.Row*g.n + p.Col
}

// CellAt returns the state at p, or ErrOutOfBounds.
func (g *Grid) CellAt(p Pos) (CellState, error) {
	if !g.InBounds(p) {
		return 0, fmt.Errorf("cell %v in %dx%d grid: %w", p, g.n, g.n, ErrOutOfBounds)
	}
	return g.cells[g.index(p)], nil
}

// At is CellAt without the bounds check; p must be in bounds.
func (g *Grid) At(p Pos) CellState {
	return g.cells[g.index(p)]
}

// Set writes s at p, or returns ErrOutOfBounds.
func (g *Grid) Set(p Pos, s CellState) error {
	if !g.InBounds(p) {
		return fmt.Errorf("set %v in %dx%d grid: %w", p, g.n, g.n, ErrOutOfBounds)
	}
	g.cells[g.index(p)] = s
	return nil
}

// Put is Set without the bounds check; p must be in bounds.
func (g *Grid) Put(p Pos, s CellState) {
	g.cells[g.index(p)] = s
}

// Copy returns an independent snapshot of g.
func (g *Grid) Copy() *Grid {
	cells := make([]CellState, len(g.cells))
	copy(cells, g.cells)
	return &Grid{n: g.n, cells: cells}
}

// Neighbors4 returns the in-bounds axis neighbors of p in a fixed order.
func (g *Grid) Neighbors4(p Pos) []Pos {
	out := make([]Pos, 0, 4)
	for _, d := range dirs4 {
		np := p.Add(d)
		if g.InBounds(np) {
			out = append(out, np)
		}
	}
	return out
}

func (g *Grid) Count(s CellState) int {
	n := 0
	for _, c := range g.cells {
		if c == s {
			n++
		}
	}
	return n
}

// Each calls fn for every cell in row-major order.
func (g *Grid) Each(fn func(p Pos, s CellState)) {
	for i, c := range g.cells {
		fn(Pos{Row: i / g.n, Col: i % g.n}, c)
	}
}

// Digest is a hex sha256 over the dimension and cell bytes.
func (g *Grid) Digest() string {
	h := sha256.New()
	var dim [4]byte
	dim[0] = byte(g.n >> 24)
	dim[1] = byte(g.n >> 16)
	dim[2] = byte(g.n >> 8)
	dim[3] = byte(g.n)
	h.Write(dim[:])
	buf := make([]byte, len(g.cells))
	for i, c := range g.cells {
		buf[i] = byte(c)
	}
	h.Write(buf)
	return hex.EncodeToString(h.Sum(nil))
}
