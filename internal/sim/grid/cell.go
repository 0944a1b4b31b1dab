package grid

import "fmt"

// CellState is the status of one grid position.
type CellState uint8

const (
	Empty CellState = iota
	Obstacle
	Visited
	OnFire
)

func (s CellState) String() string {
	switch s {
	case Empty:
		return "EMPTY"
	case Obstacle:
		return "OBSTACLE"
	case Visited:
		return "VISITED"
	case OnFire:
		return "ON_FIRE"
	default:
		return fmt.Sprintf("CellState(%d)", uint8(s))
	}
}

// Pos is a (row, col) grid coordinate.
type Pos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Add offsets p by d.
func (p Pos) Add(d Pos) Pos {
	return Pos{Row: p.Row + d.Row, Col: p.Col + d.Col}
}

// Axis offsets in expansion order: down, right, left, up.
var dirs4 = [4]Pos{{Row: 1}, {Col: 1}, {Col: -1}, {Row: -1}}
