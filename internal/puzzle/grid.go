package puzzle

import (
	"encoding/json"
	"fmt"
)

// GridSize is the fixed width and height of every puzzle grid
const GridSize = 10

// Direction is the orientation of a word placement
type Direction string

const (
	Horizontal Direction = "horizontal"
	Vertical   Direction = "vertical"
)

// WordPlacement is one word of a level: its text, origin cell, direction and clue
type WordPlacement struct {
	ID        string    `json:"id" yaml:"id"`
	Word      string    `json:"word" yaml:"word"`
	X         int       `json:"x" yaml:"x"`
	Y         int       `json:"y" yaml:"y"`
	Direction Direction `json:"direction" yaml:"direction"`
	Clue      string    `json:"clue" yaml:"clue"`
}

// Position is a cell coordinate; X is the column and Y the row
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Cells returns the positions covered by the word, in reading order
func (w WordPlacement) Cells() []Position {
	letters := []rune(w.Word)
	cells := make([]Position, len(letters))
	for i := range letters {
		if w.Direction == Vertical {
			cells[i] = Position{X: w.X, Y: w.Y + i}
		} else {
			cells[i] = Position{X: w.X + i, Y: w.Y}
		}
	}
	return cells
}

// IndexOf returns the offset of (x, y) within the word, or -1 when the word does not cover it
func (w WordPlacement) IndexOf(x, y int) int {
	for i, p := range w.Cells() {
		if p.X == x && p.Y == y {
			return i
		}
	}
	return -1
}

// LetterAt returns the target letter at offset i
func (w WordPlacement) LetterAt(i int) string {
	letters := []rune(w.Word)
	if i < 0 || i >= len(letters) {
		return ""
	}
	return string(letters[i])
}

// Level is the puzzle definition for one calendar date
type Level struct {
	ID    int64           `json:"id"`
	Date  string          `json:"date"`
	Words []WordPlacement `json:"words"`
}

// WordByID looks up a placement by its ID
func (l *Level) WordByID(id string) (WordPlacement, bool) {
	for _, w := range l.Words {
		if w.ID == id {
			return w, true
		}
	}
	return WordPlacement{}, false
}

// WordsAt returns every placement covering (x, y), in level order
func (l *Level) WordsAt(x, y int) []WordPlacement {
	var out []WordPlacement
	for _, w := range l.Words {
		if w.IndexOf(x, y) >= 0 {
			out = append(out, w)
		}
	}
	return out
}

// Cell is a playable grid square
type Cell struct {
	Letter       string `json:"letter"`
	IsRevealed   bool   `json:"isRevealed"`
	IsBombEffect bool   `json:"isBombEffect,omitempty"`
}

// Grid is indexed [y][x]; a nil cell is not part of any word
type Grid [][]*Cell

// BuildEmptyGrid derives the starting grid for a level. Out-of-bounds placements are
// expected to have been rejected by ValidateLevel; any cells outside the grid are skipped.
func BuildEmptyGrid(level *Level) Grid {
	grid := make(Grid, GridSize)
	for y := range grid {
		grid[y] = make([]*Cell, GridSize)
	}
	if level == nil {
		return grid
	}
	for _, w := range level.Words {
		for _, p := range w.Cells() {
			if !inBounds(p.X, p.Y) {
				continue
			}
			if grid[p.Y][p.X] == nil {
				grid[p.Y][p.X] = &Cell{}
			}
		}
	}
	return grid
}

// At returns the cell at (x, y), or nil when it is inert or out of bounds
func (g Grid) At(x, y int) *Cell {
	if y < 0 || y >= len(g) || x < 0 || x >= len(g[y]) {
		return nil
	}
	return g[y][x]
}

// Clone returns a deep copy of the grid
func (g Grid) Clone() Grid {
	if g == nil {
		return nil
	}
	out := make(Grid, len(g))
	for y, row := range g {
		out[y] = make([]*Cell, len(row))
		for x, c := range row {
			if c != nil {
				cp := *c
				out[y][x] = &cp
			}
		}
	}
	return out
}

// Equal reports whether two grids have the same shape and cell contents
func (g Grid) Equal(other Grid) bool {
	if len(g) != len(other) {
		return false
	}
	for y := range g {
		if len(g[y]) != len(other[y]) {
			return false
		}
		for x := range g[y] {
			a, b := g[y][x], other[y][x]
			if (a == nil) != (b == nil) {
				return false
			}
			if a != nil && *a != *b {
				return false
			}
		}
	}
	return true
}

// Persisted returns a copy with transient effect flags cleared
func (g Grid) Persisted() Grid {
	out := g.Clone()
	for _, row := range out {
		for _, c := range row {
			if c != nil {
				c.IsBombEffect = false
			}
		}
	}
	return out
}

// MarshalGrid encodes a grid for storage
func MarshalGrid(g Grid) (string, error) {
	b, err := json.Marshal(g.Persisted())
	if err != nil {
		return "", fmt.Errorf("failed to encode grid: %w", err)
	}
	return string(b), nil
}

// UnmarshalGrid decodes a stored grid and checks its dimensions
func UnmarshalGrid(data string) (Grid, error) {
	var g Grid
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return nil, fmt.Errorf("failed to decode grid: %w", err)
	}
	if len(g) != GridSize {
		return nil, fmt.Errorf("grid has %d rows, want %d", len(g), GridSize)
	}
	for y, row := range g {
		if len(row) != GridSize {
			return nil, fmt.Errorf("grid row %d has %d cells, want %d", y, len(row), GridSize)
		}
	}
	return g, nil
}

func inBounds(x, y int) bool {
	return x >= 0 && x < GridSize && y >= 0 && y < GridSize
}
