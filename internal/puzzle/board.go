package puzzle

import "unicode"

// Board is the mutable play surface: grid, powers, cursor and active word.
// It is not safe for concurrent use; Game serializes access to it.
type Board struct {
	level     *Level
	grid      Grid
	powers    []PowerState
	cursor    *Position
	activeID  string
	direction Direction
	locked    bool
}

// NewBoard starts an empty board for the level
func NewBoard(level *Level, powers []PowerState) *Board {
	return &Board{
		level:     level,
		grid:      BuildEmptyGrid(level),
		powers:    ClonePowers(powers),
		direction: Horizontal,
	}
}

// RestoreBoard rebuilds a board from a persisted grid and power set
func RestoreBoard(level *Level, grid Grid, powers []PowerState) *Board {
	return &Board{
		level:     level,
		grid:      grid.Clone(),
		powers:    ClonePowers(powers),
		direction: Horizontal,
	}
}

// Level returns the board's level
func (b *Board) Level() *Level { return b.level }

// Grid returns a copy of the current grid
func (b *Board) Grid() Grid { return b.grid.Clone() }

// Powers returns a copy of the current power states
func (b *Board) Powers() []PowerState { return ClonePowers(b.powers) }

// Cursor returns the selected cell, if any
func (b *Board) Cursor() (Position, bool) {
	if b.cursor == nil {
		return Position{}, false
	}
	return *b.cursor, true
}

// ActiveWord returns the currently selected placement
func (b *Board) ActiveWord() (WordPlacement, bool) {
	if b.activeID == "" {
		return WordPlacement{}, false
	}
	return b.level.WordByID(b.activeID)
}

// Lock freezes the grid against further edits
func (b *Board) Lock() { b.locked = true }

// Locked reports whether edits are rejected
func (b *Board) Locked() bool { return b.locked }

// Results validates the current grid against the level
func (b *Board) Results() []WordResult {
	return Validate(b.grid, b.level)
}

// IsWon reports whether every word is solved
func (b *Board) IsWon() bool {
	return IsWon(b.Results())
}

func (b *Board) editable() bool {
	return !b.locked && !b.IsWon()
}

// SelectCell makes (x, y) the cursor. A fresh selection prefers the covering word in the
// current direction; re-selecting the cursor cell cycles through crossing words.
func (b *Board) SelectCell(x, y int) bool {
	words := b.level.WordsAt(x, y)
	if len(words) == 0 || b.grid.At(x, y) == nil {
		return false
	}
	if b.cursor != nil && b.cursor.X == x && b.cursor.Y == y {
		return b.SelectNextWordAtSameCell(x, y)
	}

	chosen := words[0]
	for _, w := range words {
		if w.Direction == b.direction {
			chosen = w
			break
		}
	}
	b.activate(chosen, x, y)
	return true
}

// SelectNextWordAtSameCell cycles the active word among the placements crossing (x, y)
func (b *Board) SelectNextWordAtSameCell(x, y int) bool {
	words := b.level.WordsAt(x, y)
	if len(words) == 0 {
		return false
	}
	next := 0
	for i, w := range words {
		if w.ID == b.activeID {
			next = (i + 1) % len(words)
			break
		}
	}
	if words[next].ID == b.activeID && b.cursor != nil && b.cursor.X == x && b.cursor.Y == y {
		return false
	}
	b.activate(words[next], x, y)
	return true
}

func (b *Board) activate(w WordPlacement, x, y int) {
	b.activeID = w.ID
	b.direction = w.Direction
	b.cursor = &Position{X: x, Y: y}
}

// TypeLetter writes ch into (x, y) and advances the cursor within the active word.
// It is a no-op on inert or revealed cells, on runes without a single uppercase letter
// form, and once the puzzle is solved.
func (b *Board) TypeLetter(x, y int, ch rune) bool {
	upper, ok := upperLetter(ch)
	if !b.editable() || !ok {
		return false
	}
	cell := b.grid.At(x, y)
	if cell == nil || cell.IsRevealed {
		return false
	}

	active, ok := b.ActiveWord()
	if !ok || active.IndexOf(x, y) < 0 {
		if !b.selectCovering(x, y) {
			return false
		}
		active, _ = b.ActiveWord()
	}

	cell.Letter = string(upper)

	idx := active.IndexOf(x, y)
	cells := active.Cells()
	if idx+1 < len(cells) {
		next := cells[idx+1]
		b.cursor = &Position{X: next.X, Y: next.Y}
	} else {
		b.cursor = &Position{X: x, Y: y}
	}
	return true
}

// upperLetter maps ch to the uppercase letter stored in the grid. Level words are all
// uppercase, so a rune whose uppercase form is still lowercase (ß) or caseless can
// never match and is refused.
func upperLetter(ch rune) (rune, bool) {
	up := unicode.ToUpper(ch)
	return up, unicode.IsLetter(up) && unicode.IsUpper(up)
}

func (b *Board) selectCovering(x, y int) bool {
	words := b.level.WordsAt(x, y)
	if len(words) == 0 {
		return false
	}
	chosen := words[0]
	for _, w := range words {
		if w.Direction == b.direction {
			chosen = w
			break
		}
	}
	b.activate(chosen, x, y)
	return true
}

// Backspace clears the cursor cell, or steps back one cell in the active word when it is
// already empty. Revealed cells are never cleared.
func (b *Board) Backspace() bool {
	if !b.editable() || b.cursor == nil {
		return false
	}
	cell := b.grid.At(b.cursor.X, b.cursor.Y)
	if cell == nil {
		return false
	}
	if cell.Letter != "" && !cell.IsRevealed {
		cell.Letter = ""
		return true
	}

	active, ok := b.ActiveWord()
	if !ok {
		return false
	}
	idx := active.IndexOf(b.cursor.X, b.cursor.Y)
	if idx <= 0 {
		return false
	}
	prev := active.Cells()[idx-1]
	b.cursor = &Position{X: prev.X, Y: prev.Y}
	return true
}

// UsePower activates a power-up. It returns the revealed position and true on success;
// when there is no target or no uses left nothing changes.
func (b *Board) UsePower(t PowerType, rng Rand) (Position, bool) {
	if !b.editable() || usesLeft(b.powers, t) <= 0 {
		return Position{}, false
	}

	var (
		pos Position
		ok  bool
	)
	switch t {
	case MiddleLetter:
		pos, ok = b.revealMiddle()
	case SwapReveal:
		pos, ok = b.revealRandomInActive(rng)
	case Bomb:
		pos, ok = b.revealBomb(rng)
	}
	if !ok {
		return Position{}, false
	}
	consume(b.powers, t)
	return pos, true
}

func (b *Board) revealMiddle() (Position, bool) {
	w, ok := b.ActiveWord()
	if !ok {
		return Position{}, false
	}
	idx := len([]rune(w.Word)) / 2
	p := w.Cells()[idx]
	cell := b.grid.At(p.X, p.Y)
	if cell == nil || cell.IsRevealed {
		return Position{}, false
	}
	b.reveal(cell, w, idx)
	return p, true
}

func (b *Board) revealRandomInActive(rng Rand) (Position, bool) {
	w, ok := b.ActiveWord()
	if !ok || rng == nil {
		return Position{}, false
	}
	var candidates []int
	for i, p := range w.Cells() {
		if c := b.grid.At(p.X, p.Y); c != nil && !c.IsRevealed {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return Position{}, false
	}
	idx := candidates[rng.IntN(len(candidates))]
	p := w.Cells()[idx]
	b.reveal(b.grid.At(p.X, p.Y), w, idx)
	return p, true
}

func (b *Board) revealBomb(rng Rand) (Position, bool) {
	if rng == nil || len(b.level.Words) == 0 {
		return Position{}, false
	}
	w := b.level.Words[rng.IntN(len(b.level.Words))]
	cells := w.Cells()
	idx := rng.IntN(len(cells))
	p := cells[idx]
	cell := b.grid.At(p.X, p.Y)
	if cell == nil {
		return Position{}, false
	}
	b.reveal(cell, w, idx)
	cell.IsBombEffect = true
	return p, true
}

func (b *Board) reveal(cell *Cell, w WordPlacement, idx int) {
	cell.Letter = w.LetterAt(idx)
	cell.IsRevealed = true
}

// ClearBombEffect drops the transient effect flag at p
func (b *Board) ClearBombEffect(p Position) {
	if c := b.grid.At(p.X, p.Y); c != nil {
		c.IsBombEffect = false
	}
}
