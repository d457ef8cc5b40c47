package puzzle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kodLevel() *Level {
	return &Level{ID: 7, Date: "2026-10-15", Words: []WordPlacement{
		{ID: "1", Word: "KOD", X: 0, Y: 0, Direction: Horizontal, Clue: "Program metni"},
	}}
}

// KOD across and KAR down share the K at (0,0)
func crossLevel() *Level {
	return &Level{ID: 8, Date: "2026-10-15", Words: []WordPlacement{
		{ID: "1", Word: "KOD", X: 0, Y: 0, Direction: Horizontal, Clue: "Program metni"},
		{ID: "2", Word: "KAR", X: 0, Y: 0, Direction: Vertical, Clue: "Kışın yağar"},
	}}
}

// seqRand replays a fixed sequence of picks
type seqRand struct {
	vals []int
	i    int
}

func (r *seqRand) IntN(n int) int {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v % n
}

func typeWord(b *Board, w WordPlacement, text string) {
	for i, p := range w.Cells() {
		b.TypeLetter(p.X, p.Y, []rune(text)[i])
	}
}

func TestBuildEmptyGrid(t *testing.T) {
	level := crossLevel()

	first := BuildEmptyGrid(level)
	second := BuildEmptyGrid(level)
	assert.True(t, first.Equal(second), "grid must be deterministic")

	require.Len(t, first, GridSize)
	covered := map[Position]bool{{0, 0}: true, {1, 0}: true, {2, 0}: true, {0, 1}: true, {0, 2}: true}
	for y := 0; y < GridSize; y++ {
		for x := 0; x < GridSize; x++ {
			c := first.At(x, y)
			if covered[Position{x, y}] {
				require.NotNil(t, c, "cell (%d,%d)", x, y)
				assert.Equal(t, Cell{}, *c)
			} else {
				assert.Nil(t, c, "cell (%d,%d)", x, y)
			}
		}
	}

	assert.Len(t, BuildEmptyGrid(nil), GridSize)
}

func TestValidateScenarios(t *testing.T) {
	t.Run("typing the answer wins", func(t *testing.T) {
		b := NewBoard(kodLevel(), DefaultPowers(1))
		typeWord(b, kodLevel().Words[0], "KOD")

		res := b.Results()
		assert.Equal(t, []WordResult{{ID: "1", IsCorrect: true}}, res)
		assert.True(t, IsWon(res))
	})

	t.Run("wrong letter then fix", func(t *testing.T) {
		b := NewBoard(kodLevel(), DefaultPowers(1))
		typeWord(b, kodLevel().Words[0], "KOX")

		res := b.Results()
		assert.False(t, res[0].IsCorrect)
		assert.False(t, IsWon(res))

		cur, ok := b.Cursor()
		require.True(t, ok)
		assert.Equal(t, Position{X: 2, Y: 0}, cur)

		require.True(t, b.Backspace())
		require.True(t, b.TypeLetter(2, 0, 'D'))
		assert.True(t, b.IsWon())
	})

	t.Run("lowercase input matches", func(t *testing.T) {
		grid := BuildEmptyGrid(kodLevel())
		grid.At(0, 0).Letter = "k"
		grid.At(1, 0).Letter = "o"
		grid.At(2, 0).Letter = "d"
		assert.True(t, IsWon(Validate(grid, kodLevel())))
	})

	t.Run("empty results are not a win", func(t *testing.T) {
		assert.False(t, IsWon(nil))
		assert.False(t, IsWon(Validate(BuildEmptyGrid(&Level{}), &Level{})))
	})
}

func TestValidateDoesNotMutate(t *testing.T) {
	level := crossLevel()
	grid := BuildEmptyGrid(level)
	grid.At(0, 0).Letter = "K"
	grid.At(1, 0).Letter = "Z"

	gridBefore := grid.Clone()
	wordsBefore := append([]WordPlacement(nil), level.Words...)

	Validate(grid, level)

	assert.True(t, grid.Equal(gridBefore))
	assert.Equal(t, wordsBefore, level.Words)
}

func TestFlippingSharedCellOnlyBreaksCoveringWords(t *testing.T) {
	level := &Level{ID: 1, Words: []WordPlacement{
		{ID: "1", Word: "KOD", X: 0, Y: 0, Direction: Horizontal, Clue: "a"},
		{ID: "2", Word: "KAR", X: 0, Y: 0, Direction: Vertical, Clue: "b"},
		{ID: "3", Word: "EV", X: 5, Y: 5, Direction: Horizontal, Clue: "c"},
	}}
	solved := BuildEmptyGrid(level)
	for _, w := range level.Words {
		for i, p := range w.Cells() {
			solved.At(p.X, p.Y).Letter = w.LetterAt(i)
		}
	}
	require.True(t, IsWon(Validate(solved, level)))

	tests := []struct {
		name   string
		cell   Position
		broken map[string]bool
	}{
		{name: "crossing cell", cell: Position{0, 0}, broken: map[string]bool{"1": true, "2": true}},
		{name: "across only", cell: Position{2, 0}, broken: map[string]bool{"1": true}},
		{name: "down only", cell: Position{0, 2}, broken: map[string]bool{"2": true}},
		{name: "separate word", cell: Position{6, 5}, broken: map[string]bool{"3": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid := solved.Clone()
			grid.At(tt.cell.X, tt.cell.Y).Letter = "Q"
			for _, r := range Validate(grid, level) {
				assert.Equal(t, !tt.broken[r.ID], r.IsCorrect, "word %s", r.ID)
			}
		})
	}
}

func TestValidateLevel(t *testing.T) {
	tests := []struct {
		name    string
		words   []WordPlacement
		wantErr error
	}{
		{name: "valid crossing", words: crossLevel().Words},
		{name: "no words", wantErr: ErrEmptyLevel},
		{
			name:    "out of bounds",
			words:   []WordPlacement{{ID: "1", Word: "KALEM", X: 7, Y: 0, Direction: Horizontal, Clue: "c"}},
			wantErr: ErrBadWord,
		},
		{
			name:    "lowercase word",
			words:   []WordPlacement{{ID: "1", Word: "kod", X: 0, Y: 0, Direction: Horizontal, Clue: "c"}},
			wantErr: ErrBadWord,
		},
		{
			name: "duplicate id",
			words: []WordPlacement{
				{ID: "1", Word: "KOD", X: 0, Y: 0, Direction: Horizontal, Clue: "c"},
				{ID: "1", Word: "EV", X: 0, Y: 4, Direction: Horizontal, Clue: "c"},
			},
			wantErr: ErrBadWord,
		},
		{
			name: "conflicting crossing",
			words: []WordPlacement{
				{ID: "1", Word: "KOD", X: 0, Y: 0, Direction: Horizontal, Clue: "c"},
				{ID: "2", Word: "SAR", X: 0, Y: 0, Direction: Vertical, Clue: "c"},
			},
			wantErr: ErrBadWord,
		},
		{
			name:    "unknown direction",
			words:   []WordPlacement{{ID: "1", Word: "KOD", X: 0, Y: 0, Direction: "diagonal", Clue: "c"}},
			wantErr: ErrBadWord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLevel(&Level{Words: tt.words})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestNormalizeLevel(t *testing.T) {
	level := &Level{Words: []WordPlacement{{ID: " 1 ", Word: " kod", Direction: "H", Clue: " clue "}}}
	NormalizeLevel(level)
	assert.Equal(t, WordPlacement{ID: "1", Word: "KOD", Direction: Horizontal, Clue: "clue"}, level.Words[0])
}

func TestSelectCell(t *testing.T) {
	b := NewBoard(crossLevel(), nil)

	assert.False(t, b.SelectCell(5, 5), "inert cell")

	require.True(t, b.SelectCell(0, 0))
	w, _ := b.ActiveWord()
	assert.Equal(t, "1", w.ID, "horizontal preferred by default")

	require.True(t, b.SelectCell(0, 0), "second click cycles the crossing")
	w, _ = b.ActiveWord()
	assert.Equal(t, "2", w.ID)

	require.True(t, b.SelectCell(0, 2))
	w, _ = b.ActiveWord()
	assert.Equal(t, "2", w.ID)

	require.True(t, b.SelectCell(0, 0), "fresh selection keeps the current direction")
	w, _ = b.ActiveWord()
	assert.Equal(t, "2", w.ID)

	require.True(t, b.SelectNextWordAtSameCell(0, 0))
	w, _ = b.ActiveWord()
	assert.Equal(t, "1", w.ID)
}

func TestTypingAdvancesWithinWordOnly(t *testing.T) {
	b := NewBoard(crossLevel(), nil)
	require.True(t, b.SelectCell(0, 0))

	require.True(t, b.TypeLetter(0, 0, 'k'))
	cur, _ := b.Cursor()
	assert.Equal(t, Position{1, 0}, cur)
	assert.Equal(t, "K", b.Grid().At(0, 0).Letter)

	require.True(t, b.TypeLetter(1, 0, 'O'))
	require.True(t, b.TypeLetter(2, 0, 'D'))
	cur, _ = b.Cursor()
	assert.Equal(t, Position{2, 0}, cur, "cursor stays on the last cell")

	assert.False(t, b.TypeLetter(5, 5, 'A'), "inert cell")

	rejected := []struct {
		name string
		ch   rune
	}{
		{"digit", '1'},
		{"punctuation", '-'},
		{"no single uppercase form", 'ß'},
		{"caseless letter", 'の'},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, b.TypeLetter(0, 1, tt.ch))
			assert.Equal(t, "", b.Grid().At(0, 1).Letter)
		})
	}

	require.True(t, b.TypeLetter(0, 1, 'ç'), "lowercase with an uppercase form is accepted")
	assert.Equal(t, "Ç", b.Grid().At(0, 1).Letter)
}

func TestBackspace(t *testing.T) {
	b := NewBoard(kodLevel(), nil)
	assert.False(t, b.Backspace(), "nothing selected")

	require.True(t, b.TypeLetter(0, 0, 'K'))
	cur, _ := b.Cursor()
	require.Equal(t, Position{1, 0}, cur)

	require.True(t, b.Backspace(), "empty cell steps back")
	cur, _ = b.Cursor()
	assert.Equal(t, Position{0, 0}, cur)
	assert.Equal(t, "K", b.Grid().At(0, 0).Letter)

	require.True(t, b.Backspace(), "filled cell is cleared in place")
	cur, _ = b.Cursor()
	assert.Equal(t, Position{0, 0}, cur)
	assert.Equal(t, "", b.Grid().At(0, 0).Letter)

	assert.False(t, b.Backspace(), "first cell of the word cannot step back")
}

func TestRevealedCellsAreLocked(t *testing.T) {
	b := NewBoard(kodLevel(), DefaultPowers(1))
	require.True(t, b.SelectCell(0, 0))

	pos, ok := b.UsePower(MiddleLetter, nil)
	require.True(t, ok)
	assert.Equal(t, Position{1, 0}, pos)

	cell := b.Grid().At(1, 0)
	assert.Equal(t, "O", cell.Letter)
	assert.True(t, cell.IsRevealed)

	assert.False(t, b.TypeLetter(1, 0, 'Z'))
	assert.Equal(t, "O", b.Grid().At(1, 0).Letter)

	require.True(t, b.SelectCell(1, 0))
	b.Backspace()
	assert.Equal(t, "O", b.Grid().At(1, 0).Letter)
}

func TestPowerUps(t *testing.T) {
	t.Run("middle letter needs an active word", func(t *testing.T) {
		b := NewBoard(kodLevel(), DefaultPowers(1))
		_, ok := b.UsePower(MiddleLetter, nil)
		assert.False(t, ok)
		assert.Equal(t, 1, usesLeft(b.Powers(), MiddleLetter))
	})

	t.Run("middle letter already revealed is a no-op", func(t *testing.T) {
		b := NewBoard(kodLevel(), DefaultPowers(2))
		b.SelectCell(0, 0)
		_, ok := b.UsePower(MiddleLetter, nil)
		require.True(t, ok)
		_, ok = b.UsePower(MiddleLetter, nil)
		assert.False(t, ok)
		assert.Equal(t, 1, usesLeft(b.Powers(), MiddleLetter))
	})

	t.Run("swap reveal picks among unrevealed cells", func(t *testing.T) {
		b := NewBoard(kodLevel(), DefaultPowers(5))
		b.SelectCell(0, 0)
		rng := &seqRand{vals: []int{2, 0, 0}}

		pos, ok := b.UsePower(SwapReveal, rng)
		require.True(t, ok)
		assert.Equal(t, Position{2, 0}, pos)

		pos, ok = b.UsePower(SwapReveal, rng)
		require.True(t, ok)
		assert.Equal(t, Position{0, 0}, pos)

		pos, ok = b.UsePower(SwapReveal, rng)
		require.True(t, ok)
		assert.Equal(t, Position{1, 0}, pos)
		assert.Equal(t, 2, usesLeft(b.Powers(), SwapReveal))
	})

	t.Run("swap reveal with nothing left", func(t *testing.T) {
		level := &Level{ID: 1, Words: []WordPlacement{
			{ID: "1", Word: "KOD", X: 0, Y: 0, Direction: Horizontal, Clue: "c"},
			{ID: "2", Word: "EV", X: 0, Y: 5, Direction: Horizontal, Clue: "c"},
		}}
		b := NewBoard(level, DefaultPowers(3))
		b.SelectCell(0, 5)
		rng := &seqRand{vals: []int{0}}
		_, ok := b.UsePower(SwapReveal, rng)
		require.True(t, ok)
		_, ok = b.UsePower(SwapReveal, rng)
		require.True(t, ok)
		_, ok = b.UsePower(SwapReveal, rng)
		assert.False(t, ok)
		assert.Equal(t, 1, usesLeft(b.Powers(), SwapReveal))
	})

	t.Run("bomb single use", func(t *testing.T) {
		b := NewBoard(kodLevel(), []PowerState{{Type: Bomb, Uses: 1}})
		rng := &seqRand{vals: []int{0, 1}}

		pos, ok := b.UsePower(Bomb, rng)
		require.True(t, ok)
		assert.Equal(t, Position{1, 0}, pos)
		cell := b.Grid().At(1, 0)
		assert.True(t, cell.IsRevealed)
		assert.True(t, cell.IsBombEffect)
		assert.Equal(t, 0, usesLeft(b.Powers(), Bomb))

		before := b.Grid()
		_, ok = b.UsePower(Bomb, rng)
		assert.False(t, ok)
		assert.Equal(t, 0, usesLeft(b.Powers(), Bomb))
		assert.True(t, before.Equal(b.Grid()))

		b.ClearBombEffect(pos)
		assert.False(t, b.Grid().At(1, 0).IsBombEffect)
	})

	t.Run("locked board ignores powers", func(t *testing.T) {
		b := NewBoard(kodLevel(), DefaultPowers(1))
		b.SelectCell(0, 0)
		b.Lock()
		_, ok := b.UsePower(MiddleLetter, nil)
		assert.False(t, ok)
		assert.Equal(t, 1, usesLeft(b.Powers(), MiddleLetter))
	})
}

func TestGridPersistence(t *testing.T) {
	b := NewBoard(kodLevel(), []PowerState{{Type: Bomb, Uses: 1}})
	b.UsePower(Bomb, &seqRand{vals: []int{0}})

	data, err := MarshalGrid(b.Grid())
	require.NoError(t, err)

	restored, err := UnmarshalGrid(data)
	require.NoError(t, err)
	assert.True(t, restored.At(0, 0).IsRevealed)
	assert.False(t, restored.At(0, 0).IsBombEffect, "effect flags are not persisted")
	assert.Nil(t, restored.At(5, 5))

	_, err = UnmarshalGrid(`[[null]]`)
	assert.Error(t, err)
}

func TestFreezeWindow(t *testing.T) {
	tests := []struct {
		date string
		want bool
	}{
		{"2026-10-30", false},
		{"2026-10-31", true},
		{"2026-02-27", false},
		{"2026-02-28", true},
		{"2028-02-28", false},
		{"2028-02-29", true},
		{"2026-11-30", true},
		{"2026-11-01", false},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			d, err := ParseDate(tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, IsFreezeWindow(d))
		})
	}
}

func TestMonthRange(t *testing.T) {
	first, last, err := MonthRange("2028-02")
	require.NoError(t, err)
	assert.Equal(t, "2028-02-01", first)
	assert.Equal(t, "2028-02-29", last)

	_, _, err = MonthRange("February")
	assert.Error(t, err)
}

func TestRankScores(t *testing.T) {
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	rows := []ScoreRow{
		{UserID: 3, DisplayName: "cat", CompletionSeconds: 90, Points: ScorePoints(90), CreatedAt: base.Add(2 * time.Hour)},
		{UserID: 1, DisplayName: "ant", CompletionSeconds: 120, Points: ScorePoints(120), CreatedAt: base},
		{UserID: 1, DisplayName: "ant", CompletionSeconds: 60, Points: ScorePoints(60), CreatedAt: base.Add(48 * time.Hour)},
		{UserID: 2, DisplayName: "bee", CompletionSeconds: 60, Points: ScorePoints(60), CreatedAt: base.Add(24 * time.Hour)},
		{UserID: 4, DisplayName: "dog", CompletionSeconds: 90, Points: ScorePoints(90), CreatedAt: base.Add(2 * time.Hour)},
	}

	ranked := RankScores(rows)
	require.Len(t, ranked, 4)

	ids := make([]int64, len(ranked))
	for i, e := range ranked {
		ids[i] = e.UserID
		assert.Equal(t, i+1, e.Rank)
	}
	// bee set 60s a day before ant; cat and dog tie on time and moment, lower id first
	assert.Equal(t, []int64{2, 1, 3, 4}, ids)

	ant := ranked[1]
	assert.Equal(t, 2, ant.GamesPlayed)
	assert.Equal(t, 60, ant.BestTime)
	assert.InDelta(t, 90.0, ant.AvgTime, 0.001)
	assert.Equal(t, ScorePoints(120)+ScorePoints(60), ant.TotalScore)

	assert.Len(t, Winners(ranked, 3), 3)
	assert.Len(t, Winners(ranked, 10), 4)
	assert.Empty(t, RankScores(nil))
}

func TestScorePoints(t *testing.T) {
	assert.Equal(t, 1000, ScorePoints(0))
	assert.Equal(t, 880, ScorePoints(120))
	assert.Equal(t, 100, ScorePoints(5000))
}
