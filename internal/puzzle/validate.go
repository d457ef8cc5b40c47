package puzzle

import "strings"

// WordResult is the correctness of one placement against the current grid
type WordResult struct {
	ID        string `json:"id"`
	IsCorrect bool   `json:"isCorrect"`
}

// Validate checks every placement of the level against the grid. A word is correct only when
// each covered cell holds the target letter (case-insensitive); there is no partial credit.
// Neither argument is modified.
func Validate(grid Grid, level *Level) []WordResult {
	if level == nil {
		return nil
	}
	results := make([]WordResult, 0, len(level.Words))
	for _, w := range level.Words {
		results = append(results, WordResult{ID: w.ID, IsCorrect: wordCorrect(grid, w)})
	}
	return results
}

// IsWon reports whether every word is correct. An empty result set is not a win.
func IsWon(results []WordResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.IsCorrect {
			return false
		}
	}
	return true
}

func wordCorrect(grid Grid, w WordPlacement) bool {
	for i, p := range w.Cells() {
		c := grid.At(p.X, p.Y)
		if c == nil || c.Letter == "" {
			return false
		}
		if !strings.EqualFold(c.Letter, w.LetterAt(i)) {
			return false
		}
	}
	return true
}
