package puzzle

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	ErrEmptyLevel = errors.New("level has no words")
	ErrBadWord    = errors.New("invalid word placement")
)

// LevelError describes why a single placement was rejected
type LevelError struct {
	WordID string
	Reason string
}

func (e *LevelError) Error() string {
	return fmt.Sprintf("word %q: %s", e.WordID, e.Reason)
}

func (e *LevelError) Unwrap() error {
	return ErrBadWord
}

// ValidateLevel rejects levels the engine cannot play: no words, duplicate or empty IDs,
// words that are not uppercase letters, cells outside the grid, and crossings whose
// letters disagree.
func ValidateLevel(level *Level) error {
	if level == nil || len(level.Words) == 0 {
		return ErrEmptyLevel
	}

	seen := make(map[string]bool, len(level.Words))
	letters := make(map[Position]string)
	owners := make(map[Position]string)

	for _, w := range level.Words {
		if strings.TrimSpace(w.ID) == "" {
			return &LevelError{WordID: w.ID, Reason: "missing id"}
		}
		if seen[w.ID] {
			return &LevelError{WordID: w.ID, Reason: "duplicate id"}
		}
		seen[w.ID] = true

		if w.Word == "" {
			return &LevelError{WordID: w.ID, Reason: "empty word"}
		}
		for _, r := range w.Word {
			if !unicode.IsLetter(r) || !unicode.IsUpper(r) {
				return &LevelError{WordID: w.ID, Reason: "word must be uppercase letters only"}
			}
		}
		if w.Direction != Horizontal && w.Direction != Vertical {
			return &LevelError{WordID: w.ID, Reason: fmt.Sprintf("unknown direction %q", w.Direction)}
		}
		if strings.TrimSpace(w.Clue) == "" {
			return &LevelError{WordID: w.ID, Reason: "missing clue"}
		}

		for i, p := range w.Cells() {
			if !inBounds(p.X, p.Y) {
				return &LevelError{WordID: w.ID, Reason: fmt.Sprintf("cell (%d,%d) is outside the %dx%d grid", p.X, p.Y, GridSize, GridSize)}
			}
			letter := w.LetterAt(i)
			if prev, ok := letters[p]; ok && prev != letter {
				return &LevelError{
					WordID: w.ID,
					Reason: fmt.Sprintf("letter %s at (%d,%d) conflicts with %s from word %q", letter, p.X, p.Y, prev, owners[p]),
				}
			}
			letters[p] = letter
			owners[p] = w.ID
		}
	}
	return nil
}

// NormalizeLevel upper-cases words and trims clues in place before validation
func NormalizeLevel(level *Level) {
	if level == nil {
		return
	}
	for i := range level.Words {
		w := &level.Words[i]
		w.ID = strings.TrimSpace(w.ID)
		w.Word = strings.ToUpper(strings.TrimSpace(w.Word))
		w.Clue = strings.TrimSpace(w.Clue)
		w.Direction = Direction(strings.ToLower(strings.TrimSpace(string(w.Direction))))
		switch w.Direction {
		case "h":
			w.Direction = Horizontal
		case "v":
			w.Direction = Vertical
		}
	}
}
