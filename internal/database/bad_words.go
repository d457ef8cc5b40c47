package database

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const badWordsURL = "https://raw.githubusercontent.com/LDNOOBW/List-of-Dirty-Naughty-Obscene-and-Otherwise-Bad-Words/refs/heads/master/en"

// SeedBadWords downloads the bad words list used to screen display names.
// It does nothing once the table has been populated.
func (db *DB) SeedBadWords(ctx context.Context) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bad_words").Scan(&count); err != nil {
		return fmt.Errorf("failed to check bad words count: %w", err)
	}
	if count > 0 {
		log.Debug().Int("count", count).Msg("bad words filter already populated")
		return nil
	}

	log.Info().Msg("downloading bad words list")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, badWordsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build bad words request: %w", err)
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download bad words list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status code from bad words URL: %d", resp.StatusCode)
	}

	added, err := db.LoadBadWords(ctx, resp.Body)
	if err != nil {
		return err
	}
	log.Info().Int("count", added).Msg("bad words filter populated")
	return nil
}

// LoadBadWords inserts one word per line from r, skipping blanks and duplicates
func (db *DB) LoadBadWords(ctx context.Context, r io.Reader) (int, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, db.Dialect.RewriteQuery(db.Dialect.InsertIgnoreQuery("bad_words", []string{"word"})))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	scanner := bufio.NewScanner(r)
	added := 0
	for scanner.Scan() {
		word := strings.TrimSpace(strings.ToLower(scanner.Text()))
		if word == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, word)
		if err != nil {
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("error reading bad words: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return added, nil
}

// IsBadWord checks if a word is in the bad words list
func (db *DB) IsBadWord(ctx context.Context, word string) (bool, error) {
	cleanWord := strings.TrimSpace(strings.ToLower(word))

	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bad_words WHERE word = ?", cleanWord).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check bad word: %w", err)
	}
	return count > 0, nil
}

// ContainsBadWord reports whether any whitespace, dash or underscore separated part of text
// is a listed word
func (db *DB) ContainsBadWord(ctx context.Context, text string) (bool, error) {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.'
	})
	for _, part := range append(parts, text) {
		bad, err := db.IsBadWord(ctx, part)
		if err != nil {
			return false, err
		}
		if bad {
			return true, nil
		}
	}
	return false, nil
}
