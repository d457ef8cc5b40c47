package database

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const migrationsDir = "../../migrations"

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Initialize(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background(), migrationsDir))
	return db
}

func TestMigrationsCreateSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, table := range []string{"users", "sessions", "levels", "game_sessions", "scores", "settings", "bad_words"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}

	// second run is a no-op
	require.NoError(t, db.RunMigrations(ctx, migrationsDir))
	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMigrationsMissingDir(t *testing.T) {
	db, err := Initialize(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()
	assert.Error(t, db.RunMigrations(context.Background(), t.TempDir()))
}

func TestWithTx(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecReturningID(ctx, "INSERT INTO levels (play_date, words_json) VALUES (?, ?)", "2026-10-01", "[]")
		return err
	})
	require.NoError(t, err)

	err = db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO levels (play_date, words_json) VALUES (?, ?)", "2026-10-02", "[]"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "INSERT INTO levels (play_date, words_json) VALUES (?, ?)", "2026-10-01", "[]")
		return err
	})
	require.Error(t, err, "duplicate date rolls back the whole transaction")

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM levels").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestInsertIgnoreKeepsFirstRow(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	query := db.Dialect.InsertIgnoreQuery("settings", []string{"name", "value"})
	_, err := db.ExecContext(ctx, query, "monthly_prize", "first")
	require.NoError(t, err)
	res, err := db.ExecContext(ctx, query, "monthly_prize", "second")
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.Equal(t, int64(0), n)

	_, err = db.ExecContext(ctx, db.Dialect.UpsertSettingQuery(), "monthly_prize", "third")
	require.NoError(t, err)
	var value string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT value FROM settings WHERE name = ?", "monthly_prize").Scan(&value))
	assert.Equal(t, "third", value)
}

func TestBadWords(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	added, err := db.LoadBadWords(ctx, strings.NewReader("Darn\n\nheck\ndarn\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	bad, err := db.IsBadWord(ctx, "  DARN ")
	require.NoError(t, err)
	assert.True(t, bad)

	bad, err = db.ContainsBadWord(ctx, "big_heck-fan")
	require.NoError(t, err)
	assert.True(t, bad)

	bad, err = db.ContainsBadWord(ctx, "crossword fan")
	require.NoError(t, err)
	assert.False(t, bad)

	// already populated, so no download is attempted
	require.NoError(t, db.SeedBadWords(ctx))
}

func TestConcurrentReads(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "INSERT INTO levels (play_date, words_json) VALUES (?, ?)", "2026-10-03", "[]")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var date string
			err := db.QueryRowContext(ctx, "SELECT play_date FROM levels WHERE play_date = ?", "2026-10-03").Scan(&date)
			assert.NoError(t, err)
			assert.Equal(t, "2026-10-03", date)
		}()
	}
	wg.Wait()
}
