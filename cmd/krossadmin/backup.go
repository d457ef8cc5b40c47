package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"krosswordle/internal/database"
	"krosswordle/internal/service"
)

func newBackupCmd() *cobra.Command {
	backup := &cobra.Command{
		Use:   "backup",
		Short: "Export or restore the database as JSON",
	}

	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write every user, level, session, score and setting to a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, output)
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "output file (default: backup_YYYYMMDD_HHMMSS.json)")

	var (
		input     string
		clearData bool
		yes       bool
	)
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Restore a JSON backup into the database",
		Long: `Restores a backup written by "backup export". Row IDs are kept, so the target
database must be empty; pass --clear to wipe it first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, input, clearData, yes)
		},
	}
	importCmd.Flags().StringVarP(&input, "input", "i", "", "backup file to restore")
	importCmd.Flags().BoolVar(&clearData, "clear", false, "delete all existing data before importing")
	importCmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask before clearing")
	_ = importCmd.MarkFlagRequired("input")

	backup.AddCommand(export, importCmd)
	return backup
}

func runExport(cmd *cobra.Command, outputPath string) error {
	if outputPath == "" {
		outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
	}
	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	db, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := service.NewBackupService(db).Export(cmd.Context(), outputPath); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if info, err := os.Stat(outputPath); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "exported %s (%.2f MB)\n", outputPath, float64(info.Size())/1024/1024)
	}
	return nil
}

func runImport(cmd *cobra.Command, inputPath string, clearData, yes bool) error {
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input file: %w", err)
	}

	db, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	if clearData {
		if !yes && !confirm(cmd, "WARNING: This will delete all existing data. Type 'yes' to confirm: ") {
			fmt.Fprintln(cmd.OutOrStdout(), "import cancelled")
			return nil
		}
		if err := clearDatabase(cmd.Context(), db); err != nil {
			return err
		}
	}

	if err := service.NewBackupService(db).Import(cmd.Context(), inputPath); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "import complete")
	return nil
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}

// clearDatabase deletes every restorable row. The bad word list is left alone.
func clearDatabase(ctx context.Context, db *database.DB) error {
	// reverse order of dependencies
	tables := []string{"scores", "game_sessions", "levels", "sessions", "users", "settings"}
	return db.WithTx(ctx, func(tx *database.Tx) error {
		for _, table := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear table %s: %w", table, err)
			}
			log.Info().Str("table", table).Msg("cleared table")
		}
		return nil
	})
}
