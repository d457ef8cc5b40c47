package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"krosswordle/internal/repository"
	"krosswordle/internal/service"
)

func newLevelsCmd() *cobra.Command {
	levels := &cobra.Command{
		Use:   "levels",
		Short: "Validate and import YAML level files",
	}

	validate := &cobra.Command{
		Use:   "validate <file.yaml>",
		Short: "Check a level file without touching the database",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidateLevels,
	}

	importCmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Save every level of a level file",
		Long: `Validates the whole file first, then creates or replaces the level for each date.
Levels that somebody has already played are refused.`,
		Args: cobra.ExactArgs(1),
		RunE: runImportLevels,
	}

	levels.AddCommand(validate, importCmd)
	return levels
}

func runValidateLevels(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	parsed, err := service.ParseLevelFile(f)
	if err != nil {
		return err
	}
	for _, l := range parsed {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %d words\n", l.Date, len(l.Words))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d levels OK\n", len(parsed))
	return nil
}

func runImportLevels(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	db, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	levels := service.NewLevelService(repository.NewLevelRepository(db))
	n, err := levels.ImportLevels(cmd.Context(), f)
	if err != nil {
		return fmt.Errorf("imported %d levels before failing: %w", n, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d levels\n", n)
	return nil
}
