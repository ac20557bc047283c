package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lvcoi/playlistdl/internal/app"
)

func newHistoryCommand(flags *rootFlags) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if id := strings.TrimSpace(runID); id != "" {
				run, tracks, err := app.RunTracks(cfg, id)
				if err != nil {
					return fmt.Errorf("load run: %w", err)
				}
				fmt.Fprintf(out, "Run %s: %s (%s)\n", run.ID, run.PlaylistTitle, run.Status)
				if run.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", run.Error)
				}
				app.WriteRunTracks(out, tracks)
				return nil
			}

			runs, err := app.History(cfg, limit)
			if errors.Is(err, app.ErrNoCatalog) {
				fmt.Fprintf(out, "No catalog at %s; run with --catalog or enable [catalog] in the config\n", cfg.Catalog.Path)
				return nil
			}
			if err != nil {
				return fmt.Errorf("load history: %w", err)
			}
			app.WriteHistory(out, runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "Show the tracks of one run (ID or unique prefix)")
	return cmd
}
