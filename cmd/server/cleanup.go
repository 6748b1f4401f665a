package main

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"facegate/internal/cleanup"
)

var cleanupGrace time.Duration

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove image and embedding files no capture record references",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openCatalog(cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		grace := cleanupGrace
		if !cmd.Flags().Changed("grace") {
			grace = time.Duration(cfg.Cleanup.OrphanGraceMinutes) * time.Minute
		}

		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Removing orphans"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)

		svc := cleanup.NewService(app.repo, app.store, grace, 0)
		report, err := svc.RunCleanupCycle(cmd.Context(), bar)
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}

		fmt.Printf("Scanned %d files, %d orphaned, %d removed, %d failed\n",
			report.Scanned, report.Orphans, report.Removed, report.Failed)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupGrace, "grace", time.Hour, "only remove orphans older than this")
	rootCmd.AddCommand(cleanupCmd)
}
