package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/deps"
	"reelsmith/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show tool availability, disk headroom, and queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()

				statuses := deps.CheckBinaries(deps.Requirements(cfg))
				rows := make([][]string, 0, len(statuses))
				for _, status := range statuses {
					state := "ok"
					if !status.Available {
						state = "missing"
						if status.Optional {
							state = "missing (optional)"
						}
					}
					rows = append(rows, []string{status.Name, status.Command, state, status.Detail})
				}
				printTable(cmd,
					[]string{"Tool", "Command", "State", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				)

				free, err := deps.CheckFreeSpace(cfg.Paths.ArtifactsDir)
				if err != nil {
					fmt.Fprintf(out, "Disk check failed: %v\n", err)
				} else {
					fmt.Fprintf(out, "Free space at %s: %.1f GiB\n", cfg.Paths.ArtifactsDir, float64(free)/(1<<30))
				}

				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Jobs: %d total, %d planned, %d processing, %d completed, %d failed\n",
					stats.Total, stats.Planned, stats.Processing, stats.Completed, stats.Failed)

				if missing := deps.MissingRequired(statuses); len(missing) > 0 {
					return fmt.Errorf("missing required tools: %v", missing)
				}
				return nil
			})
		},
	}
}
