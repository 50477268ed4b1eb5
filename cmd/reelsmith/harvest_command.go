package main

import (
	"time"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/harvester"
	"reelsmith/internal/queue"
	"reelsmith/internal/services/fetch"
	"reelsmith/internal/toolexec"
)

func newHarvestCommand(ctx *commandContext) *cobra.Command {
	var prune bool
	var noPlan bool

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Poll partner channels and backfill the clip queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				logger := ctx.newLogger(cfg)
				lister := fetch.NewService(
					toolexec.NewRunner(),
					cfg.Tools.Downloader,
					time.Duration(cfg.Harvester.RequestTimeout)*time.Second,
					logger,
				)
				h := harvester.New(store, lister, cfg.Harvester, logger)
				summary, err := h.Run(cmd.Context(), harvester.Options{
					PlanJobs: !noPlan,
					Prune:    prune,
				})
				if err != nil {
					return err
				}
				return writeJSON(cmd, summary)
			})
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "Trim each channel's catalog to the retention count")
	cmd.Flags().BoolVar(&noPlan, "no-plan", false, "Harvest metadata without creating clip jobs")
	return cmd
}
