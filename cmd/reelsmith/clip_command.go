package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/queue"
	"reelsmith/internal/toolexec"
	"reelsmith/internal/workflow"
)

func newClipCommand(ctx *commandContext) *cobra.Command {
	var channelName string

	cmd := &cobra.Command{
		Use:   "clip <video-id>",
		Short: "Run the full pipeline for one video and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoID := strings.TrimSpace(args[0])
			if videoID == "" {
				return fmt.Errorf("video id required")
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				job, created, err := store.Plan(cmd.Context(), videoID, channelName)
				if err != nil {
					return err
				}
				if !created && job.Status.IsTerminal() {
					// Allow reruns of settled jobs from the CLI.
					if _, err := store.RetryFailed(cmd.Context(), job.ID); err != nil {
						return err
					}
					job, err = store.GetByID(cmd.Context(), job.ID)
					if err != nil {
						return err
					}
					if job.Status != queue.StatusPlanned {
						return fmt.Errorf("job %d for %s already %s; clear it first", job.ID, videoID, job.Status)
					}
				}
				claimed, err := store.Claim(cmd.Context(), job.ID)
				if err != nil {
					return err
				}
				if !claimed {
					return fmt.Errorf("job %d for %s is held by another worker", job.ID, videoID)
				}

				logger := ctx.newLogger(cfg)
				pipeline := workflow.NewDefaultPipeline(store, cfg, toolexec.NewRunner(), logger)
				outcome, err := pipeline.Process(cmd.Context(), job)
				if err != nil {
					return err
				}
				if err := writeJSON(cmd, outcome); err != nil {
					return err
				}
				if outcome.Status == string(queue.StatusFailed) {
					return fmt.Errorf("clip %s failed: %s", videoID, outcome.Diagnostic)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&channelName, "channel", "", "Partner channel name recorded with the job")
	return cmd
}
