// Package harvester polls partner channels for recent uploads and keeps the
// PartnerVideo catalog stocked so the pipeline always has source candidates.
package harvester

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/queue"
	"reelsmith/internal/services/fetch"
	"reelsmith/internal/textutil"
)

// Lister is the slice of the fetch service the harvester needs.
type Lister interface {
	ChannelUploads(ctx context.Context, channelID string, limit int) ([]fetch.Upload, error)
}

// Summary reports the outcome of one harvest run.
type Summary struct {
	ChannelsPolled int   `json:"channels_polled"`
	ChannelsFailed int   `json:"channels_failed"`
	Harvested      int   `json:"harvested"`
	Canonical      int   `json:"canonical"`
	Synthetic      int   `json:"synthetic"`
	Planned        int   `json:"planned"`
	Pruned         int64 `json:"pruned"`
}

// Options control a single harvest run.
type Options struct {
	// PlanJobs also creates a Planned clip job for every harvested video.
	PlanJobs bool
	// Prune trims each channel's catalog to the configured retention count.
	Prune bool
}

// Harvester polls channels through the downloader and upserts the catalog.
type Harvester struct {
	store   *queue.Store
	lister  Lister
	cfg     config.Harvester
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New constructs a harvester over the given store and upload lister.
func New(store *queue.Store, lister Lister, cfg config.Harvester, logger *slog.Logger) *Harvester {
	pollRate := cfg.PollsPerSecond
	if pollRate <= 0 {
		pollRate = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Harvester{
		store:   store,
		lister:  lister,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(pollRate), 1),
		logger:  logger.With(logging.String(logging.FieldComponent, "harvester")),
	}
}

// Run polls every configured channel once. A failing channel is logged and
// skipped; the run only errors when the catalog itself cannot be written.
// When live polling leaves the catalog under the configured minimum, the run
// falls back to canonical video IDs and then to synthetic placeholders.
func (h *Harvester) Run(ctx context.Context, opts Options) (Summary, error) {
	summary := Summary{}
	cutoff := time.Now().UTC().Add(-time.Duration(h.cfg.RecencyWindowHours) * time.Hour)

	for _, channelID := range h.cfg.Channels {
		if err := h.limiter.Wait(ctx); err != nil {
			return summary, err
		}
		summary.ChannelsPolled++

		count, err := h.pollChannel(ctx, channelID, cutoff, opts, &summary)
		if err != nil {
			summary.ChannelsFailed++
			h.logger.Warn("channel poll failed",
				logging.String(logging.FieldChannel, channelID),
				logging.Error(err),
			)
			continue
		}
		h.logger.Info("channel polled",
			logging.String(logging.FieldChannel, channelID),
			logging.Int("harvested", count),
		)
	}

	if err := h.backfill(ctx, opts, &summary); err != nil {
		return summary, err
	}

	if opts.Prune && h.cfg.RetainPerChannel > 0 {
		pruned, err := h.store.PrunePartnerVideos(ctx, h.cfg.RetainPerChannel)
		if err != nil {
			return summary, fmt.Errorf("prune catalog: %w", err)
		}
		summary.Pruned = pruned
	}
	return summary, nil
}

func (h *Harvester) pollChannel(ctx context.Context, channelID string, cutoff time.Time, opts Options, summary *Summary) (int, error) {
	limit := h.cfg.RetainPerChannel
	if limit <= 0 {
		limit = 20
	}
	uploads, err := h.lister.ChannelUploads(ctx, channelID, limit)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, upload := range uploads {
		if !upload.PublishedAt.IsZero() && upload.PublishedAt.Before(cutoff) {
			continue
		}
		video := queue.PartnerVideo{
			VideoID:     upload.VideoID,
			ChannelID:   upload.ChannelID,
			ChannelName: textutil.NormalizeTitle(upload.ChannelName),
			Title:       textutil.NormalizeTitle(upload.Title),
			Description: strings.TrimSpace(upload.Description),
			Thumbnail:   upload.Thumbnail,
			PublishedAt: upload.PublishedAt,
		}
		if err := h.store.UpsertPartnerVideo(ctx, video); err != nil {
			return count, fmt.Errorf("upsert %s: %w", upload.VideoID, err)
		}
		count++
		summary.Harvested++
		if opts.PlanJobs {
			if err := h.planJob(ctx, video, summary); err != nil {
				return count, err
			}
		}
	}
	return count, nil
}

// backfill tops the catalog up to the target minimum, first from canonical
// IDs and then from clearly tagged synthetic placeholders.
func (h *Harvester) backfill(ctx context.Context, opts Options, summary *Summary) error {
	if h.cfg.TargetMinimum <= 0 {
		return nil
	}
	count, err := h.store.CountPartnerVideos(ctx, false)
	if err != nil {
		return err
	}

	for _, videoID := range h.cfg.CanonicalVideoIDs {
		if count >= h.cfg.TargetMinimum {
			break
		}
		existing, err := h.store.GetPartnerVideo(ctx, videoID)
		if err != nil {
			return err
		}
		if existing != nil && !existing.Synthetic {
			continue
		}
		video := queue.PartnerVideo{
			VideoID:   videoID,
			ChannelID: "canonical",
			Title:     "Canonical source " + videoID,
		}
		if err := h.store.UpsertPartnerVideo(ctx, video); err != nil {
			return fmt.Errorf("upsert canonical %s: %w", videoID, err)
		}
		count++
		summary.Canonical++
		if opts.PlanJobs {
			if err := h.planJob(ctx, video, summary); err != nil {
				return err
			}
		}
	}

	total, err := h.store.CountPartnerVideos(ctx, true)
	if err != nil {
		return err
	}
	for total < h.cfg.TargetMinimum {
		videoID := "synthetic-" + uuid.NewString()[:8]
		video := queue.PartnerVideo{
			VideoID:   videoID,
			ChannelID: "synthetic",
			Title:     "Placeholder source " + videoID,
			Synthetic: true,
		}
		if err := h.store.UpsertPartnerVideo(ctx, video); err != nil {
			return fmt.Errorf("upsert synthetic: %w", err)
		}
		total++
		summary.Synthetic++
	}
	return nil
}

func (h *Harvester) planJob(ctx context.Context, video queue.PartnerVideo, summary *Summary) error {
	_, created, err := h.store.Plan(ctx, video.VideoID, video.ChannelName)
	if err != nil {
		return fmt.Errorf("plan job for %s: %w", video.VideoID, err)
	}
	if created {
		summary.Planned++
	}
	return nil
}
