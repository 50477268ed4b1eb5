package harvester_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reelsmith/internal/config"
	"reelsmith/internal/harvester"
	"reelsmith/internal/queue"
	"reelsmith/internal/services/fetch"
	"reelsmith/internal/testsupport"
)

type fakeLister struct {
	uploads map[string][]fetch.Upload
	fail    map[string]error
	calls   []string
}

func (f *fakeLister) ChannelUploads(_ context.Context, channelID string, _ int) ([]fetch.Upload, error) {
	f.calls = append(f.calls, channelID)
	if err := f.fail[channelID]; err != nil {
		return nil, err
	}
	return f.uploads[channelID], nil
}

func harvesterConfig(channels ...string) config.Harvester {
	return config.Harvester{
		Channels:           channels,
		RecencyWindowHours: 72,
		TargetMinimum:      0,
		RetainPerChannel:   10,
		PollsPerSecond:     1000,
	}
}

func TestRunHarvestsRecentUploads(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	now := time.Now().UTC()
	lister := &fakeLister{uploads: map[string][]fetch.Upload{
		"UCone": {
			{VideoID: "vid-new", ChannelID: "UCone", ChannelName: "Block Digest", Title: "  Fresh   update  ", PublishedAt: now.Add(-2 * time.Hour)},
			{VideoID: "vid-old", ChannelID: "UCone", Title: "Ancient upload", PublishedAt: now.Add(-200 * time.Hour)},
		},
	}}

	h := harvester.New(store, lister, harvesterConfig("UCone"), nil)
	summary, err := h.Run(context.Background(), harvester.Options{})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Harvested)
	require.Equal(t, 0, summary.ChannelsFailed)

	stored, err := store.GetPartnerVideo(context.Background(), "vid-new")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, "Fresh update", stored.Title)

	old, err := store.GetPartnerVideo(context.Background(), "vid-old")
	require.NoError(t, err)
	require.Nil(t, old, "uploads outside the recency window are skipped")
}

func TestRunIsolatesChannelFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	lister := &fakeLister{
		uploads: map[string][]fetch.Upload{
			"UCgood": {{VideoID: "vid-good", ChannelID: "UCgood", PublishedAt: time.Now().UTC()}},
		},
		fail: map[string]error{"UCbad": errors.New("rate limited")},
	}

	h := harvester.New(store, lister, harvesterConfig("UCbad", "UCgood"), nil)
	summary, err := h.Run(context.Background(), harvester.Options{})
	require.NoError(t, err)
	require.Equal(t, 2, summary.ChannelsPolled)
	require.Equal(t, 1, summary.ChannelsFailed)
	require.Equal(t, 1, summary.Harvested)
	require.Equal(t, []string{"UCbad", "UCgood"}, lister.calls)
}

func TestRunNormalizesShoutingTitles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	lister := &fakeLister{uploads: map[string][]fetch.Upload{
		"UCone": {{VideoID: "vid-caps", ChannelID: "UCone", Title: "BITCOIN CRASHES AGAIN", PublishedAt: time.Now().UTC()}},
	}}

	h := harvester.New(store, lister, harvesterConfig("UCone"), nil)
	_, err := h.Run(context.Background(), harvester.Options{})
	require.NoError(t, err)

	stored, err := store.GetPartnerVideo(context.Background(), "vid-caps")
	require.NoError(t, err)
	require.Equal(t, "Bitcoin Crashes Again", stored.Title)
}

func TestRunBackfillsCanonicalThenSynthetic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	harvestCfg := harvesterConfig("UCdead")
	harvestCfg.TargetMinimum = 3
	harvestCfg.CanonicalVideoIDs = []string{"canon-1"}

	lister := &fakeLister{fail: map[string]error{"UCdead": errors.New("offline")}}
	h := harvester.New(store, lister, harvestCfg, nil)

	summary, err := h.Run(context.Background(), harvester.Options{})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Canonical)
	require.Equal(t, 2, summary.Synthetic)

	canon, err := store.GetPartnerVideo(context.Background(), "canon-1")
	require.NoError(t, err)
	require.NotNil(t, canon)
	require.False(t, canon.Synthetic)

	recent, err := store.RecentPartnerVideos(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	synthetic := 0
	for _, video := range recent {
		if video.Synthetic {
			synthetic++
			require.True(t, strings.HasPrefix(video.VideoID, "synthetic-"))
		}
	}
	require.Equal(t, 2, synthetic)
}

func TestRunPlansJobsWhenRequested(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	lister := &fakeLister{uploads: map[string][]fetch.Upload{
		"UCone": {{VideoID: "vid-plan", ChannelID: "UCone", ChannelName: "Block Digest", PublishedAt: time.Now().UTC()}},
	}}

	h := harvester.New(store, lister, harvesterConfig("UCone"), nil)
	summary, err := h.Run(context.Background(), harvester.Options{PlanJobs: true})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Planned)

	job, err := store.GetByVideoID(context.Background(), "vid-plan")
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, queue.StatusPlanned, job.Status)

	// A second run must not double-plan.
	summary, err = h.Run(context.Background(), harvester.Options{PlanJobs: true})
	require.NoError(t, err)
	require.Equal(t, 0, summary.Planned)
}

func TestRunPrunesCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	uploads := make([]fetch.Upload, 0, 5)
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		uploads = append(uploads, fetch.Upload{
			VideoID:     "vid-" + string(rune('a'+i)),
			ChannelID:   "UCone",
			PublishedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	lister := &fakeLister{uploads: map[string][]fetch.Upload{"UCone": uploads}}

	harvestCfg := harvesterConfig("UCone")
	harvestCfg.RetainPerChannel = 2

	h := harvester.New(store, lister, harvestCfg, nil)
	summary, err := h.Run(context.Background(), harvester.Options{Prune: true})
	require.NoError(t, err)
	require.Equal(t, int64(3), summary.Pruned)

	count, err := store.CountPartnerVideos(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
