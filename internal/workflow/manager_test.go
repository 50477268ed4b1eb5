package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reelsmith/internal/config"
	"reelsmith/internal/media/transcript"
	"reelsmith/internal/queue"
	"reelsmith/internal/render"
	"reelsmith/internal/testsupport"
	"reelsmith/internal/workflow"
)

func newManagerFixture(t *testing.T) (*workflow.Manager, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithConfig(func(cfg *config.Config) {
		cfg.Workflow.Workers = 2
		cfg.Workflow.QueuePollInterval = 1
		cfg.Workflow.ErrorRetryInterval = 1
		cfg.Workflow.HeartbeatInterval = 1
		cfg.Workflow.StaleAfterMinutes = 5
	}))
	store := testsupport.MustOpenStore(t, cfg)

	runner := testsupport.NewStubRunner()
	runner.Respond("ffprobe", []byte(sourceProbe), nil)

	pipeline := workflow.NewPipeline(store, cfg, workflow.Deps{
		Fetcher: &stubFetcher{},
		STT: &stubTranscriber{cues: transcript.Transcript{
			{Start: 0, End: 8, Text: "bitcoin update"},
		}},
		Planner: &stubPlanner{segments: []queue.Segment{
			{StartSec: 10, EndSec: 70, Score: 2, Reason: queue.ReasonKeywordHit},
		}},
		Renderer: &stubRenderer{result: render.Result{
			Artifacts:   []string{"segment_00.mp4"},
			EncoderPath: "software",
		}},
		Fallback:  &stubFallback{},
		Assembler: &stubAssembler{},
		Gate:      &stubGate{},
		Runner:    runner,
	}, nil)

	return workflow.NewManager(cfg, store, pipeline, nil), store
}

func TestManagerDrainsPlannedJobs(t *testing.T) {
	manager, store := newManagerFixture(t)
	ctx := context.Background()

	for _, videoID := range []string{"drain001", "drain002", "drain003"} {
		testsupport.MustPlan(t, store, videoID, "Chain Signal")
	}

	require.NoError(t, manager.Start(ctx))
	defer manager.Stop()

	require.Eventually(t, func() bool {
		stats, err := store.Stats(ctx)
		if err != nil {
			return false
		}
		return stats.Completed == 3 && stats.Planned == 0 && stats.Processing == 0
	}, 10*time.Second, 50*time.Millisecond)
}

func TestManagerStartTwiceErrors(t *testing.T) {
	manager, _ := newManagerFixture(t)
	ctx := context.Background()

	require.NoError(t, manager.Start(ctx))
	defer manager.Stop()

	require.Error(t, manager.Start(ctx))
}

func TestManagerStopIsIdempotent(t *testing.T) {
	manager, _ := newManagerFixture(t)

	require.NoError(t, manager.Start(context.Background()))
	manager.Stop()
	manager.Stop()
	require.False(t, manager.Running())
}

func TestManagerProcessesJobsPlannedAfterStart(t *testing.T) {
	manager, store := newManagerFixture(t)
	ctx := context.Background()

	require.NoError(t, manager.Start(ctx))
	defer manager.Stop()

	testsupport.MustPlan(t, store, "lateplan1", "Chain Signal")

	require.Eventually(t, func() bool {
		job, err := store.GetByVideoID(ctx, "lateplan1")
		return err == nil && job != nil && job.Status == queue.StatusCompleted
	}, 10*time.Second, 50*time.Millisecond)
}
