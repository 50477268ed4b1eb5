package queue_test

import (
	"context"
	"testing"
	"time"

	"reelsmith/internal/queue"
	"reelsmith/internal/testsupport"
)

func TestPlanIsIdempotentPerVideo(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first, created, err := store.Plan(ctx, "vid-001", "Block Digest")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !created {
		t.Fatal("expected first Plan to create a row")
	}
	if first.Status != queue.StatusPlanned {
		t.Fatalf("status = %s, want %s", first.Status, queue.StatusPlanned)
	}

	second, created, err := store.Plan(ctx, "vid-001", "Block Digest")
	if err != nil {
		t.Fatalf("Plan again: %v", err)
	}
	if created {
		t.Fatal("expected second Plan to reuse the existing row")
	}
	if second.ID != first.ID {
		t.Fatalf("job id changed: %d vs %d", second.ID, first.ID)
	}
}

func TestPlanReturnsTerminalJobUnchanged(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job := testsupport.MustPlan(t, store, "vid-done", "Block Digest")
	if ok, err := store.Claim(ctx, job.ID); err != nil || !ok {
		t.Fatalf("Claim: ok=%v err=%v", ok, err)
	}
	if err := store.MarkCompleted(ctx, job.ID, "/out/vid-done.mp4", queue.Metadata{ValidSegments: 3}); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	again, created, err := store.Plan(ctx, "vid-done", "Block Digest")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if created {
		t.Fatal("completed job must not be re-planned")
	}
	if again.Status != queue.StatusCompleted {
		t.Fatalf("status = %s, want %s", again.Status, queue.StatusCompleted)
	}
	if again.OutputPath != "/out/vid-done.mp4" {
		t.Fatalf("output path = %q", again.OutputPath)
	}
}

func TestPlanRejectsEmptyVideoID(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	if _, _, err := store.Plan(context.Background(), "  ", "Block Digest"); err == nil {
		t.Fatal("expected error for blank video id")
	}
}

func TestClaimIsSingleWinner(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job := testsupport.MustPlan(t, store, "vid-claim", "")
	ok, err := store.Claim(ctx, job.ID)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if !ok {
		t.Fatal("first claim should win")
	}

	ok, err = store.Claim(ctx, job.ID)
	if err != nil {
		t.Fatalf("Claim again: %v", err)
	}
	if ok {
		t.Fatal("second claim must lose")
	}

	claimed, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if claimed.Status != queue.StatusProcessing {
		t.Fatalf("status = %s, want %s", claimed.Status, queue.StatusProcessing)
	}
	if claimed.LastHeartbeat == nil {
		t.Fatal("claim should seed the heartbeat")
	}
}

func TestMarkFailedRequiresProcessing(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job := testsupport.MustPlan(t, store, "vid-fail", "")
	if err := store.MarkFailed(ctx, job.ID, "boom", queue.Metadata{}); err == nil {
		t.Fatal("expected MarkFailed to reject a planned job")
	}

	if ok, err := store.Claim(ctx, job.ID); err != nil || !ok {
		t.Fatalf("Claim: ok=%v err=%v", ok, err)
	}
	if err := store.MarkFailed(ctx, job.ID, "render exhausted", queue.Metadata{Reason: "render_exhaustion"}); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	failed, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if failed.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want %s", failed.Status, queue.StatusFailed)
	}
	if failed.Diagnostic != "render exhausted" {
		t.Fatalf("diagnostic = %q", failed.Diagnostic)
	}
	if failed.Metadata.Reason != "render_exhaustion" {
		t.Fatalf("metadata reason = %q", failed.Metadata.Reason)
	}

	// Terminal rows stay terminal.
	if err := store.MarkCompleted(ctx, job.ID, "/out/late.mp4", queue.Metadata{}); err == nil {
		t.Fatal("expected MarkCompleted to reject a failed job")
	}
}

func TestUpdatePreservesStatusAndOutput(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job := testsupport.MustPlan(t, store, "vid-update", "Block Digest")
	job.Segments = []queue.Segment{
		{StartSec: 12, EndSec: 58, Score: 7, Reason: queue.ReasonKeywordHit, Snippet: "breaking consensus bug"},
	}
	job.NarrationPath = "/tmp/narration.wav"
	job.Status = queue.StatusCompleted // must be ignored
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reloaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.Status != queue.StatusPlanned {
		t.Fatalf("Update must not change status, got %s", reloaded.Status)
	}
	if len(reloaded.Segments) != 1 || reloaded.Segments[0].Reason != queue.ReasonKeywordHit {
		t.Fatalf("segments not persisted: %+v", reloaded.Segments)
	}
	if reloaded.NarrationPath != "/tmp/narration.wav" {
		t.Fatalf("narration path = %q", reloaded.NarrationPath)
	}
}

func TestUpdateLeavesHeartbeatToMonitor(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job := testsupport.MustPlan(t, store, "vid-hb", "")
	if ok, err := store.Claim(ctx, job.ID); err != nil || !ok {
		t.Fatalf("Claim: ok=%v err=%v", ok, err)
	}
	if err := store.UpdateHeartbeat(ctx, job.ID); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}

	// A pipeline snapshot taken before the monitor beat carries no heartbeat.
	job.LastHeartbeat = nil
	job.Segments = []queue.Segment{
		{StartSec: 0, EndSec: 45, Reason: queue.ReasonCoverageWindow},
	}
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reloaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.LastHeartbeat == nil {
		t.Fatal("Update must not clear the monitor's heartbeat")
	}
	if len(reloaded.Segments) != 1 {
		t.Fatalf("segments not persisted: %+v", reloaded.Segments)
	}
}

func TestNextPlannedReturnsOldest(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.MustPlan(t, store, "vid-a", "")
	time.Sleep(5 * time.Millisecond)
	testsupport.MustPlan(t, store, "vid-b", "")

	next, err := store.NextPlanned(ctx)
	if err != nil {
		t.Fatalf("NextPlanned: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest job %d, got %+v", first.ID, next)
	}

	if ok, _ := store.Claim(ctx, first.ID); !ok {
		t.Fatal("claim oldest")
	}
	next, err = store.NextPlanned(ctx)
	if err != nil {
		t.Fatalf("NextPlanned after claim: %v", err)
	}
	if next == nil || next.VideoID != "vid-b" {
		t.Fatalf("expected vid-b, got %+v", next)
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	stale := testsupport.MustPlan(t, store, "vid-stale", "")
	fresh := testsupport.MustPlan(t, store, "vid-fresh", "")
	for _, job := range []*queue.Job{stale, fresh} {
		if ok, err := store.Claim(ctx, job.ID); err != nil || !ok {
			t.Fatalf("Claim %d: ok=%v err=%v", job.ID, ok, err)
		}
	}

	// Heartbeat only the fresh job after the cutoff passes.
	time.Sleep(20 * time.Millisecond)
	cutoff := time.Now().UTC()
	time.Sleep(20 * time.Millisecond)
	if err := store.UpdateHeartbeat(ctx, fresh.ID); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}

	reclaimed, err := store.ReclaimStaleProcessing(ctx, cutoff)
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("reclaimed = %d, want 1", reclaimed)
	}

	reStale, _ := store.GetByID(ctx, stale.ID)
	if reStale.Status != queue.StatusPlanned {
		t.Fatalf("stale job status = %s, want %s", reStale.Status, queue.StatusPlanned)
	}
	reFresh, _ := store.GetByID(ctx, fresh.ID)
	if reFresh.Status != queue.StatusProcessing {
		t.Fatalf("fresh job status = %s, want %s", reFresh.Status, queue.StatusProcessing)
	}
}

func TestRetryFailed(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	failJob := func(videoID string) *queue.Job {
		job := testsupport.MustPlan(t, store, videoID, "")
		if ok, err := store.Claim(ctx, job.ID); err != nil || !ok {
			t.Fatalf("Claim: ok=%v err=%v", ok, err)
		}
		if err := store.MarkFailed(ctx, job.ID, "transient", queue.Metadata{}); err != nil {
			t.Fatalf("MarkFailed: %v", err)
		}
		return job
	}

	first := failJob("vid-r1")
	failJob("vid-r2")
	completed := testsupport.MustPlan(t, store, "vid-ok", "")
	if ok, _ := store.Claim(ctx, completed.ID); !ok {
		t.Fatal("claim completed candidate")
	}
	if err := store.MarkCompleted(ctx, completed.ID, "/out/ok.mp4", queue.Metadata{}); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	count, err := store.RetryFailed(ctx, first.ID)
	if err != nil {
		t.Fatalf("RetryFailed(id): %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	count, err = store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed(all): %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1 remaining failed job", count)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Planned != 2 || stats.Failed != 0 || stats.Completed != 1 || stats.Total != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.MustPlan(t, store, "vid-l1", "")
	claimed := testsupport.MustPlan(t, store, "vid-l2", "")
	if ok, _ := store.Claim(ctx, claimed.ID); !ok {
		t.Fatal("claim")
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d", len(all))
	}

	processing, err := store.List(ctx, queue.StatusProcessing)
	if err != nil {
		t.Fatalf("List(processing): %v", err)
	}
	if len(processing) != 1 || processing[0].VideoID != "vid-l2" {
		t.Fatalf("unexpected processing list: %+v", processing)
	}
}

func TestClearCompletedLeavesOtherStates(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	done := testsupport.MustPlan(t, store, "vid-c1", "")
	if ok, _ := store.Claim(ctx, done.ID); !ok {
		t.Fatal("claim")
	}
	if err := store.MarkCompleted(ctx, done.ID, "/out/c1.mp4", queue.Metadata{}); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	testsupport.MustPlan(t, store, "vid-c2", "")

	removed, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	stats, _ := store.Stats(ctx)
	if stats.Total != 1 || stats.Planned != 1 {
		t.Fatalf("unexpected stats after clear: %+v", stats)
	}
}
