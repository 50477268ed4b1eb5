// Package workflow drives claimed jobs through the clip pipeline and the
// fallback tier, recording the terminal state in the queue store.
package workflow

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"reelsmith/internal/assemble"
	"reelsmith/internal/config"
	"reelsmith/internal/encoder"
	"reelsmith/internal/fallback"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/media/transcript"
	"reelsmith/internal/planner"
	"reelsmith/internal/queue"
	"reelsmith/internal/render"
	"reelsmith/internal/services"
	"reelsmith/internal/services/fetch"
	"reelsmith/internal/services/stt"
	"reelsmith/internal/services/tts"
	"reelsmith/internal/textutil"
	"reelsmith/internal/toolexec"
)

// Fetcher is the slice of the download service the pipeline needs.
type Fetcher interface {
	Download(ctx context.Context, videoID, destDir string) (string, error)
	Thumbnail(ctx context.Context, videoID, destDir string) (string, error)
}

// Transcriber produces cue timelines from downloaded media.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) (transcript.Transcript, error)
}

// SegmentPlanner selects clip windows from a transcript.
type SegmentPlanner interface {
	Plan(cues transcript.Transcript, totalDurationSec float64) []queue.Segment
}

// Renderer turns planned segments into branded vertical clips.
type Renderer interface {
	RenderSegments(ctx context.Context, videoID string, segments []queue.Segment, sourcePath, workDir string) (render.Result, error)
}

// FallbackGenerator builds the still-image artifact when the clip tier
// cannot produce segments.
type FallbackGenerator interface {
	Generate(ctx context.Context, req fallback.Request) (fallback.Result, error)
}

// Assembler concatenates artifacts into the published reel.
type Assembler interface {
	Assemble(ctx context.Context, req assemble.Request) (assemble.Result, error)
}

// ArtifactGate validates rendered files before downstream stages use them.
type ArtifactGate interface {
	Check(ctx context.Context, path string) error
}

// Outcome summarizes one job's trip through the pipeline.
type Outcome struct {
	JobID            int64   `json:"job_id"`
	VideoID          string  `json:"video_id"`
	Status           string  `json:"status"`
	OutputPath       string  `json:"output_path,omitempty"`
	PublishedPath    string  `json:"published_path,omitempty"`
	Reason           string  `json:"reason,omitempty"`
	ValidSegments    int     `json:"valid_segments,omitempty"`
	DroppedSegments  int     `json:"dropped_segments,omitempty"`
	EncoderPath      string  `json:"encoder_path,omitempty"`
	FinalDurationSec float64 `json:"final_duration_sec,omitempty"`
	Diagnostic       string  `json:"diagnostic,omitempty"`
}

// Pipeline processes one claimed job at a time to a terminal state.
type Pipeline struct {
	store     *queue.Store
	cfg       *config.Config
	fetcher   Fetcher
	stt       Transcriber
	planner   SegmentPlanner
	renderer  Renderer
	fallback  FallbackGenerator
	assembler Assembler
	gate      ArtifactGate
	runner    toolexec.Runner
	ffprobe   string
	logger    *slog.Logger
}

// Deps carries the stage services a Pipeline runs.
type Deps struct {
	Fetcher   Fetcher
	STT       Transcriber
	Planner   SegmentPlanner
	Renderer  Renderer
	Fallback  FallbackGenerator
	Assembler Assembler
	Gate      ArtifactGate
	Runner    toolexec.Runner
}

// NewPipeline constructs a pipeline from explicit stage services.
func NewPipeline(store *queue.Store, cfg *config.Config, deps Deps, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		store:     store,
		cfg:       cfg,
		fetcher:   deps.Fetcher,
		stt:       deps.STT,
		planner:   deps.Planner,
		renderer:  deps.Renderer,
		fallback:  deps.Fallback,
		assembler: deps.Assembler,
		gate:      deps.Gate,
		runner:    deps.Runner,
		ffprobe:   cfg.Tools.FFprobe,
		logger:    logger.With(logging.String(logging.FieldComponent, "pipeline")),
	}
}

// NewDefaultPipeline wires the production stage services from config.
func NewDefaultPipeline(store *queue.Store, cfg *config.Config, runner toolexec.Runner, logger *slog.Logger) *Pipeline {
	enc := encoder.New(runner, cfg.Tools.FFmpeg, cfg.Render, logger)
	gate := render.NewGate(runner, cfg.Tools.FFprobe, cfg.Render.MinOutputBytes)
	transcriber := stt.NewService(runner, cfg.Tools.Transcriber, 0, logger)
	narrator := tts.NewService(runner, cfg.Tools.Synthesizer, 0, logger)
	deps := Deps{
		Fetcher:   fetch.NewService(runner, cfg.Tools.Downloader, 0, logger),
		STT:       transcriber,
		Planner:   planner.New(cfg.Planner),
		Renderer:  render.NewWorker(enc, transcriber, gate, cfg.Render, logger),
		Fallback:  fallback.New(enc, narrator, runner, cfg.Tools.FFprobe, cfg.Fallback, logger),
		Assembler: assemble.New(enc, runner, cfg.Tools.FFmpeg, cfg.Tools.FFprobe, cfg.Assemble, logger),
		Gate:      gate,
		Runner:    runner,
	}
	return NewPipeline(store, cfg, deps, logger)
}

// Process runs one claimed job to a terminal state. The returned error is
// reserved for store failures that prevented recording the outcome; pipeline
// failures surface through the Outcome status and the job's diagnostic.
func (p *Pipeline) Process(ctx context.Context, job *queue.Job) (Outcome, error) {
	out := Outcome{JobID: job.ID, VideoID: job.VideoID}
	logger := logging.WithContext(ctx, p.logger).With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldVideoID, job.VideoID),
	)

	workDir := p.cfg.JobDir(job.VideoID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return p.fail(ctx, job, &out, queue.Metadata{}, services.Wrap(services.ErrConfiguration, "pipeline", "workdir", "create job directory", err))
	}

	meta := queue.Metadata{}
	artifacts, err := p.clipTier(ctx, job, workDir, &meta, logger)
	if err != nil {
		if !services.FallbackEligible(err) {
			return p.fail(ctx, job, &out, meta, err)
		}
		meta.Reason = services.FallbackReason(err)
		logger.Info("routing job to fallback tier",
			logging.String("reason", meta.Reason),
			logging.Error(err))
		artifact, fbErr := p.fallbackTier(ctx, job, workDir, meta.Reason, logger)
		if fbErr != nil {
			return p.fail(ctx, job, &out, meta, fbErr)
		}
		artifacts = []string{artifact}
		meta.ValidSegments = 0
	}

	result, err := p.assembler.Assemble(ctx, assemble.Request{
		VideoID:    job.VideoID,
		Artifacts:  artifacts,
		WorkDir:    workDir,
		OutputPath: filepath.Join(workDir, textutil.SanitizeFileName(job.VideoID)+"_reel.mp4"),
	})
	if err != nil {
		return p.fail(ctx, job, &out, meta, err)
	}
	meta.FinalDurationSec = result.DurationSec

	published := p.publish(result.Path, job.VideoID, logger)

	if err := p.store.MarkCompleted(ctx, job.ID, result.Path, meta); err != nil {
		return out, err
	}
	out.Status = string(queue.StatusCompleted)
	out.OutputPath = result.Path
	out.PublishedPath = published
	out.Reason = meta.Reason
	out.ValidSegments = meta.ValidSegments
	out.DroppedSegments = meta.DroppedSegments
	out.EncoderPath = meta.EncoderPath
	out.FinalDurationSec = meta.FinalDurationSec
	logger.Info("job completed",
		logging.String("output", result.Path),
		logging.Float64("duration_sec", result.DurationSec),
		logging.String("reason", meta.Reason))
	return out, nil
}

// clipTier runs download through render. Errors bubble up wrapped with the
// sentinel that decides fallback eligibility.
func (p *Pipeline) clipTier(ctx context.Context, job *queue.Job, workDir string, meta *queue.Metadata, logger *slog.Logger) ([]string, error) {
	source, err := p.fetcher.Download(ctx, job.VideoID, workDir)
	if err != nil {
		return nil, err
	}

	var totalDuration float64
	if probed, probeErr := ffprobe.Inspect(ctx, p.runner, p.ffprobe, source); probeErr == nil {
		totalDuration = probed.DurationSeconds()
	} else {
		logger.Warn("source probe failed, planner falls back to cue extent", logging.Error(probeErr))
	}

	cues, err := p.stt.Transcribe(ctx, source)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscriptionEmpty, "pipeline", "transcribe", "transcription unavailable", err)
	}
	if cues.Empty() {
		return nil, services.Wrap(services.ErrTranscriptionEmpty, "pipeline", "transcribe", "no usable cues", nil)
	}

	segments := p.planner.Plan(cues, totalDuration)
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrTranscriptionEmpty, "pipeline", "plan", "planner produced no windows", nil)
	}
	job.Segments = segments
	if err := p.store.Update(ctx, job); err != nil {
		return nil, err
	}
	logger.Info("segments planned", logging.Int("count", len(segments)))

	result, err := p.renderer.RenderSegments(ctx, job.VideoID, segments, source, workDir)
	meta.ValidSegments = len(result.Artifacts)
	meta.DroppedSegments = result.Dropped
	meta.EncoderPath = result.EncoderPath
	if err != nil {
		return nil, err
	}
	return result.Artifacts, nil
}

// fallbackTier produces the still-image artifact. The thumbnail fetch is
// best effort; the generator substitutes the brand background when it fails.
func (p *Pipeline) fallbackTier(ctx context.Context, job *queue.Job, workDir, reason string, logger *slog.Logger) (string, error) {
	thumbnail := ""
	if path, err := p.fetcher.Thumbnail(ctx, job.VideoID, workDir); err == nil {
		thumbnail = path
	} else {
		logger.Debug("thumbnail fetch failed", logging.Error(err))
	}

	title := ""
	channel := job.ChannelName
	if video, err := p.store.GetPartnerVideo(ctx, job.VideoID); err == nil && video != nil {
		title = video.Title
		if channel == "" {
			channel = video.ChannelName
		}
	}

	result, err := p.fallback.Generate(ctx, fallback.Request{
		VideoID:       job.VideoID,
		Title:         title,
		ChannelName:   channel,
		Reason:        reason,
		ThumbnailPath: thumbnail,
		WorkDir:       workDir,
	})
	if err != nil {
		return "", err
	}
	if p.gate != nil {
		if err := p.gate.Check(ctx, result.Path); err != nil {
			return "", err
		}
	}
	if result.Narrated {
		job.NarrationPath = filepath.Join(workDir, "narration.wav")
		if err := p.store.Update(ctx, job); err != nil {
			logger.Warn("narration path update failed", logging.Error(err))
		}
	}
	return result.Path, nil
}

// publish copies the reel into the publish directory. Failure leaves the
// artifact in the job directory and does not fail the job.
func (p *Pipeline) publish(reelPath, videoID string, logger *slog.Logger) string {
	if p.cfg.Paths.PublishDir == "" {
		return ""
	}
	dest := filepath.Join(p.cfg.Paths.PublishDir, textutil.SanitizeFileName(videoID)+".mp4")
	if err := os.MkdirAll(p.cfg.Paths.PublishDir, 0o755); err != nil {
		logger.Warn("publish directory unavailable", logging.Error(err))
		return ""
	}
	if err := fileutil.CopyFileVerified(reelPath, dest); err != nil {
		logger.Warn("publish copy failed", logging.Error(err))
		return ""
	}
	return dest
}

func (p *Pipeline) fail(ctx context.Context, job *queue.Job, out *Outcome, meta queue.Metadata, cause error) (Outcome, error) {
	diagnostic := services.Details(cause).Message
	if diagnostic == "" {
		diagnostic = cause.Error()
	}
	if err := p.store.MarkFailed(ctx, job.ID, diagnostic, meta); err != nil {
		return *out, err
	}
	out.Status = string(queue.StatusFailed)
	out.Reason = meta.Reason
	out.ValidSegments = meta.ValidSegments
	out.DroppedSegments = meta.DroppedSegments
	out.EncoderPath = meta.EncoderPath
	out.Diagnostic = diagnostic
	p.logger.Error("job failed",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldVideoID, job.VideoID),
		logging.String("diagnostic", diagnostic),
		logging.Error(cause))
	return *out, nil
}
