// Package render turns planned segments into validated vertical clip
// artifacts: extract, optional caption burn-in, brand composite, encode.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/encoder"
	"reelsmith/internal/logging"
	"reelsmith/internal/media/transcript"
	"reelsmith/internal/queue"
	"reelsmith/internal/services"
)

const (
	frameWidth  = 1080
	frameHeight = 1920

	// brandWash is the semi-transparent color layer applied over every
	// rendered frame for channel identity.
	brandWash = "0x0B1E3D@0.22"
)

// Transcriber is the slice of the speech-to-text service the worker needs
// for caption burn-in.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) (transcript.Transcript, error)
}

// Result reports the outcome of rendering a job's segments.
type Result struct {
	// Artifacts holds validated segment outputs in segment order.
	Artifacts []string
	Dropped   int
	// EncoderPath names the strategy the final successful encode used.
	EncoderPath string
}

// Worker renders segments one at a time through the encode strategy list.
type Worker struct {
	enc         *encoder.Encoder
	transcriber Transcriber
	gate        *Gate
	cfg         config.Render
	logger      *slog.Logger
}

// NewWorker constructs a render worker.
func NewWorker(enc *encoder.Encoder, transcriber Transcriber, gate *Gate, cfg config.Render, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Worker{
		enc:         enc,
		transcriber: transcriber,
		gate:        gate,
		cfg:         cfg,
		logger:      logger.With(logging.String(logging.FieldComponent, "render")),
	}
}

// RenderSegments renders every segment and keeps the ones that pass the
// gate. A failed segment is dropped and the rest continue; only zero valid
// artifacts is an error, which routes the job to the fallback tier.
func (w *Worker) RenderSegments(ctx context.Context, videoID string, segments []queue.Segment, sourcePath, workDir string) (Result, error) {
	result := Result{}
	if len(segments) == 0 {
		return result, services.Wrap(services.ErrAllSegmentsFailed, "render", "segments", "no segments planned", nil)
	}
	segmentsDir := filepath.Join(workDir, "segments")
	if err := os.MkdirAll(segmentsDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrConfiguration, "render", "workdir", "create segments directory", err)
	}

	logger := w.logger.With(logging.String(logging.FieldVideoID, videoID))
	for i, segment := range segments {
		artifact, strategy, err := w.renderSegment(ctx, segment, sourcePath, segmentsDir, i)
		if err != nil {
			result.Dropped++
			logger.Warn("segment dropped",
				logging.Int("segment", i),
				logging.Float64("start_sec", segment.StartSec),
				logging.Error(err),
			)
			continue
		}
		result.Artifacts = append(result.Artifacts, artifact)
		result.EncoderPath = strategy
		logger.Info("segment rendered",
			logging.Int("segment", i),
			logging.Float64("duration_sec", segment.DurationSec()),
			logging.String("strategy", strategy),
		)
	}

	if len(result.Artifacts) == 0 {
		return result, services.Wrap(services.ErrAllSegmentsFailed, "render", "segments",
			fmt.Sprintf("all %d segments failed", len(segments)), nil)
	}
	return result, nil
}

func (w *Worker) renderSegment(ctx context.Context, segment queue.Segment, sourcePath, segmentsDir string, index int) (string, string, error) {
	extractPath := filepath.Join(segmentsDir, fmt.Sprintf("extract_%02d.mp4", index))
	if err := w.extract(ctx, segment, sourcePath, extractPath); err != nil {
		return "", "", services.Wrap(services.ErrSegmentRender, "render", "extract",
			fmt.Sprintf("extract segment %d", index), err)
	}
	defer os.Remove(extractPath)

	srtPath := ""
	if w.cfg.CaptionsEnabled && w.transcriber != nil {
		srtPath = w.captionFile(ctx, extractPath, segmentsDir, index)
	}

	outputPath := filepath.Join(segmentsDir, fmt.Sprintf("segment_%02d.mp4", index))
	strategy, err := w.composite(ctx, extractPath, srtPath, outputPath)
	if srtPath != "" {
		_ = os.Remove(srtPath)
	}
	if err != nil {
		return "", "", services.Wrap(services.ErrSegmentRender, "render", "encode",
			fmt.Sprintf("encode segment %d", index), err)
	}

	if err := w.gate.Check(ctx, outputPath); err != nil {
		_ = os.Remove(outputPath)
		return "", "", err
	}
	return outputPath, strategy, nil
}

// extract pulls the sub-range out of the source through the strategy list,
// re-encoding so the segment starts clean on a keyframe.
func (w *Worker) extract(ctx context.Context, segment queue.Segment, sourcePath, dest string) error {
	_, err := w.enc.Encode(ctx, encoder.Request{
		Output:  dest,
		Timeout: time.Duration(w.cfg.ExtractTimeout) * time.Second,
		Args: func(codec string) []string {
			return []string{
				"-y",
				"-ss", formatSeconds(segment.StartSec),
				"-t", formatSeconds(segment.DurationSec()),
				"-i", sourcePath,
				"-c:v", codec,
				"-c:a", "aac",
				"-avoid_negative_ts", "make_zero",
				dest,
			}
		},
	})
	return err
}

// captionFile transcribes the extracted segment and writes an SRT file.
// Any failure here is non-fatal; the segment just goes out uncaptioned.
func (w *Worker) captionFile(ctx context.Context, extractPath, segmentsDir string, index int) string {
	transcribeCtx := ctx
	if w.cfg.TranscribeTimeout > 0 {
		var cancel context.CancelFunc
		transcribeCtx, cancel = context.WithTimeout(ctx, time.Duration(w.cfg.TranscribeTimeout)*time.Second)
		defer cancel()
	}
	cues, err := w.transcriber.Transcribe(transcribeCtx, extractPath)
	if err != nil || cues.Empty() {
		if err != nil {
			w.logger.Debug("caption transcription skipped", logging.Int("segment", index), logging.Error(err))
		}
		return ""
	}

	srtPath := filepath.Join(segmentsDir, fmt.Sprintf("segment_%02d.srt", index))
	if err := os.WriteFile(srtPath, []byte(formatSRT(cues)), 0o644); err != nil {
		w.logger.Debug("caption write failed", logging.Int("segment", index), logging.Error(err))
		return ""
	}
	return srtPath
}

// composite crops to vertical, lays the brand wash, burns captions when
// present, and encodes through the strategy list.
func (w *Worker) composite(ctx context.Context, input, srtPath, dest string) (string, error) {
	return w.enc.Encode(ctx, encoder.Request{
		Output:  dest,
		Timeout: time.Duration(w.cfg.EncodeTimeout) * time.Second,
		Args: func(codec string) []string {
			return []string{
				"-y",
				"-i", input,
				"-vf", compositeFilter(srtPath),
				"-c:v", codec,
				"-c:a", "aac",
				"-ar", "44100",
				"-preset", "fast",
				dest,
			}
		},
	})
}

func compositeFilter(srtPath string) string {
	filters := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", frameWidth, frameHeight),
		fmt.Sprintf("crop=%d:%d", frameWidth, frameHeight),
		fmt.Sprintf("drawbox=c=%s:t=fill", brandWash),
	}
	if srtPath != "" {
		filters = append(filters, "subtitles="+escapeFilterPath(srtPath))
	}
	return strings.Join(filters, ",")
}

// escapeFilterPath quotes a path for use inside an ffmpeg filter graph.
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, `\`, `\\`)
	path = strings.ReplaceAll(path, `'`, `\'`)
	path = strings.ReplaceAll(path, `:`, `\:`)
	return "'" + path + "'"
}

func formatSeconds(seconds float64) string {
	return fmt.Sprintf("%.3f", seconds)
}
