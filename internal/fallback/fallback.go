// Package fallback synthesizes a publishable still-image artifact for jobs
// whose source is missing, silent, or whose segment renders all failed.
package fallback

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
	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/services"
	"reelsmith/internal/toolexec"
)

const (
	frameWidth  = 1080
	frameHeight = 1920

	brandWash  = "0x0B1E3D@0.22"
	brandColor = "0x0B1E3D"

	encodeTimeout = 5 * time.Minute
)

// Narrator is the slice of the text-to-speech service the generator needs.
type Narrator interface {
	Synthesize(ctx context.Context, text, dest string) error
}

// Request describes one fallback artifact.
type Request struct {
	VideoID     string
	Title       string
	ChannelName string
	// Reason is the fallback trigger, recorded in job metadata by the caller.
	Reason string
	// ThumbnailPath points at a pre-fetched still, empty when none exists.
	ThumbnailPath string
	WorkDir       string
}

// Result is the produced artifact and its target duration.
type Result struct {
	Path        string
	DurationSec float64
	Narrated    bool
}

// Generator builds the fallback artifact through the encode strategy list.
type Generator struct {
	enc      *encoder.Encoder
	narrator Narrator
	runner   toolexec.Runner
	ffprobe  string
	cfg      config.Fallback
	logger   *slog.Logger
}

// New constructs a fallback generator.
func New(enc *encoder.Encoder, narrator Narrator, runner toolexec.Runner, ffprobeBinary string, cfg config.Fallback, logger *slog.Logger) *Generator {
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{
		enc:      enc,
		narrator: narrator,
		runner:   runner,
		ffprobe:  ffprobeBinary,
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "fallback")),
	}
}

// Generate produces the still-image artifact: thumbnail or brand background
// (or a flat brand frame when neither exists), title card, wash overlay,
// and narration or silence padded to the configured duration window.
func (g *Generator) Generate(ctx context.Context, req Request) (Result, error) {
	if req.WorkDir == "" {
		return Result{}, services.Wrap(services.ErrValidation, "fallback", "generate", "work directory required", nil)
	}
	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "fallback", "generate", "create work directory", err)
	}
	logger := g.logger.With(logging.String(logging.FieldVideoID, req.VideoID))

	background, synthetic := g.background(req.ThumbnailPath)
	narrationPath, narrationDur := g.narration(ctx, req, logger)
	duration := g.clampDuration(narrationDur)

	output := filepath.Join(req.WorkDir, "fallback.mp4")
	_, err := g.enc.Encode(ctx, encoder.Request{
		Output:  output,
		Timeout: encodeTimeout,
		Args: func(codec string) []string {
			return g.encodeArgs(codec, background, synthetic, narrationPath, req, duration, output)
		},
	})
	if err != nil {
		return Result{}, services.Wrap(nil, "fallback", "encode", "render fallback artifact", err)
	}

	logger.Info("fallback artifact produced",
		logging.String("reason", req.Reason),
		logging.Float64("duration_sec", duration),
		logging.Bool("narrated", narrationPath != ""),
	)
	return Result{Path: output, DurationSec: duration, Narrated: narrationPath != ""}, nil
}

// background picks the still source: the fetched thumbnail, then the brand
// background asset, then a synthesized flat brand frame.
func (g *Generator) background(thumbnailPath string) (string, bool) {
	if thumbnailPath != "" {
		if info, err := os.Stat(thumbnailPath); err == nil && info.Size() > 0 {
			return thumbnailPath, false
		}
	}
	if g.cfg.BrandBackground != "" {
		if info, err := os.Stat(g.cfg.BrandBackground); err == nil && info.Size() > 0 {
			return g.cfg.BrandBackground, false
		}
	}
	return fmt.Sprintf("color=c=%s:s=%dx%d", brandColor, frameWidth, frameHeight), true
}

// narration synthesizes the voiceover and probes its length. Every failure
// here downgrades to the silent path.
func (g *Generator) narration(ctx context.Context, req Request, logger *slog.Logger) (string, float64) {
	if !g.cfg.NarrationEnabled || g.narrator == nil {
		return "", 0
	}
	dest := filepath.Join(req.WorkDir, "narration.wav")
	if err := g.narrator.Synthesize(ctx, narrationText(req), dest); err != nil {
		logger.Warn("narration unavailable, padding with silence", logging.Error(err))
		return "", 0
	}
	probed, err := ffprobe.Inspect(ctx, g.runner, g.ffprobe, dest)
	if err != nil {
		logger.Warn("narration probe failed, padding with silence", logging.Error(err))
		return "", 0
	}
	return dest, probed.DurationSeconds()
}

func (g *Generator) clampDuration(narrationDur float64) float64 {
	duration := narrationDur
	if duration < float64(g.cfg.MinSeconds) {
		duration = float64(g.cfg.MinSeconds)
	}
	if duration > float64(g.cfg.MaxSeconds) {
		duration = float64(g.cfg.MaxSeconds)
	}
	return duration
}

func (g *Generator) encodeArgs(codec, background string, synthetic bool, narrationPath string, req Request, duration float64, output string) []string {
	args := []string{"-y"}
	if synthetic {
		args = append(args, "-f", "lavfi", "-i", background)
	} else {
		args = append(args, "-loop", "1", "-i", background)
	}
	if narrationPath != "" {
		args = append(args, "-i", narrationPath)
	} else {
		args = append(args, "-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=44100")
	}
	args = append(args,
		"-t", fmt.Sprintf("%.3f", duration),
		"-vf", titleCardFilter(req),
		"-c:v", codec,
		"-c:a", "aac",
		"-ar", "44100",
		"-pix_fmt", "yuv420p",
		output,
	)
	return args
}

func titleCardFilter(req Request) string {
	filters := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", frameWidth, frameHeight),
		fmt.Sprintf("crop=%d:%d", frameWidth, frameHeight),
		fmt.Sprintf("drawbox=c=%s:t=fill", brandWash),
	}
	if title := cardText(req); title != "" {
		filters = append(filters, fmt.Sprintf(
			"drawtext=text='%s':fontcolor=white:fontsize=64:x=(w-text_w)/2:y=h*0.4",
			escapeDrawText(title),
		))
	}
	if channel := strings.TrimSpace(req.ChannelName); channel != "" {
		filters = append(filters, fmt.Sprintf(
			"drawtext=text='%s':fontcolor=white@0.8:fontsize=40:x=(w-text_w)/2:y=h*0.55",
			escapeDrawText(channel),
		))
	}
	return strings.Join(filters, ",")
}

func cardText(req Request) string {
	if title := strings.TrimSpace(req.Title); title != "" {
		return title
	}
	if req.VideoID != "" {
		return "Daily brief: " + req.VideoID
	}
	return "Daily brief"
}

func narrationText(req Request) string {
	title := cardText(req)
	channel := strings.TrimSpace(req.ChannelName)
	if channel == "" {
		return title + ". Full coverage at the link in our bio."
	}
	return fmt.Sprintf("%s, from %s. Full coverage at the link in our bio.", title, channel)
}

func escapeDrawText(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, `'`, `\\\'`)
	text = strings.ReplaceAll(text, `:`, `\:`)
	text = strings.ReplaceAll(text, `%`, `\%`)
	return text
}
