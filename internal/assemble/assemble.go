// Package assemble stitches validated clip artifacts into the final branded
// reel: concat, outro, and CTA banner overlays.
package assemble

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

	brandColor = "0x0B1E3D"

	// ctaSeconds is how long each CTA banner stays on screen.
	ctaSeconds = 4.0

	concatTimeout = 5 * time.Minute
)

// Request describes one final assembly.
type Request struct {
	VideoID string
	// Artifacts are validated segment outputs (or the single fallback
	// artifact) in presentation order.
	Artifacts  []string
	WorkDir    string
	OutputPath string
}

// Result is the finished reel.
type Result struct {
	Path        string
	DurationSec float64
}

// Assembler owns concatenation and branding.
type Assembler struct {
	enc     *encoder.Encoder
	runner  toolexec.Runner
	ffmpeg  string
	ffprobe string
	cfg     config.Assemble
	logger  *slog.Logger
}

// New constructs an assembler.
func New(enc *encoder.Encoder, runner toolexec.Runner, ffmpegBinary, ffprobeBinary string, cfg config.Assemble, logger *slog.Logger) *Assembler {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Assembler{
		enc:     enc,
		runner:  runner,
		ffmpeg:  ffmpegBinary,
		ffprobe: ffprobeBinary,
		cfg:     cfg,
		logger:  logger.With(logging.String(logging.FieldComponent, "assemble")),
	}
}

// Assemble concatenates the artifacts plus the outro, then overlays the CTA
// banners. Lossless concat runs first; on failure the re-encode path takes
// over. Only both concat paths failing is a terminal error.
func (a *Assembler) Assemble(ctx context.Context, req Request) (Result, error) {
	if len(req.Artifacts) == 0 {
		return Result{}, services.Wrap(services.ErrConcatenation, "assemble", "inputs", "no artifacts to concatenate", nil)
	}
	if req.WorkDir == "" || req.OutputPath == "" {
		return Result{}, services.Wrap(services.ErrValidation, "assemble", "inputs", "work dir and output path required", nil)
	}
	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "assemble", "workdir", "create work directory", err)
	}
	logger := a.logger.With(logging.String(logging.FieldVideoID, req.VideoID))

	outroPath, err := a.outro(ctx, req.WorkDir)
	if err != nil {
		// The reel still ships without an outro.
		logger.Warn("outro unavailable", logging.Error(err))
		outroPath = ""
	}

	clips := append([]string{}, req.Artifacts...)
	if outroPath != "" {
		clips = append(clips, outroPath)
	}
	listPath := filepath.Join(req.WorkDir, "concat.txt")
	if err := writeConcatList(listPath, clips); err != nil {
		return Result{}, services.Wrap(services.ErrConcatenation, "assemble", "list", "write concat list", err)
	}

	concatPath := filepath.Join(req.WorkDir, "concat.mp4")
	if err := a.concatLossless(ctx, listPath, concatPath); err != nil {
		logger.Warn("lossless concat failed, re-encoding", logging.Error(err))
		if _, encErr := a.concatReencode(ctx, listPath, concatPath); encErr != nil {
			return Result{}, services.Wrap(services.ErrConcatenation, "assemble", "concat",
				"both concat paths failed", encErr)
		}
	}

	if err := a.brand(ctx, concatPath, req.OutputPath); err != nil {
		// Branding failure is not a reason to lose the reel.
		logger.Warn("cta overlay failed, shipping unbranded reel", logging.Error(err))
		if copyErr := os.Rename(concatPath, req.OutputPath); copyErr != nil {
			return Result{}, services.Wrap(services.ErrConcatenation, "assemble", "finalize", "move reel into place", copyErr)
		}
	} else {
		_ = os.Remove(concatPath)
	}

	duration := a.probeDuration(ctx, req.OutputPath)
	logger.Info("reel assembled",
		logging.Int("clips", len(clips)),
		logging.Float64("duration_sec", duration),
	)
	return Result{Path: req.OutputPath, DurationSec: duration}, nil
}

// outro returns the configured brand outro, synthesizing a minimal generic
// closing card when no asset exists.
func (a *Assembler) outro(ctx context.Context, workDir string) (string, error) {
	if a.cfg.OutroSeconds <= 0 {
		return "", nil
	}
	if a.cfg.OutroPath != "" {
		if info, err := os.Stat(a.cfg.OutroPath); err == nil && info.Size() > 0 {
			return a.cfg.OutroPath, nil
		}
	}

	synthesized := filepath.Join(workDir, "outro.mp4")
	_, err := a.enc.Encode(ctx, encoder.Request{
		Output:  synthesized,
		Timeout: concatTimeout,
		Args: func(codec string) []string {
			return []string{
				"-y",
				"-f", "lavfi", "-i", fmt.Sprintf("color=c=%s:s=%dx%d", brandColor, frameWidth, frameHeight),
				"-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
				"-t", fmt.Sprintf("%d", a.cfg.OutroSeconds),
				"-vf", fmt.Sprintf(
					"drawtext=text='%s':fontcolor=white:fontsize=56:x=(w-text_w)/2:y=(h-text_h)/2",
					escapeDrawText(a.cfg.CTAPrimary),
				),
				"-c:v", codec,
				"-c:a", "aac",
				"-ar", "44100",
				"-pix_fmt", "yuv420p",
				synthesized,
			}
		},
	})
	if err != nil {
		return "", err
	}
	return synthesized, nil
}

func (a *Assembler) concatLossless(ctx context.Context, listPath, output string) error {
	_, err := a.runner.Run(ctx, toolexec.Command{
		Binary: a.ffmpeg,
		Args: []string{
			"-y",
			"-f", "concat",
			"-safe", "0",
			"-i", listPath,
			"-c", "copy",
			output,
		},
		Timeout: concatTimeout,
	})
	if err != nil {
		return err
	}
	info, statErr := os.Stat(output)
	if statErr != nil || info.Size() == 0 {
		return fmt.Errorf("lossless concat produced no output")
	}
	return nil
}

func (a *Assembler) concatReencode(ctx context.Context, listPath, output string) (string, error) {
	return a.enc.Encode(ctx, encoder.Request{
		Output:  output,
		Timeout: concatTimeout,
		Args: func(codec string) []string {
			return []string{
				"-y",
				"-f", "concat",
				"-safe", "0",
				"-i", listPath,
				"-c:v", codec,
				"-c:a", "aac",
				"-ar", "44100",
				output,
			}
		},
	})
}

// brand overlays the two CTA banners at their configured temporal fractions
// of the reel's duration.
func (a *Assembler) brand(ctx context.Context, input, output string) error {
	total := a.probeDuration(ctx, input)
	filter := a.ctaFilter(total)
	if filter == "" {
		return os.Rename(input, output)
	}

	_, err := a.enc.Encode(ctx, encoder.Request{
		Output:  output,
		Timeout: concatTimeout,
		Args: func(codec string) []string {
			return []string{
				"-y",
				"-i", input,
				"-vf", filter,
				"-c:v", codec,
				"-c:a", "copy",
				output,
			}
		},
	})
	return err
}

func (a *Assembler) ctaFilter(totalSec float64) string {
	if totalSec <= 0 {
		return ""
	}
	banners := []string{a.cfg.CTAPrimary, a.cfg.CTASecondary}
	var filters []string
	for i, fraction := range a.cfg.CTAFractions {
		if i >= len(banners) || strings.TrimSpace(banners[i]) == "" {
			break
		}
		start := totalSec * fraction
		end := start + ctaSeconds
		if end > totalSec {
			end = totalSec
		}
		filters = append(filters, fmt.Sprintf(
			"drawtext=text='%s':fontcolor=white:fontsize=48:box=1:boxcolor=%s@0.6:boxborderw=18:x=(w-text_w)/2:y=h*0.82:enable='between(t,%.2f,%.2f)'",
			escapeDrawText(banners[i]), brandColor, start, end,
		))
	}
	return strings.Join(filters, ",")
}

func (a *Assembler) probeDuration(ctx context.Context, path string) float64 {
	probed, err := ffprobe.Inspect(ctx, a.runner, a.ffprobe, path)
	if err != nil {
		return 0
	}
	return probed.DurationSeconds()
}

func writeConcatList(listPath string, clips []string) error {
	var b strings.Builder
	for _, clip := range clips {
		abs, err := filepath.Abs(clip)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "file '%s'\n", abs)
	}
	return os.WriteFile(listPath, []byte(b.String()), 0o644)
}

func escapeDrawText(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, `'`, `\\\'`)
	text = strings.ReplaceAll(text, `:`, `\:`)
	text = strings.ReplaceAll(text, `%`, `\%`)
	return text
}
