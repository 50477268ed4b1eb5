// Package tts wraps the external text-to-speech collaborator used for
// fallback narration.
package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/toolexec"
)

const defaultTimeout = 2 * time.Minute

// Service invokes the synthesizer binary through the shared runner.
type Service struct {
	runner  toolexec.Runner
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewService constructs a narration service. An empty binary defaults to
// piper.
func NewService(runner toolexec.Runner, binary string, timeout time.Duration, logger *slog.Logger) *Service {
	if binary == "" {
		binary = "piper"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		runner:  runner,
		binary:  binary,
		timeout: timeout,
		logger:  logger.With(logging.String(logging.FieldComponent, "tts")),
	}
}

// Synthesize renders short narration text to an audio file at dest. The text
// travels through a file next to dest so the argument contract stays stable
// for any synthesizer.
func (s *Service) Synthesize(ctx context.Context, text, dest string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return services.Wrap(services.ErrValidation, "narrate", "synthesize", "narration text required", nil)
	}
	if strings.TrimSpace(dest) == "" {
		return services.Wrap(services.ErrValidation, "narrate", "synthesize", "destination path required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "narrate", "synthesize", "create output directory", err)
	}

	textPath := strings.TrimSuffix(dest, filepath.Ext(dest)) + ".txt"
	if err := os.WriteFile(textPath, []byte(text+"\n"), 0o644); err != nil {
		return services.Wrap(services.ErrConfiguration, "narrate", "synthesize", "write narration text", err)
	}

	_, err := s.runner.Run(ctx, toolexec.Command{
		Binary:  s.binary,
		Args:    []string{"--input-file", textPath, "--output-file", dest},
		Timeout: s.timeout,
	})
	if err != nil {
		return services.Wrap(nil, "narrate", "synthesize", "synthesize narration", err)
	}

	info, statErr := os.Stat(dest)
	if statErr != nil || info.Size() == 0 {
		return services.Wrap(nil, "narrate", "synthesize",
			fmt.Sprintf("synthesizer produced no audio at %s", dest), statErr)
	}
	s.logger.Debug("narration synthesized",
		logging.Int("chars", len(text)),
		logging.Int64("bytes", info.Size()),
	)
	return nil
}
