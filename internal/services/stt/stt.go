// Package stt wraps the external speech-to-text collaborator. Input is a
// media path; output is an ordered cue list, empty when no speech was found.
package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reelsmith/internal/logging"
	"reelsmith/internal/media/transcript"
	"reelsmith/internal/services"
	"reelsmith/internal/toolexec"
)

const defaultTimeout = 15 * time.Minute

// Service invokes the transcriber binary through the shared runner.
type Service struct {
	runner  toolexec.Runner
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewService constructs a transcription service. An empty binary defaults to
// whisperctl.
func NewService(runner toolexec.Runner, binary string, timeout time.Duration, logger *slog.Logger) *Service {
	if binary == "" {
		binary = "whisperctl"
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
		logger:  logger.With(logging.String(logging.FieldComponent, "stt")),
	}
}

type cuePayload struct {
	Cues     []transcript.Cue `json:"cues"`
	Segments []transcript.Cue `json:"segments"`
}

// Transcribe runs speech-to-text over a media file and returns the ordered
// cue list. A run that finds no speech returns an empty transcript, not an
// error; tool failures surface as errors for the caller's fallback policy.
func (s *Service) Transcribe(ctx context.Context, mediaPath string) (transcript.Transcript, error) {
	if strings.TrimSpace(mediaPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "transcribe", "run", "media path required", nil)
	}

	result, err := s.runner.Run(ctx, toolexec.Command{
		Binary:  s.binary,
		Args:    []string{"--output-format", "json", mediaPath},
		Timeout: s.timeout,
	})
	if err != nil {
		return nil, services.Wrap(nil, "transcribe", "run",
			fmt.Sprintf("transcribe %s", mediaPath), err)
	}

	cues, err := Decode(result.Output)
	if err != nil {
		return nil, services.Wrap(nil, "transcribe", "decode", "parse transcriber output", err)
	}
	s.logger.Debug("transcription finished",
		logging.Int("cues", len(cues)),
		logging.Float64("duration_sec", cues.Duration()),
	)
	return cues, nil
}

// Decode parses transcriber JSON output, accepting either a cues or a
// segments array, and drops malformed entries.
func Decode(payload []byte) (transcript.Transcript, error) {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return nil, nil
	}
	var parsed cuePayload
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, err
	}
	raw := parsed.Cues
	if len(raw) == 0 {
		raw = parsed.Segments
	}

	cues := make(transcript.Transcript, 0, len(raw))
	for _, cue := range raw {
		cue.Text = strings.TrimSpace(cue.Text)
		if cue.Text == "" || cue.End <= cue.Start {
			continue
		}
		cues = append(cues, cue)
	}
	return cues, nil
}
