package tts_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reelsmith/internal/services"
	"reelsmith/internal/services/tts"
	"reelsmith/internal/testsupport"
	"reelsmith/internal/toolexec"
)

func TestSynthesizeWritesTextAndChecksOutput(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "narration.wav")

	runner := testsupport.NewStubRunner()
	runner.Handle("piper", func(cmd toolexec.Command) (toolexec.Result, error) {
		for i, arg := range cmd.Args {
			if arg == "--output-file" {
				testsupport.WriteSizedFile(t, cmd.Args[i+1], 2048)
			}
		}
		return toolexec.Result{}, nil
	})
	svc := tts.NewService(runner, "piper", time.Minute, nil)

	err := svc.Synthesize(context.Background(), "Markets react to the consensus bug.", dest)
	require.NoError(t, err)
	require.FileExists(t, dest)
	require.FileExists(t, filepath.Join(dir, "narration.txt"))
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	svc := tts.NewService(testsupport.NewStubRunner(), "piper", time.Minute, nil)

	err := svc.Synthesize(context.Background(), "  ", filepath.Join(t.TempDir(), "out.wav"))
	require.ErrorIs(t, err, services.ErrValidation)
}

func TestSynthesizeMissingOutputIsError(t *testing.T) {
	svc := tts.NewService(testsupport.NewStubRunner(), "piper", time.Minute, nil)

	err := svc.Synthesize(context.Background(), "hello", filepath.Join(t.TempDir(), "out.wav"))
	require.ErrorIs(t, err, services.ErrExternalTool)
}

func TestSynthesizeToolFailure(t *testing.T) {
	runner := testsupport.NewStubRunner()
	runner.Respond("piper", nil, errors.New("voice model missing"))
	svc := tts.NewService(runner, "piper", time.Minute, nil)

	err := svc.Synthesize(context.Background(), "hello", filepath.Join(t.TempDir(), "out.wav"))
	require.ErrorIs(t, err, services.ErrExternalTool)
}
