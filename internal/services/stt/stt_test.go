package stt_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reelsmith/internal/services"
	"reelsmith/internal/services/stt"
	"reelsmith/internal/testsupport"
)

func TestTranscribeParsesCues(t *testing.T) {
	runner := testsupport.NewStubRunner()
	runner.Respond("whisperctl", []byte(`{
        "cues": [
            {"start": 0.0, "end": 4.5, "text": "welcome back to the show"},
            {"start": 4.5, "end": 9.2, "text": "breaking news on the consensus bug"},
            {"start": 9.2, "end": 9.2, "text": "degenerate cue"},
            {"start": 10.0, "end": 12.0, "text": "   "}
        ]
    }`), nil)
	svc := stt.NewService(runner, "whisperctl", time.Minute, nil)

	cues, err := svc.Transcribe(context.Background(), "/work/source.mp4")
	require.NoError(t, err)
	require.Len(t, cues, 2)
	require.Equal(t, "breaking news on the consensus bug", cues[1].Text)
	require.InDelta(t, 9.2, cues.Duration(), 0.01)
}

func TestTranscribeAcceptsSegmentsKey(t *testing.T) {
	cues, err := stt.Decode([]byte(`{"segments": [{"start": 1, "end": 3, "text": "hello"}]}`))
	require.NoError(t, err)
	require.Len(t, cues, 1)
}

func TestTranscribeEmptyOutputIsEmptyTranscript(t *testing.T) {
	runner := testsupport.NewStubRunner()
	runner.Respond("whisperctl", []byte(`{"cues": []}`), nil)
	svc := stt.NewService(runner, "whisperctl", time.Minute, nil)

	cues, err := svc.Transcribe(context.Background(), "/work/source.mp4")
	require.NoError(t, err)
	require.True(t, cues.Empty())
}

func TestTranscribeToolFailure(t *testing.T) {
	runner := testsupport.NewStubRunner()
	runner.Respond("whisperctl", nil, errors.New("model load failed"))
	svc := stt.NewService(runner, "whisperctl", time.Minute, nil)

	_, err := svc.Transcribe(context.Background(), "/work/source.mp4")
	require.Error(t, err)
	require.ErrorIs(t, err, services.ErrExternalTool)
}
