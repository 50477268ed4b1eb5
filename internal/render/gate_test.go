package render_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"reelsmith/internal/render"
	"reelsmith/internal/services"
	"reelsmith/internal/testsupport"
)

const goodProbe = `{
    "streams": [
        {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1080, "height": 1920},
        {"index": 1, "codec_type": "audio", "codec_name": "aac"}
    ],
    "format": {"duration": "58.20", "size": "2400000"}
}`

const audioOnlyProbe = `{
    "streams": [{"index": 0, "codec_type": "audio", "codec_name": "aac"}],
    "format": {"duration": "58.20", "size": "2400000"}
}`

const zeroDurationProbe = `{
    "streams": [{"index": 0, "codec_type": "video", "codec_name": "h264"}],
    "format": {"duration": "0.00", "size": "2400000"}
}`

func TestGateAcceptsValidArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.mp4")
	testsupport.WriteSizedFile(t, path, 64*1024)

	runner := testsupport.NewStubRunner()
	runner.Respond("ffprobe", []byte(goodProbe), nil)
	gate := render.NewGate(runner, "ffprobe", 48*1024)

	require.NoError(t, gate.Check(context.Background(), path))
}

func TestGateRejectsMissingArtifact(t *testing.T) {
	gate := render.NewGate(testsupport.NewStubRunner(), "ffprobe", 1024)

	err := gate.Check(context.Background(), filepath.Join(t.TempDir(), "absent.mp4"))
	require.ErrorIs(t, err, services.ErrQualityGate)
}

func TestGateRejectsUndersizedArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.mp4")
	testsupport.WriteSizedFile(t, path, 100)

	gate := render.NewGate(testsupport.NewStubRunner(), "ffprobe", 48*1024)
	err := gate.Check(context.Background(), path)
	require.ErrorIs(t, err, services.ErrQualityGate)
}

func TestGateRejectsHTMLPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.mp4")
	page := []byte("<!DOCTYPE html><html><body>429 Too Many Requests</body></html>")
	padded := make([]byte, 64*1024)
	copy(padded, page)
	for i := len(page); i < len(padded); i++ {
		padded[i] = ' '
	}
	testsupport.WriteFile(t, path, padded)

	gate := render.NewGate(testsupport.NewStubRunner(), "ffprobe", 1024)
	err := gate.Check(context.Background(), path)
	require.ErrorIs(t, err, services.ErrQualityGate)
	require.Contains(t, err.Error(), "not media")
}

func TestGateRejectsNoVideoStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.mp4")
	testsupport.WriteSizedFile(t, path, 64*1024)

	runner := testsupport.NewStubRunner()
	runner.Respond("ffprobe", []byte(audioOnlyProbe), nil)
	gate := render.NewGate(runner, "ffprobe", 1024)

	err := gate.Check(context.Background(), path)
	require.ErrorIs(t, err, services.ErrQualityGate)
}

func TestGateRejectsNonPositiveDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.mp4")
	testsupport.WriteSizedFile(t, path, 64*1024)

	runner := testsupport.NewStubRunner()
	runner.Respond("ffprobe", []byte(zeroDurationProbe), nil)
	gate := render.NewGate(runner, "ffprobe", 1024)

	err := gate.Check(context.Background(), path)
	require.ErrorIs(t, err, services.ErrQualityGate)
}
