package fetch_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reelsmith/internal/services"
	"reelsmith/internal/services/fetch"
	"reelsmith/internal/testsupport"
	"reelsmith/internal/toolexec"
)

const sampleFeed = `{
  "id": "UCblockdigest",
  "channel": "Block Digest",
  "entries": [
    {
      "id": "vid-aaa",
      "title": "Breaking: consensus bug found",
      "channel_id": "UCblockdigest",
      "channel": "Block Digest",
      "duration": 612,
      "timestamp": 1756300000,
      "thumbnails": [{"url": "https://example.invalid/small.jpg"}, {"url": "https://example.invalid/big.jpg"}]
    },
    {
      "id": "",
      "title": "broken entry"
    },
    {
      "id": "vid-bbb",
      "title": "Weekly mining roundup",
      "uploader": "Block Digest",
      "duration": 1800
    }
  ]
}`

func TestChannelUploadsParsesFeed(t *testing.T) {
	runner := testsupport.NewStubRunner()
	runner.Respond("yt-dlp", []byte(sampleFeed), nil)
	svc := fetch.NewService(runner, "yt-dlp", time.Minute, nil)

	uploads, err := svc.ChannelUploads(context.Background(), "UCblockdigest", 10)
	require.NoError(t, err)
	require.Len(t, uploads, 2)

	require.Equal(t, "vid-aaa", uploads[0].VideoID)
	require.Equal(t, "Block Digest", uploads[0].ChannelName)
	require.Equal(t, "https://example.invalid/big.jpg", uploads[0].Thumbnail)
	require.InDelta(t, 612, uploads[0].DurationSec, 0.01)
	require.False(t, uploads[0].PublishedAt.IsZero())

	require.Equal(t, "vid-bbb", uploads[1].VideoID)
	require.Equal(t, "UCblockdigest", uploads[1].ChannelID)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	require.Contains(t, calls[0].Args, "--flat-playlist")
	require.Contains(t, calls[0].Args, "https://www.youtube.com/channel/UCblockdigest/videos")
}

func TestChannelUploadsSurfacesToolFailure(t *testing.T) {
	runner := testsupport.NewStubRunner()
	runner.Respond("yt-dlp", nil, errors.New("HTTP Error 429"))
	svc := fetch.NewService(runner, "yt-dlp", time.Minute, nil)

	_, err := svc.ChannelUploads(context.Background(), "UCblockdigest", 10)
	require.Error(t, err)
	require.ErrorIs(t, err, services.ErrSourceUnavailable)
}

func TestDownloadProducesStablePath(t *testing.T) {
	dir := t.TempDir()
	runner := testsupport.NewStubRunner()
	runner.Handle("yt-dlp", func(cmd toolexec.Command) (toolexec.Result, error) {
		for i, arg := range cmd.Args {
			if arg == "-o" {
				testsupport.WriteSizedFile(t, cmd.Args[i+1], 4096)
			}
		}
		return toolexec.Result{}, nil
	})
	svc := fetch.NewService(runner, "yt-dlp", time.Minute, nil)

	path, err := svc.Download(context.Background(), "vid-aaa", dir)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, fetch.SourceFileName, "source.mp4")
}

func TestDownloadMissingOutputIsSourceUnavailable(t *testing.T) {
	runner := testsupport.NewStubRunner()
	svc := fetch.NewService(runner, "yt-dlp", time.Minute, nil)

	_, err := svc.Download(context.Background(), "vid-gone", t.TempDir())
	require.ErrorIs(t, err, services.ErrSourceUnavailable)
}

func TestDownloadSkipsWhenSourceExists(t *testing.T) {
	dir := t.TempDir()
	existing := dir + "/" + fetch.SourceFileName
	testsupport.WriteSizedFile(t, existing, 1024)

	runner := testsupport.NewStubRunner()
	svc := fetch.NewService(runner, "yt-dlp", time.Minute, nil)

	path, err := svc.Download(context.Background(), "vid-cached", dir)
	require.NoError(t, err)
	require.Equal(t, existing, path)
	require.Empty(t, runner.Calls())
}

func TestThumbnailFailureIsSourceUnavailable(t *testing.T) {
	runner := testsupport.NewStubRunner()
	runner.Respond("yt-dlp", nil, os.ErrDeadlineExceeded)
	svc := fetch.NewService(runner, "yt-dlp", time.Minute, nil)

	_, err := svc.Thumbnail(context.Background(), "vid-aaa", t.TempDir())
	require.ErrorIs(t, err, services.ErrSourceUnavailable)
}
