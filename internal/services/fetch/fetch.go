// Package fetch wraps the external download utility for channel metadata,
// source media, and thumbnails.
package fetch

import (
	"context"
	"encoding/json"
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

// SourceFileName is the stable name every downloaded video gets inside its
// job directory, regardless of the original container.
const SourceFileName = "source.mp4"

// ThumbnailFileName is the stable name for a fetched channel thumbnail.
const ThumbnailFileName = "thumbnail.jpg"

const defaultTimeout = 10 * time.Minute

// Upload is one normalized entry from a channel's upload feed.
type Upload struct {
	VideoID     string
	ChannelID   string
	ChannelName string
	Title       string
	Description string
	Thumbnail   string
	DurationSec float64
	PublishedAt time.Time
}

// Service invokes the downloader binary through the shared runner.
type Service struct {
	runner  toolexec.Runner
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewService constructs a fetch service. An empty binary defaults to yt-dlp.
func NewService(runner toolexec.Runner, binary string, timeout time.Duration, logger *slog.Logger) *Service {
	if binary == "" {
		binary = "yt-dlp"
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
		logger:  logger.With(logging.String(logging.FieldComponent, "fetch")),
	}
}

type feedEntry struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ChannelID   string  `json:"channel_id"`
	Channel     string  `json:"channel"`
	Uploader    string  `json:"uploader"`
	Duration    float64 `json:"duration"`
	Timestamp   int64   `json:"timestamp"`
	Thumbnail   string  `json:"thumbnail"`
	Thumbnails  []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

type feedPayload struct {
	ID       string      `json:"id"`
	Channel  string      `json:"channel"`
	Entries  []feedEntry `json:"entries"`
	Uploader string      `json:"uploader"`
}

// ChannelUploads lists the most recent uploads of a channel as a flat
// playlist, newest first, capped at limit entries.
func (s *Service) ChannelUploads(ctx context.Context, channelID string, limit int) ([]Upload, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, services.Wrap(services.ErrValidation, "harvest", "channel-uploads", "channel id required", nil)
	}
	if limit <= 0 {
		limit = 20
	}

	result, err := s.runner.Run(ctx, toolexec.Command{
		Binary: s.binary,
		Args: []string{
			"--flat-playlist",
			"-J",
			"--playlist-end", fmt.Sprintf("%d", limit),
			channelURL(channelID),
		},
		Timeout: s.timeout,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, "harvest", "channel-uploads",
			fmt.Sprintf("list uploads for %s", channelID), err)
	}

	var payload feedPayload
	if err := json.Unmarshal(result.Output, &payload); err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, "harvest", "channel-uploads",
			"parse upload feed", err)
	}

	uploads := make([]Upload, 0, len(payload.Entries))
	for _, entry := range payload.Entries {
		if strings.TrimSpace(entry.ID) == "" {
			continue
		}
		upload := Upload{
			VideoID:     entry.ID,
			ChannelID:   firstNonEmpty(entry.ChannelID, channelID),
			ChannelName: firstNonEmpty(entry.Channel, entry.Uploader, payload.Channel, payload.Uploader),
			Title:       entry.Title,
			Description: entry.Description,
			Thumbnail:   entryThumbnail(entry),
			DurationSec: entry.Duration,
		}
		if entry.Timestamp > 0 {
			upload.PublishedAt = time.Unix(entry.Timestamp, 0).UTC()
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

// Download fetches a video into destDir under the stable source name and
// returns the full path. A download that completes without producing the
// file is treated as source unavailable.
func (s *Service) Download(ctx context.Context, videoID, destDir string) (string, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return "", services.Wrap(services.ErrValidation, "fetch", "download", "video id required", nil)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "fetch", "download", "create job directory", err)
	}

	dest := filepath.Join(destDir, SourceFileName)
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		s.logger.Debug("source already downloaded", logging.String(logging.FieldVideoID, videoID))
		return dest, nil
	}

	_, err := s.runner.Run(ctx, toolexec.Command{
		Binary: s.binary,
		Args: []string{
			"--no-playlist",
			"--restrict-filenames",
			"-f", "bv*[height<=1080]+ba/b[height<=1080]",
			"--merge-output-format", "mp4",
			"-o", dest,
			videoURL(videoID),
		},
		Timeout: s.timeout,
	})
	if err != nil {
		return "", services.Wrap(services.ErrSourceUnavailable, "fetch", "download",
			fmt.Sprintf("download %s", videoID), err)
	}

	info, err := os.Stat(dest)
	if err != nil || info.Size() == 0 {
		return "", services.Wrap(services.ErrSourceUnavailable, "fetch", "download",
			fmt.Sprintf("downloader produced no file for %s", videoID), err)
	}
	return dest, nil
}

// Thumbnail fetches the video's thumbnail image into destDir and returns the
// path. Callers treat failure as non-fatal and fall back to brand assets.
func (s *Service) Thumbnail(ctx context.Context, videoID, destDir string) (string, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return "", services.Wrap(services.ErrValidation, "fetch", "thumbnail", "video id required", nil)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "fetch", "thumbnail", "create job directory", err)
	}

	dest := filepath.Join(destDir, ThumbnailFileName)
	_, err := s.runner.Run(ctx, toolexec.Command{
		Binary: s.binary,
		Args: []string{
			"--no-playlist",
			"--skip-download",
			"--write-thumbnail",
			"--convert-thumbnails", "jpg",
			"-o", strings.TrimSuffix(dest, ".jpg"),
			videoURL(videoID),
		},
		Timeout: s.timeout,
	})
	if err != nil {
		return "", services.Wrap(services.ErrSourceUnavailable, "fetch", "thumbnail",
			fmt.Sprintf("fetch thumbnail for %s", videoID), err)
	}
	if info, statErr := os.Stat(dest); statErr != nil || info.Size() == 0 {
		return "", services.Wrap(services.ErrSourceUnavailable, "fetch", "thumbnail",
			fmt.Sprintf("no thumbnail produced for %s", videoID), statErr)
	}
	return dest, nil
}

func channelURL(channelID string) string {
	if strings.HasPrefix(channelID, "http://") || strings.HasPrefix(channelID, "https://") {
		return channelID
	}
	if strings.HasPrefix(channelID, "@") {
		return "https://www.youtube.com/" + channelID + "/videos"
	}
	return "https://www.youtube.com/channel/" + channelID + "/videos"
}

func videoURL(videoID string) string {
	if strings.HasPrefix(videoID, "http://") || strings.HasPrefix(videoID, "https://") {
		return videoID
	}
	return "https://www.youtube.com/watch?v=" + videoID
}

func entryThumbnail(entry feedEntry) string {
	if entry.Thumbnail != "" {
		return entry.Thumbnail
	}
	if n := len(entry.Thumbnails); n > 0 {
		return entry.Thumbnails[n-1].URL
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
