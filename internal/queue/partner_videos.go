package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UpsertPartnerVideo inserts or refreshes harvested metadata for a video.
// A later harvest of the same video replaces the previous row, so synthetic
// placeholders are overwritten once real metadata arrives.
func (s *Store) UpsertPartnerVideo(ctx context.Context, video PartnerVideo) error {
	video.VideoID = strings.TrimSpace(video.VideoID)
	if video.VideoID == "" {
		return errors.New("upsert partner video: video id required")
	}
	if video.HarvestedAt.IsZero() {
		video.HarvestedAt = time.Now().UTC()
	}
	return s.execWithoutResultRetry(
		ctx,
		`INSERT INTO partner_videos
            (video_id, channel_id, channel_name, title, description, thumbnail, synthetic, published_at, harvested_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(video_id) DO UPDATE SET
            channel_id = excluded.channel_id,
            channel_name = excluded.channel_name,
            title = excluded.title,
            description = excluded.description,
            thumbnail = excluded.thumbnail,
            synthetic = excluded.synthetic,
            published_at = excluded.published_at,
            harvested_at = excluded.harvested_at`,
		video.VideoID,
		video.ChannelID,
		nullableString(video.ChannelName),
		nullableString(video.Title),
		nullableString(video.Description),
		nullableString(video.Thumbnail),
		boolToInt(video.Synthetic),
		nullableTimeValue(video.PublishedAt),
		video.HarvestedAt.UTC().Format(time.RFC3339Nano),
	)
}

// GetPartnerVideo fetches harvested metadata for a video, if present.
func (s *Store) GetPartnerVideo(ctx context.Context, videoID string) (*PartnerVideo, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+partnerVideoColumns+` FROM partner_videos WHERE video_id = ?`,
		videoID,
	)
	video, err := scanPartnerVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get partner video: %w", err)
	}
	return video, nil
}

// RecentPartnerVideos returns the newest harvested videos across all
// channels, most recently published first.
func (s *Store) RecentPartnerVideos(ctx context.Context, limit int) ([]PartnerVideo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+partnerVideoColumns+` FROM partner_videos
         ORDER BY published_at DESC, harvested_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent partner videos: %w", err)
	}
	defer rows.Close()

	var videos []PartnerVideo
	for rows.Next() {
		video, err := scanPartnerVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *video)
	}
	return videos, rows.Err()
}

// CountPartnerVideos returns the number of harvested rows, optionally
// excluding synthetic placeholders.
func (s *Store) CountPartnerVideos(ctx context.Context, includeSynthetic bool) (int, error) {
	query := `SELECT COUNT(1) FROM partner_videos`
	if !includeSynthetic {
		query += ` WHERE synthetic = 0`
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count partner videos: %w", err)
	}
	return count, nil
}

// PrunePartnerVideos retains only the most recently published keep rows per
// channel and deletes the rest. Returns the number of rows removed.
func (s *Store) PrunePartnerVideos(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, errors.New("prune partner videos: keep must be positive")
	}
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM partner_videos WHERE video_id NOT IN (
            SELECT video_id FROM (
                SELECT video_id,
                       ROW_NUMBER() OVER (
                           PARTITION BY channel_id
                           ORDER BY published_at DESC, harvested_at DESC
                       ) AS rank
                FROM partner_videos
            ) WHERE rank <= ?
        )`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune partner videos: %w", err)
	}
	return res.RowsAffected()
}

const partnerVideoColumns = "video_id, channel_id, channel_name, title, description, thumbnail, synthetic, published_at, harvested_at"

func scanPartnerVideo(scanner interface{ Scan(dest ...any) error }) (*PartnerVideo, error) {
	var (
		videoID      string
		channelID    string
		channelName  sql.NullString
		title        sql.NullString
		description  sql.NullString
		thumbnail    sql.NullString
		synthetic    sql.NullInt64
		publishedRaw sql.NullString
		harvestedRaw sql.NullString
	)
	if err := scanner.Scan(
		&videoID,
		&channelID,
		&channelName,
		&title,
		&description,
		&thumbnail,
		&synthetic,
		&publishedRaw,
		&harvestedRaw,
	); err != nil {
		return nil, err
	}

	video := &PartnerVideo{
		VideoID:     videoID,
		ChannelID:   channelID,
		ChannelName: channelName.String,
		Title:       title.String,
		Description: description.String,
		Thumbnail:   thumbnail.String,
		Synthetic:   synthetic.Valid && synthetic.Int64 != 0,
	}
	if publishedRaw.Valid {
		if published, err := parseTimeString(publishedRaw.String); err == nil {
			video.PublishedAt = published
		}
	}
	if harvested, err := parseTimeString(harvestedRaw.String); err == nil {
		video.HarvestedAt = harvested
	}
	return video, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func nullableTimeValue(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}
