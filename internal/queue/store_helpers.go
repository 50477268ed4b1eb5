package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == 5 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	_, err := s.execWithRetry(ctx, query, args...)
	return err
}

const jobColumns = "id, video_id, channel_name, segments_json, narration_path, output_path, status, diagnostic, metadata_json, created_at, updated_at, last_heartbeat"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               int64
		videoID          string
		channelName      sql.NullString
		segmentsJSON     sql.NullString
		narrationPath    sql.NullString
		outputPath       sql.NullString
		statusStr        string
		diagnostic       sql.NullString
		metadataJSON     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&videoID,
		&channelName,
		&segmentsJSON,
		&narrationPath,
		&outputPath,
		&statusStr,
		&diagnostic,
		&metadataJSON,
		&createdRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:            id,
		VideoID:       videoID,
		ChannelName:   channelName.String,
		NarrationPath: narrationPath.String,
		OutputPath:    outputPath.String,
		Status:        Status(statusStr),
		Diagnostic:    diagnostic.String,
	}
	if segmentsJSON.Valid && segmentsJSON.String != "" {
		if err := json.Unmarshal([]byte(segmentsJSON.String), &job.Segments); err != nil {
			return nil, errors.New("decode segments json: " + err.Error())
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &job.Metadata); err != nil {
			return nil, errors.New("decode metadata json: " + err.Error())
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

func marshalSegments(segments []Segment) (string, error) {
	if len(segments) == 0 {
		return "", nil
	}
	data, err := json.Marshal(segments)
	if err != nil {
		return "", errors.New("encode segments json: " + err.Error())
	}
	return string(data), nil
}

func marshalMetadata(meta Metadata) (string, error) {
	if meta == (Metadata{}) {
		return "", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", errors.New("encode metadata json: " + err.Error())
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
