package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"reelsmith/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Store manages clip job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the job database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.ArtifactsDir, "reelsmith.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Plan inserts a Planned job for a video, or returns the existing job when
// one already exists for the video_id. The second return value reports
// whether a new row was created.
func (s *Store) Plan(ctx context.Context, videoID, channelName string) (*Job, bool, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, false, errors.New("plan job: video id required")
	}

	if existing, err := s.GetByVideoID(ctx, videoID); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO clip_jobs (video_id, channel_name, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(video_id) DO NOTHING`,
		videoID,
		nullableString(channelName),
		StatusPlanned,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	job, err := s.GetByVideoID(ctx, videoID)
	if err != nil {
		return nil, false, err
	}
	if job == nil {
		return nil, false, fmt.Errorf("plan job: row for %q vanished after insert", videoID)
	}
	return job, affected > 0, nil
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM clip_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetByVideoID fetches the job for a source video, if any.
func (s *Store) GetByVideoID(ctx context.Context, videoID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM clip_jobs WHERE video_id = ?`, videoID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job by video id: %w", err)
	}
	return job, nil
}

// Update persists mutable job fields (segments, narration, metadata).
// Status transitions go through Claim, MarkCompleted, and MarkFailed, and the
// heartbeat only through UpdateHeartbeat, so a caller holding a stale Job
// snapshot cannot clobber a fresher heartbeat written by the monitor.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	segmentsJSON, err := marshalSegments(job.Segments)
	if err != nil {
		return err
	}
	metadataJSON, err := marshalMetadata(job.Metadata)
	if err != nil {
		return err
	}
	job.UpdatedAt = time.Now().UTC()
	return s.execWithoutResultRetry(
		ctx,
		`UPDATE clip_jobs
         SET channel_name = ?, segments_json = ?, narration_path = ?,
             diagnostic = ?, metadata_json = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(job.ChannelName),
		nullableString(segmentsJSON),
		nullableString(job.NarrationPath),
		nullableString(job.Diagnostic),
		nullableString(metadataJSON),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
}

// NextPlanned returns the oldest Planned job, or nil when none exists.
func (s *Store) NextPlanned(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM clip_jobs WHERE status = ? ORDER BY created_at LIMIT 1`,
		StatusPlanned,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next planned: %w", err)
	}
	return job, nil
}

// Claim atomically moves a Planned job to Processing. Returns false when the
// job was already claimed or has reached a terminal state.
func (s *Store) Claim(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE clip_jobs
         SET status = ?, diagnostic = NULL, updated_at = ?, last_heartbeat = ?
         WHERE id = ? AND status = ?`,
		StatusProcessing,
		now,
		now,
		id,
		StatusPlanned,
	)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkCompleted atomically finishes a Processing job with its output path and
// diagnostic metadata. Terminal states are never overwritten.
func (s *Store) MarkCompleted(ctx context.Context, id int64, outputPath string, meta Metadata) error {
	metadataJSON, err := marshalMetadata(meta)
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE clip_jobs
         SET status = ?, output_path = ?, metadata_json = ?, diagnostic = NULL,
             updated_at = ?, last_heartbeat = NULL
         WHERE id = ? AND status = ?`,
		StatusCompleted,
		outputPath,
		nullableString(metadataJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark completed: job %d is not processing", id)
	}
	return nil
}

// MarkFailed atomically finishes a Processing job with a short diagnostic.
func (s *Store) MarkFailed(ctx context.Context, id int64, diagnostic string, meta Metadata) error {
	metadataJSON, err := marshalMetadata(meta)
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE clip_jobs
         SET status = ?, diagnostic = ?, metadata_json = ?,
             updated_at = ?, last_heartbeat = NULL
         WHERE id = ? AND status = ?`,
		StatusFailed,
		strings.TrimSpace(diagnostic),
		nullableString(metadataJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark failed: job %d is not processing", id)
	}
	return nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE clip_jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now,
		now,
		id,
		StatusProcessing,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing re-arms Processing jobs whose heartbeat predates the
// cutoff (or was never written and whose last update predates it) back to
// Planned. Run at startup and periodically so a crashed worker never strands
// a job.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffStr := cutoff.UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE clip_jobs
         SET status = ?, updated_at = ?, last_heartbeat = NULL
         WHERE status = ?
           AND ((last_heartbeat IS NOT NULL AND last_heartbeat < ?)
             OR (last_heartbeat IS NULL AND updated_at < ?))`,
		StatusPlanned,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
		cutoffStr,
		cutoffStr,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to planned for reprocessing.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE clip_jobs SET status = ?, diagnostic = NULL, updated_at = ? WHERE status = ?`,
			StatusPlanned,
			now,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusPlanned, now)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE clip_jobs SET status = ?, diagnostic = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}

// List returns jobs filtered by status set (or all jobs when none is given).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)
	baseQuery := `SELECT ` + jobColumns + ` FROM clip_jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClearCompleted removes only completed jobs.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM clip_jobs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed jobs.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM clip_jobs WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (StatsSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM clip_jobs GROUP BY status`)
	if err != nil {
		return StatsSummary{}, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	summary := StatsSummary{}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return StatsSummary{}, err
		}
		summary.Total += count
		switch status {
		case StatusPlanned:
			summary.Planned += count
		case StatusProcessing:
			summary.Processing += count
		case StatusCompleted:
			summary.Completed += count
		case StatusFailed:
			summary.Failed += count
		}
	}
	return summary, rows.Err()
}
