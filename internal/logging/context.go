package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	ctxStage   contextKey = "stage"
	ctxJobID   contextKey = "job_id"
	ctxVideoID contextKey = "video_id"
	ctxRunID   contextKey = "run_id"
)

// WithStage attaches a pipeline stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, ctxStage, stage)
}

// WithJob attaches clip job identity to the context.
func WithJob(ctx context.Context, jobID int64, videoID string) context.Context {
	ctx = context.WithValue(ctx, ctxJobID, jobID)
	return context.WithValue(ctx, ctxVideoID, videoID)
}

// WithRunID attaches a per-run correlation identifier to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ctxRunID, runID)
}

// ContextFields extracts standardized attributes from the provided context.
func ContextFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	var attrs []Attr
	if stage, ok := ctx.Value(ctxStage).(string); ok && stage != "" {
		attrs = append(attrs, String(FieldStage, stage))
	}
	if jobID, ok := ctx.Value(ctxJobID).(int64); ok && jobID != 0 {
		attrs = append(attrs, Int64(FieldJobID, jobID))
	}
	if videoID, ok := ctx.Value(ctxVideoID).(string); ok && videoID != "" {
		attrs = append(attrs, String(FieldVideoID, videoID))
	}
	if runID, ok := ctx.Value(ctxRunID).(string); ok && runID != "" {
		attrs = append(attrs, String(FieldRunID, runID))
	}
	return attrs
}

// WithContext returns a logger enriched with any context-carried fields.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	attrs := ContextFields(ctx)
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(Args(attrs...)...)
}
