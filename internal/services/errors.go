package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for pipeline failure classification. Stages wrap their
// errors with one of these so the workflow can route the job to the correct
// fallback tier without inspecting error strings.
var (
	ErrSourceUnavailable  = errors.New("source unavailable")
	ErrTranscriptionEmpty = errors.New("transcription empty")
	ErrSegmentRender      = errors.New("segment render failed")
	ErrAllSegmentsFailed  = errors.New("all segments failed")
	ErrConcatenation      = errors.New("concatenation failed")
	ErrQualityGate        = errors.New("quality gate rejected")
	ErrExternalTool       = errors.New("external tool error")
	ErrTimeout            = errors.New("timeout")
	ErrValidation         = errors.New("validation error")
	ErrConfiguration      = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FallbackEligible reports whether an error should route the job to the
// fallback generator instead of a terminal failure.
func FallbackEligible(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) ||
		errors.Is(err, ErrTranscriptionEmpty) ||
		errors.Is(err, ErrAllSegmentsFailed)
}

// FallbackReason maps a fallback-eligible error to the diagnostic reason
// recorded in job metadata.
func FallbackReason(err error) string {
	switch {
	case errors.Is(err, ErrSourceUnavailable):
		return "missing_source"
	case errors.Is(err, ErrTranscriptionEmpty):
		return "empty_transcript"
	case errors.Is(err, ErrAllSegmentsFailed):
		return "render_exhaustion"
	default:
		return ""
	}
}

// ErrorDetails captures the operator-facing portion of a wrapped error.
type ErrorDetails struct {
	Message string
}

// Details extracts a short diagnostic string from a wrapped stage error,
// stripping the sentinel prefix so operators never see raw internals.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	msg := err.Error()
	for _, marker := range []error{
		ErrSourceUnavailable, ErrTranscriptionEmpty, ErrSegmentRender,
		ErrAllSegmentsFailed, ErrConcatenation, ErrQualityGate,
		ErrExternalTool, ErrTimeout, ErrValidation, ErrConfiguration,
	} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			msg = strings.TrimPrefix(msg, prefix)
			break
		}
	}
	return ErrorDetails{Message: strings.TrimSpace(msg)}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
