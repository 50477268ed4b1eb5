package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a clip job.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPlanned,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SegmentReason identifies how a planned segment was selected.
type SegmentReason string

const (
	ReasonKeywordHit     SegmentReason = "keyword_hit"
	ReasonCoverageWindow SegmentReason = "coverage_window"
	ReasonLegacy         SegmentReason = "legacy"
)

// Segment is a bounded time window of source media selected for rendering.
// Segments are immutable once rendering starts.
type Segment struct {
	StartSec float64       `json:"start_sec"`
	EndSec   float64       `json:"end_sec"`
	Score    float64       `json:"score"`
	Reason   SegmentReason `json:"reason"`
	Snippet  string        `json:"snippet,omitempty"`
}

// DurationSec returns the segment length in seconds.
func (s Segment) DurationSec() float64 {
	return s.EndSec - s.StartSec
}

// Metadata carries diagnostic detail persisted with terminal transitions.
type Metadata struct {
	// Reason records why the fallback generator produced the artifact
	// (missing_source, empty_transcript, render_exhaustion). Empty for
	// reels built from rendered segments.
	Reason string `json:"reason,omitempty"`
	// ValidSegments and DroppedSegments describe render-stage attrition.
	ValidSegments   int `json:"valid_segments,omitempty"`
	DroppedSegments int `json:"dropped_segments,omitempty"`
	// EncoderPath records which encode strategy produced the final artifact.
	EncoderPath string `json:"encoder_path,omitempty"`
	// FinalDurationSec is the probed duration of the published artifact.
	FinalDurationSec float64 `json:"final_duration_sec,omitempty"`
}

// Job represents one source video's path through the pipeline.
type Job struct {
	ID            int64
	VideoID       string
	ChannelName   string
	Segments      []Segment
	NarrationPath string
	OutputPath    string
	Status        Status
	Diagnostic    string
	Metadata      Metadata
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastHeartbeat *time.Time
}

// PartnerVideo is normalized upload metadata harvested from a partner channel.
type PartnerVideo struct {
	VideoID     string
	ChannelID   string
	ChannelName string
	Title       string
	Description string
	Thumbnail   string
	Synthetic   bool
	PublishedAt time.Time
	HarvestedAt time.Time
}

// StatsSummary aggregates job counts per lifecycle state.
type StatsSummary struct {
	Total      int `json:"total"`
	Planned    int `json:"planned"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
