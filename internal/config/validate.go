package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.ArtifactsDir) == "" {
		problems = append(problems, "paths.artifacts_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must not be empty")
	}
	for name, value := range map[string]string{
		"tools.ffmpeg":     c.Tools.FFmpeg,
		"tools.ffprobe":    c.Tools.FFprobe,
		"tools.downloader": c.Tools.Downloader,
	} {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, name+" must not be empty")
		}
	}

	if c.Harvester.RecencyWindowHours <= 0 {
		problems = append(problems, "harvester.recency_window_hours must be positive")
	}
	if c.Harvester.RetainPerChannel <= 0 {
		problems = append(problems, "harvester.retain_per_channel must be positive")
	}
	if c.Harvester.PollsPerSecond <= 0 {
		problems = append(problems, "harvester.polls_per_second must be positive")
	}

	p := c.Planner
	if p.MinSegmentSeconds <= 0 {
		problems = append(problems, "planner.min_segment_seconds must be positive")
	}
	if p.MaxSegmentSeconds < p.MinSegmentSeconds {
		problems = append(problems, "planner.max_segment_seconds must be >= min_segment_seconds")
	}
	if p.TargetSegmentSeconds < p.MinSegmentSeconds || p.TargetSegmentSeconds > p.MaxSegmentSeconds {
		problems = append(problems, "planner.target_segment_seconds must fall within the segment bounds")
	}
	if p.MinSeparationSeconds < 0 {
		problems = append(problems, "planner.min_separation_seconds must not be negative")
	}
	if p.MinSegments <= 0 {
		problems = append(problems, "planner.min_segments must be positive")
	}
	if p.MaxSegments < p.MinSegments {
		problems = append(problems, "planner.max_segments must be >= min_segments")
	}
	for _, offset := range p.CoverageOffsets {
		if offset <= 0 || offset >= 1 {
			problems = append(problems, fmt.Sprintf("planner.coverage_offsets entry %v must be in (0, 1)", offset))
			break
		}
	}

	if strings.TrimSpace(c.Render.HardwareEncoder) == "" {
		problems = append(problems, "render.hardware_encoder must not be empty")
	}
	if strings.TrimSpace(c.Render.SoftwareEncoder) == "" {
		problems = append(problems, "render.software_encoder must not be empty")
	}
	if c.Render.GPUSlots <= 0 {
		problems = append(problems, "render.gpu_slots must be positive")
	}
	if c.Render.MinOutputBytes <= 0 {
		problems = append(problems, "render.min_output_bytes must be positive")
	}
	for name, value := range map[string]int{
		"render.extract_timeout":    c.Render.ExtractTimeout,
		"render.transcribe_timeout": c.Render.TranscribeTimeout,
		"render.encode_timeout":     c.Render.EncodeTimeout,
	} {
		if value <= 0 {
			problems = append(problems, name+" must be positive")
		}
	}

	if c.Fallback.MinSeconds <= 0 {
		problems = append(problems, "fallback.min_seconds must be positive")
	}
	if c.Fallback.MaxSeconds < c.Fallback.MinSeconds {
		problems = append(problems, "fallback.max_seconds must be >= min_seconds")
	}

	if c.Assemble.OutroSeconds <= 0 {
		problems = append(problems, "assemble.outro_seconds must be positive")
	}
	for _, fraction := range c.Assemble.CTAFractions {
		if fraction <= 0 || fraction >= 1 {
			problems = append(problems, fmt.Sprintf("assemble.cta_fractions entry %v must be in (0, 1)", fraction))
			break
		}
	}

	w := c.Workflow
	if w.Workers <= 0 {
		problems = append(problems, "workflow.workers must be positive")
	}
	if w.QueuePollInterval <= 0 {
		problems = append(problems, "workflow.queue_poll_interval must be positive")
	}
	if w.HeartbeatInterval <= 0 {
		problems = append(problems, "workflow.heartbeat_interval must be positive")
	}
	if w.StaleAfterMinutes <= 0 {
		problems = append(problems, "workflow.stale_after_minutes must be positive")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
