package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ArtifactsDir string `toml:"artifacts_dir"`
	PublishDir   string `toml:"publish_dir"`
	LogDir       string `toml:"log_dir"`
	AssetsDir    string `toml:"assets_dir"`
}

// Tools names the external binaries the pipeline shells out to.
type Tools struct {
	FFmpeg      string `toml:"ffmpeg"`
	FFprobe     string `toml:"ffprobe"`
	Downloader  string `toml:"downloader"`
	Transcriber string `toml:"transcriber"`
	Synthesizer string `toml:"synthesizer"`
}

// Harvester contains configuration for partner channel polling.
type Harvester struct {
	Channels           []string `toml:"channels"`
	RecencyWindowHours int      `toml:"recency_window_hours"`
	TargetMinimum      int      `toml:"target_minimum"`
	RetainPerChannel   int      `toml:"retain_per_channel"`
	PollsPerSecond     float64  `toml:"polls_per_second"`
	CanonicalVideoIDs  []string `toml:"canonical_video_ids"`
	RequestTimeout     int      `toml:"request_timeout"`
}

// Planner contains the segment planning policy. The window bounds and
// coverage offsets are tuned values, not a contract; treat them as policy.
type Planner struct {
	MinSegmentSeconds    float64   `toml:"min_segment_seconds"`
	MaxSegmentSeconds    float64   `toml:"max_segment_seconds"`
	TargetSegmentSeconds float64   `toml:"target_segment_seconds"`
	MinSeparationSeconds float64   `toml:"min_separation_seconds"`
	LeadInSeconds        float64   `toml:"lead_in_seconds"`
	MinSegments          int       `toml:"min_segments"`
	MaxSegments          int       `toml:"max_segments"`
	CoverageOffsets      []float64 `toml:"coverage_offsets"`
	ExtraUrgencyTerms    []string  `toml:"extra_urgency_terms"`
	ExtraTopicalTerms    []string  `toml:"extra_topical_terms"`
}

// Render contains configuration for per-segment rendering and the quality gate.
type Render struct {
	HardwareEncoder   string `toml:"hardware_encoder"`
	SoftwareEncoder   string `toml:"software_encoder"`
	GPUSlots          int    `toml:"gpu_slots"`
	CaptionsEnabled   bool   `toml:"captions_enabled"`
	MinOutputBytes    int64  `toml:"min_output_bytes"`
	ExtractTimeout    int    `toml:"extract_timeout"`
	TranscribeTimeout int    `toml:"transcribe_timeout"`
	EncodeTimeout     int    `toml:"encode_timeout"`
}

// Fallback contains configuration for the still-image fallback generator.
type Fallback struct {
	MinSeconds       int    `toml:"min_seconds"`
	MaxSeconds       int    `toml:"max_seconds"`
	BrandBackground  string `toml:"brand_background"`
	NarrationEnabled bool   `toml:"narration_enabled"`
}

// Assemble contains configuration for concatenation and branding.
type Assemble struct {
	OutroPath    string    `toml:"outro_path"`
	OutroSeconds int       `toml:"outro_seconds"`
	CTAPrimary   string    `toml:"cta_primary"`
	CTASecondary string    `toml:"cta_secondary"`
	CTAFractions []float64 `toml:"cta_fractions"`
}

// Workflow contains daemon timing and worker configuration.
type Workflow struct {
	Workers            int `toml:"workers"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	StaleAfterMinutes  int `toml:"stale_after_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Reelsmith.
//
// Configuration sections by subsystem:
//   - Paths: artifact, publish, log, and brand asset directories
//   - Tools: external binary names
//   - Harvester: partner channel polling and synthetic seeding
//   - Planner: segment window policy and keyword extensions
//   - Render: encoder strategy, GPU slots, quality gate thresholds
//   - Fallback: still-image artifact bounds and narration
//   - Assemble: outro and CTA branding
//   - Workflow: worker counts, polling, heartbeat staleness
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Tools     Tools     `toml:"tools"`
	Harvester Harvester `toml:"harvester"`
	Planner   Planner   `toml:"planner"`
	Render    Render    `toml:"render"`
	Fallback  Fallback  `toml:"fallback"`
	Assemble  Assemble  `toml:"assemble"`
	Workflow  Workflow  `toml:"workflow"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelsmith/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("reelsmith.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	for _, field := range []*string{
		&c.Paths.ArtifactsDir,
		&c.Paths.PublishDir,
		&c.Paths.LogDir,
		&c.Paths.AssetsDir,
		&c.Fallback.BrandBackground,
		&c.Assemble.OutroPath,
	} {
		if strings.TrimSpace(*field) == "" {
			continue
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}

// EnsureDirectories creates required directories for pipeline operation.
// PublishDir is created on a best-effort basis so jobs can run when the
// publish target is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ArtifactsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.PublishDir) != "" {
		_ = os.MkdirAll(c.Paths.PublishDir, 0o755)
	}
	return nil
}

// JobDir returns the private working directory for a video's clip job.
func (c *Config) JobDir(videoID string) string {
	return filepath.Join(c.Paths.ArtifactsDir, videoID)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
