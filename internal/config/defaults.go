package config

const (
	defaultArtifactsDir = "~/.local/share/reelsmith/artifacts"
	defaultPublishDir   = "~/.local/share/reelsmith/publish"
	defaultLogDir       = "~/.local/share/reelsmith/logs"
	defaultAssetsDir    = "~/.local/share/reelsmith/assets"

	defaultFFmpeg      = "ffmpeg"
	defaultFFprobe     = "ffprobe"
	defaultDownloader  = "yt-dlp"
	defaultTranscriber = "whisperctl"
	defaultSynthesizer = "piper"

	defaultRecencyWindowHours = 48
	defaultTargetMinimum      = 6
	defaultRetainPerChannel   = 25
	defaultPollsPerSecond     = 2.0
	defaultRequestTimeout     = 30

	defaultMinSegmentSeconds    = 30
	defaultMaxSegmentSeconds    = 90
	defaultTargetSegmentSeconds = 60
	defaultMinSeparationSeconds = 25
	defaultLeadInSeconds        = 4
	defaultMinSegments          = 3
	defaultMaxSegments          = 5

	defaultHardwareEncoder   = "h264_nvenc"
	defaultSoftwareEncoder   = "libx264"
	defaultGPUSlots          = 1
	defaultMinOutputBytes    = 48 * 1024
	defaultExtractTimeout    = 120
	defaultTranscribeTimeout = 300
	defaultEncodeTimeout     = 600

	defaultFallbackMinSeconds = 30
	defaultFallbackMaxSeconds = 60

	defaultOutroSeconds = 5
	defaultCTAPrimary   = "Follow for daily Bitcoin intel"
	defaultCTASecondary = "Full brief at the link in bio"

	defaultWorkers            = 2
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultStaleAfterMinutes  = 15

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ArtifactsDir: defaultArtifactsDir,
			PublishDir:   defaultPublishDir,
			LogDir:       defaultLogDir,
			AssetsDir:    defaultAssetsDir,
		},
		Tools: Tools{
			FFmpeg:      defaultFFmpeg,
			FFprobe:     defaultFFprobe,
			Downloader:  defaultDownloader,
			Transcriber: defaultTranscriber,
			Synthesizer: defaultSynthesizer,
		},
		Harvester: Harvester{
			RecencyWindowHours: defaultRecencyWindowHours,
			TargetMinimum:      defaultTargetMinimum,
			RetainPerChannel:   defaultRetainPerChannel,
			PollsPerSecond:     defaultPollsPerSecond,
			RequestTimeout:     defaultRequestTimeout,
		},
		Planner: Planner{
			MinSegmentSeconds:    defaultMinSegmentSeconds,
			MaxSegmentSeconds:    defaultMaxSegmentSeconds,
			TargetSegmentSeconds: defaultTargetSegmentSeconds,
			MinSeparationSeconds: defaultMinSeparationSeconds,
			LeadInSeconds:        defaultLeadInSeconds,
			MinSegments:          defaultMinSegments,
			MaxSegments:          defaultMaxSegments,
			CoverageOffsets:      []float64{0.18, 0.45, 0.72, 0.88},
		},
		Render: Render{
			HardwareEncoder:   defaultHardwareEncoder,
			SoftwareEncoder:   defaultSoftwareEncoder,
			GPUSlots:          defaultGPUSlots,
			CaptionsEnabled:   true,
			MinOutputBytes:    defaultMinOutputBytes,
			ExtractTimeout:    defaultExtractTimeout,
			TranscribeTimeout: defaultTranscribeTimeout,
			EncodeTimeout:     defaultEncodeTimeout,
		},
		Fallback: Fallback{
			MinSeconds:       defaultFallbackMinSeconds,
			MaxSeconds:       defaultFallbackMaxSeconds,
			NarrationEnabled: true,
		},
		Assemble: Assemble{
			OutroSeconds: defaultOutroSeconds,
			CTAPrimary:   defaultCTAPrimary,
			CTASecondary: defaultCTASecondary,
			CTAFractions: []float64{0.25, 0.75},
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			StaleAfterMinutes:  defaultStaleAfterMinutes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
