package testsupport

import (
	"path/filepath"
	"testing"

	"reelsmith/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ArtifactsDir = filepath.Join(base, "artifacts")
	cfgVal.Paths.PublishDir = filepath.Join(base, "publish")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.AssetsDir = filepath.Join(base, "assets")
	cfgVal.Harvester.Channels = []string{"UCtestchannel"}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return builder.cfg
}

// WithChannels replaces the harvest channel list on the test config.
func WithChannels(channels ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Harvester.Channels = channels
	}
}

// WithConfig applies an arbitrary mutation to the test config.
func WithConfig(mutate func(cfg *config.Config)) ConfigOption {
	return func(b *configBuilder) {
		mutate(b.cfg)
	}
}
