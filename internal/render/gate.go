package render

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/services"
	"reelsmith/internal/toolexec"
)

// Gate validates produced media before anything downstream may touch it.
// Rejection is final for the artifact; callers drop it, never retry.
type Gate struct {
	runner   toolexec.Runner
	ffprobe  string
	minBytes int64
}

// NewGate constructs a quality gate backed by ffprobe.
func NewGate(runner toolexec.Runner, ffprobeBinary string, minBytes int64) *Gate {
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	return &Gate{runner: runner, ffprobe: ffprobeBinary, minBytes: minBytes}
}

// Check runs the full gauntlet: the file exists, meets the size floor, is
// not a text payload masquerading as media, probes with at least one video
// stream, and reports a positive duration.
func (g *Gate) Check(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrQualityGate, "gate", "stat",
			fmt.Sprintf("artifact missing at %s", path), err)
	}
	if info.Size() < g.minBytes {
		return services.Wrap(services.ErrQualityGate, "gate", "size",
			fmt.Sprintf("artifact is %d bytes, floor is %d", info.Size(), g.minBytes), nil)
	}

	if err := g.sniff(path); err != nil {
		return err
	}

	probed, err := ffprobe.Inspect(ctx, g.runner, g.ffprobe, path)
	if err != nil {
		return services.Wrap(services.ErrQualityGate, "gate", "probe", "artifact failed to probe", err)
	}
	if probed.VideoStreamCount() == 0 {
		return services.Wrap(services.ErrQualityGate, "gate", "streams", "artifact has no video stream", nil)
	}
	if probed.DurationSeconds() <= 0 {
		return services.Wrap(services.ErrQualityGate, "gate", "duration", "artifact reports non-positive duration", nil)
	}
	return nil
}

// sniff rejects text payloads, typically an HTML error page saved where a
// media file should be.
func (g *Gate) sniff(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return services.Wrap(services.ErrQualityGate, "gate", "sniff", "open artifact", err)
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := file.Read(head)
	contentType := http.DetectContentType(head[:n])
	if strings.HasPrefix(contentType, "text/") {
		return services.Wrap(services.ErrQualityGate, "gate", "sniff",
			fmt.Sprintf("artifact detected as %s, not media", contentType), nil)
	}
	return nil
}
