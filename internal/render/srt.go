package render

import (
	"fmt"
	"strings"

	"reelsmith/internal/media/transcript"
)

// formatSRT renders cues as SubRip text for ffmpeg's subtitles filter.
// Timestamps are relative to the extracted segment, which is how the
// transcriber returns them.
func formatSRT(cues transcript.Transcript) string {
	var b strings.Builder
	index := 1
	for _, cue := range cues {
		text := strings.TrimSpace(cue.Text)
		if text == "" || cue.End <= cue.Start {
			continue
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", index, srtTimestamp(cue.Start), srtTimestamp(cue.End), text)
		index++
	}
	return b.String()
}

func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int64(seconds*1000 + 0.5)
	hours := millis / 3_600_000
	millis -= hours * 3_600_000
	minutes := millis / 60_000
	millis -= minutes * 60_000
	secs := millis / 1000
	millis -= secs * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
