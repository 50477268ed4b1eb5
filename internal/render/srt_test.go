package render

import (
	"testing"

	"github.com/stretchr/testify/require"

	"reelsmith/internal/media/transcript"
)

func TestFormatSRT(t *testing.T) {
	cues := transcript.Transcript{
		{Start: 0, End: 2.5, Text: "hello there"},
		{Start: 2.5, End: 2.5, Text: "skipped"},
		{Start: 61.25, End: 63.875, Text: "  closing thoughts  "},
	}

	out := formatSRT(cues)
	require.Equal(t, "1\n00:00:00,000 --> 00:00:02,500\nhello there\n\n2\n00:01:01,250 --> 00:01:03,875\nclosing thoughts\n\n", out)
}

func TestSRTTimestampRounding(t *testing.T) {
	require.Equal(t, "01:00:00,000", srtTimestamp(3600))
	require.Equal(t, "00:00:59,999", srtTimestamp(59.9994))
	require.Equal(t, "00:00:00,000", srtTimestamp(-5))
}
