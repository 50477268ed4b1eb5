// Package transcript defines the timed-text cues exchanged between the
// speech-to-text collaborator, the segment planner, and caption burn-in.
package transcript

import "strings"

// Cue is one timed span of transcribed speech.
type Cue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is an ordered list of cues.
type Transcript []Cue

// Duration returns the end time of the final cue, or 0 for an empty transcript.
func (t Transcript) Duration() float64 {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].End
}

// Empty reports whether the transcript carries no usable speech.
func (t Transcript) Empty() bool {
	for _, cue := range t {
		if strings.TrimSpace(cue.Text) != "" {
			return false
		}
	}
	return true
}

// Window returns the cues overlapping [start, end), preserving order.
func (t Transcript) Window(start, end float64) Transcript {
	var out Transcript
	for _, cue := range t {
		if cue.End <= start || cue.Start >= end {
			continue
		}
		out = append(out, cue)
	}
	return out
}

// Text joins all cue text with single spaces.
func (t Transcript) Text() string {
	parts := make([]string, 0, len(t))
	for _, cue := range t {
		if trimmed := strings.TrimSpace(cue.Text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}
