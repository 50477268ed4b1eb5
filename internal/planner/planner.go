// Package planner converts a transcript into a small set of bounded,
// non-overlapping highlight windows.
package planner

import (
	"sort"
	"strings"
	"unicode"

	"reelsmith/internal/config"
	"reelsmith/internal/media/transcript"
	"reelsmith/internal/queue"
)

const (
	urgencyWeight = 3
	topicalWeight = 1

	snippetMaxChars = 120
)

// baseUrgencyTerms flag content worth clipping immediately.
var baseUrgencyTerms = []string{
	"breaking", "urgent", "alert", "emergency",
	"hack", "hacked", "exploit", "vulnerability",
	"crash", "crashed", "collapse", "plunge",
	"liquidation", "liquidated", "bankrupt", "halt",
}

// baseTopicalTerms are the beat's standing subjects.
var baseTopicalTerms = []string{
	"bitcoin", "ethereum", "defi", "upgrade", "fork", "halving",
	"etf", "regulation", "sec", "mining", "miner", "wallet",
	"consensus", "stablecoin", "lightning", "treasury", "custody",
	"staking", "rollup", "airdrop",
}

// Planner scores transcript cues against weighted keyword sets and lays out
// candidate windows per the configured policy.
type Planner struct {
	cfg     config.Planner
	weights map[string]int
}

// New builds a planner from policy config, folding any extra configured
// terms into the base keyword sets.
func New(cfg config.Planner) *Planner {
	weights := make(map[string]int, len(baseUrgencyTerms)+len(baseTopicalTerms))
	for _, term := range baseTopicalTerms {
		weights[term] = topicalWeight
	}
	for _, term := range cfg.ExtraTopicalTerms {
		weights[strings.ToLower(strings.TrimSpace(term))] = topicalWeight
	}
	for _, term := range baseUrgencyTerms {
		weights[term] = urgencyWeight
	}
	for _, term := range cfg.ExtraUrgencyTerms {
		weights[strings.ToLower(strings.TrimSpace(term))] = urgencyWeight
	}
	delete(weights, "")
	return &Planner{cfg: cfg, weights: weights}
}

// Plan returns 0 to MaxSegments windows ordered by start time. An empty
// transcript or unknown total duration yields zero segments; the caller
// routes that to the fallback tier.
func (p *Planner) Plan(cues transcript.Transcript, totalDurationSec float64) []queue.Segment {
	if totalDurationSec <= 0 {
		totalDurationSec = cues.Duration()
	}
	if cues.Empty() || totalDurationSec <= 0 {
		return nil
	}

	candidates := p.keywordCandidates(cues, totalDurationSec)
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].DurationSec() != candidates[j].DurationSec() {
			return candidates[i].DurationSec() > candidates[j].DurationSec()
		}
		return candidates[i].StartSec < candidates[j].StartSec
	})

	var accepted []queue.Segment
	for _, cand := range candidates {
		if len(accepted) >= p.cfg.MaxSegments {
			break
		}
		if p.separated(accepted, cand.StartSec) {
			accepted = append(accepted, cand)
		}
	}

	if len(accepted) < p.cfg.MinSegments && totalDurationSec >= p.cfg.MinSegmentSeconds {
		accepted = p.addCoverageWindows(accepted, totalDurationSec)
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].StartSec < accepted[j].StartSec })
	return accepted
}

func (p *Planner) keywordCandidates(cues transcript.Transcript, total float64) []queue.Segment {
	var candidates []queue.Segment
	for _, cue := range cues {
		if cue.End <= cue.Start {
			continue
		}
		score := p.scoreText(cue.Text)
		if score <= 0 {
			continue
		}
		seg, ok := p.buildWindow(cue.Start, total)
		if !ok {
			continue
		}
		seg.Score = float64(score)
		seg.Reason = queue.ReasonKeywordHit
		seg.Snippet = snippet(cue.Text)
		candidates = append(candidates, seg)
	}
	return candidates
}

// buildWindow lays a target-length window with a short lead-in before the
// hit, clamped to the window bounds and the source duration.
func (p *Planner) buildWindow(hitSec, total float64) (queue.Segment, bool) {
	start := hitSec - p.cfg.LeadInSeconds
	if start < 0 {
		start = 0
	}
	end := start + p.cfg.TargetSegmentSeconds
	if end > total {
		end = total
		start = end - p.cfg.TargetSegmentSeconds
		if start < 0 {
			start = 0
		}
	}
	if end-start > p.cfg.MaxSegmentSeconds {
		end = start + p.cfg.MaxSegmentSeconds
	}
	if end-start < p.cfg.MinSegmentSeconds {
		start = end - p.cfg.MinSegmentSeconds
		if start < 0 {
			start = 0
		}
	}
	if end-start < p.cfg.MinSegmentSeconds {
		return queue.Segment{}, false
	}
	return queue.Segment{StartSec: start, EndSec: end}, true
}

func (p *Planner) addCoverageWindows(accepted []queue.Segment, total float64) []queue.Segment {
	pureCoverage := len(accepted) == 0
	lastStart := total - p.cfg.MinSegmentSeconds
	for _, offset := range p.cfg.CoverageOffsets {
		if len(accepted) >= p.cfg.MinSegments {
			return accepted
		}
		seg := p.coverageWindow(total*offset, total, lastStart)
		if !p.separated(accepted, seg.StartSec) {
			continue
		}
		accepted = append(accepted, seg)
	}
	if pureCoverage && len(accepted) < p.cfg.MinSegments {
		if evened, ok := p.evenCoverage(total, lastStart); ok {
			return evened
		}
	}
	return accepted
}

// coverageWindow anchors a window at the offset point with the usual lead-in.
// Near the tail it keeps the anchor and shortens the window toward the minimum
// length rather than sliding the start into an earlier window's territory.
func (p *Planner) coverageWindow(hitSec, total, lastStart float64) queue.Segment {
	start := hitSec - p.cfg.LeadInSeconds
	if start < 0 {
		start = 0
	}
	if start > lastStart {
		start = lastStart
	}
	end := start + p.cfg.TargetSegmentSeconds
	if end > total {
		end = total
	}
	return queue.Segment{StartSec: start, EndSec: end, Reason: queue.ReasonCoverageWindow}
}

// evenCoverage lays MinSegments windows at uniform start spacing across the
// feasible start range. On short sources the configured offsets can leave no
// separated slot for a final window, so the floor needs joint placement.
func (p *Planner) evenCoverage(total, lastStart float64) ([]queue.Segment, bool) {
	n := p.cfg.MinSegments
	if n < 1 || lastStart < 0 {
		return nil, false
	}
	spacing := lastStart
	if n > 1 {
		spacing = lastStart / float64(n-1)
	}
	if n > 1 && spacing < p.cfg.MinSeparationSeconds {
		return nil, false
	}
	segments := make([]queue.Segment, 0, n)
	for i := 0; i < n; i++ {
		start := float64(i) * spacing
		end := start + p.cfg.TargetSegmentSeconds
		if end > total {
			end = total
		}
		segments = append(segments, queue.Segment{StartSec: start, EndSec: end, Reason: queue.ReasonCoverageWindow})
	}
	return segments, true
}

func (p *Planner) separated(accepted []queue.Segment, start float64) bool {
	for _, seg := range accepted {
		delta := start - seg.StartSec
		if delta < 0 {
			delta = -delta
		}
		if delta < p.cfg.MinSeparationSeconds {
			return false
		}
	}
	return true
}

func (p *Planner) scoreText(text string) int {
	score := 0
	for _, word := range tokenize(text) {
		score += p.weights[word]
	}
	return score
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if runes := []rune(text); len(runes) > snippetMaxChars {
		text = string(runes[:snippetMaxChars])
	}
	return text
}
