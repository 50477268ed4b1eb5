// Package deps checks the external tools and disk capacity the pipeline
// needs before the daemon starts taking jobs.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"reelsmith/internal/config"
)

// Requirement defines an external binary the pipeline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements builds the dependency list from configured tool names.
// The transcriber and synthesizer are optional: without them jobs still
// complete through the uncaptioned and silent paths.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.Tools.FFmpeg, Description: "Segment extraction, compositing, and concatenation"},
		{Name: "FFprobe", Command: cfg.Tools.FFprobe, Description: "Stream inspection for the quality gate"},
		{Name: "Downloader", Command: cfg.Tools.Downloader, Description: "Partner channel feeds and source video downloads"},
		{Name: "Transcriber", Command: cfg.Tools.Transcriber, Description: "Speech-to-text for planning and captions", Optional: true},
		{Name: "Synthesizer", Command: cfg.Tools.Synthesizer, Description: "Narration for fallback artifacts", Optional: true},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of required dependencies that are
// unavailable. An empty slice means the pipeline can run.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
