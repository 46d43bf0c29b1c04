// Package deps verifies the external binaries the job pipelines invoke.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"jellyhook/internal/config"
)

// Requirement defines one external binary dependency.
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

// For returns the requirements implied by the configured tool names.
func For(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "ffprobe", Command: cfg.Tools.FFprobe, Description: "stream and Dolby Vision inspection"},
		{Name: "ffmpeg", Command: cfg.Tools.FFmpeg, Description: "track pruning remux"},
		{Name: "mkvextract", Command: cfg.Tools.MKVExtract, Description: "video stream extraction"},
		{Name: "mkvmerge", Command: cfg.Tools.MKVMerge, Description: "container remux"},
		{Name: "dovi_tool", Command: cfg.Tools.DoviTool, Description: "Dolby Vision layer handling"},
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
