// Package diagnostics provides a full-tree inspection report over a mounted ESFS
// volume, layered on top of esfs.Volume.Walk. It exists for offline tooling rather
// than the read path itself: nothing here is consulted by Mount, Open, or Read.
package diagnostics

import (
	"fmt"

	"github.com/essencefs/go-esfs/filesystem/esfs"
)

// Report summarizes one full-tree walk of a volume.
type Report struct {
	Files          int
	Directories    int
	TotalBytes     int64
	CyclesDetected bool
	ChecksumIssues []string
	Paths          []string
}

// Walk traverses vol from root, collecting a Report. It never returns an error for
// cycles — those are recorded in the report, not treated as fatal — but structural
// violations encountered while reading directory entries still propagate.
func Walk(vol *esfs.Volume, root string) (*Report, error) {
	report := &Report{ChecksumIssues: vol.ChecksumMismatches()}

	cycleDetected, err := vol.Walk(root, func(entry esfs.WalkEntry) (bool, error) {
		report.Paths = append(report.Paths, entry.Path)
		if entry.Info.IsDir() {
			report.Directories++
		} else {
			report.Files++
			report.TotalBytes += entry.Info.Size()
		}
		return false, nil
	})
	if err != nil {
		return report, fmt.Errorf("diagnostics: walk failed at %d entries: %w", len(report.Paths), err)
	}
	report.CyclesDetected = cycleDetected
	return report, nil
}

// String renders a short human-readable summary.
func (r *Report) String() string {
	s := fmt.Sprintf("%d files, %d directories, %d bytes total", r.Files, r.Directories, r.TotalBytes)
	if r.CyclesDetected {
		s += " (cycle detected, truncated)"
	}
	if len(r.ChecksumIssues) > 0 {
		s += fmt.Sprintf(", checksum mismatches: %v", r.ChecksumIssues)
	}
	return s
}
