// Package layout derives artifact filenames and paths from a work's identity.
// Every function here is pure: edits recompute old and new paths from old and
// new identity and compare them.
package layout

import "path/filepath"

// ChartFilename returns the chart artifact name for a display name.
func ChartFilename(displayName string) string {
	return displayName + " - stats.html"
}

// HistoryFilename returns the history artifact name for a (displayName, id) pair.
func HistoryFilename(displayName, workID string) string {
	return displayName + "_" + workID + "_workHistory.json"
}

// Layout resolves artifact names against configured directories.
type Layout struct {
	HistoryDir string
}

// ChartPath is where the chart for displayName is written inside outputDir.
func (l Layout) ChartPath(outputDir, displayName string) string {
	return filepath.Join(outputDir, ChartFilename(displayName))
}

// HistoryPath is where the history for (displayName, workID) is stored.
func (l Layout) HistoryPath(displayName, workID string) string {
	return filepath.Join(l.HistoryDir, HistoryFilename(displayName, workID))
}
