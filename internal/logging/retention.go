package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunLogPattern matches the per-run log files written under the log directory.
const RunLogPattern = "run-*.log"

// RunLogPath returns the per-run log file path for runID.
func RunLogPath(logDir, runID string) string {
	return filepath.Join(logDir, "runs", "run-"+strings.TrimSpace(runID)+".log")
}

// PruneRunLogs removes per-run log files older than retentionDays. The file
// belonging to keepRunID is never removed. A retentionDays of 0 disables pruning.
func PruneRunLogs(logger *slog.Logger, logDir string, retentionDays int, keepRunID string) int {
	if retentionDays <= 0 || strings.TrimSpace(logDir) == "" {
		return 0
	}
	dir := filepath.Join(logDir, "runs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	keep := ""
	if keepRunID != "" {
		keep = filepath.Base(RunLogPath(logDir, keepRunID))
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if matched, err := filepath.Match(RunLogPattern, name); err != nil || !matched || name == keep {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		fullPath := filepath.Join(dir, name)
		if err := os.Remove(fullPath); err != nil {
			WarnWithContext(logger, "run log prune failed; file remains", "log_retention_failed",
				String("path", fullPath),
				Error(err),
				String(FieldErrorHint, "check log_dir ownership"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("run log pruned", String("path", fullPath), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}

// OpenRunLog opens (appending) the per-run log file and returns a handler
// writing JSON lines into it. The caller closes the returned file.
func OpenRunLog(logDir, runID string) (*os.File, slog.Handler, error) {
	path := RunLogPath(logDir, runID)
	file, err := openAppend(path)
	if err != nil {
		return nil, nil, err
	}
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelDebug)
	return file, newJSONHandler(file, lvl, false), nil
}
