package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const logFilePrefix = "infostore-"

// OpenLogFile creates a timestamped log file in dir and prunes the directory
// down to keep files. The caller closes the returned file.
func OpenLogFile(dir string, keep int) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	name := logFilePrefix + time.Now().UTC().Format("20060102T150405.000") + ".log"
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	if err := pruneLogs(dir, keep); err != nil {
		// Logging still works; report on stderr since the logger is not up yet.
		fmt.Fprintf(os.Stderr, "warning: prune logs: %v\n", err)
	}
	return f, nil
}

// pruneLogs removes the oldest log files beyond keep. Names sort
// chronologically.
func pruneLogs(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var logs []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), logFilePrefix) && strings.HasSuffix(e.Name(), ".log") {
			logs = append(logs, e.Name())
		}
	}
	if len(logs) <= keep {
		return nil
	}
	sort.Strings(logs)
	for _, name := range logs[:len(logs)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}
