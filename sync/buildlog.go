package sync

import (
	"fmt"
	"strings"
	gosync "sync"
)

// BuildLog accumulates ordered human-readable progress lines for one sync
// attempt. It is safe for concurrent use; the ingestion pipeline and the
// orchestrator both append to it.
type BuildLog struct {
	mu    gosync.Mutex
	lines []string
}

// NewBuildLog creates an empty build log.
func NewBuildLog() *BuildLog {
	return &BuildLog{}
}

// Logf appends one formatted line.
func (l *BuildLog) Logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

// Lines returns a copy of the accumulated lines in append order.
func (l *BuildLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// String renders the log as one newline-joined block.
func (l *BuildLog) String() string {
	return strings.Join(l.Lines(), "\n")
}
