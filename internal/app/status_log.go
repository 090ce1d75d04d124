package app

import (
	"fmt"
	"sync"
	"time"
)

// StatusLog is the bounded, in-memory feed backing the queue status view.
// Once the capacity is reached the oldest lines are evicted, so a long
// download cannot grow the feed without bound.
type StatusLog struct {
	mu    sync.Mutex
	cap   int
	lines []string
}

// NewStatusLog creates a status log holding at most capacity lines
func NewStatusLog(capacity int) *StatusLog {
	if capacity < 1 {
		capacity = 1
	}
	return &StatusLog{cap: capacity}
}

// Append adds one timestamped line, evicting the oldest when full
func (l *StatusLog) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.append(line)
}

// AppendAll adds a batch of lines in order
func (l *StatusLog) AppendAll(lines []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range lines {
		l.append(line)
	}
}

func (l *StatusLog) append(line string) {
	stamped := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), line)
	l.lines = append(l.lines, stamped)
	if len(l.lines) > l.cap {
		l.lines = l.lines[len(l.lines)-l.cap:]
	}
}

// Snapshot returns a copy of the current lines, oldest first
func (l *StatusLog) Snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// Len returns the current number of retained lines
func (l *StatusLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}
