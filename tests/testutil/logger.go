package testutil

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// LogEntry is one captured log call.
type LogEntry struct {
	Level   string // "info", "warn", "error", "debug"
	Message string
}

// TestLogger captures log calls in memory so tests can check what a
// component reported and that no secret value leaked into it.
//
// It satisfies secretagent.Logger.
//
//	logger := testutil.NewTestLogger(t)
//	client, _ := secretagent.NewClient(cfg, secretagent.WithLogger(logger))
//	_, _ = client.GetSecret(ctx, "secrets:missing")
//	logger.AssertLogCount(t, "error", 1)
type TestLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewTestLogger creates an empty TestLogger.
func NewTestLogger(t *testing.T) *TestLogger {
	t.Helper()
	return &TestLogger{}
}

func (l *TestLogger) record(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, LogEntry{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Info logs an informational message.
func (l *TestLogger) Info(format string, args ...interface{}) { l.record("info", format, args...) }

// Warn logs a warning message.
func (l *TestLogger) Warn(format string, args ...interface{}) { l.record("warn", format, args...) }

// Error logs an error message.
func (l *TestLogger) Error(format string, args ...interface{}) { l.record("error", format, args...) }

// Debug logs a debug message.
func (l *TestLogger) Debug(format string, args ...interface{}) { l.record("debug", format, args...) }

// Entries returns a copy of everything captured so far.
func (l *TestLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]LogEntry(nil), l.entries...)
}

// Output joins all captured messages, one per line.
func (l *TestLogger) Output() string {
	var b strings.Builder
	for _, e := range l.Entries() {
		b.WriteString(e.Message)
		b.WriteByte('\n')
	}
	return b.String()
}

// Clear drops captured entries.
func (l *TestLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = nil
}

// AssertContains asserts that some message contains substr.
func (l *TestLogger) AssertContains(t *testing.T, substr string) {
	t.Helper()
	assert.Contains(t, l.Output(), substr, "Expected log output to contain %q", substr)
}

// AssertNotContains asserts that no message contains substr. Use it to
// check that secret values stay out of logs.
func (l *TestLogger) AssertNotContains(t *testing.T, substr string) {
	t.Helper()
	assert.NotContains(t, l.Output(), substr, "Expected log output to NOT contain %q", substr)
}

// AssertLogCount asserts how many entries were logged at level.
func (l *TestLogger) AssertLogCount(t *testing.T, level string, count int) {
	t.Helper()

	actual := 0
	for _, e := range l.Entries() {
		if e.Level == level {
			actual++
		}
	}
	assert.Equal(t, count, actual, "Expected %d %s log messages, got %d", count, level, actual)
}
