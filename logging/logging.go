// Package logging provides leveled, component-scoped log output for the
// coordination loops. Lines are plain text with key=value fields so they
// survive a downlink to ground tooling without a parser dependency.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Logger writes structured log lines to a single writer.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	agent     string
}

// New creates a Logger writing to stdout at INFO level.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a logger scoped to a component name
// (e.g. "registry", "broadcast", "safety").
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		agent:     l.agent,
	}
}

// WithAgent returns a logger tagged with this agent's satellite serial.
// Useful when several simulated agents share one process in tests.
func (l *Logger) WithAgent(serial string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		agent:     serial,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a line: LEVEL TIMESTAMP [agent/component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}

	scope := l.component
	if l.agent != "" {
		if scope != "" {
			scope = l.agent + "/" + scope
		} else {
			scope = l.agent
		}
	}

	var line string
	if scope != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, scope, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// --- Coordination event helpers ---
// Thin wrappers so the components log the same events with the same fields.

// PeerDiscovered logs a new peer entering the registry.
func (l *Logger) PeerDiscovered(serial, via string) {
	l.Info("peer_discovered", map[string]interface{}{
		"peer": serial,
		"via":  via,
	})
}

// HeartbeatFailure logs a failed heartbeat publish and the widened interval.
func (l *Logger) HeartbeatFailure(failures int, nextInterval time.Duration, err error) {
	l.Warn("heartbeat_failed", map[string]interface{}{
		"failures":      failures,
		"next_interval": nextInterval.String(),
		"error":         err.Error(),
	})
}

// GossipDropped logs a HELLO suppressed by the replication cap.
func (l *Logger) GossipDropped(origin string, relayed int) {
	l.Debug("gossip_replication_cap", map[string]interface{}{
		"origin":  origin,
		"relayed": relayed,
	})
}

// BroadcastSkipped logs a broadcast suppressed because health was unchanged.
func (l *Logger) BroadcastSkipped() {
	l.Debug("broadcast_skipped_unchanged")
}

// CongestionChange logs a change in the governed congestion level.
func (l *Logger) CongestionChange(level string, utilization float64) {
	l.Info("congestion_level", map[string]interface{}{
		"level":       level,
		"utilization": fmt.Sprintf("%.2f", utilization),
	})
}

// ActionBlocked logs a constellation action rejected by the safety gate.
func (l *Logger) ActionBlocked(action, decisionID string, totalRisk, threshold float64) {
	l.Warn("action_blocked", map[string]interface{}{
		"action":    action,
		"decision":  decisionID,
		"risk":      fmt.Sprintf("%.4f", totalRisk),
		"threshold": fmt.Sprintf("%.4f", threshold),
	})
}
