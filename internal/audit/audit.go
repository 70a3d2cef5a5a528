// Package audit implements the append-only local audit trail —
// `.ixado/audit.log` — with an optional Cloud Logging mirror. It
// generalizes the teacher's internal/audit package (which classified tool
// invocations into security categories for Cloud Logging) into the
// engine's authorization-decision audit trail.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ixado-dev/ixado/internal/model"
)

// Entry is a single audit-log line: the on-disk shape is exactly this
// struct, one JSON object per line.
type Entry struct {
	Timestamp   time.Time        `json:"timestamp"`
	Actor       string           `json:"actor"`
	Role        model.Role       `json:"role"`
	Action      string           `json:"action"`
	Target      string           `json:"target"`
	Decision    string           `json:"decision"`
	Reason      model.DenyReason `json:"reason,omitempty"`
	CommandHash string           `json:"commandHash,omitempty"`
}

// HashCommand returns a short, stable digest of a command string, so the
// audit log records evidence of what was attempted without embedding the
// full (potentially sensitive) command text.
func HashCommand(command string) string {
	sum := sha256.Sum256([]byte(command))
	return hex.EncodeToString(sum[:])[:12]
}

// Mirror optionally ships entries to a remote log sink in addition to the
// local file. Implementations must not block Logger.Log for long.
type Mirror interface {
	Log(entry Entry)
}

// Logger appends Entry records to a local JSONL file and, if configured,
// forwards them to a Mirror. It implements recovery.AuditLogger's
// `Log(event string, fields map[string]any)` contract via Log.
type Logger struct {
	path   string
	mirror Mirror
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// NewLogger opens (creating if necessary) the audit log at path in
// append-only mode.
func NewLogger(path string, mirror Mirror) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Logger{path: path, mirror: mirror, file: file, writer: bufio.NewWriter(file)}, nil
}

// Append writes one Entry, flushing immediately so the on-disk log is
// never behind an in-memory buffer when the process exits.
func (l *Logger) Append(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	if err := l.writer.WriteByte('\n'); err != nil {
		return err
	}
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("flush audit log: %w", err)
	}

	if l.mirror != nil {
		l.mirror.Log(entry)
	}
	return nil
}

// Log adapts Append to recovery.AuditLogger's narrower interface, mapping
// free-form fields onto the structured Entry shape.
func (l *Logger) Log(event string, fields map[string]any) {
	entry := Entry{Action: event}
	if actor, ok := fields["actor"].(string); ok {
		entry.Actor = actor
	}
	if role, ok := fields["role"].(model.Role); ok {
		entry.Role = role
	}
	if target, ok := fields["target"].(string); ok {
		entry.Target = target
	}
	if decision, ok := fields["decision"].(string); ok {
		entry.Decision = decision
	}
	if reason, ok := fields["reason"].(model.DenyReason); ok {
		entry.Reason = reason
	}
	if cmd, ok := fields["command"].(string); ok {
		entry.CommandHash = HashCommand(cmd)
	}
	_ = l.Append(entry)
}

// Path returns the audit log's on-disk path.
func (l *Logger) Path() string { return l.path }

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	_ = l.writer.Flush()
	err := l.file.Close()
	l.file = nil
	return err
}

// ReadEntries reads every entry from the audit log at path, for tests and
// operator inspection.
func ReadEntries(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer func() { _ = file.Close() }()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("parse audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
