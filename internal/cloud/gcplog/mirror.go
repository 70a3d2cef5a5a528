// Package gcplog optionally mirrors local audit entries to Cloud Logging.
// It generalizes the teacher's structured-JSON-to-stderr logger
// (internal/cloud/gcp.CloudLogger) into a thin wrapper around the real
// cloud.google.com/go/logging client, since the audit trail's primary copy
// is always the local append-only file — this is a best-effort mirror, not
// the system of record.
package gcplog

import (
	"context"
	"fmt"

	"cloud.google.com/go/logging"
)

// Mirror sends audit entries to a Cloud Logging log.
type Mirror interface {
	Log(severity logging.Severity, message string, labels map[string]string)
	Close() error
}

// ClientMirror wraps a real *logging.Client / *logging.Logger pair.
type ClientMirror struct {
	client *logging.Client
	logger *logging.Logger
}

// NewClientMirror dials Cloud Logging for projectID and opens logID.
func NewClientMirror(ctx context.Context, projectID, logID string) (*ClientMirror, error) {
	client, err := logging.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create cloud logging client: %w", err)
	}
	return &ClientMirror{client: client, logger: client.Logger(logID)}, nil
}

func (m *ClientMirror) Log(severity logging.Severity, message string, labels map[string]string) {
	m.logger.Log(logging.Entry{
		Severity: severity,
		Payload:  message,
		Labels:   labels,
	})
}

// Close flushes buffered entries and closes the underlying client.
func (m *ClientMirror) Close() error {
	return m.client.Close()
}

// NoopMirror discards everything; used when cloud mirroring is disabled.
type NoopMirror struct{}

func (NoopMirror) Log(logging.Severity, string, map[string]string) {}
func (NoopMirror) Close() error                                    { return nil }

var (
	_ Mirror = (*ClientMirror)(nil)
	_ Mirror = NoopMirror{}
)
