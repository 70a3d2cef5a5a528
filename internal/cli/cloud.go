package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/logging"

	"github.com/ixado-dev/ixado/internal/audit"
	"github.com/ixado-dev/ixado/internal/cloud/gcplog"
	"github.com/ixado-dev/ixado/internal/cloud/gcpsecret"
	"github.com/ixado-dev/ixado/internal/config"
	"github.com/ixado-dev/ixado/internal/lock"
)

// gcpAuditMirror adapts gcplog.Mirror to audit.Mirror, translating the
// local audit.Entry shape into a Cloud Logging severity + label set.
type gcpAuditMirror struct {
	mirror gcplog.Mirror
}

func (m gcpAuditMirror) Log(entry audit.Entry) {
	severity := severityForDecision(entry.Decision)
	labels := map[string]string{
		"actor":  entry.Actor,
		"role":   string(entry.Role),
		"action": entry.Action,
	}
	if entry.Reason != "" {
		labels["reason"] = string(entry.Reason)
	}
	m.mirror.Log(severity, entry.Action+" -> "+entry.Decision, labels)
}

// buildAuditLogger constructs the local append-only audit.Logger,
// mirroring to Cloud Logging when gcp_project_id is configured. The
// returned close func must be deferred by the caller.
func buildAuditLogger(ctx context.Context, cfg *config.EngineConfig, root string) (*audit.Logger, func(), error) {
	path := cfg.AuditLogPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	var mirror audit.Mirror
	closeFn := func() {}

	if cfg.GCPProjectID != "" {
		logID := cfg.GCPLogID
		if logID == "" {
			logID = "ixado-audit"
		}
		client, err := gcplog.NewClientMirror(ctx, cfg.GCPProjectID, logID)
		if err != nil {
			return nil, closeFn, fmt.Errorf("create cloud logging mirror: %w", err)
		}
		mirror = gcpAuditMirror{mirror: client}
		closeFn = func() { _ = client.Close() }
	}

	logger, err := audit.NewLogger(path, mirror)
	if err != nil {
		closeFn()
		return nil, func() {}, fmt.Errorf("open audit logger: %w", err)
	}
	prevClose := closeFn
	return logger, func() {
		_ = logger.Close()
		prevClose()
	}, nil
}

// buildLockCodec returns a tamper-evident lock.SignedLockCodec keyed from
// a local signing-key file, falling back to GCP Secret Manager when the
// file is absent and gcp_signing_key_secret is configured, or a plain
// unsigned codec when no key source is available.
func buildLockCodec(ctx context.Context, cfg *config.EngineConfig, root string) (lock.Codec, error) {
	keyPath := cfg.LockSigningKeyPath
	if !filepath.IsAbs(keyPath) {
		keyPath = filepath.Join(root, keyPath)
	}

	secret, err := os.ReadFile(keyPath)
	if err == nil {
		return lock.SignedLockCodec{Secret: secret}, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read lock signing key: %w", err)
	}

	if cfg.GCPProjectID == "" || cfg.GCPSigningKeySecret == "" {
		return lock.PlainCodec{}, nil
	}

	client, err := gcpsecret.NewClient(ctx, cfg.GCPProjectID)
	if err != nil {
		return nil, fmt.Errorf("create secret manager client: %w", err)
	}
	defer func() { _ = client.Close() }()

	secretValue, err := client.FetchSecret(ctx, cfg.GCPSigningKeySecret)
	if err != nil {
		return nil, fmt.Errorf("fetch lock signing key from secret manager: %w", err)
	}
	return lock.SignedLockCodec{Secret: []byte(secretValue)}, nil
}

func severityForDecision(decision string) logging.Severity {
	if decision == "deny" {
		return logging.Warning
	}
	return logging.Info
}
