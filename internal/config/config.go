// Package config loads the engine's own operational tunables — caps,
// timeouts, and policy file locations — distinct from the external
// project/task configuration the core only consumes at runtime.
package config

import (
	"fmt"
	"time"

	"github.com/ixado-dev/ixado/internal/model"
	"github.com/spf13/viper"
)

// EngineConfig holds every operational tunable the engine reads at
// startup.
type EngineConfig struct {
	MaxRecoveryAttempts    int             `mapstructure:"max_recovery_attempts"`
	CiFixMaxDepth          int             `mapstructure:"ci_fix_max_depth"`
	CiFanOutCap            int             `mapstructure:"ci_fan_out_cap"`
	TerminalConfirmations  int             `mapstructure:"terminal_confirmations"`
	PollIntervalMs         int             `mapstructure:"poll_interval_ms"`
	PollTimeoutMs          int             `mapstructure:"poll_timeout_ms"`
	MaxCiValidationRetries int             `mapstructure:"max_ci_validation_retries"`
	MarkReadyOnApproval    bool            `mapstructure:"mark_ready_on_approval"`
	DefaultAssignee        model.AdapterID `mapstructure:"default_assignee"`
	AuthPolicyPath         string          `mapstructure:"auth_policy_path"`
	CiBaseBranch           string          `mapstructure:"ci_base_branch"`
	LockSigningKeyPath     string          `mapstructure:"lock_signing_key_path"`
	AuditLogPath           string          `mapstructure:"audit_log_path"`
	TesterCommand          string          `mapstructure:"tester_command"`
	TesterArgs             []string        `mapstructure:"tester_args"`
	CIEnabled              bool            `mapstructure:"ci_enabled"`
	PRDraft                bool            `mapstructure:"pr_draft"`
	PRDefaultLabels        []string        `mapstructure:"pr_default_labels"`
	PRAssignees            []string        `mapstructure:"pr_assignees"`
	BypassApprovals        bool            `mapstructure:"bypass_approvals"`
	AdapterTimeoutMs       int             `mapstructure:"adapter_timeout_ms"`
	GCPProjectID           string          `mapstructure:"gcp_project_id"`
	GCPLogID               string          `mapstructure:"gcp_log_id"`
	GCPSigningKeySecret    string          `mapstructure:"gcp_signing_key_secret"`
}

// Load loads configuration from .ixado.yaml (via the already-configured
// viper instance; see cli.initConfig) with IXADO_-prefixed environment
// overrides, applying defaults for anything left unset.
func Load() (*EngineConfig, error) {
	cfg := &EngineConfig{}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

func applyDefaults(cfg *EngineConfig) {
	if cfg.MaxRecoveryAttempts == 0 {
		cfg.MaxRecoveryAttempts = 3
	}
	if cfg.CiFixMaxDepth == 0 {
		cfg.CiFixMaxDepth = 5
	}
	if cfg.CiFanOutCap == 0 {
		cfg.CiFanOutCap = 10
	}
	if cfg.TerminalConfirmations == 0 {
		cfg.TerminalConfirmations = 2
	}
	if cfg.PollIntervalMs == 0 {
		cfg.PollIntervalMs = 15_000
	}
	if cfg.PollTimeoutMs == 0 {
		cfg.PollTimeoutMs = 30 * 60 * 1000
	}
	if cfg.MaxCiValidationRetries == 0 {
		cfg.MaxCiValidationRetries = 3
	}
	if cfg.DefaultAssignee == "" {
		cfg.DefaultAssignee = "claude-code"
	}
	if cfg.AuthPolicyPath == "" {
		cfg.AuthPolicyPath = ".ixado/policy.yaml"
	}
	if cfg.CiBaseBranch == "" {
		cfg.CiBaseBranch = "main"
	}
	if cfg.LockSigningKeyPath == "" {
		cfg.LockSigningKeyPath = ".ixado/lock-signing.key"
	}
	if cfg.AuditLogPath == "" {
		cfg.AuditLogPath = ".ixado/audit.log"
	}
	if cfg.AdapterTimeoutMs == 0 {
		cfg.AdapterTimeoutMs = 10 * 60 * 1000
	}
}

// Validate checks invariants that must hold regardless of how the config
// was sourced.
func (c *EngineConfig) Validate() error {
	if c.MaxRecoveryAttempts < 1 {
		return fmt.Errorf("max_recovery_attempts must be >= 1")
	}
	if c.CiFixMaxDepth < 1 {
		return fmt.Errorf("ci_fix_max_depth must be >= 1")
	}
	if c.CiFanOutCap < 1 {
		return fmt.Errorf("ci_fan_out_cap must be >= 1")
	}
	if c.TerminalConfirmations < 1 {
		return fmt.Errorf("terminal_confirmations must be >= 1")
	}
	if c.PollIntervalMs < 1 {
		return fmt.Errorf("poll_interval_ms must be >= 1")
	}
	if time.Duration(c.PollTimeoutMs)*time.Millisecond < time.Duration(c.PollIntervalMs)*time.Millisecond {
		return fmt.Errorf("poll_timeout_ms must be >= poll_interval_ms")
	}
	if c.AuthPolicyPath == "" {
		return fmt.Errorf("auth_policy_path is required")
	}
	return nil
}
