package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ixado-dev/ixado/internal/authz"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold .ixado/ configuration for this project",
	Long: `Init creates .ixado.yaml with default operational tunables and
.ixado/policy.yaml with the built-in role policy (spec.md §6), so both
are present on disk and editable before the first "ixado phase run".`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "overwrite existing files")
}

const defaultConfigTemplate = `# ixado engine configuration (spec.md §6)
max_recovery_attempts: 3
ci_fix_max_depth: 5
ci_fan_out_cap: 10
terminal_confirmations: 2
poll_interval_ms: 15000
poll_timeout_ms: 1800000
max_ci_validation_retries: 3
mark_ready_on_approval: true
default_assignee: claude-code
ci_base_branch: main
ci_enabled: true
auth_policy_path: .ixado/policy.yaml
lock_signing_key_path: .ixado/lock-signing.key
audit_log_path: .ixado/audit.log
`

func runInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(root, ".ixado"), 0o755); err != nil {
		return fmt.Errorf("create .ixado directory: %w", err)
	}

	configPath := filepath.Join(root, ".ixado.yaml")
	if err := writeIfAbsent(configPath, []byte(defaultConfigTemplate), force); err != nil {
		return err
	}
	fmt.Println("wrote", configPath)

	policyPath := filepath.Join(root, ".ixado", "policy.yaml")
	policyData, err := yaml.Marshal(authz.DefaultPolicy())
	if err != nil {
		return fmt.Errorf("marshal default policy: %w", err)
	}
	if err := writeIfAbsent(policyPath, policyData, force); err != nil {
		return err
	}
	fmt.Println("wrote", policyPath)

	return nil
}

func writeIfAbsent(path string, data []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
