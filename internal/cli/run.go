package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ixado-dev/ixado/internal/agent"
	_ "github.com/ixado-dev/ixado/internal/agent/aider"
	_ "github.com/ixado-dev/ixado/internal/agent/claudecode"
	_ "github.com/ixado-dev/ixado/internal/agent/codex"
	_ "github.com/ixado-dev/ixado/internal/agent/mockcli"
	"github.com/ixado-dev/ixado/internal/audit"
	"github.com/ixado-dev/ixado/internal/authz"
	"github.com/ixado-dev/ixado/internal/ci"
	"github.com/ixado-dev/ixado/internal/config"
	"github.com/ixado-dev/ixado/internal/controller"
	"github.com/ixado-dev/ixado/internal/events"
	"github.com/ixado-dev/ixado/internal/lock"
	"github.com/ixado-dev/ixado/internal/model"
	"github.com/ixado-dev/ixado/internal/process"
	"github.com/ixado-dev/ixado/internal/projectstore"
	"github.com/ixado-dev/ixado/internal/worker"
)

var phaseCmd = &cobra.Command{
	Use:   "phase",
	Short: "Operate on the active phase",
}

var phaseRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the active phase to its next terminal status",
	Long: `Run drives the active phase through the state machine (spec.md §4.12):
preflight, branching, the task/tester execution loop, and, if CI is
enabled, PR creation, CI polling, and review validation.

Exactly one phase runner may hold the project's execution lock at a
time; a concurrent invocation fails fast with "already running".`,
	RunE: runPhase,
}

func init() {
	rootCmd.AddCommand(phaseCmd)
	phaseCmd.AddCommand(phaseRunCmd)

	phaseRunCmd.Flags().Bool("dry-run", false, "print the resolved plan without acquiring the lock or running the phase")
}

func runPhase(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "received interrupt, stopping after the current step...")
		cancel()
	}()

	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		fmt.Printf("project root:      %s\n", root)
		fmt.Printf("default assignee:  %s\n", cfg.DefaultAssignee)
		fmt.Printf("ci base branch:    %s\n", cfg.CiBaseBranch)
		fmt.Printf("ci enabled:        %t\n", cfg.CIEnabled)
		fmt.Printf("max recovery:      %d\n", cfg.MaxRecoveryAttempts)
		return nil
	}

	auditLogger, closeAudit, err := buildAuditLogger(ctx, cfg, root)
	if err != nil {
		return err
	}
	defer closeAudit()

	projectName := filepath.Base(root)

	runLock, err := acquireLock(ctx, cfg, root, projectName)
	if err != nil {
		return err
	}
	defer func() {
		if err := runLock.Release(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to release lock: %v\n", err)
		}
	}()

	store, err := projectstore.Open(projectstore.Path(root))
	if err != nil {
		return fmt.Errorf("open project state: %w", err)
	}

	procRunner := process.NewExecRunner()
	driver := &worker.Driver{
		Runner:          procRunner,
		Cwd:             root,
		TimeoutMs:       cfg.AdapterTimeoutMs,
		BypassApprovals: cfg.BypassApprovals,
	}
	store.SetWorkers(driver.RunTask, driver.RunWork)

	role := roleFlag
	if envRole, ok := os.LookupEnv("IXADO_ROLE"); ok && !cmd.Flags().Changed("role") {
		role = envRole
	}
	evaluator := &authz.ActionEvaluator{
		PolicyPath:   cfg.AuthPolicyPath,
		RoleResolver: flagRoleResolver{role: role},
		ActionMap:    authz.DefaultActionMap(),
	}

	for _, id := range []model.AdapterID{cfg.DefaultAssignee} {
		if !agent.Exists(id) {
			return fmt.Errorf("default assignee %q is not a registered adapter", id)
		}
	}

	runner := controller.New(cfg, store, procRunner, evaluator)
	runner.Cwd = root
	runner.Repository = viper.GetString("repository")
	runner.CIEnabled = cfg.CIEnabled
	runner.TesterCommand = cfg.TesterCommand
	runner.TesterArgs = cfg.TesterArgs
	runner.PRDraft = cfg.PRDraft
	runner.PRDefaultLabels = cfg.PRDefaultLabels
	runner.PRAssignees = cfg.PRAssignees
	runner.Integrator.Runner = procRunner
	runner.Integrator.Authorizer = evaluator
	runner.Poller.Runner = procRunner
	runner.Logf = func(format string, a ...any) {
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, format+"\n", a...)
		}
	}

	runner.Events.Subscribe(events.LevelImportant, func(e events.Event) {
		fmt.Printf("[%s] %s: %s\n", e.Family, e.Summary, e.Content)
		auditLogger.Log("runtime:event", map[string]any{
			"target": e.Summary, "decision": string(e.Family), "actor": e.PhaseID,
		})
	})

	if templates := resolveTemplateMappings(); len(templates) > 0 {
		runner.PRTemplates = templates
	}

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("phase run: %w", err)
	}

	fmt.Println("phase run completed")
	return nil
}

func resolveTemplateMappings() []ci.TemplateMapping {
	raw := viper.GetStringMapString("pr_templates")
	if len(raw) == 0 {
		return nil
	}
	mappings := make([]ci.TemplateMapping, 0, len(raw))
	for prefix, path := range raw {
		mappings = append(mappings, ci.TemplateMapping{BranchPrefix: prefix, TemplatePath: path})
	}
	return mappings
}

func acquireLock(ctx context.Context, cfg *config.EngineConfig, root, projectName string) (*lock.Lock, error) {
	codec, err := buildLockCodec(ctx, cfg, root)
	if err != nil {
		return nil, err
	}

	l := &lock.Lock{Root: root, ProjectName: projectName, Owner: model.LockOwnerCLIPhaseRun, Codec: codec}
	if _, err := l.Acquire(); err != nil {
		return nil, err
	}
	return l, nil
}
