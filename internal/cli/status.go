package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ixado-dev/ixado/internal/projectstore"
	"github.com/ixado-dev/ixado/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active phase and its tasks",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}

	store, err := projectstore.Open(projectstore.Path(root))
	if err != nil {
		return fmt.Errorf("open project state: %w", err)
	}

	snapshot, err := store.GetState(context.Background())
	if err != nil {
		return fmt.Errorf("read project state: %w", err)
	}
	if len(snapshot.Phases) == 0 {
		fmt.Println("no phases recorded")
		return nil
	}

	active, err := state.ResolveActivePhase(snapshot)
	if err != nil {
		return err
	}

	fmt.Printf("phase:  %s\n", active.Name)
	fmt.Printf("branch: %s\n", active.BranchName)
	fmt.Printf("status: %s\n", active.Status)
	if active.PRUrl != "" {
		fmt.Printf("pr:     %s\n", active.PRUrl)
	}
	if active.FailureKind != "" {
		fmt.Printf("failure: %s\n", active.FailureKind)
	}
	if active.CIStatusContext != "" {
		fmt.Printf("ci:     %s\n", active.CIStatusContext)
	}
	fmt.Println()
	for i, task := range active.Tasks {
		fmt.Printf("%2d. [%-11s] %-8s %s\n", i+1, task.Status, task.Assignee, task.Title)
	}
	return nil
}
