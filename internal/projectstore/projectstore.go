// Package projectstore is the reference on-disk implementation of
// state.Store for the standalone CLI: a JSON snapshot file plus the
// in-process state.MemoryStore it wraps. The core never imports this
// package — state persistence is an external collaborator per spec.md §1
// ("persistence of project state to disk... the core needs only a
// transactional read-modify-write interface") — but the CLI needs a real
// one to actually run a phase end to end outside of tests.
package projectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/ixado-dev/ixado/internal/model"
	"github.com/ixado-dev/ixado/internal/state"
)

// snapshotFile is the on-disk shape of a project's persisted state.
type snapshotFile struct {
	ActivePhaseID *uuid.UUID   `json:"activePhaseId,omitempty"`
	Phases        []model.Phase `json:"phases"`
}

// Store wraps state.MemoryStore and writes a fresh snapshot to disk after
// every mutating call, so a crashed or restarted CLI process picks up
// exactly where the last run left off (including the orphaned
// IN_PROGRESS tasks that ReconcileInProgressTasks resets on the next
// startup, per spec.md §3).
type Store struct {
	path string
	mu   sync.Mutex
	mem  *state.MemoryStore
}

// Path returns the default snapshot location under a project root.
func Path(root string) string {
	return filepath.Join(root, ".ixado", "state.json")
}

// Open loads the snapshot at path if it exists, or seeds an empty store
// otherwise. The returned Store's RunTask/RunWork callbacks must be set by
// the caller before any phase is run.
func Open(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Store{path: path, mem: state.NewMemoryStore(nil)}, nil
		}
		return nil, fmt.Errorf("read project state %s: %w", path, err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse project state %s: %w", path, err)
	}

	mem := state.NewMemoryStore(snap.Phases)
	if snap.ActivePhaseID != nil {
		mem.SetActivePhase(*snap.ActivePhaseID)
	}
	return &Store{path: path, mem: mem}, nil
}

// SetWorkers wires the adapter-invocation callbacks onto the underlying
// MemoryStore.
func (s *Store) SetWorkers(runTask state.TaskRunner, runWork state.WorkRunner) {
	s.mem.RunTask = runTask
	s.mem.RunWork = runWork
}

// Seed appends a phase (e.g. freshly created by an external config
// loader) and persists it immediately.
func (s *Store) Seed(ctx context.Context, phase model.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mem.AddPhase(phase)
	return s.persistLocked()
}

func (s *Store) GetState(ctx context.Context) (state.Snapshot, error) {
	return s.mem.GetState(ctx)
}

func (s *Store) SetPhaseStatus(ctx context.Context, params state.SetPhaseStatusParams) error {
	return s.mutate(ctx, func() error { return s.mem.SetPhaseStatus(ctx, params) })
}

func (s *Store) SetPhasePrUrl(ctx context.Context, phaseID uuid.UUID, prURL string) error {
	return s.mutate(ctx, func() error { return s.mem.SetPhasePrUrl(ctx, phaseID, prURL) })
}

func (s *Store) StartActiveTaskAndWait(ctx context.Context, params state.StartActiveTaskParams) (model.TaskStatus, error) {
	s.mu.Lock()
	status, err := s.mem.StartActiveTaskAndWait(ctx, params)
	persistErr := s.persistLocked()
	s.mu.Unlock()
	if persistErr != nil && err == nil {
		return status, persistErr
	}
	return status, err
}

func (s *Store) CreateTask(ctx context.Context, params state.CreateTaskParams) (model.Task, error) {
	s.mu.Lock()
	task, err := s.mem.CreateTask(ctx, params)
	persistErr := s.persistLocked()
	s.mu.Unlock()
	if persistErr != nil && err == nil {
		return task, persistErr
	}
	return task, err
}

func (s *Store) ReconcileInProgressTasks(ctx context.Context) (int, error) {
	s.mu.Lock()
	n, err := s.mem.ReconcileInProgressTasks(ctx)
	persistErr := s.persistLocked()
	s.mu.Unlock()
	if persistErr != nil && err == nil {
		return n, persistErr
	}
	return n, err
}

func (s *Store) RecordRecoveryAttempt(ctx context.Context, params state.RecordRecoveryAttemptParams) error {
	return s.mutate(ctx, func() error { return s.mem.RecordRecoveryAttempt(ctx, params) })
}

func (s *Store) RunInternalWork(ctx context.Context, params state.RunInternalWorkParams) (state.RunInternalWorkResult, error) {
	return s.mem.RunInternalWork(ctx, params)
}

func (s *Store) mutate(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	return s.persistLocked()
}

// persistLocked writes the current snapshot to disk. Caller must hold s.mu.
func (s *Store) persistLocked() error {
	snapshot, err := s.mem.GetState(context.Background())
	if err != nil {
		return fmt.Errorf("read snapshot for persist: %w", err)
	}
	out := snapshotFile{ActivePhaseID: snapshot.ActivePhaseID, Phases: snapshot.Phases}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create project state directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write project state: %w", err)
	}
	return os.Rename(tmp, s.path)
}
