package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ixado-dev/ixado/internal/model"
)

// TaskRunner is the external worker boundary startActiveTaskAndWait
// delegates to: given the task and its resolved assignee, drive the
// adapter to completion and report the task's terminal status plus
// whatever context/error text it produced.
type TaskRunner func(ctx context.Context, phase model.Phase, task model.Task, assignee model.AdapterID, resume bool) (status model.TaskStatus, resultContext string, errorLogs string, err error)

// WorkRunner is the external worker boundary runInternalWork delegates to.
type WorkRunner func(ctx context.Context, params RunInternalWorkParams) (RunInternalWorkResult, error)

// MemoryStore is an in-process reference implementation of Store, keyed
// entirely by phase ID, generalizing the teacher's map[string]*TaskState
// bookkeeping (internal/controller/controller.go) from a flat task map
// into phase-owned task lists with transactional mutation.
type MemoryStore struct {
	mu            sync.Mutex
	phases        map[uuid.UUID]*model.Phase
	order         []uuid.UUID
	activePhaseID *uuid.UUID

	RunTask TaskRunner
	RunWork WorkRunner
}

// NewMemoryStore constructs a MemoryStore seeded with the given phases,
// active-phase defaulting to the first one.
func NewMemoryStore(phases []model.Phase) *MemoryStore {
	s := &MemoryStore{phases: make(map[uuid.UUID]*model.Phase)}
	for i := range phases {
		p := phases[i]
		s.phases[p.ID] = &p
		s.order = append(s.order, p.ID)
	}
	if len(s.order) > 0 {
		id := s.order[0]
		s.activePhaseID = &id
	}
	return s
}

// AddPhase appends a new phase (e.g. produced by an external config
// loader) to the store, becoming the active phase if none was set yet.
func (s *MemoryStore) AddPhase(phase model.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases[phase.ID] = &phase
	s.order = append(s.order, phase.ID)
	if s.activePhaseID == nil {
		id := phase.ID
		s.activePhaseID = &id
	}
}

// SetActivePhase overrides which phase GetState reports as active.
func (s *MemoryStore) SetActivePhase(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activePhaseID = &id
}

func (s *MemoryStore) GetState(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := Snapshot{ActivePhaseID: s.activePhaseID}
	for _, id := range s.order {
		snapshot.Phases = append(snapshot.Phases, *s.phases[id])
	}
	return snapshot, nil
}

func (s *MemoryStore) SetPhaseStatus(ctx context.Context, params SetPhaseStatusParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	phase, ok := s.phases[params.PhaseID]
	if !ok {
		return &PhaseNotFoundError{PhaseID: params.PhaseID}
	}
	phase.Status = params.Status
	if params.FailureKind != "" {
		phase.FailureKind = params.FailureKind
	}
	if params.CIStatusContext != "" {
		phase.CIStatusContext = params.CIStatusContext
	}
	return nil
}

func (s *MemoryStore) SetPhasePrUrl(ctx context.Context, phaseID uuid.UUID, prURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	phase, ok := s.phases[phaseID]
	if !ok {
		return &PhaseNotFoundError{PhaseID: phaseID}
	}
	phase.PRUrl = prURL
	return nil
}

func (s *MemoryStore) StartActiveTaskAndWait(ctx context.Context, params StartActiveTaskParams) (model.TaskStatus, error) {
	s.mu.Lock()
	phase, ok := s.phases[params.PhaseID]
	if !ok {
		s.mu.Unlock()
		return "", &PhaseNotFoundError{PhaseID: params.PhaseID}
	}
	if params.TaskNumber < 1 || params.TaskNumber > len(phase.Tasks) {
		s.mu.Unlock()
		return "", &TaskNotFoundError{PhaseID: params.PhaseID, TaskNumber: params.TaskNumber}
	}
	idx := params.TaskNumber - 1
	task := phase.Tasks[idx]
	task.Status = model.TaskInProgress
	phase.Tasks[idx] = task
	phaseCopy := *phase
	runner := s.RunTask
	s.mu.Unlock()

	if runner == nil {
		return "", fmt.Errorf("no task runner configured")
	}

	status, resultContext, errorLogs, err := runner(ctx, phaseCopy, task, params.Assignee, params.Resume)

	s.mu.Lock()
	defer s.mu.Unlock()
	phase, ok = s.phases[params.PhaseID]
	if !ok {
		return "", &PhaseNotFoundError{PhaseID: params.PhaseID}
	}
	task = phase.Tasks[idx]
	if err != nil {
		task.Status = model.TaskFailed
		task.ErrorLogs = err.Error()
	} else {
		task.Status = status
		task.ResultContext = resultContext
		task.ErrorLogs = errorLogs
	}
	phase.Tasks[idx] = task
	return task.Status, err
}

func (s *MemoryStore) CreateTask(ctx context.Context, params CreateTaskParams) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	phase, ok := s.phases[params.PhaseID]
	if !ok {
		return model.Task{}, &PhaseNotFoundError{PhaseID: params.PhaseID}
	}
	task := model.Task{
		ID:           uuid.New(),
		Title:        params.Title,
		Description:  params.Description,
		Status:       params.Status,
		Assignee:     params.Assignee,
		Dependencies: params.Dependencies,
	}
	phase.Tasks = append(phase.Tasks, task)
	return task, nil
}

// ReconcileInProgressTasks resets every IN_PROGRESS task across every
// phase back to TODO, recovering from a prior crash.
func (s *MemoryStore) ReconcileInProgressTasks(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, phase := range s.phases {
		for i, task := range phase.Tasks {
			if task.Status == model.TaskInProgress {
				task.Status = model.TaskTODO
				phase.Tasks[i] = task
				count++
			}
		}
	}
	return count, nil
}

func (s *MemoryStore) RecordRecoveryAttempt(ctx context.Context, params RecordRecoveryAttemptParams) error {
	s.mu.Lock()
	_, ok := s.phases[params.PhaseID]
	s.mu.Unlock()
	if !ok {
		return &PhaseNotFoundError{PhaseID: params.PhaseID}
	}
	// MemoryStore keeps no durable recovery-attempt history of its own;
	// a real store persists params alongside the phase/task it targets.
	return nil
}

func (s *MemoryStore) RunInternalWork(ctx context.Context, params RunInternalWorkParams) (RunInternalWorkResult, error) {
	if s.RunWork == nil {
		return RunInternalWorkResult{}, fmt.Errorf("no work runner configured")
	}
	return s.RunWork(ctx, params)
}
