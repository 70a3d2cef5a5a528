// Package lock implements the single-owner, project-scoped execution
// lock: a file created with exclusive-create semantics, holding a
// model.LockRecord (tamper-evident when encoded with SignedLockCodec),
// with PID-liveness-based stale-lock recovery.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ixado-dev/ixado/internal/model"
)

// LockPath returns the per-project lock file path given a project root.
func LockPath(root string) string {
	return filepath.Join(root, ".ixado", "execution-run.lock.json")
}

// AlreadyRunningError is returned when a live process already holds the
// lock for this project.
type AlreadyRunningError struct {
	ProjectName string
	PID         int
	Owner       model.LockOwner
	AcquiredAt  string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf(
		"already running for project %s (pid %d, owner %s, acquired at %s)",
		e.ProjectName, e.PID, e.Owner, e.AcquiredAt,
	)
}

// Codec encodes/decodes a model.LockRecord to/from its on-disk
// representation. SignedLockCodec (codec.go) is the tamper-evident
// implementation; PlainCodec is the unsigned plain-JSON codec, used when
// no signing key is configured (and by Lock when Codec is nil).
type Codec interface {
	Encode(record model.LockRecord) ([]byte, error)
	Decode(data []byte) (model.LockRecord, error)
}

// PlainCodec round-trips a model.LockRecord as unsigned JSON.
type PlainCodec struct{}

func (PlainCodec) Encode(record model.LockRecord) ([]byte, error) { return json.Marshal(record) }
func (PlainCodec) Decode(data []byte) (model.LockRecord, error) {
	var r model.LockRecord
	err := json.Unmarshal(data, &r)
	return r, err
}

// Lock manages acquisition/release of the execution lock for one project.
type Lock struct {
	Root          string
	ProjectName   string
	Owner         model.LockOwner
	Codec         Codec
	IsProcessLive func(pid int) bool // overridable for tests; default probes the OS
}

// Acquire creates the lock file exclusively. If a live-process record
// already occupies it, Acquire fails with AlreadyRunningError. If the
// record's process is dead, the stale file is removed and acquisition is
// retried exactly once.
func (l *Lock) Acquire() (model.LockRecord, error) {
	record := model.LockRecord{
		PID:         os.Getpid(),
		Owner:       l.Owner,
		ProjectName: l.ProjectName,
		AcquiredAt:  time.Now().UTC().Format(time.RFC3339),
	}

	ok, err := l.tryCreate(record)
	if err != nil {
		return model.LockRecord{}, err
	}
	if ok {
		return record, nil
	}

	existing, err := l.readExisting()
	if err != nil {
		return model.LockRecord{}, err
	}
	if l.isLive(existing.PID) {
		return model.LockRecord{}, &AlreadyRunningError{
			ProjectName: existing.ProjectName,
			PID:         existing.PID,
			Owner:       existing.Owner,
			AcquiredAt:  existing.AcquiredAt,
		}
	}

	if err := os.Remove(LockPath(l.Root)); err != nil && !os.IsNotExist(err) {
		return model.LockRecord{}, fmt.Errorf("remove stale lock: %w", err)
	}

	ok, err = l.tryCreate(record)
	if err != nil {
		return model.LockRecord{}, err
	}
	if !ok {
		return model.LockRecord{}, fmt.Errorf("lock acquisition raced after stale-lock removal")
	}
	return record, nil
}

// Release deletes the lock file only if it still matches this process's
// {pid, owner, projectName} triple, so a newer holder's lock is never
// accidentally removed.
func (l *Lock) Release() error {
	existing, err := l.readExisting()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if existing.PID != os.Getpid() || existing.Owner != l.Owner || existing.ProjectName != l.ProjectName {
		return nil
	}

	if err := os.Remove(LockPath(l.Root)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func (l *Lock) tryCreate(record model.LockRecord) (bool, error) {
	path := LockPath(l.Root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}

	data, err := l.codec().Encode(record)
	if err != nil {
		return false, fmt.Errorf("encode lock record: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return false, fmt.Errorf("write lock file: %w", err)
	}
	return true, nil
}

func (l *Lock) readExisting() (model.LockRecord, error) {
	data, err := os.ReadFile(LockPath(l.Root))
	if err != nil {
		return model.LockRecord{}, err
	}
	return l.codec().Decode(data)
}

func (l *Lock) codec() Codec {
	if l.Codec != nil {
		return l.Codec
	}
	return PlainCodec{}
}

func (l *Lock) isLive(pid int) bool {
	if l.IsProcessLive != nil {
		return l.IsProcessLive(pid)
	}
	return defaultIsProcessLive(pid)
}

// defaultIsProcessLive probes OS process liveness by sending signal 0: a
// permission-denied error still means the process exists (treated as
// live); "no such process" means it's dead.
func defaultIsProcessLive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if errors.Is(err, os.ErrPermission) {
		return true
	}
	return false
}
