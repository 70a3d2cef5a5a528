package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestLock_Acquire_CreatesFileAndBlocksSecondLiveOwner(t *testing.T) {
	root := t.TempDir()

	first := &Lock{Root: root, ProjectName: "p", Owner: "runA", IsProcessLive: func(pid int) bool { return true }}
	firstRecord, err := first.Acquire()
	if err != nil {
		t.Fatalf("unexpected error acquiring first lock: %v", err)
	}

	second := &Lock{Root: root, ProjectName: "p", Owner: "runB", IsProcessLive: func(pid int) bool { return true }}
	_, err = second.Acquire()
	if err == nil {
		t.Fatal("expected AlreadyRunningError")
	}
	alreadyRunning, ok := err.(*AlreadyRunningError)
	if !ok {
		t.Fatalf("expected *AlreadyRunningError, got %T", err)
	}

	msg := alreadyRunning.Error()
	if !strings.Contains(msg, strconv.Itoa(firstRecord.PID)) {
		t.Fatalf("expected message to contain pid %d, got %q", firstRecord.PID, msg)
	}
	if !strings.Contains(msg, string(firstRecord.Owner)) {
		t.Fatalf("expected message to contain owner %q, got %q", firstRecord.Owner, msg)
	}
	if !strings.Contains(msg, firstRecord.ProjectName) {
		t.Fatalf("expected message to contain projectName %q, got %q", firstRecord.ProjectName, msg)
	}
	if !strings.Contains(msg, firstRecord.AcquiredAt) {
		t.Fatalf("expected message to contain acquiredAt %q, got %q", firstRecord.AcquiredAt, msg)
	}
}

func TestLock_Acquire_RemovesStaleDeadOwnerLock(t *testing.T) {
	root := t.TempDir()

	dead := &Lock{Root: root, ProjectName: "p", Owner: "runA", IsProcessLive: func(pid int) bool { return false }}
	if _, err := dead.Acquire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fresh := &Lock{Root: root, ProjectName: "p", Owner: "runB", IsProcessLive: func(pid int) bool { return false }}
	record, err := fresh.Acquire()
	if err != nil {
		t.Fatalf("expected stale lock to be recovered, got error: %v", err)
	}
	if record.Owner != "runB" {
		t.Fatalf("expected new owner to hold lock, got %q", record.Owner)
	}
}

func TestLock_Release_OnlyRemovesMatchingTriple(t *testing.T) {
	root := t.TempDir()

	owner := &Lock{Root: root, ProjectName: "p", Owner: "runA"}
	if _, err := owner.Acquire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other := &Lock{Root: root, ProjectName: "p", Owner: "runB"}
	if err := other.Release(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(LockPath(root)); err != nil {
		t.Fatal("expected lock file to remain after mismatched release")
	}

	if err := owner.Release(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(LockPath(root)); !os.IsNotExist(err) {
		t.Fatal("expected lock file removed after matching release")
	}
}

func TestLock_Release_NoOpWhenFileAbsent(t *testing.T) {
	root := t.TempDir()
	l := &Lock{Root: root, ProjectName: "p", Owner: "runA"}
	if err := l.Release(); err != nil {
		t.Fatalf("expected no error releasing absent lock, got %v", err)
	}
}

func TestSignedLockCodec_RoundTrip(t *testing.T) {
	root := t.TempDir()
	codec := SignedLockCodec{Secret: []byte("test-secret")}

	l := &Lock{Root: root, ProjectName: "p", Owner: "runA", Codec: codec, IsProcessLive: func(pid int) bool { return true }}
	record, err := l.Acquire()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(LockPath(root))
	if err != nil {
		t.Fatalf("unexpected error reading lock file: %v", err)
	}

	decoded, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("unexpected error decoding signed lock: %v", err)
	}
	if decoded.Owner != record.Owner || decoded.ProjectName != record.ProjectName {
		t.Fatalf("decoded record mismatch: %+v vs %+v", decoded, record)
	}
}

func TestSignedLockCodec_RejectsTamperedFile(t *testing.T) {
	root := t.TempDir()
	codec := SignedLockCodec{Secret: []byte("test-secret")}

	l := &Lock{Root: root, ProjectName: "p", Owner: "runA", Codec: codec}
	if _, err := l.Acquire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.WriteFile(LockPath(root), []byte("not-a-valid-jwt"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	attacker := SignedLockCodec{Secret: []byte("wrong-secret")}
	_, err := attacker.Decode([]byte("not-a-valid-jwt"))
	if err == nil {
		t.Fatal("expected decode error for tampered/invalid token")
	}

	_, statErr := os.Stat(filepath.Join(root, ".ixado"))
	if statErr != nil {
		t.Fatalf("expected lock directory to exist: %v", statErr)
	}
}
