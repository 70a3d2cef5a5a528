package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestRegistry_Dispatch_RunsInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	var order []string

	mustRegister(t, r, BeforeTaskStart, "a", func(ctx context.Context, p json.RawMessage) error {
		order = append(order, "a")
		return nil
	})
	mustRegister(t, r, BeforeTaskStart, "b", func(ctx context.Context, p json.RawMessage) error {
		order = append(order, "b")
		return nil
	})

	if err := r.Dispatch(context.Background(), BeforeTaskStart, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected [a b], got %v", order)
	}
}

func TestRegistry_Register_DuplicateIDFailsFast(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, BeforeTaskStart, "a", func(ctx context.Context, p json.RawMessage) error { return nil })

	err := r.Register(BeforeTaskStart, "a", nil, 0, func(ctx context.Context, p json.RawMessage) error { return nil })
	if err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if _, ok := err.(*DuplicateRegistrationError); !ok {
		t.Fatalf("expected *DuplicateRegistrationError, got %T", err)
	}
}

func TestRegistry_Dispatch_FirstFailureAbortsRemaining(t *testing.T) {
	r := NewRegistry()
	var ran []string

	mustRegister(t, r, AfterTaskDone, "first", func(ctx context.Context, p json.RawMessage) error {
		ran = append(ran, "first")
		return errors.New("boom")
	})
	mustRegister(t, r, AfterTaskDone, "second", func(ctx context.Context, p json.RawMessage) error {
		ran = append(ran, "second")
		return nil
	})

	err := r.Dispatch(context.Background(), AfterTaskDone, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	hookErr, ok := err.(*LifecycleHookExecutionError)
	if !ok {
		t.Fatalf("expected *LifecycleHookExecutionError, got %T", err)
	}
	if hookErr.RegistrationID != "first" {
		t.Fatalf("expected failure attributed to 'first', got %q", hookErr.RegistrationID)
	}
	if len(ran) != 1 {
		t.Fatalf("expected only first handler to run, got %v", ran)
	}
}

func TestRegistry_Dispatch_TimeoutAbortsHandler(t *testing.T) {
	r := NewRegistry()
	err := r.Register(OnRecovery, "slow", nil, 5*time.Millisecond, func(ctx context.Context, p json.RawMessage) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dispatchErr := r.Dispatch(context.Background(), OnRecovery, nil)
	if dispatchErr == nil {
		t.Fatal("expected timeout error")
	}
	hookErr, ok := dispatchErr.(*LifecycleHookExecutionError)
	if !ok {
		t.Fatalf("expected *LifecycleHookExecutionError, got %T", dispatchErr)
	}
	if hookErr.RegistrationID != "slow" {
		t.Fatalf("unexpected registration id: %q", hookErr.RegistrationID)
	}
}

func TestRegistry_Dispatch_SchemaValidationFailureAbortsBeforeHandlerRuns(t *testing.T) {
	r := NewRegistry()
	called := false
	schema := SchemaFunc(func(payload json.RawMessage) error { return errors.New("invalid shape") })

	err := r.Register(OnCIFailed, "strict", schema, 0, func(ctx context.Context, p json.RawMessage) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dispatchErr := r.Dispatch(context.Background(), OnCIFailed, json.RawMessage(`{}`))
	if dispatchErr == nil {
		t.Fatal("expected validation error")
	}
	if called {
		t.Fatal("expected handler not to run after validation failure")
	}
}

func TestRegistry_Dispatch_PanicNormalizedToError(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, BeforeTaskStart, "panics", func(ctx context.Context, p json.RawMessage) error {
		panic("unexpected")
	})

	err := r.Dispatch(context.Background(), BeforeTaskStart, nil)
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

func mustRegister(t *testing.T, r *Registry, name Name, id string, h Handler) {
	t.Helper()
	if err := r.Register(name, id, nil, 0, h); err != nil {
		t.Fatalf("unexpected error registering %s: %v", id, err)
	}
}
