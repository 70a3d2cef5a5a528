// Package hooks provides deterministic, ordered in-process dispatch of
// lifecycle hook handlers, with strict payload validation, per-handler
// timeout enforcement, and error isolation.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Name identifies a lifecycle hook point.
type Name string

const (
	BeforeTaskStart Name = "before_task_start"
	AfterTaskDone   Name = "after_task_done"
	OnRecovery      Name = "on_recovery"
	OnCIFailed      Name = "on_ci_failed"
)

// DefaultTimeout is used when a handler is registered without an explicit
// timeout.
const DefaultTimeout = 10 * time.Second

// Handler is a lifecycle hook callback. It receives the already
// schema-validated payload.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Schema validates a raw payload before it reaches a handler.
type Schema interface {
	Validate(payload json.RawMessage) error
}

// SchemaFunc adapts a plain function to the Schema interface.
type SchemaFunc func(payload json.RawMessage) error

func (f SchemaFunc) Validate(payload json.RawMessage) error { return f(payload) }

// LifecycleHookExecutionError is raised when a handler fails or times out,
// and carries enough context to locate and reproduce the failure.
type LifecycleHookExecutionError struct {
	HookName       Name
	RegistrationID string
	TimeoutMs      int64
	DurationMs     int64
	Cause          error
}

func (e *LifecycleHookExecutionError) Error() string {
	return fmt.Sprintf("lifecycle hook %s/%s failed after %dms (timeout %dms): %v",
		e.HookName, e.RegistrationID, e.DurationMs, e.TimeoutMs, e.Cause)
}

func (e *LifecycleHookExecutionError) Unwrap() error { return e.Cause }

// DuplicateRegistrationError is returned by Register when the ID is
// already in use for the given hook name.
type DuplicateRegistrationError struct {
	HookName       Name
	RegistrationID string
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("registration id %q already in use for hook %s", e.RegistrationID, e.HookName)
}

type registration struct {
	id      string
	handler Handler
	schema  Schema
	timeout time.Duration
}

// Registry dispatches lifecycle hooks to handlers in deterministic
// registration order, isolating each handler's failure or timeout.
type Registry struct {
	handlers map[Name][]registration
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Name][]registration)}
}

// Register adds a handler under registrationID for hookName. A zero
// timeout defaults to DefaultTimeout. Registering a duplicate ID for the
// same hook name fails fast.
func (r *Registry) Register(hookName Name, registrationID string, schema Schema, timeout time.Duration, handler Handler) error {
	for _, reg := range r.handlers[hookName] {
		if reg.id == registrationID {
			return &DuplicateRegistrationError{HookName: hookName, RegistrationID: registrationID}
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r.handlers[hookName] = append(r.handlers[hookName], registration{
		id: registrationID, handler: handler, schema: schema, timeout: timeout,
	})
	return nil
}

// Dispatch runs every handler registered for hookName, in registration
// order, sequentially. The payload is schema-validated before each
// handler call. The first failing or timed-out handler aborts all
// remaining handlers and returns a *LifecycleHookExecutionError.
func (r *Registry) Dispatch(ctx context.Context, hookName Name, payload json.RawMessage) error {
	for _, reg := range r.handlers[hookName] {
		if reg.schema != nil {
			if err := reg.schema.Validate(payload); err != nil {
				return &LifecycleHookExecutionError{
					HookName: hookName, RegistrationID: reg.id,
					TimeoutMs: reg.timeout.Milliseconds(), Cause: fmt.Errorf("payload validation: %w", err),
				}
			}
		}

		if err := r.runOne(ctx, reg, hookName, payload); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) runOne(ctx context.Context, reg registration, hookName Name, payload json.RawMessage) error {
	hookCtx, cancel := context.WithTimeout(ctx, reg.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- safeInvoke(reg.handler, hookCtx, payload)
	}()

	select {
	case err := <-done:
		if err != nil {
			return &LifecycleHookExecutionError{
				HookName: hookName, RegistrationID: reg.id,
				TimeoutMs: reg.timeout.Milliseconds(), DurationMs: time.Since(start).Milliseconds(), Cause: err,
			}
		}
		return nil
	case <-hookCtx.Done():
		return &LifecycleHookExecutionError{
			HookName: hookName, RegistrationID: reg.id,
			TimeoutMs: reg.timeout.Milliseconds(), DurationMs: time.Since(start).Milliseconds(), Cause: hookCtx.Err(),
		}
	}
}

// safeInvoke normalizes a handler panic into an error, so a non-Error
// throw still surfaces as a LifecycleHookExecutionError cause.
func safeInvoke(handler Handler, ctx context.Context, payload json.RawMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return handler(ctx, payload)
}
