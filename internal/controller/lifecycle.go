package controller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ixado-dev/ixado/internal/events"
	"github.com/ixado-dev/ixado/internal/hooks"
)

// fireHook dispatches a lifecycle hook with a JSON-marshaled payload. A
// handler failure is logged, never fatal: hooks observe the state machine,
// they don't gate it.
func (r *PhaseRunner) fireHook(ctx context.Context, name hooks.Name, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		r.logf("lifecycle hook %s: marshal payload: %v", name, err)
		return
	}
	if err := r.Hooks.Dispatch(ctx, name, raw); err != nil {
		r.logf("lifecycle hook %s: %v", name, err)
	}
}

// publishEvent emits a runtime event for the given phase on the bus.
func (r *PhaseRunner) publishEvent(phaseID uuid.UUID, family events.Family, level events.Level, summary, content string) {
	r.Events.Publish(events.Event{
		Timestamp: time.Now(),
		PhaseID:   phaseID.String(),
		Family:    family,
		Level:     level,
		Summary:   summary,
		Content:   content,
	})
}
