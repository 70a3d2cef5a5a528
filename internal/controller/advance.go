package controller

import (
	"context"
	"time"
)

// AdvanceOutcome is the resolution of a single advance-gate wait.
type AdvanceOutcome string

const (
	AdvanceNext AdvanceOutcome = "NEXT"
	AdvanceStop AdvanceOutcome = "STOP"
)

// AdvanceGate is awaited between task iterations (iterations > 0). STOP
// short-circuits the execution loop without treating it as a failure.
type AdvanceGate interface {
	Await(ctx context.Context) (AdvanceOutcome, error)
}

// NopAdvanceGate always resolves NEXT immediately; it is the default for
// fully-autonomous runs with no interactive or countdown gating.
type NopAdvanceGate struct{}

func (NopAdvanceGate) Await(ctx context.Context) (AdvanceOutcome, error) {
	return AdvanceNext, nil
}

// AutoAdvanceGate counts down CountdownSeconds in one-second ticks,
// checking Stopped between ticks, and resolves NEXT once the countdown
// completes. A zero countdown resolves immediately without sleeping.
type AutoAdvanceGate struct {
	CountdownSeconds int
	Stopped          func() bool
}

func (g AutoAdvanceGate) Await(ctx context.Context) (AdvanceOutcome, error) {
	if g.stopped() {
		return AdvanceStop, nil
	}
	if g.CountdownSeconds <= 0 {
		return AdvanceNext, nil
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for remaining := g.CountdownSeconds; remaining > 0; remaining-- {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			if g.stopped() {
				return AdvanceStop, nil
			}
		}
	}
	return AdvanceNext, nil
}

func (g AutoAdvanceGate) stopped() bool {
	return g.Stopped != nil && g.Stopped()
}
