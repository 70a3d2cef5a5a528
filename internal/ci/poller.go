package ci

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ixado-dev/ixado/internal/model"
	"github.com/ixado-dev/ixado/internal/process"
)

// TransitionKind classifies a CiPollTransition event.
type TransitionKind string

const (
	TransitionFirstObservation  TransitionKind = "first-observation"
	TransitionRerunDetected     TransitionKind = "rerun-detected"
	TransitionTerminalConfirmed TransitionKind = "terminal-confirmed"
)

// Transition is emitted whenever the overall CI state changes (or is
// reconfirmed at the terminal boundary).
type Transition struct {
	Kind    TransitionKind
	Summary model.CiStatusSummary
}

// Poller repeatedly queries the hosting CLI's check-status rollup, wrapped
// in a circuit breaker so a host-CLI outage fails fast instead of hanging
// the phase loop on every poll tick.
type Poller struct {
	Runner                process.Runner
	IntervalMs            int
	TerminalConfirmations int // default 2 when zero
	OnTransition          func(Transition)

	breaker *gobreaker.CircuitBreaker[string]
}

// Poll blocks until the overall CI state has been observed terminal
// TerminalConfirmations times consecutively, or ctx is cancelled.
func (p *Poller) Poll(ctx context.Context, cwd, prURL string) (model.CiStatusSummary, error) {
	confirmationsNeeded := p.TerminalConfirmations
	if confirmationsNeeded <= 0 {
		confirmationsNeeded = 2
	}
	if p.breaker == nil {
		p.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        "ci-status-poll",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
		})
	}

	var lastOverall model.CheckState
	var confirmations int
	first := true

	for {
		summary, err := p.queryOnce(ctx, cwd, prURL)
		if err != nil {
			return model.CiStatusSummary{}, fmt.Errorf("poll ci status: %w", err)
		}

		switch {
		case first:
			p.emit(Transition{Kind: TransitionFirstObservation, Summary: summary})
			first = false
		case summary.Overall != lastOverall:
			p.emit(Transition{Kind: TransitionRerunDetected, Summary: summary})
		}

		if summary.Overall == lastOverall && model.TerminalCheckStates[summary.Overall] {
			confirmations++
		} else {
			confirmations = 1
		}
		lastOverall = summary.Overall

		if model.TerminalCheckStates[summary.Overall] && confirmations >= confirmationsNeeded {
			p.emit(Transition{Kind: TransitionTerminalConfirmed, Summary: summary})
			return summary, nil
		}

		select {
		case <-ctx.Done():
			return model.CiStatusSummary{}, ctx.Err()
		case <-time.After(time.Duration(p.IntervalMs) * time.Millisecond):
		}
	}
}

func (p *Poller) queryOnce(ctx context.Context, cwd, prURL string) (model.CiStatusSummary, error) {
	raw, err := p.breaker.Execute(func() (string, error) {
		result, err := p.Runner.Run(ctx, process.Request{
			Command: "gh",
			Args:    []string{"pr", "checks", prURL, "--json", "name,state,link"},
			Cwd:     cwd,
		})
		if err != nil {
			return "", err
		}
		return result.Stdout, nil
	})
	if err != nil {
		return model.CiStatusSummary{}, err
	}

	return parseCheckRollup(raw)
}

type ghCheck struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Link  string `json:"link"`
}

func parseCheckRollup(raw string) (model.CiStatusSummary, error) {
	var checks []ghCheck
	if err := json.Unmarshal([]byte(raw), &checks); err != nil {
		return model.CiStatusSummary{}, fmt.Errorf("parse check rollup: %w", err)
	}

	summary := model.CiStatusSummary{Overall: model.CheckSuccess}
	for _, c := range checks {
		state := normalizeCheckState(c.State)
		summary.Checks = append(summary.Checks, model.CiCheck{
			Name: c.Name, State: state, DetailsURL: c.Link,
		})
		summary.Overall = combineOverall(summary.Overall, state)
	}
	return summary, nil
}

// recognizedCheckStates is the closed set of states combineOverall's rank
// table knows how to weigh; anything else (an unrecognized gh check state,
// or an empty/missing one) is treated as still in flight rather than
// silently ranking alongside SUCCESS.
var recognizedCheckStates = map[model.CheckState]bool{
	model.CheckSuccess:   true,
	model.CheckFailure:   true,
	model.CheckCancelled: true,
	model.CheckPending:   true,
	model.CheckUnknown:   true,
}

func normalizeCheckState(raw string) model.CheckState {
	state := model.CheckState(raw)
	if !recognizedCheckStates[state] {
		return model.CheckPending
	}
	return state
}

// combineOverall folds one more check's state into a running overall
// state: any FAILURE/CANCELLED/UNKNOWN dominates; PENDING dominates
// SUCCESS; SUCCESS is the identity.
func combineOverall(overall, next model.CheckState) model.CheckState {
	rank := map[model.CheckState]int{
		model.CheckSuccess:   0,
		model.CheckPending:   1,
		model.CheckUnknown:   2,
		model.CheckCancelled: 2,
		model.CheckFailure:   2,
	}
	if rank[next] > rank[overall] {
		return next
	}
	return overall
}

func (p *Poller) emit(t Transition) {
	if p.OnTransition != nil {
		p.OnTransition(t)
	}
}
