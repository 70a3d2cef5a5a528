// Package events generalizes the unified event abstraction originally
// scoped to agent CLI output into a runtime lifecycle event bus: typed
// events across four families, fanned out to in-process subscribers with
// level-based filtering and duplicate suppression.
package events

import (
	"time"
)

// Family identifies the lifecycle area an Event belongs to.
type Family string

const (
	FamilyTaskLifecycle  Family = "task-lifecycle"
	FamilyTesterRecovery Family = "tester-recovery"
	FamilyCIPRLifecycle  Family = "ci-pr-lifecycle"
	FamilyTerminalOutcome Family = "terminal-outcome"
)

// Level classifies how significant an event is, for subscriber filtering.
type Level string

const (
	LevelAll       Level = "all"
	LevelImportant Level = "important"
	LevelCritical  Level = "critical"
)

// levelRank orders levels from least to most significant, so a
// subscriber at LevelImportant also receives LevelCritical events.
var levelRank = map[Level]int{
	LevelAll:       0,
	LevelImportant: 1,
	LevelCritical:  2,
}

// Event is a unified lifecycle event, normalized across every producer in
// the engine (scheduler, adapters, tester, recovery, CI integration).
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	PhaseID   string    `json:"phase_id"`
	Family    Family    `json:"family"`
	Level     Level     `json:"level"`
	Summary   string    `json:"summary,omitempty"`
	Content   string    `json:"content,omitempty"`

	// DedupKey, when non-empty, identifies events that should be
	// suppressed as duplicates per subscriber. Defaults to Family+Summary
	// when left empty.
	DedupKey string `json:"dedup_key,omitempty"`
}

func (e Event) dedupKey() string {
	if e.DedupKey != "" {
		return e.DedupKey
	}
	return string(e.Family) + "|" + e.Summary
}

// ValidFamilies returns all defined event families.
func ValidFamilies() []Family {
	return []Family{FamilyTaskLifecycle, FamilyTesterRecovery, FamilyCIPRLifecycle, FamilyTerminalOutcome}
}

// IsValidFamily checks whether s names a defined family.
func IsValidFamily(s string) bool {
	for _, f := range ValidFamilies() {
		if string(f) == s {
			return true
		}
	}
	return false
}
