// Package deeplink resolves a deep-link target (segment id and/or timestamp)
// to a row index in the loaded transcript, fetching more data when needed.
package deeplink

import "fmt"

// State is the resolver's position in its state machine.
type State int

const (
	// StateIdle - No target, or waiting for the first evaluation.
	StateIdle State = iota
	// StateSearching - Scanning loaded segments.
	StateSearching
	// StateSequentialFetch - A bounded next-page request is in flight.
	StateSequentialFetch
	// StateSeeking - The one-shot positional seek is in flight.
	StateSeeking
	// StateResolved - Target handled (with or without an index). Terminal.
	StateResolved
	// StateAborted - Panel collapsed during the highlight. Terminal.
	StateAborted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSearching:
		return "SEARCHING"
	case StateSequentialFetch:
		return "SEQUENTIAL_FETCH"
	case StateSeeking:
		return "SEEKING"
	case StateResolved:
		return "RESOLVED"
	case StateAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true once a target identity can no longer be resolved.
//
// State transitions:
//
//	IDLE → SEARCHING ─┬─→ RESOLVED ──→ ABORTED
//	                  │
//	                  ├── SEQUENTIAL_FETCH ──→ SEARCHING   (at most cap times)
//	                  │
//	                  └── SEEKING ──→ SEARCHING            (at most once)
func (s State) IsTerminal() bool {
	return s == StateResolved || s == StateAborted
}

// Strategy records how a target was matched.
type Strategy string

const (
	StrategyExactID          Strategy = "exact_id"
	StrategyNearestTimestamp Strategy = "nearest_timestamp"
	StrategyNone             Strategy = "none"
)
