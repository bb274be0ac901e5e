package contracts

import "errors"

// Per-unit failure taxonomy. These never abort a run: the coordinator counts
// them in the RunSummary and moves on. Only startup connectivity failures
// (config/database/model artifact) escalate to a non-zero process exit.
var (
	// ErrInsufficientHistory means the item has fewer observations than the
	// engine minimum; the unit is skipped.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrModelNotFound means the artifact carries no model for the item.
	ErrModelNotFound = errors.New("no model registered for item")
)
