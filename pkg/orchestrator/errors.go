package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when an invocation is already in flight
	ErrBusy = errors.New("orchestrator busy")

	// ErrCancelled is returned when retrieval was cancelled; nothing was committed
	ErrCancelled = errors.New("operation cancelled")

	// ErrInvalidRange is returned for an out of bounds or inverted row range
	ErrInvalidRange = errors.New("invalid row range")

	// ErrStructure marks an item list the orchestrator refuses to sort
	ErrStructure = errors.New("structural mismatch")

	// ErrNothingToUndo is returned when no committed order can be restored
	ErrNothingToUndo = errors.New("nothing to undo")
)

// StructureError describes the offending record of a structural mismatch.
type StructureError struct {
	ItemID   string
	Position int
	Reason   string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("item %q at position %d: %s", e.ItemID, e.Position, e.Reason)
}

func (e *StructureError) Unwrap() error { return ErrStructure }
