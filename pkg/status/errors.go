package status

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when attempting an invalid state transition
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidStatus is returned when an unknown state value is encountered
	ErrInvalidStatus = errors.New("invalid status value")
)

// Parse validates a raw state value
func Parse(raw string) (Orchestrator, error) {
	for _, s := range AllOrchestratorStates() {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}
