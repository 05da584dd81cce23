package domain

import (
	"fmt"
	"strings"
)

// SchemaError reports required input columns that are absent. It is fatal:
// the pipeline must not guess at a source's layout.
type SchemaError struct {
	Source  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Source, strings.Join(e.Missing, ", "))
}

// InvariantError reports structural guarantees found broken after the stage
// that was supposed to establish them. It is fatal: continuing would silently
// propagate corrupt results.
type InvariantError struct {
	Stage      string
	Violations []string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %d invariant violation(s): %s",
		e.Stage, len(e.Violations), strings.Join(e.Violations, "; "))
}

// NewInvariantError returns nil when there are no violations, so callers can
// write `return domain.NewInvariantError(stage, violations)` directly.
func NewInvariantError(stage string, violations []string) error {
	if len(violations) == 0 {
		return nil
	}
	return &InvariantError{Stage: stage, Violations: violations}
}
