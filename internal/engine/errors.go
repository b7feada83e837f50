package engine

import (
	"errors"
	"fmt"

	"calnorm/internal/prompt"
)

var (
	// ErrAborted ends a run without output and without persisting rules.
	ErrAborted = errors.New("run aborted")

	// ErrMissingRule means a transform met a key the scan/resolve stages
	// should have covered. It is a bug in the pipeline, never user error.
	ErrMissingRule = errors.New("missing rule")
)

// MissingRuleError identifies the uncovered key.
type MissingRuleError struct {
	Kind prompt.Kind
	Key  string
}

func (e *MissingRuleError) Error() string {
	return fmt.Sprintf("missing %s rule for %q", e.Kind, e.Key)
}

func (e *MissingRuleError) Unwrap() error {
	return ErrMissingRule
}
