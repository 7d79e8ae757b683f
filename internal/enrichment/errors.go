package enrichment

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyQuestion  = errors.New("question is required")
	ErrEmptyOutput    = errors.New("model returned empty output")
	ErrQueueFull      = errors.New("enrichment queue is full")
	ErrExecutorClosed = errors.New("enrichment executor is shut down")
)

// EnrichmentError reports a failed model call for one stage.
// The field it was meant to fill stays unset.
type EnrichmentError struct {
	Kind string
	Err  error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrichment %s: %v", e.Kind, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }
