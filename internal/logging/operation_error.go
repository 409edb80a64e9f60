package logging

import "fmt"

// OperationError annotates an error with the operation that produced it and the
// interaction it belongs to.
type OperationError struct {
	Operation     string
	InteractionID string
	Err           error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.InteractionID != "" {
		return fmt.Sprintf("%s (interaction_id=%s): %v", e.Operation, e.InteractionID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps err with the operation and interaction it occurred in.
// A nil err yields nil so callers can wrap unconditionally.
func NewOperationError(operation, interactionID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, InteractionID: interactionID, Err: err}
}
