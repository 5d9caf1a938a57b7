package core

import "errors"

// Error taxonomy. Callers branch with errors.Is; everything else is wrapped
// with fmt.Errorf("...: %w", err) as usual.
var (
	// ErrValidation marks a caller mistake: bad role, empty content,
	// page size out of range. Maps to a 4xx at the HTTP edge.
	ErrValidation = errors.New("validation error")

	// ErrInvalidCursor marks an undecodable pagination token. It is a
	// validation error, so errors.Is(err, ErrValidation) also holds.
	ErrInvalidCursor = &invalidCursorError{}

	// ErrPersistence marks a store failure. Not retried internally.
	ErrPersistence = errors.New("persistence error")

	// ErrDelivery marks a confirmed-mode publish that was not acknowledged
	// in time. Callers with a fallback path switch to it on this error.
	ErrDelivery = errors.New("delivery error")

	// ErrUpstream marks a collaborator (LLM, search, identity) failure.
	ErrUpstream = errors.New("upstream error")
)

type invalidCursorError struct{}

func (e *invalidCursorError) Error() string { return "invalid cursor" }

func (e *invalidCursorError) Is(target error) bool {
	return target == ErrValidation
}
