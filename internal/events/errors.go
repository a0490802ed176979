package events

// The error taxonomy the HTTP layer maps onto status codes. Every failure
// from the repository or service is one of these or a wrapped storage error.

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

// PreconditionError reports an operation attempted before the state it
// requires exists, e.g. attendance without a registration.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string { return e.Msg }

// ConflictError reports a duplicate that is rejected rather than merged,
// e.g. a second feedback submission for the same event and student.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }
