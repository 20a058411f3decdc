package appointments

// ValidationError reports malformed input or a slot that is not in the future.
type ValidationError struct {
	field string
	msg   string
}

func (e *ValidationError) Error() string {
	return e.msg
}

// Field names the rejected input field.
func (e *ValidationError) Field() string {
	return e.field
}

func validationError(field, msg string) error {
	return &ValidationError{field: field, msg: msg}
}

// ForbiddenError reports a role mismatch, a non-owner cancellation or an
// elapsed cancellation window.
type ForbiddenError struct {
	msg string
}

func (e *ForbiddenError) Error() string {
	return e.msg
}

func forbiddenError(msg string) error {
	return &ForbiddenError{msg: msg}
}

// ConflictError reports a booked slot or an appointment that is already
// cancelled.
type ConflictError struct {
	msg string
}

func (e *ConflictError) Error() string {
	return e.msg
}

func conflictError(msg string) error {
	return &ConflictError{msg: msg}
}

type NotFoundError struct {
	msg string
}

func (e *NotFoundError) Error() string {
	return e.msg
}

func notFoundError(msg string) error {
	return &NotFoundError{msg: msg}
}

const (
	msgOnlyClients      = "only clients may book"
	msgNotProvider      = "target is not a bookable provider"
	msgPastSlot         = "cannot book a past slot"
	msgSlotUnavailable  = "slot unavailable"
	msgNotOwner         = "not the owner of this booking"
	msgAlreadyCancelled = "already cancelled"
	msgWindowElapsed    = "cancellation window elapsed"
	msgNotFound         = "appointment not found"
)
