package ledger

import (
	"errors"
	"fmt"
)

// Failure kinds. Every *Error matches exactly one of these with errors.Is.
var (
	// ErrValidation marks malformed or missing input the caller can correct.
	ErrValidation = errors.New("validation error")

	// ErrConflict marks a business-rule violation such as spending more than
	// the balance holds.
	ErrConflict = errors.New("conflict")

	// ErrNotFound marks a reference to an entity that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStorage marks a transaction the store aborted; it may succeed on retry.
	ErrStorage = errors.New("storage error")
)

// Error is a coded ledger failure. errors.Is matches it against its kind and
// against any *Error with the same code, so wrapped or re-described errors
// still compare equal to the package-level values below.
type Error struct {
	Kind    error
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Code == e.Code
	}
	return target == e.Kind
}

// with returns a copy of e carrying a more specific message.
func (e *Error) with(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrInvalidAmount   = &Error{Kind: ErrValidation, Code: "invalid_amount", Message: "amount must be greater than zero"}
	ErrInvalidTask     = &Error{Kind: ErrValidation, Code: "invalid_task", Message: "name and positive points are required"}
	ErrInvalidReward   = &Error{Kind: ErrValidation, Code: "invalid_reward", Message: "name and positive points cost are required"}
	ErrDuplicateName   = &Error{Kind: ErrValidation, Code: "duplicate_name", Message: "name is already in use"}
	ErrInvalidDateSpan = &Error{Kind: ErrValidation, Code: "invalid_date_range", Message: "end date is before start date"}

	ErrInsufficientFunds   = &Error{Kind: ErrConflict, Code: "insufficient_funds", Message: "withdrawal exceeds available funds"}
	ErrInsufficientPoints  = &Error{Kind: ErrConflict, Code: "insufficient_points", Message: "insufficient points for this reward"}
	ErrDuplicateCompletion = &Error{Kind: ErrConflict, Code: "duplicate_completion", Message: "task already completed for this date"}
	ErrTaskInactive        = &Error{Kind: ErrConflict, Code: "task_inactive", Message: "task is not active"}

	ErrTaskNotFound       = &Error{Kind: ErrNotFound, Code: "task_not_found", Message: "task not found"}
	ErrRewardNotFound     = &Error{Kind: ErrNotFound, Code: "reward_not_found", Message: "reward not found"}
	ErrCompletionNotFound = &Error{Kind: ErrNotFound, Code: "completion_not_found", Message: "task completion not found"}
	ErrReferenceNotFound  = &Error{Kind: ErrNotFound, Code: "reference_not_found", Message: "reference not found"}

	ErrStorageBusy = &Error{Kind: ErrStorage, Code: "storage_busy", Message: "store is busy, try again"}
)

// KindOf returns the failure kind of err, or nil for errors outside the
// ledger taxonomy.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrConflict, ErrNotFound, ErrStorage} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
