package ledgerx

import (
	"errors"
	"fmt"
)

var (
	ErrInternalServer        = errors.New("internal server error")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrInvalidName           = errors.New("invalid name")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrUnknownCurrency       = errors.New("unknown currency")
	ErrAccountNotFound       = errors.New("account not found")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInvalidPercent        = errors.New("invalid percent")
	ErrConversionUnavailable = errors.New("currency conversion unavailable")
	ErrOverloaded            = errors.New("service overloaded")
)

// ErrBadRequest reports caller mistakes. Kind is one of the sentinel errors
// above and is what errors.Is matches against.
type ErrBadRequest struct {
	Kind   error             `json:"-"`
	Fields map[string]string `json:"fields"`
}

func (e ErrBadRequest) Error() string {
	return fmt.Sprintf("%s: %v", e.Unwrap(), e.Fields)
}

func (e ErrBadRequest) Unwrap() error {
	if e.Kind == nil {
		return ErrInvalidArgument
	}
	return e.Kind
}

func badRequest(kind error, field, msg string) ErrBadRequest {
	return ErrBadRequest{Kind: kind, Fields: map[string]string{field: msg}}
}

type ErrNotFound struct {
	ID string `json:"id"`
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("account %q not found", e.ID)
}

func (e ErrNotFound) Is(target error) bool {
	return target == ErrAccountNotFound
}

// ErrSplitPartial is returned when a split fails after some of its legs were
// already applied. Completed legs are not undone.
type ErrSplitPartial struct {
	Completed int
	Err       error
}

func (e ErrSplitPartial) Error() string {
	return fmt.Sprintf("split failed after %d completed transfer(s): %v", e.Completed, e.Err)
}

func (e ErrSplitPartial) Unwrap() error {
	return e.Err
}
