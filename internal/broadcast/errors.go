package broadcast

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrQuotaExceeded = errors.New("monthly broadcast quota exceeded")
)

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// QuotaExceededError carries the usage observed before the rejected call.
type QuotaExceededError struct {
	Used  int
	Limit int
	Month string
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly broadcast quota exceeded: %d of %d used in %s", e.Used, e.Limit, e.Month)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }
