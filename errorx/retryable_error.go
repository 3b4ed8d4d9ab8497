package errorx

import (
	"errors"
	"fmt"
)

// RetryableError marks a failure worth another attempt, typically a backend
// that is still starting up.
type RetryableError struct {
	error
}

var _ error = (*RetryableError)(nil)

func NewRetryableError(err error) RetryableError {
	return RetryableError{
		error: err,
	}
}

func (re RetryableError) Unwrap() error {
	return re.error
}

func (re RetryableError) Error() string {
	return fmt.Sprintf("Retryable - %s", re.error.Error())
}

func IsRetryableError(err error) (*RetryableError, bool) {
	var re RetryableError
	if !errors.As(err, &re) {
		return nil, false
	}
	return &re, true
}
