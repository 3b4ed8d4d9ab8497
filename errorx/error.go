package errorx

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"
)

type RentappError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`

	OriginalError error `json:"-"` // Not returned to clients
}

var _ error = (*RentappError)(nil)

var messageRegexp = regexp.MustCompile(`^\[(.*?)\] (.*)$`)

func (e RentappError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
}

func (e RentappError) Unwrap() error {
	return e.OriginalError
}

// WithOriginalError keeps err for logging purposes. It is never serialized.
func (e RentappError) WithOriginalError(err error) RentappError {
	e.OriginalError = err
	return e
}

// NewRentappErrorFromMessage parses the output of RentappError.Error back into an error.
func NewRentappErrorFromMessage(msg string) (*RentappError, error) {
	m := messageRegexp.FindStringSubmatch(msg)
	if m == nil {
		return nil, fmt.Errorf("%q is not a valid error message", msg)
	}

	eT, err := ParseErrorType(m[1])
	if err != nil {
		return nil, err
	}

	return &RentappError{
		Type:    eT,
		Message: m[2],
	}, nil
}

func IsRentappError(e error) (*RentappError, bool) {
	e = errors.Cause(e)
	var mE RentappError
	switch v := e.(type) {
	case RentappError:
		mE = v
	case *RentappError:
		if v == nil {
			return nil, false
		}
		mE = *v
	default:
		if !errors.As(e, &mE) {
			return nil, false
		}
	}

	if mE.Type == ErrorTypeUnspecified {
		return nil, false
	}

	return &mE, true
}

func isType(e error, t ErrorType) bool {
	mE, ok := IsRentappError(e)
	if !ok {
		return false
	}

	return mE.Type == t
}

func IsAlreadyExistsError(e error) bool {
	return isType(e, ErrorTypeAlreadyExists)
}

func IsFailedPreconditionError(e error) bool {
	return isType(e, ErrorTypeFailedPrecondition)
}

func IsInternalError(e error) bool {
	return isType(e, ErrorTypeInternal)
}

func IsInvalidArgumentError(e error) bool {
	return isType(e, ErrorTypeInvalidArgument)
}

func IsNotFoundError(e error) bool {
	return isType(e, ErrorTypeNotFound)
}

func IsUnimplementedError(e error) bool {
	return isType(e, ErrorTypeUnimplemented)
}

func IsUnavailableError(e error) bool {
	return isType(e, ErrorTypeUnavailable)
}

// AlreadyExistsErrorf creates a RentappError with type ErrorTypeAlreadyExists and a formatted message
func AlreadyExistsErrorf(format string, args ...interface{}) RentappError {
	return RentappError{
		Type:    ErrorTypeAlreadyExists,
		Message: fmt.Sprintf(format, args...),
	}
}

// FailedPreconditionErrorf creates a RentappError with type ErrorTypeFailedPrecondition and a formatted message
func FailedPreconditionErrorf(format string, args ...interface{}) RentappError {
	return RentappError{
		Type:    ErrorTypeFailedPrecondition,
		Message: fmt.Sprintf(format, args...),
	}
}

// InternalErrorf creates a RentappError with type ErrorTypeInternal and a formatted message
func InternalErrorf(format string, args ...interface{}) RentappError {
	return RentappError{
		Type:    ErrorTypeInternal,
		Message: fmt.Sprintf(format, args...),
	}
}

// InvalidArgumentErrorf creates a RentappError with type ErrorTypeInvalidArgument and a formatted message
func InvalidArgumentErrorf(format string, args ...interface{}) RentappError {
	return RentappError{
		Type:    ErrorTypeInvalidArgument,
		Message: fmt.Sprintf(format, args...),
	}
}

// NotFoundErrorf creates a RentappError with type ErrorTypeNotFound and a formatted message
func NotFoundErrorf(format string, args ...interface{}) RentappError {
	return RentappError{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf(format, args...),
	}
}

// UnimplementedErrorf creates a RentappError with type ErrorTypeUnimplemented and a formatted message
func UnimplementedErrorf(format string, args ...interface{}) RentappError {
	return RentappError{
		Type:    ErrorTypeUnimplemented,
		Message: fmt.Sprintf(format, args...),
	}
}

// UnavailableErrorf creates a RentappError with type ErrorTypeUnavailable and a formatted message
func UnavailableErrorf(format string, args ...interface{}) RentappError {
	return RentappError{
		Type:    ErrorTypeUnavailable,
		Message: fmt.Sprintf(format, args...),
	}
}
