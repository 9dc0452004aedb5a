package common

import "errors"

// CodedError is a protocol failure carrying the numeric code surfaced to
// callers. Each package declares its own values; identity comparison through
// errors.Is works because every sentinel is a distinct pointer.
type CodedError struct {
	Code uint32
	Msg  string
}

// NewError declares a coded sentinel.
func NewError(code uint32, msg string) *CodedError {
	return &CodedError{Code: code, Msg: msg}
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return e.Msg
}

// CodeOf extracts the protocol code from err. The boolean is false for
// infrastructure errors that carry no code.
func CodeOf(err error) (uint32, bool) {
	var coded *CodedError
	if errors.As(err, &coded) && coded != nil {
		return coded.Code, true
	}
	return 0, false
}

// Shared failure classes. Engine sentinels wrap one of these so transports can
// map an error to a status without knowing every package.
var (
	ErrNotAuthorized          = errors.New("not authorized")
	ErrNotFound               = errors.New("not found")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInsufficientCollateral = errors.New("insufficient collateral")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrUnavailable            = errors.New("unavailable")
)

// classed ties a coded sentinel to its failure class.
type classed struct {
	*CodedError
	class error
}

func (c classed) Unwrap() []error { return []error{c.CodedError, c.class} }

// NewClassedError declares a coded sentinel that also matches class via
// errors.Is.
func NewClassedError(code uint32, msg string, class error) error {
	return classed{CodedError: NewError(code, msg), class: class}
}
