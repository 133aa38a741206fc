package hmoctypes

import (
	"errors"
	"fmt"
)

var (
	ErrBuffer       = errors.New("hmoc: buffer too small")
	ErrVersion      = errors.New("hmoc: library magic mismatch")
	ErrParameter    = errors.New("hmoc: invalid parameter")
	ErrData         = errors.New("hmoc: invalid data format")
	ErrNotSupported = errors.New("hmoc: not supported")
	ErrFatal        = errors.New("hmoc: fatal error")
)

var statusErrors = map[Status]error{
	StatusBuffer:    ErrBuffer,
	StatusVersion:   ErrVersion,
	StatusParameter: ErrParameter,
	StatusData:      ErrData,
	StatusSupport:   ErrNotSupported,
	StatusFatal:     ErrFatal,
}

// StatusError is a failed operation together with its wire status.
type StatusError struct {
	Op      string
	Status  Status
	Message string
}

// NewError builds a StatusError with a formatted message.
func NewError(op string, status Status, format string, args ...any) *StatusError {
	return &StatusError{
		Op:      op,
		Status:  status,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *StatusError) Error() string {
	s := e.Op + " failed (" + e.Status.String() + ")"
	if e.Message != "" {
		s += ": " + e.Message
	}
	return s
}

func (e *StatusError) Unwrap() error {
	if err, ok := statusErrors[e.Status]; ok {
		return err
	}
	return errors.New(e.Status.String())
}

// StatusOf maps err to the status that reports it on the wire.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}

	for status, sentinel := range statusErrors {
		if errors.Is(err, sentinel) {
			return status
		}
	}

	return StatusFatal
}

// ErrorOf turns a wire status back into an error, nil for StatusOK.
func ErrorOf(op string, s Status) error {
	if s == StatusOK {
		return nil
	}
	return &StatusError{Op: op, Status: s}
}
