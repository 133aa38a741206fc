package device

import (
	"errors"
)

var (
	ErrNoCard   = errors.New("device: no card answering")
	ErrNoDevice = errors.New("device: no card reader found")
)

type ErrorWithMessage struct {
	Message string
	Err     error
}

func newErrorMessage(err error, msg string) *ErrorWithMessage {
	return &ErrorWithMessage{
		Message: msg,
		Err:     err,
	}
}

func (m *ErrorWithMessage) Error() string {
	if m.Message != "" {
		return m.Err.Error() + " (" + m.Message + ")"
	}
	return m.Err.Error()
}

func (m *ErrorWithMessage) Unwrap() error {
	return m.Err
}
