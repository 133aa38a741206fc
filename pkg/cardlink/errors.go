package cardlink

import "errors"

var (
	ErrMessageTooLarge        = errors.New("cardlink: message payload too large")
	ErrInvalidReportSize      = errors.New("cardlink: invalid report size")
	ErrUnexpectedInstruction  = errors.New("cardlink: unexpected instruction")
	ErrUnexpectedFrame        = errors.New("cardlink: unexpected continuation frame")
	ErrInvalidSequence        = errors.New("cardlink: invalid frame sequence")
	ErrInvalidResponseMessage = errors.New("cardlink: invalid response message")
)
