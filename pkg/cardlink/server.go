package cardlink

import (
	"context"
	"encoding/hex"
	"errors"
	"io"

	"github.com/go-ctap/hybridmoc/pkg/hmoctypes"
	"github.com/go-ctap/hybridmoc/pkg/options"
)

// Handler processes a request on the card end of a link and returns the
// status and payload of the response.
type Handler interface {
	Handle(ins Instruction, data []byte) (hmoctypes.Status, []byte)
}

type HandlerFunc func(ins Instruction, data []byte) (hmoctypes.Status, []byte)

func (f HandlerFunc) Handle(ins Instruction, data []byte) (hmoctypes.Status, []byte) {
	return f(ins, data)
}

// Serve answers requests read from rw until the peer closes the link or ctx
// is done. Framing errors are answered with an InsError message.
func Serve(ctx context.Context, rw io.ReadWriter, h Handler, opts ...options.Option) error {
	oo := options.NewOptions(opts...)
	logger := oo.Logger

	// A run of continuation frames outside a message is answered once.
	orphaned := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := ReadMessage(rw, oo.ReportSize)
		if errors.Is(err, ErrUnexpectedFrame) {
			if orphaned {
				continue
			}
			orphaned = true
			logger.Warn("continuation frame outside a message")
			if err := reply(rw, InsError, []byte{byte(ErrCodeInvalidSeq)}, oo.ReportSize); err != nil {
				return err
			}
			continue
		}
		orphaned = false

		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe):
			return nil
		case errors.Is(err, ErrInvalidSequence):
			logger.Warn("message dropped", "error", err)
			err = reply(rw, InsError, []byte{byte(ErrCodeInvalidSeq)}, oo.ReportSize)
		case err != nil:
			return err
		default:
			ins := req.Instruction()
			if _, ok := instructionNames[ins]; !ok || ins == InsKeepalive || ins == InsError {
				logger.Warn("unknown instruction", "ins", ins)
				err = reply(rw, InsError, []byte{byte(ErrCodeInvalidIns)}, oo.ReportSize)
				break
			}

			data := req.Payload()
			logger.Debug("cardlink serve", "ins", ins, "hex", hex.EncodeToString(data))

			status, resp := h.Handle(ins, data)
			err = reply(rw, ins, append([]byte{byte(status)}, resp...), oo.ReportSize)
		}
		if err != nil {
			return err
		}
	}
}

func reply(w io.Writer, ins Instruction, data []byte, reportSize int) error {
	msg, err := NewMessage(ins, data, reportSize)
	if err != nil {
		return err
	}

	_, err = msg.WriteTo(w)
	return err
}
