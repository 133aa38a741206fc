package cardlink

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/samber/lo"
)

// Message is a sequence of frames.
type Message []*frame

// frame is one report on the link. An init frame carries the instruction
// and the total payload length, continuation frames a sequence number.
type frame struct {
	size         int
	ins          Instruction
	sequence     byte
	length       uint16
	data         []byte
	continuation bool
}

// NewMessage splits data into frames of reportSize bytes.
func NewMessage(ins Instruction, data []byte, reportSize int) (Message, error) {
	if reportSize < minReportSize {
		return nil, ErrInvalidReportSize
	}
	if len(data) > MaxPayload(reportSize) {
		return nil, ErrMessageTooLarge
	}

	initCap := reportSize - initHeaderSize
	msg := Message{&frame{
		size:   reportSize,
		ins:    ins,
		length: uint16(len(data)),
		data:   lo.Slice(data, 0, initCap),
	}}

	if len(data) > initCap {
		chunks := lo.Chunk(data[initCap:], reportSize-contHeaderSize)
		for i, chunk := range chunks {
			msg = append(msg, &frame{
				size:         reportSize,
				sequence:     byte(i),
				data:         chunk,
				continuation: true,
			})
		}
	}

	return msg, nil
}

// Instruction returns the instruction of the init frame.
func (m Message) Instruction() Instruction {
	if len(m) == 0 {
		return 0
	}
	return m[0].ins
}

// Payload reassembles the message data.
func (m Message) Payload() []byte {
	if len(m) == 0 {
		return nil
	}

	data := make([]byte, 0, m[0].length)
	for _, f := range m {
		data = append(data, f.data...)
	}
	return data
}

// WriteTo writes every frame with a separate Write call, zero padded to the
// report size.
func (m Message) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, f := range m {
		n, err := w.Write(f.bytes())
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

func (f *frame) bytes() []byte {
	b := make([]byte, 0, f.size)
	if f.continuation {
		b = append(b, f.sequence)
	} else {
		b = append(b, byte(f.ins)|INIT_FRAME_BIT)
		b = binary.BigEndian.AppendUint16(b, f.length)
	}
	b = append(b, f.data...)

	return b[:f.size]
}

// ReadMessage reads the frames of one message. Frames are read whole, a
// continuation frame outside a message or out of sequence fails the read.
// A message with a sequence error is still consumed up to its announced
// length, so the next read starts at a message boundary.
func ReadMessage(r io.Reader, reportSize int) (Message, error) {
	if reportSize < minReportSize {
		return nil, ErrInvalidReportSize
	}

	var (
		msg       Message
		remaining int
		seqErr    error
	)
	buf := make([]byte, reportSize)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}

		f := &frame{size: reportSize}
		var data []byte
		if len(msg) == 0 {
			if buf[0]&INIT_FRAME_BIT == 0 {
				return nil, ErrUnexpectedFrame
			}
			f.ins = Instruction(buf[0] &^ INIT_FRAME_BIT)
			f.length = binary.BigEndian.Uint16(buf[1:3])
			remaining = int(f.length)
			data = buf[initHeaderSize:]
		} else {
			if buf[0] != byte(len(msg)-1) && seqErr == nil {
				seqErr = fmt.Errorf("%w: frame %d carries sequence %d", ErrInvalidSequence, len(msg), buf[0])
			}
			f.sequence = buf[0]
			f.continuation = true
			data = buf[contHeaderSize:]
		}

		n := min(remaining, len(data))
		f.data = append([]byte(nil), data[:n]...)
		remaining -= n
		msg = append(msg, f)

		if remaining == 0 {
			if seqErr != nil {
				return nil, seqErr
			}
			return msg, nil
		}
		if len(msg) > maxSequence {
			return nil, ErrInvalidSequence
		}
	}
}
