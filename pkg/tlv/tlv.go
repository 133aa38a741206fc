// Package tlv implements the subset of BER tag-length-value encoding used by
// Hybrid MOC containers: one or two byte tags and lengths up to 16 bits.
package tlv

import (
	"errors"
	"fmt"
	"iter"

	"golang.org/x/crypto/cryptobyte"
)

var (
	ErrTruncated  = errors.New("tlv: record exceeds buffer")
	ErrLengthForm = errors.New("tlv: unsupported length form")
	ErrTagForm    = errors.New("tlv: unsupported tag form")
	ErrTooLarge   = errors.New("tlv: value too large")
)

// Tag is a BER tag of at most two bytes, e.g. 0xC0 or 0x7F2E.
type Tag uint16

func (t Tag) String() string {
	if t > 0xff {
		return fmt.Sprintf("%04X", uint16(t))
	}
	return fmt.Sprintf("%02X", uint16(t))
}

// multiByte reports whether the first tag byte announces a subsequent tag byte.
func multiByte(b byte) bool {
	return b&0x1f == 0x1f
}

// Record is a decoded TLV record. Value aliases the decoded buffer.
type Record struct {
	Tag   Tag
	Value []byte
}

// ReadHeader consumes a tag and a length from s. The length is not checked
// against what remains in s.
func ReadHeader(s *cryptobyte.String) (Tag, int, error) {
	var first uint8
	if !s.ReadUint8(&first) {
		return 0, 0, ErrTruncated
	}

	tag := Tag(first)
	if multiByte(first) {
		var second uint8
		if !s.ReadUint8(&second) {
			return 0, 0, ErrTruncated
		}
		if second&0x80 != 0 {
			return 0, 0, ErrTagForm
		}
		tag = tag<<8 | Tag(second)
	}

	var l uint8
	if !s.ReadUint8(&l) {
		return 0, 0, ErrTruncated
	}

	switch {
	case l < 0x80:
		return tag, int(l), nil
	case l == 0x81:
		var v uint8
		if !s.ReadUint8(&v) {
			return 0, 0, ErrTruncated
		}
		return tag, int(v), nil
	case l == 0x82:
		var v uint16
		if !s.ReadUint16(&v) {
			return 0, 0, ErrTruncated
		}
		return tag, int(v), nil
	default:
		return 0, 0, ErrLengthForm
	}
}

// ReadRecord consumes one complete record from s. A declared length larger
// than the remaining input fails with ErrTruncated and s is left unchanged.
func ReadRecord(s *cryptobyte.String) (Record, error) {
	save := *s

	tag, n, err := ReadHeader(s)
	if err != nil {
		*s = save
		return Record{}, err
	}

	var value []byte
	if !s.ReadBytes(&value, n) {
		*s = save
		return Record{}, fmt.Errorf("%w: tag %s declares %d bytes, %d available", ErrTruncated, tag, n, len(*s))
	}

	return Record{Tag: tag, Value: value}, nil
}

// Parse decodes the record at the start of b and returns it with the
// remaining bytes.
func Parse(b []byte) (Record, []byte, error) {
	s := cryptobyte.String(b)
	r, err := ReadRecord(&s)
	if err != nil {
		return Record{}, b, err
	}
	return r, s, nil
}

// Expect decodes the record at the start of b and fails unless it carries tag.
func Expect(b []byte, tag Tag) (Record, []byte, error) {
	r, rest, err := Parse(b)
	if err != nil {
		return Record{}, b, err
	}
	if r.Tag != tag {
		return Record{}, b, fmt.Errorf("tlv: expected tag %s, got %s", tag, r.Tag)
	}
	return r, rest, nil
}

// Records iterates over consecutive records in b. Iteration stops after the
// first error.
func Records(b []byte) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		s := cryptobyte.String(b)
		for !s.Empty() {
			r, err := ReadRecord(&s)
			if err != nil {
				yield(Record{}, err)
				return
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

// HeaderLen returns the number of bytes the tag and length of a record with
// an n byte value occupy.
func HeaderLen(tag Tag, n int) int {
	l := 1
	if tag > 0xff {
		l = 2
	}
	switch {
	case n < 0x80:
		return l + 1
	case n <= 0xff:
		return l + 2
	default:
		return l + 3
	}
}

// EncodedLen returns the full size of a record with an n byte value.
func EncodedLen(tag Tag, n int) int {
	return HeaderLen(tag, n) + n
}

func addHeader(b *cryptobyte.Builder, tag Tag, n int) {
	if tag > 0xff {
		b.AddUint16(uint16(tag))
	} else {
		b.AddUint8(uint8(tag))
	}

	switch {
	case n < 0x80:
		b.AddUint8(uint8(n))
	case n <= 0xff:
		b.AddUint8(0x81)
		b.AddUint8(uint8(n))
	default:
		b.AddUint8(0x82)
		b.AddUint16(uint16(n))
	}
}

// Append appends a record to dst.
func Append(dst []byte, tag Tag, value []byte) ([]byte, error) {
	if len(value) > 0xffff {
		return dst, ErrTooLarge
	}
	if tag > 0xff && !multiByte(byte(tag>>8)) {
		return dst, ErrTagForm
	}

	b := cryptobyte.NewBuilder(dst)
	addHeader(b, tag, len(value))
	b.AddBytes(value)

	return b.Bytes()
}

// Encode returns a single record.
func Encode(tag Tag, value []byte) ([]byte, error) {
	return Append(make([]byte, 0, EncodedLen(tag, len(value))), tag, value)
}

// Constructed encodes tag wrapping the concatenation of already encoded
// children.
func Constructed(tag Tag, children ...[]byte) ([]byte, error) {
	n := 0
	for _, c := range children {
		n += len(c)
	}
	if n > 0xffff {
		return nil, ErrTooLarge
	}

	b := cryptobyte.NewBuilder(make([]byte, 0, EncodedLen(tag, n)))
	addHeader(b, tag, n)
	for _, c := range children {
		b.AddBytes(c)
	}

	return b.Bytes()
}
