package hmoctypes

import (
	"strconv"
	"strings"
)

// FingerCode identifies a finger container, 1-10. Zero is the configuration
// container.
type FingerCode uint8

const ConfigID FingerCode = 0

func (c FingerCode) Valid() bool {
	return c >= 1 && c <= MaxFingerCode
}

func (c FingerCode) Bit() FingerMask {
	return FingerMask(1) << c
}

// FingerMask is a bitset of finger codes, one bit per code (1 << code).
type FingerMask uint16

const validFingerBits FingerMask = 0x07FE

// MaskOf builds a mask from finger codes.
func MaskOf(codes ...FingerCode) FingerMask {
	var m FingerMask
	for _, c := range codes {
		m |= c.Bit()
	}
	return m
}

func (m FingerMask) Has(c FingerCode) bool {
	return m&c.Bit() != 0
}

// Valid reports whether only bits for codes 1-10 are set.
func (m FingerMask) Valid() bool {
	return m&^validFingerBits == 0
}

// Codes lists the finger codes in m in ascending order.
func (m FingerMask) Codes() []FingerCode {
	var codes []FingerCode
	for c := FingerCode(1); c <= MaxFingerCode; c++ {
		if m.Has(c) {
			codes = append(codes, c)
		}
	}
	return codes
}

func (m FingerMask) String() string {
	codes := m.Codes()
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(int(c))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// ContainerCode is the first byte of a C0 header: <active:1, rfu:3, id:4>.
type ContainerCode byte

const containerActiveBit ContainerCode = 0x80

func NewContainerCode(id FingerCode, active bool) ContainerCode {
	c := ContainerCode(id & 0x0f)
	if active {
		c |= containerActiveBit
	}
	return c
}

func (c ContainerCode) Active() bool {
	return c&containerActiveBit != 0
}

func (c ContainerCode) ID() FingerCode {
	return FingerCode(c & 0x0f)
}
