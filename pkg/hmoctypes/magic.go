package hmoctypes

import "fmt"

// Magic identifies a Hybrid MOC library variant. The variant decides the
// container data format and how preprocessing is split between host and card.
//
// Bits 0-1 select the preprocessing model, bit 3 marks verlimit support and
// the high byte separates variant generations.
type Magic uint16

const (
	MagicLegacy Magic = 0x0000 // first variant, no container format
	Magic1000   Magic = 0x1000 // on-card ISO-cc preprocessing, small config
	Magic1001   Magic = 0x1001 // host preprocessed enrollment, large config
	Magic1002   Magic = 0x1002 // host preprocessed enrollment, small config
	Magic1100   Magic = 0x1100
	Magic1101   Magic = 0x1101
	Magic1102   Magic = 0x1102
	Magic1108   Magic = 0x1108 // 0x1100 with verlimit
	Magic1109   Magic = 0x1109 // 0x1101 with verlimit
	Magic110A   Magic = 0x110A // 0x1102 with verlimit
)

const (
	magicPreprocessMask = 0x0003
	magicVerlimitBit    = 0x0008

	minutiaeSmall = 46
	minutiaeLarge = 64
)

var knownMagics = map[Magic]struct{}{
	Magic1000: {}, Magic1001: {}, Magic1002: {},
	Magic1100: {}, Magic1101: {}, Magic1102: {},
	Magic1108: {}, Magic1109: {}, Magic110A: {},
}

func (m Magic) String() string {
	return fmt.Sprintf("0x%04X", uint16(m))
}

// Supported reports whether m uses the container format handled by this module.
// The legacy variant is known but not supported.
func (m Magic) Supported() bool {
	_, ok := knownMagics[m]
	return ok
}

// HostPreprocessed reports whether ISO preprocessing of enrolled
// sub-templates happens on the host instead of the card.
func (m Magic) HostPreprocessed() bool {
	return m&magicPreprocessMask != 0
}

// MaxMinutiae is the minutiae capacity of the variant's ISO matcher.
func (m Magic) MaxMinutiae() int {
	if m&magicPreprocessMask == 1 {
		return minutiaeLarge
	}
	return minutiaeSmall
}

// SupportsVerlimit reports whether the variant honours a per-finger
// sub-template limit.
func (m Magic) SupportsVerlimit() bool {
	return m&magicVerlimitBit != 0
}
