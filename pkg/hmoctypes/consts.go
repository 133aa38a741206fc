package hmoctypes

import (
	"strconv"

	"github.com/go-ctap/hybridmoc/pkg/tlv"
)

const (
	// TagContainer wraps every container. A container whose first byte is not
	// TagContainer is invalid and inactive.
	TagContainer tlv.Tag = 0xEF
	// TagHeader is the first sub-record of a container and the metadata record.
	// In a verification envelope it carries the finger mask.
	TagHeader tlv.Tag = 0xC0
	// TagBiometricData wraps a verification template or an enrolled sub-template.
	TagBiometricData tlv.Tag = 0x7F2E

	TagModel    tlv.Tag = 0xC1
	TagFAR      tlv.Tag = 0xC2
	TagFeatures tlv.Tag = 0xC3
	TagVerlimit tlv.Tag = 0xC4
)

const (
	MaxContainers    = 11
	MaxFingerCode    = 10
	MaxContainerSize = 0xFFF0

	// ConfigHeaderSize is the minimum C0 value length of a configuration container.
	ConfigHeaderSize = 9
	// MetadataHeaderSize is the minimum C0 value length of matcher metadata.
	MetadataHeaderSize = 11
	// MetadataSize is the full size of an encoded metadata record.
	MetadataSize = 13
	// HeaderPeekSize is enough leading container bytes to decode any header.
	HeaderPeekSize = 32

	sizeAlignment = 16
)

// AlignSize rounds n up to the container size alignment.
func AlignSize(n int) int {
	return (n + sizeAlignment - 1) / sizeAlignment * sizeAlignment
}

// Model is the use-case model: which sensor sizes enrollment and
// verification images come from.
type Model byte

const (
	ModelUnknown Model = iota
	ModelL             // L sized sensor for enrollment and verification
	ModelXL            // XL sized sensor for enrollment and verification
	ModelFullL         // single full sized enrollment image, L verification
	ModelFullXL        // single full sized enrollment image, XL verification
)

var modelNames = map[Model]string{
	ModelUnknown: "unknown",
	ModelL:       "L",
	ModelXL:      "XL",
	ModelFullL:   "FULL_L",
	ModelFullXL:  "FULL_XL",
}

func (m Model) String() string {
	if s, ok := modelNames[m]; ok {
		return s
	}
	return "Model(" + strconv.Itoa(int(m)) + ")"
}

func (m Model) Valid() bool {
	return m > ModelUnknown && m <= ModelFullXL
}

// ParseModel is the inverse of Model.String.
func ParseModel(s string) (Model, bool) {
	for m, name := range modelNames {
		if name == s {
			return m, true
		}
	}
	return ModelUnknown, false
}

// FAR is a false accept rate security level. It is set once in the
// configuration container and applies to every match.
type FAR byte

const (
	FAR1 FAR = iota
	FAR2
	FAR5
	FAR10
	FAR20
	FAR50
	FAR100
	FAR200
	FAR500
	FAR1000
	FAR2K
	FAR5000
	FAR10000
	FAR20K
	FAR50000
	FAR100000
	FAR200K
	FAR500000
	FAR1000000
	FAR2M
	FAR5M
	FAR10M
	FAR20M
	FAR50M
	FAR100M
	FAR200M
	FAR500M
	FAR1000M
	FARInf
)

var farDenominators = [...]string{
	"1", "2", "5", "10", "20", "50", "100", "200", "500", "1000",
	"2K", "5000", "10000", "20K", "50000", "100000", "200K", "500000", "1000000",
	"2M", "5M", "10M", "20M", "50M", "100M", "200M", "500M", "1000M", "Inf",
}

func (f FAR) String() string {
	if !f.Valid() {
		return "FAR(" + strconv.Itoa(int(f)) + ")"
	}
	return "FAR_" + farDenominators[f]
}

func (f FAR) Valid() bool {
	return f <= FARInf
}

// ParseFAR accepts the String form with or without the FAR_ prefix.
func ParseFAR(s string) (FAR, bool) {
	if len(s) > 4 && s[:4] == "FAR_" {
		s = s[4:]
	}
	for i, d := range farDenominators {
		if d == s {
			return FAR(i), true
		}
	}
	return 0, false
}

// Feature is a bitset of verification features stored in the configuration.
type Feature uint32

const (
	Feat360 Feature = 1 << 0 // full 360 degree verification

	// RFU spectral search features, reserved for a larger matcher variant.
	FeatNoCoarse Feature = 1 << 8
	FeatSearch   Feature = 1 << 9
	FeatSqCanvas Feature = 1 << 10

	FeaturesSupported = Feat360
)

func (f Feature) Has(o Feature) bool {
	return f&o == o
}
