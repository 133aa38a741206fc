package matcher

import (
	"encoding/binary"

	"github.com/go-ctap/hybridmoc/pkg/hmoctypes"
	"github.com/go-ctap/hybridmoc/pkg/tlv"
	"github.com/samber/mo"
)

// Envelope is a parsed verification envelope: an optional finger mask
// record followed by the verification template.
type Envelope struct {
	// FingerMask is absent when no mask or a zero mask was supplied.
	FingerMask mo.Option[hmoctypes.FingerMask]
	Template   []byte
	// Len is the number of work buffer bytes occupied by the envelope.
	Len int
}

// ParseEnvelope parses the verification envelope at offs in work. The whole
// envelope must lie inside work.
func ParseEnvelope(work []byte, offs int) (*Envelope, error) {
	if offs < 0 || offs >= len(work) {
		return nil, hmoctypes.NewError(OpParseEnvelope, hmoctypes.StatusParameter,
			"offset %d outside %d byte work buffer", offs, len(work))
	}
	b := work[offs:]

	r, rest, err := tlv.Parse(b)
	if err != nil {
		return nil, hmoctypes.NewError(OpParseEnvelope, hmoctypes.StatusParameter, "%v", err)
	}

	env := &Envelope{}
	if r.Tag == hmoctypes.TagHeader {
		if len(r.Value) != 2 {
			return nil, hmoctypes.NewError(OpParseEnvelope, hmoctypes.StatusParameter, "finger mask record holds %d bytes", len(r.Value))
		}

		mask := hmoctypes.FingerMask(binary.BigEndian.Uint16(r.Value))
		if !mask.Valid() {
			return nil, hmoctypes.NewError(OpParseEnvelope, hmoctypes.StatusParameter, "invalid finger mask 0x%04X", uint16(mask))
		}
		if mask != 0 {
			env.FingerMask = mo.Some(mask)
		}

		if r, rest, err = tlv.Parse(rest); err != nil {
			return nil, hmoctypes.NewError(OpParseEnvelope, hmoctypes.StatusParameter, "%v", err)
		}
	}

	if r.Tag != hmoctypes.TagBiometricData {
		return nil, hmoctypes.NewError(OpParseEnvelope, hmoctypes.StatusParameter, "unexpected tag %s", r.Tag)
	}
	if len(r.Value) == 0 {
		return nil, hmoctypes.NewError(OpParseEnvelope, hmoctypes.StatusParameter, "empty verification template")
	}

	env.Template = r.Value
	env.Len = len(b) - len(rest)

	return env, nil
}
