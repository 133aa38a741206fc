package container

import (
	"encoding/binary"

	"github.com/go-ctap/hybridmoc/pkg/hmoctypes"
	"github.com/go-ctap/hybridmoc/pkg/tlv"
)

// Config is a fully decoded configuration container.
type Config struct {
	Code     hmoctypes.ContainerCode
	Layout   Layout
	Model    hmoctypes.Model
	FAR      hmoctypes.FAR
	Features hmoctypes.Feature
	// Verlimit caps the sub-templates compared per finger, 0 means no cap.
	Verlimit uint8
	// Size is the encoded length of the container, excluding unused slot bytes.
	Size int
}

// Finger is a fully decoded finger container.
type Finger struct {
	Code         hmoctypes.ContainerCode
	SubTemplates [][]byte
	Size         int
}

// parseContainer decodes the outer container record, which must lie entirely
// within b, and returns the header value and the records following it.
func parseContainer(op string, b []byte) (hmoctypes.ContainerCode, []byte, []tlv.Record, int, error) {
	if !HasMarker(b) {
		return 0, nil, nil, 0, hmoctypes.NewError(op, hmoctypes.StatusParameter, "container marker missing")
	}

	outer, rest, err := tlv.Parse(b)
	if err != nil {
		return 0, nil, nil, 0, codecError(op, err)
	}
	size := len(b) - len(rest)

	var records []tlv.Record
	for r, err := range tlv.Records(outer.Value) {
		if err != nil {
			return 0, nil, nil, 0, codecError(op, err)
		}
		records = append(records, r)
	}

	if len(records) == 0 || records[0].Tag != hmoctypes.TagHeader {
		return 0, nil, nil, 0, hmoctypes.NewError(op, hmoctypes.StatusParameter, "container header record missing")
	}
	hdr := records[0].Value
	if len(hdr) < 1 {
		return 0, nil, nil, 0, hmoctypes.NewError(op, hmoctypes.StatusParameter, "empty header record")
	}

	return hmoctypes.ContainerCode(hdr[0]), hdr, records[1:], size, nil
}

// ParseConfig decodes a complete configuration container.
func ParseConfig(b []byte) (*Config, error) {
	code, hdr, records, size, err := parseContainer(OpParseConfig, b)
	if err != nil {
		return nil, err
	}

	if code.ID() != hmoctypes.ConfigID {
		return nil, hmoctypes.NewError(OpParseConfig, hmoctypes.StatusParameter, "container id %d is not a configuration", code.ID())
	}

	h, err := decodeHeaderRecord(OpParseConfig, hdr, hmoctypes.ConfigHeaderSize, false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Code:   code,
		Layout: h.Layout.MustGet(),
		Size:   size,
	}

	var seen uint8
	for _, r := range records {
		switch r.Tag {
		case hmoctypes.TagModel:
			if len(r.Value) != 1 {
				return nil, badLength(r)
			}
			cfg.Model = hmoctypes.Model(r.Value[0])
			seen |= 1
		case hmoctypes.TagFAR:
			if len(r.Value) != 1 {
				return nil, badLength(r)
			}
			cfg.FAR = hmoctypes.FAR(r.Value[0])
			seen |= 2
		case hmoctypes.TagFeatures:
			if len(r.Value) != 4 {
				return nil, badLength(r)
			}
			cfg.Features = hmoctypes.Feature(binary.BigEndian.Uint32(r.Value))
			seen |= 4
		case hmoctypes.TagVerlimit:
			if len(r.Value) != 1 {
				return nil, badLength(r)
			}
			cfg.Verlimit = r.Value[0]
		}
	}

	if seen != 7 {
		return nil, hmoctypes.NewError(OpParseConfig, hmoctypes.StatusParameter, "model, FAR or features record missing")
	}
	if !cfg.FAR.Valid() {
		return nil, hmoctypes.NewError(OpParseConfig, hmoctypes.StatusParameter, "invalid FAR level %d", cfg.FAR)
	}

	return cfg, nil
}

// ParseFinger decodes a complete finger container.
func ParseFinger(b []byte) (*Finger, error) {
	code, hdr, records, size, err := parseContainer(OpParseFinger, b)
	if err != nil {
		return nil, err
	}

	if code.ID() == hmoctypes.ConfigID {
		return nil, hmoctypes.NewError(OpParseFinger, hmoctypes.StatusParameter, "configuration container in finger slot")
	}

	f := &Finger{
		Code: code,
		Size: size,
	}
	for _, r := range records {
		if r.Tag == hmoctypes.TagBiometricData {
			f.SubTemplates = append(f.SubTemplates, r.Value)
		}
	}

	if len(hdr) >= 2 && int(hdr[1]) != len(f.SubTemplates) {
		return nil, hmoctypes.NewError(OpParseFinger, hmoctypes.StatusParameter,
			"header announces %d sub-templates, found %d", hdr[1], len(f.SubTemplates))
	}

	return f, nil
}

func badLength(r tlv.Record) error {
	return hmoctypes.NewError(OpParseConfig, hmoctypes.StatusParameter, "record %s has length %d", r.Tag, len(r.Value))
}
