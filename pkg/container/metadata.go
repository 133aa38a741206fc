package container

import (
	"encoding/binary"

	"github.com/go-ctap/hybridmoc/pkg/hmoctypes"
	"github.com/go-ctap/hybridmoc/pkg/tlv"
)

// Metadata is the public matcher state reported to the host: the library
// magic, the configured layout and which fingers are enrolled. Before
// personalization everything except the magic is zero.
type Metadata struct {
	Code       hmoctypes.ContainerCode
	Layout     Layout
	FingerMask hmoctypes.FingerMask
}

// Bytes returns the encoded metadata record.
func (md *Metadata) Bytes() []byte {
	v := AppendHeaderValue(make([]byte, 0, hmoctypes.MetadataHeaderSize), md.Code, md.Layout)
	v = binary.BigEndian.AppendUint16(v, uint16(md.FingerMask))

	b, _ := tlv.Encode(hmoctypes.TagHeader, v)
	return b
}

// Encode writes the metadata record to resp and returns the bytes written.
// Nothing is written when resp is too small.
func (md *Metadata) Encode(resp []byte) (int, error) {
	if len(resp) < hmoctypes.MetadataSize {
		return 0, hmoctypes.NewError(OpEncodeMetadata, hmoctypes.StatusBuffer,
			"response buffer holds %d bytes, need %d", len(resp), hmoctypes.MetadataSize)
	}
	return copy(resp, md.Bytes()), nil
}

// ParseMetadata decodes a metadata record.
func ParseMetadata(b []byte) (*Metadata, error) {
	h, err := DecodeMetadata(b)
	if err != nil {
		return nil, err
	}

	return &Metadata{
		Code:       hmoctypes.NewContainerCode(h.ID, h.Active),
		Layout:     h.Layout.OrEmpty(),
		FingerMask: h.FingerMask.OrEmpty(),
	}, nil
}
