package container

import (
	"encoding/binary"
	"errors"

	"github.com/go-ctap/hybridmoc/pkg/hmoctypes"
	"github.com/go-ctap/hybridmoc/pkg/tlv"
	"github.com/samber/mo"
	"golang.org/x/crypto/cryptobyte"
)

// Layout is the container geometry announced by the configuration container.
type Layout struct {
	LibMagic      hmoctypes.Magic
	NumContainers uint16
	ConfSize      uint16
	FingerSize    uint16
}

// Header is the decoded C0 record of a container or of matcher metadata.
// Layout is only present for the configuration container and metadata,
// FingerMask only for metadata.
type Header struct {
	// Valid is false when the container does not start with the marker byte.
	Valid      bool
	Active     bool
	ID         hmoctypes.FingerCode
	Layout     mo.Option[Layout]
	FingerMask mo.Option[hmoctypes.FingerMask]
}

// HasMarker reports whether b starts with the container marker byte.
// Anything else is an invalid container, e.g. one torn during an update.
func HasMarker(b []byte) bool {
	return len(b) > 0 && b[0] == byte(hmoctypes.TagContainer)
}

// DecodeHeader decodes the C0 header of a container. Only the leading bytes
// up to the end of the C0 record need to be present; HeaderPeekSize bytes
// are always enough. A container without the marker byte decodes as invalid
// and inactive without error.
func DecodeHeader(b []byte) (*Header, error) {
	if !HasMarker(b) {
		return &Header{}, nil
	}

	s := cryptobyte.String(b)
	_, n, err := tlv.ReadHeader(&s)
	if err != nil {
		return nil, codecError(OpDecodeHeader, err)
	}

	body := []byte(s)
	if n < len(body) {
		body = body[:n]
	}

	r, _, err := tlv.Expect(body, hmoctypes.TagHeader)
	if err != nil {
		return nil, codecError(OpDecodeHeader, err)
	}

	return decodeHeaderRecord(OpDecodeHeader, r.Value, hmoctypes.ConfigHeaderSize, false)
}

// DecodeMetadata decodes a metadata record as produced by the matcher's
// GetMeta, a bare C0 record.
func DecodeMetadata(b []byte) (*Header, error) {
	r, _, err := tlv.Expect(b, hmoctypes.TagHeader)
	if err != nil {
		return nil, codecError(OpDecodeMetadata, err)
	}

	if len(r.Value) < hmoctypes.MetadataHeaderSize {
		return nil, hmoctypes.NewError(OpDecodeMetadata, hmoctypes.StatusParameter,
			"metadata record holds %d bytes, need %d", len(r.Value), hmoctypes.MetadataHeaderSize)
	}

	if id := hmoctypes.ContainerCode(r.Value[0]).ID(); id != hmoctypes.ConfigID {
		return nil, hmoctypes.NewError(OpDecodeMetadata, hmoctypes.StatusParameter, "metadata carries container id %d", id)
	}

	return decodeHeaderRecord(OpDecodeMetadata, r.Value, hmoctypes.MetadataHeaderSize, true)
}

func decodeHeaderRecord(op string, v []byte, layoutSize int, withMask bool) (*Header, error) {
	if len(v) < 1 {
		return nil, hmoctypes.NewError(op, hmoctypes.StatusParameter, "empty header record")
	}

	code := hmoctypes.ContainerCode(v[0])
	h := &Header{
		Valid:  true,
		Active: code.Active(),
		ID:     code.ID(),
	}

	if h.ID != hmoctypes.ConfigID {
		return h, nil
	}

	if len(v) < layoutSize {
		return nil, hmoctypes.NewError(op, hmoctypes.StatusParameter,
			"configuration header holds %d bytes, need %d", len(v), layoutSize)
	}

	h.Layout = mo.Some(Layout{
		LibMagic:      hmoctypes.Magic(binary.BigEndian.Uint16(v[1:3])),
		NumContainers: binary.BigEndian.Uint16(v[3:5]),
		ConfSize:      binary.BigEndian.Uint16(v[5:7]),
		FingerSize:    binary.BigEndian.Uint16(v[7:9]),
	})
	if withMask {
		h.FingerMask = mo.Some(hmoctypes.FingerMask(binary.BigEndian.Uint16(v[9:11])))
	}

	return h, nil
}

// AppendHeaderValue appends the C0 value bytes for a configuration layout.
func AppendHeaderValue(dst []byte, code hmoctypes.ContainerCode, l Layout) []byte {
	dst = append(dst, byte(code))
	dst = binary.BigEndian.AppendUint16(dst, uint16(l.LibMagic))
	dst = binary.BigEndian.AppendUint16(dst, l.NumContainers)
	dst = binary.BigEndian.AppendUint16(dst, l.ConfSize)
	return binary.BigEndian.AppendUint16(dst, l.FingerSize)
}

// codecError classifies a TLV decoding failure: data running past the
// supplied buffer is a buffer error, anything else a parameter error.
func codecError(op string, err error) error {
	if errors.Is(err, tlv.ErrTruncated) {
		return hmoctypes.NewError(op, hmoctypes.StatusBuffer, "%v", err)
	}
	return hmoctypes.NewError(op, hmoctypes.StatusParameter, "%v", err)
}
