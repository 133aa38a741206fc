package cardlink

import (
	"encoding/binary"

	"github.com/go-ctap/hybridmoc/pkg/hmoctypes"
	"github.com/go-ctap/hybridmoc/pkg/matcher"
	"github.com/samber/mo"
)

const (
	matchFlagScore byte = 0x01

	matchRequestHeaderSize = 3
	matchResponseSize      = 4
)

// MatchRequest is the decoded payload of an InsMatch request.
type MatchRequest struct {
	Work      []byte
	VerOffs   uint16
	WithScore bool
}

// EncodeMatchRequest lays out [flags][offset hi][offset lo] work...
func EncodeMatchRequest(work []byte, verOffs uint16, withScore bool) []byte {
	b := make([]byte, 0, matchRequestHeaderSize+len(work))
	var flags byte
	if withScore {
		flags |= matchFlagScore
	}
	b = append(b, flags)
	b = binary.BigEndian.AppendUint16(b, verOffs)
	return append(b, work...)
}

func DecodeMatchRequest(p []byte) (*MatchRequest, error) {
	if len(p) < matchRequestHeaderSize {
		return nil, hmoctypes.NewError("DecodeMatchRequest", hmoctypes.StatusParameter, "request holds %d bytes", len(p))
	}

	return &MatchRequest{
		WithScore: p[0]&matchFlagScore != 0,
		VerOffs:   binary.BigEndian.Uint16(p[1:3]),
		Work:      p[matchRequestHeaderSize:],
	}, nil
}

// EncodeMatchResponse lays out [decision][flags][score hi][score lo].
func EncodeMatchResponse(r *matcher.MatchResult) []byte {
	b := make([]byte, 0, matchResponseSize)
	b = append(b, byte(r.Decision))

	score, ok := r.Score.Get()
	if ok {
		b = append(b, matchFlagScore)
	} else {
		b = append(b, 0)
	}

	return binary.BigEndian.AppendUint16(b, score)
}

func DecodeMatchResponse(p []byte) (*matcher.MatchResult, error) {
	if len(p) != matchResponseSize {
		return nil, ErrInvalidResponseMessage
	}

	r := &matcher.MatchResult{Decision: hmoctypes.FingerCode(p[0])}
	if r.Decision != 0 && !r.Decision.Valid() {
		return nil, ErrInvalidResponseMessage
	}
	if p[1]&matchFlagScore != 0 {
		r.Score = mo.Some(binary.BigEndian.Uint16(p[2:4]))
	}

	return r, nil
}
