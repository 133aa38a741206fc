package container

import "errors"

const (
	OpDecodeHeader   = "DecodeHeader"
	OpDecodeMetadata = "DecodeMetadata"
	OpEncodeMetadata = "EncodeMetadata"
	OpParseConfig    = "ParseConfig"
	OpParseFinger    = "ParseFinger"
	OpOpen           = "Open"
)

// ErrNoContainers is returned by Open when no container is supplied, i.e.
// the card has not been personalized yet.
var ErrNoContainers = errors.New("container: no containers")
