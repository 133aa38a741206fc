package cardlink

import "strconv"

// Instruction is the command carried in the init frame of a message.
// Responses echo the instruction of the request.
type Instruction byte

const (
	InsGetMeta      Instruction = 0x01
	InsPutContainer Instruction = 0x02
	InsMatch        Instruction = 0x03
	InsErase        Instruction = 0x04
	InsKeepalive    Instruction = 0x3B
	InsError        Instruction = 0x3F
)

var instructionNames = map[Instruction]string{
	InsGetMeta:      "GET_META",
	InsPutContainer: "PUT_CONTAINER",
	InsMatch:        "MATCH",
	InsErase:        "ERASE",
	InsKeepalive:    "KEEPALIVE",
	InsError:        "ERROR",
}

func (i Instruction) String() string {
	if s, ok := instructionNames[i]; ok {
		return s
	}
	return "Instruction(" + strconv.Itoa(int(i)) + ")"
}

// LinkError is the payload of an InsError message, a framing failure
// detected before the request reached the card application.
type LinkError byte

const (
	ErrCodeInvalidIns LinkError = 0x01
	ErrCodeInvalidLen LinkError = 0x03
	ErrCodeInvalidSeq LinkError = 0x04
	ErrCodeOther      LinkError = 0x7F
)

var linkErrorNames = map[LinkError]string{
	ErrCodeInvalidIns: "ERR_INVALID_INS",
	ErrCodeInvalidLen: "ERR_INVALID_LEN",
	ErrCodeInvalidSeq: "ERR_INVALID_SEQ",
	ErrCodeOther:      "ERR_OTHER",
}

func (e LinkError) String() string {
	if s, ok := linkErrorNames[e]; ok {
		return s
	}
	return "LinkError(" + strconv.Itoa(int(e)) + ")"
}

func (e LinkError) Error() string {
	return "cardlink: " + e.String()
}

const (
	INIT_FRAME_BIT byte = 0x80

	initHeaderSize = 3
	contHeaderSize = 1
	maxSequence    = 0x80

	minReportSize = 8
)

// MaxPayload returns the largest message payload that fits the frames of a
// link with the given report size.
func MaxPayload(reportSize int) int {
	return min(0xFFFF, reportSize-initHeaderSize+maxSequence*(reportSize-contHeaderSize))
}
