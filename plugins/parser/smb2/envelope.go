package smb2

import (
	"encoding/binary"
	"fmt"
)

// EnvelopeLen is the size of the session length prefix.
const EnvelopeLen = 4

// StripEnvelope validates the 4-byte big-endian session prefix and returns
// a copy of the frame body that follows it.
func StripEnvelope(b []byte) ([]byte, error) {
	if len(b) < EnvelopeLen {
		return nil, ErrExpectedByte
	}
	if b[0] != 0 {
		return nil, fmt.Errorf("%w: 0x%02x", ErrNonZeroFirstByte, b[0])
	}

	n := binary.BigEndian.Uint32(b[:EnvelopeLen])
	rest := b[EnvelopeLen:]
	switch {
	case n == 0:
		return nil, ErrZeroHeaderMsg
	case int(n) != len(rest):
		return nil, fmt.Errorf("%w: prefix says %d, frame has %d", ErrInvalidMessageLength, n, len(rest))
	}

	body := make([]byte, len(rest))
	copy(body, rest)
	return body, nil
}

// AppendEnvelope appends the session prefix for a body of n bytes.
func AppendEnvelope(b []byte, n int) []byte {
	return binary.BigEndian.AppendUint32(b, uint32(n)&0x00FFFFFF)
}
