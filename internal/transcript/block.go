package transcript

import (
	"encoding/hex"
	"fmt"
	"strings"

	"firestige.xyz/smbtrace/internal/core"
)

const (
	ipVersion4 = 4

	// Offset of the data-offset byte inside a TCP header.
	tcpDataOffsetIndex = 12
)

// ParseHexLine decodes one hex-dump line such as
//
//	\t0x0010:  0a00 0002 01bd c350 0000 0064 0000 0000
//
// The bytes are the text between the first double space and the next one,
// so a trailing ASCII column separated by two spaces is not read.
// Groups may be two or four hex digits wide.
func ParseHexLine(line string) ([]byte, error) {
	parts := strings.SplitN(line, "  ", 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: expected '  ' at least once", ErrBlockUnexpectedToken)
	}

	groups := strings.Split(parts[1], " ")
	out := make([]byte, 0, 2*len(groups))
	for _, group := range groups {
		if group == "" {
			continue
		}
		if len(group) != 2 && len(group) != 4 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidByteRepr, group)
		}
		decoded, err := hex.DecodeString(group)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidByteRepr, group)
		}
		out = append(out, decoded...)
	}
	return out, nil
}

// SplitBlock slices a reassembled dump into IPv4 header, TCP header and
// payload using the IHL and data-offset nibbles found in the bytes.
// The returned slices are copies of buf.
func SplitBlock(buf []byte) (core.ByteBlock, error) {
	if len(buf) == 0 {
		return core.ByteBlock{}, ErrExpectedByte
	}
	if version := buf[0] >> 4; version != ipVersion4 {
		return core.ByteBlock{}, fmt.Errorf("%w: %d", ErrUnsupportedIPVersion, version)
	}

	ipLen := int(buf[0]&0x0F) * 4
	if ipLen > len(buf) {
		return core.ByteBlock{}, fmt.Errorf("%w: IP header wants %d bytes, have %d", ErrExpectedByte, ipLen, len(buf))
	}
	ipHeader, rest := buf[:ipLen], buf[ipLen:]

	if len(rest) <= tcpDataOffsetIndex {
		return core.ByteBlock{}, fmt.Errorf("%w: TCP data offset missing", ErrExpectedByte)
	}
	tcpLen := int(rest[tcpDataOffsetIndex]>>4) * 4
	if tcpLen > len(rest) {
		return core.ByteBlock{}, fmt.Errorf("%w: TCP header wants %d bytes, have %d", ErrExpectedByte, tcpLen, len(rest))
	}
	tcpHeader, payload := rest[:tcpLen], rest[tcpLen:]

	return core.ByteBlock{
		NetworkHeader:   clone(ipHeader),
		TransportHeader: clone(tcpHeader),
		Payload:         clone(payload),
	}, nil
}

// clone copies b, keeping a non-nil empty slice for empty input.
func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
