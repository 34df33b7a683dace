// Package smb2 decodes the SMB2 session envelope and the 64-byte SMB2
// packet header.
//
// Compounded requests are not followed: ChainOffset is decoded and exposed
// but any header it points to stays inside Message.Payload.
package smb2

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"firestige.xyz/smbtrace/internal/core"
)

// Protocol magics.
var (
	MagicSMB2 = [4]byte{0xFE, 'S', 'M', 'B'}
	MagicSMB1 = [4]byte{0xFF, 'S', 'M', 'B'}
)

const (
	// HeaderLen is the size of the fixed SMB2 header, magic included.
	HeaderLen = 64

	// Bytes already consumed when the header length is known: magic and
	// the length field itself.
	preambleLen = 6
)

// Header is the SMB2 packet header (sync and async share the layout; the
// async id overlays ProcessID and TreeID).
type Header struct {
	Magic         [4]byte
	HeaderLen     uint16
	CreditCharge  uint16
	Status        uint32 // NT status in responses, channel sequence in 3.x requests
	Command       Command
	CreditReqResp uint16
	Flags         Flags
	ChainOffset   uint32 // NextCommand, 0 when not compounded
	MessageID     uint64
	ProcessID     uint32
	TreeID        uint32
	SessionID     uint64
	Signature     core.Uint128
}

// Message is a decoded header plus the bytes that follow it in the frame.
type Message struct {
	Header  Header
	Payload []byte
}

// Decode strips the session envelope from payload and parses the header.
func Decode(payload []byte) (Message, error) {
	body, err := StripEnvelope(payload)
	if err != nil {
		return Message{}, err
	}
	h, rest, err := ParseHeader(body)
	if err != nil {
		return Message{}, err
	}
	return Message{Header: h, Payload: rest}, nil
}

// ParseHeader dispatches on the magic of a frame body and decodes the
// header. The returned payload is a copy of the bytes after the fixed fields.
func ParseHeader(body []byte) (Header, []byte, error) {
	if len(body) < len(MagicSMB2) {
		return Header{}, nil, ErrExpectedByte
	}

	var magic [4]byte
	copy(magic[:], body)
	switch magic {
	case MagicSMB2:
		return parseSMB2(magic, body)
	case MagicSMB1:
		return Header{}, nil, ErrUnsupportedVersion
	default:
		return Header{}, nil, fmt.Errorf("%w: % x", ErrInvalidMagic, magic[:])
	}
}

func parseSMB2(magic [4]byte, body []byte) (Header, []byte, error) {
	if len(body) < preambleLen {
		return Header{}, nil, ErrExpectedByte
	}
	hlen := binary.LittleEndian.Uint16(body[4:preambleLen])
	if int(hlen) > len(body) {
		return Header{}, nil, fmt.Errorf("%w: header length %d, frame has %d", ErrInvalidMessageLength, hlen, len(body))
	}

	// Field reads are confined to what the header length declares.
	r := fieldReader{buf: body[preambleLen:max(int(hlen), preambleLen)]}
	h := Header{
		Magic:         magic,
		HeaderLen:     hlen,
		CreditCharge:  r.u16(),
		Status:        r.u32(),
		Command:       Command(r.u16()),
		CreditReqResp: r.u16(),
		Flags:         Flags(r.u32()),
		ChainOffset:   r.u32(),
		MessageID:     r.u64(),
		ProcessID:     r.u32(),
		TreeID:        r.u32(),
		SessionID:     r.u64(),
		Signature:     r.u128(),
	}
	if r.short {
		return Header{}, nil, ErrExpectedByte
	}

	var err error
	if h.Command, err = ParseCommand(uint16(h.Command)); err != nil {
		return Header{}, nil, err
	}
	if h.Flags, err = ParseFlags(uint32(h.Flags)); err != nil {
		return Header{}, nil, err
	}

	rest := body[preambleLen+r.off:]
	payload := make([]byte, len(rest))
	copy(payload, rest)
	return h, payload, nil
}

// IsResponse reports whether the server set the response flag.
func (h Header) IsResponse() bool { return h.Flags.Has(FlagServerToRedir) }

// IsAsync reports whether this is an async header.
func (h Header) IsAsync() bool { return h.Flags.Has(FlagAsyncCommand) }

// IsSigned reports whether the message claims a signature.
func (h Header) IsSigned() bool { return h.Flags.Has(FlagSigned) }

// IsRelated reports whether the message is a related compound operation.
func (h Header) IsRelated() bool { return h.Flags.Has(FlagRelatedOps) }

// IsChained reports whether another header follows in the same frame.
func (h Header) IsChained() bool { return h.ChainOffset != 0 }

// AsyncID returns the async id overlaying ProcessID and TreeID.
func (h Header) AsyncID() uint64 {
	return uint64(h.TreeID)<<32 | uint64(h.ProcessID)
}

// String renders the header on one line. The signature is shown in wire
// order and only when the message is signed.
func (h Header) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s credit=%d/%d status=0x%08x flags=%s mid=%d",
		h.Command, h.CreditCharge, h.CreditReqResp, h.Status, h.Flags, h.MessageID)
	if h.IsAsync() {
		fmt.Fprintf(&sb, " async=0x%016x", h.AsyncID())
	} else {
		fmt.Fprintf(&sb, " pid=0x%08x tid=%d", h.ProcessID, h.TreeID)
	}
	fmt.Fprintf(&sb, " sid=0x%016x", h.SessionID)
	if h.IsChained() {
		fmt.Fprintf(&sb, " next=%d", h.ChainOffset)
	}
	if h.IsSigned() {
		sb.WriteString(" sig=")
		sb.WriteString(hex.EncodeToString(h.Signature.AppendLE(nil)))
	}
	return sb.String()
}

// fieldReader reads little-endian fields from a bounded buffer. After the
// first short read every later read returns zero and short stays set.
type fieldReader struct {
	buf   []byte
	off   int
	short bool
}

func (r *fieldReader) take(n int) []byte {
	if r.short || r.off+n > len(r.buf) {
		r.short = true
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *fieldReader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *fieldReader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *fieldReader) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *fieldReader) u128() core.Uint128 {
	if b := r.take(16); b != nil {
		return core.Uint128FromLE(b)
	}
	return core.Uint128{}
}
