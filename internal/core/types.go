// Package core defines core types with zero external dependencies.
package core

import (
	"net/netip"
	"time"

	"firestige.xyz/smbtrace/internal/core/tcpflags"
)

// CaptureRecord is one parsed transcript header line.
type CaptureRecord struct {
	Time    time.Time // Time of day only, the date part is zero
	Src     netip.AddrPort
	Dst     netip.AddrPort
	Flags   tcpflags.Flags
	Seq     *uint32 // nil when the line carries no seq key
	Ack     *uint32
	Win     uint16
	Options *string // verbatim, brackets included
	Length  Uint128
}

// ByteBlock holds the three owned slices of one reassembled hex dump.
type ByteBlock struct {
	NetworkHeader   []byte
	TransportHeader []byte
	Payload         []byte
}

// Len returns the total number of bytes in the block.
func (b ByteBlock) Len() int {
	return len(b.NetworkHeader) + len(b.TransportHeader) + len(b.Payload)
}

// IPHeader summarises the L3 header of a segment.
type IPHeader struct {
	Version  uint8
	SrcIP    netip.Addr
	DstIP    netip.Addr
	Protocol uint8 // TCP=6, UDP=17
	TTL      uint8
	TotalLen uint16
}

// TransportHeader summarises the L4 header of a segment.
type TransportHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
	// TCP-specific fields
	TCPFlags tcpflags.Flags
	SeqNum   uint32
	AckNum   uint32
	Window   uint16
}
