// Package core defines core data structures with zero external dependencies.
package core

import (
	"net/netip"
	"time"
)

// CapturedSegment pairs one header line with the hex dump that follows it.
type CapturedSegment struct {
	Record CaptureRecord
	Block  ByteBlock
}

// Raw returns a fresh copy of the segment as it was on the wire
// (network header, transport header, payload).
func (s *CapturedSegment) Raw() []byte {
	raw := make([]byte, 0, s.Block.Len())
	raw = append(raw, s.Block.NetworkHeader...)
	raw = append(raw, s.Block.TransportHeader...)
	return append(raw, s.Block.Payload...)
}

// Payload type names carried by OutputRecord.PayloadType.
const (
	PayloadTypeNone = "none" // segment without application bytes
	PayloadTypeRaw  = "raw"  // no parser claimed the payload
)

// OutputRecord is the final output sent to reporters.
type OutputRecord struct {
	// Envelope
	RunID     string
	Index     int
	Direction string
	Timestamp time.Time

	// Network context
	SrcIP   netip.Addr
	DstIP   netip.Addr
	SrcPort uint16
	DstPort uint16

	IP        IPHeader
	Transport TransportHeader

	Segment CapturedSegment

	// Labels set by parsers
	Labels Labels

	// Typed payload produced by the claiming parser
	PayloadType string // e.g. "smb2", "raw", "none"
	Payload     any    // Concrete type determined by PayloadType
	ParseError  error  // Set when a parser claimed the payload and failed
}
