// Package decoder summarises the L3-L4 headers of a captured segment.
package decoder

import "firestige.xyz/smbtrace/internal/core"

// Decoder describes the network and transport headers of a byte block.
type Decoder interface {
	Describe(block core.ByteBlock) (core.IPHeader, core.TransportHeader, error)
}

// New returns the IPv4/TCP decoder.
func New() Decoder {
	return headerDecoder{}
}

type headerDecoder struct{}

// Describe decodes block.NetworkHeader as IPv4 and block.TransportHeader
// according to the IP protocol field.
func (headerDecoder) Describe(block core.ByteBlock) (core.IPHeader, core.TransportHeader, error) {
	ip, err := decodeIP(block.NetworkHeader)
	if err != nil {
		return core.IPHeader{}, core.TransportHeader{}, err
	}
	transport, err := decodeTransport(block.TransportHeader, ip.Protocol)
	if err != nil {
		return ip, core.TransportHeader{}, err
	}
	return ip, transport, nil
}
