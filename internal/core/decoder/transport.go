// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/smbtrace/internal/core"
	"firestige.xyz/smbtrace/internal/core/tcpflags"
)

const (
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20

	// Protocol numbers
	protocolTCP = 6
	protocolUDP = 17
)

// decodeTransport decodes the transport header selected by protocol.
func decodeTransport(data []byte, protocol uint8) (core.TransportHeader, error) {
	switch protocol {
	case protocolTCP:
		return decodeTCP(data)
	case protocolUDP:
		return decodeUDP(data)
	default:
		return core.TransportHeader{Protocol: protocol}, nil
	}
}

// decodeUDP decodes UDP header.
func decodeUDP(data []byte) (core.TransportHeader, error) {
	if len(data) < udpHeaderLen {
		return core.TransportHeader{}, core.ErrPacketTooShort
	}
	return core.TransportHeader{
		Protocol: protocolUDP,
		SrcPort:  binary.BigEndian.Uint16(data[0:2]),
		DstPort:  binary.BigEndian.Uint16(data[2:4]),
	}, nil
}

// decodeTCP decodes TCP header.
func decodeTCP(data []byte) (core.TransportHeader, error) {
	if len(data) < tcpHeaderMinLen {
		return core.TransportHeader{}, core.ErrPacketTooShort
	}

	transport := core.TransportHeader{
		Protocol: protocolTCP,
		SrcPort:  binary.BigEndian.Uint16(data[0:2]),
		DstPort:  binary.BigEndian.Uint16(data[2:4]),
		SeqNum:   binary.BigEndian.Uint32(data[4:8]),
		AckNum:   binary.BigEndian.Uint32(data[8:12]),
		Window:   binary.BigEndian.Uint16(data[14:16]),
	}

	// Data offset is in 32-bit words
	headerLen := int(data[12]>>4) * 4
	if headerLen < tcpHeaderMinLen || len(data) < headerLen {
		return transport, core.ErrPacketTooShort
	}

	// Byte 13 carries CWR ECE URG ACK PSH RST SYN FIN, the same bit order as tcpflags.
	transport.TCPFlags = tcpflags.Flags(data[13])

	return transport, nil
}
