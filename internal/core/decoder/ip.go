// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"net/netip"

	"firestige.xyz/smbtrace/internal/core"
)

const ipv4HeaderMinLen = 20

// decodeIP decodes an IP header. Only IPv4 reaches this point in a
// transcript, other versions are reported as unsupported.
func decodeIP(data []byte) (core.IPHeader, error) {
	if len(data) < 1 {
		return core.IPHeader{}, core.ErrPacketTooShort
	}

	// Check IP version (first 4 bits)
	switch data[0] >> 4 {
	case 4:
		return decodeIPv4(data)
	default:
		return core.IPHeader{}, core.ErrUnsupportedProto
	}
}

// decodeIPv4 decodes IPv4 header.
func decodeIPv4(data []byte) (core.IPHeader, error) {
	if len(data) < ipv4HeaderMinLen {
		return core.IPHeader{}, core.ErrPacketTooShort
	}

	// IHL is in 32-bit words
	headerLen := int(data[0]&0x0F) * 4
	if headerLen < ipv4HeaderMinLen || len(data) < headerLen {
		return core.IPHeader{}, core.ErrPacketTooShort
	}

	ip := core.IPHeader{
		Version:  4,
		TotalLen: binary.BigEndian.Uint16(data[2:4]),
		TTL:      data[8],
		Protocol: data[9],
	}

	// Addresses at offsets 12 and 16
	ip.SrcIP = netip.AddrFrom4([4]byte(data[12:16]))
	ip.DstIP = netip.AddrFrom4([4]byte(data[16:20]))

	return ip, nil
}

// isIPFragment checks if an IPv4 header describes a fragment.
func isIPFragment(ipData []byte) bool {
	if len(ipData) < ipv4HeaderMinLen {
		return false
	}
	flagsOffset := binary.BigEndian.Uint16(ipData[6:8])
	moreFragments := (flagsOffset & 0x2000) != 0 // MF flag
	fragmentOffset := flagsOffset & 0x1FFF
	return moreFragments || fragmentOffset != 0
}

// IsFragment reports whether the segment's IPv4 header marks it as a fragment.
func IsFragment(block core.ByteBlock) bool {
	return isIPFragment(block.NetworkHeader)
}
