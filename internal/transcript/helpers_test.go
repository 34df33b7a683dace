package transcript

import (
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// buildSegment serializes an IPv4/TCP segment carrying payload.
func buildSegment(t *testing.T, srcPort, dstPort uint16, payload []byte) []byte {
	t.Helper()

	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     100,
		Ack:     1,
		PSH:     true,
		ACK:     true,
		Window:  502,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("SetNetworkLayerForChecksum: %v", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, tcp, gopacket.Payload(payload)); err != nil {
		t.Fatalf("SerializeLayers: %v", err)
	}
	return buf.Bytes()
}

// hexDump renders b the way tcpdump -x does: a tab, an offset label and
// up to eight 4-digit groups per line.
func hexDump(b []byte) string {
	var sb strings.Builder
	for off := 0; off < len(b); off += 16 {
		end := min(off+16, len(b))
		fmt.Fprintf(&sb, "\t0x%04x: ", off)
		for i := off; i < end; i += 2 {
			if i+1 < end {
				fmt.Fprintf(&sb, " %02x%02x", b[i], b[i+1])
			} else {
				fmt.Fprintf(&sb, " %02x", b[i])
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
