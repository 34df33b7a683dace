//go:build cgo

package filter

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// snapLen is the match length returned by compiled programs.
const snapLen = 65535

// compileExpr compiles expr with libpcap for bare IPv4 packets.
// LINKTYPE_IPV4 equals DLT_IPV4, so libpcap takes it as is.
func compileExpr(expr string) ([]bpf.Instruction, error) {
	pcapBpf, err := pcap.CompileBPFFilter(layers.LinkTypeIPv4, snapLen, expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	raw := make([]bpf.RawInstruction, len(pcapBpf))
	for i, ins := range pcapBpf {
		raw[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	prog, ok := bpf.Disassemble(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %q compiles to instructions the VM cannot run", ErrSyntax, expr)
	}
	return prog, nil
}
