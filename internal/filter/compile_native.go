//go:build !cgo

package filter

// Without cgo there is no libpcap, so a subset of the tcpdump grammar is
// compiled here: a conjunction of host, net, port and protocol terms.

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"golang.org/x/net/bpf"
)

// Offsets into a raw IPv4 packet (no link layer).
const (
	offVersion  = 0
	offProtocol = 9
	offSrcIP    = 12
	offDstIP    = 16

	// Relative to the transport header, after LoadMemShift.
	offSrcPort = 0
	offDstPort = 2

	acceptLen = 0xFFFF
)

type direction uint8

const (
	dirAny direction = iota
	dirSrc
	dirDst
)

// compileExpr compiles expr for raw IPv4 packets.
func compileExpr(expr string) ([]bpf.Instruction, error) {
	prims, err := parse(expr)
	if err != nil {
		return nil, err
	}
	return compile(prims)
}

// primitive is one parsed term of the expression.
type primitive struct {
	kind   string // host, net, port, proto
	dir    direction
	addr   uint32
	mask   uint32
	port   uint16
	proto  uint8
	source string
}

// parse reads a conjunction of tcpdump-style primitives:
//
//	[src|dst] host A | [src|dst] net A/N | [src|dst] port N | [src|dst] A | ip | tcp | udp
//
// joined by optional "and" / "&&".
func parse(expr string) ([]primitive, error) {
	tokens := strings.Fields(strings.ToLower(expr))
	var out []primitive

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok {
		case "and", "&&", "ip":
			continue
		case "tcp":
			out = append(out, primitive{kind: "proto", proto: 6, source: tok})
			continue
		case "udp":
			out = append(out, primitive{kind: "proto", proto: 17, source: tok})
			continue
		case "or", "||", "not", "!", "(", ")":
			return nil, fmt.Errorf("%w: %q is not supported", ErrSyntax, tok)
		}

		dir := dirAny
		if tok == "src" || tok == "dst" {
			if tok == "src" {
				dir = dirSrc
			} else {
				dir = dirDst
			}
			i++
			if i >= len(tokens) {
				return nil, fmt.Errorf("%w: %q needs an argument", ErrSyntax, tok)
			}
			tok = tokens[i]
		}

		kind := tok
		switch kind {
		case "host", "net", "port":
			i++
			if i >= len(tokens) {
				return nil, fmt.Errorf("%w: %q needs an argument", ErrSyntax, kind)
			}
		default:
			if dir == dirAny {
				return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, tok)
			}
			// "src 10.0.0.1" is short for "src host 10.0.0.1".
			kind = "host"
		}

		p, err := parseArg(kind, dir, tokens[i])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func parseArg(kind string, dir direction, arg string) (primitive, error) {
	p := primitive{kind: kind, dir: dir, source: arg}
	switch kind {
	case "host":
		addr, err := netip.ParseAddr(arg)
		if err != nil || !addr.Is4() {
			return p, fmt.Errorf("%w: %q is not an IPv4 address", ErrSyntax, arg)
		}
		p.addr, p.mask = addrUint32(addr), 0xFFFFFFFF
	case "net":
		prefix, err := netip.ParsePrefix(arg)
		if err != nil || !prefix.Addr().Is4() {
			return p, fmt.Errorf("%w: %q is not an IPv4 network", ErrSyntax, arg)
		}
		prefix = prefix.Masked()
		p.addr = addrUint32(prefix.Addr())
		p.mask = ^uint32(0) << (32 - prefix.Bits())
		if prefix.Bits() == 0 {
			p.mask = 0
		}
	case "port":
		port, err := strconv.ParseUint(arg, 10, 16)
		if err != nil {
			return p, fmt.Errorf("%w: %q is not a port", ErrSyntax, arg)
		}
		p.port = uint16(port)
	}
	return p, nil
}

func addrUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

// program collects instructions; every failed test jumps to the final drop.
type program struct {
	insns []bpf.Instruction
	drops []int
}

func (p *program) emit(ins ...bpf.Instruction) {
	p.insns = append(p.insns, ins...)
}

// dropUnless compares A with val and jumps to drop when they differ.
func (p *program) dropUnless(val uint32) {
	p.drops = append(p.drops, len(p.insns))
	p.emit(bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: val})
}

// either tests a load at two places: the first match skips the second test.
func (p *program) either(loadA, loadB []bpf.Instruction, val uint32) {
	p.emit(loadA...)
	p.emit(bpf.JumpIf{Cond: bpf.JumpEqual, Val: val, SkipTrue: uint8(len(loadB) + 1)})
	p.emit(loadB...)
	p.dropUnless(val)
}

func (p *program) assemble() ([]bpf.Instruction, error) {
	accept := len(p.insns)
	drop := accept + 1
	for _, i := range p.drops {
		skip := drop - i - 1
		if skip > 0xFF {
			return nil, fmt.Errorf("%w: expression too long", ErrSyntax)
		}
		j := p.insns[i].(bpf.JumpIf)
		j.SkipTrue = uint8(skip)
		p.insns[i] = j
	}
	return append(p.insns, bpf.RetConstant{Val: acceptLen}, bpf.RetConstant{Val: 0}), nil
}

// compile turns primitives into a program over raw IPv4 packets.
func compile(prims []primitive) ([]bpf.Instruction, error) {
	var p program

	p.emit(
		bpf.LoadAbsolute{Off: offVersion, Size: 1},
		bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: 0xF0},
	)
	p.dropUnless(0x40)

	for _, prim := range prims {
		switch prim.kind {
		case "proto":
			p.emit(bpf.LoadAbsolute{Off: offProtocol, Size: 1})
			p.dropUnless(uint32(prim.proto))
		case "host", "net":
			loadSrc := addrLoad(offSrcIP, prim.mask)
			loadDst := addrLoad(offDstIP, prim.mask)
			switch prim.dir {
			case dirSrc:
				p.emit(loadSrc...)
				p.dropUnless(prim.addr)
			case dirDst:
				p.emit(loadDst...)
				p.dropUnless(prim.addr)
			default:
				p.either(loadSrc, loadDst, prim.addr)
			}
		case "port":
			p.emit(bpf.LoadMemShift{Off: offVersion})
			loadSrc := []bpf.Instruction{bpf.LoadIndirect{Off: offSrcPort, Size: 2}}
			loadDst := []bpf.Instruction{bpf.LoadIndirect{Off: offDstPort, Size: 2}}
			switch prim.dir {
			case dirSrc:
				p.emit(loadSrc...)
				p.dropUnless(uint32(prim.port))
			case dirDst:
				p.emit(loadDst...)
				p.dropUnless(uint32(prim.port))
			default:
				p.either(loadSrc, loadDst, uint32(prim.port))
			}
		}
	}
	return p.assemble()
}

func addrLoad(off uint32, mask uint32) []bpf.Instruction {
	load := []bpf.Instruction{bpf.LoadAbsolute{Off: off, Size: 4}}
	if mask != 0xFFFFFFFF {
		load = append(load, bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: mask})
	}
	return load
}
