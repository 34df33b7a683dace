// Package transcript rebuilds captured segments from an ASCII tcpdump transcript.
package transcript

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"firestige.xyz/smbtrace/internal/core"
	"firestige.xyz/smbtrace/internal/core/tcpflags"
)

// timeLayout accepts an optional fractional part after the seconds.
const timeLayout = "15:04:05"

// ParseHeader parses one header line of the form
//
//	<HH:MM:SS[.frac]> IP <src>.<port> > <dst>.<port>: Flags [..], seq n[:m], ack n, win n, options [..], length n
func ParseHeader(line string) (core.CaptureRecord, error) {
	head, tail, ok := strings.Cut(line, ": ")
	if !ok {
		return core.CaptureRecord{}, ErrSyntax
	}

	ts, src, dst, err := splitHead(head)
	if err != nil {
		return core.CaptureRecord{}, err
	}

	rec := core.CaptureRecord{}
	if rec.Time, err = time.Parse(timeLayout, ts); err != nil {
		return core.CaptureRecord{}, fmt.Errorf("%w: %q", ErrInvalidTimeFmt, ts)
	}
	if rec.Src, err = parseEndpoint(src); err != nil {
		return core.CaptureRecord{}, err
	}
	if rec.Dst, err = parseEndpoint(dst); err != nil {
		return core.CaptureRecord{}, err
	}

	if err := parseTail(tail, &rec); err != nil {
		return core.CaptureRecord{}, err
	}
	return rec, nil
}

// splitHead checks the "<time> IP <src> > <dst>" shape.
func splitHead(head string) (ts, src, dst string, err error) {
	fields := strings.Fields(head)
	// Literals are checked in order, so a short line fails only once
	// every token present so far is valid.
	if len(fields) < 2 {
		return "", "", "", ErrSyntax
	}
	if fields[1] != "IP" {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidProtocol, fields[1])
	}
	if len(fields) < 4 {
		return "", "", "", ErrSyntax
	}
	if fields[3] != ">" {
		return "", "", "", fmt.Errorf("%w: expected '>' instead of %q", ErrUnexpectedToken, fields[3])
	}
	if len(fields) < 5 {
		return "", "", "", ErrSyntax
	}
	return fields[0], fields[2], fields[4], nil
}

// parseEndpoint reads tcpdump's "a.b.c.d.port" notation. The last '.' is
// the port delimiter; the rewritten copy is handed to netip.
func parseEndpoint(s string) (netip.AddrPort, error) {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return netip.AddrPort{}, fmt.Errorf("%w: %q", ErrInvalidSocketAddr, s)
	}
	ap, err := netip.ParseAddrPort(s[:i] + ":" + s[i+1:])
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: %q", ErrInvalidSocketAddr, s)
	}
	return ap, nil
}

// parseTail reads the comma separated "key value" list after ": ".
func parseTail(tail string, rec *core.CaptureRecord) error {
	var haveFlags, haveWin, haveLength bool

	for _, entry := range strings.Split(tail, ", ") {
		key, value, ok := strings.Cut(entry, " ")
		if !ok {
			return fmt.Errorf("%w: entry %q has no value", ErrSyntax, entry)
		}

		switch key {
		case "Flags":
			flags, err := tcpflags.Parse(value)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrSyntax, err)
			}
			rec.Flags, haveFlags = flags, true
		case "seq":
			// A range "first:last" keeps the first number only.
			first, _, _ := strings.Cut(value, ":")
			seq, err := parseUint32(first)
			if err != nil {
				return err
			}
			rec.Seq = &seq
		case "ack":
			ack, err := parseUint32(value)
			if err != nil {
				return err
			}
			rec.Ack = &ack
		case "win":
			win, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return fmt.Errorf("%w: win %q", ErrSyntax, value)
			}
			rec.Win, haveWin = uint16(win), true
		case "options":
			options := value
			rec.Options = &options
		case "length":
			length, err := core.ParseUint128(value)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrSyntax, err)
			}
			rec.Length, haveLength = length, true
		default:
			return fmt.Errorf("%w: unexpected key %q", ErrUnexpectedToken, key)
		}
	}

	if !haveFlags || !haveWin || !haveLength {
		return ErrMissingToken
	}
	return nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a 32-bit number", ErrSyntax, s)
	}
	return uint32(v), nil
}
