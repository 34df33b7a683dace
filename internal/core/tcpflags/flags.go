// Package tcpflags implements the TCP control-bit set used by transcript headers.
//
// The textual form is the one tcpdump prints inside "Flags [...]": one
// character per set bit, always in the order F S R P . U E C.
package tcpflags

import (
	"errors"
	"fmt"
	"strings"
)

// Flags is a set over the eight TCP control bits.
type Flags uint8

// TCP control bits.
const (
	FIN Flags = 1 << iota
	SYN
	RST
	PSH
	ACK
	URG
	ECE
	CWR
)

// ErrInvalidFlagChar is matched by every *InvalidFlagCharError.
var ErrInvalidFlagChar = errors.New("tcpflags: invalid flag char")

// InvalidFlagCharError reports the first character Parse could not map.
type InvalidFlagCharError struct {
	Char rune
}

func (e *InvalidFlagCharError) Error() string {
	return fmt.Sprintf("tcpflags: invalid flag char %q", e.Char)
}

// Is makes errors.Is(err, ErrInvalidFlagChar) hold.
func (e *InvalidFlagCharError) Is(target error) bool {
	return target == ErrInvalidFlagChar
}

// canonical lists the single bits in text order.
var canonical = [8]struct {
	flag Flags
	char byte
}{
	{FIN, 'F'},
	{SYN, 'S'},
	{RST, 'R'},
	{PSH, 'P'},
	{ACK, '.'},
	{URG, 'U'},
	{ECE, 'E'},
	{CWR, 'C'},
}

// FromChar maps one flag character to its bit.
func FromChar(c rune) (Flags, error) {
	for _, f := range canonical {
		if rune(f.char) == c {
			return f.flag, nil
		}
	}
	return 0, &InvalidFlagCharError{Char: c}
}

// Parse reads a tcpdump flag string such as "[S.]". Brackets are ignored.
func Parse(s string) (Flags, error) {
	var flags Flags
	for _, c := range s {
		if c == '[' || c == ']' {
			continue
		}
		f, err := FromChar(c)
		if err != nil {
			return 0, err
		}
		flags.Set(f)
	}
	return flags, nil
}

// Set sets every bit of flag.
func (f *Flags) Set(flag Flags) { *f |= flag }

// Unset clears every bit of flag.
func (f *Flags) Unset(flag Flags) { *f &^= flag }

// IsSet reports whether all bits of flag are set.
func (f Flags) IsSet(flag Flags) bool { return f&flag == flag }

// IsEmpty reports whether no bit is set.
func (f Flags) IsEmpty() bool { return f == 0 }

// And returns the bits set in both f and o.
func (f Flags) And(o Flags) Flags { return f & o }

// Or returns the bits set in either f or o.
func (f Flags) Or(o Flags) Flags { return f | o }

// Xor returns the bits set in exactly one of f and o.
func (f Flags) Xor(o Flags) Flags { return f ^ o }

// Not returns the complement of f.
func (f Flags) Not() Flags { return ^f }

// String returns the canonical text, one character per set bit.
func (f Flags) String() string {
	var b strings.Builder
	for _, c := range canonical {
		if f.IsSet(c.flag) {
			b.WriteByte(c.char)
		}
	}
	return b.String()
}

// Binary returns the bit pattern as eight binary digits.
func (f Flags) Binary() string {
	return fmt.Sprintf("%08b", uint8(f))
}

// MarshalText implements encoding.TextMarshaler.
func (f Flags) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}
