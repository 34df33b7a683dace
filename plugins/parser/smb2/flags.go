package smb2

import (
	"fmt"
	"strings"
)

// Flags is the SMB2 header flags field.
type Flags uint32

const (
	FlagServerToRedir Flags = 0x00000001 // response
	FlagAsyncCommand  Flags = 0x00000002
	FlagRelatedOps    Flags = 0x00000004
	FlagSigned        Flags = 0x00000008
	FlagPriorityMask  Flags = 0x00000070 // 3.1.1 only, value 0..7
	FlagDfsOps        Flags = 0x10000000
	FlagReplayOps     Flags = 0x20000000

	flagsDefined = FlagServerToRedir | FlagAsyncCommand | FlagRelatedOps |
		FlagSigned | FlagPriorityMask | FlagDfsOps | FlagReplayOps
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagServerToRedir, "ServerToRedir"},
	{FlagAsyncCommand, "AsyncCommand"},
	{FlagRelatedOps, "RelatedOps"},
	{FlagSigned, "Signed"},
	{FlagDfsOps, "DfsOps"},
	{FlagReplayOps, "ReplayOps"},
}

// ParseFlags rejects any bit outside the defined set.
func ParseFlags(v uint32) (Flags, error) {
	if undefined := Flags(v) &^ flagsDefined; undefined != 0 {
		return 0, fmt.Errorf("%w: undefined bits 0x%08x", ErrInvalidFlags, uint32(undefined))
	}
	return Flags(v), nil
}

// Has reports whether every bit of f2 is set in f.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// Priority returns the 3-bit I/O priority value.
func (f Flags) Priority() uint8 { return uint8((f & FlagPriorityMask) >> 4) }

func (f Flags) String() string {
	if f == 0 {
		return "0"
	}
	var parts []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			parts = append(parts, fn.name)
		}
	}
	if p := f.Priority(); p != 0 {
		parts = append(parts, fmt.Sprintf("Priority(%d)", p))
	}
	if undefined := f &^ flagsDefined; undefined != 0 {
		parts = append(parts, fmt.Sprintf("0x%08x", uint32(undefined)))
	}
	return strings.Join(parts, "|")
}

// MarshalText renders the flag names joined by '|'.
func (f Flags) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}
