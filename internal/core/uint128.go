package core

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// Uint128 is an unsigned 128-bit integer.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// Uint128From64 widens v.
func Uint128From64(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// ParseUint128 parses a base-10 unsigned integer that fits in 128 bits.
func ParseUint128(s string) (Uint128, error) {
	if s == "" {
		return Uint128{}, ErrInvalidUint128
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return Uint128{}, fmt.Errorf("%w: %q", ErrInvalidUint128, s)
		}
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.BitLen() > 128 {
		return Uint128{}, fmt.Errorf("%w: %q", ErrInvalidUint128, s)
	}
	lo := new(big.Int).And(n, new(big.Int).SetUint64(^uint64(0)))
	hi := new(big.Int).Rsh(n, 64)
	return Uint128{Hi: hi.Uint64(), Lo: lo.Uint64()}, nil
}

// Uint128FromLE decodes 16 little-endian bytes.
func Uint128FromLE(b []byte) Uint128 {
	_ = b[15]
	return Uint128{
		Lo: binary.LittleEndian.Uint64(b[0:8]),
		Hi: binary.LittleEndian.Uint64(b[8:16]),
	}
}

// AppendLE appends the 16-byte little-endian form of u to b.
func (u Uint128) AppendLE(b []byte) []byte {
	b = binary.LittleEndian.AppendUint64(b, u.Lo)
	return binary.LittleEndian.AppendUint64(b, u.Hi)
}

// IsZero reports whether u == 0.
func (u Uint128) IsZero() bool {
	return u.Hi == 0 && u.Lo == 0
}

// Big returns u as a big.Int.
func (u Uint128) Big() *big.Int {
	n := new(big.Int).SetUint64(u.Hi)
	n.Lsh(n, 64)
	return n.Or(n, new(big.Int).SetUint64(u.Lo))
}

// String returns the decimal form of u.
func (u Uint128) String() string {
	if u.Hi == 0 {
		return fmt.Sprintf("%d", u.Lo)
	}
	return u.Big().String()
}

// Hex returns u as 32 lower-case hex digits, most significant first.
func (u Uint128) Hex() string {
	return fmt.Sprintf("%016x%016x", u.Hi, u.Lo)
}

// MarshalText implements encoding.TextMarshaler.
func (u Uint128) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}
