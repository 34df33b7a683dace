// Package prettify renders decoded traffic for humans.
package prettify

import (
	"fmt"
	"strings"
)

const (
	ansiReset   = "\x1b[0m"
	ansiNul     = "\x1b[1;35m"
	ansiEscaped = "\x1b[1;31m"
)

// Bytes renders data as an escaped dump: graphic ASCII as is, NUL as \0
// and everything else (space included) as \xNN. A newline and a two-space
// indent precede every wrap bytes, starting with the first one.
func Bytes[T ~byte](data []T, wrap int, color bool) string {
	if wrap <= 0 {
		wrap = len(data) + 1
	}

	var sb strings.Builder
	sb.Grow(len(data) * 2)
	for i, v := range data {
		c := byte(v)
		if i%wrap == 0 {
			sb.WriteString("\n  ")
		}

		switch {
		case c > ' ' && c < 0x7f:
			sb.WriteByte(c)
		case c == 0:
			writeColored(&sb, color, ansiNul, `\0`)
		default:
			writeColored(&sb, color, ansiEscaped, fmt.Sprintf(`\x%02X`, c))
		}
	}
	return sb.String()
}

func writeColored(sb *strings.Builder, color bool, code, s string) {
	if !color {
		sb.WriteString(s)
		return
	}
	sb.WriteString(code)
	sb.WriteString(s)
	sb.WriteString(ansiReset)
}
