package prettify

import (
	"fmt"
	"net/netip"
)

// Direction classifies a segment against a remembered client/server pair.
type Direction uint8

const (
	Request Direction = iota
	Response
	External
)

var directionNames = [...]string{
	Request:  "REQUEST",
	Response: "RESPONSE",
	External: "EXTERNAL",
}

var directionColors = [...]string{
	Request:  "33",
	Response: "36",
	External: "30",
}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// Colored returns the name wrapped in the direction's ANSI color.
func (d Direction) Colored() string {
	if int(d) >= len(directionColors) {
		return d.String()
	}
	return "\x1b[1;" + directionColors[d] + "m" + d.String() + ansiReset
}

// Format renders d, with color when asked.
func (d Direction) Format(color bool) string {
	if color {
		return d.Colored()
	}
	return d.String()
}

// Dynamic is the client/server pair a capture is read against.
type Dynamic struct {
	Client netip.Addr
	Server netip.Addr
}

// NewDynamic fixes the pair, usually from the first segment seen.
func NewDynamic(client, server netip.Addr) Dynamic {
	return Dynamic{Client: client, Server: server}
}

// Direction classifies a segment from src to dst.
func (d Dynamic) Direction(src, dst netip.Addr) Direction {
	switch {
	case src == d.Client && dst == d.Server:
		return Request
	case src == d.Server && dst == d.Client:
		return Response
	default:
		return External
	}
}

// ParseDirection maps a direction name back to its value.
func ParseDirection(s string) (Direction, bool) {
	for d, name := range directionNames {
		if name == s {
			return Direction(d), true
		}
	}
	return External, false
}
