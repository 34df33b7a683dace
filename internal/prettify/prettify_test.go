package prettify

import (
	"bytes"
	"net/netip"
	"testing"
)

type octet byte

func TestBytes(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		wrap  int
		color bool
		want  string
	}{
		{"empty", nil, 16, false, ""},
		{"graphic", []byte("SMB!"), 16, false, "\n  SMB!"},
		{"nul and escape", []byte{'a', 0, 0xfe, ' '}, 16, false, "\n  a\\0\\xFE\\x20"},
		{"wrap", []byte("abcdef"), 4, false, "\n  abcd\n  ef"},
		{"no wrap", []byte("abcdef"), 0, false, "\n  abcdef"},
		{"color", []byte{0, 1}, 16, true, "\n  \x1b[1;35m\\0\x1b[0m\x1b[1;31m\\x01\x1b[0m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Bytes(tt.data, tt.wrap, tt.color); got != tt.want {
				t.Errorf("Bytes() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBytesNamedByteType(t *testing.T) {
	if got := Bytes([]octet{'o', 'k'}, 16, false); got != "\n  ok" {
		t.Errorf("Bytes() = %q", got)
	}
}

func TestDynamicDirection(t *testing.T) {
	client := netip.MustParseAddr("10.0.0.2")
	server := netip.MustParseAddr("10.0.0.1")
	other := netip.MustParseAddr("10.0.0.9")
	d := NewDynamic(client, server)

	tests := []struct {
		src, dst netip.Addr
		want     Direction
	}{
		{client, server, Request},
		{server, client, Response},
		{client, other, External},
		{other, server, External},
		{client, client, External},
	}
	for _, tt := range tests {
		if got := d.Direction(tt.src, tt.dst); got != tt.want {
			t.Errorf("Direction(%s, %s) = %s, want %s", tt.src, tt.dst, got, tt.want)
		}
	}
}

func TestDirectionFormat(t *testing.T) {
	if got := Response.Format(false); got != "RESPONSE" {
		t.Errorf("Format(false) = %q", got)
	}
	if got := Request.Format(true); got != "\x1b[1;33mREQUEST\x1b[0m" {
		t.Errorf("Format(true) = %q", got)
	}
	if got := Direction(9).String(); got != "Direction(9)" {
		t.Errorf("String() = %q", got)
	}
}

func TestColorMode(t *testing.T) {
	var buf bytes.Buffer

	if !ColorAlways.Enabled(&buf) {
		t.Error("always should enable color")
	}
	if ColorNever.Enabled(&buf) {
		t.Error("never should disable color")
	}
	if ColorAuto.Enabled(&buf) {
		t.Error("auto should disable color for a buffer")
	}

	if m, err := ParseColorMode(""); err != nil || m != ColorAuto {
		t.Errorf("ParseColorMode(\"\") = %q, %v", m, err)
	}
	if _, err := ParseColorMode("rainbow"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestParseDirection(t *testing.T) {
	for _, d := range []Direction{Request, Response, External} {
		got, ok := ParseDirection(d.String())
		if !ok || got != d {
			t.Errorf("ParseDirection(%q) = %v, %v", d.String(), got, ok)
		}
	}
	if _, ok := ParseDirection("SIDEWAYS"); ok {
		t.Error("ParseDirection accepted an unknown name")
	}
}
