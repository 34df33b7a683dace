//go:build !cgo

package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNativeCompileRejectsUnsupported(t *testing.T) {
	for _, expr := range []string{
		"host example.com",
		"host 2001:db8::1",
		"net 10.0.0.1",
		"port http",
		"host 10.0.0.1 or host 10.0.0.2",
		"not tcp",
		"bogus",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := Compile(expr)
			assert.ErrorIs(t, err, ErrSyntax)
		})
	}
}
