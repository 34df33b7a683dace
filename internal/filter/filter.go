// Package filter selects captured segments with a tcpdump filter expression
// compiled to classic BPF and run over the raw IPv4 bytes.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/bpf"

	"firestige.xyz/smbtrace/internal/core"
)

// ErrSyntax is returned for expressions that do not compile.
var ErrSyntax = errors.New("filter: syntax error")

// Filter matches captured segments. The zero value and a nil *Filter
// match everything.
type Filter struct {
	expr string
	prog []bpf.Instruction
	vm   *bpf.VM
}

// Compile parses expr. An empty expression yields a match-all filter.
func Compile(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Filter{}, nil
	}

	prog, err := compileExpr(expr)
	if err != nil {
		return nil, err
	}
	vm, err := bpf.NewVM(prog)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	return &Filter{expr: expr, prog: prog, vm: vm}, nil
}

// Validate reports whether expr compiles.
func Validate(expr string) error {
	_, err := Compile(expr)
	return err
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Raw returns the assembled program, nil for a match-all filter.
func (f *Filter) Raw() ([]bpf.RawInstruction, error) {
	if f == nil || f.prog == nil {
		return nil, nil
	}
	return bpf.Assemble(f.prog)
}

// Match runs the program over the segment's raw bytes.
func (f *Filter) Match(seg *core.CapturedSegment) (bool, error) {
	if f == nil || f.vm == nil {
		return true, nil
	}
	n, err := f.vm.Run(seg.Raw())
	if err != nil {
		return false, fmt.Errorf("filter: %w", err)
	}
	return n > 0, nil
}
