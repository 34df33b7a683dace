package transcript

import (
	"errors"
	"fmt"
)

// Header-line errors.
var (
	ErrSyntax            = errors.New("transcript: syntax error")
	ErrInvalidProtocol   = errors.New("transcript: invalid protocol")
	ErrInvalidSocketAddr = errors.New("transcript: invalid socket address")
	ErrInvalidTimeFmt    = errors.New("transcript: invalid time format")
	ErrMissingToken      = errors.New("transcript: missing token")
	ErrUnexpectedToken   = errors.New("transcript: unexpected token")
)

// Hex-dump and byte-block errors.
var (
	ErrExpectedByte         = errors.New("transcript: expected byte")
	ErrInvalidByteRepr      = errors.New("transcript: invalid byte representation")
	ErrBlockUnexpectedToken = errors.New("transcript: unexpected token in hex dump")
	ErrUnsupportedIPVersion = errors.New("transcript: unsupported IP version")
)

// Stage tells which step of the stream produced a StreamError.
type Stage uint8

const (
	StageReadLine Stage = iota + 1
	StageHeader
	StageBlock
)

func (s Stage) String() string {
	switch s {
	case StageReadLine:
		return "read-line"
	case StageHeader:
		return "header"
	case StageBlock:
		return "byte-block"
	default:
		return "unknown"
	}
}

// StreamError is the error item yielded by Stream.
type StreamError struct {
	Stage Stage
	Line  int // 1-based line number the error was detected on
	Err   error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("transcript: %s error at line %d: %v", e.Stage, e.Line, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// Resumable reports whether the stream can continue after this error.
// Only byte-block failures leave a known resumption point (the next header).
func (e *StreamError) Resumable() bool {
	return e.Stage == StageBlock
}
