package smb2

import "errors"

// Decoding errors. Every failure aborts the parse; no partial header is returned.
var (
	ErrExpectedByte         = errors.New("smb2: expected byte")
	ErrInvalidFlags         = errors.New("smb2: invalid flags")
	ErrInvalidMagic         = errors.New("smb2: invalid magic")
	ErrInvalidMessageLength = errors.New("smb2: invalid message length")
	ErrInvalidOpcode        = errors.New("smb2: invalid opcode")
	ErrNonZeroFirstByte     = errors.New("smb2: non-zero first byte")
	ErrUnsupportedVersion   = errors.New("smb2: unsupported version")
	ErrZeroHeaderMsg        = errors.New("smb2: zero length message")
)
