// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors shared across the decoding stages.
var (
	// Input errors
	ErrInputNotFound  = errors.New("smbtrace: input not found")
	ErrUnknownCodec   = errors.New("smbtrace: unknown input compression")
	ErrPipelineAbort  = errors.New("smbtrace: pipeline aborted")
	ErrPacketTooShort = errors.New("smbtrace: packet too short")

	// Decoding errors
	ErrUnsupportedProto = errors.New("smbtrace: unsupported protocol")
	ErrInvalidUint128   = errors.New("smbtrace: invalid 128-bit integer")

	// Plugin errors
	ErrPluginNotFound   = errors.New("smbtrace: plugin not found")
	ErrPluginInitFailed = errors.New("smbtrace: plugin init failed")

	// Configuration errors
	ErrConfigInvalid = errors.New("smbtrace: invalid configuration")
)
