// Package source opens transcript input: a file or stdin, optionally
// compressed with gzip, zstd or lz4.
package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"firestige.xyz/smbtrace/internal/core"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// Codec names an input compression.
type Codec string

const (
	CodecAuto Codec = "auto"
	CodecNone Codec = "none"
	CodecGzip Codec = "gzip"
	CodecZstd Codec = "zstd"
	CodecLZ4  Codec = "lz4"
)

var (
	magicGzip = []byte{0x1f, 0x8b}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicLZ4  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// ParseCodec validates a codec name. Empty means auto.
func ParseCodec(s string) (Codec, error) {
	switch c := Codec(s); c {
	case CodecAuto, CodecNone, CodecGzip, CodecZstd, CodecLZ4:
		return c, nil
	case "":
		return CodecAuto, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnknownCodec, s)
	}
}

// Source is an opened, decompressed transcript.
type Source struct {
	Name  string
	Codec Codec // resolved, never auto

	r       io.Reader
	closers []io.Closer
}

// Open opens path ("-" or "" for stdin) and wraps it in the decompressor
// selected by codec. Auto sniffs the leading magic bytes.
func Open(path string, codec Codec) (*Source, error) {
	if path == "" || path == Stdin {
		return NewReader(os.Stdin, "<stdin>", codec)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", core.ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("open input: %w", err)
	}

	s, err := NewReader(f, path, codec)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closers = append(s.closers, f)
	return s, nil
}

// NewReader wraps r. The caller keeps ownership of r.
func NewReader(r io.Reader, name string, codec Codec) (*Source, error) {
	br := bufio.NewReader(r)

	if codec == CodecAuto || codec == "" {
		head, err := br.Peek(len(magicZstd))
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("sniff input: %w", err)
		}
		codec = detect(head)
	}

	s := &Source{Name: name, Codec: codec}
	switch codec {
	case CodecNone:
		s.r = br
	case CodecGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip input: %w", err)
		}
		s.r = zr
		s.closers = append(s.closers, zr)
	case CodecZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("zstd input: %w", err)
		}
		s.r = zr
		s.closers = append(s.closers, zr.IOReadCloser())
	case CodecLZ4:
		s.r = lz4.NewReader(br)
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownCodec, codec)
	}
	return s, nil
}

func detect(head []byte) Codec {
	switch {
	case bytes.HasPrefix(head, magicGzip):
		return CodecGzip
	case bytes.HasPrefix(head, magicZstd):
		return CodecZstd
	case bytes.HasPrefix(head, magicLZ4):
		return CodecLZ4
	default:
		return CodecNone
	}
}

func (s *Source) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// Close releases the decompressor and the file, innermost first.
func (s *Source) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
