package source

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/smbtrace/internal/core"
)

const transcript = "12:00:00.000001 IP 10.0.0.2.50000 > 10.0.0.1.445: Flags [S], seq 1, win 64240, length 0\n" +
	"\t0x0000:  4500 0028 0000 4000 4006 0000 0a00 0002\n"

func compress(t *testing.T, codec Codec, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	var w io.WriteCloser
	switch codec {
	case CodecGzip:
		w = gzip.NewWriter(&buf)
	case CodecZstd:
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		w = zw
	case CodecLZ4:
		w = lz4.NewWriter(&buf)
	default:
		return data
	}
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestNewReaderDetectsCodec(t *testing.T) {
	for _, codec := range []Codec{CodecNone, CodecGzip, CodecZstd, CodecLZ4} {
		t.Run(string(codec), func(t *testing.T) {
			packed := compress(t, codec, []byte(transcript))

			s, err := NewReader(bytes.NewReader(packed), "test", CodecAuto)
			require.NoError(t, err)
			defer s.Close()

			assert.Equal(t, codec, s.Codec)
			got, err := io.ReadAll(s)
			require.NoError(t, err)
			assert.Equal(t, transcript, string(got))
		})
	}
}

func TestNewReaderExplicitCodec(t *testing.T) {
	packed := compress(t, CodecZstd, []byte(transcript))

	s, err := NewReader(bytes.NewReader(packed), "test", CodecZstd)
	require.NoError(t, err)
	defer s.Close()

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, transcript, string(got))
}

func TestNewReaderShortPlainInput(t *testing.T) {
	s, err := NewReader(bytes.NewReader([]byte("x")), "tiny", CodecAuto)
	require.NoError(t, err)
	assert.Equal(t, CodecNone, s.Codec)

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestNewReaderBadGzip(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("not gzip at all")), "test", CodecGzip)
	assert.Error(t, err)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.txt.gz")
	require.NoError(t, os.WriteFile(path, compress(t, CodecGzip, []byte(transcript)), 0o600))

	s, err := Open(path, CodecAuto)
	require.NoError(t, err)

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, transcript, string(got))
	assert.Equal(t, path, s.Name)
	assert.NoError(t, s.Close())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.txt"), CodecAuto)
	assert.ErrorIs(t, err, core.ErrInputNotFound)
}

func TestParseCodec(t *testing.T) {
	c, err := ParseCodec("")
	require.NoError(t, err)
	assert.Equal(t, CodecAuto, c)

	c, err = ParseCodec("lz4")
	require.NoError(t, err)
	assert.Equal(t, CodecLZ4, c)

	_, err = ParseCodec("brotli")
	assert.ErrorIs(t, err, core.ErrUnknownCodec)
}
