package transcript

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"strings"

	"firestige.xyz/smbtrace/internal/core"
)

// state is the position of the stream between two header lines.
//
// Transition table (line = next input line, EOF = end of input):
//
//	state                 input          action                               next state
//	--------------------  -------------  -----------------------------------  ---------------------
//	awaitingHeader        EOF            end of sequence                      done
//	awaitingHeader        line           parse header, remember it            accumulatingPayload
//	                                     (error: terminal)                    done
//	accumulatingPayload   "\t..." line   parse hex, append to accumulator     accumulatingPayload
//	accumulatingPayload   EOF            split block, emit segment            done
//	accumulatingPayload   other line     split block, emit segment,           accumulatingPayload
//	                                     parse line as the next header
//	                                     (error: reported on the next call)   done
//
// A split or hex error drops the current segment only; the header that
// closed it stays remembered and the stream goes on.
type state uint8

const (
	stateAwaitingHeader state = iota
	stateAccumulatingPayload
	stateDone
)

func (s state) String() string {
	switch s {
	case stateAwaitingHeader:
		return "AwaitingHeader"
	case stateAccumulatingPayload:
		return "AccumulatingPayload"
	case stateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Stream is a forward-only reader of captured segments. It is not safe for
// concurrent use and cannot be restarted.
type Stream struct {
	reader *bufio.Reader
	state  state
	line   int

	// Remembered header of the segment being accumulated.
	record core.CaptureRecord
	// Hex bytes of the current segment and the first hex error seen in it.
	buf      []byte
	blockErr error
	blockAt  int

	// Error detected while closing a segment, returned by the next call.
	pending error
}

// NewStream returns a Stream reading lines from r.
func NewStream(r io.Reader) *Stream {
	return &Stream{reader: bufio.NewReader(r)}
}

// Next returns the next captured segment. It returns io.EOF once the input
// is exhausted or after a terminal error has been returned. Errors are
// *StreamError values; byte-block errors leave the stream usable.
func (s *Stream) Next() (core.CapturedSegment, error) {
	if s.pending != nil {
		err := s.pending
		s.pending = nil
		return core.CapturedSegment{}, err
	}

	for {
		switch s.state {
		case stateDone:
			return core.CapturedSegment{}, io.EOF

		case stateAwaitingHeader:
			line, eof, err := s.readLine()
			if err != nil {
				return core.CapturedSegment{}, s.fail(StageReadLine, err)
			}
			if eof {
				s.state = stateDone
				return core.CapturedSegment{}, io.EOF
			}
			if err := s.startSegment(line); err != nil {
				return core.CapturedSegment{}, err
			}

		case stateAccumulatingPayload:
			line, eof, err := s.readLine()
			if err != nil {
				return core.CapturedSegment{}, s.fail(StageReadLine, err)
			}
			if !eof && strings.HasPrefix(line, "\t") {
				s.appendHex(line)
				continue
			}
			return s.closeSegment(line, eof)
		}
	}
}

// Segments adapts Next to a range-over-func sequence. Iteration stops after
// a terminal error; resumable errors are yielded and iteration continues.
func (s *Stream) Segments() iter.Seq2[core.CapturedSegment, error] {
	return func(yield func(core.CapturedSegment, error) bool) {
		for {
			seg, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(seg, err) {
				return
			}
		}
	}
}

// Line returns the number of lines consumed so far.
func (s *Stream) Line() int { return s.line }

// startSegment parses a header line and enters accumulatingPayload.
func (s *Stream) startSegment(line string) error {
	rec, err := ParseHeader(line)
	if err != nil {
		return s.fail(StageHeader, err)
	}
	s.record = rec
	s.buf = s.buf[:0]
	s.blockErr = nil
	s.state = stateAccumulatingPayload
	return nil
}

// appendHex adds one dump line to the accumulator. After the first bad
// line the rest of the segment is consumed without being decoded.
func (s *Stream) appendHex(line string) {
	if s.blockErr != nil {
		return
	}
	b, err := ParseHexLine(line)
	if err != nil {
		s.blockErr, s.blockAt = err, s.line
		return
	}
	s.buf = append(s.buf, b...)
}

// closeSegment finalizes the accumulated segment. line is the line that
// ended it; unless eof, it starts the next segment.
func (s *Stream) closeSegment(line string, eof bool) (core.CapturedSegment, error) {
	rec := s.record
	buf, blockErr, blockAt := s.buf, s.blockErr, s.blockAt
	closedAt := s.line
	if !eof {
		closedAt--
	}

	var block core.ByteBlock
	if blockErr == nil {
		block, blockErr = SplitBlock(buf)
		blockAt = closedAt
	}

	// Lookahead: the closing line opens the next segment.
	if eof {
		s.state = stateDone
	} else {
		// startSegment resets buf, SplitBlock already copied out of it.
		if err := s.startSegment(line); err != nil {
			if blockErr != nil {
				// Both failed: the header error ends the stream after this one.
				s.pending = err
				return core.CapturedSegment{}, &StreamError{Stage: StageBlock, Line: blockAt, Err: blockErr}
			}
			s.pending = err
			return core.CapturedSegment{Record: rec, Block: block}, nil
		}
	}

	if blockErr != nil {
		return core.CapturedSegment{}, &StreamError{Stage: StageBlock, Line: blockAt, Err: blockErr}
	}
	return core.CapturedSegment{Record: rec, Block: block}, nil
}

// fail moves the stream to done and wraps err.
func (s *Stream) fail(stage Stage, err error) error {
	s.state = stateDone
	return &StreamError{Stage: stage, Line: s.line, Err: err}
}

// readLine returns the next line without its terminator. eof is true only
// when no more bytes are available.
func (s *Stream) readLine() (line string, eof bool, err error) {
	line, err = s.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, err
	}
	if errors.Is(err, io.EOF) && line == "" {
		return "", true, nil
	}
	s.line++
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, false, nil
}
