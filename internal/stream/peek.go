package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// BlockSize is the size of one cipher block.
const BlockSize = 4

// PeekReader wraps a sequential reader and lets callers look at upcoming bytes
// without consuming them. Bytes fetched by Peek are kept until Read hands them out,
// so the retained window never exceeds the longest peek.
type PeekReader struct {
	r       io.Reader
	pending []byte
	err     error
}

// NewPeekReader returns a PeekReader reading from r.
func NewPeekReader(r io.Reader) *PeekReader {
	return &PeekReader{r: r}
}

// Read drains previously peeked bytes first, then reads from the underlying reader.
func (p *PeekReader) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.consume(n)
		return n, nil
	}
	if p.err != nil {
		return 0, p.err
	}
	return p.r.Read(b)
}

// Peek fills b with the next len(b) bytes without consuming them. If the source
// ends first it returns the number of bytes available and io.EOF.
func (p *PeekReader) Peek(b []byte) (int, error) {
	err := p.fill(len(b))
	return copy(b, p.pending), err
}

// ReadBlock reads one whole cipher block as a little-endian word. It returns
// io.EOF at a clean end of the stream and io.ErrUnexpectedEOF when the stream
// ends inside a block.
func (p *PeekReader) ReadBlock() (uint32, error) {
	var block [BlockSize]byte
	if _, err := io.ReadFull(p, block[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(block[:]), nil
}

// Buffered returns the number of bytes peeked but not yet read.
func (p *PeekReader) Buffered() int {
	return len(p.pending)
}

// fill reads from the source until at least n bytes are pending.
func (p *PeekReader) fill(n int) error {
	for len(p.pending) < n {
		if p.err != nil {
			return p.err
		}
		if cap(p.pending) < n {
			grown := make([]byte, len(p.pending), n)
			copy(grown, p.pending)
			p.pending = grown
		}
		m, err := p.r.Read(p.pending[len(p.pending):n])
		p.pending = p.pending[:len(p.pending)+m]
		if err != nil {
			if !errors.Is(err, io.EOF) {
				err = fmt.Errorf("peeking %d bytes: %w", n, err)
			}
			p.err = err
		}
	}
	return nil
}

// consume drops the first n pending bytes, moving the rest to the front.
func (p *PeekReader) consume(n int) {
	rest := copy(p.pending, p.pending[n:])
	p.pending = p.pending[:rest]
}
