package search

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/udisondev/bk7231calc/internal/crypto"
	"github.com/udisondev/bk7231calc/internal/stream"
)

// ctxCheckInterval is the number of blocks scanned between context checks.
const ctxCheckInterval = 1 << 12

// Streaming scans the image in one pass, one block at a time.
//
// For every block it keeps rolling differences of the input and of the stage 3
// and stage 1/2 keystreams per parameter. Differences of consecutive blocks cancel
// the key, so a 16-bit half of (input ^ stage3 ^ stage12) differences can be
// compared against the same half of the pattern's differences. The stage owning
// the other half is chosen only after such a hit, during verification.
type Streaming struct{}

// NewStreaming returns a streaming searcher.
func NewStreaming() *Streaming {
	return &Streaming{}
}

func (s *Streaming) Name() string { return StrategyStream }
func (s *Streaming) MinPatternLen() int { return MinPatternStream }

// matcher describes the pattern at one of two byte phases. The pattern word at
// offset+2 is checked first, against either half of the current block; the word
// at offset is then checked against the preceding 16 bits of the image.
type matcher struct {
	first  uint16
	second uint16
	offset int
}

func newMatchers(pattern []byte) [2]matcher {
	word := func(i int) uint16 { return binary.LittleEndian.Uint16(pattern[i:]) }
	diff := func(i int) uint16 { return word(i) ^ word(i-4) }

	var m [2]matcher
	for i := range m {
		off := 4 + i
		m[i] = matcher{first: diff(off + 2), second: diff(off), offset: off}
	}
	return m
}

// scanner is the state of one streaming search.
type scanner struct {
	src     *stream.PeekReader
	pattern []byte
	emit    func(Match)

	base   uint32
	addr   uint32 // address of the current block
	blocks int

	input stream.RollingXor
	s12   [4]stream.RollingXor
	s3    [4]stream.RollingXor

	hits     int
	verified int
}

// Search returns ErrIncompleteBlock if the image size is not a multiple of 4.
func (s *Streaming) Search(ctx context.Context, image io.Reader, base uint32, pattern []byte, emit func(Match)) error {
	if err := ValidateBase(base); err != nil {
		return err
	}
	if err := ValidatePattern(pattern, MinPatternStream); err != nil {
		return err
	}

	sc := &scanner{
		src:     stream.NewPeekReader(image),
		pattern: pattern,
		emit:    emit,
		base:    base,
	}
	matchers := newMatchers(pattern)

	slog.Debug("streaming search started", "base", fmt.Sprintf("%#x", base), "pattern_len", len(pattern))

	// The first block has no predecessor to difference against.
	if ok, err := sc.next(); err != nil || !ok {
		return err
	}
	for {
		ok, err := sc.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := sc.filter(matchers); err != nil {
			return err
		}
		if sc.blocks%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}

	slog.Debug("streaming search finished", "blocks", sc.blocks, "candidates", sc.hits, "matches", sc.verified)
	return nil
}

// next reads one block and advances all rolling buffers. It returns false at
// the end of the image.
func (sc *scanner) next() (bool, error) {
	w, err := sc.src.ReadBlock()
	switch {
	case errors.Is(err, io.EOF):
		return false, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return false, fmt.Errorf("%w at %#x", ErrIncompleteBlock, sc.base+uint32(4*sc.blocks))
	case err != nil:
		return false, fmt.Errorf("reading image: %w", err)
	}

	sc.addr = sc.base + uint32(4*sc.blocks)
	sc.blocks++

	sc.input.Advance(w)
	for p := range uint8(4) {
		sc.s12[p].Advance(crypto.Stage12(sc.addr, p))
		sc.s3[p].Advance(crypto.Stage3(sc.addr, p))
	}
	return true, nil
}

func stageDiff(bufs *[4]stream.RollingXor, sel crypto.Selector, lag int) uint32 {
	p, ok := sel.Value()
	if !ok {
		return 0
	}
	return bufs[p].Diff(lag)
}

// filter runs the cheap 16-bit check for all 25 stage 3 and stage 1/2 choices.
func (sc *scanner) filter(matchers [2]matcher) error {
	d := sc.input.Diff(0)
	for _, s3 := range crypto.SearchSelectors {
		d3 := d ^ stageDiff(&sc.s3, s3, 0)
		for _, s12 := range crypto.SearchSelectors {
			block := d3 ^ stageDiff(&sc.s12, s12, 0)
			lo, hi := uint16(block), uint16(block>>16)
			for _, m := range matchers {
				if lo == m.first {
					if err := sc.verify(0, m, s3, s12); err != nil {
						return err
					}
				}
				if hi == m.first {
					if err := sc.verify(1, m, s3, s12); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// verify checks the second 16-bit word of a hit for every choice of the
// remaining stage, then derives and checks the key from the raw bytes.
// half is 0 when the hit was in the low half of the current block (stage 2),
// 1 for the high half (stage 1).
func (sc *scanner) verify(half int, m matcher, s3, hitSel crypto.Selector) error {
	sc.hits++

	// The second word is the high half of the previous difference for a low-half
	// hit, or the low half of the current difference for a high-half hit.
	lag := 1 - half
	d := sc.input.Diff(lag) ^ stageDiff(&sc.s3, s3, lag)

	rel := int(sc.addr-sc.base) + 2*half - 2 - m.offset
	if rel < 0 {
		return nil
	}
	addr := sc.base + uint32(rel)

	for _, other := range crypto.SearchSelectors {
		block := d ^ stageDiff(&sc.s12, other, lag)
		word := uint16(block)
		if half == 0 {
			word = uint16(block >> 16)
		}
		if word != m.second {
			continue
		}

		sel := crypto.Selectors{hitSel, other, s3}
		if half == 0 {
			sel = crypto.Selectors{other, hitSel, s3}
		}

		keystream, ok, err := sc.occurrence(addr)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		for i := range keystream {
			keystream[i] ^= sc.pattern[i]
		}

		if key, ok := DeriveKey(addr, sel, keystream); ok {
			sc.verified++
			sc.emit(Match{Address: addr, Key: key, Selectors: sel})
		}
	}
	return nil
}

// occurrence returns the raw image bytes of a pattern-sized window starting at
// addr. The window starts at most 8 bytes before the current block; bytes past it
// are peeked. It returns false when the image ends inside the window.
func (sc *scanner) occurrence(addr uint32) ([]byte, bool, error) {
	var raw [12]byte
	binary.LittleEndian.PutUint32(raw[0:], sc.input.Raw(2))
	binary.LittleEndian.PutUint32(raw[4:], sc.input.Raw(1))
	binary.LittleEndian.PutUint32(raw[8:], sc.input.Raw(0))

	out := make([]byte, len(sc.pattern))
	n := copy(out, raw[addr-(sc.addr-8):])
	if n == len(out) {
		return out, true, nil
	}

	if _, err := sc.src.Peek(out[n:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading image: %w", err)
	}
	return out, true, nil
}
