// Package search recovers BK7231 flash encryption keys from an encrypted image
// and a fragment of known plaintext.
package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/udisondev/bk7231calc/internal/crypto"
)

// Strategy names accepted by NewSearcher.
const (
	StrategyStream = "stream"
	StrategyBatch  = "batch"
)

// Minimum pattern lengths. The streaming filter looks at two 16-bit difference
// words that reach up to byte 8 of the pattern.
const (
	MinPatternBatch  = 8
	MinPatternStream = 9
)

var (
	ErrMisalignedBase  = errors.New("base address is not aligned")
	ErrPatternTooShort = errors.New("search pattern too short")
	ErrIncompleteBlock = errors.New("image ends with incomplete block")
	ErrUnknownStrategy = errors.New("unknown search strategy")
)

// Match is one recovered key. Address is where the known plaintext starts.
type Match struct {
	Address   uint32
	Key       uint32
	Selectors crypto.Selectors
}

// Settings returns the settings word of the match's selector tuple.
func (m Match) Settings() uint32 {
	return crypto.SettingsWord(m.Selectors)
}

// String renders the match in the format expected by the key programming tool.
// The two zero fields are unused by this cipher.
func (m Match) String() string {
	return fmt.Sprintf("Found match at %#x with key: 0 0 %x %x", m.Address, m.Key, m.Settings())
}

// Compare orders matches by address, then settings word, then key.
func Compare(a, b Match) int {
	if c := cmp.Compare(a.Address, b.Address); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Settings(), b.Settings()); c != 0 {
		return c
	}
	return cmp.Compare(a.Key, b.Key)
}

// Searcher scans an image mapped at base for occurrences of pattern and calls
// emit for every verified match.
type Searcher interface {
	Search(ctx context.Context, image io.Reader, base uint32, pattern []byte, emit func(Match)) error
	MinPatternLen() int
	Name() string
}

// NewSearcher returns the searcher for the named strategy. workers bounds the
// number of selector tuples the batch strategy processes at once.
func NewSearcher(strategy string, workers int) (Searcher, error) {
	switch strategy {
	case StrategyStream:
		return NewStreaming(), nil
	case StrategyBatch:
		return NewBatch(workers), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// ValidateBase checks that base is block aligned.
func ValidateBase(base uint32) error {
	if base%4 != 0 {
		return fmt.Errorf("%w: %#x", ErrMisalignedBase, base)
	}
	return nil
}

// ValidatePattern checks that pattern has at least minLen bytes.
func ValidatePattern(pattern []byte, minLen int) error {
	if len(pattern) < minLen {
		return fmt.Errorf("%w: %d bytes, need at least %d", ErrPatternTooShort, len(pattern), minLen)
	}
	return nil
}
