package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/bk7231calc/internal/crypto"
)

// Batch decrypts the whole image under every selector tuple and searches each
// result for the pattern's difference signature. Simple and memory hungry; kept
// as the reference for Streaming.
type Batch struct {
	workers int
}

// NewBatch returns a batch searcher running up to workers tuples in parallel.
func NewBatch(workers int) *Batch {
	if workers < 1 {
		workers = 1
	}
	return &Batch{workers: workers}
}

func (b *Batch) Name() string { return StrategyBatch }
func (b *Batch) MinPatternLen() int { return MinPatternBatch }

// Search reads the whole image. A trailing partial block is dropped with a warning.
// Matches are emitted ordered by Compare.
func (b *Batch) Search(ctx context.Context, image io.Reader, base uint32, pattern []byte, emit func(Match)) error {
	if err := ValidateBase(base); err != nil {
		return err
	}
	if err := ValidatePattern(pattern, MinPatternBatch); err != nil {
		return err
	}

	data, err := io.ReadAll(image)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}
	if rem := len(data) % 4; rem != 0 {
		slog.Warn("image ends with incomplete block, ignoring it", "trailing_bytes", rem)
		data = data[:len(data)-rem]
	}

	signature := differenceSignature(pattern)
	tuples := crypto.AllSearchSelectors()
	results := make([][]Match, len(tuples))

	slog.Debug("batch search started", "image_bytes", len(data), "tuples", len(tuples), "workers", b.workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, sel := range tuples {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = searchTuple(data, base, pattern, signature, sel)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("batch search: %w", err)
	}

	matches := slices.Concat(results...)
	slices.SortFunc(matches, Compare)
	slog.Debug("batch search finished", "matches", len(matches))

	for _, m := range matches {
		emit(m)
	}
	return nil
}

// differenceSignature returns pattern[k] ^ pattern[k-4] for k >= 4. It does not
// depend on the key, which cancels out between bytes 4 apart.
func differenceSignature(pattern []byte) []byte {
	sig := make([]byte, len(pattern)-4)
	for k := range sig {
		sig[k] = pattern[k+4] ^ pattern[k]
	}
	return sig
}

func searchTuple(data []byte, base uint32, pattern, signature []byte, sel crypto.Selectors) []Match {
	plain := make([]byte, len(data))
	crypto.XORKeystream(plain, data, base, sel, 0)

	diff := make([]byte, len(plain))
	for i := 4; i < len(plain); i++ {
		diff[i] = plain[i] ^ plain[i-4]
	}

	var matches []Match
	keystream := make([]byte, len(pattern))
	for off := 4; off <= len(diff)-len(signature); {
		j := bytes.Index(diff[off:], signature)
		if j < 0 {
			break
		}
		start := off + j - 4
		off += j + 1

		for k := range keystream {
			keystream[k] = data[start+k] ^ pattern[k]
		}
		addr := base + uint32(start)
		if key, ok := DeriveKey(addr, sel, keystream); ok {
			matches = append(matches, Match{Address: addr, Key: key, Selectors: sel})
		}
	}
	return matches
}
