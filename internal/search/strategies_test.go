package search_test

import (
	"bytes"
	"context"
	"math/rand/v2"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/bk7231calc/internal/crypto"
	"github.com/udisondev/bk7231calc/internal/search"
	"github.com/udisondev/bk7231calc/internal/testutil"
)

func strategies() []search.Searcher {
	return []search.Searcher{search.NewBatch(4), search.NewStreaming()}
}

func run(t *testing.T, s search.Searcher, image []byte, base uint32, pattern []byte) []search.Match {
	t.Helper()

	var got []search.Match
	err := s.Search(context.Background(), bytes.NewReader(image), base, pattern, testutil.Collect(&got))
	require.NoError(t, err, "strategy %s", s.Name())
	return testutil.Sorted(got)
}

func TestStrategies_FixtureImage(t *testing.T) {
	f := testutil.Fixtures
	image := testutil.FixtureImage()

	// Below 0x10000 the high address half is zero, so stage 1 parameters 1 and 3
	// are indistinguishable, and stage 2 parameter 0 or 3 only flips a constant
	// over this window. All six tuples decrypt the plaintext.
	sel := func(s1, s2, s3 crypto.Selector) crypto.Selectors { return crypto.Selectors{s1, s2, s3} }
	p, off := crypto.Param, crypto.Disabled()
	want := testutil.Sorted([]search.Match{
		{Address: 0x20, Key: 0x12345238, Selectors: sel(p(1), p(0), p(2))},
		{Address: 0x20, Key: 0x12345238, Selectors: sel(p(3), p(0), p(2))},
		{Address: 0x20, Key: 0x12345678, Selectors: sel(p(1), off, p(2))},
		{Address: 0x20, Key: 0x12345678, Selectors: sel(p(1), p(3), p(2))},
		{Address: 0x20, Key: 0x12345678, Selectors: sel(p(3), off, p(2))},
		{Address: 0x20, Key: 0x12345678, Selectors: sel(p(3), p(3), p(2))},
	})

	for _, s := range strategies() {
		t.Run(s.Name(), func(t *testing.T) {
			got := run(t, s, image, f.Base, f.Pattern)
			assert.Equal(t, want, got)

			var exact []search.Match
			for _, m := range got {
				if m.Selectors == f.Selectors {
					exact = append(exact, m)
				}
			}
			require.Len(t, exact, 1)
			assert.Equal(t, uint32(f.Offset), exact[0].Address)
			assert.Equal(t, f.Key, exact[0].Key)
		})
	}
}

func TestStrategies_MatchReference(t *testing.T) {
	rng := rand.New(rand.NewPCG(2024, 7231))
	tuples := crypto.AllSearchSelectors()

	for trial := range 60 {
		base := rng.Uint32() & 0x00FFFFFC
		if trial%3 == 0 {
			base = 0
		}
		size := 64 + 4*rng.IntN(8)
		plain := make([]byte, size)
		if trial%2 == 1 {
			plain = testutil.RandomBytes(rng, size)
		}
		pattern := testutil.RandomBytes(rng, 9+rng.IntN(8))
		offset := rng.IntN(size - len(pattern) + 1)
		sel := tuples[rng.IntN(len(tuples))]
		key := rng.Uint32()

		image := testutil.MustEncryptImage(testutil.PlantPattern(plain, pattern, offset), base, sel, key)
		want := testutil.ReferenceSearch(image, base, pattern)
		require.Contains(t, want, search.Match{Address: base + uint32(offset), Key: key, Selectors: sel},
			"trial %d: planted occurrence missing from reference", trial)

		for _, s := range strategies() {
			got := run(t, s, image, base, pattern)
			require.Equal(t, want, got, "trial %d strategy %s base %#x offset %d", trial, s.Name(), base, offset)
		}
	}
}

func TestStrategies_EveryAlignment(t *testing.T) {
	f := testutil.Fixtures
	rng := rand.New(rand.NewPCG(99, 100))
	base := uint32(0x00A50000)
	sel := crypto.Selectors{crypto.Param(2), crypto.Param(1), crypto.Param(3)}

	for offset := range 12 {
		plain := testutil.PlantPattern(testutil.RandomBytes(rng, 48), f.Pattern, offset)
		image := testutil.MustEncryptImage(plain, base, sel, 0xDEADBEEF)
		planted := search.Match{Address: base + uint32(offset), Key: 0xDEADBEEF, Selectors: sel}

		batch := run(t, search.NewBatch(2), image, base, f.Pattern)
		streaming := run(t, search.NewStreaming(), image, base, f.Pattern)

		assert.Contains(t, streaming, planted, "offset %d", offset)
		assert.Equal(t, batch, streaming, "offset %d", offset)
	}
}

func TestStrategies_OccurrenceAtImageEdges(t *testing.T) {
	f := testutil.Fixtures
	sel := crypto.Selectors{crypto.Disabled(), crypto.Param(2), crypto.Param(0)}
	rng := rand.New(rand.NewPCG(5, 5))

	for _, offset := range []int{0, 1, 64 - len(f.Pattern)} {
		plain := testutil.PlantPattern(testutil.RandomBytes(rng, 64), f.Pattern, offset)
		image := testutil.MustEncryptImage(plain, 0x8000, sel, 0x01020304)
		planted := search.Match{Address: 0x8000 + uint32(offset), Key: 0x01020304, Selectors: sel}

		for _, s := range strategies() {
			got := run(t, s, image, 0x8000, f.Pattern)
			assert.Contains(t, got, planted, "strategy %s offset %d", s.Name(), offset)
		}
	}
}

func TestStreaming_ShortReads(t *testing.T) {
	f := testutil.Fixtures
	image := testutil.FixtureImage()

	var want []search.Match
	require.NoError(t, search.NewStreaming().Search(context.Background(), bytes.NewReader(image), f.Base, f.Pattern, testutil.Collect(&want)))

	var got []search.Match
	r := iotest.OneByteReader(bytes.NewReader(image))
	require.NoError(t, search.NewStreaming().Search(context.Background(), r, f.Base, f.Pattern, testutil.Collect(&got)))

	assert.Equal(t, want, got)
}

func TestStrategies_ReadError(t *testing.T) {
	f := testutil.Fixtures
	image := testutil.FixtureImage()

	for _, s := range strategies() {
		r := testutil.FailingReader(bytes.NewReader(image), 40)
		err := s.Search(context.Background(), r, f.Base, f.Pattern, func(search.Match) {})
		assert.ErrorIs(t, err, testutil.ErrSimulated, "strategy %s", s.Name())
	}
}

func TestBatch_CanceledContext(t *testing.T) {
	f := testutil.Fixtures
	ctx := testutil.CanceledContext(t)

	var got []search.Match
	err := search.NewBatch(2).Search(ctx, bytes.NewReader(testutil.FixtureImage()), f.Base, f.Pattern, testutil.Collect(&got))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, got)
}

func BenchmarkStrategies(b *testing.B) {
	rng := rand.New(rand.NewPCG(1, 1))
	f := testutil.Fixtures
	plain := testutil.PlantPattern(testutil.RandomBytes(rng, 64<<10), f.Pattern, 40000)
	image := testutil.MustEncryptImage(plain, 0x11000, f.Selectors, f.Key)

	for _, s := range strategies() {
		b.Run(s.Name(), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(image)))
			for range b.N {
				if err := s.Search(context.Background(), bytes.NewReader(image), 0x11000, f.Pattern, func(search.Match) {}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
