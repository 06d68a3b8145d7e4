package testutil

import (
	"slices"

	"github.com/udisondev/bk7231calc/internal/crypto"
	"github.com/udisondev/bk7231calc/internal/search"
)

// ReferenceSearch перебирает все 125 кортежей селекторов и все смещения
// и проверяет каждое окно через search.DeriveKey. Медленно, но без
// каких-либо оптимизаций: эталон для сравнения стратегий.
func ReferenceSearch(image []byte, base uint32, pattern []byte) []search.Match {
	var out []search.Match
	keystream := make([]byte, len(pattern))
	for _, sel := range crypto.AllSearchSelectors() {
		for start := 0; start+len(pattern) <= len(image); start++ {
			for k := range pattern {
				keystream[k] = image[start+k] ^ pattern[k]
			}
			addr := base + uint32(start)
			if key, ok := search.DeriveKey(addr, sel, keystream); ok {
				out = append(out, search.Match{Address: addr, Key: key, Selectors: sel})
			}
		}
	}
	slices.SortFunc(out, search.Compare)
	return out
}

// Collect возвращает emit-функцию, складывающую найденные совпадения в *dst.
func Collect(dst *[]search.Match) func(search.Match) {
	return func(m search.Match) {
		*dst = append(*dst, m)
	}
}

// Sorted возвращает отсортированную копию совпадений.
func Sorted(matches []search.Match) []search.Match {
	out := slices.Clone(matches)
	slices.SortFunc(out, search.Compare)
	return out
}
