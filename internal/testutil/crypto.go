package testutil

import (
	"bytes"
	"fmt"
	"math/rand/v2"

	"github.com/udisondev/bk7231calc/internal/crypto"
)

// EncryptImage шифрует plaintext образа так, как это делает загрузчик BK7231:
// каждый 4-байтовый блок XOR-ится с keystream(addr) и ключом.
// Длина plain должна быть кратна 4.
func EncryptImage(plain []byte, base uint32, sel crypto.Selectors, key uint32) ([]byte, error) {
	if len(plain)%4 != 0 {
		return nil, fmt.Errorf("image length must be multiple of 4, got %d", len(plain))
	}

	out := make([]byte, len(plain))
	crypto.XORKeystream(out, plain, base, sel, key)
	return out, nil
}

// MustEncryptImage: как EncryptImage, но паникует на ошибке. Только для фикстур.
func MustEncryptImage(plain []byte, base uint32, sel crypto.Selectors, key uint32) []byte {
	out, err := EncryptImage(plain, base, sel, key)
	if err != nil {
		panic(err)
	}
	return out
}

// RandomBytes возвращает n детерминированных псевдослучайных байт.
func RandomBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(rng.Uint32())
	}
	return b
}

// PlantPattern возвращает копию plain с pattern, записанным по смещению offset.
func PlantPattern(plain []byte, pattern []byte, offset int) []byte {
	out := bytes.Clone(plain)
	copy(out[offset:], pattern)
	return out
}
