package search

import (
	"encoding/binary"

	"github.com/udisondev/bk7231calc/internal/crypto"
)

// DeriveKey recovers the 32-bit key word from keystream, the XOR of ciphertext
// and known plaintext starting at addr. The key repeats every 4 bytes, so every
// byte after the first four must agree with the byte 4 positions earlier;
// otherwise the candidate is rejected.
func DeriveKey(addr uint32, sel crypto.Selectors, keystream []byte) (uint32, bool) {
	if len(keystream) < 4 {
		return 0, false
	}

	var (
		key  [4]byte
		word [4]byte
	)
	for i, k := range keystream {
		pos := addr + uint32(i)
		slot := pos & 3
		if i == 0 || slot == 0 {
			binary.LittleEndian.PutUint32(word[:], crypto.Encrypt(pos&^3, sel))
		}
		b := word[slot] ^ k
		if i >= 4 && key[slot] != b {
			return 0, false
		}
		key[slot] = b
	}

	return binary.LittleEndian.Uint32(key[:]), true
}
