package crypto

import (
	"encoding/binary"
	"iter"
	"math/bits"
)

// BK7231 flash encryption keystream.
//
// Every 4-byte block of the image is XORed with Encrypt(addr, selectors) and with
// a constant 32-bit key. The keystream is built from three independent stages:
//   - stage 1: 16-bit word placed in the high half
//   - stage 2: 16-bit word placed in the low half
//   - stage 3: full 32-bit word
//
// A disabled stage contributes zero. All constants are fixed by the hardware.

// Stage1 mixes the two address halves, optionally byte-swapping each of them
// (bit 0 of p swaps the low half, bit 1 the high half).
func Stage1(addr uint32, p uint8) uint16 {
	lo := uint16(addr)
	hi := uint16(addr >> 16)
	if p&1 != 0 {
		lo = bits.ReverseBytes16(lo)
	}
	if p&2 != 0 {
		hi = bits.ReverseBytes16(hi)
	}
	x := uint32(lo ^ hi)
	field := ((x >> 5) & 0xF) * 0x1111
	return uint16(bits.RotateLeft32(x, -7) ^ (0x6371 & field))
}

// Stage2 uses 17 bits of the address shifted right by p.
func Stage2(addr uint32, p uint8) uint16 {
	x := (addr >> p) & 0x1FFFF
	var field uint32
	for b := range 4 {
		field = field<<1 | (x>>(1+4*b))&1
	}
	field *= 0x1111
	return uint16(bits.RotateLeft32(x, -10) ^ (0x3659 & field))
}

// Stage3 rotates the address right by p bytes.
func Stage3(addr uint32, p uint8) uint32 {
	x := bits.RotateLeft32(addr, -8*int(p))
	field := ((x >> 2) & 0xF) * 0x1111_1111
	return bits.RotateLeft32(x, -15) ^ (0xE519A4F1 & field)
}

// Stage12 packs stage 1 into the high half and stage 2 into the low half,
// both evaluated with the same parameter.
func Stage12(addr uint32, p uint8) uint32 {
	return uint32(Stage1(addr, p))<<16 | uint32(Stage2(addr, p))
}

// Encrypt returns the keystream word for the block at addr.
// XORing a block with it both encrypts and decrypts.
func Encrypt(addr uint32, s Selectors) uint32 {
	var out uint32
	if p, ok := s[0].Value(); ok {
		out ^= uint32(Stage1(addr, p)) << 16
	}
	if p, ok := s[1].Value(); ok {
		out ^= uint32(Stage2(addr, p))
	}
	if p, ok := s[2].Value(); ok {
		out ^= Stage3(addr, p)
	}
	return out
}

// Keystream yields keystream words for addr, addr+4, addr+8, ... without end.
// Each range over the sequence restarts at addr.
func Keystream(s Selectors, addr uint32) iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for a := addr; ; a += 4 {
			if !yield(Encrypt(a, s)) {
				return
			}
		}
	}
}

// XORKeystream XORs src with the keystream and the key word, writing to dst.
// addr is the address of src[0] and must be block aligned; len(src) must be a
// multiple of 4 and dst at least as long as src.
func XORKeystream(dst, src []byte, addr uint32, s Selectors, key uint32) {
	for i := 0; i+4 <= len(src); i += 4 {
		w := binary.LittleEndian.Uint32(src[i:])
		binary.LittleEndian.PutUint32(dst[i:], w^Encrypt(addr+uint32(i), s)^key)
	}
}
