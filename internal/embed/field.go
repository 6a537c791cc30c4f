package embed

import (
	"filippo.io/edwards25519"
)

// FieldModulusBits presets for the Unpack embed's output bit width, one per
// curve this repo knows how to target. Real field moduli vary by only a
// handful of bits from their byte-packed representation; BN254's is a
// fixed literal, the Edwards25519 scalar field's is derived from the
// scalar library's own encoding so this stays in sync if that dependency
// ever changes its representation.
const BN254FieldModulusBits = 254

// Edwards25519ScalarFieldBits derives the scalar field's bit width from
// filippo.io/edwards25519's canonical scalar encoding. The library encodes
// scalars as 32 little-endian bytes; the scalar field's actual modulus
// (2^252 + 27742317777372353535851937790883648493) needs only 253 bits,
// so this is an upper bound suitable for the Unpack embed's output width,
// not the exact bit count.
func Edwards25519ScalarFieldBits() int {
	s := edwards25519.NewScalar()
	return len(s.Bytes()) * 8
}
