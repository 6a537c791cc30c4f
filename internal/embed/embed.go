// Package embed defines the flat-embed registry: the fixed set of opaque
// built-in primitives (bit decomposition/composition, field-element
// unpack) that a reduced program may call but that the reducer never
// inlines. A later flattening pass materialises each directly as circuit
// gates.
package embed

import (
	"fmt"

	"sentra/internal/typed"
)

// WordWidths are the unsigned-integer widths with built-in bit embeds.
var WordWidths = []int{8, 16, 32}

// keyInModule computes an embed's function key deterministically from its
// kind and the module it is registered in, mirroring how a Here function's
// key is derived from its declared signature.
func keyInModule(kind typed.EmbedKind, module string, fieldBits int) typed.FunctionKey {
	sig := signatureFor(kind, fieldBits)
	return typed.FunctionKey{Module: module, Name: kind.String(), Signature: sig}
}

func signatureFor(kind typed.EmbedKind, fieldBits int) typed.Signature {
	bits := func(w int) typed.Type { return typed.Uint(w) }
	bitArray := func(w int) typed.Type { return typed.ArrayOfLen(typed.Bool(), w) }

	switch kind {
	case typed.EmbedUnpack:
		return typed.Signature{
			Inputs:  []typed.Type{typed.Field()},
			Outputs: []typed.Type{bitArray(fieldBits)},
		}
	case typed.EmbedU8ToBits, typed.EmbedU16ToBits, typed.EmbedU32ToBits:
		w := widthOf(kind)
		return typed.Signature{Inputs: []typed.Type{bits(w)}, Outputs: []typed.Type{bitArray(w)}}
	case typed.EmbedU8FromBits, typed.EmbedU16FromBits, typed.EmbedU32FromBits:
		w := widthOf(kind)
		return typed.Signature{Inputs: []typed.Type{bitArray(w)}, Outputs: []typed.Type{bits(w)}}
	default:
		panic(fmt.Sprintf("embed: unknown kind %v", kind))
	}
}

func widthOf(kind typed.EmbedKind) int {
	switch kind {
	case typed.EmbedU8ToBits, typed.EmbedU8FromBits:
		return 8
	case typed.EmbedU16ToBits, typed.EmbedU16FromBits:
		return 16
	case typed.EmbedU32ToBits, typed.EmbedU32FromBits:
		return 32
	default:
		return 0
	}
}

// All lists every embed this registry defines, for RegisterAll.
var All = []typed.EmbedKind{
	typed.EmbedUnpack,
	typed.EmbedU8ToBits, typed.EmbedU16ToBits, typed.EmbedU32ToBits,
	typed.EmbedU8FromBits, typed.EmbedU16FromBits, typed.EmbedU32FromBits,
}

// RegisterAll adds every flat embed to module under its name alone
// (kind.String()); moduleID and fieldBits are not used here. The full
// {module, name, concrete signature} key, with the Unpack embed's output
// width taken from fieldBits, is built by KeyFor when the driver
// materialises a call; see field.go for the presets this repo ships.
func RegisterAll(module *typed.Module, moduleID string, fieldBits int) {
	for _, kind := range All {
		module.Functions[kind.String()] = typed.FlatSymbol(kind)
	}
}

// KeyFor builds the function key an embed call site is rewritten to once
// the driver materialises it.
func KeyFor(kind typed.EmbedKind, moduleID string, fieldBits int) typed.FunctionKey {
	return keyInModule(kind, moduleID, fieldBits)
}
