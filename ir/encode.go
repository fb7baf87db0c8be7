package ir

import (
	"encoding/binary"
	"fmt"
)

// Binary instruction layout, little-endian 32-bit words:
//
//	word 0: [opcode:8][dst_mask:4][flags:4][label:16]
//	word 1: destination reference, (bank:4, rel:1, index:27)
//	word 2..5: source references, (bank:4, swizzle:8, neg:1, abs:1, rel:1, index:17)
//
// All six words are always present; unused sources encode as zero.
// The destination reference carries no swizzle, so it keeps a 27-bit
// index. Source indices are limited to 17 bits to leave room for the
// packed swizzle and modifiers; no register file comes near that
// size. The flags nibble holds the predicate bit plus the saturate
// and loop-unroll flags.
const wordsPerInstruction = 6

const (
	srcNegateBit   = 1 << 19
	srcAbsBit      = 1 << 18
	srcRelativeBit = 1 << 17
	srcIndexBits   = 17
	srcIndexMask   = 1<<srcIndexBits - 1

	dstRelativeBit = 1 << 27
	dstIndexMask   = 1<<27 - 1

	flagPredicate = 0x1
	flagSaturate  = 0x2
	flagUnroll    = 0x8

	maxEncodedLabel = 1<<16 - 1
)

func encodeDest(d Dest) uint32 {
	w := uint32(d.Bank)<<28 | uint32(d.Index)&dstIndexMask
	if d.Relative {
		w |= dstRelativeBit
	}
	return w
}

func decodeDest(w uint32, mask WriteMask) Dest {
	return Dest{
		Register: Register{Bank: Bank(w >> 28), Index: int(w & dstIndexMask)},
		Mask:     mask,
		Relative: w&dstRelativeBit != 0,
	}
}

func encodeSource(s Source) uint32 {
	w := uint32(s.Bank)<<28 | uint32(s.Swizzle)<<20 | uint32(s.Index)&srcIndexMask
	if s.Negate {
		w |= srcNegateBit
	}
	if s.Abs {
		w |= srcAbsBit
	}
	if s.Relative {
		w |= srcRelativeBit
	}
	return w
}

func decodeSource(w uint32) Source {
	return Source{
		Register: Register{Bank: Bank(w >> 28), Index: int(w & srcIndexMask)},
		Swizzle:  Swizzle(w >> 20),
		Negate:   w&srcNegateBit != 0,
		Abs:      w&srcAbsBit != 0,
		Relative: w&srcRelativeBit != 0,
	}
}

// EncodeInstructions serializes the instruction list to the in-memory
// binary format.
func EncodeInstructions(insts []Instruction) []byte {
	buf := make([]byte, 0, len(insts)*wordsPerInstruction*4)
	var w [4]byte
	put := func(v uint32) {
		binary.LittleEndian.PutUint32(w[:], v)
		buf = append(buf, w[:]...)
	}
	for i := range insts {
		inst := &insts[i]
		flags := uint32(0)
		if inst.Dst.Predicate {
			flags |= flagPredicate
		}
		if inst.Dst.Saturate {
			flags |= flagSaturate
		}
		if inst.Op == OpLoop && inst.Unroll {
			flags |= flagUnroll
		}
		label := uint32(inst.Label)
		if label > maxEncodedLabel {
			label = maxEncodedLabel
		}
		put(uint32(inst.Op) | uint32(inst.Dst.Mask)<<8 | flags<<12 | label<<16)
		put(encodeDest(inst.Dst))
		for s := 0; s < 4; s++ {
			put(encodeSource(inst.Src[s]))
		}
	}
	return buf
}

// DecodeInstructions parses the binary format produced by
// EncodeInstructions.
func DecodeInstructions(data []byte) ([]Instruction, error) {
	if len(data)%(wordsPerInstruction*4) != 0 {
		return nil, fmt.Errorf("ir: truncated instruction stream, %d bytes", len(data))
	}
	count := len(data) / (wordsPerInstruction * 4)
	insts := make([]Instruction, 0, count)
	for i := 0; i < count; i++ {
		base := i * wordsPerInstruction * 4
		word := func(n int) uint32 {
			return binary.LittleEndian.Uint32(data[base+n*4:])
		}
		head := word(0)
		op := Opcode(head & 0xFF)
		if !op.Valid() {
			return nil, fmt.Errorf("ir: invalid opcode %d at instruction %d", head&0xFF, i)
		}
		flags := head >> 12 & 0xF
		inst := Instruction{
			Op:     op,
			Label:  int(head >> 16),
			Unroll: op == OpLoop && flags&flagUnroll != 0,
		}
		inst.Dst = decodeDest(word(1), WriteMask(head>>8&0xF))
		inst.Dst.Predicate = flags&flagPredicate != 0
		inst.Dst.Saturate = flags&flagSaturate != 0
		for s := 0; s < 4; s++ {
			inst.Src[s] = decodeSource(word(2 + s))
		}
		insts = append(insts, inst)
	}
	return insts, nil
}
