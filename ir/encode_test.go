package ir

import (
	"encoding/binary"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	insts := []Instruction{
		{
			Op:  OpMad,
			Dst: Dest{Register: Register{Bank: BankTemp, Index: 3}, Mask: MaskXYZW, Saturate: true},
			Src: [4]Source{
				{Register: Register{Bank: BankInput, Index: 0}, Swizzle: SwizzleIdentity},
				{Register: Register{Bank: BankUniform, Index: 7}, Swizzle: PackSwizzle(0, 0, 0, 0), Negate: true},
				{Register: Register{Bank: BankConstant, Index: 2}, Swizzle: PackSwizzle(3, 2, 1, 0), Abs: true},
			},
		},
		{
			Op:     OpLoop,
			Label:  4,
			Unroll: true,
			Src:    [4]Source{{Register: Register{Bank: BankConstant, Index: 0}, Swizzle: SwizzleIdentity}},
		},
		{
			Op:  OpMov,
			Dst: Dest{Register: Register{Bank: BankOutput, Index: 1}, Mask: 0x7, Predicate: true},
			Src: [4]Source{{Register: Register{Bank: BankTemp, Index: 3}, Swizzle: PackSwizzle(1, 1, 2, 3)}},
		},
		{Op: OpEndLoop, Label: 4},
		{Op: OpRet},
	}

	data := EncodeInstructions(insts)
	if len(data) != len(insts)*wordsPerInstruction*4 {
		t.Fatalf("encoded %d bytes, want %d", len(data), len(insts)*wordsPerInstruction*4)
	}

	decoded, err := DecodeInstructions(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != len(insts) {
		t.Fatalf("decoded %d instructions, want %d", len(decoded), len(insts))
	}
	for i := range insts {
		// Line is not part of the binary format.
		want := insts[i]
		want.Line = 0
		if decoded[i] != want {
			t.Errorf("instruction %d: got %+v, want %+v", i, decoded[i], want)
		}
	}
}

func TestEncodeHeaderWord(t *testing.T) {
	insts := []Instruction{{
		Op:    OpAdd,
		Label: 0,
		Dst:   Dest{Register: Register{Bank: BankTemp, Index: 0}, Mask: 0x3},
	}}
	data := EncodeInstructions(insts)
	head := binary.LittleEndian.Uint32(data)

	if op := head & 0xFF; op != uint32(OpAdd) {
		t.Errorf("opcode field = %d, want %d", op, OpAdd)
	}
	if mask := head >> 8 & 0xF; mask != 0x3 {
		t.Errorf("mask field = %#x, want 0x3", mask)
	}
}

func TestEncodeReferenceBanks(t *testing.T) {
	// The bank numbering is part of the wire format.
	banks := []struct {
		bank Bank
		want uint32
	}{
		{BankConstant, 0},
		{BankUniform, 1},
		{BankTemp, 2},
		{BankInput, 3},
		{BankOutput, 4},
		{BankSampler, 5},
		{BankAddress, 6},
	}
	for _, tt := range banks {
		w := encodeSource(Source{Register: Register{Bank: tt.bank, Index: 9}})
		if w>>28 != tt.want {
			t.Errorf("bank %s encodes as %d, want %d", tt.bank, w>>28, tt.want)
		}
		if w&srcIndexMask != 9 {
			t.Errorf("bank %s index field = %d, want 9", tt.bank, w&srcIndexMask)
		}
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	if _, err := DecodeInstructions(make([]byte, 10)); err == nil {
		t.Error("expected error for truncated stream")
	}
}

func TestDecodeRejectsInvalidOpcode(t *testing.T) {
	data := make([]byte, wordsPerInstruction*4)
	binary.LittleEndian.PutUint32(data, 0xFF)
	if _, err := DecodeInstructions(data); err == nil {
		t.Error("expected error for invalid opcode")
	}
}
