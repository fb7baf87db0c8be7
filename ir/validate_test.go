package ir

import (
	"strings"
	"testing"
)

// minimalProgram returns a fragment program with one temp, one
// constant, one input, and one output register.
func minimalProgram() *Program {
	return &Program{
		Type:      FragmentShader,
		Version:   100,
		TempCount: 1,
		Constants: [][4]float32{{0, 0, 0, 1}},
		Inputs:    []Varying{{Name: "v_color", Register: 0, Size: 1, Components: 4}},
		Outputs:   []Varying{{Name: "gl_FragColor", Register: 0, Size: 1, Components: 4}},
	}
}

func TestValidateValidProgram(t *testing.T) {
	p := minimalProgram()
	p.Emit(Instruction{
		Op:  OpMov,
		Dst: Dest{Register: Register{Bank: BankTemp, Index: 0}, Mask: MaskXYZW},
		Src: [4]Source{{Register: Register{Bank: BankInput, Index: 0}, Swizzle: SwizzleIdentity}},
	})
	p.Emit(Instruction{
		Op:  OpMov,
		Dst: Dest{Register: Register{Bank: BankOutput, Index: 0}, Mask: MaskXYZW},
		Src: [4]Source{{Register: Register{Bank: BankTemp, Index: 0}, Swizzle: SwizzleIdentity}},
	})
	p.Emit(Instruction{Op: OpRet})

	if errs := Validate(p); errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		inst Instruction
		want string
	}{
		{
			name: "write to read-only bank",
			inst: Instruction{
				Op:  OpMov,
				Dst: Dest{Register: Register{Bank: BankUniform, Index: 0}, Mask: MaskXYZW},
				Src: [4]Source{{Register: Register{Bank: BankTemp, Index: 0}}},
			},
			want: "read-only",
		},
		{
			name: "destination out of range",
			inst: Instruction{
				Op:  OpMov,
				Dst: Dest{Register: Register{Bank: BankTemp, Index: 5}, Mask: MaskXYZW},
				Src: [4]Source{{Register: Register{Bank: BankTemp, Index: 0}}},
			},
			want: "out of range",
		},
		{
			name: "source out of range",
			inst: Instruction{
				Op:  OpMov,
				Dst: Dest{Register: Register{Bank: BankTemp, Index: 0}, Mask: MaskXYZW},
				Src: [4]Source{{Register: Register{Bank: BankConstant, Index: 3}}},
			},
			want: "out of range",
		},
		{
			name: "empty write mask",
			inst: Instruction{
				Op:  OpMov,
				Dst: Dest{Register: Register{Bank: BankTemp, Index: 0}},
				Src: [4]Source{{Register: Register{Bank: BankTemp, Index: 0}}},
			},
			want: "empty write mask",
		},
		{
			name: "sampler register in arithmetic",
			inst: Instruction{
				Op:  OpAdd,
				Dst: Dest{Register: Register{Bank: BankTemp, Index: 0}, Mask: MaskXYZW},
				Src: [4]Source{
					{Register: Register{Bank: BankTemp, Index: 0}},
					{Register: Register{Bank: BankSampler, Index: 0}},
				},
			},
			want: "sampler register",
		},
		{
			name: "break outside loop",
			inst: Instruction{Op: OpBreak},
			want: "outside of a loop",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := minimalProgram()
			p.Samplers = []Sampler{{Name: "s", Register: 0, Kind: Sampler2D}}
			p.Emit(tt.inst)
			errs := Validate(p)
			if errs == nil {
				t.Fatal("expected validation errors, got none")
			}
			found := false
			for _, e := range errs {
				if strings.Contains(e.Error(), tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("no error containing %q in %v", tt.want, errs)
			}
		})
	}
}

func TestValidateControlFlowNesting(t *testing.T) {
	p := minimalProgram()
	p.Emit(Instruction{Op: OpIf, Label: 1, Src: [4]Source{{Register: Register{Bank: BankTemp, Index: 0}}}})
	p.Emit(Instruction{Op: OpEndLoop, Label: 1})
	errs := Validate(p)
	if errs == nil {
		t.Fatal("expected errors for mismatched control flow")
	}
	joined := ""
	for _, e := range errs {
		joined += e.Error() + "\n"
	}
	if !strings.Contains(joined, "endloop without matching loop") {
		t.Errorf("missing endloop error in:\n%s", joined)
	}
	if !strings.Contains(joined, "unterminated if") {
		t.Errorf("missing unterminated if error in:\n%s", joined)
	}
}

func TestValidateDiscardInVertexShader(t *testing.T) {
	p := minimalProgram()
	p.Type = VertexShader
	p.Emit(Instruction{Op: OpDiscard})
	errs := Validate(p)
	if errs == nil || !strings.Contains(errs[0].Error(), "discard") {
		t.Errorf("expected discard error, got %v", errs)
	}
}

func TestSwizzlePacking(t *testing.T) {
	// Lane 0 occupies the most significant pair.
	s := PackSwizzle(3, 2, 1, 0)
	if s != Swizzle(0b11_10_01_00) {
		t.Errorf("PackSwizzle(3,2,1,0) = %#x, want 0xe4", uint8(s))
	}
	for i, want := range []int{3, 2, 1, 0} {
		if got := s.Lane(i); got != want {
			t.Errorf("lane %d = %d, want %d", i, got, want)
		}
	}
	if SwizzleIdentity != Swizzle(0b00_01_10_11) {
		t.Errorf("identity = %#x, want 0x1b", uint8(SwizzleIdentity))
	}
	if got := (Source{Register: Register{Bank: BankTemp, Index: 1}, Swizzle: PackSwizzle(0, 0, 1, 1)}).String(); got != "r1.xxyy" {
		t.Errorf("swizzle string = %q, want r1.xxyy", got)
	}
}

func TestWriteMask(t *testing.T) {
	m := WriteMask(0x5) // x and z
	if !m.Contains(0) || m.Contains(1) || !m.Contains(2) || m.Contains(3) {
		t.Errorf("mask 0x5 lanes wrong")
	}
	if m.Count() != 2 {
		t.Errorf("mask count = %d, want 2", m.Count())
	}
	if got := m.String(); got != ".xz" {
		t.Errorf("mask string = %q, want .xz", got)
	}
}

func TestProgramListing(t *testing.T) {
	p := minimalProgram()
	p.Emit(Instruction{Op: OpIf, Label: 1, Src: [4]Source{{Register: Register{Bank: BankTemp, Index: 0}}}})
	p.Emit(Instruction{
		Op:  OpMov,
		Dst: Dest{Register: Register{Bank: BankOutput, Index: 0}, Mask: MaskXYZW},
		Src: [4]Source{{Register: Register{Bank: BankConstant, Index: 0}, Swizzle: SwizzleIdentity}},
	})
	p.Emit(Instruction{Op: OpEndIf, Label: 1})
	listing := p.Listing()
	for _, want := range []string{"; fragment shader", "def c0", "if L1", "    mov o0, c0", "endif"} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %q:\n%s", want, listing)
		}
	}
}
