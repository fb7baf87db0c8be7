package ir

import "fmt"

// Bank identifies a register file. The numeric values are part of the
// binary encoding and must not change.
type Bank uint8

const (
	BankConstant Bank = 0
	BankUniform  Bank = 1
	BankTemp     Bank = 2
	BankInput    Bank = 3
	BankOutput   Bank = 4
	BankSampler  Bank = 5
	BankAddress  Bank = 6

	bankCount = 7
)

var bankNames = [bankCount]string{"c", "u", "r", "v", "o", "s", "a"}

// String returns the single-letter bank prefix used in listings.
func (b Bank) String() string {
	if b < bankCount {
		return bankNames[b]
	}
	return "?"
}

// Valid reports whether the bank is one of the defined register files.
func (b Bank) Valid() bool {
	return b < bankCount
}

// Writable reports whether instructions may write to the bank.
func (b Bank) Writable() bool {
	switch b {
	case BankTemp, BankOutput, BankAddress:
		return true
	}
	return false
}

// maxRegisterIndex is the largest index representable in a source
// reference word (17 bits alongside bank, swizzle, and modifiers).
const maxRegisterIndex = 1<<17 - 1

// Register names one register in a bank.
type Register struct {
	Bank  Bank
	Index int
}

// String formats the register as a listing operand, e.g. "r3".
func (r Register) String() string {
	return fmt.Sprintf("%s%d", r.Bank, r.Index)
}

// Swizzle selects source components, 2 bits per lane with lane 0 in
// the most significant pair. The identity selection x,y,z,w packs as
// 0b00_01_10_11 = 0x1B.
type Swizzle uint8

// SwizzleIdentity selects x, y, z, w in order.
var SwizzleIdentity = PackSwizzle(0, 1, 2, 3)

// PackSwizzle packs four lane selectors (0..3) into a Swizzle, lane 0
// in the most significant pair.
func PackSwizzle(x, y, z, w int) Swizzle {
	return Swizzle(x&3)<<6 | Swizzle(y&3)<<4 | Swizzle(z&3)<<2 | Swizzle(w&3)
}

// Lane returns the source component selected for destination lane i.
func (s Swizzle) Lane(i int) int {
	return int(s>>(6-2*uint(i))) & 3
}

var laneNames = [4]byte{'x', 'y', 'z', 'w'}

// String formats the swizzle as a ".xyzw" suffix, empty for identity.
func (s Swizzle) String() string {
	if s == SwizzleIdentity {
		return ""
	}
	b := [5]byte{'.'}
	for i := 0; i < 4; i++ {
		b[i+1] = laneNames[s.Lane(i)]
	}
	return string(b[:])
}

// WriteMask selects destination components, bit 0 = x .. bit 3 = w.
type WriteMask uint8

// MaskXYZW writes all four components.
const MaskXYZW WriteMask = 0xF

// Contains reports whether lane i is written.
func (m WriteMask) Contains(i int) bool {
	return m&(1<<uint(i)) != 0
}

// Count returns the number of written lanes.
func (m WriteMask) Count() int {
	n := 0
	for i := 0; i < 4; i++ {
		if m.Contains(i) {
			n++
		}
	}
	return n
}

// String formats the mask as a ".xyz" suffix, empty when all lanes
// are written.
func (m WriteMask) String() string {
	if m == MaskXYZW {
		return ""
	}
	b := make([]byte, 1, 5)
	b[0] = '.'
	for i := 0; i < 4; i++ {
		if m.Contains(i) {
			b = append(b, laneNames[i])
		}
	}
	return string(b)
}

// Source is a source operand: a register reference, a component
// swizzle, and modifier flags. Relative adds the x lane of the
// address register to the index at execution time.
type Source struct {
	Register
	Swizzle  Swizzle
	Negate   bool
	Abs      bool
	Relative bool
}

// String formats the operand for listings.
func (s Source) String() string {
	text := s.Register.String()
	if s.Relative {
		text = fmt.Sprintf("%s[a0.x+%d]", s.Bank, s.Index)
	}
	text += s.Swizzle.String()
	if s.Abs {
		text = "|" + text + "|"
	}
	if s.Negate {
		text = "-" + text
	}
	return text
}

// Dest is a destination operand: a register reference and write mask.
type Dest struct {
	Register
	Mask      WriteMask
	Saturate  bool // clamp the written value to [0, 1]
	Predicate bool // the write is gated by the predicate register
	Relative  bool // index is offset by the address register
}

// String formats the operand for listings.
func (d Dest) String() string {
	text := d.Register.String()
	if d.Relative {
		text = fmt.Sprintf("%s[a0.x+%d]", d.Bank, d.Index)
	}
	text += d.Mask.String()
	if d.Saturate {
		text += "_sat"
	}
	return text
}
