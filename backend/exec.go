package backend

import (
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/gogpu/swgl/reactor"
)

// regval is one virtual register: 16 little-endian bytes, lane i of
// width w occupying bytes [i*w, (i+1)*w).
type regval struct {
	b [16]byte
}

func (r *regval) lane(i, width int) uint64 {
	off := i * width
	var v uint64
	for k := 0; k < width; k++ {
		v |= uint64(r.b[off+k]) << (8 * uint(k))
	}
	return v
}

func (r *regval) setLane(i, width int, v uint64) {
	off := i * width
	for k := 0; k < width; k++ {
		r.b[off+k] = byte(v >> (8 * uint(k)))
	}
}

func signExtend(v uint64, width int) int64 {
	shift := uint(64 - 8*width)
	return int64(v<<shift) >> shift
}

func saturate(v int64, width int, signed bool) uint64 {
	if signed {
		max := int64(1)<<(8*uint(width)-1) - 1
		min := -max - 1
		if v > max {
			v = max
		}
		if v < min {
			v = min
		}
		return uint64(v) & (1<<(8*uint(width)) - 1)
	}
	max := int64(1)<<(8*uint(width)) - 1
	if v > max {
		v = max
	}
	if v < 0 {
		v = 0
	}
	return uint64(v)
}

func allOnes(width int) uint64 {
	if width >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*uint(width)) - 1
}

// Run executes the program with the given raw arguments. Pointer
// arguments are addresses; float arguments are float32 bit patterns
// in the low word.
func (p *Program) Run(args []uint64) uint64 {
	regs := make([]regval, p.regs)
	var frame []byte
	if p.frame > 0 {
		frame = make([]byte, p.frame)
	}

	pc := 0
	steps := 0
	const maxSteps = 1 << 30

	for pc < len(p.instrs) {
		steps++
		if steps > maxSteps {
			return 0
		}
		inst := &p.instrs[pc]
		pc++

		width := inst.kind.ScalarBytes()
		lanes := int(inst.lanes)
		signed := inst.kind.Signed()
		isFloat := inst.kind == reactor.KindFloat

		switch inst.op {
		case reactor.OpNop:

		case opMove:
			regs[inst.dst] = regs[inst.a]

		case reactor.OpConst:
			r := &regs[inst.dst]
			for i := 0; i < lanes && i < len(inst.imm); i++ {
				r.setLane(i, width, inst.imm[i])
			}

		case reactor.OpParam:
			idx := int(inst.imm[0])
			if idx < len(args) {
				regs[inst.dst].setLane(0, 8, args[idx])
			}

		case reactor.OpAlloca:
			addr := uint64(uintptr(unsafe.Pointer(&frame[0]))) + inst.extra
			regs[inst.dst].setLane(0, 8, addr)

		case reactor.OpGEP:
			base := regs[inst.a].lane(0, 8)
			idx := signExtend(regs[inst.b].lane(0, 8), 8)
			regs[inst.dst].setLane(0, 8, base+uint64(idx*int64(inst.extra)))

		case reactor.OpLoad:
			addr := uintptr(regs[inst.a].lane(0, 8))
			n := width * lanes
			src := unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
			copy(regs[inst.dst].b[:n], src)

		case reactor.OpStore:
			addr := uintptr(regs[inst.a].lane(0, 8))
			n := width * lanes
			dst := unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
			copy(dst, regs[inst.b].b[:n])

		case reactor.OpAtomicLoad:
			addr := unsafe.Pointer(uintptr(regs[inst.a].lane(0, 8)))
			// Go atomics are sequentially consistent, which satisfies
			// every requested order.
			if width == 8 {
				regs[inst.dst].setLane(0, 8, atomic.LoadUint64((*uint64)(addr)))
			} else {
				regs[inst.dst].setLane(0, 4, uint64(atomic.LoadUint32((*uint32)(addr))))
			}

		case reactor.OpAtomicStore:
			addr := unsafe.Pointer(uintptr(regs[inst.a].lane(0, 8)))
			if width == 8 {
				atomic.StoreUint64((*uint64)(addr), regs[inst.b].lane(0, 8))
			} else {
				atomic.StoreUint32((*uint32)(addr), uint32(regs[inst.b].lane(0, 4)))
			}

		case reactor.OpAdd, reactor.OpSub, reactor.OpMul, reactor.OpDiv, reactor.OpMod,
			reactor.OpMin, reactor.OpMax, reactor.OpMulHigh:
			execArith(inst, regs, width, lanes, signed, isFloat)

		case reactor.OpNeg:
			r := &regs[inst.dst]
			a := regs[inst.a]
			for i := 0; i < lanes; i++ {
				if isFloat {
					r.setLane(i, width, uint64(math.Float32bits(-math.Float32frombits(uint32(a.lane(i, width))))))
				} else {
					r.setLane(i, width, uint64(-signExtend(a.lane(i, width), width))&allOnes(width))
				}
			}

		case reactor.OpAbs:
			r := &regs[inst.dst]
			a := regs[inst.a]
			for i := 0; i < lanes; i++ {
				if isFloat {
					r.setLane(i, width, uint64(math.Float32bits(float32(math.Abs(float64(math.Float32frombits(uint32(a.lane(i, width)))))))))
				} else {
					v := signExtend(a.lane(i, width), width)
					if v < 0 {
						v = -v
					}
					r.setLane(i, width, uint64(v)&allOnes(width))
				}
			}

		case reactor.OpAnd, reactor.OpOr, reactor.OpXor:
			r := &regs[inst.dst]
			a, b := regs[inst.a], regs[inst.b]
			for i := 0; i < lanes; i++ {
				x, y := a.lane(i, width), b.lane(i, width)
				var v uint64
				switch inst.op {
				case reactor.OpAnd:
					v = x & y
				case reactor.OpOr:
					v = x | y
				case reactor.OpXor:
					v = x ^ y
				}
				r.setLane(i, width, v)
			}

		case reactor.OpNot:
			r := &regs[inst.dst]
			a := regs[inst.a]
			for i := 0; i < lanes; i++ {
				if inst.kind == reactor.KindBool {
					if a.lane(i, width) == 0 {
						r.setLane(i, width, 1)
					} else {
						r.setLane(i, width, 0)
					}
				} else {
					r.setLane(i, width, ^a.lane(i, width)&allOnes(width))
				}
			}

		case reactor.OpShl, reactor.OpShr:
			r := &regs[inst.dst]
			a := regs[inst.a]
			amount := uint(regs[inst.b].lane(0, 8))
			for i := 0; i < lanes; i++ {
				v := a.lane(i, width)
				if amount >= uint(8*width) {
					if inst.op == reactor.OpShr && signed && signExtend(v, width) < 0 {
						r.setLane(i, width, allOnes(width))
					} else {
						r.setLane(i, width, 0)
					}
					continue
				}
				if inst.op == reactor.OpShl {
					r.setLane(i, width, (v<<amount)&allOnes(width))
				} else if signed {
					r.setLane(i, width, uint64(signExtend(v, width)>>amount)&allOnes(width))
				} else {
					r.setLane(i, width, v>>amount)
				}
			}

		case reactor.OpEq, reactor.OpNe, reactor.OpLt, reactor.OpLe, reactor.OpGt, reactor.OpGe:
			execCompare(inst, regs)

		case reactor.OpSelect:
			r := &regs[inst.dst]
			cond := regs[inst.a]
			a, b := regs[inst.b], regs[inst.c]
			if int(inst.srcLanes) <= 1 && inst.lanes > 1 {
				// Scalar condition over vector arms.
				if cond.lane(0, 1) != 0 {
					*r = a
				} else {
					*r = b
				}
				break
			}
			condWidth := width
			for i := 0; i < lanes; i++ {
				if cond.lane(i, condWidth) != 0 {
					r.setLane(i, width, a.lane(i, width))
				} else {
					r.setLane(i, width, b.lane(i, width))
				}
			}

		case reactor.OpSwizzle:
			r := regval{}
			a := regs[inst.a]
			sel := uint16(inst.imm[0])
			for i := 0; i < 4; i++ {
				r.setLane(i, width, a.lane(reactor.SwizzleLane(sel, i), width))
			}
			regs[inst.dst] = r

		case reactor.OpShuffle:
			r := regval{}
			a, b := regs[inst.a], regs[inst.b]
			sel := inst.imm[0]
			for i := 0; i < 4; i++ {
				l := int(sel>>(3*uint(3-i))) & 7
				if l < 4 {
					r.setLane(i, width, a.lane(l, width))
				} else {
					r.setLane(i, width, b.lane(l-4, width))
				}
			}
			regs[inst.dst] = r

		case reactor.OpInsert:
			r := regs[inst.a]
			r.setLane(int(inst.extra), width, regs[inst.b].lane(0, width))
			regs[inst.dst] = r

		case reactor.OpExtract:
			src := regs[inst.a]
			srcWidth := inst.srcKind.ScalarBytes()
			regs[inst.dst] = regval{}
			regs[inst.dst].setLane(0, width, src.lane(int(inst.extra), srcWidth))

		case reactor.OpAddSat, reactor.OpSubSat:
			r := &regs[inst.dst]
			a, b := regs[inst.a], regs[inst.b]
			for i := 0; i < lanes; i++ {
				var x, y int64
				if signed {
					x, y = signExtend(a.lane(i, width), width), signExtend(b.lane(i, width), width)
				} else {
					x, y = int64(a.lane(i, width)), int64(b.lane(i, width))
				}
				var v int64
				if inst.op == reactor.OpAddSat {
					v = x + y
				} else {
					v = x - y
				}
				r.setLane(i, width, saturate(v, width, signed))
			}

		case reactor.OpPackSigned, reactor.OpPackUnsigned:
			execPack(inst, regs)

		case reactor.OpRound, reactor.OpFloor, reactor.OpCeil, reactor.OpTrunc, reactor.OpFrac,
			reactor.OpRcp, reactor.OpRcpSqrt, reactor.OpSqrt:
			r := &regs[inst.dst]
			a := regs[inst.a]
			for i := 0; i < lanes; i++ {
				x := float64(math.Float32frombits(uint32(a.lane(i, width))))
				var v float64
				switch inst.op {
				case reactor.OpRound:
					v = math.RoundToEven(x)
				case reactor.OpFloor:
					v = math.Floor(x)
				case reactor.OpCeil:
					v = math.Ceil(x)
				case reactor.OpTrunc:
					v = math.Trunc(x)
				case reactor.OpFrac:
					v = x - math.Floor(x)
				case reactor.OpRcp:
					v = 1 / x
				case reactor.OpRcpSqrt:
					v = 1 / math.Sqrt(x)
				case reactor.OpSqrt:
					v = math.Sqrt(x)
				}
				r.setLane(i, width, uint64(math.Float32bits(float32(v))))
			}

		case reactor.OpMulAdd:
			r := &regs[inst.dst]
			a, b, c := regs[inst.a], regs[inst.b], regs[inst.c]
			for i := 0; i < lanes; i++ {
				if isFloat {
					x := math.Float32frombits(uint32(a.lane(i, width)))
					y := math.Float32frombits(uint32(b.lane(i, width)))
					z := math.Float32frombits(uint32(c.lane(i, width)))
					r.setLane(i, width, uint64(math.Float32bits(x*y+z)))
				} else {
					x := signExtend(a.lane(i, width), width)
					y := signExtend(b.lane(i, width), width)
					z := signExtend(c.lane(i, width), width)
					r.setLane(i, width, uint64(x*y+z)&allOnes(width))
				}
			}

		case reactor.OpSignMask:
			a := regs[inst.a]
			srcWidth := inst.srcKind.ScalarBytes()
			srcLanes := int(inst.srcLanes)
			var mask uint64
			for i := 0; i < srcLanes; i++ {
				if a.lane(i, srcWidth)>>(8*uint(srcWidth)-1) != 0 {
					mask |= 1 << uint(i)
				}
			}
			regs[inst.dst] = regval{}
			regs[inst.dst].setLane(0, 4, mask)

		case reactor.OpBitCast:
			regs[inst.dst] = regs[inst.a]

		case reactor.OpConvert, reactor.OpConvertTrunc:
			execConvert(inst, regs)

		case reactor.OpCallExternal:
			var callArgs []uint64
			for _, s := range []int32{inst.a, inst.b, inst.c} {
				if s >= 0 {
					callArgs = append(callArgs, regs[s].lane(0, 8))
				}
			}
			result := inst.sym(callArgs)
			if inst.dst >= 0 {
				regs[inst.dst] = regval{}
				regs[inst.dst].setLane(0, 8, result)
			}

		case reactor.OpBranch:
			pc = int(inst.target)

		case reactor.OpCondBranch:
			if regs[inst.a].lane(0, 1) != 0 {
				pc = int(inst.target)
			} else {
				pc = int(inst.alt)
			}

		case reactor.OpReturn:
			if inst.a >= 0 {
				return regs[inst.a].lane(0, 8)
			}
			return 0
		}
	}
	return 0
}

func execArith(inst *flatInstr, regs []regval, width, lanes int, signed, isFloat bool) {
	r := &regs[inst.dst]
	a, b := regs[inst.a], regs[inst.b]
	for i := 0; i < lanes; i++ {
		if isFloat {
			x := float64(math.Float32frombits(uint32(a.lane(i, width))))
			y := float64(math.Float32frombits(uint32(b.lane(i, width))))
			var v float64
			switch inst.op {
			case reactor.OpAdd:
				v = x + y
			case reactor.OpSub:
				v = x - y
			case reactor.OpMul:
				v = x * y
			case reactor.OpDiv:
				// IEEE semantics: inf/nan, never a trap.
				v = x / y
			case reactor.OpMod:
				v = math.Mod(x, y)
			case reactor.OpMin:
				v = math.Min(x, y)
			case reactor.OpMax:
				v = math.Max(x, y)
			}
			r.setLane(i, width, uint64(math.Float32bits(float32(v))))
			continue
		}
		x := signExtend(a.lane(i, width), width)
		y := signExtend(b.lane(i, width), width)
		if !signed {
			x, y = int64(a.lane(i, width)), int64(b.lane(i, width))
		}
		var v int64
		switch inst.op {
		case reactor.OpAdd:
			v = x + y
		case reactor.OpSub:
			v = x - y
		case reactor.OpMul:
			v = x * y
		case reactor.OpDiv:
			if y == 0 {
				v = 0
			} else {
				v = x / y
			}
		case reactor.OpMod:
			if y == 0 {
				v = 0
			} else {
				v = x % y
			}
		case reactor.OpMin:
			v = x
			if y < x {
				v = y
			}
		case reactor.OpMax:
			v = x
			if y > x {
				v = y
			}
		case reactor.OpMulHigh:
			v = (x * y) >> (8 * uint(width))
		}
		r.setLane(i, width, uint64(v)&allOnes(width))
	}
}

func execCompare(inst *flatInstr, regs []regval) {
	srcWidth := inst.srcKind.ScalarBytes()
	srcLanes := int(inst.srcLanes)
	isFloat := inst.srcKind == reactor.KindFloat
	signed := inst.srcKind.Signed()
	a, b := regs[inst.a], regs[inst.b]
	r := regval{}

	scalarResult := int(inst.lanes) <= 1 && srcLanes <= 1

	for i := 0; i < srcLanes; i++ {
		var result bool
		if isFloat {
			x := math.Float32frombits(uint32(a.lane(i, srcWidth)))
			y := math.Float32frombits(uint32(b.lane(i, srcWidth)))
			switch inst.op {
			case reactor.OpEq:
				result = x == y
			case reactor.OpNe:
				result = x != y
			case reactor.OpLt:
				result = x < y
			case reactor.OpLe:
				result = x <= y
			case reactor.OpGt:
				result = x > y
			case reactor.OpGe:
				result = x >= y
			}
		} else {
			var x, y int64
			if signed {
				x, y = signExtend(a.lane(i, srcWidth), srcWidth), signExtend(b.lane(i, srcWidth), srcWidth)
			} else {
				x, y = int64(a.lane(i, srcWidth)), int64(b.lane(i, srcWidth))
			}
			switch inst.op {
			case reactor.OpEq:
				result = x == y
			case reactor.OpNe:
				result = x != y
			case reactor.OpLt:
				result = x < y
			case reactor.OpLe:
				result = x <= y
			case reactor.OpGt:
				result = x > y
			case reactor.OpGe:
				result = x >= y
			}
		}
		if scalarResult {
			if result {
				r.setLane(0, 1, 1)
			}
			break
		}
		if result {
			r.setLane(i, srcWidth, allOnes(srcWidth))
		}
	}
	regs[inst.dst] = r
}

func execPack(inst *flatInstr, regs []regval) {
	srcWidth := inst.srcKind.ScalarBytes()
	srcLanes := int(inst.srcLanes)
	dstWidth := inst.kind.ScalarBytes()
	signed := inst.op == reactor.OpPackSigned
	a, b := regs[inst.a], regs[inst.b]
	r := regval{}
	for i := 0; i < srcLanes; i++ {
		v := signExtend(a.lane(i, srcWidth), srcWidth)
		r.setLane(i, dstWidth, saturate(v, dstWidth, signed))
	}
	for i := 0; i < srcLanes; i++ {
		v := signExtend(b.lane(i, srcWidth), srcWidth)
		r.setLane(srcLanes+i, dstWidth, saturate(v, dstWidth, signed))
	}
	regs[inst.dst] = r
}

func execConvert(inst *flatInstr, regs []regval) {
	srcWidth := inst.srcKind.ScalarBytes()
	dstWidth := inst.kind.ScalarBytes()
	lanes := int(inst.lanes)
	a := regs[inst.a]
	r := regval{}

	for i := 0; i < lanes; i++ {
		raw := a.lane(i, srcWidth)
		switch {
		case inst.srcKind == reactor.KindFloat && inst.kind == reactor.KindFloat:
			r.setLane(i, dstWidth, raw)
		case inst.srcKind == reactor.KindFloat:
			x := float64(math.Float32frombits(uint32(raw)))
			var v int64
			if inst.op == reactor.OpConvertTrunc {
				v = int64(math.Trunc(x))
			} else {
				v = int64(math.RoundToEven(x))
			}
			r.setLane(i, dstWidth, uint64(v)&allOnes(dstWidth))
		case inst.kind == reactor.KindFloat:
			var x float64
			if inst.srcKind.Signed() {
				x = float64(signExtend(raw, srcWidth))
			} else {
				x = float64(raw)
			}
			r.setLane(i, dstWidth, uint64(math.Float32bits(float32(x))))
		default:
			// Integer width/sign change.
			var v uint64
			if inst.srcKind.Signed() {
				v = uint64(signExtend(raw, srcWidth))
			} else {
				v = raw
			}
			r.setLane(i, dstWidth, v&allOnes(dstWidth))
		}
	}
	regs[inst.dst] = r
}
