package backend

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/swgl/reactor"
)

// opMove is the internal register-to-register move the emitter uses
// for loads and stores of SROA-promoted stack slots. It lives above
// the reactor opcode space.
const opMove = reactor.Op(0xF0)

// flatInstr is one instruction of the emitted register program.
type flatInstr struct {
	op    reactor.Op
	kind  reactor.Kind
	lanes uint8

	dst, a, b, c int32 // register slots, -1 when absent

	imm   []uint64
	extra uint64 // gep scale, lane index, frame offset, param index

	srcKind  reactor.Kind // conversion source kind
	srcLanes uint8

	sym   ExternalFunc
	order reactor.MemoryOrder

	target, alt int32 // branch targets as pc values
}

// Program is the materialized form of one reactor function: the flat
// instruction list plus the page block that owns its encoded image.
type Program struct {
	Name   string
	instrs []flatInstr
	regs   int
	frame  int
	params []reactor.Type
	ret    reactor.Type
	pages  *PageBlock
}

// emit lowers an optimized reactor function to a flat program.
func emit(f *reactor.Function) (*Program, error) {
	p := &Program{
		Name:   f.Name,
		params: f.Params,
		ret:    f.Ret,
	}

	slots := make(map[*reactor.Node]int32)
	slotOf := func(n *reactor.Node) int32 {
		if s, ok := slots[n]; ok {
			return s
		}
		s := int32(p.regs)
		p.regs++
		slots[n] = s
		return s
	}
	argSlot := func(n *reactor.Node, i int) int32 {
		if i >= len(n.Args) {
			return -1
		}
		return slotOf(n.Args[i])
	}

	// Frame layout and promoted-slot registers for allocas.
	promoted := make(map[*reactor.Node]bool)
	frameOff := make(map[*reactor.Node]int)
	for _, b := range f.Blocks {
		for _, n := range b.Nodes {
			if n.Op != reactor.OpAlloca {
				continue
			}
			if len(n.Imm) > 1 && n.Imm[1] == 1 {
				promoted[n] = true
				slotOf(n)
				continue
			}
			size := int(n.Imm[0])
			p.frame = (p.frame + 15) &^ 15
			frameOff[n] = p.frame
			p.frame += size
		}
	}

	blockStart := make(map[*reactor.Block]int32)
	type patch struct {
		pc     int
		target *reactor.Block
		alt    *reactor.Block
	}
	var patches []patch

	for _, b := range f.Blocks {
		blockStart[b] = int32(len(p.instrs))
		for _, n := range b.Nodes {
			switch n.Op {
			case reactor.OpNop:
				continue
			case reactor.OpAlloca:
				if promoted[n] {
					continue
				}
				p.instrs = append(p.instrs, flatInstr{
					op: reactor.OpAlloca, kind: reactor.KindPointer, lanes: 1,
					dst: slotOf(n), a: -1, b: -1, c: -1,
					extra: uint64(frameOff[n]),
				})
				continue
			case reactor.OpLoad:
				if promoted[n.Args[0]] {
					p.instrs = append(p.instrs, flatInstr{
						op: opMove, kind: n.Type.Kind, lanes: uint8(laneCount(n.Type)),
						dst: slotOf(n), a: slots[n.Args[0]], b: -1, c: -1,
					})
					continue
				}
			case reactor.OpStore:
				if promoted[n.Args[0]] {
					p.instrs = append(p.instrs, flatInstr{
						op: opMove, kind: n.Args[1].Type.Kind, lanes: uint8(laneCount(n.Args[1].Type)),
						dst: slots[n.Args[0]], a: slotOf(n.Args[1]), b: -1, c: -1,
					})
					continue
				}
			}

			inst := flatInstr{
				op:    n.Op,
				kind:  n.Type.Kind,
				lanes: uint8(laneCount(n.Type)),
				dst:   -1,
				a:     argSlot(n, 0),
				b:     argSlot(n, 1),
				c:     argSlot(n, 2),
				imm:   n.Imm,
				order: n.Order,
			}
			if n.Type.Kind != reactor.KindVoid {
				inst.dst = slotOf(n)
			}
			if len(n.Args) > 0 {
				inst.srcKind = n.Args[0].Type.Kind
				inst.srcLanes = uint8(laneCount(n.Args[0].Type))
			}
			switch n.Op {
			case reactor.OpParam, reactor.OpExtract, reactor.OpInsert, reactor.OpGEP:
				if len(n.Imm) > 0 {
					inst.extra = n.Imm[0]
				}
			case reactor.OpStore:
				inst.kind = n.Args[1].Type.Kind
				inst.lanes = uint8(laneCount(n.Args[1].Type))
			case reactor.OpAtomicStore:
				inst.kind = n.Args[1].Type.Kind
				inst.lanes = uint8(laneCount(n.Args[1].Type))
			case reactor.OpCallExternal:
				fn, err := ResolveSymbol(n.Sym)
				if err != nil {
					return nil, err
				}
				inst.sym = fn
				// Arguments beyond the third are not needed by any
				// whitelisted symbol.
				if len(n.Args) > 3 {
					return nil, fmt.Errorf("backend: call to %s with %d arguments", n.Sym, len(n.Args))
				}
			case reactor.OpBranch, reactor.OpCondBranch:
				patches = append(patches, patch{pc: len(p.instrs), target: n.Target, alt: n.AltTarget})
			}
			p.instrs = append(p.instrs, inst)
		}
	}

	for _, pt := range patches {
		if pt.target != nil {
			p.instrs[pt.pc].target = blockStart[pt.target]
		}
		if pt.alt != nil {
			p.instrs[pt.pc].alt = blockStart[pt.alt]
		}
	}

	return p, nil
}

func laneCount(t reactor.Type) int {
	if t.Lanes == 0 {
		return 1
	}
	return t.Lanes
}

// encode serializes the program image that the routine's pages own:
// a small header followed by one record per instruction.
func (p *Program) encode() []byte {
	var buf []byte
	put32 := func(v uint32) {
		var w [4]byte
		binary.LittleEndian.PutUint32(w[:], v)
		buf = append(buf, w[:]...)
	}
	put64 := func(v uint64) {
		var w [8]byte
		binary.LittleEndian.PutUint64(w[:], v)
		buf = append(buf, w[:]...)
	}

	put32(uint32(len(p.instrs)))
	put32(uint32(p.regs))
	put32(uint32(p.frame))
	put32(uint32(len(p.params)))
	for _, inst := range p.instrs {
		put32(uint32(inst.op) | uint32(inst.kind)<<8 | uint32(inst.lanes)<<16 | uint32(inst.order)<<24)
		put32(uint32(inst.dst))
		put32(uint32(inst.a))
		put32(uint32(inst.b))
		put32(uint32(inst.c))
		put32(uint32(inst.target))
		put32(uint32(inst.alt))
		put32(uint32(len(inst.imm)))
		for _, imm := range inst.imm {
			put64(imm)
		}
		put64(inst.extra)
	}
	return buf
}

// materializePages copies the encoded program into executable pages
// and write-protects them.
func (p *Program) materializePages() error {
	image := p.encode()
	pages, err := AllocatePages(len(image), PermRead|PermWrite)
	if err != nil {
		return err
	}
	copy(pages.Bytes(), image)
	if err := pages.Protect(PermRead | PermExecute); err != nil {
		pages.Free()
		return err
	}
	p.pages = pages
	return nil
}

// release returns the pages to the system.
func (p *Program) release() {
	if p.pages != nil {
		p.pages.Free()
		p.pages = nil
	}
}
