package pipeline

import (
	"fmt"

	"github.com/gogpu/swgl/ir"
	"github.com/gogpu/swgl/reactor"
)

// vertexBinding homes the vertex stage's registers: inputs come from
// attribute fetch, outputs go to Vertex structs.
type vertexBinding struct {
	f        *reactor.Function
	draw     reactor.Value
	inputs   map[int]*reactor.Var
	outputs  map[int]*reactor.Var
	uniforms reactor.Value
}

func (b *vertexBinding) loadInput(i int) reactor.Value {
	if v, ok := b.inputs[i]; ok {
		return v.Load()
	}
	return b.f.Float4Const(0, 0, 0, 1)
}

func (b *vertexBinding) outputVar(i int) *reactor.Var {
	if v, ok := b.outputs[i]; ok {
		return v
	}
	v := b.f.NewVarInit(b.f.ConstFloat(reactor.Float4, 0))
	b.outputs[i] = v
	return v
}

func (b *vertexBinding) uniformBase() reactor.Value { return b.uniforms }
func (b *vertexBinding) drawData() reactor.Value    { return b.draw }

// BuildVertexRoutine synthesizes the vertex routine for the given
// state and vertex program. The routine's entry is:
//
//	vertex(draw *DrawData, out *Vertex, indices *uint32, count uint32)
//
// It fetches attributes per the baked descriptors, runs the shader,
// and writes one Vertex per input index.
func BuildVertexRoutine(state *State, prog *ir.Program, link *Linkage) (*reactor.Function, error) {
	f := reactor.NewFunction("vertex",
		[]reactor.Type{reactor.Pointer, reactor.Pointer, reactor.Pointer, reactor.UInt},
		reactor.Void)

	draw := f.Arg(0)
	outBase := f.Arg(1)
	indices := f.Arg(2)
	count := f.Arg(3)

	bind := &vertexBinding{
		f:        f,
		draw:     draw,
		inputs:   make(map[int]*reactor.Var),
		outputs:  make(map[int]*reactor.Var),
		uniforms: f.AddPtr(draw, f.ConstInt(reactor.Int, int64(drawUniformsOff))),
	}

	t, err := newTranslator(f, prog, bind)
	if err != nil {
		return nil, err
	}

	// Attribute registers used by the program, each bound to the
	// stream slot of its input register.
	type fetchPlan struct {
		register int
		slot     int
		attr     Attribute
	}
	var plan []fetchPlan
	for _, in := range prog.Inputs {
		// The input register is the attribute location.
		a := state.Attributes[in.Register%MaxAttributes]
		for r := 0; r < in.Size; r++ {
			plan = append(plan, fetchPlan{register: in.Register + r, slot: in.Register, attr: a})
		}
		bind.inputs[in.Register] = f.NewVarInit(f.Float4Const(0, 0, 0, 1))
		for r := 1; r < in.Size; r++ {
			bind.inputs[in.Register+r] = f.NewVarInit(f.Float4Const(0, 0, 0, 1))
		}
	}

	i := f.NewVarInit(f.ConstInt(reactor.UInt, 0))
	f.While(func() reactor.Value {
		return f.CmpLT(i.Load(), count)
	}, func() {
		// vi = indices[i]
		iv := i.Load()
		vi := f.Load(f.GEP(indices, iv, 4), reactor.UInt)

		for _, p := range plan {
			if !p.attr.Enabled {
				continue
			}
			value := emitAttributeFetch(f, draw, p.slot, p.attr, vi)
			bind.inputs[p.register].Store(value)
		}

		if err := t.emit(t.mainBody); err != nil {
			return
		}

		// Write the Vertex record.
		out := f.AddPtr(outBase, f.Mul(f.Convert(iv, reactor.Int), f.ConstInt(reactor.Int, int64(vertexSize))))
		f.Store(f.AddPtr(out, f.ConstInt(reactor.Int, int64(vertexPositionOff))),
			bind.outputVar(0).Load())
		f.Store(f.AddPtr(out, f.ConstInt(reactor.Int, int64(vertexPointSizeOff))),
			f.Extract(bind.outputVar(1).Load(), 0))
		for _, vs := range link.VertexOut {
			for r := 0; r < vs.Registers; r++ {
				off := vertexVaryingsOff + (vs.Slot+r)*16
				f.Store(f.AddPtr(out, f.ConstInt(reactor.Int, int64(off))),
					bind.outputVar(vs.Register+r).Load())
			}
		}

		i.Store(f.Add(iv, f.ConstInt(reactor.UInt, 1)))
	})
	f.Return(reactor.Value{})

	if t.err != nil {
		return nil, t.err
	}
	if err := f.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// emitAttributeFetch reads one attribute for one vertex per its
// descriptor: base + vi*stride + offset, converting and normalizing
// into a Float4 with (0,0,0,1) defaults.
func emitAttributeFetch(f *reactor.Function, draw reactor.Value, slot int, attr Attribute, vi reactor.Value) reactor.Value {
	base := f.Load(f.AddPtr(draw, f.ConstInt(reactor.Int, int64(drawAttribOff+slot*8))), reactor.Pointer)
	stride := int64(attr.Stride)
	if stride == 0 {
		stride = int64(attr.Count) * int64(attributeBytes(attr.Type))
	}
	ptr := f.AddPtr(base, f.Add(
		f.Mul(f.Convert(vi, reactor.Int), f.ConstInt(reactor.Int, stride)),
		f.ConstInt(reactor.Int, int64(attr.Offset))))

	out := f.Float4Const(0, 0, 0, 1)
	for c := 0; c < int(attr.Count) && c < 4; c++ {
		compPtr := f.AddPtr(ptr, f.ConstInt(reactor.Int, int64(c*attributeBytes(attr.Type))))
		var v reactor.Value
		switch attr.Type {
		case AttribFloat:
			v = f.Load(compPtr, reactor.Float)
		case AttribByte:
			raw := f.Load(compPtr, reactor.SByte)
			v = f.Convert(raw, reactor.Float)
			if attr.Normalized {
				v = f.Max(f.Div(v, f.ConstFloat(reactor.Float, 127)), f.ConstFloat(reactor.Float, -1))
			}
		case AttribUByte:
			raw := f.Load(compPtr, reactor.Byte)
			v = f.Convert(raw, reactor.Float)
			if attr.Normalized {
				v = f.Div(v, f.ConstFloat(reactor.Float, 255))
			}
		case AttribShort:
			raw := f.Load(compPtr, reactor.Short)
			v = f.Convert(raw, reactor.Float)
			if attr.Normalized {
				v = f.Max(f.Div(v, f.ConstFloat(reactor.Float, 32767)), f.ConstFloat(reactor.Float, -1))
			}
		case AttribUShort:
			raw := f.Load(compPtr, reactor.UShort)
			v = f.Convert(raw, reactor.Float)
			if attr.Normalized {
				v = f.Div(v, f.ConstFloat(reactor.Float, 65535))
			}
		default:
			v = f.ConstFloat(reactor.Float, 0)
		}
		out = f.Insert(out, v, c)
	}
	return out
}

func attributeBytes(t AttributeType) int {
	switch t {
	case AttribByte, AttribUByte:
		return 1
	case AttribShort, AttribUShort:
		return 2
	}
	return 4
}

// validateVertexProgram rejects programs the vertex stage cannot
// host.
func validateVertexProgram(prog *ir.Program) error {
	if prog.Type != ir.VertexShader {
		return fmt.Errorf("pipeline: program is not a vertex shader")
	}
	return nil
}
