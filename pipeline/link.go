package pipeline

import (
	"fmt"

	"github.com/gogpu/swgl/ir"
)

// VaryingSlot binds one shader-side varying register to a slot of
// Vertex.Varyings.
type VaryingSlot struct {
	Register   int // register in the program's input/output bank
	Slot       int // index into Vertex.Varyings
	Registers  int // registers spanned (arrays/matrices)
	Components int
	Flat       bool
}

// Linkage is the agreed varying layout of a linked program pair.
type Linkage struct {
	VertexOut  []VaryingSlot
	FragmentIn []VaryingSlot
	SlotCount  int
}

// LinkVaryings matches the vertex shader's outputs against the
// fragment shader's inputs by name and assigns packed slots. A
// fragment input with no matching vertex output is a link error;
// unmatched vertex outputs are dropped.
func LinkVaryings(vertex, fragment *ir.Program) (*Linkage, error) {
	byName := make(map[string]*ir.Varying)
	for i := range vertex.Outputs {
		v := &vertex.Outputs[i]
		byName[v.Name] = v
	}

	link := &Linkage{}
	slot := 0
	for i := range fragment.Inputs {
		in := &fragment.Inputs[i]
		switch in.Name {
		case "gl_FragCoord", "gl_FrontFacing", "gl_PointCoord":
			continue
		}
		out, ok := byName[in.Name]
		if !ok {
			return nil, fmt.Errorf("pipeline: varying %s has no vertex shader output", in.Name)
		}
		if out.Components != in.Components || out.Size != in.Size {
			return nil, fmt.Errorf("pipeline: varying %s type mismatch between stages", in.Name)
		}
		if slot+out.Size > MaxVaryings {
			return nil, fmt.Errorf("pipeline: too many varyings (limit %d registers)", MaxVaryings)
		}
		flat := in.Interpolation == ir.InterpFlat
		link.VertexOut = append(link.VertexOut, VaryingSlot{
			Register: out.Register, Slot: slot, Registers: out.Size,
			Components: out.Components, Flat: flat,
		})
		link.FragmentIn = append(link.FragmentIn, VaryingSlot{
			Register: in.Register, Slot: slot, Registers: in.Size,
			Components: in.Components, Flat: flat,
		})
		slot += out.Size
	}
	link.SlotCount = slot
	return link, nil
}
