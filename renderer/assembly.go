package renderer

// PrimitiveMode is the draw-call primitive type.
type PrimitiveMode uint8

const (
	Points PrimitiveMode = iota
	Lines
	LineStrip
	LineLoop
	Triangles
	TriangleStrip
	TriangleFan
)

// String returns the mode name.
func (m PrimitiveMode) String() string {
	switch m {
	case Points:
		return "points"
	case Lines:
		return "lines"
	case LineStrip:
		return "line_strip"
	case LineLoop:
		return "line_loop"
	case Triangles:
		return "triangles"
	case TriangleStrip:
		return "triangle_strip"
	case TriangleFan:
		return "triangle_fan"
	}
	return "invalid"
}

// assemble walks the index stream in the order the primitive mode
// demands and returns index triples for triangles, pairs for lines,
// and single indices for points.
func assemble(mode PrimitiveMode, indices []uint32) [][]uint32 {
	var prims [][]uint32
	n := len(indices)
	switch mode {
	case Points:
		for _, i := range indices {
			prims = append(prims, []uint32{i})
		}
	case Lines:
		for i := 0; i+1 < n; i += 2 {
			prims = append(prims, []uint32{indices[i], indices[i+1]})
		}
	case LineStrip:
		for i := 0; i+1 < n; i++ {
			prims = append(prims, []uint32{indices[i], indices[i+1]})
		}
	case LineLoop:
		for i := 0; i+1 < n; i++ {
			prims = append(prims, []uint32{indices[i], indices[i+1]})
		}
		if n >= 2 {
			prims = append(prims, []uint32{indices[n-1], indices[0]})
		}
	case Triangles:
		for i := 0; i+2 < n; i += 3 {
			prims = append(prims, []uint32{indices[i], indices[i+1], indices[i+2]})
		}
	case TriangleStrip:
		for i := 0; i+2 < n; i++ {
			if i%2 == 0 {
				prims = append(prims, []uint32{indices[i], indices[i+1], indices[i+2]})
			} else {
				// Odd triangles flip winding to stay consistent.
				prims = append(prims, []uint32{indices[i+1], indices[i], indices[i+2]})
			}
		}
	case TriangleFan:
		for i := 1; i+1 < n; i++ {
			prims = append(prims, []uint32{indices[0], indices[i], indices[i+1]})
		}
	}
	return prims
}
