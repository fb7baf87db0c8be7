package renderer

import "github.com/gogpu/swgl/pipeline"

// clipVertex is a clip-space vertex during polygon clipping.
type clipVertex struct {
	pos       [4]float32
	pointSize float32
	varyings  [pipeline.MaxVaryings][4]float32
}

func lerpClip(a, b *clipVertex, t float32) clipVertex {
	var out clipVertex
	for i := 0; i < 4; i++ {
		out.pos[i] = a.pos[i] + (b.pos[i]-a.pos[i])*t
	}
	out.pointSize = a.pointSize + (b.pointSize-a.pointSize)*t
	for v := range out.varyings {
		for c := 0; c < 4; c++ {
			out.varyings[v][c] = a.varyings[v][c] + (b.varyings[v][c]-a.varyings[v][c])*t
		}
	}
	return out
}

// clipPlane is one frustum boundary: distance(v) >= 0 keeps the
// vertex.
type clipPlane func(v *clipVertex) float32

var frustumPlanes = []clipPlane{
	func(v *clipVertex) float32 { return v.pos[3] + v.pos[0] }, // x >= -w
	func(v *clipVertex) float32 { return v.pos[3] - v.pos[0] }, // x <= w
	func(v *clipVertex) float32 { return v.pos[3] + v.pos[1] }, // y >= -w
	func(v *clipVertex) float32 { return v.pos[3] - v.pos[1] }, // y <= w
	func(v *clipVertex) float32 { return v.pos[3] + v.pos[2] }, // z >= -w
	func(v *clipVertex) float32 { return v.pos[3] - v.pos[2] }, // z <= w
}

// clipTriangle clips one clip-space triangle against the view volume
// with Sutherland–Hodgman, yielding a polygon of at most nine
// vertices (up to seven beyond the original two surviving ones).
// Varyings and w interpolate linearly along the clipped edges. An
// empty result means the triangle is fully outside.
func clipTriangle(v0, v1, v2 clipVertex) []clipVertex {
	poly := []clipVertex{v0, v1, v2}
	for _, plane := range frustumPlanes {
		if len(poly) == 0 {
			return nil
		}
		var out []clipVertex
		for i := range poly {
			curr := &poly[i]
			prev := &poly[(i+len(poly)-1)%len(poly)]
			currDist := plane(curr)
			prevDist := plane(prev)
			currIn := currDist >= 0
			prevIn := prevDist >= 0

			if currIn != prevIn {
				t := prevDist / (prevDist - currDist)
				out = append(out, lerpClip(prev, curr, t))
			}
			if currIn {
				out = append(out, *curr)
			}
		}
		poly = out
	}
	return poly
}

// outcode classifies a clip-space position against the view volume,
// one bit per violated plane.
func outcode(pos [4]float32) uint32 {
	var code uint32
	w := pos[3]
	if pos[0] < -w {
		code |= 1 << 0
	}
	if pos[0] > w {
		code |= 1 << 1
	}
	if pos[1] < -w {
		code |= 1 << 2
	}
	if pos[1] > w {
		code |= 1 << 3
	}
	if pos[2] < -w {
		code |= 1 << 4
	}
	if pos[2] > w {
		code |= 1 << 5
	}
	return code
}
