package pipeline

import "unsafe"

// Implementation limits shared with the front end.
const (
	// MaxVaryings is the number of four-component varying registers
	// carried between the stages.
	MaxVaryings = 10

	// MaxUniforms is the size of the uniform register file.
	MaxUniforms = 256

	// MaxSamplers is the number of texture units.
	MaxSamplers = 16

	// MaxAttributes is the number of vertex attribute slots.
	MaxAttributes = 16

	// OutlineResolution bounds the framebuffer height a primitive
	// outline can describe.
	OutlineResolution = 4096
)

// Vertex is one post-transform vertex: clip-space position turned
// into screen space by the renderer, the point size, and the varying
// registers.
type Vertex struct {
	Position  [4]float32 // x, y in screen space; z in [0,1]; w = clip w
	PointSize float32
	ClipMask  uint32 // outcode against the view volume
	_         [2]uint32
	Varyings  [MaxVaryings][4]float32
}

// Triangle is the setup routine's input.
type Triangle struct {
	V0, V1, V2 Vertex
}

// PlaneEquation holds v = A·x + B·y + C for one scalar attribute in
// screen coordinates.
type PlaneEquation struct {
	A, B, C float32
	_       float32
}

// Span is the covered pixel range of one scanline, left inclusive,
// right exclusive.
type Span struct {
	Left, Right uint16
}

// Primitive is a set-up triangle ready for rasterization.
type Primitive struct {
	YMin, YMax int32 // scanline bounds, YMax exclusive
	Area       float32
	FrontFace  uint32 // 1 when the triangle is front-facing

	// Two-sided stencil write masks.
	ClockwiseMask    int64
	InvClockwiseMask int64

	Z, W PlaneEquation

	// V holds one plane equation per varying component.
	V [MaxVaryings][4]PlaneEquation

	Outline [OutlineResolution]Span
}

// SamplerData describes one bound texture level as the routines read
// it: tightly packed RGBA8 texels.
type SamplerData struct {
	Data          uint64 // texel base address
	Width, Height int32
	WrapS, WrapT  int32 // 0 repeat, 1 clamp to edge
	Linear        int32 // bilinear flag; not read, sampling is always nearest
	_             int32
}

// DrawData is the per-draw constant block every routine receives.
type DrawData struct {
	Uniforms [MaxUniforms][4]float32
	Samplers [MaxSamplers]SamplerData

	// Attribute stream base addresses; layout is baked into the
	// vertex routine from the state vector.
	AttribBase [MaxAttributes]uint64
}

// SpanRange is the scanline strip one pixel-routine invocation
// covers: [Y0, Y1).
type SpanRange struct {
	Y0, Y1 int32
}

// Framebuffer is the render target as the routines address it.
type Framebuffer struct {
	Color   uint64 // RGBA8 (or BGRA8 per channel order), row-major
	Depth   uint64 // float32 per pixel, 0 when no depth buffer
	Stencil uint64 // uint8 per pixel, 0 when no stencil buffer
	Width   int32
	Height  int32
	Pitch   int32 // color row stride in pixels
	_       int32
}

// Byte offsets the routine generators bake into emitted address
// arithmetic. Using unsafe.Offsetof keeps them in lockstep with the
// structs above.
var (
	vertexPositionOff  = int(unsafe.Offsetof(Vertex{}.Position))
	vertexPointSizeOff = int(unsafe.Offsetof(Vertex{}.PointSize))
	vertexVaryingsOff  = int(unsafe.Offsetof(Vertex{}.Varyings))
	vertexSize         = int(unsafe.Sizeof(Vertex{}))

	triangleV0Off = int(unsafe.Offsetof(Triangle{}.V0))
	triangleV1Off = int(unsafe.Offsetof(Triangle{}.V1))
	triangleV2Off = int(unsafe.Offsetof(Triangle{}.V2))

	primYMinOff      = int(unsafe.Offsetof(Primitive{}.YMin))
	primYMaxOff      = int(unsafe.Offsetof(Primitive{}.YMax))
	primAreaOff      = int(unsafe.Offsetof(Primitive{}.Area))
	primFrontOff     = int(unsafe.Offsetof(Primitive{}.FrontFace))
	primCWMaskOff    = int(unsafe.Offsetof(Primitive{}.ClockwiseMask))
	primInvCWMaskOff = int(unsafe.Offsetof(Primitive{}.InvClockwiseMask))
	primZOff       = int(unsafe.Offsetof(Primitive{}.Z))
	primWOff       = int(unsafe.Offsetof(Primitive{}.W))
	primVOff       = int(unsafe.Offsetof(Primitive{}.V))
	primOutlineOff = int(unsafe.Offsetof(Primitive{}.Outline))

	planeSize = int(unsafe.Sizeof(PlaneEquation{}))
	spanSize  = int(unsafe.Sizeof(Span{}))

	drawUniformsOff = int(unsafe.Offsetof(DrawData{}.Uniforms))
	drawSamplersOff = int(unsafe.Offsetof(DrawData{}.Samplers))
	drawAttribOff   = int(unsafe.Offsetof(DrawData{}.AttribBase))
	samplerSize     = int(unsafe.Sizeof(SamplerData{}))

	fbColorOff   = int(unsafe.Offsetof(Framebuffer{}.Color))
	fbDepthOff   = int(unsafe.Offsetof(Framebuffer{}.Depth))
	fbStencilOff = int(unsafe.Offsetof(Framebuffer{}.Stencil))
	fbWidthOff   = int(unsafe.Offsetof(Framebuffer{}.Width))
	fbPitchOff   = int(unsafe.Offsetof(Framebuffer{}.Pitch))
)
