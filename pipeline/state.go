package pipeline

import (
	"crypto/sha256"
	"encoding/binary"
)

// CompareFunc is a GL comparison function.
type CompareFunc uint8

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

// BlendFactor is a GL blend factor.
type BlendFactor uint8

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcColor
	BlendOneMinusSrcColor
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
	BlendDstColor
	BlendOneMinusDstColor
	BlendDstAlpha
	BlendOneMinusDstAlpha
)

// BlendEquation combines source and destination terms.
type BlendEquation uint8

const (
	BlendAdd BlendEquation = iota
	BlendSubtract
	BlendReverseSubtract
	BlendMin
	BlendMax
)

// CullMode selects back-face culling.
type CullMode uint8

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// ChannelOrder is the native color component ordering. The order is
// total: RGBA sorts before BGRA.
type ChannelOrder uint8

const (
	OrderRGBA ChannelOrder = iota
	OrderBGRA
)

// AttributeType is the source data type of a vertex attribute.
type AttributeType uint8

const (
	AttribFloat AttributeType = iota
	AttribByte
	AttribUByte
	AttribShort
	AttribUShort
)

// Attribute describes one bound vertex stream.
type Attribute struct {
	Enabled    bool
	Type       AttributeType
	Count      uint8 // components 1–4
	Normalized bool
	Stride     int32
	Offset     int32
}

// StencilState is one face of the stencil configuration.
type StencilState struct {
	Func      CompareFunc
	Ref       int32
	Mask      uint32
	WriteMask uint32
	// Ops: 0 keep, 1 zero, 2 replace, 3 incr, 4 decr, 5 invert,
	// 6 incr wrap, 7 decr wrap
	FailOp, ZFailOp, PassOp uint8
}

// State is the pipeline state vector a specialization embeds. Two
// draws with equal state (and the same program) share routines.
type State struct {
	// Vertex fetch
	Attributes [MaxAttributes]Attribute

	// Rasterization
	Cull           CullMode
	FrontFaceCCW   bool
	DepthTest      bool
	DepthFunc      CompareFunc
	DepthWrite     bool
	StencilTest    bool
	StencilFront   StencilState
	StencilBack    StencilState
	AlphaToCoverage bool
	SampleCount    uint8

	// Blending
	BlendEnabled   bool
	BlendEquation  BlendEquation
	SrcBlend       BlendFactor
	DstBlend       BlendFactor
	SrcBlendAlpha  BlendFactor
	DstBlendAlpha  BlendFactor
	ColorWriteMask uint8 // bit 0 = red

	// Scissor
	ScissorTest                bool
	ScissorX, ScissorY         int32
	ScissorWidth, ScissorHeight int32

	// Framebuffer
	Order ChannelOrder
}

// DefaultState returns GL default state: no tests, no blending, all
// channels written.
func DefaultState() State {
	return State{
		DepthFunc:      CompareLess,
		DepthWrite:     true,
		FrontFaceCCW:   true,
		ColorWriteMask: 0xF,
		SampleCount:    1,
	}
}

// Key returns a stable hash of the state vector for routine caching.
func (s *State) Key() [32]byte {
	var buf [512]byte
	b := buf[:0]
	for i := range s.Attributes {
		a := &s.Attributes[i]
		b = append(b, boolByte(a.Enabled), byte(a.Type), a.Count, boolByte(a.Normalized))
		b = binary.LittleEndian.AppendUint32(b, uint32(a.Stride))
		b = binary.LittleEndian.AppendUint32(b, uint32(a.Offset))
	}
	b = append(b, byte(s.Cull), boolByte(s.FrontFaceCCW),
		boolByte(s.DepthTest), byte(s.DepthFunc), boolByte(s.DepthWrite),
		boolByte(s.StencilTest), boolByte(s.AlphaToCoverage), s.SampleCount,
		boolByte(s.BlendEnabled), byte(s.BlendEquation),
		byte(s.SrcBlend), byte(s.DstBlend), byte(s.SrcBlendAlpha), byte(s.DstBlendAlpha),
		s.ColorWriteMask, boolByte(s.ScissorTest), byte(s.Order))
	for _, st := range []*StencilState{&s.StencilFront, &s.StencilBack} {
		b = append(b, byte(st.Func), st.FailOp, st.ZFailOp, st.PassOp)
		b = binary.LittleEndian.AppendUint32(b, uint32(st.Ref))
		b = binary.LittleEndian.AppendUint32(b, st.Mask)
		b = binary.LittleEndian.AppendUint32(b, st.WriteMask)
	}
	b = binary.LittleEndian.AppendUint32(b, uint32(s.ScissorX))
	b = binary.LittleEndian.AppendUint32(b, uint32(s.ScissorY))
	b = binary.LittleEndian.AppendUint32(b, uint32(s.ScissorWidth))
	b = binary.LittleEndian.AppendUint32(b, uint32(s.ScissorHeight))
	return sha256.Sum256(b)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
