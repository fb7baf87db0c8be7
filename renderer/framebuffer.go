package renderer

import (
	"image"
	"math"
	"unsafe"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/swgl/pipeline"
)

// Framebuffer owns the color, depth, and stencil planes of one
// render target.
type Framebuffer struct {
	Width  int
	Height int
	Order  pipeline.ChannelOrder

	ColorPlane   []byte // 4 bytes per pixel
	DepthPlane   []float32
	StencilPlane []byte
}

// NewFramebuffer allocates a target with color, depth, and stencil.
func NewFramebuffer(width, height int) *Framebuffer {
	return &Framebuffer{
		Width:        width,
		Height:       height,
		ColorPlane:   make([]byte, width*height*4),
		DepthPlane:   make([]float32, width*height),
		StencilPlane: make([]byte, width*height),
	}
}

// data builds the routine-facing descriptor.
func (fb *Framebuffer) data() *pipeline.Framebuffer {
	d := &pipeline.Framebuffer{
		Width:  int32(fb.Width),
		Height: int32(fb.Height),
		Pitch:  int32(fb.Width),
	}
	if len(fb.ColorPlane) > 0 {
		d.Color = uint64(uintptr(unsafe.Pointer(&fb.ColorPlane[0])))
	}
	if len(fb.DepthPlane) > 0 {
		d.Depth = uint64(uintptr(unsafe.Pointer(&fb.DepthPlane[0])))
	}
	if len(fb.StencilPlane) > 0 {
		d.Stencil = uint64(uintptr(unsafe.Pointer(&fb.StencilPlane[0])))
	}
	return d
}

// ClearColor fills the color plane.
func (fb *Framebuffer) ClearColor(r, g, b, a float32) {
	c := [4]byte{clampByte(r), clampByte(g), clampByte(b), clampByte(a)}
	if fb.Order == pipeline.OrderBGRA {
		c[0], c[2] = c[2], c[0]
	}
	for i := 0; i < len(fb.ColorPlane); i += 4 {
		copy(fb.ColorPlane[i:i+4], c[:])
	}
}

// ClearDepth fills the depth plane.
func (fb *Framebuffer) ClearDepth(z float32) {
	for i := range fb.DepthPlane {
		fb.DepthPlane[i] = z
	}
}

// ClearStencil fills the stencil plane.
func (fb *Framebuffer) ClearStencil(s uint8) {
	for i := range fb.StencilPlane {
		fb.StencilPlane[i] = s
	}
}

func clampByte(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(math.Floor(float64(v)*255 + 0.5))
}

// Image copies the color plane into an RGBA image for readback.
func (fb *Framebuffer) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, fb.Width, fb.Height))
	if fb.Order == pipeline.OrderRGBA {
		copy(img.Pix, fb.ColorPlane)
		return img
	}
	for i := 0; i < len(fb.ColorPlane); i += 4 {
		img.Pix[i+0] = fb.ColorPlane[i+2]
		img.Pix[i+1] = fb.ColorPlane[i+1]
		img.Pix[i+2] = fb.ColorPlane[i+0]
		img.Pix[i+3] = fb.ColorPlane[i+3]
	}
	return img
}

// Blit copies a source rectangle onto a destination rectangle with
// nearest filtering, scaling as needed.
func (fb *Framebuffer) Blit(dst *Framebuffer, srcRect, dstRect image.Rectangle) {
	srcImg := fb.Image()
	dstImg := dst.Image()
	xdraw.NearestNeighbor.Scale(dstImg, dstRect, srcImg, srcRect, xdraw.Src, nil)
	if dst.Order == pipeline.OrderRGBA {
		copy(dst.ColorPlane, dstImg.Pix)
		return
	}
	for i := 0; i < len(dst.ColorPlane); i += 4 {
		dst.ColorPlane[i+0] = dstImg.Pix[i+2]
		dst.ColorPlane[i+1] = dstImg.Pix[i+1]
		dst.ColorPlane[i+2] = dstImg.Pix[i+0]
		dst.ColorPlane[i+3] = dstImg.Pix[i+3]
	}
}
