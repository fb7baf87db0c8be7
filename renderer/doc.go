// Package renderer drives the rasterization pipeline: per draw call
// it assembles primitives from the index stream, clips them against
// the view volume, applies the viewport transform, invokes the
// specialized setup routine, and partitions the covered scanlines
// into strips rasterized by a worker pool running the pixel routine.
//
// Draw calls against one renderer serialize; framebuffer writes land
// in draw-submission order. Within a draw, strips are non-overlapping
// scanline ranges, and each worker visits primitives in submission
// order inside its strip, which keeps the framebuffer equivalent to
// sequential rasterization.
package renderer
