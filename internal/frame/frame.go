// Package frame holds the raw frame type produced by the transcoder and the
// pixel conversions needed to present it.
package frame

import (
	"image"
	"time"
)

// BytesPerPixel is the size of one interleaved rgb24 pixel.
const BytesPerPixel = 3

// Frame is one decoded picture read from the transcoder.
type Frame struct {
	// Seq is the per-session sequence number, starting at 1.
	Seq uint64
	// Timestamp is when the last byte of the frame was read.
	Timestamp time.Time
	Width     int
	Height    int
	// Data is exactly Width*Height*3 bytes of interleaved RGB.
	Data []byte
	// SessionID identifies the stream session that produced the frame.
	SessionID string
}

// Stride returns the byte length of one frame at the given size.
func Stride(width, height int) int {
	return width * height * BytesPerPixel
}

// Valid reports whether the frame carries exactly one full stride.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Data) == Stride(f.Width, f.Height)
}

// ToRGBA expands an rgb24 buffer into an opaque RGBA image. It returns nil
// when data is not exactly one stride long.
func ToRGBA(data []byte, width, height int) *image.RGBA {
	if width <= 0 || height <= 0 || len(data) != Stride(width, height) {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	pix := img.Pix
	for i, j := 0, 0; i < len(data); i, j = i+3, j+4 {
		pix[j] = data[i]
		pix[j+1] = data[i+1]
		pix[j+2] = data[i+2]
		pix[j+3] = 0xff
	}
	return img
}

// Image converts the frame to an RGBA image, or returns nil if the frame is
// not valid.
func (f Frame) Image() *image.RGBA {
	return ToRGBA(f.Data, f.Width, f.Height)
}
