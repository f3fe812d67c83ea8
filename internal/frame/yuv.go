package frame

import "image"

// I420Size returns the buffer size of a planar 4:2:0 picture.
func I420Size(width, height int) int {
	cw, ch := (width+1)/2, (height+1)/2
	return width*height + 2*cw*ch
}

// RGBAToI420 writes img as planar Y, U, V (BT.601, studio swing) into dst
// and returns the number of bytes written. Chroma is sampled from the top
// left pixel of each 2x2 block. dst must hold at least I420Size bytes.
func RGBAToI420(dst []byte, img *image.RGBA) int {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	cw := (w + 1) / 2
	size := I420Size(w, h)
	if len(dst) < size {
		panic("frame: I420 buffer too small")
	}

	yPlane := dst[:w*h]
	uPlane := dst[w*h : w*h+cw*((h+1)/2)]
	vPlane := dst[w*h+cw*((h+1)/2) : size]

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			r, g, bl := int(row[4*x]), int(row[4*x+1]), int(row[4*x+2])
			yPlane[y*w+x] = uint8(((66*r + 129*g + 25*bl) >> 8) + 16)
			if y%2 == 0 && x%2 == 0 {
				c := (y/2)*cw + x/2
				uPlane[c] = uint8(((-38*r - 74*g + 112*bl) >> 8) + 128)
				vPlane[c] = uint8(((112*r - 94*g - 18*bl) >> 8) + 128)
			}
		}
	}
	return size
}
