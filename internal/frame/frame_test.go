package frame

import (
	"bytes"
	"image"
	"testing"
)

func TestToRGBA(t *testing.T) {
	data := []byte{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	}
	img := ToRGBA(data, 2, 2)
	if img == nil {
		t.Fatal("ToRGBA returned nil")
	}
	want := []byte{
		1, 2, 3, 255, 4, 5, 6, 255,
		7, 8, 9, 255, 10, 11, 12, 255,
	}
	if !bytes.Equal(img.Pix, want) {
		t.Fatalf("pix = %v, want %v", img.Pix, want)
	}
}

func TestToRGBARejectsWrongLength(t *testing.T) {
	if img := ToRGBA(make([]byte, 11), 2, 2); img != nil {
		t.Fatal("expected nil for short buffer")
	}
	if img := ToRGBA(make([]byte, 13), 2, 2); img != nil {
		t.Fatal("expected nil for long buffer")
	}
	if img := ToRGBA(nil, 0, 0); img != nil {
		t.Fatal("expected nil for empty size")
	}
}

func TestFrameValid(t *testing.T) {
	f := Frame{Width: 4, Height: 2, Data: make([]byte, 24)}
	if !f.Valid() {
		t.Fatal("expected valid frame")
	}
	f.Data = f.Data[:23]
	if f.Valid() {
		t.Fatal("expected short frame to be invalid")
	}
	if f.Image() != nil {
		t.Fatal("invalid frame should not convert")
	}
}

func TestAccumulatorSplitsAcrossPushes(t *testing.T) {
	a := NewAccumulator(4)

	if got := a.Push([]byte{1, 2, 3}); len(got) != 0 {
		t.Fatalf("partial push emitted %d frames", len(got))
	}
	if a.Pending() != 3 {
		t.Fatalf("pending = %d, want 3", a.Pending())
	}

	got := a.Push([]byte{4, 5, 6, 7, 8, 9, 10})
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	if !bytes.Equal(got[0], []byte{1, 2, 3, 4}) || !bytes.Equal(got[1], []byte{5, 6, 7, 8}) {
		t.Fatalf("frames = %v", got)
	}
	if a.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", a.Pending())
	}

	got = a.Push([]byte{11, 12})
	if len(got) != 1 || !bytes.Equal(got[0], []byte{9, 10, 11, 12}) {
		t.Fatalf("remainder not carried forward: %v", got)
	}
}

func TestAccumulatorFramesAreIndependent(t *testing.T) {
	a := NewAccumulator(2)
	src := []byte{1, 2, 3, 4}
	got := a.Push(src)
	src[0] = 99
	if got[0][0] != 1 {
		t.Fatal("frame aliases the input buffer")
	}
	got[0][1] = 42
	if got[1][0] != 3 {
		t.Fatal("frames share storage")
	}
}

func TestAccumulatorReset(t *testing.T) {
	a := NewAccumulator(8)
	a.Push([]byte{1, 2, 3})
	if n := a.Reset(); n != 3 {
		t.Fatalf("Reset = %d, want 3", n)
	}
	got := a.Push([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	if len(got) != 1 || got[0][0] != 1 {
		t.Fatalf("unexpected frames after reset: %v", got)
	}
}

func TestRGBAToI420(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		y, u, v uint8
	}{
		{"black", 0, 0, 0, 16, 128, 128},
		{"white", 255, 255, 255, 235, 128, 128},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewRGBA(image.Rect(0, 0, 4, 2))
			for i := 0; i < len(img.Pix); i += 4 {
				img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = tt.r, tt.g, tt.b, 255
			}
			dst := make([]byte, I420Size(4, 2))
			if n := RGBAToI420(dst, img); n != 12 {
				t.Fatalf("wrote %d bytes, want 12", n)
			}
			for i := 0; i < 8; i++ {
				if dst[i] != tt.y {
					t.Fatalf("Y[%d] = %d, want %d", i, dst[i], tt.y)
				}
			}
			for i := 8; i < 10; i++ {
				if dst[i] != tt.u {
					t.Fatalf("U[%d] = %d, want %d", i-8, dst[i], tt.u)
				}
			}
			for i := 10; i < 12; i++ {
				if dst[i] != tt.v {
					t.Fatalf("V[%d] = %d, want %d", i-10, dst[i], tt.v)
				}
			}
		})
	}
}

func TestI420SizeOddDimensions(t *testing.T) {
	if got := I420Size(3, 3); got != 9+2*4 {
		t.Fatalf("I420Size(3,3) = %d", got)
	}
}
