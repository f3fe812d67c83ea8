package vp8

import (
	"image"
	"testing"
)

func TestEncodeKeyFrame(t *testing.T) {
	e, err := NewEncoder(image.Pt(64, 48), 10)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	defer e.Close()

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	data, err := e.Encode(img)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected a packet for the first (key) frame")
	}
	// VP8 key frames carry the 0x9d012a start code after the 3 byte tag.
	if len(data) < 6 || data[3] != 0x9d || data[4] != 0x01 || data[5] != 0x2a {
		t.Fatalf("first packet is not a key frame: % x", data)
	}
}

func TestEncodeRejectsSizeMismatch(t *testing.T) {
	e, err := NewEncoder(image.Pt(32, 32), 10)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	defer e.Close()

	if _, err := e.Encode(image.NewRGBA(image.Rect(0, 0, 16, 16))); err == nil {
		t.Fatal("expected error for mismatched frame size")
	}
}

func TestEncodeAfterClose(t *testing.T) {
	e, err := NewEncoder(image.Pt(16, 16), 10)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := e.Encode(image.NewRGBA(image.Rect(0, 0, 16, 16))); err == nil {
		t.Fatal("expected error after Close")
	}
}

func TestNewEncoderInvalidSize(t *testing.T) {
	if _, err := NewEncoder(image.Pt(0, 10), 10); err == nil {
		t.Fatal("expected error for empty size")
	}
}
