package rtc

import (
	"errors"
	"image"
	"testing"
	"time"
)

func TestHubDeliversLatestFrame(t *testing.T) {
	hub := NewHub()
	fp, err := hub.NewFrameProvider()
	if err != nil {
		t.Fatalf("NewFrameProvider: %v", err)
	}
	defer fp.Close()

	first := image.NewRGBA(image.Rect(0, 0, 1, 1))
	second := image.NewRGBA(image.Rect(0, 0, 2, 2))
	_ = hub.Show(first)
	_ = hub.Show(second)

	got, err := fp.Frame()
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if got != second {
		t.Fatal("mailbox did not keep only the newest frame")
	}
	if m := fp.(*mailbox); m.drops != 1 {
		t.Fatalf("drops = %d, want 1", m.drops)
	}
}

func TestHubPrimesNewViewerWithCurrentFrame(t *testing.T) {
	hub := NewHub()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	_ = hub.Show(img)

	fp, err := hub.NewFrameProvider()
	if err != nil {
		t.Fatalf("NewFrameProvider: %v", err)
	}
	defer fp.Close()

	got, err := fp.Frame()
	if err != nil || got != img {
		t.Fatalf("Frame = %v, %v; want current frame", got, err)
	}
}

func TestMailboxFrameBlocksUntilShow(t *testing.T) {
	hub := NewHub()
	fp, _ := hub.NewFrameProvider()
	defer fp.Close()

	got := make(chan *image.RGBA, 1)
	go func() {
		img, _ := fp.Frame()
		got <- img
	}()

	select {
	case <-got:
		t.Fatal("Frame returned before any frame was shown")
	case <-time.After(20 * time.Millisecond):
	}

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	_ = hub.Show(img)
	select {
	case g := <-got:
		if g != img {
			t.Fatal("wrong frame delivered")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Frame did not wake up")
	}
}

func TestMailboxCloseUnblocksAndUnregisters(t *testing.T) {
	hub := NewHub()
	fp, _ := hub.NewFrameProvider()
	if hub.Viewers() != 1 {
		t.Fatalf("viewers = %d, want 1", hub.Viewers())
	}

	errc := make(chan error, 1)
	go func() {
		_, err := fp.Frame()
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)

	if err := fp.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := fp.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	select {
	case err := <-errc:
		if !errors.Is(err, ErrProviderClosed) {
			t.Fatalf("err = %v, want ErrProviderClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Frame still blocked after Close")
	}
	if hub.Viewers() != 0 {
		t.Fatalf("viewers = %d after close", hub.Viewers())
	}
	// Showing to a hub without viewers is fine.
	if err := hub.Show(image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("Show: %v", err)
	}
}
