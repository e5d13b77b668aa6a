package swapchain

import (
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/user/texdecode/pkg/ports"
)

func fillWith(c color.RGBA) func(dst *image.RGBA) {
	return func(dst *image.RGBA) {
		dst.SetRGBA(0, 0, c)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(0, 10, ports.ImageFormatRGBX8888, ports.UsageGPUSampledImage, 2); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := New(10, 10, ports.ImageFormat(99), ports.UsageGPUSampledImage, 2); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := New(10, 10, ports.ImageFormatRGBX8888, ports.UsageGPUSampledImage, 0); err == nil {
		t.Error("expected error for zero images")
	}
}

func TestReader_AcquireLatestReturnsNewest(t *testing.T) {
	r, err := New(4, 4, ports.ImageFormatRGBX8888, ports.UsageGPUSampledImage, 2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer r.Close()

	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	if err := r.Present(fillWith(red)); err != nil {
		t.Fatalf("Present failed: %v", err)
	}
	if err := r.Present(fillWith(blue)); err != nil {
		t.Fatalf("Present failed: %v", err)
	}

	img, release, err := r.AcquireLatest(0)
	if err != nil {
		t.Fatalf("AcquireLatest failed: %v", err)
	}
	if got := img.RGBAAt(0, 0); got != blue {
		t.Errorf("expected newest image, got %v", got)
	}
	release()
	release()

	if _, _, err := r.AcquireLatest(0); !errors.Is(err, ErrNoImage) {
		t.Errorf("expected ErrNoImage without a new present, got %v", err)
	}
}

func TestReader_AcquireWaitsForPresent(t *testing.T) {
	r, _ := New(4, 4, ports.ImageFormatRGBX8888, ports.UsageGPUSampledImage, 2)
	defer r.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Present(fillWith(color.RGBA{G: 255, A: 255}))
	}()

	img, release, err := r.AcquireLatest(time.Second)
	if err != nil {
		t.Fatalf("AcquireLatest failed: %v", err)
	}
	defer release()
	if img.RGBAAt(0, 0).G != 255 {
		t.Error("expected presented image")
	}
}

func TestReader_HeldImageIsNotOverwritten(t *testing.T) {
	r, _ := New(4, 4, ports.ImageFormatRGBX8888, ports.UsageGPUSampledImage, 2)
	defer r.Close()

	red := color.RGBA{R: 255, A: 255}
	r.Present(fillWith(red))
	img, release, err := r.AcquireLatest(0)
	if err != nil {
		t.Fatalf("AcquireLatest failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := r.Present(fillWith(color.RGBA{B: uint8(i), A: 255})); err != nil {
			t.Fatalf("Present %d failed: %v", i, err)
		}
	}
	if got := img.RGBAAt(0, 0); got != red {
		t.Errorf("held image overwritten: %v", got)
	}
	release()
}

func TestReader_AllHeld(t *testing.T) {
	r, _ := New(4, 4, ports.ImageFormatRGBX8888, ports.UsageGPUSampledImage, 1)
	defer r.Close()

	r.Present(fillWith(color.RGBA{A: 255}))
	_, release, err := r.AcquireLatest(0)
	if err != nil {
		t.Fatalf("AcquireLatest failed: %v", err)
	}
	if err := r.Present(fillWith(color.RGBA{A: 255})); !errors.Is(err, ErrNoFreeImage) {
		t.Errorf("expected ErrNoFreeImage, got %v", err)
	}
	release()
	if err := r.Present(fillWith(color.RGBA{A: 255})); err != nil {
		t.Errorf("expected present after release, got %v", err)
	}
}

func TestReader_CloseWakesWaiters(t *testing.T) {
	r, _ := New(4, 4, ports.ImageFormatRGBX8888, ports.UsageGPUSampledImage, 2)

	done := make(chan error, 1)
	go func() {
		_, _, err := r.AcquireLatest(5 * time.Second)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	r.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by Close")
	}

	if _, err := r.Window(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Window, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestWindow_DelegatesToReader(t *testing.T) {
	r, _ := New(4, 4, ports.ImageFormatRGBX8888, ports.UsageGPUSampledImage, 2)
	defer r.Close()

	nw, err := r.Window()
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}
	w, ok := nw.(*Window)
	if !ok {
		t.Fatalf("expected *Window, got %T", nw)
	}
	if w.Handle() != 0 || w.Reader() != r {
		t.Error("unexpected window identity")
	}
	if _, ok := nw.(ports.ImageSource); !ok {
		t.Error("expected window to expose ports.ImageSource")
	}
}
