// Package swapchain provides an in-process image reader: a fixed pool of RGBA
// images that a decoder presents into and a graphics context acquires from.
//
// It stands in for a platform image reader on backends whose decoded pictures
// already live in process memory.
package swapchain

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/user/texdecode/pkg/ports"
)

var (
	// ErrNoImage is returned by AcquireLatest when nothing new was presented in time.
	ErrNoImage = errors.New("swapchain: no image presented")

	// ErrNoFreeImage is returned by Present when every slot is held by the consumer.
	ErrNoFreeImage = errors.New("swapchain: all images acquired")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("swapchain: reader closed")

	// ErrUnsupportedFormat is returned for formats other than RGBX8888.
	ErrUnsupportedFormat = errors.New("swapchain: unsupported image format")
)

// Reader is a double (or n-) buffered image pool.
type Reader struct {
	mu      sync.Mutex
	changed chan struct{}

	width  int
	height int
	usage  ports.BufferUsage
	slots  []*image.RGBA
	held   []bool
	latest int
	fresh  bool
	closed bool

	window *Window
}

// New allocates maxImages RGBA images of the given size.
func New(width, height uint32, format ports.ImageFormat, usage ports.BufferUsage, maxImages int) (*Reader, error) {
	if format != ports.ImageFormatRGBX8888 {
		return nil, ErrUnsupportedFormat
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("swapchain: invalid size %dx%d", width, height)
	}
	if maxImages < 1 {
		return nil, fmt.Errorf("swapchain: invalid image count %d", maxImages)
	}

	r := &Reader{
		changed: make(chan struct{}),
		width:   int(width),
		height:  int(height),
		usage:   usage,
		slots:   make([]*image.RGBA, maxImages),
		held:    make([]bool, maxImages),
		latest:  -1,
	}
	for i := range r.slots {
		r.slots[i] = image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	}
	r.window = &Window{reader: r}
	return r, nil
}

// Window returns the window the decoder is configured against.
func (r *Reader) Window() (ports.NativeWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	return r.window, nil
}

// Size returns the image dimensions.
func (r *Reader) Size() (int, int) {
	return r.width, r.height
}

// MaxImages returns the slot count.
func (r *Reader) MaxImages() int {
	return len(r.slots)
}

// Present fills a free slot with draw and makes it the latest image.
func (r *Reader) Present(draw func(dst *image.RGBA)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	slot := -1
	for i := range r.slots {
		if r.held[i] {
			continue
		}
		// Prefer overwriting anything but the newest image.
		if slot < 0 || slot == r.latest {
			slot = i
		}
	}
	if slot < 0 {
		return ErrNoFreeImage
	}

	draw(r.slots[slot])
	r.latest = slot
	r.fresh = true
	r.broadcast()
	return nil
}

// AcquireLatest implements ports.ImageSource.
func (r *Reader) AcquireLatest(timeout time.Duration) (*image.RGBA, func(), error) {
	deadline := time.Now().Add(timeout)

	r.mu.Lock()
	for !r.fresh && !r.closed {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			r.mu.Unlock()
			return nil, nil, ErrNoImage
		}
		ch := r.changed
		r.mu.Unlock()

		timer := time.NewTimer(remaining)
		select {
		case <-ch:
		case <-timer.C:
		}
		timer.Stop()

		r.mu.Lock()
	}
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil, ErrClosed
	}

	slot := r.latest
	r.held[slot] = true
	r.fresh = false

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			r.held[slot] = false
			r.broadcast()
			r.mu.Unlock()
		})
	}
	return r.slots[slot], release, nil
}

// Close releases the images. Pending waiters return ErrClosed.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.slots = nil
	r.broadcast()
	return nil
}

// Closed reports whether Close has been called.
func (r *Reader) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// broadcast wakes every waiter. Callers hold r.mu.
func (r *Reader) broadcast() {
	close(r.changed)
	r.changed = make(chan struct{})
}

// Window is the native window of a Reader. It has no platform handle and
// exposes the reader through ports.ImageSource instead.
type Window struct {
	reader *Reader
}

// Handle returns 0: there is no platform window behind a swapchain.
func (w *Window) Handle() uintptr {
	return 0
}

// Reader returns the producer side for decoders configured against w.
func (w *Window) Reader() *Reader {
	return w.reader
}

// AcquireLatest implements ports.ImageSource.
func (w *Window) AcquireLatest(timeout time.Duration) (*image.RGBA, func(), error) {
	return w.reader.AcquireLatest(timeout)
}

var (
	_ ports.ImageReader  = (*Reader)(nil)
	_ ports.ImageSource  = (*Reader)(nil)
	_ ports.NativeWindow = (*Window)(nil)
	_ ports.ImageSource  = (*Window)(nil)
)
