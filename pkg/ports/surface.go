package ports

import (
	"image"
	"time"
)

// ImageFormat is the pixel layout of an image reader.
type ImageFormat int

const (
	// ImageFormatRGBX8888 is 8 bits per channel with an ignored alpha byte.
	ImageFormatRGBX8888 ImageFormat = iota + 1
)

// BufferUsage flags describe how reader images will be consumed.
type BufferUsage uint64

const (
	UsageGPUSampledImage BufferUsage = 1 << 8
	UsageCPUReadOften    BufferUsage = 3
)

// NativeWindow is a platform window handle the decoder renders into.
type NativeWindow interface {
	// Handle returns the raw platform pointer, or 0 for windows that have none.
	Handle() uintptr
}

// ImageSource is the substitute capability for platforms whose windows cannot
// be imported by the graphics API directly. AcquireLatest waits up to timeout for
// an image presented since the previous acquire and returns it with a release
// func; the image stays valid until release is called.
type ImageSource interface {
	AcquireLatest(timeout time.Duration) (img *image.RGBA, release func(), err error)
}

// Pixels is a presented image lent in place: Height rows of Stride bytes,
// four bytes per pixel in RGBX order.
type Pixels struct {
	Pix           []byte
	Stride        int
	Width, Height int
}

// PixelSource is implemented by windows that can lend the presented image's
// memory without copying it. AcquirePixels waits like AcquireLatest; Pix is
// valid until release is called.
type PixelSource interface {
	AcquirePixels(timeout time.Duration) (px Pixels, release func(), err error)
}

// ImageReader is a fixed-size pool of images that a codec can present into.
type ImageReader interface {
	// Window returns the native window backed by this reader.
	Window() (NativeWindow, error)

	// Close releases the reader and its images.
	Close() error
}

// Platform bundles the platform decoder services used to build a session.
type Platform interface {
	// Name identifies the platform in logs.
	Name() string

	// NewImageReader allocates a reader with maxImages slots.
	NewImageReader(width, height uint32, format ImageFormat, usage BufferUsage, maxImages int) (ImageReader, error)

	// CreateDecoderByType creates a decoder for the mime type.
	CreateDecoderByType(mime string) (Codec, error)

	// NewMediaFormat creates an empty configuration set.
	NewMediaFormat() MediaFormat
}
