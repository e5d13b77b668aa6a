// Package mediacodec implements the decoder platform on the Android NDK:
// AMediaCodec for decoding, AImageReader for the output surface and
// AHardwareBuffer for reading presented images back.
//
// Builds for other operating systems get a constructor that returns
// ErrPlatformNotSupported.
package mediacodec

import (
	"errors"

	"github.com/user/texdecode/pkg/ports"
)

var (
	// ErrPlatformNotSupported is returned when not running on Android.
	ErrPlatformNotSupported = errors.New("mediacodec: platform not supported")

	// ErrNoCodec is returned when the device has no decoder for a mime type.
	ErrNoCodec = errors.New("mediacodec: no decoder for mime type")

	// ErrImageReader is returned when the image reader cannot be created.
	ErrImageReader = errors.New("mediacodec: image reader creation failed")

	// ErrNoImage is returned by AcquireLatest when nothing new was presented in time.
	ErrNoImage = errors.New("mediacodec: no image available")
)

// Platform implements ports.Platform on the NDK media API.
type Platform struct {
	platformBackend
}

// platformBackend is implemented by the Android build and by the stub.
type platformBackend interface {
	newImageReader(width, height uint32, format ports.ImageFormat, usage ports.BufferUsage, maxImages int) (ports.ImageReader, error)
	createDecoderByType(mime string) (ports.Codec, error)
	newMediaFormat() ports.MediaFormat
}

// New returns the NDK platform, or ErrPlatformNotSupported off Android.
func New() (*Platform, error) {
	b, err := newPlatformBackend()
	if err != nil {
		return nil, err
	}
	return &Platform{platformBackend: b}, nil
}

// Name implements ports.Platform.
func (p *Platform) Name() string {
	return "android-mediacodec"
}

// NewImageReader implements ports.Platform. CPU read access is always added
// to usage so presented images can be copied out.
func (p *Platform) NewImageReader(width, height uint32, format ports.ImageFormat, usage ports.BufferUsage, maxImages int) (ports.ImageReader, error) {
	return p.newImageReader(width, height, format, usage|ports.UsageCPUReadOften, maxImages)
}

// CreateDecoderByType implements ports.Platform.
func (p *Platform) CreateDecoderByType(mime string) (ports.Codec, error) {
	return p.createDecoderByType(mime)
}

// NewMediaFormat implements ports.Platform.
func (p *Platform) NewMediaFormat() ports.MediaFormat {
	return p.newMediaFormat()
}

// copyRGBX copies rows of an RGBX image with srcStride bytes per row into an
// RGBA buffer, forcing alpha opaque.
func copyRGBX(dst []byte, dstStride int, src []byte, srcStride, width, height int) {
	rowBytes := width * 4
	for y := 0; y < height; y++ {
		s := y * srcStride
		d := y * dstStride
		if s+rowBytes > len(src) || d+rowBytes > len(dst) {
			return
		}
		row := dst[d : d+rowBytes]
		copy(row, src[s:s+rowBytes])
		for x := 3; x < rowBytes; x += 4 {
			row[x] = 0xff
		}
	}
}
