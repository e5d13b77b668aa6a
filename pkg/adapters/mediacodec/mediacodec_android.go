//go:build android

package mediacodec

/*
#cgo LDFLAGS: -lmediandk -landroid -lnativewindow

#include <stdlib.h>
#include <stdbool.h>
#include <media/NdkMediaCodec.h>
#include <media/NdkMediaFormat.h>
#include <media/NdkImageReader.h>
#include <android/hardware_buffer.h>
#include <android/native_window.h>

// Locks the hardware buffer of the latest image for CPU reads.
// Returns 0 on success, 1 when no image is available and a negative value on error.
static int acquireLatestLocked(AImageReader *reader, AImage **image, void **addr, uint32_t *stride) {
    media_status_t st = AImageReader_acquireLatestImage(reader, image);
    if (st == AMEDIA_IMGREADER_NO_BUFFER_AVAILABLE) {
        return 1;
    }
    if (st != AMEDIA_OK) {
        return -1;
    }

    AHardwareBuffer *buffer = NULL;
    if (AImage_getHardwareBuffer(*image, &buffer) != AMEDIA_OK || buffer == NULL) {
        AImage_delete(*image);
        return -2;
    }

    AHardwareBuffer_Desc desc;
    AHardwareBuffer_describe(buffer, &desc);
    *stride = desc.stride;

    if (AHardwareBuffer_lock(buffer, AHARDWAREBUFFER_USAGE_CPU_READ_OFTEN, -1, NULL, addr) != 0) {
        AImage_delete(*image);
        return -3;
    }
    return 0;
}

static void releaseLocked(AImage *image) {
    AHardwareBuffer *buffer = NULL;
    if (AImage_getHardwareBuffer(image, &buffer) == AMEDIA_OK && buffer != NULL) {
        AHardwareBuffer_unlock(buffer, NULL);
    }
    AImage_delete(image);
}
*/
import "C"

import (
	"image"
	"sync"
	"time"
	"unsafe"

	"github.com/user/texdecode/pkg/ports"
)

// acquirePoll is how often AcquireLatest looks for a new image.
const acquirePoll = time.Millisecond

type androidBackend struct{}

func newPlatformBackend() (platformBackend, error) {
	return androidBackend{}, nil
}

func (androidBackend) newImageReader(width, height uint32, format ports.ImageFormat, usage ports.BufferUsage, maxImages int) (ports.ImageReader, error) {
	if format != ports.ImageFormatRGBX8888 {
		return nil, ErrImageReader
	}
	var reader *C.AImageReader
	st := C.AImageReader_newWithUsage(C.int32_t(width), C.int32_t(height),
		C.AIMAGE_FORMAT_RGBX_8888, C.uint64_t(usage), C.int32_t(maxImages), &reader)
	if st != C.AMEDIA_OK || reader == nil {
		return nil, ErrImageReader
	}
	return &imageReader{
		reader: reader,
		width:  int(width),
		height: int(height),
	}, nil
}

func (androidBackend) createDecoderByType(mime string) (ports.Codec, error) {
	cmime := C.CString(mime)
	defer C.free(unsafe.Pointer(cmime))

	codec := C.AMediaCodec_createDecoderByType(cmime)
	if codec == nil {
		return nil, ErrNoCodec
	}
	return &mediaCodec{codec: codec}, nil
}

func (androidBackend) newMediaFormat() ports.MediaFormat {
	return &mediaFormat{format: C.AMediaFormat_new()}
}

// mediaFormat wraps AMediaFormat.
type mediaFormat struct {
	format *C.AMediaFormat
}

func (f *mediaFormat) SetInt32(key string, v int32) {
	ckey := C.CString(key)
	defer C.free(unsafe.Pointer(ckey))
	C.AMediaFormat_setInt32(f.format, ckey, C.int32_t(v))
}

func (f *mediaFormat) SetInt64(key string, v int64) {
	ckey := C.CString(key)
	defer C.free(unsafe.Pointer(ckey))
	C.AMediaFormat_setInt64(f.format, ckey, C.int64_t(v))
}

func (f *mediaFormat) SetFloat(key string, v float32) {
	ckey := C.CString(key)
	defer C.free(unsafe.Pointer(ckey))
	C.AMediaFormat_setFloat(f.format, ckey, C.float(v))
}

func (f *mediaFormat) SetString(key, v string) {
	ckey := C.CString(key)
	defer C.free(unsafe.Pointer(ckey))
	cv := C.CString(v)
	defer C.free(unsafe.Pointer(cv))
	C.AMediaFormat_setString(f.format, ckey, cv)
}

func (f *mediaFormat) Delete() int {
	if f.format == nil {
		return int(C.AMEDIA_ERROR_INVALID_OPERATION)
	}
	st := C.AMediaFormat_delete(f.format)
	f.format = nil
	return int(st)
}

// mediaCodec wraps AMediaCodec.
type mediaCodec struct {
	codec *C.AMediaCodec
}

func (c *mediaCodec) Configure(format ports.MediaFormat, window ports.NativeWindow) int {
	f, ok := format.(*mediaFormat)
	if !ok || f.format == nil {
		return int(C.AMEDIA_ERROR_INVALID_PARAMETER)
	}
	w, ok := window.(*nativeWindow)
	if !ok {
		return int(C.AMEDIA_ERROR_INVALID_PARAMETER)
	}
	return int(C.AMediaCodec_configure(c.codec, f.format, w.window, nil, 0))
}

func (c *mediaCodec) Start() int {
	return int(C.AMediaCodec_start(c.codec))
}

func (c *mediaCodec) DequeueInputBuffer(timeout time.Duration) int {
	return int(C.AMediaCodec_dequeueInputBuffer(c.codec, C.int64_t(timeout.Microseconds())))
}

func (c *mediaCodec) InputBuffer(index int) []byte {
	var size C.size_t
	ptr := C.AMediaCodec_getInputBuffer(c.codec, C.size_t(index), &size)
	if ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), int(size))
}

func (c *mediaCodec) QueueInputBuffer(index, offset, size int, presentationTimeUs int64, flags uint32) int {
	return int(C.AMediaCodec_queueInputBuffer(c.codec, C.size_t(index), C.off_t(offset),
		C.size_t(size), C.uint64_t(presentationTimeUs), C.uint32_t(flags)))
}

func (c *mediaCodec) DequeueOutputBuffer(info *ports.BufferInfo, timeout time.Duration) int {
	var ci C.AMediaCodecBufferInfo
	res := int(C.AMediaCodec_dequeueOutputBuffer(c.codec, &ci, C.int64_t(timeout.Microseconds())))
	if res >= 0 {
		*info = ports.BufferInfo{
			Offset:             int32(ci.offset),
			Size:               int32(ci.size),
			PresentationTimeUs: int64(ci.presentationTimeUs),
			Flags:              uint32(ci.flags),
		}
	}
	return res
}

func (c *mediaCodec) ReleaseOutputBuffer(index int, render bool) int {
	return int(C.AMediaCodec_releaseOutputBuffer(c.codec, C.size_t(index), C.bool(render)))
}

func (c *mediaCodec) Delete() int {
	if c.codec == nil {
		return int(C.AMEDIA_ERROR_INVALID_OPERATION)
	}
	st := C.AMediaCodec_delete(c.codec)
	c.codec = nil
	return int(st)
}

// imageReader wraps AImageReader.
type imageReader struct {
	reader *C.AImageReader
	width  int
	height int

	once sync.Once

	// held is the copy handed out by the last AcquireLatest. It is
	// overwritten by the next acquire.
	mu   sync.Mutex
	held *image.RGBA
}

func (r *imageReader) Window() (ports.NativeWindow, error) {
	var window *C.ANativeWindow
	if C.AImageReader_getWindow(r.reader, &window) != C.AMEDIA_OK || window == nil {
		return nil, ErrImageReader
	}
	return &nativeWindow{window: window, reader: r}, nil
}

func (r *imageReader) Close() error {
	r.once.Do(func() {
		C.AImageReader_delete(r.reader)
	})
	return nil
}

// acquireLocked polls for an image presented since the last call and locks
// its hardware buffer for reading. The caller unlocks it with releaseLocked.
func (r *imageReader) acquireLocked(timeout time.Duration) (*C.AImage, unsafe.Pointer, int, error) {
	deadline := time.Now().Add(timeout)
	for {
		var img *C.AImage
		var addr unsafe.Pointer
		var stride C.uint32_t

		switch C.acquireLatestLocked(r.reader, &img, &addr, &stride) {
		case 0:
			return img, addr, int(stride), nil
		case 1:
			if time.Now().After(deadline) {
				return nil, nil, 0, ErrNoImage
			}
			time.Sleep(acquirePoll)
		default:
			return nil, nil, 0, ErrImageReader
		}
	}
}

// acquireLatest copies the newest image out of the hardware buffer.
func (r *imageReader) acquireLatest(timeout time.Duration) (*image.RGBA, func(), error) {
	img, addr, stride, err := r.acquireLocked(timeout)
	if err != nil {
		return nil, nil, err
	}
	out := r.copyOut(addr, stride)
	C.releaseLocked(img)
	return out, func() {}, nil
}

// acquirePixels lends the locked hardware buffer of the newest image.
func (r *imageReader) acquirePixels(timeout time.Duration) (ports.Pixels, func(), error) {
	img, addr, stride, err := r.acquireLocked(timeout)
	if err != nil {
		return ports.Pixels{}, nil, err
	}
	px := ports.Pixels{
		Pix:    unsafe.Slice((*byte)(addr), stride*4*r.height),
		Stride: stride * 4,
		Width:  r.width,
		Height: r.height,
	}
	var once sync.Once
	return px, func() { once.Do(func() { C.releaseLocked(img) }) }, nil
}

func (r *imageReader) copyOut(addr unsafe.Pointer, stridePixels int) *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.held == nil {
		r.held = image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	}
	srcStride := stridePixels * 4
	src := unsafe.Slice((*byte)(addr), srcStride*r.height)
	copyRGBX(r.held.Pix, r.held.Stride, src, srcStride, r.width, r.height)
	return r.held
}

// nativeWindow is the ANativeWindow of an image reader. It also provides the
// image source used to read decoded frames back.
type nativeWindow struct {
	window *C.ANativeWindow
	reader *imageReader
}

func (w *nativeWindow) Handle() uintptr {
	return uintptr(unsafe.Pointer(w.window))
}

func (w *nativeWindow) AcquireLatest(timeout time.Duration) (*image.RGBA, func(), error) {
	return w.reader.acquireLatest(timeout)
}

func (w *nativeWindow) AcquirePixels(timeout time.Duration) (ports.Pixels, func(), error) {
	return w.reader.acquirePixels(timeout)
}

var (
	_ ports.ImageSource = (*nativeWindow)(nil)
	_ ports.PixelSource = (*nativeWindow)(nil)
	_ ports.ImageReader = (*imageReader)(nil)
	_ ports.Codec       = (*mediaCodec)(nil)
	_ ports.MediaFormat = (*mediaFormat)(nil)
)
