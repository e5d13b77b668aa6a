// Package gstcodec exposes GStreamer hardware decoders (VA-API, V4L2, NVDEC)
// through the buffer-indexed codec interface.
//
// The GStreamer backend is compiled only with the gstreamer build tag on Linux:
//
//	go build -tags gstreamer ./...
//
// Other builds get a Platform whose constructor returns ErrPlatformNotSupported.
package gstcodec

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/user/texdecode/pkg/adapters/logger"
	"github.com/user/texdecode/pkg/adapters/swapchain"
	"github.com/user/texdecode/pkg/ports"
)

var (
	// ErrPlatformNotSupported is returned when GStreamer support is not compiled in.
	ErrPlatformNotSupported = errors.New("gstcodec: platform not supported")

	// ErrUnsupportedMime is returned for streams other than H.264 and HEVC.
	ErrUnsupportedMime = errors.New("gstcodec: unsupported mime type")

	// ErrNoDecoder is returned when none of the decoder elements can be instantiated.
	ErrNoDecoder = errors.New("gstcodec: no usable decoder element")
)

// Status codes returned by the codec, matching the NDK media status values.
const (
	statusOK                = 0
	statusErrorUnknown      = -10000
	statusErrorInvalidOp    = -10007
	statusErrorInvalidParam = -10008
)

// Options configures the GStreamer platform.
type Options struct {
	// Decoder forces a decoder element. Empty tries the hardware decoders in
	// order and falls back to libav.
	Decoder string

	InputBuffers  int
	OutputBuffers int

	// InputCapacity is the size of each input buffer in bytes.
	InputCapacity int

	Logger ports.Logger
}

func (o Options) withDefaults() Options {
	if o.InputBuffers <= 0 {
		o.InputBuffers = 4
	}
	if o.OutputBuffers <= 0 {
		o.OutputBuffers = 2
	}
	if o.InputCapacity <= 0 {
		o.InputCapacity = 4 << 20
	}
	if o.Logger == nil {
		o.Logger = logger.NewNoop()
	}
	return o
}

// stream describes how one mime type enters a pipeline.
type stream struct {
	caps       string
	parser     string
	candidates []string
}

var streams = map[string]stream{
	ports.CodecH264.MimeType(): {
		caps:       "video/x-h264,stream-format=byte-stream,alignment=au",
		parser:     "h264parse",
		candidates: []string{"vah264dec", "vaapih264dec", "v4l2h264dec", "nvh264dec", "avdec_h264"},
	},
	ports.CodecHEVC.MimeType(): {
		caps:       "video/x-h265,stream-format=byte-stream,alignment=au",
		parser:     "h265parse",
		candidates: []string{"vah265dec", "vaapih265dec", "v4l2h265dec", "nvh265dec", "avdec_h265"},
	},
}

// decoderCandidates lists the decoder elements to try for mime.
func decoderCandidates(mime, override string) []string {
	if override != "" {
		return []string{override}
	}
	return streams[mime].candidates
}

// launchString builds the pipeline description for one decoder element. The
// appsrc caps are set separately because they contain commas.
func launchString(mime, decoder string, size ports.VideoSize) string {
	s := streams[mime]
	return strings.Join([]string{
		"appsrc name=src format=time is-live=false",
		s.parser,
		decoder,
		"videoconvert",
		"videoscale",
		fmt.Sprintf("video/x-raw,format=RGBx,width=%d,height=%d", size.Width, size.Height),
		"appsink name=sink sync=false emit-signals=false",
	}, " ! ")
}

// ptsDuration converts a microsecond timestamp to a buffer timestamp.
// Negative values and values that overflow nanoseconds are rejected.
func ptsDuration(us int64) (time.Duration, bool) {
	if us < 0 || us > int64(1<<63-1)/int64(time.Microsecond) {
		return 0, false
	}
	return time.Duration(us) * time.Microsecond, true
}

// Platform implements ports.Platform on GStreamer.
type Platform struct {
	opts Options
	log  ports.Logger
}

// New initialises GStreamer and returns the platform.
func New(opts Options) (*Platform, error) {
	if err := initGStreamer(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	return &Platform{
		opts: opts,
		log:  opts.Logger.WithComponent("gstreamer"),
	}, nil
}

// Name implements ports.Platform.
func (p *Platform) Name() string {
	return "gstreamer"
}

// NewImageReader allocates the double-buffered surface decoded frames are
// presented into.
func (p *Platform) NewImageReader(width, height uint32, format ports.ImageFormat, usage ports.BufferUsage, maxImages int) (ports.ImageReader, error) {
	r, err := swapchain.New(width, height, format, usage, maxImages)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// CreateDecoderByType creates an unconfigured codec for mime.
func (p *Platform) CreateDecoderByType(mime string) (ports.Codec, error) {
	if _, ok := streams[mime]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMime, mime)
	}
	return newCodec(p, mime)
}

// NewMediaFormat implements ports.Platform.
func (p *Platform) NewMediaFormat() ports.MediaFormat {
	return &Format{Values: make(map[string]any)}
}

// Format is a plain key/value configuration set.
type Format struct {
	Values map[string]any
}

func (f *Format) SetInt32(key string, v int32)   { f.Values[key] = v }
func (f *Format) SetInt64(key string, v int64)   { f.Values[key] = v }
func (f *Format) SetFloat(key string, v float32) { f.Values[key] = v }
func (f *Format) SetString(key, v string)        { f.Values[key] = v }
func (f *Format) Delete() int                    { return statusOK }

// configuration extracts the mandatory keys.
func (f *Format) configuration() (mime string, size ports.VideoSize, ok bool) {
	mime, _ = f.Values[ports.KeyMime].(string)
	width, _ := f.Values[ports.KeyWidth].(int32)
	height, _ := f.Values[ports.KeyHeight].(int32)
	if mime == "" || width <= 0 || height <= 0 {
		return "", ports.VideoSize{}, false
	}
	return mime, ports.VideoSize{Width: uint32(width), Height: uint32(height)}, true
}

// copyRGBX copies tightly packed RGBx rows into dst, forcing alpha opaque.
func copyRGBX(dst []byte, dstStride int, src []byte, width, height int) {
	srcStride := width * 4
	for y := 0; y < height; y++ {
		s := y * srcStride
		d := y * dstStride
		if s+srcStride > len(src) || d+srcStride > len(dst) {
			return
		}
		row := dst[d : d+srcStride]
		copy(row, src[s:s+srcStride])
		for x := 3; x < len(row); x += 4 {
			row[x] = 0xff
		}
	}
}
