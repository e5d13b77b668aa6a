package ports

import (
	"fmt"
	"strings"
	"time"
)

// CodecType selects the compressed video family fed to the hardware decoder.
// The set is closed: only H264 and HEVC exist.
type CodecType int

const (
	CodecH264 CodecType = iota
	CodecHEVC
)

// MimeType returns the platform mime string for the codec family.
// Any other value is a programming error and panics.
func (c CodecType) MimeType() string {
	switch c {
	case CodecH264:
		return "video/avc"
	case CodecHEVC:
		return "video/hevc"
	default:
		panic(fmt.Sprintf("ports: unknown codec type %d", int(c)))
	}
}

// String returns the short name used in configuration files.
func (c CodecType) String() string {
	switch c {
	case CodecH264:
		return "h264"
	case CodecHEVC:
		return "hevc"
	default:
		return "unknown"
	}
}

// ParseCodecType parses a codec name as written in configuration or on the command line.
func ParseCodecType(s string) (CodecType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "h264", "avc", "h.264":
		return CodecH264, nil
	case "hevc", "h265", "h.265":
		return CodecHEVC, nil
	default:
		return 0, fmt.Errorf("unsupported codec %q", s)
	}
}

// VideoSize is the decoded picture size in pixels.
type VideoSize struct {
	Width  uint32
	Height uint32
}

func (s VideoSize) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Valid reports whether both dimensions are non-zero.
func (s VideoSize) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// OptionValue is one of Float32, Int32, Int64 or String.
type OptionValue interface {
	optionValue()
}

// Float32 is a floating point codec option value.
type Float32 float32

// Int32 is a 32-bit integer codec option value.
type Int32 int32

// Int64 is a 64-bit integer codec option value.
type Int64 int64

// String is a text codec option value.
type String string

func (Float32) optionValue() {}
func (Int32) optionValue()   {}
func (Int64) optionValue()   {}
func (String) optionValue()  {}

// DecodeOption is a single named entry merged into the codec configuration.
type DecodeOption struct {
	Name  string
	Value OptionValue
}

// DecodeOptions is applied in order after the mandatory mime, width and height keys.
type DecodeOptions []DecodeOption

// Mandatory configuration keys.
const (
	KeyMime   = "mime"
	KeyWidth  = "width"
	KeyHeight = "height"
)

// Codec status codes shared by every platform. Non-negative dequeue results are
// buffer indices.
const (
	InfoTryAgainLater        = -1
	InfoOutputFormatChanged  = -2
	InfoOutputBuffersChanged = -3
)

// MediaFormat is the transient key/value set handed to Codec.Configure.
// Keys and string values are copied by the implementation.
type MediaFormat interface {
	SetInt32(key string, v int32)
	SetInt64(key string, v int64)
	SetFloat(key string, v float32)
	SetString(key, v string)

	// Delete releases the format and returns the platform status.
	Delete() int
}

// BufferInfo is the metadata attached to a dequeued output buffer.
type BufferInfo struct {
	Offset             int32
	Size               int32
	PresentationTimeUs int64
	Flags              uint32
}

// Codec is a buffer-indexed hardware decoder instance.
// Every blocking call takes an upper bound and returns InfoTryAgainLater when it elapses.
type Codec interface {
	// Configure binds the format and the output window. Returns the platform status.
	Configure(format MediaFormat, window NativeWindow) int

	// Start moves the codec into the running state. Returns the platform status.
	Start() int

	// DequeueInputBuffer returns a free input buffer index or a negative status.
	DequeueInputBuffer(timeout time.Duration) int

	// InputBuffer returns the writable memory behind an input index.
	// Its length is the buffer capacity.
	InputBuffer(index int) []byte

	// QueueInputBuffer submits size bytes of buffer index to the decoder.
	QueueInputBuffer(index, offset, size int, presentationTimeUs int64, flags uint32) int

	// DequeueOutputBuffer returns a decoded buffer index or a negative status.
	DequeueOutputBuffer(info *BufferInfo, timeout time.Duration) int

	// ReleaseOutputBuffer returns the buffer to the codec, presenting it on the
	// configured window when render is true.
	ReleaseOutputBuffer(index int, render bool) int

	// Delete destroys the codec. Returns the platform status.
	Delete() int
}
