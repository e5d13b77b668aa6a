package mocks

import (
	"sync"
	"time"

	"github.com/user/texdecode/pkg/ports"
)

// Codec is a mock implementation of ports.Codec. Unset funcs succeed and
// report no buffers available.
type Codec struct {
	mu      sync.Mutex
	Deletes int

	ConfigureFunc           func(format ports.MediaFormat, window ports.NativeWindow) int
	StartFunc               func() int
	DequeueInputBufferFunc  func(timeout time.Duration) int
	InputBufferFunc         func(index int) []byte
	QueueInputBufferFunc    func(index, offset, size int, presentationTimeUs int64, flags uint32) int
	DequeueOutputBufferFunc func(info *ports.BufferInfo, timeout time.Duration) int
	ReleaseOutputBufferFunc func(index int, render bool) int
	DeleteFunc              func() int
}

func (m *Codec) Configure(format ports.MediaFormat, window ports.NativeWindow) int {
	if m.ConfigureFunc != nil {
		return m.ConfigureFunc(format, window)
	}
	return 0
}

func (m *Codec) Start() int {
	if m.StartFunc != nil {
		return m.StartFunc()
	}
	return 0
}

func (m *Codec) DequeueInputBuffer(timeout time.Duration) int {
	if m.DequeueInputBufferFunc != nil {
		return m.DequeueInputBufferFunc(timeout)
	}
	return ports.InfoTryAgainLater
}

func (m *Codec) InputBuffer(index int) []byte {
	if m.InputBufferFunc != nil {
		return m.InputBufferFunc(index)
	}
	return make([]byte, 1024)
}

func (m *Codec) QueueInputBuffer(index, offset, size int, presentationTimeUs int64, flags uint32) int {
	if m.QueueInputBufferFunc != nil {
		return m.QueueInputBufferFunc(index, offset, size, presentationTimeUs, flags)
	}
	return 0
}

func (m *Codec) DequeueOutputBuffer(info *ports.BufferInfo, timeout time.Duration) int {
	if m.DequeueOutputBufferFunc != nil {
		return m.DequeueOutputBufferFunc(info, timeout)
	}
	return ports.InfoTryAgainLater
}

func (m *Codec) ReleaseOutputBuffer(index int, render bool) int {
	if m.ReleaseOutputBufferFunc != nil {
		return m.ReleaseOutputBufferFunc(index, render)
	}
	return 0
}

func (m *Codec) Delete() int {
	m.mu.Lock()
	m.Deletes++
	m.mu.Unlock()
	if m.DeleteFunc != nil {
		return m.DeleteFunc()
	}
	return 0
}

// DeleteCount returns how many times Delete was called.
func (m *Codec) DeleteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Deletes
}

var _ ports.Codec = (*Codec)(nil)

// MediaFormat is a mock implementation of ports.MediaFormat that records values.
type MediaFormat struct {
	Values  map[string]any
	Deleted bool

	DeleteFunc func() int
}

// NewMediaFormat creates an empty mock MediaFormat.
func NewMediaFormat() *MediaFormat {
	return &MediaFormat{Values: make(map[string]any)}
}

func (m *MediaFormat) SetInt32(key string, v int32)   { m.Values[key] = v }
func (m *MediaFormat) SetInt64(key string, v int64)   { m.Values[key] = v }
func (m *MediaFormat) SetFloat(key string, v float32) { m.Values[key] = v }
func (m *MediaFormat) SetString(key, v string)        { m.Values[key] = v }

func (m *MediaFormat) Delete() int {
	m.Deleted = true
	if m.DeleteFunc != nil {
		return m.DeleteFunc()
	}
	return 0
}

var _ ports.MediaFormat = (*MediaFormat)(nil)

// NativeWindow is a mock implementation of ports.NativeWindow.
type NativeWindow struct {
	ID uintptr
}

func (m *NativeWindow) Handle() uintptr {
	return m.ID
}

var _ ports.NativeWindow = (*NativeWindow)(nil)

// ImageReader is a mock implementation of ports.ImageReader.
type ImageReader struct {
	Closed bool

	WindowFunc func() (ports.NativeWindow, error)
	CloseFunc  func() error
}

func (m *ImageReader) Window() (ports.NativeWindow, error) {
	if m.WindowFunc != nil {
		return m.WindowFunc()
	}
	return &NativeWindow{ID: 1}, nil
}

func (m *ImageReader) Close() error {
	m.Closed = true
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

var _ ports.ImageReader = (*ImageReader)(nil)

// Platform is a mock implementation of ports.Platform.
type Platform struct {
	// Reader and Codec are returned by the default funcs.
	Reader *ImageReader
	Codec  *Codec
	Format *MediaFormat

	// CreatedMimes records every CreateDecoderByType request.
	CreatedMimes []string

	NewImageReaderFunc      func(width, height uint32, format ports.ImageFormat, usage ports.BufferUsage, maxImages int) (ports.ImageReader, error)
	CreateDecoderByTypeFunc func(mime string) (ports.Codec, error)
	NewMediaFormatFunc      func() ports.MediaFormat
}

// NewPlatform creates a mock Platform with a default reader, codec and format.
func NewPlatform() *Platform {
	return &Platform{
		Reader: &ImageReader{},
		Codec:  &Codec{},
		Format: NewMediaFormat(),
	}
}

func (m *Platform) Name() string {
	return "mock"
}

func (m *Platform) NewImageReader(width, height uint32, format ports.ImageFormat, usage ports.BufferUsage, maxImages int) (ports.ImageReader, error) {
	if m.NewImageReaderFunc != nil {
		return m.NewImageReaderFunc(width, height, format, usage, maxImages)
	}
	return m.Reader, nil
}

func (m *Platform) CreateDecoderByType(mime string) (ports.Codec, error) {
	m.CreatedMimes = append(m.CreatedMimes, mime)
	if m.CreateDecoderByTypeFunc != nil {
		return m.CreateDecoderByTypeFunc(mime)
	}
	return m.Codec, nil
}

func (m *Platform) NewMediaFormat() ports.MediaFormat {
	if m.NewMediaFormatFunc != nil {
		return m.NewMediaFormatFunc()
	}
	return m.Format
}

var _ ports.Platform = (*Platform)(nil)
