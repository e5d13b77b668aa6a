// Package simcodec is a deterministic stand-in for a platform hardware decoder.
//
// It models the parts of a buffer-indexed codec the decoder session depends
// on: a fixed input pool, a bounded set of decoded outputs, timestamps carried
// from input to output, presentation into a swapchain window, and status codes
// that can be forced for error-path testing. Every decoded picture is a solid
// color derived from its payload (see FrameColor).
package simcodec

import (
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/user/texdecode/pkg/adapters/swapchain"
	"github.com/user/texdecode/pkg/ports"
)

// Platform status codes, matching the media NDK values.
const (
	StatusOK               = 0
	StatusErrorUnknown     = -10000
	StatusErrorInvalidOp   = -10007
	StatusErrorInvalidParm = -10008
)

// ErrNoCodec is returned by CreateDecoderByType for unknown mime types.
var ErrNoCodec = errors.New("simcodec: no decoder for mime type")

// Options tunes the simulated hardware.
type Options struct {
	InputBuffers   int  // input pool size (default 4)
	OutputBuffers  int  // decoded pictures held before input stalls (default 2)
	InputCapacity  int  // bytes per input buffer (default 1 MiB)
	Reorder        bool // swap each pair of decoded pictures, like a B-frame stream
	FormatChange   bool // emit InfoOutputFormatChanged before the first picture
	SupportedMimes []string

	// Forced status codes; zero means normal behaviour.
	ConfigureStatus      int
	StartStatus          int
	DeleteStatus         int
	FormatDeleteStatus   int
	InputDequeueStatus   int
	QueueStatus          int
	OutputDequeueStatus  int
	ReleaseStatus        int
	ReaderError          error
	SkipPresent          bool // release without presenting, to starve the surface
}

func (o Options) withDefaults() Options {
	if o.InputBuffers <= 0 {
		o.InputBuffers = 4
	}
	if o.OutputBuffers <= 0 {
		o.OutputBuffers = 2
	}
	if o.InputCapacity <= 0 {
		o.InputCapacity = 1 << 20
	}
	if len(o.SupportedMimes) == 0 {
		o.SupportedMimes = []string{"video/avc", "video/hevc"}
	}
	return o
}

// Platform implements ports.Platform and keeps count of live resources.
type Platform struct {
	opts Options

	mu          sync.Mutex
	liveCodecs  int
	liveReaders int
	liveFormats int
	codecs      []*Codec
	lastFormat  *Format
}

// New creates a simulated platform.
func New(opts Options) *Platform {
	return &Platform{opts: opts.withDefaults()}
}

// Name identifies the platform in logs.
func (p *Platform) Name() string {
	return "simulated"
}

// NewImageReader allocates a swapchain reader.
func (p *Platform) NewImageReader(width, height uint32, format ports.ImageFormat, usage ports.BufferUsage, maxImages int) (ports.ImageReader, error) {
	if p.opts.ReaderError != nil {
		return nil, p.opts.ReaderError
	}
	r, err := swapchain.New(width, height, format, usage, maxImages)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.liveReaders++
	p.mu.Unlock()
	return &trackedReader{Reader: r, platform: p}, nil
}

// CreateDecoderByType returns a codec for a supported mime type.
func (p *Platform) CreateDecoderByType(mime string) (ports.Codec, error) {
	supported := false
	for _, m := range p.opts.SupportedMimes {
		if m == mime {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("%w: %s", ErrNoCodec, mime)
	}

	c := newCodec(p, mime)
	p.mu.Lock()
	p.liveCodecs++
	p.codecs = append(p.codecs, c)
	p.mu.Unlock()
	return c, nil
}

// NewMediaFormat returns an empty recording format.
func (p *Platform) NewMediaFormat() ports.MediaFormat {
	f := &Format{Values: make(map[string]any), platform: p}
	p.mu.Lock()
	p.liveFormats++
	p.lastFormat = f
	p.mu.Unlock()
	return f
}

// LiveCodecs returns the number of created, not yet deleted codecs.
func (p *Platform) LiveCodecs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.liveCodecs
}

// LiveReaders returns the number of open image readers.
func (p *Platform) LiveReaders() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.liveReaders
}

// LiveFormats returns the number of undeleted media formats.
func (p *Platform) LiveFormats() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.liveFormats
}

// LastFormat returns the most recently created format.
func (p *Platform) LastFormat() *Format {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFormat
}

// Codecs returns every codec created so far.
func (p *Platform) Codecs() []*Codec {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Codec(nil), p.codecs...)
}

type trackedReader struct {
	*swapchain.Reader
	platform *Platform
	once     sync.Once
}

func (r *trackedReader) Close() error {
	r.once.Do(func() {
		r.platform.mu.Lock()
		r.platform.liveReaders--
		r.platform.mu.Unlock()
	})
	return r.Reader.Close()
}

// Format records every key set on it.
type Format struct {
	Values   map[string]any
	platform *Platform
	deleted  bool
}

func (f *Format) SetInt32(key string, v int32)   { f.Values[key] = v }
func (f *Format) SetInt64(key string, v int64)   { f.Values[key] = v }
func (f *Format) SetFloat(key string, v float32) { f.Values[key] = v }
func (f *Format) SetString(key, v string)        { f.Values[key] = v }

// Delete releases the format.
func (f *Format) Delete() int {
	if !f.deleted {
		f.deleted = true
		f.platform.mu.Lock()
		f.platform.liveFormats--
		f.platform.mu.Unlock()
	}
	return f.platform.opts.FormatDeleteStatus
}

// FrameColor is the color of the picture decoded from payload.
func FrameColor(payload []byte) color.RGBA {
	h := fnv.New32a()
	h.Write(payload)
	sum := h.Sum32()
	return color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 0xff}
}

type picture struct {
	pts   int64
	size  int
	color color.RGBA
}

// Codec is a simulated decoder instance.
type Codec struct {
	platform *Platform
	opts     Options
	mime     string

	mu      sync.Mutex
	changed chan struct{}

	configured bool
	started    bool
	deleted    bool
	window     *swapchain.Window
	width      int
	height     int

	inputs     [][]byte
	freeInputs []int
	// inputs queued but not decoded yet, waiting for output room
	decodeQueue []queuedInput
	ready       []picture
	dequeued    map[int]picture
	nextOutput  int
	formatSent  bool

	queued   int
	released int
}

type queuedInput struct {
	index int
	pic   picture
}

func newCodec(p *Platform, mime string) *Codec {
	c := &Codec{
		platform: p,
		opts:     p.opts,
		mime:     mime,
		changed:  make(chan struct{}),
		inputs:   make([][]byte, p.opts.InputBuffers),
		dequeued: make(map[int]picture),
	}
	for i := range c.inputs {
		c.inputs[i] = make([]byte, p.opts.InputCapacity)
		c.freeInputs = append(c.freeInputs, i)
	}
	return c
}

// Configure validates the mandatory keys and binds a swapchain window.
func (c *Codec) Configure(format ports.MediaFormat, window ports.NativeWindow) int {
	if c.opts.ConfigureStatus != 0 {
		return c.opts.ConfigureStatus
	}
	f, ok := format.(*Format)
	if !ok {
		return StatusErrorInvalidParm
	}
	w, ok := window.(*swapchain.Window)
	if !ok {
		return StatusErrorInvalidParm
	}
	mime, _ := f.Values[ports.KeyMime].(string)
	width, _ := f.Values[ports.KeyWidth].(int32)
	height, _ := f.Values[ports.KeyHeight].(int32)
	if mime != c.mime || width <= 0 || height <= 0 {
		return StatusErrorInvalidParm
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.window = w
	c.width = int(width)
	c.height = int(height)
	c.configured = true
	return StatusOK
}

// Start moves a configured codec into the running state.
func (c *Codec) Start() int {
	if c.opts.StartStatus != 0 {
		return c.opts.StartStatus
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.configured {
		return StatusErrorInvalidOp
	}
	c.started = true
	return StatusOK
}

// DequeueInputBuffer waits up to timeout for a free input buffer.
func (c *Codec) DequeueInputBuffer(timeout time.Duration) int {
	if c.opts.InputDequeueStatus != 0 {
		return c.opts.InputDequeueStatus
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return StatusErrorInvalidOp
	}
	if !c.waitLocked(timeout, func() bool { return len(c.freeInputs) > 0 }) {
		return ports.InfoTryAgainLater
	}
	index := c.freeInputs[0]
	c.freeInputs = c.freeInputs[1:]
	return index
}

// InputBuffer returns the memory behind an input index.
func (c *Codec) InputBuffer(index int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.inputs) {
		return nil
	}
	return c.inputs[index]
}

// QueueInputBuffer decodes size bytes of the buffer. Empty buffers are returned
// to the pool without producing a picture.
func (c *Codec) QueueInputBuffer(index, offset, size int, presentationTimeUs int64, flags uint32) int {
	if c.opts.QueueStatus != 0 {
		return c.opts.QueueStatus
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.inputs) || offset+size > len(c.inputs[index]) {
		return StatusErrorInvalidParm
	}

	if size == 0 {
		c.freeInputs = append(c.freeInputs, index)
		c.broadcast()
		return StatusOK
	}

	c.queued++
	c.decodeQueue = append(c.decodeQueue, queuedInput{
		index: index,
		pic: picture{
			pts:   presentationTimeUs,
			size:  size,
			color: FrameColor(c.inputs[index][offset : offset+size]),
		},
	})
	c.decodeLocked()
	return StatusOK
}

// decodeLocked moves queued inputs to ready pictures while there is output room.
func (c *Codec) decodeLocked() {
	for len(c.decodeQueue) > 0 && len(c.ready)+len(c.dequeued) < c.opts.OutputBuffers {
		in := c.decodeQueue[0]
		c.decodeQueue = c.decodeQueue[1:]
		c.ready = append(c.ready, in.pic)
		c.freeInputs = append(c.freeInputs, in.index)
	}
	c.broadcast()
}

// DequeueOutputBuffer waits up to timeout for a decoded picture.
func (c *Codec) DequeueOutputBuffer(info *ports.BufferInfo, timeout time.Duration) int {
	if c.opts.OutputDequeueStatus != 0 {
		return c.opts.OutputDequeueStatus
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return StatusErrorInvalidOp
	}
	if !c.waitLocked(timeout, func() bool { return len(c.ready) > 0 }) {
		return ports.InfoTryAgainLater
	}
	if c.opts.FormatChange && !c.formatSent {
		c.formatSent = true
		return ports.InfoOutputFormatChanged
	}

	pick := 0
	if c.opts.Reorder && len(c.ready) >= 2 && c.released%2 == 0 {
		pick = 1
	}
	pic := c.ready[pick]
	c.ready = append(c.ready[:pick], c.ready[pick+1:]...)

	index := c.nextOutput
	c.nextOutput++
	c.dequeued[index] = pic

	*info = ports.BufferInfo{
		Offset:             0,
		Size:               int32(pic.size),
		PresentationTimeUs: pic.pts,
	}
	return index
}

// ReleaseOutputBuffer presents the picture when render is set.
func (c *Codec) ReleaseOutputBuffer(index int, render bool) int {
	if c.opts.ReleaseStatus != 0 {
		return c.opts.ReleaseStatus
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	pic, ok := c.dequeued[index]
	if !ok {
		return StatusErrorInvalidParm
	}
	delete(c.dequeued, index)
	c.released++

	if render && !c.opts.SkipPresent {
		err := c.window.Reader().Present(func(dst *image.RGBA) {
			fill(dst, pic.color)
		})
		if err != nil {
			return StatusErrorUnknown
		}
	}

	c.decodeLocked()
	return StatusOK
}

// Delete destroys the codec.
func (c *Codec) Delete() int {
	c.mu.Lock()
	if c.deleted {
		c.mu.Unlock()
		return StatusErrorInvalidOp
	}
	c.deleted = true
	c.started = false
	c.broadcast()
	c.mu.Unlock()

	c.platform.mu.Lock()
	c.platform.liveCodecs--
	c.platform.mu.Unlock()
	return c.opts.DeleteStatus
}

// Queued returns how many non-empty inputs were accepted.
func (c *Codec) Queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queued
}

// Deleted reports whether Delete has been called.
func (c *Codec) Deleted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleted
}

// waitLocked waits for cond with c.mu held, giving up after timeout.
func (c *Codec) waitLocked(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for !cond() {
		remaining := time.Until(deadline)
		if remaining <= 0 || c.deleted {
			return false
		}
		ch := c.changed
		c.mu.Unlock()

		timer := time.NewTimer(remaining)
		select {
		case <-ch:
		case <-timer.C:
		}
		timer.Stop()

		c.mu.Lock()
	}
	return true
}

func (c *Codec) broadcast() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func fill(dst *image.RGBA, col color.RGBA) {
	for i := 0; i+3 < len(dst.Pix); i += 4 {
		dst.Pix[i] = col.R
		dst.Pix[i+1] = col.G
		dst.Pix[i+2] = col.B
		dst.Pix[i+3] = col.A
	}
}

var (
	_ ports.Platform    = (*Platform)(nil)
	_ ports.Codec       = (*Codec)(nil)
	_ ports.MediaFormat = (*Format)(nil)
)
