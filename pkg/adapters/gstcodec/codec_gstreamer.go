//go:build linux && gstreamer

package gstcodec

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/user/texdecode/pkg/adapters/swapchain"
	"github.com/user/texdecode/pkg/ports"
)

var initOnce sync.Once

func initGStreamer() error {
	initOnce.Do(func() { gst.Init(nil) })
	return nil
}

// pollInterval bounds how long the sample loop blocks in the appsink.
const pollInterval = 20 * time.Millisecond

// picture is one decoded frame waiting for the caller.
type picture struct {
	pts  int64
	pix  []byte
	size int
}

// Codec drives one appsrc ! parse ! decode ! convert ! appsink pipeline and
// emulates the input and output buffer pools on top of it.
type Codec struct {
	platform *Platform
	opts     Options
	mime     string
	log      ports.Logger

	mu      sync.Mutex
	changed chan struct{}

	window *swapchain.Window
	size   ports.VideoSize

	pipeline *gst.Pipeline
	src      *app.Source
	sink     *app.Sink
	done     chan struct{}
	loop     sync.WaitGroup

	inputs     [][]byte
	freeInputs []int

	ready      []picture
	dequeued   map[int]picture
	nextOutput int

	configured bool
	started    bool
	failed     bool
	deleted    bool
}

func newCodec(p *Platform, mime string) (ports.Codec, error) {
	c := &Codec{
		platform: p,
		opts:     p.opts,
		mime:     mime,
		log:      p.log,
		changed:  make(chan struct{}),
		inputs:   make([][]byte, p.opts.InputBuffers),
		dequeued: make(map[int]picture),
	}
	for i := range c.inputs {
		c.inputs[i] = make([]byte, p.opts.InputCapacity)
		c.freeInputs = append(c.freeInputs, i)
	}
	return c, nil
}

// Configure builds the pipeline with the first decoder element that can be
// instantiated and binds the swapchain window frames are presented into.
func (c *Codec) Configure(format ports.MediaFormat, window ports.NativeWindow) int {
	f, ok := format.(*Format)
	if !ok {
		return statusErrorInvalidParam
	}
	w, ok := window.(*swapchain.Window)
	if !ok {
		return statusErrorInvalidParam
	}
	mime, size, ok := f.configuration()
	if !ok || mime != c.mime {
		return statusErrorInvalidParam
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleted || c.configured {
		return statusErrorInvalidOp
	}

	pipeline, decoder, err := buildPipeline(mime, c.opts.Decoder, size)
	if err != nil {
		c.log.Error("GStreamer pipeline error: %s", err.Error())
		return statusErrorUnknown
	}

	srcElement, err := pipeline.GetElementByName("src")
	if err != nil {
		pipeline.Unref()
		return statusErrorUnknown
	}
	srcElement.SetProperty("caps", gst.NewCapsFromString(streams[mime].caps))

	sinkElement, err := pipeline.GetElementByName("sink")
	if err != nil {
		pipeline.Unref()
		return statusErrorUnknown
	}
	sinkElement.SetProperty("max-buffers", uint(c.opts.OutputBuffers))

	c.pipeline = pipeline
	c.src = app.SrcFromElement(srcElement)
	c.sink = app.SinkFromElement(sinkElement)
	c.window = w
	c.size = size
	c.configured = true

	c.log.Debug("Using GStreamer decoder %s", decoder)
	return statusOK
}

// buildPipeline tries each candidate decoder until one parses.
func buildPipeline(mime, override string, size ports.VideoSize) (*gst.Pipeline, string, error) {
	var lastErr error
	for _, decoder := range decoderCandidates(mime, override) {
		pipeline, err := gst.NewPipelineFromString(launchString(mime, decoder, size))
		if err == nil {
			return pipeline, decoder, nil
		}
		lastErr = err
	}
	return nil, "", fmt.Errorf("%w: %s: %v", ErrNoDecoder, mime, lastErr)
}

// Start sets the pipeline playing and begins collecting decoded samples.
func (c *Codec) Start() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.configured || c.started || c.deleted {
		return statusErrorInvalidOp
	}
	if err := c.pipeline.SetState(gst.StatePlaying); err != nil {
		c.log.Error("GStreamer pipeline error: %s", err.Error())
		return statusErrorUnknown
	}
	c.started = true
	c.done = make(chan struct{})
	c.loop.Add(1)
	go c.collect()
	return statusOK
}

// collect pulls samples from the appsink into the ready queue while there is
// room in the output pool, and watches the bus for errors.
func (c *Codec) collect() {
	defer c.loop.Done()
	bus := c.pipeline.GetPipelineBus()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		if msg := bus.TimedPop(0); msg != nil {
			switch msg.Type() {
			case gst.MessageError:
				gerr := msg.ParseError()
				c.log.Error("GStreamer pipeline error: %s", gerr.Error())
				c.mu.Lock()
				c.failed = true
				c.broadcast()
				c.mu.Unlock()
				return
			case gst.MessageEOS:
				return
			}
		}

		c.mu.Lock()
		room := c.waitLocked(pollInterval, func() bool {
			return len(c.ready)+len(c.dequeued) < c.opts.OutputBuffers
		})
		c.mu.Unlock()
		if !room {
			continue
		}

		sample := c.sink.TryPullSample(pollInterval)
		if sample == nil {
			continue
		}
		pic, ok := c.picture(sample)
		if !ok {
			continue
		}

		c.mu.Lock()
		c.ready = append(c.ready, pic)
		c.broadcast()
		c.mu.Unlock()
	}
}

// picture copies the sample out of GStreamer memory. The buffer timestamp
// carries the input timestamp unchanged.
func (c *Codec) picture(sample *gst.Sample) (picture, bool) {
	buffer := sample.GetBuffer()
	if buffer == nil {
		return picture{}, false
	}
	pts := buffer.PresentationTimestamp()
	if pts < 0 {
		return picture{}, false
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	pix := make([]byte, len(data))
	copy(pix, data)
	buffer.Unmap()

	return picture{
		pts:  int64(pts / time.Microsecond),
		pix:  pix,
		size: len(pix),
	}, true
}

// DequeueInputBuffer waits up to timeout for a free input buffer.
func (c *Codec) DequeueInputBuffer(timeout time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return statusErrorInvalidOp
	}
	if c.failed {
		return statusErrorUnknown
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

// QueueInputBuffer pushes size bytes into the appsrc stamped with the
// timestamp. Empty buffers are returned to the pool.
func (c *Codec) QueueInputBuffer(index, offset, size int, presentationTimeUs int64, flags uint32) int {
	c.mu.Lock()
	if index < 0 || index >= len(c.inputs) || offset < 0 || offset+size > len(c.inputs[index]) {
		c.mu.Unlock()
		return statusErrorInvalidParam
	}
	pts, ok := ptsDuration(presentationTimeUs)
	if !ok {
		c.mu.Unlock()
		return statusErrorInvalidParam
	}
	data := make([]byte, size)
	copy(data, c.inputs[index][offset:offset+size])
	c.freeInputs = append(c.freeInputs, index)
	c.broadcast()
	src := c.src
	c.mu.Unlock()

	if size == 0 {
		return statusOK
	}

	buffer := gst.NewBufferFromBytes(data)
	buffer.SetPresentationTimestamp(pts)
	if ret := src.PushBuffer(buffer); ret != gst.FlowOK {
		return statusErrorUnknown
	}
	return statusOK
}

// DequeueOutputBuffer waits up to timeout for a decoded picture.
func (c *Codec) DequeueOutputBuffer(info *ports.BufferInfo, timeout time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return statusErrorInvalidOp
	}
	if !c.waitLocked(timeout, func() bool { return len(c.ready) > 0 || c.failed }) {
		return ports.InfoTryAgainLater
	}
	if len(c.ready) == 0 {
		return statusErrorUnknown
	}

	pic := c.ready[0]
	c.ready = c.ready[1:]
	index := c.nextOutput
	c.nextOutput++
	c.dequeued[index] = pic

	*info = ports.BufferInfo{
		Size:               int32(pic.size),
		PresentationTimeUs: pic.pts,
	}
	return index
}

// ReleaseOutputBuffer presents the picture into the swapchain when render is set.
func (c *Codec) ReleaseOutputBuffer(index int, render bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	pic, ok := c.dequeued[index]
	if !ok {
		return statusErrorInvalidParam
	}
	delete(c.dequeued, index)
	c.broadcast()

	if render {
		width, height := int(c.size.Width), int(c.size.Height)
		err := c.window.Reader().Present(func(dst *image.RGBA) {
			copyRGBX(dst.Pix, dst.Stride, pic.pix, width, height)
		})
		if err != nil {
			return statusErrorUnknown
		}
	}
	return statusOK
}

// Delete stops the pipeline and releases it.
func (c *Codec) Delete() int {
	c.mu.Lock()
	if c.deleted {
		c.mu.Unlock()
		return statusErrorInvalidOp
	}
	c.deleted = true
	started := c.started
	c.started = false
	c.broadcast()
	c.mu.Unlock()

	if started {
		close(c.done)
		c.loop.Wait()
	}
	if c.pipeline != nil {
		c.pipeline.SetState(gst.StateNull)
		c.pipeline.Unref()
	}
	return statusOK
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
