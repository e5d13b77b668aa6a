// Package softgpu provides a CPU-backed graphics context: textures are arrays
// of RGBA images and the queue executes recorded copies on a worker goroutine.
//
// It is a deterministic stand-in for the GPU context in tests. Surfaces read
// windows that expose ports.ImageSource.
package softgpu

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/user/texdecode/pkg/ports"
)

var (
	// ErrUnsupportedWindow is returned when a window cannot be read on the CPU.
	ErrUnsupportedWindow = errors.New("softgpu: window does not expose images")

	// ErrContextClosed is returned after Close.
	ErrContextClosed = errors.New("softgpu: context closed")

	// ErrCopyOutOfBounds is reported by the queue when a copy leaves a texture.
	ErrCopyOutOfBounds = errors.New("softgpu: copy out of bounds")
)

// DefaultAcquireTimeout bounds how long a surface waits for a presented image.
const DefaultAcquireTimeout = 100 * time.Millisecond

// layered is implemented by every texture this package can copy between.
type layered interface {
	ports.Texture
	layer(z uint32) *image.RGBA
}

// Texture is a 2D texture array held in memory.
type Texture struct {
	label  string
	width  uint32
	height uint32
	layers []*image.RGBA
}

// NewTexture allocates a width x height texture with the given slice count.
func NewTexture(label string, width, height, layers uint32) *Texture {
	t := &Texture{
		label:  label,
		width:  width,
		height: height,
		layers: make([]*image.RGBA, layers),
	}
	for i := range t.layers {
		t.layers[i] = image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	}
	return t
}

func (t *Texture) Width() uint32              { return t.width }
func (t *Texture) Height() uint32             { return t.height }
func (t *Texture) DepthOrArrayLayers() uint32 { return uint32(len(t.layers)) }
func (t *Texture) Label() string              { return t.label }

func (t *Texture) layer(z uint32) *image.RGBA {
	if int(z) >= len(t.layers) {
		return nil
	}
	return t.layers[z]
}

// ReadSlice returns a copy of slice z. Call it only after the queue reported
// completion of the work that wrote it.
func (t *Texture) ReadSlice(z uint32) (*image.RGBA, error) {
	src := t.layer(z)
	if src == nil {
		return nil, fmt.Errorf("softgpu: slice %d of %d", z, len(t.layers))
	}
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst, nil
}

// imageTexture wraps a single presented image.
type imageTexture struct {
	img *image.RGBA
}

func (t imageTexture) Width() uint32              { return uint32(t.img.Bounds().Dx()) }
func (t imageTexture) Height() uint32             { return uint32(t.img.Bounds().Dy()) }
func (t imageTexture) DepthOrArrayLayers() uint32 { return 1 }

func (t imageTexture) layer(z uint32) *image.RGBA {
	if z != 0 {
		return nil
	}
	return t.img
}

// Context implements ports.GraphicsContext.
type Context struct {
	queue          *Queue
	acquireTimeout time.Duration
}

// New starts a context and its queue worker.
func New() *Context {
	return &Context{
		queue:          newQueue(),
		acquireTimeout: DefaultAcquireTimeout,
	}
}

// SetAcquireTimeout changes how long surfaces wait for a presented image.
func (c *Context) SetAcquireTimeout(d time.Duration) {
	c.acquireTimeout = d
}

// CreateSurface wraps a window that exposes ports.ImageSource.
func (c *Context) CreateSurface(window ports.NativeWindow) (ports.RenderSurface, error) {
	src, ok := window.(ports.ImageSource)
	if !ok {
		return nil, ErrUnsupportedWindow
	}
	return &Surface{source: src, timeout: c.acquireTimeout}, nil
}

// CreateTexture allocates a texture in memory.
func (c *Context) CreateTexture(label string, width, height, layers uint32) (ports.Texture, error) {
	if width == 0 || height == 0 || layers == 0 {
		return nil, fmt.Errorf("softgpu: invalid texture %dx%dx%d", width, height, layers)
	}
	return NewTexture(label, width, height, layers), nil
}

// CreateCommandEncoder returns an empty command recorder.
func (c *Context) CreateCommandEncoder() ports.CommandEncoder {
	return &CommandEncoder{}
}

// Queue returns the context queue.
func (c *Context) Queue() ports.Queue {
	return c.queue
}

// Close stops the queue worker after draining submitted work.
func (c *Context) Close() {
	c.queue.close()
}

// Surface implements ports.RenderSurface over an ImageSource.
type Surface struct {
	source  ports.ImageSource
	timeout time.Duration

	mu        sync.Mutex
	destroyed bool
}

// CurrentFrame acquires the newest presented image.
func (s *Surface) CurrentFrame() (ports.SurfaceFrame, error) {
	s.mu.Lock()
	destroyed := s.destroyed
	s.mu.Unlock()
	if destroyed {
		return nil, errors.New("softgpu: surface destroyed")
	}

	img, release, err := s.source.AcquireLatest(s.timeout)
	if err != nil {
		return nil, fmt.Errorf("softgpu: acquire frame: %w", err)
	}
	return &surfaceFrame{tex: imageTexture{img: img}, release: release}, nil
}

// Destroy marks the surface unusable.
func (s *Surface) Destroy() {
	s.mu.Lock()
	s.destroyed = true
	s.mu.Unlock()
}

type surfaceFrame struct {
	tex     imageTexture
	release func()
}

func (f *surfaceFrame) Texture() ports.Texture { return f.tex }
func (f *surfaceFrame) Release()               { f.release() }

type copyCommand struct {
	src, dst ports.ImageCopyTexture
	size     ports.Extent3D
}

// CommandEncoder records copies.
type CommandEncoder struct {
	cmds []copyCommand
}

// CopyTextureToTexture records a copy of size from src to dst.
func (e *CommandEncoder) CopyTextureToTexture(src, dst ports.ImageCopyTexture, size ports.Extent3D) {
	e.cmds = append(e.cmds, copyCommand{src: src, dst: dst, size: size})
}

// Finish returns the recorded commands.
func (e *CommandEncoder) Finish() ports.CommandBuffer {
	cmds := e.cmds
	e.cmds = nil
	return &CommandBuffer{cmds: cmds}
}

// CommandBuffer is a finished list of copies.
type CommandBuffer struct {
	cmds []copyCommand
}

func (c copyCommand) execute() error {
	src, ok := c.src.Texture.(layered)
	if !ok {
		return fmt.Errorf("softgpu: foreign source texture %T", c.src.Texture)
	}
	dst, ok := c.dst.Texture.(layered)
	if !ok {
		return fmt.Errorf("softgpu: foreign destination texture %T", c.dst.Texture)
	}
	if c.src.MipLevel != 0 || c.dst.MipLevel != 0 {
		return fmt.Errorf("softgpu: mip levels are not supported")
	}

	for z := uint32(0); z < c.size.DepthOrArrayLayers; z++ {
		s := src.layer(c.src.Origin.Z + z)
		d := dst.layer(c.dst.Origin.Z + z)
		if s == nil || d == nil {
			return fmt.Errorf("%w: layer %d", ErrCopyOutOfBounds, z)
		}

		sr := image.Rect(int(c.src.Origin.X), int(c.src.Origin.Y),
			int(c.src.Origin.X+c.size.Width), int(c.src.Origin.Y+c.size.Height))
		dp := image.Pt(int(c.dst.Origin.X), int(c.dst.Origin.Y))
		dr := image.Rectangle{Min: dp, Max: dp.Add(sr.Size())}
		if !sr.In(s.Bounds()) || !dr.In(d.Bounds()) {
			return fmt.Errorf("%w: %v -> %v", ErrCopyOutOfBounds, sr, dr)
		}

		draw.Copy(d, dp, s, sr, draw.Src, nil)
	}
	return nil
}

var (
	_ ports.GraphicsContext = (*Context)(nil)
	_ ports.RenderSurface   = (*Surface)(nil)
	_ ports.CommandEncoder  = (*CommandEncoder)(nil)
	_ ports.Texture         = (*Texture)(nil)
)

// Queue runs submitted command buffers in order on one goroutine.
type Queue struct {
	jobs chan job
	// sendMu orders sequence assignment with the channel send so the worker
	// sees jobs in sequence order.
	sendMu sync.Mutex

	mu        sync.Mutex
	changed   chan struct{}
	submitted uint64
	completed uint64
	err       error
	closed    bool
	done      chan struct{}
}

type job struct {
	seq     uint64
	buffers []ports.CommandBuffer
}

func newQueue() *Queue {
	q := &Queue{
		jobs:    make(chan job, 64),
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for j := range q.jobs {
		var firstErr error
		for _, b := range j.buffers {
			cb, ok := b.(*CommandBuffer)
			if !ok {
				firstErr = fmt.Errorf("softgpu: foreign command buffer %T", b)
				continue
			}
			for _, cmd := range cb.cmds {
				if err := cmd.execute(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
		}

		q.mu.Lock()
		q.completed = j.seq
		if firstErr != nil && q.err == nil {
			q.err = firstErr
		}
		close(q.changed)
		q.changed = make(chan struct{})
		q.mu.Unlock()
	}
}

// Submit enqueues buffers for execution.
func (q *Queue) Submit(buffers ...ports.CommandBuffer) {
	q.sendMu.Lock()
	defer q.sendMu.Unlock()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.submitted++
	j := job{seq: q.submitted, buffers: buffers}
	q.mu.Unlock()

	q.jobs <- j
}

// OnSubmittedWorkDone waits for everything submitted before the call. A copy
// failure in that work is returned once.
func (q *Queue) OnSubmittedWorkDone(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrContextClosed
	}
	target := q.submitted
	for q.completed < target {
		ch := q.changed
		q.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}

		q.mu.Lock()
	}
	err := q.err
	q.err = nil
	q.mu.Unlock()
	return err
}

func (q *Queue) close() {
	q.sendMu.Lock()
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.sendMu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.jobs)
	q.sendMu.Unlock()

	<-q.done

	q.mu.Lock()
	close(q.changed)
	q.changed = make(chan struct{})
	q.mu.Unlock()
}

var _ ports.Queue = (*Queue)(nil)
