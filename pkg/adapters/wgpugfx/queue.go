package wgpugfx

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/user/texdecode/pkg/ports"
)

// copyPitchAlignment is the row alignment of texture to buffer copies.
const copyPitchAlignment = 256

// Completion is polled with a doubling delay between these bounds.
const (
	minPollDelay = 100 * time.Microsecond
	maxPollDelay = 2 * time.Millisecond
)

type copyCommand struct {
	src, dst ports.ImageCopyTexture
	size     ports.Extent3D
}

// CommandEncoder records copies. They are validated and encoded into a hal
// command buffer when submitted.
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

func (c copyCommand) textures() (src, dst *Texture, err error) {
	src, ok := c.src.Texture.(*Texture)
	if !ok {
		return nil, nil, fmt.Errorf("wgpugfx: foreign source texture %T", c.src.Texture)
	}
	dst, ok = c.dst.Texture.(*Texture)
	if !ok {
		return nil, nil, fmt.Errorf("wgpugfx: foreign destination texture %T", c.dst.Texture)
	}
	if src == dst {
		return nil, nil, errors.New("wgpugfx: copy within one texture")
	}
	if src.ctx != dst.ctx {
		return nil, nil, errors.New("wgpugfx: textures belong to different contexts")
	}
	if c.src.MipLevel != 0 || c.dst.MipLevel != 0 {
		return nil, nil, errors.New("wgpugfx: mip levels are not supported")
	}
	if !fits(src, c.src.Origin, c.size) || !fits(dst, c.dst.Origin, c.size) {
		return nil, nil, fmt.Errorf("%w: %dx%dx%d from %v to %v", ErrCopyOutOfBounds,
			c.size.Width, c.size.Height, c.size.DepthOrArrayLayers, c.src.Origin, c.dst.Origin)
	}
	return src, dst, nil
}

func fits(t *Texture, o ports.Origin3D, size ports.Extent3D) bool {
	return uint64(o.X)+uint64(size.Width) <= uint64(t.width) &&
		uint64(o.Y)+uint64(size.Height) <= uint64(t.height) &&
		uint64(o.Z)+uint64(size.DepthOrArrayLayers) <= uint64(t.layers)
}

func imageCopy(t *Texture, c ports.ImageCopyTexture) hal.ImageCopyTexture {
	return hal.ImageCopyTexture{
		Texture:  t.raw,
		MipLevel: c.MipLevel,
		Origin:   hal.Origin3D{X: c.Origin.X, Y: c.Origin.Y, Z: c.Origin.Z},
		Aspect:   gputypes.TextureAspectAll,
	}
}

type pendingBuffer struct {
	index uint64
	buf   hal.CommandBuffer
}

// Queue encodes and submits copies on the device queue. Completion is tracked
// as the highest submission index, which the device reports in order.
type Queue struct {
	device hal.Device
	raw    hal.Queue

	mu      sync.Mutex
	target  uint64
	pending []pendingBuffer
	err     error
	closed  bool
}

func newQueue(device hal.Device, raw hal.Queue) *Queue {
	return &Queue{device: device, raw: raw}
}

// Submit encodes and submits each buffer. Failures are reported by the next
// OnSubmittedWorkDone.
func (q *Queue) Submit(buffers ...ports.CommandBuffer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	for _, b := range buffers {
		cb, ok := b.(*CommandBuffer)
		if !ok {
			q.failLocked(fmt.Errorf("wgpugfx: foreign command buffer %T", b))
			continue
		}
		if err := q.submitLocked(cb.cmds); err != nil {
			q.failLocked(err)
		}
	}
	q.reclaimLocked()
}

func (q *Queue) submitLocked(cmds []copyCommand) error {
	if len(cmds) == 0 {
		return nil
	}
	type pair struct{ src, dst *Texture }
	resolved := make([]pair, len(cmds))
	for i, cmd := range cmds {
		src, dst, err := cmd.textures()
		if err != nil {
			return err
		}
		resolved[i] = pair{src, dst}
	}

	encoder, err := q.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "texture-transfer"})
	if err != nil {
		return fmt.Errorf("wgpugfx: create encoder: %w", err)
	}
	if err := encoder.BeginEncoding("texture-transfer"); err != nil {
		return fmt.Errorf("wgpugfx: begin encoding: %w", err)
	}
	for i, cmd := range cmds {
		src, dst := resolved[i].src, resolved[i].dst
		barriers := append(src.transition(gputypes.TextureUsageCopySrc), dst.transition(gputypes.TextureUsageCopyDst)...)
		if len(barriers) > 0 {
			encoder.TransitionTextures(barriers)
		}
		encoder.CopyTextureToTexture(src.raw, dst.raw, []hal.TextureCopy{{
			SrcBase: imageCopy(src, cmd.src),
			DstBase: imageCopy(dst, cmd.dst),
			Size: hal.Extent3D{
				Width:              cmd.size.Width,
				Height:             cmd.size.Height,
				DepthOrArrayLayers: cmd.size.DepthOrArrayLayers,
			},
		}})
	}
	buf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpugfx: end encoding: %w", err)
	}
	_, err = q.submitBufferLocked(buf)
	return err
}

func (q *Queue) submitBufferLocked(buf hal.CommandBuffer) (uint64, error) {
	index, err := q.raw.Submit([]hal.CommandBuffer{buf})
	if err != nil {
		q.device.FreeCommandBuffer(buf)
		return 0, fmt.Errorf("wgpugfx: submit: %w", err)
	}
	if index > q.target {
		q.target = index
	}
	q.pending = append(q.pending, pendingBuffer{index: index, buf: buf})
	return index, nil
}

func (q *Queue) failLocked(err error) {
	if q.err == nil {
		q.err = err
	}
}

// reclaimLocked frees command buffers the device has finished with.
func (q *Queue) reclaimLocked() {
	if len(q.pending) == 0 {
		return
	}
	done := q.raw.PollCompleted()
	kept := q.pending[:0]
	for _, p := range q.pending {
		if p.index <= done {
			q.device.FreeCommandBuffer(p.buf)
			continue
		}
		kept = append(kept, p)
	}
	q.pending = kept
}

func (q *Queue) completed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.raw.PollCompleted()
}

// OnSubmittedWorkDone waits for everything submitted before the call. An
// encoding or submission failure in that work is returned once.
func (q *Queue) OnSubmittedWorkDone(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrContextClosed
	}
	target := q.target
	q.mu.Unlock()

	if err := q.wait(ctx, target); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.reclaimLocked()
	err := q.err
	q.err = nil
	return err
}

// wait polls until submission index has completed or ctx is done.
func (q *Queue) wait(ctx context.Context, index uint64) error {
	delay := minPollDelay
	for q.completed() < index {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if delay < maxPollDelay {
			delay *= 2
		}
	}
	return nil
}

// writeTexture uploads one image into slice 0 of t.
func (q *Queue) writeTexture(t *Texture, pix []byte, offset, stride, width, height int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrContextClosed
	}
	err := q.raw.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.raw, Aspect: gputypes.TextureAspectAll},
		pix,
		&hal.ImageDataLayout{
			Offset:       uint64(offset),
			BytesPerRow:  uint32(stride),
			RowsPerImage: uint32(height),
		},
		&hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("wgpugfx: write texture: %w", err)
	}
	t.usage = gputypes.TextureUsageCopyDst
	return nil
}

// readSlice copies slice z of t into a mapped staging buffer and from there
// into a new image.
func (q *Queue) readSlice(t *Texture, z uint32, timeout time.Duration) (*image.RGBA, error) {
	rowBytes := t.width * 4
	pitch := (rowBytes + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	size := uint64(pitch) * uint64(t.height)

	staging, index, err := q.submitReadback(t, z, pitch, size)
	if err != nil {
		return nil, err
	}
	defer q.device.DestroyBuffer(staging)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := q.wait(ctx, index); err != nil {
		return nil, fmt.Errorf("wgpugfx: readback: %w", err)
	}

	mapping, err := q.device.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("wgpugfx: map readback buffer: %w", err)
	}
	data := unsafe.Slice((*byte)(mapping.Ptr), size)

	img := image.NewRGBA(image.Rect(0, 0, int(t.width), int(t.height)))
	for y := 0; y < int(t.height); y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+int(rowBytes)], data[y*int(pitch):])
	}
	if err := q.device.UnmapBuffer(staging); err != nil {
		return nil, fmt.Errorf("wgpugfx: unmap readback buffer: %w", err)
	}
	return img, nil
}

func (q *Queue) submitReadback(t *Texture, z, pitch uint32, size uint64) (hal.Buffer, uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, 0, ErrContextClosed
	}

	staging, err := q.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "slice-readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("wgpugfx: create readback buffer: %w", err)
	}

	encoder, err := q.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "slice-readback"})
	if err == nil {
		err = encoder.BeginEncoding("slice-readback")
	}
	if err != nil {
		q.device.DestroyBuffer(staging)
		return nil, 0, fmt.Errorf("wgpugfx: encode readback: %w", err)
	}
	if barriers := t.transition(gputypes.TextureUsageCopySrc); len(barriers) > 0 {
		encoder.TransitionTextures(barriers)
	}
	encoder.CopyTextureToBuffer(t.raw, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{BytesPerRow: pitch, RowsPerImage: t.height},
		TextureBase: hal.ImageCopyTexture{
			Texture: t.raw,
			Origin:  hal.Origin3D{Z: z},
			Aspect:  gputypes.TextureAspectAll,
		},
		Size: hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	}})
	buf, err := encoder.EndEncoding()
	if err != nil {
		q.device.DestroyBuffer(staging)
		return nil, 0, fmt.Errorf("wgpugfx: end readback encoding: %w", err)
	}

	index, err := q.submitBufferLocked(buf)
	if err != nil {
		q.device.DestroyBuffer(staging)
		return nil, 0, err
	}
	return staging, index, nil
}

// close refuses further work and waits for the device to go idle.
func (q *Queue) close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	err := q.device.WaitIdle()
	for _, p := range q.pending {
		q.device.FreeCommandBuffer(p.buf)
	}
	q.pending = nil
	return err
}

var (
	_ ports.Queue          = (*Queue)(nil)
	_ ports.CommandEncoder = (*CommandEncoder)(nil)
)
