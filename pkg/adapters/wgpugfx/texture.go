package wgpugfx

import (
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/user/texdecode/pkg/ports"
)

// Texture is a 2D texture array in device memory.
type Texture struct {
	ctx    *Context
	raw    hal.Texture
	label  string
	width  uint32
	height uint32
	layers uint32

	// usage is the state the last encoded command left the texture in.
	// Guarded by the queue mutex.
	usage gputypes.TextureUsage

	destroyOnce sync.Once
}

func (c *Context) newTexture(label string, width, height, layers uint32) (*Texture, error) {
	if width == 0 || height == 0 || layers == 0 {
		return nil, fmt.Errorf("wgpugfx: invalid texture %dx%dx%d", width, height, layers)
	}
	if limit := gputypes.DefaultLimits(); width > limit.MaxTextureDimension2D ||
		height > limit.MaxTextureDimension2D || layers > limit.MaxTextureArrayLayers {
		return nil, fmt.Errorf("wgpugfx: texture %dx%dx%d exceeds device limits", width, height, layers)
	}

	raw, err := c.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: layers},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        textureFormat,
		Usage:         textureUsage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpugfx: create texture %s: %w", label, err)
	}
	return &Texture{
		ctx:    c,
		raw:    raw,
		label:  label,
		width:  width,
		height: height,
		layers: layers,
	}, nil
}

func (t *Texture) Width() uint32              { return t.width }
func (t *Texture) Height() uint32             { return t.height }
func (t *Texture) DepthOrArrayLayers() uint32 { return t.layers }
func (t *Texture) Label() string              { return t.label }

// ReadSlice copies slice z back to memory. It waits for the copy, so it sees
// every write submitted before it.
func (t *Texture) ReadSlice(z uint32) (*image.RGBA, error) {
	if z >= t.layers {
		return nil, fmt.Errorf("wgpugfx: slice %d of %d", z, t.layers)
	}
	return t.ctx.queue.readSlice(t, z, t.ctx.opts.ReadbackTimeout)
}

// Destroy releases the device memory. The texture must not be in use by
// submitted work.
func (t *Texture) Destroy() {
	t.destroyOnce.Do(func() {
		t.ctx.queue.mu.Lock()
		defer t.ctx.queue.mu.Unlock()
		t.ctx.device.DestroyTexture(t.raw)
	})
}

// transition moves the whole texture to usage and returns the barrier, or nil
// when it is already there. The queue mutex must be held.
func (t *Texture) transition(usage gputypes.TextureUsage) []hal.TextureBarrier {
	if t.usage == usage {
		return nil
	}
	b := hal.TextureBarrier{
		Texture: t.raw,
		Range: hal.TextureRange{
			Aspect:          gputypes.TextureAspectAll,
			MipLevelCount:   1,
			ArrayLayerCount: t.layers,
		},
		Usage: hal.TextureUsageTransition{OldUsage: t.usage, NewUsage: usage},
	}
	t.usage = usage
	return []hal.TextureBarrier{b}
}

var _ ports.Texture = (*Texture)(nil)
