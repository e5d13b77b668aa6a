// Package wgpugfx implements the graphics context on a GPU device opened
// through the gogpu/wgpu hardware abstraction layer. Textures live in device
// memory and copies between them are encoded and submitted on the device
// queue.
package wgpugfx

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/user/texdecode/pkg/adapters/logger"
	"github.com/user/texdecode/pkg/ports"
)

var (
	// ErrNoBackend is returned by Open when no backend is registered.
	ErrNoBackend = errors.New("wgpugfx: no graphics backend registered")

	// ErrNoAdapter is returned when no backend exposes a usable adapter.
	ErrNoAdapter = errors.New("wgpugfx: no suitable graphics adapter")

	// ErrUnsupportedWindow is returned for windows that expose no images.
	ErrUnsupportedWindow = errors.New("wgpugfx: window does not expose images")

	// ErrContextClosed is returned after Close.
	ErrContextClosed = errors.New("wgpugfx: context closed")

	// ErrCopyOutOfBounds is reported by the queue when a copy leaves a texture.
	ErrCopyOutOfBounds = errors.New("wgpugfx: copy out of bounds")
)

const (
	// DefaultAcquireTimeout bounds how long a surface waits for a presented image.
	DefaultAcquireTimeout = 100 * time.Millisecond

	// DefaultReadbackTimeout bounds a ReadSlice round trip.
	DefaultReadbackTimeout = 5 * time.Second
)

// Decoded frames are RGBX; the X byte is read as alpha.
const textureFormat = gputypes.TextureFormatRGBA8Unorm

const textureUsage = gputypes.TextureUsageCopySrc |
	gputypes.TextureUsageCopyDst |
	gputypes.TextureUsageTextureBinding

// hardwareBackends are tried in order by Open.
var hardwareBackends = []gputypes.Backend{
	gputypes.BackendVulkan,
	gputypes.BackendMetal,
	gputypes.BackendDX12,
	gputypes.BackendGL,
}

// Options configures a Context.
type Options struct {
	// AllowCPU accepts CPU adapters, including the software backend, when
	// no GPU adapter is found.
	AllowCPU bool

	AcquireTimeout  time.Duration
	ReadbackTimeout time.Duration

	Logger ports.Logger
}

func (o Options) withDefaults() Options {
	if o.AcquireTimeout <= 0 {
		o.AcquireTimeout = DefaultAcquireTimeout
	}
	if o.ReadbackTimeout <= 0 {
		o.ReadbackTimeout = DefaultReadbackTimeout
	}
	if o.Logger == nil {
		o.Logger = logger.NewNoop()
	}
	return o
}

// Context implements ports.GraphicsContext on one hal device.
type Context struct {
	instance hal.Instance
	adapter  hal.Adapter
	device   hal.Device
	queue    *Queue
	info     gputypes.AdapterInfo
	opts     Options
	log      ports.Logger

	closeOnce sync.Once
}

// Open opens the first usable adapter of the registered hardware backends,
// then the software backend when opts.AllowCPU is set.
func Open(opts Options) (*Context, error) {
	opts = opts.withDefaults()
	log := opts.Logger.WithComponent("graphics")

	variants := hardwareBackends
	if opts.AllowCPU {
		variants = append(variants[:len(variants):len(variants)], gputypes.BackendEmpty)
	}

	errs := []error{ErrNoAdapter}
	registered := false
	for _, variant := range variants {
		backend, ok := hal.GetBackend(variant)
		if !ok {
			continue
		}
		registered = true
		c, err := New(backend, opts)
		if err == nil {
			return c, nil
		}
		log.Debug("Graphics backend %s unavailable (%s)", variant.String(), err.Error())
		errs = append(errs, fmt.Errorf("%s: %w", variant, err))
	}
	if !registered {
		return nil, ErrNoBackend
	}
	return nil, errors.Join(errs...)
}

// New opens a device on the preferred adapter of backend.
func New(backend hal.Backend, opts Options) (*Context, error) {
	opts = opts.withDefaults()

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpugfx: create instance: %w", err)
	}

	selected := selectAdapter(instance.EnumerateAdapters(nil), opts.AllowCPU)
	if selected == nil {
		instance.Destroy()
		return nil, ErrNoAdapter
	}

	dev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		selected.Adapter.Destroy()
		instance.Destroy()
		return nil, fmt.Errorf("wgpugfx: open device: %w", err)
	}

	c := &Context{
		instance: instance,
		adapter:  selected.Adapter,
		device:   dev.Device,
		queue:    newQueue(dev.Device, dev.Queue),
		info:     selected.Info,
		opts:     opts,
		log:      opts.Logger.WithComponent("graphics"),
	}
	c.log.Debug("Using graphics adapter %s (%s)", selected.Info.Name, selected.Info.DeviceType.String())
	return c, nil
}

// selectAdapter prefers discrete over integrated GPUs, then any other non-CPU
// adapter. CPU adapters are taken only when allowed.
func selectAdapter(adapters []hal.ExposedAdapter, allowCPU bool) *hal.ExposedAdapter {
	rank := func(t gputypes.DeviceType) int {
		switch t {
		case gputypes.DeviceTypeDiscreteGPU:
			return 3
		case gputypes.DeviceTypeIntegratedGPU:
			return 2
		case gputypes.DeviceTypeCPU:
			if allowCPU {
				return 0
			}
			return -1
		default:
			return 1
		}
	}

	var selected *hal.ExposedAdapter
	best := -1
	for i := range adapters {
		if r := rank(adapters[i].Info.DeviceType); r > best {
			selected, best = &adapters[i], r
		}
	}
	return selected
}

// AdapterInfo describes the adapter the context runs on.
func (c *Context) AdapterInfo() gputypes.AdapterInfo {
	return c.info
}

// CreateSurface wraps a window that lends its pixels or exposes images. Each
// acquired frame is uploaded once into a texture owned by the surface.
func (c *Context) CreateSurface(window ports.NativeWindow) (ports.RenderSurface, error) {
	pixels, _ := window.(ports.PixelSource)
	images, _ := window.(ports.ImageSource)
	if pixels == nil && images == nil {
		return nil, ErrUnsupportedWindow
	}
	return &Surface{
		ctx:     c,
		pixels:  pixels,
		images:  images,
		timeout: c.opts.AcquireTimeout,
	}, nil
}

// CreateTexture allocates a 2D texture array in device memory.
func (c *Context) CreateTexture(label string, width, height, layers uint32) (ports.Texture, error) {
	t, err := c.newTexture(label, width, height, layers)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateCommandEncoder returns a recorder whose copies are encoded on Submit.
func (c *Context) CreateCommandEncoder() ports.CommandEncoder {
	return &CommandEncoder{}
}

// Queue returns the device queue.
func (c *Context) Queue() ports.Queue {
	return c.queue
}

// Close waits for the device to go idle and releases it.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		if err := c.queue.close(); err != nil {
			c.log.Warn("Error waiting for graphics device (%s)", err.Error())
		}
		c.device.Destroy()
		c.adapter.Destroy()
		c.instance.Destroy()
	})
}

var _ ports.GraphicsContext = (*Context)(nil)
