package decoder

import (
	"fmt"
	"math"

	"github.com/user/texdecode/pkg/ports"
)

// bridgeImages is the reader slot count: one frame in flight, one being consumed.
const bridgeImages = 2

// bridge owns the image reader the codec renders into and the render surface
// the graphics context reads it through.
type bridge struct {
	reader  ports.ImageReader
	window  ports.NativeWindow
	surface ports.RenderSurface
	log     ports.Logger
}

func newBridge(platform ports.Platform, gfx ports.GraphicsContext, size ports.VideoSize, log ports.Logger) (*bridge, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("%w: invalid size %s", ErrSurfaceAllocation, size)
	}
	// The codec configuration carries dimensions as int32.
	if size.Width > math.MaxInt32 || size.Height > math.MaxInt32 {
		return nil, fmt.Errorf("%w: size %s exceeds codec range", ErrSurfaceAllocation, size)
	}

	reader, err := platform.NewImageReader(size.Width, size.Height,
		ports.ImageFormatRGBX8888, ports.UsageGPUSampledImage, bridgeImages)
	if err != nil {
		return nil, fmt.Errorf("%w: image reader: %v", ErrSurfaceAllocation, err)
	}

	window, err := reader.Window()
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("%w: window: %v", ErrSurfaceAllocation, err)
	}

	surface, err := gfx.CreateSurface(window)
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("%w: render surface: %v", ErrSurfaceAllocation, err)
	}

	return &bridge{
		reader:  reader,
		window:  window,
		surface: surface,
		log:     log,
	}, nil
}

// Window is handed to the codec as its output surface.
func (b *bridge) Window() ports.NativeWindow {
	return b.window
}

// Surface yields the newest presented frame as a texture.
func (b *bridge) Surface() ports.RenderSurface {
	return b.surface
}

func (b *bridge) close() {
	b.surface.Destroy()
	if err := b.reader.Close(); err != nil {
		b.log.Error("Error closing image reader (%s)", err.Error())
	}
}
