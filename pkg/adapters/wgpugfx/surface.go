package wgpugfx

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/texdecode/pkg/ports"
)

// Surface implements ports.RenderSurface. Each CurrentFrame uploads the newest
// presented image into a texture the surface owns and reuses.
type Surface struct {
	ctx     *Context
	pixels  ports.PixelSource
	images  ports.ImageSource
	timeout time.Duration

	mu        sync.Mutex
	tex       *Texture
	destroyed bool
}

// CurrentFrame acquires the newest presented image. Windows that lend their
// pixels are uploaded straight from the platform buffer.
func (s *Surface) CurrentFrame() (ports.SurfaceFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, errors.New("wgpugfx: surface destroyed")
	}

	if s.pixels != nil {
		px, release, err := s.pixels.AcquirePixels(s.timeout)
		if err != nil {
			return nil, fmt.Errorf("wgpugfx: acquire frame: %w", err)
		}
		defer release()
		return s.upload(px.Pix, 0, px.Stride, px.Width, px.Height)
	}

	img, release, err := s.images.AcquireLatest(s.timeout)
	if err != nil {
		return nil, fmt.Errorf("wgpugfx: acquire frame: %w", err)
	}
	defer release()
	b := img.Bounds()
	return s.upload(img.Pix, img.PixOffset(b.Min.X, b.Min.Y), img.Stride, b.Dx(), b.Dy())
}

func (s *Surface) upload(pix []byte, offset, stride, width, height int) (ports.SurfaceFrame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("wgpugfx: empty frame %dx%d", width, height)
	}
	if s.tex == nil || s.tex.width != uint32(width) || s.tex.height != uint32(height) {
		if s.tex != nil {
			s.tex.Destroy()
			s.tex = nil
		}
		tex, err := s.ctx.newTexture("surface-frame", uint32(width), uint32(height), 1)
		if err != nil {
			return nil, err
		}
		s.tex = tex
	}
	if err := s.ctx.queue.writeTexture(s.tex, pix, offset, stride, width, height); err != nil {
		return nil, err
	}
	return surfaceFrame{tex: s.tex}, nil
}

// Destroy releases the surface texture.
func (s *Surface) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.destroyed = true
	if s.tex != nil {
		s.tex.Destroy()
		s.tex = nil
	}
}

// surfaceFrame stays valid until the next CurrentFrame on its surface.
type surfaceFrame struct {
	tex *Texture
}

func (f surfaceFrame) Texture() ports.Texture { return f.tex }
func (f surfaceFrame) Release()               {}

var _ ports.RenderSurface = (*Surface)(nil)
