package mocks

import (
	"context"
	"sync"

	"github.com/user/texdecode/pkg/ports"
)

// Texture is a mock implementation of ports.Texture.
type Texture struct {
	W, H, Layers uint32
}

func (m *Texture) Width() uint32              { return m.W }
func (m *Texture) Height() uint32             { return m.H }
func (m *Texture) DepthOrArrayLayers() uint32 { return m.Layers }

var _ ports.Texture = (*Texture)(nil)

// CopyCall records one CopyTextureToTexture call.
type CopyCall struct {
	Src, Dst ports.ImageCopyTexture
	Size     ports.Extent3D
}

// GraphicsContext is a mock implementation of ports.GraphicsContext. It
// records copies, submissions and surface lifecycle.
type GraphicsContext struct {
	mu sync.Mutex

	Copies            []CopyCall
	Submits           int
	SurfacesCreated   int
	SurfacesDestroyed int
	FramesReleased    int

	CreateSurfaceFunc       func(window ports.NativeWindow) (ports.RenderSurface, error)
	CreateTextureFunc       func(label string, width, height, layers uint32) (ports.Texture, error)
	CurrentFrameFunc        func() (ports.SurfaceFrame, error)
	OnSubmittedWorkDoneFunc func(ctx context.Context) error
}

func (m *GraphicsContext) CreateSurface(window ports.NativeWindow) (ports.RenderSurface, error) {
	if m.CreateSurfaceFunc != nil {
		return m.CreateSurfaceFunc(window)
	}
	m.mu.Lock()
	m.SurfacesCreated++
	m.mu.Unlock()
	return &RenderSurface{gfx: m}, nil
}

func (m *GraphicsContext) CreateTexture(label string, width, height, layers uint32) (ports.Texture, error) {
	if m.CreateTextureFunc != nil {
		return m.CreateTextureFunc(label, width, height, layers)
	}
	return &Texture{W: width, H: height, Layers: layers}, nil
}

func (m *GraphicsContext) CreateCommandEncoder() ports.CommandEncoder {
	return &CommandEncoder{gfx: m}
}

func (m *GraphicsContext) Queue() ports.Queue {
	return &Queue{gfx: m}
}

// CopyCount returns the number of recorded copies.
func (m *GraphicsContext) CopyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Copies)
}

var _ ports.GraphicsContext = (*GraphicsContext)(nil)

// RenderSurface is the surface handed out by GraphicsContext.
type RenderSurface struct {
	gfx *GraphicsContext
}

func (s *RenderSurface) CurrentFrame() (ports.SurfaceFrame, error) {
	if s.gfx.CurrentFrameFunc != nil {
		return s.gfx.CurrentFrameFunc()
	}
	return &SurfaceFrame{gfx: s.gfx, Tex: &Texture{W: 4096, H: 4096, Layers: 1}}, nil
}

func (s *RenderSurface) Destroy() {
	s.gfx.mu.Lock()
	s.gfx.SurfacesDestroyed++
	s.gfx.mu.Unlock()
}

// SurfaceFrame is a mock implementation of ports.SurfaceFrame.
type SurfaceFrame struct {
	gfx *GraphicsContext
	Tex ports.Texture
}

func (f *SurfaceFrame) Texture() ports.Texture { return f.Tex }

func (f *SurfaceFrame) Release() {
	if f.gfx == nil {
		return
	}
	f.gfx.mu.Lock()
	f.gfx.FramesReleased++
	f.gfx.mu.Unlock()
}

// CommandEncoder records copies into its GraphicsContext on Finish.
type CommandEncoder struct {
	gfx   *GraphicsContext
	calls []CopyCall
}

func (e *CommandEncoder) CopyTextureToTexture(src, dst ports.ImageCopyTexture, size ports.Extent3D) {
	e.calls = append(e.calls, CopyCall{Src: src, Dst: dst, Size: size})
}

func (e *CommandEncoder) Finish() ports.CommandBuffer {
	return e.calls
}

// Queue is a mock implementation of ports.Queue.
type Queue struct {
	gfx *GraphicsContext
}

func (q *Queue) Submit(buffers ...ports.CommandBuffer) {
	q.gfx.mu.Lock()
	defer q.gfx.mu.Unlock()
	q.gfx.Submits++
	for _, b := range buffers {
		if calls, ok := b.([]CopyCall); ok {
			q.gfx.Copies = append(q.gfx.Copies, calls...)
		}
	}
}

func (q *Queue) OnSubmittedWorkDone(ctx context.Context) error {
	if q.gfx.OnSubmittedWorkDoneFunc != nil {
		return q.gfx.OnSubmittedWorkDoneFunc(ctx)
	}
	return nil
}
