package ports

import (
	"context"
)

// Texture is a GPU texture, possibly an array of slices.
type Texture interface {
	Width() uint32
	Height() uint32
	DepthOrArrayLayers() uint32
}

// TextureAspect selects which aspect of a texture a copy touches.
type TextureAspect int

const (
	AspectAll TextureAspect = iota
	AspectColor
)

// Origin3D is a texel origin; Z addresses an array slice for 2D arrays.
type Origin3D struct {
	X, Y, Z uint32
}

// Extent3D is the size of a copy region.
type Extent3D struct {
	Width              uint32
	Height             uint32
	DepthOrArrayLayers uint32
}

// ImageCopyTexture identifies a texture subresource for a copy.
type ImageCopyTexture struct {
	Texture  Texture
	MipLevel uint32
	Origin   Origin3D
	Aspect   TextureAspect
}

// CommandBuffer is a finished, submittable command list.
type CommandBuffer interface{}

// CommandEncoder records GPU commands.
type CommandEncoder interface {
	CopyTextureToTexture(src, dst ImageCopyTexture, size Extent3D)
	Finish() CommandBuffer
}

// Queue submits command buffers and reports their completion.
type Queue interface {
	Submit(buffers ...CommandBuffer)

	// OnSubmittedWorkDone blocks until everything submitted so far has completed
	// or ctx is done.
	OnSubmittedWorkDone(ctx context.Context) error
}

// SurfaceFrame is the texture of the newest presented image on a surface.
type SurfaceFrame interface {
	Texture() Texture

	// Release hands the frame back to the surface.
	Release()
}

// RenderSurface is a graphics-API surface wrapping a native window.
type RenderSurface interface {
	// CurrentFrame acquires the newest presented frame.
	CurrentFrame() (SurfaceFrame, error)

	// Destroy releases the surface.
	Destroy()
}

// GraphicsContext is the shared rendering context. Sessions only add work to it
// and never assume exclusive use of its queue.
type GraphicsContext interface {
	// CreateSurface derives a render surface from a native window.
	CreateSurface(window NativeWindow) (RenderSurface, error)

	// CreateTexture allocates a width x height 2D texture array with layers
	// slices that copies can read from and write to.
	CreateTexture(label string, width, height, layers uint32) (Texture, error)

	CreateCommandEncoder() CommandEncoder
	Queue() Queue
}
