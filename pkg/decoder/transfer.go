package decoder

import (
	"context"
	"fmt"
	"time"

	"github.com/user/texdecode/pkg/ports"
)

// PullOutput waits up to timeout for a decoded picture, presents it on the
// bridge surface and copies it into slice of dst. It returns the identity the
// picture was pushed with, or ok=false when nothing was ready.
//
// The call returns only after the graphics queue reports the copy complete, so
// the slice may be reused as soon as it returns.
func (s *Session) PullOutput(dst ports.Texture, slice uint32, timeout time.Duration) (id FrameID, ok bool, err error) {
	if err := s.enter(); err != nil {
		return 0, false, err
	}
	defer s.mu.RUnlock()

	if err := s.checkDestination(dst, slice); err != nil {
		return 0, false, err
	}

	var info ports.BufferInfo
	index := s.codec.DequeueOutputBuffer(&info, timeout)
	switch {
	case index == ports.InfoTryAgainLater:
		s.pullRetries.Add(1)
		return 0, false, nil
	case index == ports.InfoOutputFormatChanged, index == ports.InfoOutputBuffersChanged:
		s.formatEvents.Add(1)
		s.log.Debug("Decoder output changed (%d)", index)
		return 0, false, nil
	case index < 0:
		return 0, false, statusError(ErrOutputDequeue, "dequeue output buffer", index)
	}

	// Releasing with render=true presents the picture on the bridge surface.
	if res := s.codec.ReleaseOutputBuffer(index, true); res != 0 {
		return 0, false, statusError(ErrOutputRelease, "release output buffer", res)
	}

	// Should not fail once the surface is configured; treated as a hard error if it does.
	frame, err := s.bridge.Surface().CurrentFrame()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrSurfacePresentation, err)
	}
	defer frame.Release()

	if err := s.copyToSlice(frame.Texture(), dst, slice); err != nil {
		return 0, false, err
	}

	s.pulled.Add(1)
	return decodeIdentity(info.PresentationTimeUs), true, nil
}

func (s *Session) copyToSlice(src, dst ports.Texture, slice uint32) error {
	encoder := s.gfx.CreateCommandEncoder()
	encoder.CopyTextureToTexture(
		ports.ImageCopyTexture{
			Texture:  src,
			MipLevel: 0,
			Origin:   ports.Origin3D{},
			Aspect:   ports.AspectAll,
		},
		ports.ImageCopyTexture{
			Texture:  dst,
			MipLevel: 0,
			Origin:   ports.Origin3D{Z: slice},
			Aspect:   ports.AspectAll,
		},
		ports.Extent3D{
			Width:              s.size.Width,
			Height:             s.size.Height,
			DepthOrArrayLayers: 1,
		},
	)

	queue := s.gfx.Queue()
	queue.Submit(encoder.Finish())

	ctx, cancel := context.WithTimeout(context.Background(), s.completionTimeout)
	defer cancel()
	if err := queue.OnSubmittedWorkDone(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferWait, err)
	}
	return nil
}

func (s *Session) checkDestination(dst ports.Texture, slice uint32) error {
	if dst == nil {
		return fmt.Errorf("%w: nil texture", ErrDestination)
	}
	if slice >= dst.DepthOrArrayLayers() {
		return fmt.Errorf("%w: slice %d of %d", ErrDestination, slice, dst.DepthOrArrayLayers())
	}
	if dst.Width() < s.size.Width || dst.Height() < s.size.Height {
		return fmt.Errorf("%w: %dx%d smaller than %s", ErrDestination, dst.Width(), dst.Height(), s.size)
	}
	return nil
}
