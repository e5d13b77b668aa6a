package decoder

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/user/texdecode/pkg/mocks"
	"github.com/user/texdecode/pkg/ports"
)

var small = ports.VideoSize{Width: 64, Height: 32}

func newMockSession(t *testing.T, platform *mocks.Platform, gfx *mocks.GraphicsContext, opts ...Option) *Session {
	t.Helper()
	s, err := New(gfx, platform, ports.CodecH264, small, nil, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

// oneFrame makes the codec hand out a single decoded frame with the given timestamp.
func oneFrame(codec *mocks.Codec, pts int64) {
	served := false
	codec.DequeueOutputBufferFunc = func(info *ports.BufferInfo, timeout time.Duration) int {
		if served {
			return ports.InfoTryAgainLater
		}
		served = true
		info.PresentationTimeUs = pts
		return 3
	}
}

func TestNew_InvalidSize(t *testing.T) {
	platform := mocks.NewPlatform()
	_, err := New(&mocks.GraphicsContext{}, platform, ports.CodecH264, ports.VideoSize{Width: 0, Height: 720}, nil)
	if !errors.Is(err, ErrSurfaceAllocation) {
		t.Fatalf("expected ErrSurfaceAllocation, got %v", err)
	}
	if !IsSetupError(err) {
		t.Error("expected a setup error")
	}
	if len(platform.CreatedMimes) != 0 {
		t.Error("expected no codec created")
	}
}

func TestNew_OversizedDimensions(t *testing.T) {
	for _, size := range []ports.VideoSize{
		{Width: math.MaxInt32 + 1, Height: 720},
		{Width: 1280, Height: math.MaxUint32},
	} {
		platform := mocks.NewPlatform()
		readerCalled := false
		platform.NewImageReaderFunc = func(width, height uint32, format ports.ImageFormat, usage ports.BufferUsage, maxImages int) (ports.ImageReader, error) {
			readerCalled = true
			return platform.Reader, nil
		}

		_, err := New(&mocks.GraphicsContext{}, platform, ports.CodecH264, size, nil)
		if !errors.Is(err, ErrSurfaceAllocation) {
			t.Errorf("%s: expected ErrSurfaceAllocation, got %v", size, err)
		}
		if readerCalled || len(platform.CreatedMimes) != 0 {
			t.Errorf("%s: expected nothing allocated", size)
		}
	}
}

func TestNew_ReaderFailure(t *testing.T) {
	platform := mocks.NewPlatform()
	platform.NewImageReaderFunc = func(width, height uint32, format ports.ImageFormat, usage ports.BufferUsage, maxImages int) (ports.ImageReader, error) {
		return nil, errors.New("no memory")
	}

	_, err := New(&mocks.GraphicsContext{}, platform, ports.CodecH264, small, nil)
	if !errors.Is(err, ErrSurfaceAllocation) {
		t.Fatalf("expected ErrSurfaceAllocation, got %v", err)
	}
}

func TestNew_ReaderParameters(t *testing.T) {
	platform := mocks.NewPlatform()
	var gotFormat ports.ImageFormat
	var gotUsage ports.BufferUsage
	var gotImages int
	platform.NewImageReaderFunc = func(width, height uint32, format ports.ImageFormat, usage ports.BufferUsage, maxImages int) (ports.ImageReader, error) {
		gotFormat, gotUsage, gotImages = format, usage, maxImages
		return platform.Reader, nil
	}

	s := newMockSession(t, platform, &mocks.GraphicsContext{})
	defer s.Destroy()

	if gotFormat != ports.ImageFormatRGBX8888 || gotUsage != ports.UsageGPUSampledImage || gotImages != 2 {
		t.Errorf("unexpected reader parameters: format=%d usage=%d images=%d", gotFormat, gotUsage, gotImages)
	}
}

func TestNew_WindowFailureClosesReader(t *testing.T) {
	platform := mocks.NewPlatform()
	platform.Reader.WindowFunc = func() (ports.NativeWindow, error) {
		return nil, errors.New("no window")
	}

	_, err := New(&mocks.GraphicsContext{}, platform, ports.CodecH264, small, nil)
	if !errors.Is(err, ErrSurfaceAllocation) {
		t.Fatalf("expected ErrSurfaceAllocation, got %v", err)
	}
	if !platform.Reader.Closed {
		t.Error("expected reader closed")
	}
}

func TestNew_SurfaceFailureClosesReader(t *testing.T) {
	platform := mocks.NewPlatform()
	gfx := &mocks.GraphicsContext{
		CreateSurfaceFunc: func(window ports.NativeWindow) (ports.RenderSurface, error) {
			return nil, errors.New("unsupported window")
		},
	}

	_, err := New(gfx, platform, ports.CodecH264, small, nil)
	if !errors.Is(err, ErrSurfaceAllocation) {
		t.Fatalf("expected ErrSurfaceAllocation, got %v", err)
	}
	if !platform.Reader.Closed {
		t.Error("expected reader closed")
	}
}

func TestNew_CodecCreationFailure(t *testing.T) {
	platform := mocks.NewPlatform()
	platform.CreateDecoderByTypeFunc = func(mime string) (ports.Codec, error) {
		return nil, errors.New("no decoder")
	}
	gfx := &mocks.GraphicsContext{}

	_, err := New(gfx, platform, ports.CodecHEVC, small, nil)
	if !errors.Is(err, ErrCodecCreation) {
		t.Fatalf("expected ErrCodecCreation, got %v", err)
	}
	if !strings.Contains(err.Error(), "video/hevc") {
		t.Errorf("expected mime in error, got %v", err)
	}
	if !platform.Reader.Closed || gfx.SurfacesDestroyed != 1 {
		t.Error("expected bridge released")
	}
}

func TestNew_NilCodec(t *testing.T) {
	platform := mocks.NewPlatform()
	platform.CreateDecoderByTypeFunc = func(mime string) (ports.Codec, error) {
		return nil, nil
	}

	_, err := New(&mocks.GraphicsContext{}, platform, ports.CodecH264, small, nil)
	if !errors.Is(err, ErrCodecCreation) {
		t.Fatalf("expected ErrCodecCreation, got %v", err)
	}
}

func TestNew_StartFailure(t *testing.T) {
	platform := mocks.NewPlatform()
	platform.Codec.StartFunc = func() int { return -10000 }

	_, err := New(&mocks.GraphicsContext{}, platform, ports.CodecH264, small, nil)
	if !errors.Is(err, ErrStart) {
		t.Fatalf("expected ErrStart, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != -10000 || se.Op != "start" {
		t.Errorf("expected start status -10000, got %v", err)
	}
	if platform.Codec.DeleteCount() != 1 {
		t.Errorf("expected codec deleted once, got %d", platform.Codec.DeleteCount())
	}
	if !platform.Format.Deleted || !platform.Reader.Closed {
		t.Error("expected format and reader released")
	}
}

func TestNew_FormatDeleteFailureIsLogged(t *testing.T) {
	platform := mocks.NewPlatform()
	platform.Format.DeleteFunc = func() int { return -1 }
	log := mocks.NewLogger()

	s := newMockSession(t, platform, &mocks.GraphicsContext{}, WithLogger(log))
	defer s.Destroy()

	warns := log.Entries(ports.LevelWarn)
	if len(warns) != 1 || warns[0].Component != "decoder" {
		t.Errorf("expected one decoder warning, got %+v", warns)
	}
}

func TestNew_AppliesOptions(t *testing.T) {
	platform := mocks.NewPlatform()
	var gotWindow ports.NativeWindow
	platform.Codec.ConfigureFunc = func(format ports.MediaFormat, window ports.NativeWindow) int {
		gotWindow = window
		return 0
	}

	opts := ports.DecodeOptions{
		{Name: "operating-rate", Value: ports.Float32(60)},
		{Name: "priority", Value: ports.Int32(0)},
		{Name: "durationUs", Value: ports.Int64(1 << 40)},
		{Name: "vendor.mode", Value: ports.String("low-latency")},
	}
	s, err := New(&mocks.GraphicsContext{}, platform, ports.CodecH264, small, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Destroy()

	values := platform.Format.Values
	if values["operating-rate"] != float32(60) ||
		values["priority"] != int32(0) ||
		values["durationUs"] != int64(1<<40) ||
		values["vendor.mode"] != "low-latency" {
		t.Errorf("options not applied with their types: %v", values)
	}
	if gotWindow == nil || gotWindow.Handle() != 1 {
		t.Errorf("expected codec configured against the reader window, got %v", gotWindow)
	}
}

func TestNew_UnknownCodecTypePanics(t *testing.T) {
	platform := mocks.NewPlatform()
	allocated := false
	platform.NewImageReaderFunc = func(width, height uint32, format ports.ImageFormat, usage ports.BufferUsage, maxImages int) (ports.ImageReader, error) {
		allocated = true
		return platform.Reader, nil
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown codec type")
		}
		if allocated {
			t.Error("expected no allocation before the panic")
		}
	}()
	New(&mocks.GraphicsContext{}, platform, ports.CodecType(42), small, nil)
}

func TestPushInput_CopiesAndTags(t *testing.T) {
	platform := mocks.NewPlatform()
	buf := make([]byte, 16)
	var gotIndex, gotSize int
	var gotPTS int64
	platform.Codec.DequeueInputBufferFunc = func(timeout time.Duration) int { return 2 }
	platform.Codec.InputBufferFunc = func(index int) []byte { return buf }
	platform.Codec.QueueInputBufferFunc = func(index, offset, size int, pts int64, flags uint32) int {
		gotIndex, gotSize, gotPTS = index, size, pts
		return 0
	}
	s := newMockSession(t, platform, &mocks.GraphicsContext{})
	defer s.Destroy()

	ok, err := s.PushInput(77, []byte{0, 0, 0, 1, 0x65}, time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("expected accepted input, got ok=%v err=%v", ok, err)
	}
	if gotIndex != 2 || gotSize != 5 || gotPTS != 77 {
		t.Errorf("expected index 2 size 5 pts 77, got %d %d %d", gotIndex, gotSize, gotPTS)
	}
	if buf[4] != 0x65 {
		t.Error("expected payload copied into input buffer")
	}
}

func TestPushInput_TryAgain(t *testing.T) {
	platform := mocks.NewPlatform()
	s := newMockSession(t, platform, &mocks.GraphicsContext{})
	defer s.Destroy()

	ok, err := s.PushInput(1, []byte{1}, 0)
	if err != nil || ok {
		t.Errorf("expected (false, nil), got (%v, %v)", ok, err)
	}
}

func TestPushInput_DequeueError(t *testing.T) {
	platform := mocks.NewPlatform()
	platform.Codec.DequeueInputBufferFunc = func(timeout time.Duration) int { return -10000 }
	s := newMockSession(t, platform, &mocks.GraphicsContext{})
	defer s.Destroy()

	_, err := s.PushInput(1, []byte{1}, 0)
	if !errors.Is(err, ErrInputDequeue) {
		t.Fatalf("expected ErrInputDequeue, got %v", err)
	}
	if code, _ := StatusCode(err); code != -10000 {
		t.Errorf("expected code -10000, got %d", code)
	}
	if IsSetupError(err) {
		t.Error("operational error reported as setup error")
	}
}

func TestPushInput_QueueError(t *testing.T) {
	platform := mocks.NewPlatform()
	platform.Codec.DequeueInputBufferFunc = func(timeout time.Duration) int { return 0 }
	platform.Codec.QueueInputBufferFunc = func(index, offset, size int, pts int64, flags uint32) int { return -5 }
	s := newMockSession(t, platform, &mocks.GraphicsContext{})
	defer s.Destroy()

	_, err := s.PushInput(1, []byte{1}, 0)
	if !errors.Is(err, ErrInputQueue) {
		t.Fatalf("expected ErrInputQueue, got %v", err)
	}
}

func TestPushInput_TooLargeReturnsBufferEmpty(t *testing.T) {
	platform := mocks.NewPlatform()
	var gotSize = -1
	platform.Codec.DequeueInputBufferFunc = func(timeout time.Duration) int { return 0 }
	platform.Codec.InputBufferFunc = func(index int) []byte { return make([]byte, 4) }
	platform.Codec.QueueInputBufferFunc = func(index, offset, size int, pts int64, flags uint32) int {
		gotSize = size
		return 0
	}
	s := newMockSession(t, platform, &mocks.GraphicsContext{})
	defer s.Destroy()

	_, err := s.PushInput(1, make([]byte, 5), 0)
	if !errors.Is(err, ErrInputTooLarge) {
		t.Fatalf("expected ErrInputTooLarge, got %v", err)
	}
	if gotSize != 0 {
		t.Errorf("expected buffer queued empty, got size %d", gotSize)
	}
	if s.Stats().Pushed != 0 {
		t.Error("oversized input counted as pushed")
	}
}

func TestPullOutput_CopiesIntoSlice(t *testing.T) {
	platform := mocks.NewPlatform()
	var released []bool
	oneFrame(platform.Codec, 9)
	platform.Codec.ReleaseOutputBufferFunc = func(index int, render bool) int {
		if index != 3 {
			t.Errorf("expected release of index 3, got %d", index)
		}
		released = append(released, render)
		return 0
	}
	gfx := &mocks.GraphicsContext{}
	s := newMockSession(t, platform, gfx)
	defer s.Destroy()

	dst := &mocks.Texture{W: 64, H: 32, Layers: 4}
	id, ok, err := s.PullOutput(dst, 2, time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("expected frame, got ok=%v err=%v", ok, err)
	}
	if id != 9 {
		t.Errorf("expected identity 9, got %d", id)
	}
	if len(released) != 1 || !released[0] {
		t.Errorf("expected one rendering release, got %v", released)
	}

	if gfx.CopyCount() != 1 || gfx.Submits != 1 {
		t.Fatalf("expected one copy in one submit, got %d in %d", gfx.CopyCount(), gfx.Submits)
	}
	c := gfx.Copies[0]
	if c.Dst.Texture != dst || c.Dst.Origin != (ports.Origin3D{Z: 2}) || c.Dst.MipLevel != 0 {
		t.Errorf("unexpected destination %+v", c.Dst)
	}
	if c.Src.Origin != (ports.Origin3D{}) || c.Src.Aspect != ports.AspectAll {
		t.Errorf("unexpected source %+v", c.Src)
	}
	if c.Size != (ports.Extent3D{Width: 64, Height: 32, DepthOrArrayLayers: 1}) {
		t.Errorf("unexpected extent %+v", c.Size)
	}
	if gfx.FramesReleased != 1 {
		t.Errorf("expected surface frame released, got %d", gfx.FramesReleased)
	}
}

func TestPullOutput_InformationalCodes(t *testing.T) {
	for _, code := range []int{ports.InfoOutputFormatChanged, ports.InfoOutputBuffersChanged} {
		platform := mocks.NewPlatform()
		platform.Codec.DequeueOutputBufferFunc = func(info *ports.BufferInfo, timeout time.Duration) int {
			return code
		}
		gfx := &mocks.GraphicsContext{}
		s := newMockSession(t, platform, gfx)

		_, ok, err := s.PullOutput(&mocks.Texture{W: 64, H: 32, Layers: 1}, 0, 0)
		if err != nil || ok {
			t.Errorf("code %d: expected no frame, got ok=%v err=%v", code, ok, err)
		}
		if gfx.CopyCount() != 0 {
			t.Errorf("code %d: expected no copy", code)
		}
		s.Destroy()
	}
}

func TestPullOutput_DequeueError(t *testing.T) {
	platform := mocks.NewPlatform()
	platform.Codec.DequeueOutputBufferFunc = func(info *ports.BufferInfo, timeout time.Duration) int {
		return -10000
	}
	s := newMockSession(t, platform, &mocks.GraphicsContext{})
	defer s.Destroy()

	_, _, err := s.PullOutput(&mocks.Texture{W: 64, H: 32, Layers: 1}, 0, 0)
	if !errors.Is(err, ErrOutputDequeue) {
		t.Fatalf("expected ErrOutputDequeue, got %v", err)
	}
}

func TestPullOutput_ReleaseError(t *testing.T) {
	platform := mocks.NewPlatform()
	oneFrame(platform.Codec, 1)
	platform.Codec.ReleaseOutputBufferFunc = func(index int, render bool) int { return -38 }
	gfx := &mocks.GraphicsContext{}
	s := newMockSession(t, platform, gfx)
	defer s.Destroy()

	_, _, err := s.PullOutput(&mocks.Texture{W: 64, H: 32, Layers: 1}, 0, 0)
	if !errors.Is(err, ErrOutputRelease) {
		t.Fatalf("expected ErrOutputRelease, got %v", err)
	}
	if gfx.CopyCount() != 0 {
		t.Error("expected no copy after failed release")
	}
}

func TestPullOutput_PresentationError(t *testing.T) {
	platform := mocks.NewPlatform()
	oneFrame(platform.Codec, 1)
	gfx := &mocks.GraphicsContext{
		CurrentFrameFunc: func() (ports.SurfaceFrame, error) {
			return nil, errors.New("outdated")
		},
	}
	s := newMockSession(t, platform, gfx)
	defer s.Destroy()

	_, _, err := s.PullOutput(&mocks.Texture{W: 64, H: 32, Layers: 1}, 0, 0)
	if !errors.Is(err, ErrSurfacePresentation) {
		t.Fatalf("expected ErrSurfacePresentation, got %v", err)
	}
}

func TestPullOutput_CompletionTimeout(t *testing.T) {
	platform := mocks.NewPlatform()
	oneFrame(platform.Codec, 1)
	gfx := &mocks.GraphicsContext{
		OnSubmittedWorkDoneFunc: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	s := newMockSession(t, platform, gfx, WithCompletionTimeout(10*time.Millisecond))
	defer s.Destroy()

	start := time.Now()
	_, ok, err := s.PullOutput(&mocks.Texture{W: 64, H: 32, Layers: 1}, 0, 0)
	if !errors.Is(err, ErrTransferWait) || ok {
		t.Fatalf("expected ErrTransferWait, got ok=%v err=%v", ok, err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("completion wait not bounded: %v", time.Since(start))
	}
	if gfx.FramesReleased != 1 {
		t.Error("expected surface frame released after failed wait")
	}
}

func TestPullOutput_InvalidDestination(t *testing.T) {
	platform := mocks.NewPlatform()
	dequeued := false
	platform.Codec.DequeueOutputBufferFunc = func(info *ports.BufferInfo, timeout time.Duration) int {
		dequeued = true
		return ports.InfoTryAgainLater
	}
	s := newMockSession(t, platform, &mocks.GraphicsContext{})
	defer s.Destroy()

	tests := []struct {
		name  string
		dst   ports.Texture
		slice uint32
	}{
		{"nil texture", nil, 0},
		{"slice out of range", &mocks.Texture{W: 64, H: 32, Layers: 2}, 2},
		{"too narrow", &mocks.Texture{W: 63, H: 32, Layers: 1}, 0},
		{"too short", &mocks.Texture{W: 64, H: 31, Layers: 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.PullOutput(tt.dst, tt.slice, 0)
			if !errors.Is(err, ErrDestination) {
				t.Errorf("expected ErrDestination, got %v", err)
			}
		})
	}
	if dequeued {
		t.Error("expected validation before touching the codec")
	}
}

func TestDestroy_Order(t *testing.T) {
	platform := mocks.NewPlatform()
	gfx := &mocks.GraphicsContext{}
	var events []string
	platform.Codec.DeleteFunc = func() int {
		events = append(events, "codec")
		return 0
	}
	platform.Reader.CloseFunc = func() error {
		events = append(events, "reader")
		return nil
	}
	s := newMockSession(t, platform, gfx)

	s.Destroy()
	s.Destroy()

	if strings.Join(events, ",") != "codec,reader" {
		t.Errorf("expected codec then reader released once, got %v", events)
	}
	if gfx.SurfacesDestroyed != 1 {
		t.Errorf("expected surface destroyed once, got %d", gfx.SurfacesDestroyed)
	}
}

func TestDestroy_LogsFailures(t *testing.T) {
	platform := mocks.NewPlatform()
	platform.Codec.DeleteFunc = func() int { return -10000 }
	platform.Reader.CloseFunc = func() error { return errors.New("busy") }
	log := mocks.NewLogger()
	s := newMockSession(t, platform, &mocks.GraphicsContext{}, WithLogger(log))

	s.Destroy()

	errs := log.Entries(ports.LevelError)
	if len(errs) != 2 {
		t.Fatalf("expected two logged errors, got %+v", errs)
	}
	if !strings.Contains(errs[0].Message, "-10000") || !strings.Contains(errs[1].Message, "busy") {
		t.Errorf("unexpected messages: %+v", errs)
	}
}
