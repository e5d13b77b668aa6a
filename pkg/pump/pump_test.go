package pump

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/user/texdecode/pkg/adapters/simcodec"
	"github.com/user/texdecode/pkg/adapters/softgpu"
	"github.com/user/texdecode/pkg/decoder"
	"github.com/user/texdecode/pkg/mocks"
	"github.com/user/texdecode/pkg/ports"
)

func units(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte(fmt.Sprintf("unit-%d", i))
	}
	return out
}

func newSession(t *testing.T, opts simcodec.Options, size ports.VideoSize) *decoder.Session {
	t.Helper()
	gfx := softgpu.New()
	t.Cleanup(gfx.Close)

	s, err := decoder.New(gfx, simcodec.New(opts), ports.CodecH264, size, nil)
	if err != nil {
		t.Fatalf("decoder.New failed: %v", err)
	}
	t.Cleanup(s.Destroy)
	return s
}

func TestPump_DecodesEverything(t *testing.T) {
	size := ports.VideoSize{Width: 16, Height: 8}
	s := newSession(t, simcodec.Options{Reorder: true, InputBuffers: 2}, size)
	dst := softgpu.NewTexture("ring", 16, 8, 3)
	sink := mocks.NewFrameSink(true)

	opts := DefaultOptions()
	opts.Sink = sink
	opts.FirstID = 1000
	in := units(12)

	stats, err := New(s, dst, opts).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Pushed != 12 || stats.Pulled != 12 || stats.Missing != 0 || stats.Saved != 12 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Reordered == 0 {
		t.Error("expected reordering to be counted")
	}

	for i, u := range in {
		id := uint64(1000 + i)
		img, ok := sink.Frames[id]
		if !ok {
			t.Errorf("frame %d not saved", id)
			continue
		}
		want := simcodec.FrameColor(u)
		if got := img.(*image.RGBA).RGBAAt(15, 7); got != want {
			t.Errorf("frame %d: expected %v, got %v", id, want, got)
		}
	}
}

func TestPump_SkipsOversizedUnits(t *testing.T) {
	s := newSession(t, simcodec.Options{InputCapacity: 8}, ports.VideoSize{Width: 4, Height: 4})
	dst := softgpu.NewTexture("ring", 4, 4, 2)

	in := [][]byte{[]byte("small"), make([]byte, 9), []byte("tiny")}
	stats, err := New(s, dst, DefaultOptions()).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Skipped != 1 || stats.Pulled != 2 {
		t.Errorf("expected one skipped and two pulled, got %+v", stats)
	}
}

func TestPump_OversizedFailsWhenNotSkipping(t *testing.T) {
	s := newSession(t, simcodec.Options{InputCapacity: 8}, ports.VideoSize{Width: 4, Height: 4})
	dst := softgpu.NewTexture("ring", 4, 4, 2)

	opts := DefaultOptions()
	opts.SkipOversized = false
	_, err := New(s, dst, opts).Run(context.Background(), [][]byte{make([]byte, 9)})
	if !errors.Is(err, decoder.ErrInputTooLarge) {
		t.Errorf("expected ErrInputTooLarge, got %v", err)
	}
}

// fakeDecoder accepts every input and returns scripted identities. With echo
// set, every pushed identity is returned in push order.
type fakeDecoder struct {
	echo    bool
	pushed  []decoder.FrameID
	outputs []decoder.FrameID
	slices  []uint32
	pullErr error
}

func (f *fakeDecoder) PushInput(id decoder.FrameID, data []byte, timeout time.Duration) (bool, error) {
	f.pushed = append(f.pushed, id)
	if f.echo {
		f.outputs = append(f.outputs, id)
	}
	return true, nil
}

func (f *fakeDecoder) PullOutput(dst ports.Texture, slice uint32, timeout time.Duration) (decoder.FrameID, bool, error) {
	if f.pullErr != nil {
		return 0, false, f.pullErr
	}
	if len(f.outputs) == 0 {
		return 0, false, nil
	}
	id := f.outputs[0]
	f.outputs = f.outputs[1:]
	f.slices = append(f.slices, slice)
	return id, true, nil
}

func TestPump_UnknownIdentity(t *testing.T) {
	dec := &fakeDecoder{outputs: []decoder.FrameID{42}}
	dst := &mocks.Texture{W: 4, H: 4, Layers: 2}

	_, err := New(dec, dst, DefaultOptions()).Run(context.Background(), units(1))
	if !errors.Is(err, ErrUnknownFrame) {
		t.Errorf("expected ErrUnknownFrame, got %v", err)
	}
}

func TestPump_RingSlicesFollowPullOrder(t *testing.T) {
	dec := &fakeDecoder{echo: true}
	dst := &mocks.Texture{W: 4, H: 4, Layers: 2}

	var seen []decoder.FrameID
	opts := DefaultOptions()
	opts.OnFrame = func(id decoder.FrameID, slice uint32) { seen = append(seen, id) }

	stats, err := New(dec, dst, opts).Run(context.Background(), units(5))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Pulled != 5 || len(seen) != 5 {
		t.Fatalf("expected 5 frames, got %+v", stats)
	}
	for i, slice := range dec.slices {
		if slice != uint32(i%2) {
			t.Errorf("pull %d used slice %d", i, slice)
		}
	}
	if stats.Saved != 0 {
		t.Error("expected nothing saved without a sink")
	}
}

func TestPump_MissingFramesAfterDrain(t *testing.T) {
	dec := &fakeDecoder{}
	dst := &mocks.Texture{W: 4, H: 4, Layers: 1}

	opts := DefaultOptions()
	opts.DrainTimeout = 20 * time.Millisecond
	log := mocks.NewLogger()
	opts.Logger = log

	stats, err := New(dec, dst, opts).Run(context.Background(), units(3))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Missing != 3 {
		t.Errorf("expected 3 missing, got %d", stats.Missing)
	}
	if len(log.Entries(ports.LevelWarn)) != 1 {
		t.Error("expected a warning about missing frames")
	}
}

func TestPump_PullError(t *testing.T) {
	dec := &fakeDecoder{pullErr: decoder.ErrSurfacePresentation}
	dst := &mocks.Texture{W: 4, H: 4, Layers: 1}

	_, err := New(dec, dst, DefaultOptions()).Run(context.Background(), units(1))
	if !errors.Is(err, decoder.ErrSurfacePresentation) {
		t.Errorf("expected wrapped pull error, got %v", err)
	}
}

func TestPump_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dec := &fakeDecoder{}
	_, err := New(dec, &mocks.Texture{W: 1, H: 1, Layers: 1}, DefaultOptions()).Run(ctx, units(2))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(dec.pushed) != 0 {
		t.Error("expected nothing pushed after cancellation")
	}
}
