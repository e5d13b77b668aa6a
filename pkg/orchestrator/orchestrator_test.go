package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/user/texdecode/pkg/adapters/mp4source"
	"github.com/user/texdecode/pkg/adapters/simcodec"
	"github.com/user/texdecode/pkg/adapters/softgpu"
	"github.com/user/texdecode/pkg/config"
	"github.com/user/texdecode/pkg/mocks"
	"github.com/user/texdecode/pkg/ports"
)

// fakeSource returns n small access units for a 32x16 H.264 track.
func fakeSource(n int, fragmented bool) Source {
	return func(fs ports.FileSystem, path string) (*mp4source.Track, []mp4source.AccessUnit, error) {
		if path != "clip.mp4" {
			return nil, nil, fmt.Errorf("file not found: %s", path)
		}
		track := &mp4source.Track{
			Codec:      ports.CodecH264,
			Size:       ports.VideoSize{Width: 32, Height: 16},
			Timescale:  90000,
			Fragmented: fragmented,
		}
		units := make([]mp4source.AccessUnit, n)
		for i := range units {
			units[i] = mp4source.AccessUnit{
				Data:        []byte(fmt.Sprintf("au-%02d", i)),
				TimestampMs: i * 33,
				IsKeyframe:  i == 0,
			}
		}
		return track, units, nil
	}
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Input = "clip.mp4"
	cfg.Layers = 3
	return cfg
}

func newOrchestrator(t *testing.T, platform *simcodec.Platform, sink ports.FrameSink, log ports.Logger, opts ...Option) *Orchestrator {
	t.Helper()
	gfx := softgpu.New()
	t.Cleanup(gfx.Close)
	return New(platform, gfx, mocks.NewFileSystem(), sink, log, opts...)
}

func TestOrchestrator_Run(t *testing.T) {
	platform := simcodec.New(simcodec.Options{Reorder: true})
	sink := mocks.NewFrameSink(true)

	orch := newOrchestrator(t, platform, sink, mocks.NewLogger(), WithSource(fakeSource(8, false)))

	result, err := orch.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Units != 8 || result.Pump.Pulled != 8 || result.Pump.Missing != 0 {
		t.Errorf("unexpected result %+v", result.Pump)
	}
	if result.Codec != ports.CodecH264 || result.Size != (ports.VideoSize{Width: 32, Height: 16}) {
		t.Errorf("unexpected stream %v %v", result.Codec, result.Size)
	}
	if result.Platform != "simulated" {
		t.Errorf("expected platform 'simulated', got %q", result.Platform)
	}
	if result.Session.Pulled != 8 {
		t.Errorf("expected session to count 8 pulls, got %d", result.Session.Pulled)
	}
	if len(sink.Saved()) != 8 {
		t.Errorf("expected 8 saved frames, got %d", len(sink.Saved()))
	}
	if result.TotalBytes != int64(8*len("au-00")) {
		t.Errorf("unexpected total bytes %d", result.TotalBytes)
	}

	if platform.LiveCodecs() != 0 || platform.LiveReaders() != 0 || platform.LiveFormats() != 0 {
		t.Error("expected the session to be destroyed after the run")
	}
}

func TestOrchestrator_Run_MaxFrames(t *testing.T) {
	platform := simcodec.New(simcodec.Options{})
	orch := newOrchestrator(t, platform, mocks.NewFrameSink(false), mocks.NewLogger(), WithSource(fakeSource(10, false)))

	cfg := testConfig()
	cfg.MaxFrames = 4

	result, err := orch.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Units != 4 || result.Pump.Pulled != 4 {
		t.Errorf("expected 4 frames, got units=%d pulled=%d", result.Units, result.Pump.Pulled)
	}
	if result.Pump.Saved != 0 {
		t.Error("expected nothing saved by a disabled sink")
	}
}

func TestOrchestrator_Run_Overrides(t *testing.T) {
	platform := simcodec.New(simcodec.Options{})
	orch := newOrchestrator(t, platform, mocks.NewFrameSink(false), mocks.NewLogger(), WithSource(fakeSource(2, false)))

	cfg := testConfig()
	cfg.Codec = "hevc"
	cfg.Width = 64
	cfg.Height = 48
	cfg.Options = []config.OptionConfig{{Name: "low-latency", Type: "int32", Value: "1"}}

	result, err := orch.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Codec != ports.CodecHEVC {
		t.Errorf("expected codec override, got %v", result.Codec)
	}
	if result.Size != (ports.VideoSize{Width: 64, Height: 48}) {
		t.Errorf("expected size override, got %v", result.Size)
	}

	format := platform.LastFormat()
	if format == nil {
		t.Fatal("expected a configured format")
	}
	if mime := format.Values[ports.KeyMime]; mime != ports.CodecHEVC.MimeType() {
		t.Errorf("expected hevc mime, got %v", mime)
	}
	if v := format.Values["low-latency"]; v != int32(1) {
		t.Errorf("expected extra option applied, got %v", v)
	}
}

func TestOrchestrator_Run_SourceError(t *testing.T) {
	log := mocks.NewLogger()
	orch := newOrchestrator(t, simcodec.New(simcodec.Options{}), mocks.NewFrameSink(false), log, WithSource(fakeSource(1, false)))

	cfg := testConfig()
	cfg.Input = "missing.mp4"

	if _, err := orch.Run(context.Background(), cfg); err == nil {
		t.Fatal("expected error for missing input")
	}
	if len(log.Entries(ports.LevelError)) != 1 {
		t.Error("expected the failure to be logged")
	}
}

func TestOrchestrator_Run_UnknownSize(t *testing.T) {
	source := func(fs ports.FileSystem, path string) (*mp4source.Track, []mp4source.AccessUnit, error) {
		return &mp4source.Track{Codec: ports.CodecH264}, nil, nil
	}
	platform := simcodec.New(simcodec.Options{})
	orch := newOrchestrator(t, platform, mocks.NewFrameSink(false), mocks.NewLogger(), WithSource(source))

	if _, err := orch.Run(context.Background(), testConfig()); !errors.Is(err, ErrUnknownSize) {
		t.Errorf("expected ErrUnknownSize, got %v", err)
	}
	if len(platform.Codecs()) != 0 {
		t.Error("expected no codec created")
	}
}

func TestOrchestrator_Run_DecoderSetupError(t *testing.T) {
	platform := simcodec.New(simcodec.Options{SupportedMimes: []string{"video/avc"}})
	orch := newOrchestrator(t, platform, mocks.NewFrameSink(false), mocks.NewLogger(), WithSource(fakeSource(1, false)))

	cfg := testConfig()
	cfg.Codec = "hevc"

	if _, err := orch.Run(context.Background(), cfg); err == nil || !strings.Contains(err.Error(), "start decoder") {
		t.Errorf("expected start decoder error, got %v", err)
	}
}

func TestOrchestrator_Run_Cancelled(t *testing.T) {
	platform := simcodec.New(simcodec.Options{})
	orch := newOrchestrator(t, platform, mocks.NewFrameSink(false), mocks.NewLogger(), WithSource(fakeSource(3, false)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := orch.Run(ctx, testConfig()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if platform.LiveCodecs() != 0 {
		t.Error("expected codec released after cancellation")
	}
}

func TestOrchestrator_TextureAllocator(t *testing.T) {
	var gotLayers uint32
	alloc := func(width, height, layers uint32) (ports.Texture, error) {
		gotLayers = layers
		return softgpu.NewTexture("test", width, height, layers), nil
	}
	orch := newOrchestrator(t, simcodec.New(simcodec.Options{}), mocks.NewFrameSink(false), mocks.NewLogger(),
		WithSource(fakeSource(1, false)), WithTextureAllocator(alloc))

	if _, err := orch.Run(context.Background(), testConfig()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if gotLayers != 3 {
		t.Errorf("expected 3 layers, got %d", gotLayers)
	}
}

func TestOrchestrator_TextureAllocationFailure(t *testing.T) {
	platform := simcodec.New(simcodec.Options{})
	alloc := func(width, height, layers uint32) (ports.Texture, error) {
		return nil, errors.New("out of device memory")
	}
	orch := newOrchestrator(t, platform, mocks.NewFrameSink(false), mocks.NewLogger(),
		WithSource(fakeSource(1, false)), WithTextureAllocator(alloc))

	_, err := orch.Run(context.Background(), testConfig())
	if err == nil || !strings.Contains(err.Error(), "allocate textures") {
		t.Fatalf("expected allocate textures error, got %v", err)
	}
	if platform.LiveCodecs() != 0 {
		t.Error("expected codec released after allocation failure")
	}
}

func TestRunResult_Summary(t *testing.T) {
	orch := newOrchestrator(t, simcodec.New(simcodec.Options{}), mocks.NewFrameSink(true), mocks.NewLogger(),
		WithSource(fakeSource(5, true)))

	cfg := testConfig()
	cfg.Options = []config.OptionConfig{{Name: "priority", Type: "int32", Value: "0"}}

	result, err := orch.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	summary := result.Summary(cfg, "out", "png")
	if summary.RunID == "" || summary.RunID != result.RunID {
		t.Errorf("expected run ID %q in summary, got %q", result.RunID, summary.RunID)
	}
	if summary.Input.Codec != "h264" || summary.Input.Width != 32 || !summary.Input.Fragmented {
		t.Errorf("unexpected input info %+v", summary.Input)
	}
	if summary.Settings.Platform != "simulated" || summary.Settings.Layers != 3 {
		t.Errorf("unexpected settings %+v", summary.Settings)
	}
	if len(summary.Settings.Options) != 1 || summary.Settings.Options[0] != "priority=0" {
		t.Errorf("unexpected options %v", summary.Settings.Options)
	}
	if summary.Result.Pulled != 5 || summary.Output.Saved != 5 {
		t.Errorf("unexpected counters %+v %+v", summary.Result, summary.Output)
	}

	if empty := result.Summary(cfg, "", ""); empty.Output.Dir != "" {
		t.Error("expected no output section without a directory")
	}
}
