package summarizer

import (
	"testing"
	"time"
)

func TestNewSummary(t *testing.T) {
	before := time.Now()
	summary := NewSummary()
	after := time.Now()

	if summary.GeneratedAt.Before(before) || summary.GeneratedAt.After(after) {
		t.Error("GeneratedAt should be set to current time")
	}
}

func TestBuilder_WithInput(t *testing.T) {
	summary := NewBuilder().
		WithInput(InputInfo{Path: "clip.mp4", Codec: "H264", Width: 1280, Height: 720, Units: 30}).
		Build()

	if summary.Input.Path != "clip.mp4" {
		t.Errorf("expected path 'clip.mp4', got %q", summary.Input.Path)
	}
	if summary.Input.Width != 1280 || summary.Input.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", summary.Input.Width, summary.Input.Height)
	}
	if summary.Input.Units != 30 {
		t.Errorf("expected 30 units, got %d", summary.Input.Units)
	}
}

func TestBuilder_WithSettings(t *testing.T) {
	settings := Settings{
		Platform:      "simulated",
		Layers:        4,
		PushTimeoutMs: 10,
		PullTimeoutMs: 20,
		Options:       []string{"low-latency=1"},
	}

	summary := NewBuilder().WithSettings(settings).Build()

	if summary.Settings.Platform != "simulated" {
		t.Errorf("expected platform 'simulated', got %q", summary.Settings.Platform)
	}
	if summary.Settings.Layers != 4 {
		t.Errorf("expected 4 layers, got %d", summary.Settings.Layers)
	}
	if len(summary.Settings.Options) != 1 {
		t.Errorf("expected 1 option, got %d", len(summary.Settings.Options))
	}
}

func TestBuilder_FullChain(t *testing.T) {
	summary := NewBuilder().
		WithInput(InputInfo{Path: "clip.mp4", Codec: "HEVC"}).
		WithSettings(Settings{Platform: "gstreamer"}).
		WithResult(ResultInfo{Pushed: 10, Pulled: 9, Missing: 1, ElapsedMs: 500}).
		WithOutput(OutputInfo{Dir: "out", Format: "png", Saved: 9}).
		Build()

	if summary.Input.Codec != "HEVC" {
		t.Error("Input.Codec not set correctly")
	}
	if summary.Settings.Platform != "gstreamer" {
		t.Error("Settings.Platform not set correctly")
	}
	if summary.Result.Missing != 1 {
		t.Error("Result.Missing not set correctly")
	}
	if summary.Output.Saved != 9 {
		t.Error("Output.Saved not set correctly")
	}
}

func TestResultInfo_FramesPerSecond(t *testing.T) {
	if fps := (ResultInfo{Pulled: 30, ElapsedMs: 500}).FramesPerSecond(); fps != 60 {
		t.Errorf("expected 60 fps, got %v", fps)
	}
	if fps := (ResultInfo{Pulled: 30}).FramesPerSecond(); fps != 0 {
		t.Errorf("expected 0 fps without elapsed time, got %v", fps)
	}
}
