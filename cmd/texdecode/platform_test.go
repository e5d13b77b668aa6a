//go:build !android && !gstreamer

package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/user/texdecode/pkg/adapters/gstcodec"
	"github.com/user/texdecode/pkg/adapters/mediacodec"
	"github.com/user/texdecode/pkg/config"
	"github.com/user/texdecode/pkg/mocks"
	"github.com/user/texdecode/pkg/ports"
)

func TestOpenPlatform_Simulated(t *testing.T) {
	cfg := config.Defaults()
	cfg.Platform = config.PlatformSimulated
	log := mocks.NewLogger()

	p, err := openPlatform(cfg, log)
	if err != nil {
		t.Fatalf("openPlatform failed: %v", err)
	}
	if p.Name() != "simulated" {
		t.Errorf("expected simulated platform, got %s", p.Name())
	}
	if len(log.Entries(ports.LevelWarn)) != 0 {
		t.Error("expected no warning for an explicit platform")
	}
}

func TestOpenPlatform_AndroidUnavailable(t *testing.T) {
	cfg := config.Defaults()
	cfg.Platform = config.PlatformAndroid

	_, err := openPlatform(cfg, mocks.NewLogger())
	if !errors.Is(err, mediacodec.ErrPlatformNotSupported) {
		t.Errorf("expected ErrPlatformNotSupported, got %v", err)
	}
}

func TestOpenPlatform_AutoWithoutHardware(t *testing.T) {
	cfg := config.Defaults()

	p, err := openPlatform(cfg, mocks.NewLogger())
	if !errors.Is(err, errNoHardwareDecoder) {
		t.Errorf("expected errNoHardwareDecoder, got %v", err)
	}
	if !errors.Is(err, gstcodec.ErrPlatformNotSupported) {
		t.Errorf("expected the GStreamer cause to be kept, got %v", err)
	}
	if p != nil {
		t.Error("expected no platform")
	}
}

func TestOpenGraphics_SimulatedAcceptsCPUAdapter(t *testing.T) {
	cfg := config.Defaults()
	cfg.Platform = config.PlatformSimulated

	gfx, err := openGraphics(cfg, mocks.NewLogger())
	if err != nil {
		t.Fatalf("openGraphics failed: %v", err)
	}
	defer gfx.Close()

	tex, err := gfx.CreateTexture("ring", 16, 16, 2)
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}
	if tex.DepthOrArrayLayers() != 2 {
		t.Errorf("expected 2 layers, got %d", tex.DepthOrArrayLayers())
	}
}

func TestApp_Version(t *testing.T) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	if err := app.Run([]string{"texdecode", "version"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(out.String(), version) {
		t.Errorf("expected version in output, got %q", out.String())
	}
}

func TestApp_InspectMissingFile(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}

	if err := app.Run([]string{"texdecode", "inspect", "does-not-exist.mp4"}); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestApp_DecodeRejectsInvalidConfig(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}

	err := app.Run([]string{"texdecode", "decode", "--layers", "0", "--quiet", "in.mp4"})
	if err == nil || !strings.Contains(err.Error(), "layers") {
		t.Errorf("expected a layers validation error, got %v", err)
	}
}
