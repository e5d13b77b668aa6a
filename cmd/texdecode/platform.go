package main

import (
	"errors"
	"fmt"

	"github.com/ideamans/go-l10n"

	"github.com/user/texdecode/pkg/adapters/gstcodec"
	"github.com/user/texdecode/pkg/adapters/mediacodec"
	"github.com/user/texdecode/pkg/adapters/simcodec"
	"github.com/user/texdecode/pkg/adapters/wgpugfx"
	"github.com/user/texdecode/pkg/config"
	"github.com/user/texdecode/pkg/ports"
)

// errNoHardwareDecoder is returned by auto selection when this build has no
// usable hardware platform. The simulated platform is never picked implicitly.
var errNoHardwareDecoder = errors.New("no hardware decoder platform available (use --platform simulated for a synthetic run)")

// openPlatform returns the configured decoder platform. Auto prefers the NDK
// and then GStreamer.
func openPlatform(cfg config.Config, log ports.Logger) (ports.Platform, error) {
	switch cfg.Platform {
	case config.PlatformAndroid:
		p, err := mediacodec.New()
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.PlatformGStreamer:
		p, err := gstcodec.New(gstOptions(cfg, log))
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.PlatformSimulated:
		return simcodec.New(simcodec.Options{}), nil
	}

	if p, err := mediacodec.New(); err == nil {
		return p, nil
	}
	log.Debug(l10n.F("Platform %s is not available, using %s", config.PlatformAndroid, config.PlatformGStreamer))

	p, err := gstcodec.New(gstOptions(cfg, log))
	if err != nil {
		return nil, errors.Join(errNoHardwareDecoder, err)
	}
	return p, nil
}

// openGraphics opens the GPU context. CPU adapters are accepted only for the
// simulated platform.
func openGraphics(cfg config.Config, log ports.Logger) (*wgpugfx.Context, error) {
	gfx, err := wgpugfx.Open(wgpugfx.Options{
		AllowCPU: cfg.Platform == config.PlatformSimulated,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("open graphics device: %w", err)
	}
	return gfx, nil
}

func gstOptions(cfg config.Config, log ports.Logger) gstcodec.Options {
	return gstcodec.Options{
		Decoder:       cfg.GStreamer.Decoder,
		InputBuffers:  cfg.GStreamer.InputBuffers,
		OutputBuffers: cfg.GStreamer.OutputBuffers,
		Logger:        log,
	}
}
