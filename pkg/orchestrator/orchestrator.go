// Package orchestrator coordinates a decode run: demux, session setup, the
// pump loop and teardown.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ideamans/go-l10n"

	"github.com/user/texdecode/pkg/adapters/mp4source"
	"github.com/user/texdecode/pkg/config"
	"github.com/user/texdecode/pkg/decoder"
	"github.com/user/texdecode/pkg/ports"
	"github.com/user/texdecode/pkg/pump"
	"github.com/user/texdecode/pkg/summarizer"
)

// ErrUnknownSize is returned when neither the container nor the configuration
// gives the video dimensions.
var ErrUnknownSize = errors.New("orchestrator: video size unknown")

// Source reads the video track of an input file.
type Source func(fs ports.FileSystem, path string) (*mp4source.Track, []mp4source.AccessUnit, error)

// TextureAllocator creates the destination texture array.
type TextureAllocator func(width, height, layers uint32) (ports.Texture, error)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSource replaces the MP4 demuxer.
func WithSource(source Source) Option {
	return func(o *Orchestrator) { o.source = source }
}

// WithTextureAllocator replaces the destination texture allocator.
func WithTextureAllocator(alloc TextureAllocator) Option {
	return func(o *Orchestrator) { o.newTexture = alloc }
}

// Orchestrator runs one input file through a decoder session.
type Orchestrator struct {
	platform   ports.Platform
	gfx        ports.GraphicsContext
	fs         ports.FileSystem
	sink       ports.FrameSink
	logger     ports.Logger
	source     Source
	newTexture TextureAllocator
}

// New creates a new Orchestrator.
func New(
	platform ports.Platform,
	gfx ports.GraphicsContext,
	fs ports.FileSystem,
	sink ports.FrameSink,
	logger ports.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		platform: platform,
		gfx:      gfx,
		fs:       fs,
		sink:     sink,
		logger:   logger,
		source:   mp4source.Open,
		newTexture: func(width, height, layers uint32) (ports.Texture, error) {
			return gfx.CreateTexture("decode-ring", width, height, layers)
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run decodes cfg.Input into a ring of texture slices.
func (o *Orchestrator) Run(ctx context.Context, cfg config.Config) (RunResult, error) {
	runID := uuid.New().String()
	o.logger.Info(l10n.F("Opening %s", cfg.Input))
	o.logger.Debug(l10n.F("Run ID %s", runID))

	// 1. Demux
	track, units, err := o.source(o.fs, cfg.Input)
	if err != nil {
		o.logger.Error(l10n.F("Failed to read input: %s", err))
		return RunResult{}, fmt.Errorf("read input: %w", err)
	}

	codec, size, err := resolveStream(cfg, track)
	if err != nil {
		o.logger.Error(l10n.F("Failed to read input: %s", err))
		return RunResult{}, err
	}

	if cfg.MaxFrames > 0 && len(units) > cfg.MaxFrames {
		units = units[:cfg.MaxFrames]
	}
	data := make([][]byte, len(units))
	var totalBytes int64
	for i, u := range units {
		data[i] = u.Data
		totalBytes += int64(len(u.Data))
	}
	o.logger.Info(l10n.F("Input: %s %s, %d access units", codec, size, len(units)))

	decodeOpts, err := cfg.ToDecodeOptions()
	if err != nil {
		return RunResult{}, err
	}

	// 2. Session
	session, err := decoder.New(o.gfx, o.platform, codec, size, decodeOpts,
		decoder.WithLogger(o.logger),
		decoder.WithCompletionTimeout(cfg.CompletionTimeout()),
	)
	if err != nil {
		o.logger.Error(l10n.F("Failed to start decoder: %s", err))
		return RunResult{}, fmt.Errorf("start decoder: %w", err)
	}
	defer session.Destroy()

	// 3. Pump
	dst, err := o.newTexture(size.Width, size.Height, uint32(cfg.Layers))
	if err != nil {
		o.logger.Error(l10n.F("Failed to allocate textures: %s", err))
		return RunResult{}, fmt.Errorf("allocate textures: %w", err)
	}
	if d, ok := dst.(interface{ Destroy() }); ok {
		defer d.Destroy()
	}
	stats, err := pump.New(session, dst, pump.Options{
		PushTimeout:   cfg.PushTimeout(),
		PullTimeout:   cfg.PullTimeout(),
		DrainTimeout:  cfg.DrainTimeout(),
		SkipOversized: true,
		Sink:          o.sink,
		Logger:        o.logger,
	}).Run(ctx, data)

	result := RunResult{
		RunID:      runID,
		Input:      cfg.Input,
		Platform:   o.platform.Name(),
		Codec:      codec,
		Size:       size,
		Fragmented: track.Fragmented,
		Units:      len(units),
		TotalBytes: totalBytes,
		Layers:     cfg.Layers,
		Options:    decodeOpts,
		Pump:       stats,
		Session:    session.Stats(),
	}
	if err != nil {
		o.logger.Error(l10n.F("Decoding failed: %s", err))
		return result, fmt.Errorf("decode: %w", err)
	}

	o.logger.Info(l10n.T("Decoding completed"))
	return result, nil
}

// resolveStream applies configuration overrides to the detected track.
func resolveStream(cfg config.Config, track *mp4source.Track) (ports.CodecType, ports.VideoSize, error) {
	codec := track.Codec
	if cfg.Codec != "" {
		c, err := ports.ParseCodecType(cfg.Codec)
		if err != nil {
			return 0, ports.VideoSize{}, err
		}
		codec = c
	}

	size := track.Size
	if override := cfg.VideoSize(); override.Valid() {
		size = override
	}
	if !size.Valid() {
		return 0, ports.VideoSize{}, ErrUnknownSize
	}
	return codec, size, nil
}

// RunResult contains the results of a decode run for summary generation.
type RunResult struct {
	// RunID identifies the run in logs and summaries.
	RunID string

	// Input information
	Input      string
	Codec      ports.CodecType
	Size       ports.VideoSize
	Fragmented bool
	Units      int
	TotalBytes int64

	// Decoder information
	Platform string
	Layers   int
	Options  ports.DecodeOptions

	// Counters
	Pump    pump.Stats
	Session decoder.Stats
}

// Summary converts the result for the summarizer. outputDir and format are
// empty when no frames were written.
func (r RunResult) Summary(cfg config.Config, outputDir, format string) *summarizer.Summary {
	options := make([]string, 0, len(r.Options))
	for _, opt := range r.Options {
		options = append(options, fmt.Sprintf("%s=%v", opt.Name, opt.Value))
	}

	b := summarizer.NewBuilder().
		WithRunID(r.RunID).
		WithInput(summarizer.InputInfo{
			Path:       r.Input,
			Codec:      r.Codec.String(),
			Width:      int(r.Size.Width),
			Height:     int(r.Size.Height),
			Fragmented: r.Fragmented,
			Units:      r.Units,
			TotalBytes: r.TotalBytes,
		}).
		WithSettings(summarizer.Settings{
			Platform:      r.Platform,
			Layers:        r.Layers,
			PushTimeoutMs: cfg.PushTimeoutMs,
			PullTimeoutMs: cfg.PullTimeoutMs,
			Options:       options,
		}).
		WithResult(summarizer.ResultInfo{
			Pushed:    r.Pump.Pushed,
			Pulled:    r.Pump.Pulled,
			Skipped:   r.Pump.Skipped,
			Reordered: r.Pump.Reordered,
			Missing:   r.Pump.Missing,
			ElapsedMs: r.Pump.Elapsed.Milliseconds(),
		})
	if outputDir != "" {
		b.WithOutput(summarizer.OutputInfo{Dir: outputDir, Format: format, Saved: r.Pump.Saved})
	}
	return b.Build()
}
