// Package main provides the CLI entry point for texdecode.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/texdecode/pkg/adapters/filesink"
	"github.com/user/texdecode/pkg/adapters/ggrenderer"
	"github.com/user/texdecode/pkg/adapters/logger"
	"github.com/user/texdecode/pkg/adapters/mp4source"
	"github.com/user/texdecode/pkg/adapters/nullsink"
	"github.com/user/texdecode/pkg/adapters/osfilesystem"
	"github.com/user/texdecode/pkg/config"
	"github.com/user/texdecode/pkg/orchestrator"
	"github.com/user/texdecode/pkg/ports"
	"github.com/user/texdecode/pkg/summarizer"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "texdecode",
		Usage:   l10n.T("Decode H.264/HEVC video into GPU texture slices"),
		Version: version,
		Description: l10n.T("texdecode feeds compressed video to the platform hardware decoder " +
			"and copies every decoded picture into a slice of a texture array."),
		Commands: []*cli.Command{
			decodeCommand(),
			inspectCommand(),
			versionCommand(),
		},
	}
}

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     l10n.T("Decode an MP4 file into texture slices"),
		ArgsUsage: "<input.mp4>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: l10n.T("YAML configuration file"), Category: l10n.T("Input")},
			&cli.StringFlag{Name: "codec", Usage: l10n.T("Override the detected codec (h264, hevc)"), Category: l10n.T("Input")},
			&cli.IntFlag{Name: "width", Usage: l10n.T("Override the detected video width"), Category: l10n.T("Input")},
			&cli.IntFlag{Name: "height", Usage: l10n.T("Override the detected video height"), Category: l10n.T("Input")},
			&cli.IntFlag{Name: "max-frames", Aliases: []string{"n"}, Usage: l10n.T("Decode at most this many access units (0 = all)"), Category: l10n.T("Input")},

			&cli.StringFlag{Name: "platform", Aliases: []string{"p"}, Usage: l10n.T("Decoder platform (auto, android, gstreamer, simulated)"), Category: l10n.T("Decoder")},
			&cli.StringFlag{Name: "decoder", Usage: l10n.T("GStreamer decoder element (default: first available)"), Category: l10n.T("Decoder")},
			&cli.IntFlag{Name: "layers", Aliases: []string{"l"}, Usage: l10n.T("Number of texture array slices"), Category: l10n.T("Decoder")},
			&cli.IntFlag{Name: "push-timeout", Usage: l10n.T("Input buffer wait in milliseconds"), Category: l10n.T("Decoder")},
			&cli.IntFlag{Name: "pull-timeout", Usage: l10n.T("Output buffer wait in milliseconds"), Category: l10n.T("Decoder")},

			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: l10n.T("Directory for decoded frame images"), Category: l10n.T("Output")},
			&cli.StringFlag{Name: "format", Usage: l10n.T("Frame image format (png, jpeg)"), Category: l10n.T("Output")},
			&cli.BoolFlag{Name: "annotate", Usage: l10n.T("Draw the frame identity on saved images"), Category: l10n.T("Output")},
			&cli.IntFlag{Name: "max-width", Usage: l10n.T("Scale saved images down to this width"), Category: l10n.T("Output")},
			&cli.StringFlag{Name: "summary", Usage: l10n.T("Write a run summary to this path (.md or .yaml)"), Category: l10n.T("Output")},

			&cli.StringFlag{Name: "log-level", Usage: l10n.T("Log level (debug, info, warn, error)"), Category: l10n.T("Logging")},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: l10n.T("Suppress all log output"), Category: l10n.T("Logging")},
		},
		Action: runDecode,
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     l10n.T("Show the codec and size of an MP4 file"),
		ArgsUsage: "<input.mp4>",
		Action:    runInspect,
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: l10n.T("Show version information"),
		Action: func(c *cli.Context) error {
			fmt.Fprintln(c.App.Writer, l10n.F("texdecode version %s", version))
			return nil
		},
	}
}

// loadConfig reads the configuration file, if any, and applies flag overrides.
func loadConfig(c *cli.Context, fs ports.FileSystem) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(fs, path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if c.Args().Len() > 0 {
		cfg.Input = c.Args().First()
	}
	applyFlags(c, &cfg)
	return cfg, nil
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("codec") {
		cfg.Codec = c.String("codec")
	}
	if c.IsSet("width") {
		cfg.Width = c.Int("width")
	}
	if c.IsSet("height") {
		cfg.Height = c.Int("height")
	}
	if c.IsSet("max-frames") {
		cfg.MaxFrames = c.Int("max-frames")
	}
	if c.IsSet("platform") {
		cfg.Platform = c.String("platform")
	}
	if c.IsSet("decoder") {
		cfg.GStreamer.Decoder = c.String("decoder")
	}
	if c.IsSet("layers") {
		cfg.Layers = c.Int("layers")
	}
	if c.IsSet("push-timeout") {
		cfg.PushTimeoutMs = c.Int("push-timeout")
	}
	if c.IsSet("pull-timeout") {
		cfg.PullTimeoutMs = c.Int("pull-timeout")
	}
	if c.IsSet("output") {
		cfg.Output.Dir = c.String("output")
	}
	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.IsSet("annotate") {
		cfg.Output.Annotate = c.Bool("annotate")
	}
	if c.IsSet("max-width") {
		cfg.Output.MaxWidth = c.Int("max-width")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
}

// runDecode executes the decode command.
func runDecode(c *cli.Context) error {
	fs := osfilesystem.New()

	cfg, err := loadConfig(c, fs)
	if err != nil {
		return err
	}
	if cfg.Input == "" {
		return cli.Exit(l10n.T("An input file is required"), 2)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Create logger
	var log ports.Logger
	if c.Bool("quiet") {
		log = logger.NewNoop()
	} else {
		log = logger.NewConsole(ports.ParseLogLevel(cfg.LogLevel))
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Warn(l10n.T("Interrupted, shutting down..."))
			cancel()
		case <-ctx.Done():
		}
	}()

	// Create adapters
	var sink ports.FrameSink = nullsink.New()
	if cfg.Output.Dir != "" {
		format, _ := cfg.EncodeFormat()
		sink = filesink.New(cfg.Output.Dir, fs, ggrenderer.New(), filesink.Options{
			Format:   format,
			Quality:  cfg.Output.Quality,
			Annotate: cfg.Output.Annotate,
			MaxWidth: cfg.Output.MaxWidth,
		})
	}

	platform, err := openPlatform(cfg, log)
	if err != nil {
		return err
	}

	gfx, err := openGraphics(cfg, log)
	if err != nil {
		return err
	}
	defer gfx.Close()

	// Run
	orch := orchestrator.New(platform, gfx, fs, sink, log)
	result, err := orch.Run(ctx, cfg)
	if err != nil {
		return err
	}

	if cfg.Output.Dir != "" {
		log.Info(l10n.F("Frames saved to %s", cfg.Output.Dir))
	}

	if path := c.String("summary"); path != "" {
		markdown := summarizer.NewMarkdownFormatter(
			summarizer.WithTranslator(l10n.T),
			summarizer.WithVersion(version),
		)
		writer := summarizer.NewWriter(summarizer.ForPath(path, markdown), fs)
		if err := writer.Write(path, result.Summary(cfg, cfg.Output.Dir, cfg.Output.Format)); err != nil {
			log.Error(l10n.F("Failed to write summary: %s", err))
			return err
		}
		log.Info(l10n.F("Summary saved to %s", path))
	}
	return nil
}

// runInspect executes the inspect command.
func runInspect(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit(l10n.T("An input file is required"), 2)
	}

	f, err := osfilesystem.New().Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	track, err := mp4source.Describe(f)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintln(w, l10n.F("Codec: %s (%s)", track.Codec, track.Codec.MimeType()))
	fmt.Fprintln(w, l10n.F("Size: %s", track.Size))
	fmt.Fprintln(w, l10n.F("Timescale: %d", track.Timescale))
	fmt.Fprintln(w, l10n.F("Fragmented: %t", track.Fragmented))
	fmt.Fprintln(w, l10n.F("Parameter sets: %d bytes", len(track.ParameterSets)))
	return nil
}
