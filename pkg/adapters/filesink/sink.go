// Package filesink writes decoded frames to image files.
package filesink

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"github.com/user/texdecode/pkg/ports"
)

// Options controls how frames are written.
type Options struct {
	// Format is the output encoding. PNG keeps the decoded pixels exact.
	Format ports.EncodeFormat

	// Quality is the JPEG quality (1-100).
	Quality int

	// Annotate draws the frame identity in the top-left corner.
	Annotate bool

	// MaxWidth scales frames wider than this down, keeping the aspect ratio.
	// Zero keeps the decoded size.
	MaxWidth int
}

// DefaultOptions returns lossless, unannotated output.
func DefaultOptions() Options {
	return Options{Format: ports.FormatPNG, Quality: 90}
}

// Sink saves frames under baseDir/frames.
type Sink struct {
	baseDir  string
	fs       ports.FileSystem
	renderer ports.Renderer
	opts     Options
}

// New creates a new FileSink.
func New(baseDir string, fs ports.FileSystem, renderer ports.Renderer, opts Options) *Sink {
	return &Sink{
		baseDir:  baseDir,
		fs:       fs,
		renderer: renderer,
		opts:     opts,
	}
}

// Enabled returns true as this sink saves output.
func (s *Sink) Enabled() bool {
	return true
}

// FramePath returns where the frame with identity id is written.
func (s *Sink) FramePath(id uint64) string {
	ext := "png"
	if s.opts.Format == ports.FormatJPEG {
		ext = "jpg"
	}
	return filepath.Join(s.baseDir, "frames", fmt.Sprintf("frame-%06d.%s", id, ext))
}

// SaveFrame encodes img and writes it to FramePath(id).
func (s *Sink) SaveFrame(id uint64, img image.Image) error {
	if err := s.fs.MkdirAll(filepath.Join(s.baseDir, "frames")); err != nil {
		return err
	}

	out := img
	if s.opts.MaxWidth > 0 && img.Bounds().Dx() > s.opts.MaxWidth {
		b := img.Bounds()
		h := b.Dy() * s.opts.MaxWidth / b.Dx()
		if h < 1 {
			h = 1
		}
		out = s.renderer.ResizeImage(img, s.opts.MaxWidth, h)
	}
	if s.opts.Annotate {
		out = s.annotate(id, out)
	}

	data, err := s.renderer.EncodeImage(out, s.opts.Format, s.opts.Quality)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", id, err)
	}
	return s.fs.WriteFile(s.FramePath(id), data)
}

func (s *Sink) annotate(id uint64, img image.Image) image.Image {
	b := img.Bounds()
	canvas := s.renderer.CreateCanvas(b.Dx(), b.Dy(), color.Black)
	canvas.DrawImage(img, 0, 0)

	style := ports.TextStyle{
		FontSize: 16,
		Color:    color.White,
		Align:    ports.AlignLeft,
	}
	label := fmt.Sprintf("#%d", id)
	w, h := canvas.MeasureText(label, style)

	const pad = 4
	canvas.DrawRect(0, 0, int(w)+2*pad, int(h)+2*pad, color.RGBA{A: 160})
	canvas.DrawText(label, pad, pad+int(h)/2, style)
	return canvas.ToImage()
}

var _ ports.FrameSink = (*Sink)(nil)
