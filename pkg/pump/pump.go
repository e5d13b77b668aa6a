// Package pump drives a decoder session from the caller side: it submits
// access units, pulls decoded frames into a ring of texture slices and checks
// that every identity coming back was submitted.
package pump

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/ideamans/go-l10n"

	"github.com/user/texdecode/pkg/adapters/logger"
	"github.com/user/texdecode/pkg/decoder"
	"github.com/user/texdecode/pkg/ports"
)

// ErrUnknownFrame is returned when the decoder reports an identity that is not
// outstanding.
var ErrUnknownFrame = errors.New("pump: decoder returned an unknown frame identity")

// Decoder is the part of *decoder.Session the pump uses.
type Decoder interface {
	PushInput(id decoder.FrameID, data []byte, timeout time.Duration) (bool, error)
	PullOutput(dst ports.Texture, slice uint32, timeout time.Duration) (decoder.FrameID, bool, error)
}

// SliceReader reads a texture slice back to memory. Textures that implement it
// can feed a frame sink.
type SliceReader interface {
	ReadSlice(z uint32) (*image.RGBA, error)
}

// Options tunes the poll loop.
type Options struct {
	PushTimeout  time.Duration
	PullTimeout  time.Duration
	DrainTimeout time.Duration

	// FirstID is the identity of the first unit; later units count up from it.
	FirstID decoder.FrameID

	// SkipOversized drops units larger than the codec input buffer instead of failing.
	SkipOversized bool

	Sink   ports.FrameSink
	Logger ports.Logger

	// OnFrame is called after each frame lands in its slice.
	OnFrame func(id decoder.FrameID, slice uint32)
}

// DefaultOptions returns short poll timeouts and a two second drain.
func DefaultOptions() Options {
	return Options{
		PushTimeout:   10 * time.Millisecond,
		PullTimeout:   10 * time.Millisecond,
		DrainTimeout:  2 * time.Second,
		SkipOversized: true,
	}
}

// Stats summarises one run.
type Stats struct {
	Units     int
	Pushed    int
	Pulled    int
	Skipped   int
	Reordered int
	Missing   int
	Saved     int
	Elapsed   time.Duration
}

// Pump runs access units through a decoder.
type Pump struct {
	dec    Decoder
	dst    ports.Texture
	layers uint32
	opts   Options
	log    ports.Logger

	pending map[decoder.FrameID]bool
	lastID  decoder.FrameID
	anyOut  bool
	stats   Stats
}

// New creates a pump writing into the slices of dst.
func New(dec Decoder, dst ports.Texture, opts Options) *Pump {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoop()
	}
	return &Pump{
		dec:     dec,
		dst:     dst,
		layers:  dst.DepthOrArrayLayers(),
		opts:    opts,
		log:     log,
		pending: make(map[decoder.FrameID]bool),
	}
}

// Run submits every unit, pulling whenever the input side stalls, then drains
// outstanding frames until DrainTimeout passes without all of them returning.
func (p *Pump) Run(ctx context.Context, units [][]byte) (Stats, error) {
	start := time.Now()
	p.stats = Stats{Units: len(units)}
	p.log.Info(l10n.F("Decoding %d access units", len(units)))

	for i := 0; i < len(units); {
		if err := ctx.Err(); err != nil {
			return p.finish(start), err
		}

		id := p.opts.FirstID + decoder.FrameID(i)
		ok, err := p.dec.PushInput(id, units[i], p.opts.PushTimeout)
		switch {
		case errors.Is(err, decoder.ErrInputTooLarge) && p.opts.SkipOversized:
			p.log.Warn(l10n.F("Skipping access unit %d: %s", id, err))
			p.stats.Skipped++
			i++
			continue
		case err != nil:
			return p.finish(start), fmt.Errorf("push %d: %w", id, err)
		case ok:
			p.pending[id] = true
			p.stats.Pushed++
			i++
		}

		// Input accepted: collect whatever is ready. Input stalled: wait for output.
		timeout := time.Duration(0)
		if !ok {
			timeout = p.opts.PullTimeout
		}
		if _, err := p.pull(timeout); err != nil {
			return p.finish(start), err
		}
	}

	deadline := time.Now().Add(p.opts.DrainTimeout)
	for len(p.pending) > 0 && time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return p.finish(start), err
		}
		if _, err := p.pull(p.opts.PullTimeout); err != nil {
			return p.finish(start), err
		}
	}

	stats := p.finish(start)
	if stats.Missing > 0 {
		p.log.Warn(l10n.F("%d frames were not returned by the decoder", stats.Missing))
	}
	p.log.Info(l10n.F("Decoded %d frames in %d ms", stats.Pulled, stats.Elapsed.Milliseconds()))
	return stats, nil
}

func (p *Pump) pull(timeout time.Duration) (bool, error) {
	// The slice is chosen before the identity is known, so the ring position
	// follows the pull count rather than the identity.
	slice := uint32(uint64(p.stats.Pulled) % uint64(p.layers))

	id, ok, err := p.dec.PullOutput(p.dst, slice, timeout)
	if err != nil {
		return false, fmt.Errorf("pull: %w", err)
	}
	if !ok {
		return false, nil
	}

	if !p.pending[id] {
		p.log.Error(l10n.F("Decoder returned unknown frame identity %d", id))
		return false, fmt.Errorf("%w: %d", ErrUnknownFrame, id)
	}
	delete(p.pending, id)
	p.stats.Pulled++

	if p.anyOut && id < p.lastID {
		p.stats.Reordered++
	}
	p.lastID = id
	p.anyOut = true

	if err := p.save(id, slice); err != nil {
		return false, err
	}
	if p.opts.OnFrame != nil {
		p.opts.OnFrame(id, slice)
	}
	return true, nil
}

func (p *Pump) save(id decoder.FrameID, slice uint32) error {
	if p.opts.Sink == nil || !p.opts.Sink.Enabled() {
		return nil
	}
	reader, ok := p.dst.(SliceReader)
	if !ok {
		return nil
	}
	img, err := reader.ReadSlice(slice)
	if err != nil {
		return fmt.Errorf("read slice %d: %w", slice, err)
	}
	if err := p.opts.Sink.SaveFrame(uint64(id), img); err != nil {
		return fmt.Errorf("save frame %d: %w", id, err)
	}
	p.stats.Saved++
	return nil
}

func (p *Pump) finish(start time.Time) Stats {
	p.stats.Missing = len(p.pending)
	p.stats.Elapsed = time.Since(start)
	return p.stats
}
