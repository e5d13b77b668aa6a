// Package decoder drives a platform hardware video decoder and copies its
// output into caller-owned GPU texture slices.
//
// A Session is created configured and started. The caller then polls it:
// PushInput submits compressed access units tagged with a FrameID and
// PullOutput copies the next decoded picture into a texture slice and returns
// the FrameID it was submitted with. Neither call blocks longer than the
// timeout it is given. No goroutines are started.
//
// Destroy may be called from any goroutine. It waits for PushInput and
// PullOutput calls in flight to return before it releases the codec.
package decoder

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/texdecode/pkg/adapters/logger"
	"github.com/user/texdecode/pkg/ports"
)

// DefaultCompletionTimeout bounds the wait for a submitted texture copy.
const DefaultCompletionTimeout = time.Second

type state int

const (
	stateUnconfigured state = iota
	stateStarted
	stateDestroyed
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. The default discards everything.
func WithLogger(log ports.Logger) Option {
	return func(s *Session) {
		s.log = log.WithComponent("decoder")
	}
}

// WithCompletionTimeout bounds the queue completion wait in PullOutput.
func WithCompletionTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.completionTimeout = d
		}
	}
}

// Stats are cumulative session counters.
type Stats struct {
	Pushed       uint64
	PushRetries  uint64
	Pulled       uint64
	PullRetries  uint64
	FormatEvents uint64
}

// Session owns one started hardware codec and the surface it renders into.
type Session struct {
	gfx       ports.GraphicsContext
	codec     ports.Codec
	bridge    *bridge
	size      ports.VideoSize
	codecType ports.CodecType

	log               ports.Logger
	completionTimeout time.Duration

	// mu is held for reading across PushInput and PullOutput and for writing
	// by Destroy.
	mu    sync.RWMutex
	state state

	pushed       atomic.Uint64
	pushRetries  atomic.Uint64
	pulled       atomic.Uint64
	pullRetries  atomic.Uint64
	formatEvents atomic.Uint64
}

// New builds the surface bridge, creates and configures the codec for
// codecType at size, merges opts into its configuration and starts it.
func New(
	gfx ports.GraphicsContext,
	platform ports.Platform,
	codecType ports.CodecType,
	size ports.VideoSize,
	opts ports.DecodeOptions,
	sessOpts ...Option,
) (*Session, error) {
	s := &Session{
		gfx:               gfx,
		size:              size,
		codecType:         codecType,
		log:               logger.NewNoop(),
		completionTimeout: DefaultCompletionTimeout,
		state:             stateUnconfigured,
	}
	for _, opt := range sessOpts {
		opt(s)
	}

	// Resolved first: an unknown codec type panics before anything is allocated.
	mime := codecType.MimeType()

	b, err := newBridge(platform, gfx, size, s.log)
	if err != nil {
		return nil, err
	}

	codec, err := platform.CreateDecoderByType(mime)
	if err != nil {
		b.close()
		return nil, fmt.Errorf("%w: %s: %v", ErrCodecCreation, mime, err)
	}
	if codec == nil {
		b.close()
		return nil, fmt.Errorf("%w: %s", ErrCodecCreation, mime)
	}

	if err := configure(codec, platform.NewMediaFormat(), mime, size, opts, b.Window(), s.log); err != nil {
		if res := codec.Delete(); res != 0 {
			s.log.Error("Error deleting codec (%d)", res)
		}
		b.close()
		return nil, err
	}

	s.codec = codec
	s.bridge = b
	s.state = stateStarted

	s.log.Debug("Decoder started: %s %s on %s", codecType.String(), size.String(), platform.Name())
	return s, nil
}

func configure(
	codec ports.Codec,
	format ports.MediaFormat,
	mime string,
	size ports.VideoSize,
	opts ports.DecodeOptions,
	window ports.NativeWindow,
	log ports.Logger,
) error {
	format.SetString(ports.KeyMime, mime)
	format.SetInt32(ports.KeyWidth, int32(size.Width))
	format.SetInt32(ports.KeyHeight, int32(size.Height))
	applyOptions(format, opts)

	if res := codec.Configure(format, window); res != 0 {
		deleteFormat(format, log)
		return statusError(ErrConfiguration, "configure", res)
	}

	if res := codec.Start(); res != 0 {
		deleteFormat(format, log)
		return statusError(ErrStart, "start", res)
	}

	// The codec holds its own copy once configured.
	deleteFormat(format, log)
	return nil
}

func deleteFormat(format ports.MediaFormat, log ports.Logger) {
	if res := format.Delete(); res != 0 {
		log.Warn("Error deleting format (%d)", res)
	}
}

func applyOptions(format ports.MediaFormat, opts ports.DecodeOptions) {
	for _, opt := range opts {
		switch v := opt.Value.(type) {
		case ports.Float32:
			format.SetFloat(opt.Name, float32(v))
		case ports.Int32:
			format.SetInt32(opt.Name, int32(v))
		case ports.Int64:
			format.SetInt64(opt.Name, int64(v))
		case ports.String:
			format.SetString(opt.Name, string(v))
		default:
			panic(fmt.Sprintf("decoder: option %q has unsupported value type %T", opt.Name, opt.Value))
		}
	}
}

// PushInput copies data into a free codec input buffer tagged with id.
// It returns false without error when no buffer frees up within timeout.
func (s *Session) PushInput(id FrameID, data []byte, timeout time.Duration) (bool, error) {
	if err := s.enter(); err != nil {
		return false, err
	}
	defer s.mu.RUnlock()

	if id > MaxFrameID {
		return false, fmt.Errorf("%w: %d", ErrFrameIDRange, id)
	}

	index := s.codec.DequeueInputBuffer(timeout)
	switch {
	case index == ports.InfoTryAgainLater:
		s.pushRetries.Add(1)
		return false, nil
	case index < 0:
		return false, statusError(ErrInputDequeue, "dequeue input buffer", index)
	}

	buf := s.codec.InputBuffer(index)
	if len(data) > len(buf) {
		// Hand the slot back empty so the pool does not shrink.
		if res := s.codec.QueueInputBuffer(index, 0, 0, encodeIdentity(id), 0); res != 0 {
			s.log.Warn("Error returning oversized input buffer %d (%d)", index, res)
		}
		return false, &InputTooLargeError{Size: len(data), Capacity: len(buf)}
	}

	n := copy(buf, data)
	if res := s.codec.QueueInputBuffer(index, 0, n, encodeIdentity(id), 0); res != 0 {
		return false, statusError(ErrInputQueue, "queue input buffer", res)
	}

	s.pushed.Add(1)
	return true, nil
}

// Destroy deletes the codec, then releases the surface bridge and the graphics
// reference. Failures are logged. Calling Destroy more than once is a no-op.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateStarted {
		return
	}
	s.state = stateDestroyed

	if res := s.codec.Delete(); res != 0 {
		s.log.Error("Error deleting codec (%d)", res)
	}
	s.codec = nil

	s.bridge.close()
	s.bridge = nil
	s.gfx = nil

	s.log.Debug("Decoder destroyed")
}

// VideoSize returns the configured decode size.
func (s *Session) VideoSize() ports.VideoSize {
	return s.size
}

// CodecType returns the configured codec family.
func (s *Session) CodecType() ports.CodecType {
	return s.codecType
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Pushed:       s.pushed.Load(),
		PushRetries:  s.pushRetries.Load(),
		Pulled:       s.pulled.Load(),
		PullRetries:  s.pullRetries.Load(),
		FormatEvents: s.formatEvents.Load(),
	}
}

// enter takes the read lock for a started session. The caller releases it.
func (s *Session) enter() error {
	s.mu.RLock()
	if s.state != stateStarted {
		s.mu.RUnlock()
		return ErrSessionClosed
	}
	return nil
}
