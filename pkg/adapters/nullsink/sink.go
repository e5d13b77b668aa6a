// Package nullsink provides a no-op frame sink implementation.
package nullsink

import (
	"image"

	"github.com/user/texdecode/pkg/ports"
)

// Sink is a no-op implementation of ports.FrameSink.
// It discards every frame, so the pump skips the texture read-back.
type Sink struct{}

// New creates a new NullSink.
func New() *Sink {
	return &Sink{}
}

// Enabled returns false as this sink discards all output.
func (s *Sink) Enabled() bool {
	return false
}

// SaveFrame does nothing.
func (s *Sink) SaveFrame(id uint64, img image.Image) error {
	return nil
}

var _ ports.FrameSink = (*Sink)(nil)
