package mocks

import (
	"image"
	"sync"

	"github.com/user/texdecode/pkg/ports"
)

// FrameSink is a mock implementation of ports.FrameSink.
type FrameSink struct {
	mu sync.RWMutex

	enabled bool

	Frames map[uint64]image.Image
	Order  []uint64

	SaveFrameFunc func(id uint64, img image.Image) error
}

// NewFrameSink creates a new mock FrameSink.
func NewFrameSink(enabled bool) *FrameSink {
	return &FrameSink{
		enabled: enabled,
		Frames:  make(map[uint64]image.Image),
	}
}

func (m *FrameSink) Enabled() bool {
	return m.enabled
}

func (m *FrameSink) SaveFrame(id uint64, img image.Image) error {
	if m.SaveFrameFunc != nil {
		return m.SaveFrameFunc(id, img)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Frames[id] = img
	m.Order = append(m.Order, id)
	return nil
}

// Saved returns the identities in the order they were saved.
func (m *FrameSink) Saved() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]uint64(nil), m.Order...)
}

var _ ports.FrameSink = (*FrameSink)(nil)
