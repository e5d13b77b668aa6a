package ports

import (
	"image"
)

// FrameSink receives decoded frames read back from texture slices.
// It is used for debug output and the command-line dump mode.
type FrameSink interface {
	// Enabled returns true if the sink stores anything.
	Enabled() bool

	// SaveFrame stores the decoded image for a frame identity.
	SaveFrame(id uint64, img image.Image) error
}
