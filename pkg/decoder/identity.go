package decoder

import "math"

// FrameID is the caller-assigned token correlating a decoded frame with its input.
type FrameID uint64

// MaxFrameID is the largest identity that survives the signed timestamp field.
const MaxFrameID FrameID = math.MaxInt64

// The platform codec has no opaque per-buffer tag, so the identity travels in the
// presentation timestamp. These two functions are the only code aware of that.

func encodeIdentity(id FrameID) int64 {
	return int64(id)
}

func decodeIdentity(presentationTimeUs int64) FrameID {
	return FrameID(uint64(presentationTimeUs))
}
