// Package codecdetect provides utilities for detecting the video codec of an MP4 file.
package codecdetect

import (
	"errors"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/texdecode/pkg/ports"
)

var (
	// ErrNoVideoTrack is returned when the file has no video track.
	ErrNoVideoTrack = errors.New("codecdetect: no video track found")

	// ErrUnsupportedCodec is returned for video tracks the decoder cannot take.
	ErrUnsupportedCodec = errors.New("codecdetect: unsupported video codec")
)

// DetectFromReader detects the video codec from an io.ReadSeeker and rewinds it.
func DetectFromReader(reader io.ReadSeeker) (ports.CodecType, error) {
	mp4File, err := mp4.DecodeFile(reader)
	if err != nil {
		return 0, fmt.Errorf("decode mp4: %w", err)
	}

	// Reset reader position for subsequent reads
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek: %w", err)
	}

	return DetectFromFile(mp4File)
}

// DetectFromFile detects the codec of the first video track of a parsed file.
func DetectFromFile(mp4File *mp4.File) (ports.CodecType, error) {
	trak := VideoTrack(mp4File)
	if trak == nil {
		return 0, ErrNoVideoTrack
	}
	entry := SampleEntry(trak)
	if entry == nil {
		return 0, fmt.Errorf("%w: no sample entry", ErrUnsupportedCodec)
	}
	return FromSampleEntry(entry)
}

// VideoTrack returns the first video track, looking in the init segment of
// fragmented files.
func VideoTrack(mp4File *mp4.File) *mp4.TrakBox {
	moov := mp4File.Moov
	if mp4File.IsFragmented() && mp4File.Init != nil {
		moov = mp4File.Init.Moov
	}
	if moov == nil {
		return nil
	}
	for _, trak := range moov.Traks {
		if trak.Mdia != nil && trak.Mdia.Hdlr != nil && trak.Mdia.Hdlr.HandlerType == "vide" {
			return trak
		}
	}
	return nil
}

// SampleEntry returns the visual sample entry of a track.
func SampleEntry(trak *mp4.TrakBox) *mp4.VisualSampleEntryBox {
	if trak.Mdia == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return nil
	}
	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		if entry, ok := child.(*mp4.VisualSampleEntryBox); ok {
			return entry
		}
	}
	return nil
}

// FromSampleEntry maps a sample entry four-cc to a codec type.
func FromSampleEntry(entry *mp4.VisualSampleEntryBox) (ports.CodecType, error) {
	switch entry.Type() {
	case "avc1", "avc3":
		return ports.CodecH264, nil
	case "hvc1", "hev1":
		return ports.CodecHEVC, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCodec, entry.Type())
	}
}
