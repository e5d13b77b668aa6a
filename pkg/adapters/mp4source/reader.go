// Package mp4source extracts compressed access units from MP4 files in the
// Annex B form hardware decoders accept.
package mp4source

import (
	"errors"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/texdecode/pkg/adapters/codecdetect"
	"github.com/user/texdecode/pkg/ports"
)

// ErrNoSamples is returned when the video track carries no sample table.
var ErrNoSamples = errors.New("mp4source: no samples found")

// AccessUnit is one compressed picture.
type AccessUnit struct {
	Data        []byte
	TimestampMs int
	DurationMs  int
	IsKeyframe  bool
}

// Track describes the video track of a file.
type Track struct {
	Codec      ports.CodecType
	Size       ports.VideoSize
	Timescale  uint32
	Fragmented bool

	// ParameterSets holds the Annex B SPS/PPS (and VPS for HEVC) from the
	// sample entry. They are prepended to every keyframe.
	ParameterSets []byte
}

// Open reads every access unit of the MP4 at path through fs.
func Open(fs ports.FileSystem, path string) (*Track, []AccessUnit, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Describe reads the video track header without reading sample data.
func Describe(reader io.ReadSeeker) (*Track, error) {
	mp4File, err := mp4.DecodeFile(reader)
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}
	track, _, err := describe(mp4File)
	return track, err
}

// Read describes the video track and extracts its access units in decode order.
func Read(reader io.ReadSeeker) (*Track, []AccessUnit, error) {
	mp4File, err := mp4.DecodeFile(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("decode mp4: %w", err)
	}

	track, trak, err := describe(mp4File)
	if err != nil {
		return nil, nil, err
	}

	var units []AccessUnit
	if track.Fragmented {
		units, err = readFragmented(mp4File, trak, track)
	} else {
		units, err = readProgressive(trak, track, reader)
	}
	if err != nil {
		return nil, nil, err
	}
	return track, units, nil
}

func describe(mp4File *mp4.File) (*Track, *mp4.TrakBox, error) {
	trak := codecdetect.VideoTrack(mp4File)
	if trak == nil {
		return nil, nil, codecdetect.ErrNoVideoTrack
	}
	entry := codecdetect.SampleEntry(trak)
	if entry == nil {
		return nil, nil, fmt.Errorf("%w: no sample entry", codecdetect.ErrUnsupportedCodec)
	}
	codec, err := codecdetect.FromSampleEntry(entry)
	if err != nil {
		return nil, nil, err
	}

	track := &Track{
		Codec:      codec,
		Size:       ports.VideoSize{Width: uint32(entry.Width), Height: uint32(entry.Height)},
		Timescale:  1000,
		Fragmented: mp4File.IsFragmented(),
	}
	if trak.Mdia.Mdhd != nil && trak.Mdia.Mdhd.Timescale > 0 {
		track.Timescale = trak.Mdia.Mdhd.Timescale
	}
	track.ParameterSets = parameterSets(entry)
	return track, trak, nil
}

// parameterSets returns the decoder configuration NAL units in Annex B form.
func parameterSets(entry *mp4.VisualSampleEntryBox) []byte {
	var out []byte
	switch {
	case entry.AvcC != nil:
		for _, sps := range entry.AvcC.SPSnalus {
			out = appendNALU(out, sps)
		}
		for _, pps := range entry.AvcC.PPSnalus {
			out = appendNALU(out, pps)
		}
	case entry.HvcC != nil:
		// Arrays are stored VPS, SPS, PPS.
		for _, arr := range entry.HvcC.NaluArrays {
			for _, nalu := range arr.Nalus {
				out = appendNALU(out, nalu)
			}
		}
	}
	return out
}

func appendNALU(dst, nalu []byte) []byte {
	dst = append(dst, 0, 0, 0, 1)
	return append(dst, nalu...)
}

func (t *Track) unit(sample []byte, decodeTime uint64, dur uint32, keyframe bool) AccessUnit {
	annexB := avccToAnnexB(sample)

	data := annexB
	if keyframe && len(t.ParameterSets) > 0 {
		data = make([]byte, len(t.ParameterSets)+len(annexB))
		copy(data, t.ParameterSets)
		copy(data[len(t.ParameterSets):], annexB)
	}

	return AccessUnit{
		Data:        data,
		TimestampMs: int(decodeTime * 1000 / uint64(t.Timescale)),
		DurationMs:  int(uint64(dur) * 1000 / uint64(t.Timescale)),
		IsKeyframe:  keyframe,
	}
}

func readProgressive(trak *mp4.TrakBox, track *Track, reader io.ReadSeeker) ([]AccessUnit, error) {
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz == nil {
		return nil, ErrNoSamples
	}
	sampleCount := stbl.Stsz.SampleNumber

	// Build sync sample set (keyframes)
	syncSamples := make(map[uint32]bool)
	if stbl.Stss != nil {
		for _, sampleNr := range stbl.Stss.SampleNumber {
			syncSamples[sampleNr] = true
		}
	}

	units := make([]AccessUnit, 0, sampleCount)
	for sampleNr := uint32(1); sampleNr <= sampleCount; sampleNr++ {
		sample, err := sampleData(stbl, reader, sampleNr)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", sampleNr, err)
		}

		var decodeTime uint64
		var dur uint32
		if stbl.Stts != nil {
			decodeTime, dur = stbl.Stts.GetDecodeTime(sampleNr)
		}
		keyframe := syncSamples[sampleNr] || len(syncSamples) == 0

		units = append(units, track.unit(sample, decodeTime, dur, keyframe))
	}
	return units, nil
}

func readFragmented(mp4File *mp4.File, trak *mp4.TrakBox, track *Track) ([]AccessUnit, error) {
	trackID := trak.Tkhd.TrackID

	var trex *mp4.TrexBox
	if mp4File.Init.Moov.Mvex != nil {
		for _, t := range mp4File.Init.Moov.Mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
				break
			}
		}
	}

	var units []AccessUnit
	for _, seg := range mp4File.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			for _, traf := range frag.Moof.Trafs {
				if traf.Tfhd.TrackID != trackID {
					continue
				}

				samples, err := frag.GetFullSamples(trex)
				if err != nil {
					return nil, fmt.Errorf("get samples: %w", err)
				}
				for i, sample := range samples {
					// The first sample of a fragment always starts a GOP.
					keyframe := sample.Flags == mp4.SyncSampleFlags || (len(units) == 0 && i == 0)
					units = append(units, track.unit(sample.Data, sample.DecodeTime, sample.Dur, keyframe))
				}
			}
		}
	}
	if len(units) == 0 {
		return nil, ErrNoSamples
	}
	return units, nil
}

// sampleData reads one sample of a progressive file.
func sampleData(stbl *mp4.StblBox, reader io.ReadSeeker, sampleNr uint32) ([]byte, error) {
	if stbl.Stsc == nil || stbl.Stsz == nil {
		return nil, fmt.Errorf("missing stsc or stsz box")
	}

	chunkNr, firstSampleInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(int(sampleNr))
	if err != nil {
		return nil, fmt.Errorf("get chunk nr: %w", err)
	}

	var chunkOffset uint64
	switch {
	case stbl.Stco != nil:
		chunkOffset, err = stbl.Stco.GetOffset(chunkNr)
		if err != nil {
			return nil, fmt.Errorf("get chunk offset: %w", err)
		}
	case stbl.Co64 != nil:
		if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
			return nil, fmt.Errorf("chunk nr out of range")
		}
		chunkOffset = stbl.Co64.ChunkOffset[chunkNr-1]
	default:
		return nil, fmt.Errorf("no stco or co64 box")
	}

	offset := chunkOffset
	for s := uint32(firstSampleInChunk); s < sampleNr; s++ {
		offset += uint64(stbl.Stsz.GetSampleSize(int(s)))
	}
	size := stbl.Stsz.GetSampleSize(int(sampleNr))

	if _, err := reader.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to sample: %w", err)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, fmt.Errorf("read sample: %w", err)
	}
	return data, nil
}

// avccToAnnexB converts 4-byte length-prefixed NAL units to start-code form.
// A truncated trailing unit is dropped.
func avccToAnnexB(data []byte) []byte {
	result := make([]byte, 0, len(data))
	offset := 0

	for offset+4 <= len(data) {
		naluLen := int(data[offset])<<24 | int(data[offset+1])<<16 |
			int(data[offset+2])<<8 | int(data[offset+3])
		offset += 4

		if naluLen < 0 || offset+naluLen > len(data) {
			break
		}

		result = appendNALU(result, data[offset:offset+naluLen])
		offset += naluLen
	}

	return result
}
