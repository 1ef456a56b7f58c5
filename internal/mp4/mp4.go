/*
   Copyright Mycophonic.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

//nolint:gosec // Integer conversions are bounded by MP4 atom sizes.
package mp4

import (
	"encoding/binary"
	"fmt"
	"io"

	gomp4 "github.com/abema/go-mp4"
)

// FrameRange holds the byte offset and size of a single encoded FLAC frame
// within the MP4 container.
type FrameRange struct {
	Offset uint64
	Size   uint32
}

// FindFLACTrack walks the MP4 box tree to locate the first track carrying a
// 'fLaC' sample entry. It returns the raw 34-byte STREAMINFO payload from
// the entry's dfLa box and a flat frame table.
func FindFLACTrack(reader io.ReadSeeker) ([]byte, []FrameRange, error) {
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return nil, nil, fmt.Errorf("seeking to start: %w", err)
	}

	traks, err := gomp4.ExtractBox(reader, nil, gomp4.BoxPath{gomp4.BoxTypeMoov(), gomp4.BoxTypeTrak()})
	if err != nil {
		return nil, nil, fmt.Errorf("reading container structure: %w", err)
	}

	for _, trak := range traks {
		stbls, err := gomp4.ExtractBox(reader, trak, gomp4.BoxPath{
			gomp4.BoxTypeMdia(), gomp4.BoxTypeMinf(), gomp4.BoxTypeStbl(),
		})
		if err != nil || len(stbls) == 0 {
			continue
		}

		stbl := stbls[0]

		streamInfo, err := extractStreamInfo(reader, stbl)
		if err != nil {
			continue // not a FLAC track
		}

		frames, err := buildFrameTable(reader, stbl)
		if err != nil {
			return nil, nil, fmt.Errorf("building frame table: %w", err)
		}

		return streamInfo, frames, nil
	}

	return nil, nil, ErrNoFLACTrack
}

const (
	flacFourCC            = "fLaC"
	dfLaFourCC            = "dfLa"
	sampleEntryHeaderSize = 8  // box header: size(4) + type(4)
	sampleEntryBaseSize   = 28 // standard AudioSampleEntry fields
	sampleEntryV1Extra    = 16 // QuickTime version 1 extra fields
	stsdPayloadHeader     = 8  // version(1) + flags(3) + entryCount(4)
	dfLaPayloadHeader     = 4  // version(1) + flags(3)
	metadataBlockHeader   = 4  // last(1 bit) + type(7 bits) + length(24 bits)
	streamInfoSize        = 34
)

// readBoxPayload reads the raw payload bytes of a located box.
func readBoxPayload(reader io.ReadSeeker, box *gomp4.BoxInfo) ([]byte, error) {
	if _, err := reader.Seek(int64(box.Offset+box.HeaderSize), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to box payload: %w", err)
	}

	data := make([]byte, box.Size-box.HeaderSize)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, fmt.Errorf("reading box payload: %w", err)
	}

	return data, nil
}

// extractStreamInfo reads the stsd box from stbl and pulls the STREAMINFO
// payload out of a FLAC sample entry, if the track has one.
func extractStreamInfo(reader io.ReadSeeker, stbl *gomp4.BoxInfo) ([]byte, error) {
	stsds, err := gomp4.ExtractBox(reader, stbl, gomp4.BoxPath{gomp4.BoxTypeStsd()})
	if err != nil || len(stsds) == 0 {
		return nil, ErrNoFLACTrack
	}

	payload, err := readBoxPayload(reader, stsds[0])
	if err != nil {
		return nil, err
	}

	return parseFLACSampleEntry(payload)
}

// parseFLACSampleEntry scans a raw stsd payload for a 'fLaC' sample entry
// and returns the STREAMINFO payload of its dfLa child box. The entry is
// parsed from the raw AudioSampleEntry layout.
func parseFLACSampleEntry(data []byte) ([]byte, error) {
	if len(data) < stsdPayloadHeader {
		return nil, ErrNoFLACTrack
	}

	entryCount := binary.BigEndian.Uint32(data[4:8])
	pos := stsdPayloadHeader

	for n := uint32(0); n < entryCount; n++ {
		if pos+sampleEntryHeaderSize > len(data) {
			break
		}

		entrySize := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		if entrySize < sampleEntryHeaderSize+sampleEntryBaseSize || pos+entrySize > len(data) {
			break
		}

		if string(data[pos+4:pos+8]) != flacFourCC {
			pos += entrySize

			continue
		}

		// Found the FLAC sample entry. Child boxes start after the standard
		// AudioSampleEntry fields; QuickTime version 1 inserts 16 extra bytes.
		// Layout after the 8-byte box header: reserved(6) + dataRefIdx(2) + version(2) + ...
		version := binary.BigEndian.Uint16(data[pos+sampleEntryHeaderSize+8 : pos+sampleEntryHeaderSize+10])

		skip := sampleEntryHeaderSize + sampleEntryBaseSize
		if version == 1 {
			skip += sampleEntryV1Extra
		}

		if pos+skip >= pos+entrySize {
			return nil, ErrInvalidEntry
		}

		return parseDfLa(data[pos+skip : pos+entrySize])
	}

	return nil, ErrNoFLACTrack
}

// parseDfLa scans the child boxes of a FLAC sample entry for the dfLa box
// and returns the STREAMINFO payload of its leading metadata block.
func parseDfLa(data []byte) ([]byte, error) {
	pos := 0

	for pos+sampleEntryHeaderSize <= len(data) {
		boxSize := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		if boxSize < sampleEntryHeaderSize || pos+boxSize > len(data) {
			return nil, ErrInvalidEntry
		}

		if string(data[pos+4:pos+8]) != dfLaFourCC {
			pos += boxSize

			continue
		}

		body := data[pos+sampleEntryHeaderSize : pos+boxSize]
		if len(body) < dfLaPayloadHeader+metadataBlockHeader+streamInfoSize {
			return nil, ErrInvalidDfLa
		}

		// The first metadata block must be STREAMINFO (type 0, 34 bytes).
		header := binary.BigEndian.Uint32(body[dfLaPayloadHeader:])
		blockType := header >> 24 & 0x7F
		blockLen := header & 0xFFFFFF

		if blockType != 0 || blockLen != streamInfoSize {
			return nil, ErrInvalidDfLa
		}

		start := dfLaPayloadHeader + metadataBlockHeader

		return body[start : start+streamInfoSize], nil
	}

	return nil, ErrInvalidEntry
}

// buildFrameTable constructs a flat list of frame offsets and sizes from
// the stco/co64, stsc, and stsz boxes within the given stbl box.
func buildFrameTable(reader io.ReadSeeker, stbl *gomp4.BoxInfo) ([]FrameRange, error) {
	chunkOffsets, err := readChunkOffsets(reader, stbl)
	if err != nil {
		return nil, err
	}

	stscs, err := gomp4.ExtractBoxWithPayload(reader, stbl, gomp4.BoxPath{gomp4.BoxTypeStsc()})
	if err != nil || len(stscs) == 0 {
		return nil, ErrNoStsc
	}

	stsc, ok := stscs[0].Payload.(*gomp4.Stsc)
	if !ok {
		return nil, ErrNoStsc
	}

	stszs, err := gomp4.ExtractBoxWithPayload(reader, stbl, gomp4.BoxPath{gomp4.BoxTypeStsz()})
	if err != nil || len(stszs) == 0 {
		return nil, ErrNoStsz
	}

	stsz, ok := stszs[0].Payload.(*gomp4.Stsz)
	if !ok {
		return nil, ErrNoStsz
	}

	return assembleFrameTable(chunkOffsets, stsc.Entries, stsz.EntrySize, stsz.SampleSize, stsz.SampleCount), nil
}

// readChunkOffsets reads the 32-bit stco box, falling back to 64-bit co64.
func readChunkOffsets(reader io.ReadSeeker, stbl *gomp4.BoxInfo) ([]uint64, error) {
	stcos, err := gomp4.ExtractBoxWithPayload(reader, stbl, gomp4.BoxPath{gomp4.BoxTypeStco()})
	if err == nil && len(stcos) > 0 {
		if stco, ok := stcos[0].Payload.(*gomp4.Stco); ok {
			offsets := make([]uint64, len(stco.ChunkOffset))
			for i, off := range stco.ChunkOffset {
				offsets[i] = uint64(off)
			}

			return offsets, nil
		}
	}

	co64s, err := gomp4.ExtractBoxWithPayload(reader, stbl, gomp4.BoxPath{gomp4.BoxTypeCo64()})
	if err != nil || len(co64s) == 0 {
		return nil, ErrNoChunkOffset
	}

	co64, ok := co64s[0].Payload.(*gomp4.Co64)
	if !ok {
		return nil, ErrNoChunkOffset
	}

	return co64.ChunkOffset, nil
}

// assembleFrameTable flattens the chunk-oriented sample tables into one
// frame range per sample.
func assembleFrameTable(
	chunkOffsets []uint64,
	stscEntries []gomp4.StscEntry,
	entrySizes []uint32,
	constantSize uint32,
	sampleCount uint32,
) []FrameRange {
	frames := make([]FrameRange, 0, sampleCount)
	sampleIdx := 0

	for chunkIdx := range chunkOffsets {
		samplesInChunk := lookupSamplesPerChunk(stscEntries, uint32(chunkIdx+1)) // stsc uses 1-based chunk numbers
		offset := chunkOffsets[chunkIdx]

		for iter := uint32(0); iter < samplesInChunk && sampleIdx < int(sampleCount); iter++ {
			size := constantSize
			if size == 0 {
				size = entrySizes[sampleIdx]
			}

			frames = append(frames, FrameRange{Offset: offset, Size: size})
			offset += uint64(size)
			sampleIdx++
		}
	}

	return frames
}

// lookupSamplesPerChunk finds the samples-per-chunk count for a 1-based
// chunk number from the stsc run-length table.
func lookupSamplesPerChunk(entries []gomp4.StscEntry, chunkNumber uint32) uint32 {
	var samplesPerChunk uint32

	for _, entry := range entries {
		if entry.FirstChunk > chunkNumber {
			break
		}

		samplesPerChunk = entry.SamplesPerChunk
	}

	return samplesPerChunk
}
