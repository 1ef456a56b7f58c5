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

//nolint:gosec // Field widths are bounded by the frame header wire format.
package flac

import (
	"errors"
	"fmt"
	"io"

	"github.com/mycophonic/saprobe-flac/bitio"
)

// SyncCode is the fixed 14-bit pattern marking the start of every frame
// header, enabling resynchronization after corruption.
const SyncCode = 0x3FFE

// Frame header code tables: {value, code} pairs, searched linearly in both
// directions.
//
//nolint:gochecknoglobals
var (
	blockSizeCodes = [][2]int{
		{192, 1},
		{576, 2},
		{1152, 3},
		{2304, 4},
		{4608, 5},
		{256, 8},
		{512, 9},
		{1024, 10},
		{2048, 11},
		{4096, 12},
		{8192, 13},
		{16384, 14},
		{32768, 15},
	}

	sampleDepthCodes = [][2]int{
		{8, 1},
		{12, 2},
		{16, 4},
		{20, 5},
		{24, 6},
	}

	sampleRateCodes = [][2]int{
		{88200, 1},
		{176400, 2},
		{192000, 3},
		{8000, 4},
		{16000, 5},
		{22050, 6},
		{24000, 7},
		{32000, 8},
		{44100, 9},
		{48000, 10},
		{96000, 11},
	}
)

// searchFirst returns the code for the given value, or -1.
func searchFirst(table [][2]int, key int) int {
	for _, pair := range table {
		if pair[0] == key {
			return pair[1]
		}
	}

	return -1
}

// searchSecond returns the value for the given code, or -1.
func searchSecond(table [][2]int, key int) int {
	for _, pair := range table {
		if pair[1] == key {
			return pair[0]
		}
	}

	return -1
}

// FramePosition locates a frame within the stream: either a frame index
// (fixed block size blocking strategy, 31 bits) or a sample offset (variable
// block size, 36 bits). Exactly one of the two is held; the zero value is
// frame index 0.
type FramePosition struct {
	variable bool
	value    uint64
}

// FrameIndexPosition returns the position of the index-th fixed-size frame.
// The index must fit in 31 bits.
func FrameIndexPosition(index uint32) FramePosition {
	if index>>31 != 0 {
		panic(fmt.Sprintf("flac: frame index %d does not fit in 31 bits", index))
	}

	return FramePosition{value: uint64(index)}
}

// SampleOffsetPosition returns the position of a variable-size frame starting
// at the given sample offset. The offset must fit in 36 bits.
func SampleOffsetPosition(offset uint64) FramePosition {
	if offset>>36 != 0 {
		panic(fmt.Sprintf("flac: sample offset %d does not fit in 36 bits", offset))
	}

	return FramePosition{variable: true, value: offset}
}

// IsVariable reports whether the position uses the variable-block-size
// blocking strategy (sample offset) rather than a fixed frame index.
func (p FramePosition) IsVariable() bool {
	return p.variable
}

// FrameIndex returns the fixed-blocking frame index. ok is false for a
// variable-blocking position.
func (p FramePosition) FrameIndex() (index uint32, ok bool) {
	if p.variable {
		return 0, false
	}

	return uint32(p.value), true
}

// SampleOffset returns the variable-blocking sample offset. ok is false for
// a fixed-blocking position.
func (p FramePosition) SampleOffset() (offset uint64, ok bool) {
	if !p.variable {
		return 0, false
	}

	return p.value, true
}

// FrameInfo holds the fields of one parsed or to-be-written frame header.
type FrameInfo struct {
	// Position of the frame within the stream. Determines the blocking
	// strategy bit on write.
	Position FramePosition

	// NumChannels is in [1, 8], derived from ChannelAssignment.
	NumChannels int

	// ChannelAssignment is the raw 4-bit channel assignment code, in
	// [0, 10]. Codes 8 to 10 are the stereo decorrelation modes.
	ChannelAssignment int

	// BlockSize is the number of samples per channel, in [1, 65536].
	BlockSize int

	// SampleRate is in [1, 655350], or 0 when the header defers to the
	// stream info block.
	SampleRate int

	// SampleDepth is in [1, 32], or 0 when the header defers to the stream
	// info block.
	SampleDepth int

	// FrameSize is the total size in bytes of the frame (header and
	// payload), or 0 until a full frame has been measured. Parsing the
	// header alone leaves it 0.
	FrameSize int64
}

// ReadFrameHeader parses one frame header from the reader, which must be at
// a byte boundary positioned at a frame start. A clean end of stream before
// the first sync byte is reported as io.EOF; any other truncation or
// malformation is an error. The reader's CRC window is reset at entry so the
// trailing CRC-8 can be verified against exactly the header bytes.
func ReadFrameHeader(br *bitio.Reader) (*FrameInfo, error) {
	br.ResetCRCs()

	first, err := br.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}

		return nil, err
	}

	low, err := br.ReadUint(6)
	if err != nil {
		return nil, err
	}

	if uint32(first)<<6|low != SyncCode {
		return nil, fmt.Errorf("%w: sync code expected", ErrFormat)
	}

	if bit, err := br.ReadUint(1); err != nil {
		return nil, err
	} else if bit != 0 {
		return nil, fmt.Errorf("%w: reserved bit set", ErrFormat)
	}

	blockStrategy, err := br.ReadUint(1)
	if err != nil {
		return nil, err
	}

	blockSizeCode, err := br.ReadUint(4)
	if err != nil {
		return nil, err
	}

	sampleRateCode, err := br.ReadUint(4)
	if err != nil {
		return nil, err
	}

	chanAsgn, err := br.ReadUint(4)
	if err != nil {
		return nil, err
	}

	info := &FrameInfo{ChannelAssignment: int(chanAsgn)}

	switch {
	case chanAsgn < 8:
		info.NumChannels = int(chanAsgn) + 1
	case chanAsgn <= 10:
		info.NumChannels = 2
	default:
		return nil, fmt.Errorf("%w: reserved channel assignment %d", ErrFormat, chanAsgn)
	}

	depthCode, err := br.ReadUint(3)
	if err != nil {
		return nil, err
	}

	info.SampleDepth, err = decodeSampleDepth(int(depthCode))
	if err != nil {
		return nil, err
	}

	if bit, err := br.ReadUint(1); err != nil {
		return nil, err
	} else if bit != 0 {
		return nil, fmt.Errorf("%w: reserved bit set", ErrFormat)
	}

	position, err := readUTF8Integer(br)
	if err != nil {
		return nil, err
	}

	if blockStrategy == 0 {
		if position>>31 != 0 {
			return nil, fmt.Errorf("%w: frame index %d too large", ErrFormat, position)
		}

		info.Position = FrameIndexPosition(uint32(position))
	} else {
		info.Position = SampleOffsetPosition(position)
	}

	info.BlockSize, err = decodeBlockSize(int(blockSizeCode), br)
	if err != nil {
		return nil, err
	}

	info.SampleRate, err = decodeSampleRate(int(sampleRateCode), br)
	if err != nil {
		return nil, err
	}

	computed := br.CRC8()

	stored, err := br.ReadUint(8)
	if err != nil {
		return nil, err
	}

	if uint8(stored) != computed {
		return nil, fmt.Errorf("%w: %w: frame header crc-8", ErrFormat, ErrCRCMismatch)
	}

	return info, nil
}

func decodeBlockSize(code int, br *bitio.Reader) (int, error) {
	switch code {
	case 0:
		return 0, fmt.Errorf("%w: reserved block size code", ErrFormat)
	case 6:
		v, err := br.ReadUint(8)
		if err != nil {
			return 0, err
		}

		return int(v) + 1, nil
	case 7:
		v, err := br.ReadUint(16)
		if err != nil {
			return 0, err
		}

		return int(v) + 1, nil
	default:
		return searchSecond(blockSizeCodes, code), nil
	}
}

func decodeSampleRate(code int, br *bitio.Reader) (int, error) {
	switch code {
	case 0:
		// Defer to the stream info block.
		return 0, nil
	case 12:
		v, err := br.ReadUint(8)
		if err != nil {
			return 0, err
		}

		return int(v), nil
	case 13:
		v, err := br.ReadUint(16)
		if err != nil {
			return 0, err
		}

		return int(v), nil
	case 14:
		v, err := br.ReadUint(16)
		if err != nil {
			return 0, err
		}

		return int(v) * 10, nil
	case 15:
		return 0, fmt.Errorf("%w: invalid sample rate code", ErrFormat)
	default:
		return searchSecond(sampleRateCodes, code), nil
	}
}

func decodeSampleDepth(code int) (int, error) {
	if code == 0 {
		// Defer to the stream info block.
		return 0, nil
	}

	depth := searchSecond(sampleDepthCodes, code)
	if depth == -1 {
		return 0, fmt.Errorf("%w: reserved sample depth code %d", ErrFormat, code)
	}

	return depth, nil
}

// WriteHeader serializes the frame header, mirroring ReadFrameHeader
// field-for-field. The blocking strategy bit and the position encoding
// derive from the Position variant. Field values that cannot be represented
// in the wire format panic; they are caller errors, not stream errors.
func (info *FrameInfo) WriteHeader(bw *bitio.Writer) error {
	if info.ChannelAssignment < 0 || info.ChannelAssignment > 10 {
		panic(fmt.Sprintf("flac: channel assignment %d out of range 0 to 10", info.ChannelAssignment))
	}

	if err := bw.ResetCRCs(); err != nil {
		return err
	}

	strategy := int32(0)
	if info.Position.IsVariable() {
		strategy = 1
	}

	blockSizeCode := blockSizeCodeFor(info.BlockSize)
	sampleRateCode := sampleRateCodeFor(info.SampleRate)

	fields := []struct {
		n   int
		val int32
	}{
		{14, SyncCode},
		{1, 0}, // reserved
		{1, strategy},
		{4, int32(blockSizeCode)},
		{4, int32(sampleRateCode)},
		{4, int32(info.ChannelAssignment)},
		{3, int32(sampleDepthCodeFor(info.SampleDepth))},
		{1, 0}, // reserved
	}

	for _, f := range fields {
		if err := bw.WriteInt(f.n, f.val); err != nil {
			return err
		}
	}

	if err := writeUTF8Integer(bw, info.Position.value); err != nil {
		return err
	}

	switch blockSizeCode {
	case 6:
		if err := bw.WriteInt(8, int32(info.BlockSize-1)); err != nil {
			return err
		}
	case 7:
		if err := bw.WriteInt(16, int32(info.BlockSize-1)); err != nil {
			return err
		}
	}

	switch sampleRateCode {
	case 12:
		if err := bw.WriteInt(8, int32(info.SampleRate)); err != nil {
			return err
		}
	case 13:
		if err := bw.WriteInt(16, int32(info.SampleRate)); err != nil {
			return err
		}
	case 14:
		if err := bw.WriteInt(16, int32(info.SampleRate/10)); err != nil {
			return err
		}
	}

	crc, err := bw.CRC8()
	if err != nil {
		return err
	}

	return bw.WriteInt(8, int32(crc))
}

func blockSizeCodeFor(blockSize int) int {
	if code := searchFirst(blockSizeCodes, blockSize); code != -1 {
		return code
	}

	switch {
	case blockSize >= 1 && blockSize <= 256:
		return 6
	case blockSize >= 1 && blockSize <= 65536:
		return 7
	default:
		panic(fmt.Sprintf("flac: block size %d out of range 1 to 65536", blockSize))
	}
}

func sampleRateCodeFor(sampleRate int) int {
	switch {
	case sampleRate == 0:
		// Defer to the stream info block.
		return 0
	case sampleRate < 0:
		panic(fmt.Sprintf("flac: invalid sample rate %d", sampleRate))
	}

	if code := searchFirst(sampleRateCodes, sampleRate); code != -1 {
		return code
	}

	switch {
	case sampleRate < 256:
		return 12
	case sampleRate < 65536:
		return 13
	case sampleRate < 655360 && sampleRate%10 == 0:
		return 14
	default:
		return 0
	}
}

func sampleDepthCodeFor(sampleDepth int) int {
	if sampleDepth == 0 {
		return 0
	}

	if sampleDepth < 1 || sampleDepth > 32 {
		panic(fmt.Sprintf("flac: sample depth %d out of range 1 to 32", sampleDepth))
	}

	if code := searchFirst(sampleDepthCodes, sampleDepth); code != -1 {
		return code
	}

	return 0
}
