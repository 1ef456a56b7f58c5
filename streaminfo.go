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

//nolint:gosec // Field widths are bounded by the stream info wire format.
package flac

import (
	"bytes"
	"crypto/md5" //nolint:gosec // The FLAC format mandates MD5 for the sample digest.
	"fmt"

	"github.com/mycophonic/saprobe-flac/bitio"
)

// StreamInfoSize is the fixed payload size of a stream info metadata block.
const StreamInfoSize = 34

// StreamInfo holds the fields of a stream info metadata block, the mandatory
// first metadata block of every stream.
type StreamInfo struct {
	// MinBlockSize and MaxBlockSize bound the samples-per-frame over the
	// whole stream, each in [16, 65535].
	MinBlockSize int
	MaxBlockSize int

	// MinFrameSize and MaxFrameSize bound the encoded frame byte sizes;
	// 0 means unknown.
	MinFrameSize int
	MaxFrameSize int

	SampleRate  int
	NumChannels int
	SampleDepth int

	// NumSamples is the total inter-channel sample count; 0 means unknown.
	NumSamples uint64

	// MD5Hash digests the raw uncompressed samples; all zero means unknown.
	MD5Hash [md5.Size]byte
}

// ParseStreamInfo decodes a 34-byte stream info metadata block payload.
func ParseStreamInfo(data []byte) (*StreamInfo, error) {
	if len(data) != StreamInfoSize {
		return nil, fmt.Errorf("%w: stream info block is %d bytes, want %d", ErrFormat, len(data), StreamInfoSize)
	}

	br := bitio.NewReader(bytes.NewReader(data))
	info := &StreamInfo{}

	fields := []struct {
		bits int
		dst  *int
	}{
		{16, &info.MinBlockSize},
		{16, &info.MaxBlockSize},
		{24, &info.MinFrameSize},
		{24, &info.MaxFrameSize},
	}

	for _, f := range fields {
		v, err := br.ReadUint(f.bits)
		if err != nil {
			return nil, err
		}

		*f.dst = int(v)
	}

	if info.MinBlockSize < 16 {
		return nil, fmt.Errorf("%w: minimum block size %d less than 16", ErrFormat, info.MinBlockSize)
	}

	if info.MaxBlockSize < info.MinBlockSize {
		return nil, fmt.Errorf("%w: maximum block size less than minimum block size", ErrFormat)
	}

	if info.MinFrameSize != 0 && info.MaxFrameSize != 0 && info.MaxFrameSize < info.MinFrameSize {
		return nil, fmt.Errorf("%w: maximum frame size less than minimum frame size", ErrFormat)
	}

	rate, err := br.ReadUint(20)
	if err != nil {
		return nil, err
	}

	if rate == 0 || rate > 655350 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrFormat, rate)
	}

	info.SampleRate = int(rate)

	chans, err := br.ReadUint(3)
	if err != nil {
		return nil, err
	}

	info.NumChannels = int(chans) + 1

	depth, err := br.ReadUint(5)
	if err != nil {
		return nil, err
	}

	info.SampleDepth = int(depth) + 1

	hi, err := br.ReadUint(18)
	if err != nil {
		return nil, err
	}

	lo, err := br.ReadUint(18)
	if err != nil {
		return nil, err
	}

	info.NumSamples = uint64(hi)<<18 | uint64(lo)

	if err := br.ReadFully(info.MD5Hash[:]); err != nil {
		return nil, err
	}

	return info, nil
}

// CheckValues verifies every field is within its wire-format domain.
func (info *StreamInfo) CheckValues() error {
	switch {
	case info.MinBlockSize>>16 != 0 || info.MinBlockSize < 16:
		return fmt.Errorf("%w: minimum block size %d", ErrInvalid, info.MinBlockSize)
	case info.MaxBlockSize>>16 != 0 || info.MaxBlockSize < info.MinBlockSize:
		return fmt.Errorf("%w: maximum block size %d", ErrInvalid, info.MaxBlockSize)
	case info.MinFrameSize>>24 != 0 || info.MinFrameSize < 0:
		return fmt.Errorf("%w: minimum frame size %d", ErrInvalid, info.MinFrameSize)
	case info.MaxFrameSize>>24 != 0 || info.MaxFrameSize < 0:
		return fmt.Errorf("%w: maximum frame size %d", ErrInvalid, info.MaxFrameSize)
	case info.SampleRate <= 0 || info.SampleRate>>20 != 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalid, info.SampleRate)
	case info.NumChannels < 1 || info.NumChannels > 8:
		return fmt.Errorf("%w: number of channels %d", ErrInvalid, info.NumChannels)
	case info.SampleDepth < 4 || info.SampleDepth > 32:
		return fmt.Errorf("%w: sample depth %d", ErrInvalid, info.SampleDepth)
	case info.NumSamples>>36 != 0:
		return fmt.Errorf("%w: number of samples %d", ErrInvalid, info.NumSamples)
	}

	return nil
}

// CheckFrame cross-checks a parsed frame header against the stream-wide
// fields, surfacing contradictions as format errors.
func (info *StreamInfo) CheckFrame(frame *FrameInfo) error {
	switch {
	case frame.NumChannels != info.NumChannels:
		return fmt.Errorf("%w: channel count mismatch", ErrFormat)
	case frame.SampleRate != 0 && frame.SampleRate != info.SampleRate:
		return fmt.Errorf("%w: sample rate mismatch", ErrFormat)
	case frame.SampleDepth != 0 && frame.SampleDepth != info.SampleDepth:
		return fmt.Errorf("%w: sample depth mismatch", ErrFormat)
	case info.NumSamples != 0 && uint64(frame.BlockSize) > info.NumSamples:
		return fmt.Errorf("%w: block size exceeds total number of samples", ErrFormat)
	case frame.BlockSize > info.MaxBlockSize:
		return fmt.Errorf("%w: block size exceeds maximum", ErrFormat)
		// Note: when MinBlockSize == MaxBlockSize, the final frame of the
		// stream is still allowed to be smaller than MinBlockSize.
	}

	if frame.FrameSize != 0 {
		if info.MinFrameSize != 0 && frame.FrameSize < int64(info.MinFrameSize) {
			return fmt.Errorf("%w: frame size less than minimum", ErrFormat)
		}

		if info.MaxFrameSize != 0 && frame.FrameSize > int64(info.MaxFrameSize) {
			return fmt.Errorf("%w: frame size exceeds maximum", ErrFormat)
		}
	}

	return nil
}

// Write serializes the metadata block, header included. last marks it the
// final metadata block of the stream.
func (info *StreamInfo) Write(last bool, bw *bitio.Writer) error {
	if err := info.CheckValues(); err != nil {
		return err
	}

	lastBit := int32(0)
	if last {
		lastBit = 1
	}

	fields := []struct {
		n   int
		val int32
	}{
		{1, lastBit},
		{7, 0}, // block type: stream info
		{24, StreamInfoSize},
		{16, int32(info.MinBlockSize)},
		{16, int32(info.MaxBlockSize)},
		{24, int32(info.MinFrameSize)},
		{24, int32(info.MaxFrameSize)},
		{20, int32(info.SampleRate)},
		{3, int32(info.NumChannels - 1)},
		{5, int32(info.SampleDepth - 1)},
		{18, int32(info.NumSamples >> 18)},
		{18, int32(info.NumSamples & (1<<18 - 1))},
	}

	for _, f := range fields {
		if err := bw.WriteInt(f.n, f.val); err != nil {
			return err
		}
	}

	for _, b := range info.MD5Hash {
		if err := bw.WriteInt(8, int32(b)); err != nil {
			return err
		}
	}

	return nil
}

// HashSamples computes the MD5 digest of uncompressed samples the way the
// stream info block records it: samples interleaved across channels, each
// truncated to depth bits and serialized little-endian. depth must be a
// multiple of 8, at most 32. All channels must hold the same sample count.
func HashSamples(channels [][]int32, depth int) ([md5.Size]byte, error) {
	var digest [md5.Size]byte

	if len(channels) == 0 {
		return digest, fmt.Errorf("%w: no channels", ErrInvalid)
	}

	if depth <= 0 || depth > 32 || depth%8 != 0 {
		return digest, fmt.Errorf("%w: sample depth %d not a multiple of 8", ErrInvalid, depth)
	}

	numSamples := len(channels[0])
	for _, ch := range channels[1:] {
		if len(ch) != numSamples {
			return digest, fmt.Errorf("%w: channels differ in sample count", ErrInvalid)
		}
	}

	hasher := md5.New() //nolint:gosec // Format-mandated digest, not a security boundary.
	numBytes := depth / 8
	buf := make([]byte, 0, 4096)

	for i := 0; i < numSamples; i++ {
		for _, ch := range channels {
			v := uint32(ch[i])
			for k := 0; k < numBytes; k++ {
				buf = append(buf, byte(v>>(k*8)))
			}
		}

		if len(buf)+len(channels)*numBytes > cap(buf) {
			hasher.Write(buf)
			buf = buf[:0]
		}
	}

	hasher.Write(buf)
	copy(digest[:], hasher.Sum(nil))

	return digest, nil
}
