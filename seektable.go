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

//nolint:gosec // Field widths are bounded by the seek point wire format.
package flac

import (
	"encoding/binary"
	"fmt"

	"github.com/mycophonic/saprobe-flac/bitio"
)

const seekPointSize = 18

// PlaceholderSampleOffset marks an unused seek point. Placeholder points are
// exempt from the ordering rules and must sort to the end of the table.
const PlaceholderSampleOffset = ^uint64(0)

// SeekPoint maps a sample offset to the file offset of the frame containing
// it, relative to the first frame's start.
type SeekPoint struct {
	SampleOffset uint64
	FileOffset   uint64
	FrameSamples int
}

// SeekTable is an ordered list of seek points, stored as the seek table
// metadata block.
type SeekTable struct {
	Points []SeekPoint
}

// ParseSeekTable decodes a seek table metadata block payload, a sequence of
// 18-byte seek points.
func ParseSeekTable(data []byte) (*SeekTable, error) {
	if len(data)%seekPointSize != 0 {
		return nil, fmt.Errorf("%w: seek table contains a partial seek point", ErrFormat)
	}

	table := &SeekTable{
		Points: make([]SeekPoint, 0, len(data)/seekPointSize),
	}

	for i := 0; i < len(data); i += seekPointSize {
		table.Points = append(table.Points, SeekPoint{
			SampleOffset: binary.BigEndian.Uint64(data[i:]),
			FileOffset:   binary.BigEndian.Uint64(data[i+8:]),
			FrameSamples: int(binary.BigEndian.Uint16(data[i+16:])),
		})
	}

	return table, nil
}

// CheckValues verifies that non-placeholder points are strictly ordered by
// sample offset and non-decreasing in file offset.
func (st *SeekTable) CheckValues() error {
	for i := 1; i < len(st.Points); i++ {
		point := st.Points[i]
		if point.SampleOffset == PlaceholderSampleOffset {
			continue
		}

		prev := st.Points[i-1]

		if point.SampleOffset <= prev.SampleOffset {
			return fmt.Errorf("%w: seek point sample offsets out of order", ErrInvalid)
		}

		if point.FileOffset < prev.FileOffset {
			return fmt.Errorf("%w: seek point file offsets out of order", ErrInvalid)
		}
	}

	return nil
}

// Write serializes the metadata block, header included. last marks it the
// final metadata block of the stream.
func (st *SeekTable) Write(last bool, bw *bitio.Writer) error {
	if len(st.Points) > (1<<24-1)/seekPointSize {
		return fmt.Errorf("%w: too many seek points", ErrInvalid)
	}

	if err := st.CheckValues(); err != nil {
		return err
	}

	lastBit := int32(0)
	if last {
		lastBit = 1
	}

	if err := bw.WriteInt(1, lastBit); err != nil {
		return err
	}

	if err := bw.WriteInt(7, 3); err != nil { // block type: seek table
		return err
	}

	if err := bw.WriteInt(24, int32(len(st.Points)*seekPointSize)); err != nil {
		return err
	}

	for _, point := range st.Points {
		fields := []struct {
			n   int
			val int32
		}{
			{32, int32(point.SampleOffset >> 32)},
			{32, int32(point.SampleOffset)},
			{32, int32(point.FileOffset >> 32)},
			{32, int32(point.FileOffset)},
			{16, int32(point.FrameSamples)},
		}

		for _, f := range fields {
			if err := bw.WriteInt(f.n, f.val); err != nil {
				return err
			}
		}
	}

	return nil
}
