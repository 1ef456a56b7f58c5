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

// Package bitio provides the bit-precise stream engine of the FLAC framing
// layer: an MSB-first bit Reader and Writer with inline CRC-8/CRC-16
// accumulation and table-driven Rice residual decoding.
package bitio

import (
	"errors"
	"fmt"
	"io"
)

const readBufSize = 4096

// Reader reads an MSB-first bitstream from an io.Reader.
//
// Bytes are staged in a window refilled from the source, and bits are drawn
// from a 64-bit accumulator fed by that window. CRC-8 and CRC-16 are computed
// lazily over the bytes logically consumed since the last ResetCRCs (or seek,
// or start), only when a CRC getter is called, never per bit.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	src io.Reader

	// Byte window. bufStart is the stream offset of buf[0]; bufIdx counts
	// bytes already moved into the bit accumulator, which the caller may not
	// have consumed yet.
	buf      []byte
	bufStart uint64
	bufLen   int
	bufIdx   int

	// Bit accumulator. Only the bottom bitLen bits are valid; bitLen is
	// always in [0, 64].
	bitBuf uint64
	bitLen int

	// CRC state. crcIdx is the window index where the CRC coverage resumes;
	// it is rebased to 0 whenever the window is refilled.
	crc8   uint8
	crc16  uint16
	crcIdx int

	srcEOF bool
	closed bool
}

// NewReader returns a Reader that reads bits from src starting at stream
// position 0.
func NewReader(src io.Reader) *Reader {
	return &Reader{
		src: src,
		buf: make([]byte, readBufSize),
	}
}

// Position returns the current byte offset in the stream. A partially
// consumed byte counts as unread.
func (r *Reader) Position() uint64 {
	return r.bufStart + uint64(r.bufIdx) - uint64((r.bitLen+7)/8)
}

// BitPosition returns the number of consumed bits in the current byte,
// in [0, 7].
func (r *Reader) BitPosition() int {
	return (-r.bitLen) & 7
}

// Length returns the total number of bytes in the stream. The source must
// implement Sizer, otherwise ErrUnsupported is returned.
func (r *Reader) Length() (uint64, error) {
	if sizer, ok := r.src.(Sizer); ok {
		return uint64(sizer.Size()), nil
	}

	return 0, ErrUnsupported
}

// SeekTo repositions the reader to the given absolute byte offset, discarding
// all buffered bits and resetting the CRC window. The source must implement
// io.Seeker, otherwise ErrUnsupported is returned.
func (r *Reader) SeekTo(pos uint64) error {
	if r.closed {
		return ErrClosed
	}

	seeker, ok := r.src.(io.Seeker)
	if !ok {
		return ErrUnsupported
	}

	if _, err := seeker.Seek(int64(pos), io.SeekStart); err != nil { //nolint:gosec // FLAC streams cannot exceed int64 offsets.
		return fmt.Errorf("seeking source: %w", err)
	}

	r.positionChanged(pos)

	return nil
}

// positionChanged flushes all buffered data after the underlying source has
// been repositioned to pos.
func (r *Reader) positionChanged(pos uint64) {
	r.bufStart = pos
	r.bufLen = 0
	r.bufIdx = 0
	r.bitBuf = 0
	r.bitLen = 0
	r.crc8 = 0
	r.crc16 = 0
	r.crcIdx = 0
	r.srcEOF = false
}

func (r *Reader) checkByteAligned() {
	if r.bitLen%8 != 0 {
		panic(fmt.Sprintf("bitio: reader not at a byte boundary (%d buffered bits)", r.bitLen%8))
	}
}

// readUnderlying returns the next byte from the window, refilling it from the
// source when drained. Returns io.EOF once the source is exhausted.
func (r *Reader) readUnderlying() (byte, error) {
	if r.closed {
		return 0, ErrClosed
	}

	if r.bufIdx >= r.bufLen {
		if r.srcEOF {
			return 0, io.EOF
		}

		// Fold the bytes consumed from the old window into the CRCs before
		// the window is discarded, then rebase the CRC window start.
		r.updateCRCs(0)
		r.bufStart += uint64(r.bufLen)
		r.bufLen = 0
		r.bufIdx = 0
		r.crcIdx = 0

		for {
			n, err := r.src.Read(r.buf)
			if n > 0 {
				r.bufLen = n

				break
			}

			if err != nil {
				if errors.Is(err, io.EOF) {
					r.srcEOF = true

					return 0, io.EOF
				}

				return 0, fmt.Errorf("reading source: %w", err)
			}
		}
	}

	b := r.buf[r.bufIdx]
	r.bufIdx++

	return b, nil
}

// ReadUint reads the next n bits (0 <= n <= 32) as an unsigned integer.
// The source running out mid-value yields ErrEndOfData.
func (r *Reader) ReadUint(n int) (uint32, error) {
	if n < 0 || n > 32 {
		panic(fmt.Sprintf("bitio: ReadUint called with %d bits, want 0 to 32", n))
	}

	for r.bitLen < n {
		b, err := r.readUnderlying()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, ErrEndOfData
			}

			return 0, err
		}

		r.bitBuf = r.bitBuf<<8 | uint64(b)
		r.bitLen += 8
	}

	result := uint32(r.bitBuf >> uint(r.bitLen-n))
	if n != 32 {
		result &= 1<<uint(n) - 1
	}

	r.bitLen -= n

	return result, nil
}

// ReadSignedInt reads the next n bits and sign-extends them.
func (r *Reader) ReadSignedInt(n int) (int32, error) {
	v, err := r.ReadUint(n)
	if err != nil {
		return 0, err
	}

	shift := uint(32 - n)

	return int32(v<<shift) >> shift, nil //nolint:gosec // Sign extension via arithmetic shift, as in the reference decoder.
}

// ReadByte reads the next whole byte. The reader must be at a byte boundary.
// A clean end of stream is reported as io.EOF.
func (r *Reader) ReadByte() (int, error) {
	r.checkByteAligned()

	if r.bitLen >= 8 {
		v, err := r.ReadUint(8)

		return int(v), err
	}

	b, err := r.readUnderlying()
	if err != nil {
		return 0, err
	}

	return int(b), nil
}

// ReadFully reads exactly len(p) bytes into p. The reader must be at a byte
// boundary; a short read yields ErrEndOfData.
func (r *Reader) ReadFully(p []byte) error {
	r.checkByteAligned()

	for i := range p {
		v, err := r.ReadUint(8)
		if err != nil {
			return err
		}

		p[i] = byte(v)
	}

	return nil
}

// ResetCRCs marks the current byte-aligned position as the new start of the
// CRC-8/CRC-16 coverage window.
func (r *Reader) ResetCRCs() {
	r.checkByteAligned()

	r.crcIdx = r.bufIdx - r.bitLen/8
	r.crc8 = 0
	r.crc16 = 0
}

// CRC8 finalizes and returns the CRC-8 over the bytes consumed since the last
// ResetCRCs, seek, or start. The reader must be at a byte boundary.
func (r *Reader) CRC8() uint8 {
	r.checkByteAligned()
	r.updateCRCs(r.bitLen / 8)

	return r.crc8
}

// CRC16 finalizes and returns the CRC-16 over the bytes consumed since the
// last ResetCRCs, seek, or start. The reader must be at a byte boundary.
func (r *Reader) CRC16() uint16 {
	r.checkByteAligned()
	r.updateCRCs(r.bitLen / 8)

	return r.crc16
}

// updateCRCs folds window bytes in [crcIdx, bufIdx-unusedTrailingBytes) into
// both CRC accumulators. Bytes still sitting unconsumed in the bit
// accumulator are excluded via unusedTrailingBytes.
func (r *Reader) updateCRCs(unusedTrailingBytes int) {
	end := r.bufIdx - unusedTrailingBytes
	if end <= r.crcIdx {
		return
	}

	data := r.buf[r.crcIdx:end]
	r.crc8 = updateCRC8(r.crc8, data)
	r.crc16 = updateCRC16(r.crc16, data)
	r.crcIdx = end
}

// Close releases the reader's buffers. Subsequent reads fail with ErrClosed.
// Close is idempotent and does not close the underlying source.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}

	r.closed = true
	r.buf = nil
	r.src = nil
	r.bufLen = 0
	r.bufIdx = 0
	r.bitBuf = 0
	r.bitLen = 0

	return nil
}
