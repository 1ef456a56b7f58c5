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

package bitio

import (
	"fmt"
	"io"
)

// Writer writes an MSB-first bitstream to an io.Writer.
//
// Bits accumulate in a 64-bit buffer; Flush emits only whole bytes, leaving
// up to 7 residual bits buffered. CRC-8 and CRC-16 accumulate over every
// emitted byte.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	sink io.Writer

	// Only the bottom bitLen bits of bitBuf are valid; bitLen is always in
	// [0, 64].
	bitBuf uint64
	bitLen int

	// Bytes emitted to the sink so far.
	byteCount uint64

	crc8  uint8
	crc16 uint16

	scratch []byte
	closed  bool
}

// NewWriter returns a Writer that emits bytes to sink.
func NewWriter(sink io.Writer) *Writer {
	return &Writer{
		sink:    sink,
		scratch: make([]byte, 0, 8),
	}
}

func (w *Writer) checkByteAligned() {
	if w.bitLen%8 != 0 {
		panic(fmt.Sprintf("bitio: writer not at a byte boundary (%d buffered bits)", w.bitLen%8))
	}
}

// WriteInt buffers the low n bits (0 <= n <= 32) of val, flushing whole
// bytes first if the accumulator would overflow 64 bits.
func (w *Writer) WriteInt(n int, val int32) error {
	if n < 0 || n > 32 {
		panic(fmt.Sprintf("bitio: WriteInt called with %d bits, want 0 to 32", n))
	}

	if w.closed {
		return ErrClosed
	}

	if w.bitLen+n > 64 {
		if err := w.Flush(); err != nil {
			return err
		}
	}

	w.bitBuf = w.bitBuf<<uint(n) | uint64(uint32(val))&(1<<uint(n)-1) //nolint:gosec // Low n bits only; negative values are two's complement truncated.
	w.bitLen += n

	return nil
}

// Flush emits all complete buffered bytes to the sink, folding each into the
// CRC accumulators. Up to 7 residual bits stay buffered.
func (w *Writer) Flush() error {
	if w.closed {
		return ErrClosed
	}

	w.scratch = w.scratch[:0]

	for w.bitLen >= 8 {
		w.bitLen -= 8
		w.scratch = append(w.scratch, byte(w.bitBuf>>uint(w.bitLen)))
	}

	if len(w.scratch) == 0 {
		return nil
	}

	w.crc8 = updateCRC8(w.crc8, w.scratch)
	w.crc16 = updateCRC16(w.crc16, w.scratch)
	w.byteCount += uint64(len(w.scratch))

	if _, err := w.sink.Write(w.scratch); err != nil {
		return fmt.Errorf("writing to sink: %w", err)
	}

	return nil
}

// AlignToByte zero-pads the stream to the next byte boundary.
func (w *Writer) AlignToByte() error {
	return w.WriteInt((64-w.bitLen)%8, 0)
}

// ResetCRCs flushes buffered whole bytes and zeroes both CRC accumulators,
// starting a new coverage window.
func (w *Writer) ResetCRCs() error {
	if err := w.Flush(); err != nil {
		return err
	}

	w.crc8 = 0
	w.crc16 = 0

	return nil
}

// CRC8 flushes and returns the CRC-8 over the bytes emitted since the last
// ResetCRCs. The writer must be at a byte boundary.
func (w *Writer) CRC8() (uint8, error) {
	w.checkByteAligned()

	if err := w.Flush(); err != nil {
		return 0, err
	}

	return w.crc8, nil
}

// CRC16 flushes and returns the CRC-16 over the bytes emitted since the last
// ResetCRCs. The writer must be at a byte boundary.
func (w *Writer) CRC16() (uint16, error) {
	w.checkByteAligned()

	if err := w.Flush(); err != nil {
		return 0, err
	}

	return w.crc16, nil
}

// ByteCount returns the total number of bytes written, including complete
// bytes still sitting unflushed in the accumulator.
func (w *Writer) ByteCount() uint64 {
	return w.byteCount + uint64(w.bitLen/8)
}

// Close flushes and releases the sink, closing it if it implements
// io.Closer. The writer must be at a byte boundary. Close is idempotent;
// subsequent writes fail with ErrClosed.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}

	w.checkByteAligned()

	if err := w.Flush(); err != nil {
		return err
	}

	w.closed = true
	sink := w.sink
	w.sink = nil

	if closer, ok := sink.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("closing sink: %w", err)
		}
	}

	return nil
}
