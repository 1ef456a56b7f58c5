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

package bitio_test

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/mycophonic/saprobe-flac/bitio"
)

// refCRC8 is an independent bit-by-bit CRC-8 (polynomial 0x107) used to
// verify the table-driven implementation.
func refCRC8(crc uint8, data []byte) uint8 {
	c := uint32(crc)
	for _, b := range data {
		c ^= uint32(b)
		for n := 0; n < 8; n++ {
			c = (c << 1) ^ ((c >> 7 & 1) * 0x107)
		}
	}

	return uint8(c)
}

// refCRC16 is an independent bit-by-bit CRC-16 (polynomial 0x18005).
func refCRC16(crc uint16, data []byte) uint16 {
	c := uint32(crc)
	for _, b := range data {
		c ^= uint32(b) << 8
		for n := 0; n < 8; n++ {
			c = (c << 1) ^ ((c >> 15 & 1) * 0x18005)
		}
	}

	return uint16(c)
}

// chunkReader yields at most chunk bytes per Read call, forcing short reads
// and window refills at awkward boundaries.
type chunkReader struct {
	data  []byte
	chunk int
}

func (cr *chunkReader) Read(p []byte) (int, error) {
	if len(cr.data) == 0 {
		return 0, io.EOF
	}

	n := min(cr.chunk, len(cr.data), len(p))
	copy(p, cr.data[:n])
	cr.data = cr.data[n:]

	return n, nil
}

func TestReadUintMSBFirst(t *testing.T) {
	t.Parallel()

	// 0xA5 0x3C = 1010 0101 0011 1100
	br := bitio.NewReader(bytes.NewReader([]byte{0xA5, 0x3C}))

	for _, want := range []struct {
		bits int
		val  uint32
	}{
		{1, 1}, {3, 0b010}, {4, 0b0101}, {8, 0x3C},
	} {
		got, err := br.ReadUint(want.bits)
		if err != nil {
			t.Fatalf("ReadUint(%d): %v", want.bits, err)
		}

		if got != want.val {
			t.Fatalf("ReadUint(%d) = %#x, want %#x", want.bits, got, want.val)
		}
	}
}

func TestReadUintZeroBits(t *testing.T) {
	t.Parallel()

	br := bitio.NewReader(bytes.NewReader(nil))

	v, err := br.ReadUint(0)
	if err != nil {
		t.Fatalf("ReadUint(0): %v", err)
	}

	if v != 0 {
		t.Fatalf("ReadUint(0) = %d, want 0", v)
	}
}

func TestReadUintFullWidth(t *testing.T) {
	t.Parallel()

	br := bitio.NewReader(bytes.NewReader([]byte{0xDE, 0xAD, 0xBE, 0xEF}))

	v, err := br.ReadUint(32)
	if err != nil {
		t.Fatalf("ReadUint(32): %v", err)
	}

	if v != 0xDEADBEEF {
		t.Fatalf("ReadUint(32) = %#x, want 0xDEADBEEF", v)
	}
}

func TestReadUintBitCountPanics(t *testing.T) {
	t.Parallel()

	br := bitio.NewReader(bytes.NewReader([]byte{0}))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range bit count")
		}
	}()

	_, _ = br.ReadUint(33)
}

func TestReadSignedInt(t *testing.T) {
	t.Parallel()

	// 4-bit values: 0b1111 = -1, 0b0111 = 7, 0b1000 = -8.
	br := bitio.NewReader(bytes.NewReader([]byte{0xF7, 0x80}))

	for _, want := range []int32{-1, 7, -8} {
		got, err := br.ReadSignedInt(4)
		if err != nil {
			t.Fatalf("ReadSignedInt: %v", err)
		}

		if got != want {
			t.Fatalf("ReadSignedInt(4) = %d, want %d", got, want)
		}
	}
}

func TestEndOfDataMidValue(t *testing.T) {
	t.Parallel()

	br := bitio.NewReader(bytes.NewReader([]byte{0xFF}))

	if _, err := br.ReadUint(12); !errors.Is(err, bitio.ErrEndOfData) {
		t.Fatalf("expected ErrEndOfData, got: %v", err)
	}
}

func TestReadByteCleanEOF(t *testing.T) {
	t.Parallel()

	br := bitio.NewReader(bytes.NewReader([]byte{0x42}))

	b, err := br.ReadByte()
	if err != nil {
		t.Fatalf("ReadByte: %v", err)
	}

	if b != 0x42 {
		t.Fatalf("ReadByte = %#x, want 0x42", b)
	}

	if _, err := br.ReadByte(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF at end of stream, got: %v", err)
	}
}

func TestReadByteMisalignedPanics(t *testing.T) {
	t.Parallel()

	br := bitio.NewReader(bytes.NewReader([]byte{0xFF, 0xFF}))

	if _, err := br.ReadUint(3); err != nil {
		t.Fatalf("ReadUint: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for misaligned ReadByte")
		}
	}()

	_, _ = br.ReadByte()
}

func TestReadFully(t *testing.T) {
	t.Parallel()

	data := []byte{1, 2, 3, 4, 5}
	br := bitio.NewReader(bytes.NewReader(data))

	got := make([]byte, 5)
	if err := br.ReadFully(got); err != nil {
		t.Fatalf("ReadFully: %v", err)
	}

	if !bytes.Equal(got, data) {
		t.Fatalf("ReadFully = %v, want %v", got, data)
	}

	if err := br.ReadFully(make([]byte, 1)); !errors.Is(err, bitio.ErrEndOfData) {
		t.Fatalf("expected ErrEndOfData on short read, got: %v", err)
	}
}

func TestPositionTracking(t *testing.T) {
	t.Parallel()

	br := bitio.NewReader(bytes.NewReader([]byte{0, 0, 0, 0}))

	if _, err := br.ReadUint(12); err != nil {
		t.Fatalf("ReadUint: %v", err)
	}

	// 12 bits consumed: byte 1, bit 4.
	if pos := br.Position(); pos != 1 {
		t.Fatalf("Position = %d, want 1", pos)
	}

	if bp := br.BitPosition(); bp != 4 {
		t.Fatalf("BitPosition = %d, want 4", bp)
	}

	if _, err := br.ReadUint(4); err != nil {
		t.Fatalf("ReadUint: %v", err)
	}

	if pos, bp := br.Position(), br.BitPosition(); pos != 2 || bp != 0 {
		t.Fatalf("after align: Position = %d BitPosition = %d, want 2 0", pos, bp)
	}
}

func TestPositionAcrossRefills(t *testing.T) {
	t.Parallel()

	data := make([]byte, 10000)
	br := bitio.NewReader(bytes.NewReader(data))

	for n := 0; n < 10000; n++ {
		if _, err := br.ReadUint(8); err != nil {
			t.Fatalf("ReadUint: %v", err)
		}
	}

	if pos := br.Position(); pos != 10000 {
		t.Fatalf("Position = %d, want 10000", pos)
	}
}

func TestLength(t *testing.T) {
	t.Parallel()

	br := bitio.NewReader(bytes.NewReader(make([]byte, 77)))

	n, err := br.Length()
	if err != nil {
		t.Fatalf("Length: %v", err)
	}

	if n != 77 {
		t.Fatalf("Length = %d, want 77", n)
	}

	// A plain reader has no length.
	plain := bitio.NewReader(&chunkReader{data: make([]byte, 8), chunk: 8})
	if _, err := plain.Length(); !errors.Is(err, bitio.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got: %v", err)
	}
}

func TestSeekTo(t *testing.T) {
	t.Parallel()

	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}

	br := bitio.NewReader(bytes.NewReader(data))

	if _, err := br.ReadUint(8); err != nil {
		t.Fatalf("ReadUint: %v", err)
	}

	if err := br.SeekTo(200); err != nil {
		t.Fatalf("SeekTo: %v", err)
	}

	if pos := br.Position(); pos != 200 {
		t.Fatalf("Position after seek = %d, want 200", pos)
	}

	b, err := br.ReadByte()
	if err != nil {
		t.Fatalf("ReadByte: %v", err)
	}

	if b != 200 {
		t.Fatalf("ReadByte after seek = %d, want 200", b)
	}

	// CRC window restarts at the seek target.
	if got, want := br.CRC8(), refCRC8(0, []byte{200}); got != want {
		t.Fatalf("CRC8 after seek = %#x, want %#x", got, want)
	}
}

func TestSeekToUnsupported(t *testing.T) {
	t.Parallel()

	br := bitio.NewReader(&chunkReader{data: make([]byte, 8), chunk: 8})
	if err := br.SeekTo(0); !errors.Is(err, bitio.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got: %v", err)
	}
}

// TestCRCsChunkingIndependent verifies that the CRC over consumed bytes does
// not depend on how the source fragments its reads or on window refills.
func TestCRCsChunkingIndependent(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	data := make([]byte, 3*4096+17)
	rng.Read(data)

	wantCRC8 := refCRC8(0, data)
	wantCRC16 := refCRC16(0, data)

	for _, chunk := range []int{1, 3, 7, 100, 4096, len(data)} {
		br := bitio.NewReader(&chunkReader{data: data, chunk: chunk})

		if err := br.ReadFully(make([]byte, len(data))); err != nil {
			t.Fatalf("chunk %d: ReadFully: %v", chunk, err)
		}

		if got := br.CRC8(); got != wantCRC8 {
			t.Fatalf("chunk %d: CRC8 = %#x, want %#x", chunk, got, wantCRC8)
		}

		if got := br.CRC16(); got != wantCRC16 {
			t.Fatalf("chunk %d: CRC16 = %#x, want %#x", chunk, got, wantCRC16)
		}
	}
}

// TestCRCsExcludeUnconsumedBits verifies that bytes prefetched into the bit
// accumulator but not yet consumed stay outside the CRC window. The Rice
// fast path prefetches eight bytes at a time, so decoding eight one-bit
// codes consumes exactly one byte while seven sit buffered.
func TestCRCsExcludeUnconsumedBits(t *testing.T) {
	t.Parallel()

	data := make([]byte, 16)
	data[0] = 0xFF

	br := bitio.NewReader(bytes.NewReader(data))

	if err := br.ReadRiceSignedInts(0, make([]int64, 8)); err != nil {
		t.Fatalf("ReadRiceSignedInts: %v", err)
	}

	if got, want := br.CRC8(), refCRC8(0, data[:1]); got != want {
		t.Fatalf("CRC8 = %#x, want %#x over one byte", got, want)
	}
}

func TestResetCRCs(t *testing.T) {
	t.Parallel()

	data := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	br := bitio.NewReader(bytes.NewReader(data))

	if err := br.ReadFully(make([]byte, 2)); err != nil {
		t.Fatalf("ReadFully: %v", err)
	}

	br.ResetCRCs()

	if err := br.ReadFully(make([]byte, 2)); err != nil {
		t.Fatalf("ReadFully: %v", err)
	}

	if got, want := br.CRC8(), refCRC8(0, data[2:]); got != want {
		t.Fatalf("CRC8 = %#x, want %#x over reset window", got, want)
	}

	if got, want := br.CRC16(), refCRC16(0, data[2:]); got != want {
		t.Fatalf("CRC16 = %#x, want %#x over reset window", got, want)
	}
}

func TestCRCMisalignedPanics(t *testing.T) {
	t.Parallel()

	br := bitio.NewReader(bytes.NewReader([]byte{0xFF}))

	if _, err := br.ReadUint(5); err != nil {
		t.Fatalf("ReadUint: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for misaligned CRC8")
		}
	}()

	_ = br.CRC8()
}

func TestCloseIdempotent(t *testing.T) {
	t.Parallel()

	br := bitio.NewReader(bytes.NewReader([]byte{1, 2, 3}))

	if err := br.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := br.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, err := br.ReadUint(8); !errors.Is(err, bitio.ErrClosed) {
		t.Fatalf("expected ErrClosed after Close, got: %v", err)
	}

	if err := br.SeekTo(0); !errors.Is(err, bitio.ErrClosed) {
		t.Fatalf("expected ErrClosed from SeekTo, got: %v", err)
	}
}

func BenchmarkReadUint(b *testing.B) {
	data := make([]byte, 1<<16)
	rand.New(rand.NewSource(2)).Read(data)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()

	for n := 0; n < b.N; n++ {
		br := bitio.NewReader(bytes.NewReader(data))
		for {
			if _, err := br.ReadUint(17); err != nil {
				break
			}
		}
	}
}
