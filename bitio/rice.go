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

//nolint:gosec // Integer conversions match the reference decoder's fixed-width arithmetic.
package bitio

import (
	"fmt"
	"sync"
)

// Table-driven Rice (Golomb-Rice) residual decoding. A Rice code is a unary
// run of 0-bits terminated by a 1-bit (the quotient) followed by param
// literal bits (the remainder); the combined value is zigzag-mapped to a
// signed integer.
//
// For every parameter below riceTableLen, a lookup table maps each possible
// content of a riceTableBits-wide peek window to the total bit length of the
// Rice code occupying its prefix and the decoded value. Window contents where
// no complete code fits are left unresolved (consumed == 0), forcing the
// bit-by-bit fallback path.

const (
	// riceTableBits is the peek window width. Must be positive.
	riceTableBits = 13
	riceTableMask = 1<<riceTableBits - 1
	riceTableLen  = 31

	// riceChunk codes are decoded per accumulator refill on the fast path.
	// Must satisfy riceChunk * riceTableBits <= 64.
	riceChunk = 4
)

type riceTable struct {
	// consumed[w] is the bit length of the Rice code prefixing window
	// content w, or 0 if no complete code fits the window.
	consumed []uint8
	// value[w] is the zigzag-decoded signed value of that code.
	value []int32
}

// riceTables returns the process-wide decode tables, built on first use and
// immutable afterwards. Safe to share across any number of readers.
//
//nolint:gochecknoglobals
var riceTables = sync.OnceValue(buildRiceTables)

func buildRiceTables() *[riceTableLen]riceTable {
	tables := new([riceTableLen]riceTable)

	for param := range tables {
		table := riceTable{
			consumed: make([]uint8, 1<<riceTableBits),
			value:    make([]int32, 1<<riceTableBits),
		}

		for i := uint32(0); ; i++ {
			numBits := i>>uint(param) + 1 + uint32(param)
			if numBits > riceTableBits {
				break
			}

			// The code's own bits: unary-terminating 1 at the top, then the
			// low param remainder bits.
			bits := uint32(1)<<uint(param) | i&(1<<uint(param)-1)
			shift := riceTableBits - numBits
			decoded := int32(i>>1) ^ -int32(i&1)

			for j := uint32(0); j < 1<<shift; j++ {
				idx := bits<<shift | j
				table.consumed[idx] = uint8(numBits)
				table.value[idx] = decoded
			}
		}

		tables[param] = table
	}

	return tables
}

// fillBitBuffer tops up the bit accumulator from the byte window. The caller
// must ensure the window holds at least one unconsumed byte.
func (r *Reader) fillBitBuffer() {
	n := min((64-r.bitLen)>>3, r.bufLen-r.bufIdx)
	for _, b := range r.buf[r.bufIdx : r.bufIdx+n] {
		r.bitBuf = r.bitBuf<<8 | uint64(b)
	}

	r.bitLen += n * 8
	r.bufIdx += n
}

// ReadRiceSignedInts batch-decodes len(dst) Rice-coded signed residuals with
// the given parameter (0 to 31 inclusive) into dst.
//
// Codes short enough to resolve within the peek window are decoded through
// the lookup tables, four per accumulator refill; the rest fall back to
// bit-by-bit unary scanning. A unary run long enough that the decoded
// magnitude would overflow a 53-bit signed result aborts the whole read with
// ErrResidualOverflow.
func (r *Reader) ReadRiceSignedInts(param int, dst []int64) error {
	if param < 0 || param > 31 {
		panic(fmt.Sprintf("bitio: rice parameter %d out of range 0 to 31", param))
	}

	unaryLimit := uint64(1) << uint(53-param)

	var consumeTable []uint8

	var valueTable []int32

	if param < riceTableLen {
		table := &riceTables()[param]
		consumeTable = table.consumed
		valueTable = table.value
	}

	start, end := 0, len(dst)

	for {
		if consumeTable != nil {
		fast:
			for start <= end-riceChunk {
				if r.bitLen < riceChunk*riceTableBits {
					if r.bufIdx <= r.bufLen-8 {
						r.fillBitBuffer()
					} else {
						break
					}
				}

				for n := 0; n < riceChunk; n++ {
					window := uint32(r.bitBuf>>uint(r.bitLen-riceTableBits)) & riceTableMask
					consumed := int(consumeTable[window])
					if consumed == 0 {
						// Code extends beyond the window; decode it bit by bit.
						break fast
					}

					r.bitLen -= consumed
					dst[start] = int64(valueTable[window])
					start++
				}
			}
		}

		if start >= end {
			return nil
		}

		// Fallback: unary scan for one code.
		var quotient uint64

		for {
			bit, err := r.ReadUint(1)
			if err != nil {
				return err
			}

			if bit != 0 {
				break
			}

			if quotient >= unaryLimit {
				// The final decoded value would be too large for downstream
				// sample reconstruction to fit its output bit depth. This
				// check is conservative and does not catch every such case.
				return ErrResidualOverflow
			}

			quotient++
		}

		remainder, err := r.ReadUint(param)
		if err != nil {
			return err
		}

		val := quotient<<uint(param) | uint64(remainder)
		dst[start] = int64(val>>1) ^ -int64(val&1)
		start++
	}
}
