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

package flac

import (
	"fmt"
	"math/bits"

	"github.com/mycophonic/saprobe-flac/bitio"
)

// UTF-8-style variable-length integer coding for the frame position field.
//
// Values 0 to 127 are a single literal byte. Larger values use a leading
// byte whose run of leading 1-bits is one more than the continuation-byte
// count, followed by continuation bytes each carrying 6 payload bits under
// fixed top bits 10. The maximum representable magnitude is 36 bits
// (1 to 7 bytes on the wire).

// readUTF8Integer decodes one coded number from the reader.
func readUTF8Integer(br *bitio.Reader) (uint64, error) {
	head, err := br.ReadUint(8)
	if err != nil {
		return 0, err
	}

	n := bits.LeadingZeros32(^(head << 24))

	if n == 0 {
		return uint64(head), nil
	}

	// A lone continuation byte or an all-ones leading byte is malformed.
	if n == 1 || n == 8 {
		return 0, fmt.Errorf("%w: invalid utf-8 coded number", ErrFormat)
	}

	result := uint64(head) & (0x7F >> uint(n))

	for j := 1; j < n; j++ {
		cont, err := br.ReadUint(8)
		if err != nil {
			return 0, err
		}

		if cont&0xC0 != 0x80 {
			return 0, fmt.Errorf("%w: invalid utf-8 coded number", ErrFormat)
		}

		result = result<<6 | uint64(cont&0x3F)
	}

	if result>>36 != 0 {
		return 0, fmt.Errorf("%w: coded number %d does not fit in 36 bits", ErrFormat, result)
	}

	return result, nil
}

// writeUTF8Integer encodes val with the minimal byte count for its
// magnitude. The value must fit in 36 bits.
func writeUTF8Integer(bw *bitio.Writer, val uint64) error {
	if val>>36 != 0 {
		panic(fmt.Sprintf("flac: value %d does not fit in 36 bits", val))
	}

	bitLen := 64 - bits.LeadingZeros64(val)
	if bitLen <= 7 {
		return bw.WriteInt(8, int32(val)) //nolint:gosec // val <= 127 here.
	}

	n := (bitLen - 2) / 5

	if err := bw.WriteInt(8, int32(uint32(0xFF80>>uint(n))|uint32(val>>uint(n*6)))); err != nil { //nolint:gosec // Masked to 8 bits by WriteInt.
		return err
	}

	for i := n - 1; i >= 0; i-- {
		if err := bw.WriteInt(8, int32(0x80|uint32(val>>uint(i*6))&0x3F)); err != nil {
			return err
		}
	}

	return nil
}
