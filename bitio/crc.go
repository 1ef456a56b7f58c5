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

// CRC-8 (polynomial 0x107) and CRC-16 (polynomial 0x18005) over whole bytes,
// as used by the FLAC frame header and frame footer checksums. The tables are
// built once by pure functions at package init and shared read-only by every
// Reader and Writer.

const crcTableLen = 256

//nolint:gochecknoglobals
var (
	crc8Table  = makeCRC8Table()
	crc16Table = makeCRC16Table()
)

func makeCRC8Table() [crcTableLen]uint8 {
	var table [crcTableLen]uint8

	for i := range table {
		crc := uint32(i)
		for n := 0; n < 8; n++ {
			crc = (crc << 1) ^ ((crc >> 7) * 0x107)
		}

		table[i] = uint8(crc)
	}

	return table
}

func makeCRC16Table() [crcTableLen]uint16 {
	var table [crcTableLen]uint16

	for i := range table {
		crc := uint32(i) << 8
		for n := 0; n < 8; n++ {
			crc = (crc << 1) ^ ((crc >> 15) * 0x18005)
		}

		table[i] = uint16(crc)
	}

	return table
}

func updateCRC8(crc uint8, data []byte) uint8 {
	for _, b := range data {
		crc = crc8Table[crc^b]
	}

	return crc
}

func updateCRC16(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = crc16Table[uint8(crc>>8)^b] ^ (crc << 8)
	}

	return crc
}
