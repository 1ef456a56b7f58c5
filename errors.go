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

import "errors"

// Public sentinel errors for consumer error matching.
var (
	// ErrFormat indicates malformed stream data (bad sync code, violated
	// reserved bits, invalid coded numbers, reserved code values). It is
	// always surfaced, never silently recovered.
	ErrFormat = errors.New("flac: invalid stream data")

	// ErrCRCMismatch indicates a checksum failure. Errors produced by the
	// frame header codec match both ErrCRCMismatch and ErrFormat.
	ErrCRCMismatch = errors.New("flac: crc mismatch")

	// ErrInvalid indicates field values that cannot be represented in the
	// wire format (out-of-range metadata fields, unordered seek points).
	ErrInvalid = errors.New("flac: invalid field value")

	// ErrNoTrack indicates no usable FLAC track was found in an MP4
	// container.
	ErrNoTrack = errors.New("flac: no track found")
)
