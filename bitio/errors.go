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

import "errors"

// Bitstream error sentinels.
//
//revive:disable:exported
var (
	// ErrEndOfData indicates the byte source was exhausted in the middle of
	// a multi-bit read. A clean end of stream at a byte boundary is reported
	// as io.EOF by ReadByte instead.
	ErrEndOfData = errors.New("bitio: unexpected end of data")

	// ErrClosed indicates a read or write on a closed Reader or Writer.
	ErrClosed = errors.New("bitio: closed")

	// ErrUnsupported indicates the byte source does not provide an optional
	// capability (seeking, length query). It is a distinct outcome, not a
	// malformed-stream condition.
	ErrUnsupported = errors.New("bitio: capability not supported by source")

	// ErrResidualOverflow indicates a Rice-coded residual whose decoded
	// magnitude would exceed 53 signed bits. The stream is malformed;
	// downstream fixed-width arithmetic cannot proceed safely.
	ErrResidualOverflow = errors.New("bitio: rice residual value too large")
)
