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
	"io"

	mp4int "github.com/mycophonic/saprobe-flac/internal/mp4"
)

// FrameRange is the byte offset and size of one encoded frame stored as an
// MP4 sample.
type FrameRange = mp4int.FrameRange

// MP4Stream describes a FLAC track extracted from an ISO BMFF (MP4/M4A)
// container: the parsed stream info and the byte range of every frame.
type MP4Stream struct {
	Info   *StreamInfo
	Frames []FrameRange
}

// ReadMP4Stream locates the first FLAC track in an MP4 container and returns
// its stream info and frame table. The frame bytes themselves are left in
// place; callers read them through the ranges.
//
//nolint:varnamelen // rs is idiomatic for io.ReadSeeker
func ReadMP4Stream(rs io.ReadSeeker) (*MP4Stream, error) {
	raw, frames, err := mp4int.FindFLACTrack(rs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTrack, err)
	}

	info, err := ParseStreamInfo(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing stream info: %w", err)
	}

	return &MP4Stream{Info: info, Frames: frames}, nil
}
