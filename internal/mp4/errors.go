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

package mp4

import "errors"

// MP4 container parsing error sentinels.
//
//revive:disable:exported
var (
	ErrNoFLACTrack   = errors.New("mp4: no FLAC track found in container")
	ErrInvalidEntry  = errors.New("mp4: invalid FLAC sample entry")
	ErrInvalidDfLa   = errors.New("mp4: invalid dfLa box payload")
	ErrNoChunkOffset = errors.New("mp4: no chunk offset box (stco/co64)")
	ErrNoStsc        = errors.New("mp4: no stsc box")
	ErrNoStsz        = errors.New("mp4: no stsz box")
)
