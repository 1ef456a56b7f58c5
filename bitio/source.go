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

// A Reader pulls bytes from any io.Reader. Two capabilities are optional and
// discovered by interface assertion on the source:
//
//   - io.Seeker enables Reader.SeekTo (absolute byte repositioning).
//   - Sizer enables Reader.Length (total stream length, for blind seeking
//     without a seek table).
//
// A source lacking a capability makes the corresponding Reader method return
// ErrUnsupported. bytes.Reader and strings.Reader provide both; os.File
// provides seeking.

// Sizer is the optional capability of reporting the total number of bytes in
// the underlying data.
type Sizer interface {
	Size() int64
}
