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

package flac_test

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	flac "github.com/mycophonic/saprobe-flac"
	"github.com/mycophonic/saprobe-flac/bitio"
)

func sampleSeekTable() *flac.SeekTable {
	return &flac.SeekTable{
		Points: []flac.SeekPoint{
			{SampleOffset: 0, FileOffset: 0, FrameSamples: 4096},
			{SampleOffset: 4096, FileOffset: 10000, FrameSamples: 4096},
			{SampleOffset: 8192, FileOffset: 20000, FrameSamples: 4096},
			{SampleOffset: flac.PlaceholderSampleOffset, FileOffset: 0, FrameSamples: 0},
		},
	}
}

func TestSeekTableRoundtrip(t *testing.T) {
	t.Parallel()

	want := sampleSeekTable()

	var sink bytes.Buffer

	bw := bitio.NewWriter(&sink)
	if err := want.Write(true, bw); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := bw.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// Last flag set, block type 3, length 4 * 18.
	if header := sink.Bytes()[:4]; !bytes.Equal(header, []byte{0x83, 0x00, 0x00, 0x48}) {
		t.Fatalf("block header = %#x, want 0x83000048", header)
	}

	got, err := flac.ParseSeekTable(sink.Bytes()[4:])
	if err != nil {
		t.Fatalf("ParseSeekTable: %v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("roundtrip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestParseSeekTablePartialPoint(t *testing.T) {
	t.Parallel()

	_, err := flac.ParseSeekTable(make([]byte, 19))
	if !errors.Is(err, flac.ErrFormat) {
		t.Fatalf("expected ErrFormat for a partial seek point, got: %v", err)
	}
}

func TestParseSeekTableEmpty(t *testing.T) {
	t.Parallel()

	table, err := flac.ParseSeekTable(nil)
	if err != nil {
		t.Fatalf("ParseSeekTable: %v", err)
	}

	if len(table.Points) != 0 {
		t.Fatalf("Points = %d, want none", len(table.Points))
	}
}

func TestSeekTableCheckValues(t *testing.T) {
	t.Parallel()

	if err := sampleSeekTable().CheckValues(); err != nil {
		t.Fatalf("CheckValues on valid table: %v", err)
	}

	// Equal sample offsets violate strict ordering.
	dup := &flac.SeekTable{
		Points: []flac.SeekPoint{
			{SampleOffset: 100, FileOffset: 0},
			{SampleOffset: 100, FileOffset: 10},
		},
	}
	if err := dup.CheckValues(); !errors.Is(err, flac.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for duplicate sample offsets, got: %v", err)
	}

	// File offsets may repeat but not decrease.
	flat := &flac.SeekTable{
		Points: []flac.SeekPoint{
			{SampleOffset: 0, FileOffset: 50},
			{SampleOffset: 100, FileOffset: 50},
		},
	}
	if err := flat.CheckValues(); err != nil {
		t.Fatalf("CheckValues on equal file offsets: %v", err)
	}

	back := &flac.SeekTable{
		Points: []flac.SeekPoint{
			{SampleOffset: 0, FileOffset: 50},
			{SampleOffset: 100, FileOffset: 49},
		},
	}
	if err := back.CheckValues(); !errors.Is(err, flac.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for decreasing file offsets, got: %v", err)
	}
}

func TestSeekTableWriteRejectsUnordered(t *testing.T) {
	t.Parallel()

	table := &flac.SeekTable{
		Points: []flac.SeekPoint{
			{SampleOffset: 200, FileOffset: 0},
			{SampleOffset: 100, FileOffset: 10},
		},
	}

	err := table.Write(false, bitio.NewWriter(&bytes.Buffer{}))
	if !errors.Is(err, flac.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got: %v", err)
	}
}
