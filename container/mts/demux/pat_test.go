/*
NAME
  pat_test.go

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package demux

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// patSection builds a minimal PAT section body (post pointer-field) with a
// single program_number -> PMT PID record.
func patSection(version uint8, program, pmtPID uint16) []byte {
	sectionLength := 5 + 4 + 4 // header remainder + one record + CRC
	b := []byte{
		patTableID,
		0xB0 | byte(sectionLength>>8&0x0F),
		byte(sectionLength),
		0x00, 0x01, // transport_stream_id
		0xC1 | version<<1, // reserved | version | current_next_indicator
		0x00,               // section_number
		0x00,               // last_section_number
		byte(program >> 8), byte(program),
		byte(0xE0 | pmtPID>>8&0x1F), byte(pmtPID),
		0, 0, 0, 0, // CRC placeholder, not checked by parsePATSection
	}
	return b
}

func TestParsePATSection(t *testing.T) {
	section := patSection(0, 1, 0x1000)

	accept, err := parsePATSection(section, nil)
	if err != nil {
		t.Fatalf("parsePATSection returned error: %v", err)
	}
	if !accept.fresh {
		t.Fatalf("accept.fresh = false, want true")
	}

	want := &PAT{
		Version:    0,
		ProgramMap: map[uint16]uint16{1: 0x1000},
	}
	if diff := cmp.Diff(want, accept.pat); diff != "" {
		t.Errorf("parsePATSection() mismatch (-want +got):\n%s", diff)
	}
	if accept.firstProgram != 1 || accept.firstPID != 0x1000 {
		t.Errorf("firstProgram/firstPID = %d/%d, want 1/0x1000", accept.firstProgram, accept.firstPID)
	}
}

func TestParsePATSectionWrongTable(t *testing.T) {
	section := patSection(0, 1, 0x1000)
	section[0] = 0x02

	_, err := parsePATSection(section, nil)
	if !errors.Is(err, ErrTableMismatch) {
		t.Errorf("parsePATSection() error = %v, want ErrTableMismatch", err)
	}
}

func TestParsePATSectionNetworkPID(t *testing.T) {
	section := patSection(0, 0, 0x10) // program_number 0 means network PID.

	accept, err := parsePATSection(section, nil)
	if err != nil {
		t.Fatalf("parsePATSection returned error: %v", err)
	}
	if !accept.pat.HasNetworkPID || accept.pat.NetworkPID != 0x10 {
		t.Errorf("NetworkPID = %d (has=%v), want 0x10 (true)", accept.pat.NetworkPID, accept.pat.HasNetworkPID)
	}
	if len(accept.pat.ProgramMap) != 0 {
		t.Errorf("ProgramMap = %v, want empty", accept.pat.ProgramMap)
	}
}

func TestParsePATSectionNonFirstKeepsCurrent(t *testing.T) {
	cur := &PAT{Version: 2, ProgramMap: map[uint16]uint16{1: 0x1000}}

	// section_number 1 (not the first of a new table) must not replace cur.
	section := patSection(2, 1, 0x1000)
	section[6] = 1

	accept, err := parsePATSection(section, cur)
	if err != nil {
		t.Fatalf("parsePATSection returned error: %v", err)
	}
	if accept.fresh {
		t.Errorf("accept.fresh = true, want false")
	}
	if accept.pat != cur {
		t.Errorf("parsePATSection() returned a different *PAT than cur")
	}
}
