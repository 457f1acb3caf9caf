/*
NAME
  pat.go - Program Association Table decoding.

DESCRIPTION
  pat.go decodes PAT sections (table_id 0x00) into the program_number ->
  PMT-PID mapping the facade uses to know which PIDs carry PMTs. Field
  layout follows ISO/IEC 13818-1 table 2-25/2-26, the same bit packing
  container/mts/psi.PSI/PAT already use on the encode side.

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

import "github.com/pkg/errors"

const patTableID = 0x00

// PAT is the decoded state of a Program Association Table.
type PAT struct {
	Version       uint8
	NetworkPID    uint16
	HasNetworkPID bool
	ProgramMap    map[uint16]uint16 // program_number -> PMT PID
}

// patAccept describes the outcome of parsing one PAT section against the
// facade's current PAT state.
type patAccept struct {
	pat          *PAT
	fresh        bool   // a new PAT (new version) was allocated by this section
	firstProgram uint16 // first non-zero program_number seen, valid iff fresh
	firstPID     uint16 // PMT PID for firstProgram, valid iff fresh
}

// ErrTableMismatch is returned when a section's table_id does not match
// the parser being invoked.
var ErrTableMismatch = errors.New("mts/demux: unexpected table_id")

// parsePATSection decodes a single PAT section (table body starting at the
// table_id byte, i.e. payload with the pointer field already skipped)
// against the current PAT cur (nil if none seen yet).
func parsePATSection(section []byte, cur *PAT) (patAccept, error) {
	if len(section) < 8 {
		return patAccept{pat: cur}, errors.New("mts/demux: PAT section too short")
	}
	if section[0] != patTableID {
		return patAccept{pat: cur}, ErrTableMismatch
	}

	sectionLength := int(section[1]&0x0F)<<8 | int(section[2])
	version := (section[5] >> 1) & 0x1F
	currentNext := section[5]&0x1 != 0
	sectionNumber := section[6]

	fresh := currentNext && sectionNumber == 0
	if !fresh {
		if cur == nil {
			// No PAT established yet and this section doesn't establish
			// one either; nothing to update.
			return patAccept{}, nil
		}
		return patAccept{pat: cur}, nil
	}

	pat := &PAT{Version: version, ProgramMap: make(map[uint16]uint16)}

	recordsEnd := 8 + (sectionLength - 5 - 4)
	if recordsEnd > len(section) {
		recordsEnd = len(section)
	}
	if recordsEnd < 8 {
		recordsEnd = 8
	}

	var firstProgram, firstPID uint16
	haveFirst := false
	for i := 8; i+4 <= recordsEnd; i += 4 {
		program := uint16(section[i])<<8 | uint16(section[i+1])
		pid := uint16(section[i+2]&0x1F)<<8 | uint16(section[i+3])
		if program == 0 {
			pat.NetworkPID = pid
			pat.HasNetworkPID = true
			continue
		}
		pat.ProgramMap[program] = pid
		if !haveFirst {
			firstProgram, firstPID = program, pid
			haveFirst = true
		}
	}

	return patAccept{pat: pat, fresh: true, firstProgram: firstProgram, firstPID: firstPID}, nil
}
