/*
NAME
  pmt.go - Program Map Table decoding.

DESCRIPTION
  pmt.go decodes PMT sections (table_id 0x02) into the elementary PID ->
  stream_type map, the distinguished "common" PIDs (H.264, H.265,
  ADTS-AAC), the PES-private-data and timed-metadata PID sets, and - as
  an expansion grounded on container/mts/psi's MetadataTag descriptor
  and container/mts/meta - any free-form metadata carried in the
  program-level descriptor loop.

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
	"github.com/pkg/errors"

	"github.com/ausocean/tsdemux/container/mts/meta"
	"github.com/ausocean/tsdemux/container/mts/psi"
)

const pmtTableID = 0x02

// PMT is the decoded state of a Program Map Table for one program.
type PMT struct {
	Program     uint16
	Version     uint8
	StreamTypes map[uint16]StreamType // elementary PID -> stream_type

	H264PID    uint16
	HasH264PID bool

	H265PID    uint16
	HasH265PID bool

	ADTSAACPID    uint16
	HasADTSAACPID bool

	PESPrivatePIDs map[uint16]struct{}
	ID3PIDs        map[uint16]struct{}
	SCTE35PIDs     map[uint16]struct{}

	// Meta holds any key/value pairs found in the program-level metadata
	// descriptor (tag 0x26), if present.
	Meta map[string]string

	// ESDescriptors holds the raw ES_info descriptor loop bytes for any
	// elementary PID whose ES_info_length was non-zero.
	ESDescriptors map[uint16][]byte
}

func newPMT(program uint16, version uint8) *PMT {
	return &PMT{
		Program:        program,
		Version:        version,
		StreamTypes:    make(map[uint16]StreamType),
		PESPrivatePIDs: make(map[uint16]struct{}),
		ID3PIDs:        make(map[uint16]struct{}),
		SCTE35PIDs:     make(map[uint16]struct{}),
		ESDescriptors:  make(map[uint16][]byte),
	}
}

// pmtAccept describes the outcome of parsing one PMT section.
type pmtAccept struct {
	pmt   *PMT
	fresh bool // a new PMT entry was allocated for pmt.Program
}

// parsePMTSection decodes a single PMT section (table body starting at the
// table_id byte) against an existing PMT for the same program_number, cur
// (nil if none exists yet for that program).
func parsePMTSection(section []byte, cur *PMT) (pmtAccept, error) {
	if len(section) < 12 {
		return pmtAccept{pmt: cur}, errors.New("mts/demux: PMT section too short")
	}
	if section[0] != pmtTableID {
		return pmtAccept{pmt: cur}, ErrTableMismatch
	}

	sectionLength := int(section[1]&0x0F)<<8 | int(section[2])
	program := uint16(section[3])<<8 | uint16(section[4])
	version := (section[5] >> 1) & 0x1F
	currentNext := section[5]&0x1 != 0
	sectionNumber := section[6]

	fresh := currentNext && sectionNumber == 0
	if !fresh {
		if cur == nil {
			return pmtAccept{}, nil
		}
		return pmtAccept{pmt: cur}, nil
	}

	programInfoLength := int(section[10]&0x0F)<<8 | int(section[11])

	pmt := newPMT(program, version)

	descStart := 12
	descEnd := descStart + programInfoLength
	if descEnd > len(section) {
		descEnd = len(section)
	}
	if descEnd > descStart {
		if m, ok := findMetadataDescriptor(section[descStart:descEnd]); ok {
			pmt.Meta = m
		}
	}

	loopStart := 12 + programInfoLength
	loopLen := sectionLength - 9 - programInfoLength - 4
	loopEnd := loopStart + loopLen
	if loopEnd > len(section) {
		loopEnd = len(section)
	}
	if loopEnd < loopStart {
		loopEnd = loopStart
	}

	for i := loopStart; i+5 <= loopEnd; {
		streamType := StreamType(section[i])
		pid := uint16(section[i+1]&0x1F)<<8 | uint16(section[i+2])
		esInfoLength := int(section[i+3]&0x0F)<<8 | int(section[i+4])

		esInfoStart := i + 5
		esInfoEnd := esInfoStart + esInfoLength
		if esInfoEnd > loopEnd {
			esInfoEnd = loopEnd
		}
		if esInfoEnd > esInfoStart {
			pmt.ESDescriptors[pid] = append([]byte(nil), section[esInfoStart:esInfoEnd]...)
		}

		pmt.StreamTypes[pid] = streamType
		switch streamType {
		case StreamTypeH264:
			if !pmt.HasH264PID {
				pmt.H264PID, pmt.HasH264PID = pid, true
			}
		case StreamTypeH265:
			if !pmt.HasH265PID {
				pmt.H265PID, pmt.HasH265PID = pid, true
			}
		case StreamTypeADTSAAC:
			if !pmt.HasADTSAACPID {
				pmt.ADTSAACPID, pmt.HasADTSAACPID = pid, true
			}
		case StreamTypePESPrivate:
			pmt.PESPrivatePIDs[pid] = struct{}{}
		case StreamTypeID3:
			pmt.ID3PIDs[pid] = struct{}{}
		case StreamTypeSCTE35:
			pmt.SCTE35PIDs[pid] = struct{}{}
		}

		i += 5 + esInfoLength
	}

	return pmtAccept{pmt: pmt, fresh: true}, nil
}

// findMetadataDescriptor scans a program-descriptor-loop byte range for the
// metadata descriptor (tag psi.MetadataTag) and, if found, decodes it with
// meta.GetAllAsMap.
func findMetadataDescriptor(descriptors []byte) (map[string]string, bool) {
	for i := 0; i+2 <= len(descriptors); {
		tag := descriptors[i]
		length := int(descriptors[i+1])
		end := i + 2 + length
		if end > len(descriptors) {
			break
		}
		if tag == psi.MetadataTag {
			m, err := meta.GetAllAsMap(descriptors[i+2 : end])
			if err == nil {
				return m, true
			}
			return nil, false
		}
		i = end
	}
	return nil, false
}

// IsTrackedPID reports whether pid is one this demuxer's PES reassembler
// should admit slices for: the H.264/H.265 video PID, the ADTS-AAC audio
// PID, or a PES-private-data/timed-metadata/SCTE-35 PID.
func (p *PMT) IsTrackedPID(pid uint16) bool {
	if p == nil {
		return false
	}
	if p.HasH264PID && p.H264PID == pid {
		return true
	}
	if p.HasH265PID && p.H265PID == pid {
		return true
	}
	if p.HasADTSAACPID && p.ADTSAACPID == pid {
		return true
	}
	if _, ok := p.PESPrivatePIDs[pid]; ok {
		return true
	}
	if _, ok := p.ID3PIDs[pid]; ok {
		return true
	}
	if _, ok := p.SCTE35PIDs[pid]; ok {
		return true
	}
	return false
}
