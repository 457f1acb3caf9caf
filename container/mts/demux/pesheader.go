/*
NAME
  pesheader.go - decodes a PES packet header.

DESCRIPTION
  pesheader.go decodes the fixed and optional portions of a PES packet
  header from a fully reassembled PES packet, following the same octet
  layout container/mts/pes.Packet encodes. Unlike the encode side (and
  unlike the gots-derived decode helper this is grounded on) it
  validates every PTS/DTS marker bit and rejects the packet as
  malformed on mismatch rather than trusting the stream.

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

// PTS/DTS indicator values (PES header octet 7, bits 7-6).
const (
	ptsDTSNone = 0x0
	ptsDTSOnly = 0x2
	ptsDTSBoth = 0x3
)

// Stream IDs whose PES packets carry no optional header (octets 6 onward
// are data directly), per ISO/IEC 13818-1 table 2-21.
const (
	streamIDProgramStreamMap    = 0xBC
	streamIDPaddingStream       = 0xBE
	streamIDPrivateStream2      = 0xBF
	streamIDECM                 = 0xF0
	streamIDEMM                 = 0xF1
	streamIDDSMCC               = 0xF2
	streamIDH2221TypeE          = 0xF8
	streamIDProgramStreamDirect = 0xFF
)

// MalformedPES reports a PES header that failed a structural check: a bad
// start code, a truncated optional header, or a PTS/DTS marker-bit
// pattern that didn't match the fixed template.
type MalformedPES struct {
	Reason string
}

func (e *MalformedPES) Error() string {
	return "mts/demux: malformed PES header: " + e.Reason
}

// PESHeader is the decoded header of one PES packet.
type PESHeader struct {
	StreamID        byte
	PacketLength    uint16 // 0 means "unspecified", as is normal for video
	DataAlignment   bool
	PTSDTSIndicator byte
	PTS             uint64
	HasPTS          bool
	DTS             uint64
	HasDTS          bool
	Data            []byte
}

// parsePESHeader decodes a PES packet header from the start of b, which
// must begin with the 3-byte start code prefix 0x000001.
func parsePESHeader(b []byte) (PESHeader, error) {
	if len(b) < 6 {
		return PESHeader{}, &MalformedPES{Reason: "shorter than fixed header"}
	}
	if b[0] != 0x00 || b[1] != 0x00 || b[2] != 0x01 {
		return PESHeader{}, &MalformedPES{Reason: "bad start code prefix"}
	}

	h := PESHeader{
		StreamID:     b[3],
		PacketLength: uint16(b[4])<<8 | uint16(b[5]),
	}

	if !pesHasOptionalHeader(h.StreamID) {
		return h, nil
	}

	if len(b) < 9 {
		return PESHeader{}, &MalformedPES{Reason: "truncated before optional header"}
	}
	if b[6]&0xC0 != 0x80 {
		return PESHeader{}, &MalformedPES{Reason: "bad optional header marker bits"}
	}

	h.DataAlignment = b[6]&0x04 != 0
	h.PTSDTSIndicator = (b[7] >> 6) & 0x3
	headerLength := int(b[8])
	dataStart := 9 + headerLength
	if dataStart > len(b) {
		return PESHeader{}, &MalformedPES{Reason: "header_data_length overruns packet"}
	}

	switch h.PTSDTSIndicator {
	case ptsDTSNone:
		// Nothing to extract.

	case ptsDTSOnly:
		if headerLength < 5 || 9+5 > len(b) {
			return PESHeader{}, &MalformedPES{Reason: "truncated PTS"}
		}
		pts, err := extractTimestamp(b[9:14], 0x2)
		if err != nil {
			return PESHeader{}, err
		}
		h.PTS, h.HasPTS = pts, true

	case ptsDTSBoth:
		if headerLength < 10 || 9+10 > len(b) {
			return PESHeader{}, &MalformedPES{Reason: "truncated PTS/DTS"}
		}
		pts, err := extractTimestamp(b[9:14], 0x3)
		if err != nil {
			return PESHeader{}, err
		}
		dts, err := extractTimestamp(b[14:19], 0x1)
		if err != nil {
			return PESHeader{}, err
		}
		h.PTS, h.HasPTS = pts, true
		h.DTS, h.HasDTS = dts, true

	default:
		return PESHeader{}, &MalformedPES{Reason: "reserved PTS_DTS_flags value 01"}
	}

	if h.PacketLength != 0 {
		if int(h.PacketLength) < 3+headerLength {
			return PESHeader{}, &MalformedPES{Reason: "PES_packet_length shorter than header"}
		}
		payloadLength := int(h.PacketLength) - 3 - headerLength
		end := dataStart + payloadLength
		if end > len(b) {
			return PESHeader{}, &MalformedPES{Reason: "PES_packet_length overruns buffer"}
		}
		h.Data = b[dataStart:end]
		return h, nil
	}

	h.Data = b[dataStart:]
	return h, nil
}

// pesHasOptionalHeader reports whether a PES packet for streamID carries
// the optional-header octets (6 onward), per ISO/IEC 13818-1 2.4.3.7.
func pesHasOptionalHeader(streamID byte) bool {
	switch streamID {
	case streamIDProgramStreamMap, streamIDPaddingStream, streamIDPrivateStream2,
		streamIDECM, streamIDEMM, streamIDDSMCC, streamIDH2221TypeE, streamIDProgramStreamDirect:
		return false
	default:
		return true
	}
}

// extractTimestamp decodes a 5-byte 33-bit timestamp field and validates
// every marker bit against prefix, the 4-bit value that must open the
// field (0x2 for a lone PTS, 0x3 for PTS when DTS follows, 0x1 for DTS).
// Real encoders, including this module's own fixture encoder, always
// write these bits; a mismatch means the reassembled PES packet is
// corrupt, truncated, or misaligned.
func extractTimestamp(b []byte, prefix byte) (uint64, error) {
	if b[0]>>4 != prefix {
		return 0, &MalformedPES{Reason: "bad timestamp prefix bits"}
	}
	if b[0]&0x1 != 1 || b[2]&0x1 != 1 || b[4]&0x1 != 1 {
		return 0, &MalformedPES{Reason: "bad timestamp marker bit"}
	}
	a := uint64((b[0] >> 1) & 0x07)
	bb := uint64(b[1])
	c := uint64((b[2] >> 1) & 0x7F)
	d := uint64(b[3])
	e := uint64((b[4] >> 1) & 0x7F)
	return (a << 30) | (bb << 22) | (c << 15) | (d << 7) | e, nil
}
