/*
NAME
  streamtype.go - PMT stream_type enumeration.

DESCRIPTION
  streamtype.go enumerates the elementary stream types this demuxer
  recognises. Values match ISO/IEC 13818-1 table 2-34 (and, for SCTE-35,
  the ANSI/SCTE 35 registered stream type) - the same registry the
  teacher's github.com/Comcast/gots package draws its stream-type and
  stream-id constants from.

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

// StreamType identifies the coding of an elementary stream as carried in a
// PMT elementary_stream_info record.
type StreamType byte

// Recognised stream types. StreamTypeOther covers everything else; the
// core still records such PIDs in PMT.StreamTypes, it just has no
// dedicated callback or common-PID slot for them.
const (
	StreamTypeMPEG1Audio   StreamType = 0x03
	StreamTypeMPEG2Audio   StreamType = 0x04
	StreamTypePESPrivate   StreamType = 0x06
	StreamTypeADTSAAC      StreamType = 0x0F
	StreamTypeID3          StreamType = 0x15
	StreamTypeH264         StreamType = 0x1B
	StreamTypeH265         StreamType = 0x24
	StreamTypeSCTE35       StreamType = 0x86
	StreamTypeOther        StreamType = 0xFF // sentinel, never a real wire value
)

// String renders a human-readable name for logging.
func (t StreamType) String() string {
	switch t {
	case StreamTypeMPEG1Audio:
		return "mpeg1-audio"
	case StreamTypeMPEG2Audio:
		return "mpeg2-audio"
	case StreamTypePESPrivate:
		return "pes-private-data"
	case StreamTypeADTSAAC:
		return "adts-aac"
	case StreamTypeID3:
		return "id3"
	case StreamTypeH264:
		return "h264"
	case StreamTypeH265:
		return "h265"
	case StreamTypeSCTE35:
		return "scte35"
	default:
		return "unknown"
	}
}
