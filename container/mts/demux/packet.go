/*
NAME
  packet.go - decodes individual MPEG-TS packet headers and locates payload.

DESCRIPTION
  packet.go walks a byte chunk packet-by-packet, decoding the 4-byte TS
  header fields documented in container/mts.Packet, and computing the
  start of the payload after any adaptation field. Unlike mts.Packet
  (which is built for the encoder and expects a pre-sliced 188-byte
  array) this operates directly on a caller-held byte offset into a
  chunk that may hold many packets, or a partial one at its tail.

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

// Adaptation field control values (TS header octet 3, bits 5-4).
const (
	afcReserved       = 0x0
	afcPayloadOnly    = 0x1
	afcAdaptationOnly = 0x2
	afcBoth           = 0x3
)

// bodySize is the canonical TS packet body size that header decoding always
// operates on, regardless of whether the stream uses 188 or 192-byte
// framing; the 192-byte mode's extra 4 bytes live before the sync byte and
// are skipped by starting iteration at the probe-reported sync offset.
const bodySize = PacketSize188

// ErrDesync is returned when a packet's first byte is not SyncByte; the
// caller should stop iterating the current chunk.
var ErrDesync = errors.New("mts/demux: sync byte mismatch")

// tsHeader holds the fields of a TS packet header relevant to demuxing.
// TransportPriority is decoded but, per the original stream's own source,
// never consulted by any decision in this package.
type tsHeader struct {
	PUSI              bool
	TransportPriority bool
	PID               uint16
	AFC               byte
	CC                byte
}

// parsedPacket is the result of decoding one TS packet body.
type parsedPacket struct {
	Header     tsHeader
	Payload    []byte // nil when the packet carries no payload
	HasPayload bool
}

// parsePacket decodes the TS header from the first 4 bytes of body (which
// must be at least bodySize long) and returns the packet's payload range,
// if any.
func parsePacket(body []byte) (parsedPacket, error) {
	if len(body) < bodySize {
		return parsedPacket{}, errors.New("mts/demux: short packet body")
	}
	if body[0] != SyncByte {
		return parsedPacket{}, ErrDesync
	}

	h := tsHeader{
		PUSI:              body[1]&0x40 != 0,
		TransportPriority: body[1]&0x20 != 0,
		PID:               uint16(body[1]&0x1F)<<8 | uint16(body[2]),
		AFC:               (body[3] >> 4) & 0x3,
		CC:                body[3] & 0xF,
	}

	switch h.AFC {
	case afcReserved:
		return parsedPacket{Header: h}, nil

	case afcPayloadOnly:
		return parsedPacket{Header: h, Payload: body[4:bodySize], HasPayload: true}, nil

	case afcAdaptationOnly:
		afl := int(body[4])
		if 5+afl == bodySize {
			// Adaptation field (plus its length byte) fills the rest of
			// the packet; there is no payload to extract.
			return parsedPacket{Header: h}, nil
		}
		start := 4 + 1 + afl
		if start > bodySize {
			return parsedPacket{}, errors.New("mts/demux: adaptation field length overruns packet")
		}
		return parsedPacket{Header: h, Payload: body[start:bodySize], HasPayload: true}, nil

	case afcBoth:
		afl := int(body[4])
		start := 4 + 1 + afl
		if start > bodySize {
			return parsedPacket{}, errors.New("mts/demux: adaptation field length overruns packet")
		}
		return parsedPacket{Header: h, Payload: body[start:bodySize], HasPayload: true}, nil

	default:
		panic("unreachable: AFC is 2 bits")
	}
}

// packetIterator walks a chunk one packet at a time at a fixed stride
// (either 188 or 192, per the probe result), always decoding the
// 188-byte canonical body that starts at each step's offset.
type packetIterator struct {
	stride int
}

func newPacketIterator(packetSize int) packetIterator {
	return packetIterator{stride: packetSize}
}

// next decodes the packet at chunk[offset:] and returns it along with the
// offset of the following packet. ok is false when chunk does not hold a
// full packet at offset, in which case the caller should stop and await
// more data starting at offset.
func (it packetIterator) next(chunk []byte, offset int) (pkt parsedPacket, nextOffset int, ok bool, err error) {
	if offset+it.stride > len(chunk) {
		return parsedPacket{}, offset, false, nil
	}
	pkt, err = parsePacket(chunk[offset : offset+bodySize])
	return pkt, offset + it.stride, true, err
}

// pointerFieldSkip returns the number of bytes to skip, from the start of a
// PSI-bearing payload whose payload_unit_start_indicator is set, before the
// table section begins: the pointer_field byte itself plus pointer_field
// additional filler bytes.
func pointerFieldSkip(payload []byte) (int, error) {
	if len(payload) < 1 {
		return 0, errors.New("mts/demux: empty PSI payload")
	}
	skip := 1 + int(payload[0])
	if skip > len(payload) {
		return 0, errors.New("mts/demux: pointer field overruns payload")
	}
	return skip, nil
}
