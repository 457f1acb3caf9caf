/*
NAME
  probe.go - synchronises onto an unframed MPEG-TS byte stream.

DESCRIPTION
  probe.go implements the sync search described in the demux package's
  design notes: a buffer is MPEG-TS if three equidistant sync bytes can
  be found at one of the two standard packet strides.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package demux provides a streaming MPEG-TS demultiplexer: sync
// detection, PAT/PMT table tracking and PES reassembly with PTS/DTS
// extraction, exposed through a callback-driven facade.
package demux

// SyncByte is the fixed first octet of every MPEG-TS packet.
const SyncByte = 0x47

// Packet sizes recognised by Probe. 188 is the canonical ISO/IEC 13818-1
// size; 192 is the BDAV/M2TS framing where each 188-byte packet is
// prefixed by a 4-byte TP_extra_header.
const (
	PacketSize188 = 188
	PacketSize192 = 192
)

// maxScanWindow bounds how far into the buffer Probe will search for the
// first sync byte, so that probing a large buffer stays cheap.
const maxScanWindow = 1000

// ProbeResult reports the outcome of Probe. A zero-valued ProbeResult has
// Matched false and represents "not MPEG-TS" (or inconclusive: not enough
// data to be sure).
type ProbeResult struct {
	Matched    bool
	PacketSize int
	SyncOffset int
	Consumed   int
}

// Probe inspects b and decides whether it looks like an MPEG-TS stream. It
// requires three packets' worth of data so that it can demand three
// equidistant sync bytes before declaring a match; this avoids false
// positives from a lone 0x47 occurring in arbitrary data.
func Probe(b []byte) ProbeResult {
	if len(b) <= 3*PacketSize188 {
		return ProbeResult{}
	}

	if off, ok := findSync(b, PacketSize188); ok {
		return ProbeResult{Matched: true, PacketSize: PacketSize188, SyncOffset: off}
	}
	if off, ok := findSync(b, PacketSize192); ok {
		return ProbeResult{Matched: true, PacketSize: PacketSize192, SyncOffset: off}
	}
	return ProbeResult{}
}

// findSync searches for the smallest index i within the scan window such
// that b[i], b[i+size] and b[i+2*size] are all sync bytes.
func findSync(b []byte, size int) (int, bool) {
	window := len(b) - 3*size
	if window <= 0 {
		return 0, false
	}
	if window > maxScanWindow {
		window = maxScanWindow
	}
	for i := 0; i < window; i++ {
		if b[i] == SyncByte && b[i+size] == SyncByte && b[i+2*size] == SyncByte {
			return i, true
		}
	}
	return 0, false
}
