/*
NAME
  reassembler.go - reassembles PES packets from TS payload slices.

DESCRIPTION
  reassembler.go accumulates TS payload slices per-PID until the next
  payload_unit_start_indicator marks a new PES packet, since the
  PES_packet_length field is not authoritative for TS-carried video (it
  may be 0, meaning "until the next start"). Each accepted slice is
  copied, per the per-slice-copy discipline this module prefers over
  pinning the caller's chunk across parse_chunk calls.

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

// pesQueue accumulates the payload slices of one in-progress PES packet
// on a single PID.
type pesQueue struct {
	slices     [][]byte
	totalLen   int
	streamType StreamType
}

func (q *pesQueue) append(slice []byte) {
	cp := make([]byte, len(slice))
	copy(cp, slice)
	q.slices = append(q.slices, cp)
	q.totalLen += len(cp)
}

// coalesce concatenates the queue's slices into one contiguous buffer.
func (q *pesQueue) coalesce() []byte {
	buf := make([]byte, 0, q.totalLen)
	for _, s := range q.slices {
		buf = append(buf, s...)
	}
	return buf
}

// reassembler tracks one pesQueue per PID being demuxed.
type reassembler struct {
	queues map[uint16]*pesQueue
}

func newReassembler() *reassembler {
	return &reassembler{queues: make(map[uint16]*pesQueue)}
}

// completedPES is a fully reassembled PES packet awaiting header parsing.
type completedPES struct {
	PID        uint16
	StreamType StreamType
	Payload    []byte
}

// handleSlice admits one TS payload slice for pid, tagged with the PMT's
// stream_type for that PID, returning a completedPES whenever this slice's
// payload_unit_start_indicator closes out a previously accumulating queue.
func (r *reassembler) handleSlice(pid uint16, streamType StreamType, pusi bool, slice []byte) (completedPES, bool) {
	if !pusi {
		q, ok := r.queues[pid]
		if !ok {
			// No start seen yet on this PID; drop silently.
			return completedPES{}, false
		}
		q.append(slice)
		return completedPES{}, false
	}

	var out completedPES
	var flushed bool
	if q, ok := r.queues[pid]; ok && q.totalLen > 0 {
		out = completedPES{PID: pid, StreamType: q.streamType, Payload: q.coalesce()}
		flushed = true
	}

	fresh := &pesQueue{streamType: streamType}
	fresh.append(slice)
	r.queues[pid] = fresh

	return out, flushed
}

// reset discards all in-progress queues, e.g. on reset_media_info.
func (r *reassembler) reset() {
	r.queues = make(map[uint16]*pesQueue)
}
