/*
NAME
  discontinuity.go - continuity_counter gap detection.

DESCRIPTION
  discontinuity.go tracks, per PID, the continuity_counter expected on
  the next packet carrying a payload, and reports a gap rather than
  silently repairing one. This is the decode-side counterpart of
  the teacher's encode-side DiscontinuityRepairer, which rewrote the
  adaptation field's discontinuity indicator; a demuxer has no stream to
  rewrite, so it only surfaces the gap through on_error.

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

import "fmt"

// noExpectation marks a PID whose continuity_counter has not yet been
// observed, mirroring the teacher's DiscontinuityRepairer's use of 16
// (one past the 4-bit counter's range) as an "unset" sentinel.
const noExpectation = 16

// discontinuityTracker observes continuity_counter and reports a gap the
// first time a PID's counter skips a value it wasn't allowed to: per
// ISO/IEC 13818-1, a packet with adaptation_field_control indicating no
// payload must not increment continuity_counter, which hasPayload
// captures.
type discontinuityTracker struct {
	expected map[uint16]int
}

func newDiscontinuityTracker() *discontinuityTracker {
	return &discontinuityTracker{expected: make(map[uint16]int)}
}

// observe records one packet's continuity_counter for pid and reports
// whether it broke continuity, along with a human-readable description
// of the gap.
func (t *discontinuityTracker) observe(pid uint16, cc byte, hasPayload bool) (string, bool) {
	exp, known := t.expected[pid]
	if !known {
		exp = noExpectation
	}

	// A packet without payload repeats the previous counter instead of
	// advancing it.
	want := exp
	if !hasPayload {
		want = (exp + 15) & 0xF
	}

	var gap bool
	if known && exp != noExpectation && int(cc) != want {
		gap = true
	}

	if hasPayload {
		t.expected[pid] = (int(cc) + 1) & 0xF
	} else {
		t.expected[pid] = exp
	}

	if !gap {
		return "", false
	}
	return fmt.Sprintf("PID 0x%04X: expected continuity_counter %d, got %d", pid, want, cc), true
}
