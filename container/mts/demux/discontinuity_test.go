/*
NAME
  discontinuity_test.go

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

import "testing"

func TestDiscontinuityTrackerNoGap(t *testing.T) {
	tr := newDiscontinuityTracker()

	for cc := byte(0); cc < 5; cc++ {
		if _, gap := tr.observe(0x100, cc, true); gap {
			t.Fatalf("observe(cc=%d) reported a gap on a monotonic sequence", cc)
		}
	}
}

func TestDiscontinuityTrackerDetectsGap(t *testing.T) {
	tr := newDiscontinuityTracker()

	tr.observe(0x100, 0, true)
	tr.observe(0x100, 1, true)
	_, gap := tr.observe(0x100, 5, true) // skipped 2, 3, 4.
	if !gap {
		t.Errorf("observe() did not report a gap after a continuity_counter skip")
	}
}

func TestDiscontinuityTrackerIgnoresNoPayloadPackets(t *testing.T) {
	tr := newDiscontinuityTracker()

	tr.observe(0x100, 0, true)
	// A packet with no payload must not advance the expected counter, so
	// repeating the same cc on such a packet is not a gap.
	tr.observe(0x100, 0, false)
	_, gap := tr.observe(0x100, 1, true)
	if gap {
		t.Errorf("observe() reported a gap across a no-payload packet that shouldn't affect continuity")
	}
}

func TestDiscontinuityTrackerWrapsAtCCMax(t *testing.T) {
	tr := newDiscontinuityTracker()

	tr.observe(0x100, 15, true)
	_, gap := tr.observe(0x100, 0, true) // continuity_counter wraps 15 -> 0.
	if gap {
		t.Errorf("observe() reported a gap on a normal 15->0 continuity_counter wrap")
	}
}

func TestDiscontinuityTrackerPerPID(t *testing.T) {
	tr := newDiscontinuityTracker()

	tr.observe(0x100, 0, true)
	tr.observe(0x101, 0, true)
	// Advancing one PID must not affect another.
	_, gap := tr.observe(0x101, 1, true)
	if gap {
		t.Errorf("observe() reported a cross-PID gap")
	}
}
