/*
NAME
  reassembler_test.go

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
	"bytes"
	"testing"
)

func TestReassemblerAccumulatesUntilNextPUSI(t *testing.T) {
	r := newReassembler()

	_, done := r.handleSlice(0x100, StreamTypeH264, true, []byte("AAA"))
	if done {
		t.Fatalf("first PUSI slice reported done, want false (nothing to flush yet)")
	}

	_, done = r.handleSlice(0x100, StreamTypeH264, false, []byte("BBB"))
	if done {
		t.Fatalf("continuation slice reported done, want false")
	}

	out, done := r.handleSlice(0x100, StreamTypeH264, true, []byte("CCC"))
	if !done {
		t.Fatalf("second PUSI slice did not flush the accumulated PES")
	}
	if out.PID != 0x100 || out.StreamType != StreamTypeH264 {
		t.Errorf("completedPES = %+v, want PID 0x100 StreamTypeH264", out)
	}
	if !bytes.Equal(out.Payload, []byte("AAABBB")) {
		t.Errorf("Payload = %q, want %q", out.Payload, "AAABBB")
	}
}

func TestReassemblerDropsContinuationWithoutStart(t *testing.T) {
	r := newReassembler()

	_, done := r.handleSlice(0x100, StreamTypeH264, false, []byte("orphan"))
	if done {
		t.Errorf("continuation slice with no prior PUSI reported done, want false")
	}
}

func TestReassemblerTracksPIDsIndependently(t *testing.T) {
	r := newReassembler()

	r.handleSlice(0x100, StreamTypeH264, true, []byte("video1"))
	r.handleSlice(0x101, StreamTypeADTSAAC, true, []byte("audio1"))
	r.handleSlice(0x100, StreamTypeH264, false, []byte("-more"))

	out, done := r.handleSlice(0x101, StreamTypeADTSAAC, true, []byte("audio2"))
	if !done || out.PID != 0x101 {
		t.Fatalf("audio PID flush = %+v (done=%v), want PID 0x101", out, done)
	}
	if !bytes.Equal(out.Payload, []byte("audio1")) {
		t.Errorf("audio Payload = %q, want %q", out.Payload, "audio1")
	}

	out, done = r.handleSlice(0x100, StreamTypeH264, true, []byte("video2"))
	if !done || !bytes.Equal(out.Payload, []byte("video1-more")) {
		t.Errorf("video Payload = %q (done=%v), want %q (true)", out.Payload, done, "video1-more")
	}
}

func TestReassemblerReset(t *testing.T) {
	r := newReassembler()
	r.handleSlice(0x100, StreamTypeH264, true, []byte("data"))
	r.reset()

	_, done := r.handleSlice(0x100, StreamTypeH264, false, []byte("continuation"))
	if done {
		t.Errorf("continuation slice after reset reported done, want false (queue cleared)")
	}
}
