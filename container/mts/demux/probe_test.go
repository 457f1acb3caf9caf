/*
NAME
  probe_test.go

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

// packetsAt builds n packets of size stride, each starting with SyncByte,
// starting at byte offset off within the returned buffer.
func packetsAt(off, stride, n int) []byte {
	buf := make([]byte, off+stride*n)
	for i := 0; i < n; i++ {
		buf[off+i*stride] = SyncByte
	}
	return buf
}

var probeTests = []struct {
	name string
	buf  []byte
	want ProbeResult
}{
	{
		name: "188-byte aligned at zero",
		buf:  packetsAt(0, PacketSize188, 4),
		want: ProbeResult{Matched: true, PacketSize: PacketSize188, SyncOffset: 0},
	},
	{
		name: "188-byte aligned with leading junk",
		buf:  packetsAt(5, PacketSize188, 4),
		want: ProbeResult{Matched: true, PacketSize: PacketSize188, SyncOffset: 5},
	},
	{
		name: "192-byte M2TS framing",
		buf:  packetsAt(4, PacketSize192, 4),
		want: ProbeResult{Matched: true, PacketSize: PacketSize192, SyncOffset: 4},
	},
	{
		name: "too short to be conclusive",
		buf:  make([]byte, 10),
		want: ProbeResult{},
	},
	{
		name: "no sync bytes at all",
		buf:  make([]byte, 4*PacketSize188),
		want: ProbeResult{},
	},
}

func TestProbe(t *testing.T) {
	for _, test := range probeTests {
		got := Probe(test.buf)
		if got != test.want {
			t.Errorf("%s: Probe() = %+v, want %+v", test.name, got, test.want)
		}
	}
}

func TestProbePrefers188(t *testing.T) {
	// A buffer that also satisfies the 192-byte stride at offset 0 must
	// still be reported as 188, since Probe tries 188 first.
	buf := packetsAt(0, PacketSize188, 6)
	buf[PacketSize192] = SyncByte
	buf[2*PacketSize192] = SyncByte
	got := Probe(buf)
	if !got.Matched || got.PacketSize != PacketSize188 {
		t.Errorf("Probe() = %+v, want PacketSize188 match", got)
	}
}
