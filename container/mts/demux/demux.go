/*
NAME
  demux.go - the Demuxer facade.

DESCRIPTION
  demux.go composes the sync probe, packet iterator, PAT/PMT section
  parsers and PES reassembler into a single stateful facade that a host
  drives with successive ParseChunk calls, following the single-
  threaded cooperative scheduling model used throughout this module:
  no internal goroutines, no channels, every callback invoked
  synchronously on the caller's goroutine.

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

	"github.com/ausocean/utils/logging"
)

// Error kinds reported through Callbacks.OnError. These name the failure,
// they are not themselves errors.
const (
	ErrKindFormatDesync  = "format-desync"
	ErrKindTableMismatch = "table-mismatch"
	ErrKindMalformedPES  = "malformed-pes"
	ErrKindDiscontinuity = "discontinuity"
	ErrKindIllegalState  = "illegal-state"
)

// IllegalState is returned by ParseChunk when the demuxer has been
// destroyed, or when a mandatory callback is unbound.
type IllegalState struct {
	Reason string
}

func (e *IllegalState) Error() string { return "mts/demux: illegal state: " + e.Reason }

// MediaInfo summarises the container/codec makeup of the current program,
// emitted once the facade has enough PMT information to describe it.
type MediaInfo struct {
	Program    uint16
	PMTPID     uint16
	HasVideo   bool
	VideoCodec StreamType
	VideoPID   uint16
	HasAudio   bool
	AudioCodec StreamType
	AudioPID   uint16
}

// Track is one ordered batch of reassembled samples for a single
// elementary stream, delivered via Callbacks.OnDataAvailable.
type Track struct {
	Kind           string // "video" or "audio"
	PID            uint16
	SequenceNumber int
	Samples        []Sample
}

// Sample is one PES payload with its presentation/decode timestamps, in
// the original 90kHz clock units carried by the stream.
type Sample struct {
	Payload []byte
	PTS     uint64
	DTS     uint64
}

// PIDDescriptor carries a PES-private-data descriptor discovered on an
// elementary stream's ES_info loop, for OnPESPrivateDataDesc.
type PIDDescriptor struct {
	PID  uint16
	Tag  byte
	Data []byte
}

// Callbacks is the host-facing interface the facade drives synchronously
// from inside ParseChunk. OnError, OnMediaInfo, OnTrackMetadata and
// OnDataAvailable are mandatory: every ParseChunk call checks them first
// and fails with IllegalState if any is nil.
type Callbacks struct {
	OnError              func(kind, detail string)
	OnMediaInfo          func(MediaInfo)
	OnTrackMetadata      func(trackKind string, metadata map[string]string)
	OnDataAvailable      func(video, audio *Track)
	OnTimedID3Metadata   func(pid uint16, payload []byte, pts uint64)
	OnSCTE35Metadata     func(pid uint16, payload []byte, pts uint64)
	OnPESPrivateData     func(pid uint16, payload []byte, pts, dts uint64)
	OnPESPrivateDataDesc func(PIDDescriptor)
}

func (c Callbacks) validate() error {
	switch {
	case c.OnError == nil:
		return &IllegalState{Reason: "OnError callback not bound"}
	case c.OnMediaInfo == nil:
		return &IllegalState{Reason: "OnMediaInfo callback not bound"}
	case c.OnTrackMetadata == nil:
		return &IllegalState{Reason: "OnTrackMetadata callback not bound"}
	case c.OnDataAvailable == nil:
		return &IllegalState{Reason: "OnDataAvailable callback not bound"}
	}
	return nil
}

// Demuxer is the facade described in this package's design notes: one
// instance owns its state exclusively, is not safe for concurrent use,
// and independent instances may run concurrently.
type Demuxer struct {
	log logging.Logger

	packetSize int
	iter       packetIterator
	// syncOffset is the probe-reported offset of the first sync byte,
	// used as the starting offset of the first ParseChunk call.
	syncOffset int

	pat *PAT
	pmt map[uint16]*PMT // program_number -> PMT

	currentProgram uint16
	currentPMTPID  uint16
	haveProgram    bool

	// pidStreamType mirrors the active PMT's elementary PID -> stream_type
	// map, used to route reassembled PES packets without a PMT lookup per
	// slice.
	pidStreamType map[uint16]StreamType
	pmtPIDs       map[uint16]struct{} // PIDs currently carrying a PMT

	reasm *reassembler
	disco *discontinuityTracker

	videoSeq int
	audioSeq int

	mediaInfoSent bool

	callbacks Callbacks
	destroyed bool
}

// Option configures a Demuxer at construction time, following this
// module's constructor-option convention.
type Option func(*Demuxer) error

// WithLogger installs the structured logger used for internal
// diagnostics; this is independent of Callbacks.OnError, which reports
// stream-level errors to the host.
func WithLogger(l logging.Logger) Option {
	return func(d *Demuxer) error {
		d.log = l
		return nil
	}
}

// NewDemuxer constructs a Demuxer for a stream whose framing was
// identified by Probe. cb supplies the callback set; its mandatory
// members are checked on the first ParseChunk call, not here, so that a
// host may finish wiring callbacks after construction.
func NewDemuxer(probe ProbeResult, cb Callbacks, opts ...Option) (*Demuxer, error) {
	if !probe.Matched {
		return nil, errors.New("mts/demux: NewDemuxer requires a successful Probe result")
	}

	d := &Demuxer{
		log:           logging.New(0, nil, false),
		packetSize:    probe.PacketSize,
		iter:          newPacketIterator(probe.PacketSize),
		syncOffset:    probe.SyncOffset,
		pmt:           make(map[uint16]*PMT),
		pidStreamType: make(map[uint16]StreamType),
		pmtPIDs:       make(map[uint16]struct{}),
		reasm:         newReassembler(),
		disco:         newDiscontinuityTracker(),
		callbacks:     cb,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, errors.Wrap(err, "mts/demux: applying option")
		}
	}
	return d, nil
}

// DataSource is anything that can be driven by a Demuxer: a host hands it
// ParseChunk as its data-arrival sink via BindDataSource, and is
// responsible for calling that sink with monotonically increasing
// byteStart values reflecting absolute stream position.
type DataSource interface {
	OnData(sink func(chunk []byte, byteStart int64) (consumed int, err error))
}

// BindDataSource registers ParseChunk as source's data-arrival sink.
func (d *Demuxer) BindDataSource(source DataSource) {
	source.OnData(d.ParseChunk)
}

// ParseChunk drives one pass over chunk, whose first byte sits at absolute
// stream offset byteStart, and returns the number of bytes actually
// consumed. The first call starts at the probe's SyncOffset; later calls
// start at chunk[0]. The caller must requeue chunk[consumed:] (plus any
// newly arrived bytes) on the next call.
func (d *Demuxer) ParseChunk(chunk []byte, byteStart int64) (int, error) {
	if d.destroyed {
		return 0, &IllegalState{Reason: "ParseChunk called after Destroy"}
	}
	if err := d.callbacks.validate(); err != nil {
		return 0, err
	}

	d.log.Debug("parsing chunk", "len(chunk)", len(chunk), "byte start", byteStart)

	offset := d.syncOffset
	if offset > len(chunk) {
		return 0, nil
	}
	d.syncOffset = 0
	for {
		pkt, next, ok, err := d.iter.next(chunk, offset)
		if !ok {
			break
		}
		if err != nil {
			if errors.Is(err, ErrDesync) {
				d.callbacks.OnError(ErrKindFormatDesync, err.Error())
				break
			}
			d.callbacks.OnError(ErrKindFormatDesync, err.Error())
			offset = next
			continue
		}

		if gap, ok := d.disco.observe(pkt.Header.PID, pkt.Header.CC, pkt.HasPayload); ok {
			d.callbacks.OnError(ErrKindDiscontinuity, gap)
		}

		d.handlePacket(pkt)
		offset = next
	}

	return offset, nil
}

func (d *Demuxer) handlePacket(pkt parsedPacket) {
	if !pkt.HasPayload {
		return
	}

	pid := pkt.Header.PID

	if pid == 0x0000 {
		d.handlePAT(pkt)
		return
	}

	if _, isPMT := d.pmtPIDs[pid]; isPMT {
		d.handlePMT(pkt)
		return
	}

	st, tracked := d.pidStreamType[pid]
	if !tracked {
		return
	}
	if !d.isReassembledType(st) {
		return
	}

	done, ok := d.reasm.handleSlice(pid, st, pkt.Header.PUSI, pkt.Payload)
	if !ok {
		return
	}
	d.emitPES(done)
}

// isReassembledType reports whether st is one of the PES-carrying stream
// types this facade reassembles (video, audio, PES-private-data,
// timed-metadata and SCTE-35 all ride ordinary PES framing).
func (d *Demuxer) isReassembledType(st StreamType) bool {
	switch st {
	case StreamTypeH264, StreamTypeH265, StreamTypeADTSAAC,
		StreamTypePESPrivate, StreamTypeID3, StreamTypeSCTE35:
		return true
	default:
		return false
	}
}

func (d *Demuxer) handlePAT(pkt parsedPacket) {
	payload := pkt.Payload
	if pkt.Header.PUSI {
		skip, err := pointerFieldSkip(payload)
		if err != nil {
			d.callbacks.OnError(ErrKindFormatDesync, err.Error())
			return
		}
		payload = payload[skip:]
	}

	accept, err := parsePATSection(payload, d.pat)
	if err != nil {
		d.callbacks.OnError(ErrKindTableMismatch, err.Error())
		return
	}
	if accept.pat == nil {
		return
	}
	d.pat = accept.pat

	if !accept.fresh {
		return
	}

	for _, pmtPID := range accept.pat.ProgramMap {
		d.pmtPIDs[pmtPID] = struct{}{}
	}

	if !d.haveProgram {
		d.currentProgram = accept.firstProgram
		d.currentPMTPID = accept.firstPID
		d.haveProgram = true
	}
}

func (d *Demuxer) handlePMT(pkt parsedPacket) {
	payload := pkt.Payload
	if pkt.Header.PUSI {
		skip, err := pointerFieldSkip(payload)
		if err != nil {
			d.callbacks.OnError(ErrKindFormatDesync, err.Error())
			return
		}
		payload = payload[skip:]
	}

	accept, err := parsePMTSection(payload, d.pmt[d.currentProgram])
	if err != nil {
		d.callbacks.OnError(ErrKindTableMismatch, err.Error())
		return
	}
	if accept.pmt == nil {
		return
	}
	d.pmt[accept.pmt.Program] = accept.pmt

	if !accept.fresh {
		return
	}

	if accept.pmt.Program == d.currentProgram {
		d.activatePMT(accept.pmt)
	}
}

// activatePMT installs pmt's elementary PID -> stream_type map as the
// set the reassembler will admit slices for, and emits MediaInfo and
// per-track metadata the first time video and/or audio are identified.
func (d *Demuxer) activatePMT(pmt *PMT) {
	d.pidStreamType = make(map[uint16]StreamType, len(pmt.StreamTypes))
	for pid, st := range pmt.StreamTypes {
		d.pidStreamType[pid] = st
	}

	info := MediaInfo{Program: pmt.Program, PMTPID: d.currentPMTPID}
	if pmt.HasH264PID {
		info.HasVideo, info.VideoCodec, info.VideoPID = true, StreamTypeH264, pmt.H264PID
	} else if pmt.HasH265PID {
		info.HasVideo, info.VideoCodec, info.VideoPID = true, StreamTypeH265, pmt.H265PID
	}
	if pmt.HasADTSAACPID {
		info.HasAudio, info.AudioCodec, info.AudioPID = true, StreamTypeADTSAAC, pmt.ADTSAACPID
	}

	if !d.mediaInfoSent {
		d.log.Debug("emitting media info", "program", info.Program, "has video", info.HasVideo, "has audio", info.HasAudio)
		d.callbacks.OnMediaInfo(info)
		d.mediaInfoSent = true
		if info.HasVideo {
			d.callbacks.OnTrackMetadata("video", pmt.Meta)
		}
		if info.HasAudio {
			d.callbacks.OnTrackMetadata("audio", pmt.Meta)
		}
	}

	if d.callbacks.OnPESPrivateDataDesc != nil {
		for pid := range pmt.PESPrivatePIDs {
			raw, ok := pmt.ESDescriptors[pid]
			if !ok || len(raw) < 2 {
				continue
			}
			// Only the first descriptor in the ES_info loop is surfaced;
			// PIDDescriptor models one descriptor per callback.
			length := int(raw[1])
			end := 2 + length
			if end > len(raw) {
				end = len(raw)
			}
			d.callbacks.OnPESPrivateDataDesc(PIDDescriptor{PID: pid, Tag: raw[0], Data: raw[2:end]})
		}
	}
}

// emitPES parses a fully reassembled PES packet and dispatches it to the
// appropriate callback based on the PID's stream_type.
func (d *Demuxer) emitPES(done completedPES) {
	hdr, err := parsePESHeader(done.Payload)
	if err != nil {
		d.callbacks.OnError(ErrKindMalformedPES, err.Error())
		return
	}

	pts, dts := hdr.PTS, hdr.DTS
	if hdr.HasPTS && !hdr.HasDTS {
		dts = pts
	}

	switch done.StreamType {
	case StreamTypeH264, StreamTypeH265:
		d.videoSeq++
		track := &Track{Kind: "video", PID: done.PID, SequenceNumber: d.videoSeq,
			Samples: []Sample{{Payload: hdr.Data, PTS: pts, DTS: dts}}}
		d.callbacks.OnDataAvailable(track, nil)

	case StreamTypeADTSAAC:
		d.audioSeq++
		track := &Track{Kind: "audio", PID: done.PID, SequenceNumber: d.audioSeq,
			Samples: []Sample{{Payload: hdr.Data, PTS: pts, DTS: dts}}}
		d.callbacks.OnDataAvailable(nil, track)

	case StreamTypeID3:
		if d.callbacks.OnTimedID3Metadata != nil {
			d.callbacks.OnTimedID3Metadata(done.PID, hdr.Data, pts)
		}

	case StreamTypeSCTE35:
		if d.callbacks.OnSCTE35Metadata != nil {
			d.callbacks.OnSCTE35Metadata(done.PID, hdr.Data, pts)
		}

	case StreamTypePESPrivate:
		if d.callbacks.OnPESPrivateData != nil {
			d.callbacks.OnPESPrivateData(done.PID, hdr.Data, pts, dts)
		}

	default:
		// Reserved hook for collaborators; no-op in the core.
	}
}

// ResetMediaInfo discards accumulated PAT/PMT state and in-progress PES
// queues, so the next PAT/PMT pair re-announces MediaInfo and track
// metadata from scratch.
func (d *Demuxer) ResetMediaInfo() {
	d.pat = nil
	d.pmt = make(map[uint16]*PMT)
	d.pmtPIDs = make(map[uint16]struct{})
	d.pidStreamType = make(map[uint16]StreamType)
	d.haveProgram = false
	d.mediaInfoSent = false
	d.videoSeq, d.audioSeq = 0, 0
	d.reasm.reset()
	d.disco = newDiscontinuityTracker()
}

// Destroy releases the Demuxer's state. Further ParseChunk calls fail
// with IllegalState.
func (d *Demuxer) Destroy() {
	d.destroyed = true
	d.reasm = nil
}
