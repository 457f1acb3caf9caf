/*
NAME
  tsdemux - a command line client that demultiplexes an MPEG-TS file and
  reports the program's media makeup and sample activity.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package main implements the tsdemux command line client.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/tsdemux/container/mts/demux"
	"github.com/ausocean/utils/logging"
)

// Current software version.
const version = "v0.1.0"

// Logging configuration.
const (
	logPath      = "tsdemux.log"
	logMaxSize   = 100 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
	logSuppress  = false
)

// readSize is the chunk size used to feed ParseChunk.
const readSize = 1 << 20 // 1MB

const pkg = "tsdemux: "

func main() {
	showVersion := flag.Bool("version", false, "show version")
	verbosity := flag.Int("v", logging.Info, "log verbosity (Debug=0, Info=1, Warning=2, Error=3)")
	logToFile := flag.Bool("logfile", false, "also log to "+logPath)
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: tsdemux [flags] <file.ts>")
		os.Exit(2)
	}

	var w io.Writer = os.Stderr
	if *logToFile {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    logMaxSize,
			MaxBackups: logMaxBackup,
			MaxAge:     logMaxAge,
		})
	}
	log := logging.New(int8(*verbosity), w, logSuppress)

	log.Info("starting tsdemux", "version", version)

	if err := run(flag.Arg(0), log); err != nil {
		log.Fatal(pkg+"run failed", "error", err.Error())
	}
}

// run opens path, probes it for MPEG-TS framing, and drives a Demuxer over
// its contents, logging each callback as it fires.
func run(path string, log logging.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", path, err)
	}
	defer f.Close()

	probeBuf := make([]byte, readSize)
	n, err := io.ReadFull(f, probeBuf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("could not read %s: %w", path, err)
	}
	probeBuf = probeBuf[:n]

	probe := demux.Probe(probeBuf)
	if !probe.Matched {
		return fmt.Errorf("%s does not look like an MPEG-TS stream", path)
	}
	log.Info("probe matched", "packet size", probe.PacketSize, "sync offset", probe.SyncOffset)

	d, err := demux.NewDemuxer(probe, callbacks(log), demux.WithLogger(log))
	if err != nil {
		return fmt.Errorf("could not create demuxer: %w", err)
	}
	defer d.Destroy()

	var (
		buf       = probeBuf
		byteStart int64
	)
	for {
		consumed, err := d.ParseChunk(buf, byteStart)
		if err != nil {
			return fmt.Errorf("ParseChunk failed: %w", err)
		}
		byteStart += int64(consumed)
		leftover := buf[consumed:]

		more := make([]byte, readSize)
		n, rerr := f.Read(more)
		if n == 0 && rerr != nil {
			if len(leftover) != 0 {
				log.Warning(pkg+"unparsed bytes remaining at end of file", "count", len(leftover))
			}
			break
		}
		buf = append(leftover, more[:n]...)
	}

	log.Info("finished demuxing", "bytes processed", byteStart)
	return nil
}

// callbacks builds a Callbacks set that logs each event this module
// reports; a more capable client would forward samples elsewhere instead.
func callbacks(log logging.Logger) demux.Callbacks {
	return demux.Callbacks{
		OnError: func(kind, detail string) {
			log.Warning(pkg+"stream error", "kind", kind, "detail", detail)
		},
		OnMediaInfo: func(info demux.MediaInfo) {
			log.Info("media info",
				"program", info.Program,
				"has video", info.HasVideo, "video codec", info.VideoCodec, "video pid", info.VideoPID,
				"has audio", info.HasAudio, "audio codec", info.AudioCodec, "audio pid", info.AudioPID,
			)
		},
		OnTrackMetadata: func(trackKind string, metadata map[string]string) {
			log.Debug("track metadata", "kind", trackKind, "metadata", metadata)
		},
		OnDataAvailable: func(video, audio *demux.Track) {
			if video != nil {
				log.Debug("video track", "sequence", video.SequenceNumber, "samples", len(video.Samples))
			}
			if audio != nil {
				log.Debug("audio track", "sequence", audio.SequenceNumber, "samples", len(audio.Samples))
			}
		},
		OnTimedID3Metadata: func(pid uint16, payload []byte, pts uint64) {
			log.Debug("timed ID3 metadata", "pid", pid, "len", len(payload), "pts", pts)
		},
		OnSCTE35Metadata: func(pid uint16, payload []byte, pts uint64) {
			log.Debug("SCTE-35 metadata", "pid", pid, "len", len(payload), "pts", pts)
		},
		OnPESPrivateData: func(pid uint16, payload []byte, pts, dts uint64) {
			log.Debug("PES private data", "pid", pid, "len", len(payload), "pts", pts, "dts", dts)
		},
		OnPESPrivateDataDesc: func(desc demux.PIDDescriptor) {
			log.Debug("PES private data descriptor", "descriptor", desc)
		},
	}
}
