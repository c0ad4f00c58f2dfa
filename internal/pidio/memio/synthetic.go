package memio

import "github.com/snapetech/reframer/internal/pidio"

// SyntheticVideoOpts configures a generated video pid: constant frame rate,
// periodic SAP (every SAPPeriod frames), one byte of payload per frame times
// PayloadSize.
type SyntheticVideoOpts struct {
	Timescale   uint64
	FPS         uint64
	Frames      int
	SAPPeriod   int // 0-based frames 0, N, 2N, ... are SAPs
	PayloadSize int
}

// DefaultVideoOpts matches the spec's end-to-end scenarios: 25fps, 90kHz
// timescale, SAP every 12 frames.
func DefaultVideoOpts(frames int) SyntheticVideoOpts {
	return SyntheticVideoOpts{Timescale: 90000, FPS: 25, Frames: frames, SAPPeriod: 12, PayloadSize: 188}
}

// BuildSyntheticVideo returns a video pid whose packets have DTS==CTS, one
// per frame interval, with SAP class 1 every SAPPeriod-th frame.
func BuildSyntheticVideo(o SyntheticVideoOpts) *InPid {
	if o.FPS == 0 {
		o.FPS = 25
	}
	if o.SAPPeriod <= 0 {
		o.SAPPeriod = 12
	}
	dur := uint32(o.Timescale / o.FPS)
	packets := make([]*Packet, 0, o.Frames)
	for i := 0; i < o.Frames; i++ {
		ts := int64(i) * int64(dur)
		sap := pidio.SAPNone
		if i%o.SAPPeriod == 0 {
			sap = pidio.SAP1
		}
		data := make([]byte, o.PayloadSize)
		data[0] = byte(i)
		pkt := NewPacket(ts, true, ts, dur, sap, data)
		pkt.SetDependencyFlags(pidio.DependencyFlags{DependsOn: sap == pidio.SAPNone, IsDependedOn: sap != pidio.SAPNone})
		packets = append(packets, pkt)
	}
	return NewInPid(Properties{
		Timescale: o.Timescale, StreamType: pidio.StreamVisual, CodecID: "synthetic-video", SampleRate: 0,
	}, packets)
}

// SyntheticAudioOpts configures a generated raw-PCM audio pid.
type SyntheticAudioOpts struct {
	SampleRate      uint64
	Channels        int
	BytesPerSample  int // per channel, e.g. 2 for s16
	SamplesPerFrame int
	Frames          int
	Planar          bool
}

// DefaultAudioOpts matches the spec's scenarios: 48kHz, 1024-sample packets.
func DefaultAudioOpts(frames int) SyntheticAudioOpts {
	return SyntheticAudioOpts{SampleRate: 48000, Channels: 2, BytesPerSample: 2, SamplesPerFrame: 1024, Frames: frames}
}

// BuildSyntheticAudio returns an all-SAP raw-audio pid (every packet is a
// SAP per spec.md's "raw" relaxation), timescale == sample rate.
func BuildSyntheticAudio(o SyntheticAudioOpts) *InPid {
	if o.SamplesPerFrame <= 0 {
		o.SamplesPerFrame = 1024
	}
	if o.Channels <= 0 {
		o.Channels = 2
	}
	if o.BytesPerSample <= 0 {
		o.BytesPerSample = 2
	}
	frameBytes := o.SamplesPerFrame * o.Channels * o.BytesPerSample
	packets := make([]*Packet, 0, o.Frames)
	for i := 0; i < o.Frames; i++ {
		ts := int64(i) * int64(o.SamplesPerFrame)
		data := make([]byte, frameBytes)
		pkt := NewPacket(ts, true, ts, uint32(o.SamplesPerFrame), pidio.SAP1, data)
		packets = append(packets, pkt)
	}
	return NewInPid(Properties{
		Timescale: o.SampleRate, StreamType: pidio.StreamAudio, CodecID: "synthetic-pcm",
		SampleRate: o.SampleRate, NumChannels: o.Channels,
	}, packets)
}
