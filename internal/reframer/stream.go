package reframer

import (
	"github.com/snapetech/reframer/internal/pidio"
)

// queuedPacket is one FIFO entry: the packet plus the native-unit timestamp
// and duration the engine computed for it at fetch time (tk_delay already
// applied), so downstream decisions never re-derive them.
type queuedPacket struct {
	pkt pidio.Packet
	ts  int64
	dur uint32
	sap pidio.SAPClass
}

// Stream is the per-pid record of spec.md §3.
type Stream struct {
	ID  string
	In  pidio.PidIn
	Out pidio.PidOut

	Timescale           uint64
	SampleRate          uint64
	Channels            int
	BytesPerSampleFrame int
	Planar              bool
	StreamType          pidio.StreamType
	CodecID             string

	// TkDelay is the non-negative delay offset applied to every timestamp
	// read from this pid. A negative declared delay is a decoder-side CTS
	// offset and must remain in the stream rather than being folded in
	// here, so it is clamped to zero at ingestion (NewStream).
	TkDelay int64

	// DeclaredDelay is the pid's unclamped declared delay, kept so
	// resolveGlobalStart knows whether to clear a stale DELAY property in
	// range mode.
	DeclaredDelay int64

	// CanSplit is true iff the codec allows sub-packet slicing: by
	// duration for text, by sample count for raw PCM audio.
	CanSplit bool

	// AllSAPs stays true until the first non-SAP packet is observed, after
	// which it is permanently false: "needs SAP-aligned cuts".
	AllSAPs bool

	Queue []queuedPacket

	// ReinsertSinglePck holds a strong reference to the first packet iff it
	// is the only packet ever seen on this pid (e.g. a BIFS/still-image
	// track). Cleared the instant a second packet arrives.
	ReinsertSinglePck pidio.Packet

	// SplitPck is a packet retained across ticks because it straddled the
	// end cut; it re-enters next range's queue as the first packet.
	SplitPck pidio.Packet

	PrevSAPTS       int64
	PrevSAPFrameIdx int
	SAPTSPlusOne    TSPlusOne

	TSAtRangeStartPlusOne TSPlusOne
	TSAtRangeEnd          int64 // cumulative media time consumed by prior chunks

	RangeStartComputed RangeStartState
	RangeEndReachedTS  TSPlusOne

	// SplitStart/SplitEnd are residuals of a boundary packet sliced by the
	// extraction state machine, in the stream's native units (duration for
	// text, sample count for raw audio).
	SplitStart uint32
	SplitEnd   uint32

	// AudioDropHead/AudioKeepTail are the raw-audio analogues of
	// SplitStart/SplitEnd: samples to drop from the front of the chunk's
	// first audio packet, and samples to keep in the chunk's last audio
	// packet, respectively. Zero means no trim.
	AudioDropHead int64
	AudioKeepTail int64

	FirstPckSent bool

	NbFrames      uint64
	NbFramesRange uint64

	CTSUSAtInit    int64
	SysClockAtInit int64
	rtAnchored     bool

	IsPlaying bool

	// nbVideoFramesAtRangeStart is the snapshot of
	// Context.NbVideoFramesSinceStart captured when this chunk started, used
	// by the TMCD rewrite to compute the new frame-counter base.
	nbVideoFramesAtRangeStart uint64
}

// NewStream builds the per-pid state from the pid's static properties.
func NewStream(id string, in pidio.PidIn, out pidio.PidOut, canSplit bool) *Stream {
	props := in.GetProperty()
	delay := props.Delay
	if delay < 0 {
		delay = 0
	}
	bytesPerSample, planar := parseAudioFormat(props.AudioFormat)
	bytesPerSampleFrame := bytesPerSample
	if !planar && props.NumChannels > 0 {
		bytesPerSampleFrame = bytesPerSample * props.NumChannels
	}
	return &Stream{
		ID:                  id,
		In:                  in,
		Out:                 out,
		Timescale:           props.Timescale,
		SampleRate:          props.SampleRate,
		Channels:            props.NumChannels,
		BytesPerSampleFrame: bytesPerSampleFrame,
		Planar:              planar,
		StreamType:          props.StreamType,
		CodecID:             props.CodecID,
		TkDelay:             delay,
		DeclaredDelay:       props.Delay,
		CanSplit:            canSplit,
		AllSAPs:             true,
		IsPlaying:           true,
	}
}

// parseAudioFormat reads the compact codec-side format tag ("s16", "s16p",
// "f32", "u8", ...) into a per-channel byte width and a planar flag. Unknown
// or empty formats default to 2 bytes/sample interleaved (s16), the common
// case for the codecs this engine splits.
func parseAudioFormat(format string) (bytesPerSample int, planar bool) {
	f := format
	planar = len(f) > 0 && f[len(f)-1] == 'p'
	if planar {
		f = f[:len(f)-1]
	}
	switch f {
	case "u8", "s8":
		return 1, planar
	case "s16":
		return 2, planar
	case "s24":
		return 3, planar
	case "s32", "f32":
		return 4, planar
	case "f64":
		return 8, planar
	default:
		return 2, planar
	}
}

// ResetForNextChunk clears all transient per-chunk state while preserving
// cross-chunk accumulators (TSAtRangeEnd, NbFrames, queue, split/reinsert
// references), invoked by the range loader when a chunk completes.
func (s *Stream) ResetForNextChunk() {
	s.SAPTSPlusOne = 0
	s.TSAtRangeStartPlusOne = 0
	s.RangeStartComputed = RangeStartPending
	s.RangeEndReachedTS = 0
	s.SplitStart = 0
	s.SplitEnd = 0
	s.AudioDropHead = 0
	s.AudioKeepTail = 0
	s.FirstPckSent = false
	s.NbFramesRange = 0
}

// ResetRealTimeAnchors clears the wall-clock pacing anchors, invoked on
// every seek (spec.md §4.2: "reset real-time anchors").
func (s *Stream) ResetRealTimeAnchors() {
	s.rtAnchored = false
	s.CTSUSAtInit = 0
	s.SysClockAtInit = 0
}

func (s *Stream) isVideo() bool { return s.StreamType == pidio.StreamVisual }

// queueFront returns the first queued packet, or nil.
func (s *Stream) queueFront() *queuedPacket {
	if len(s.Queue) == 0 {
		return nil
	}
	return &s.Queue[0]
}

// purgeQueueEndsBefore drops (Unref) every queued packet whose end
// (ts+dur, in s's native timescale; the caller translates the cut) is <=
// cutNativeTS,
// used both by the SAP-before purge (§4.3) and the global-start purge.
func (s *Stream) purgeQueueEndsBefore(cutNativeTS int64) int {
	n := 0
	for len(s.Queue) > 0 {
		q := s.Queue[0]
		if int64(q.ts)+int64(q.dur) > cutNativeTS {
			break
		}
		q.pkt.Unref()
		s.Queue = s.Queue[1:]
		n++
	}
	return n
}
