package reframer

import (
	"github.com/snapetech/reframer/internal/pidio"
	"github.com/snapetech/reframer/internal/reframer/rangespec"
	"github.com/snapetech/reframer/internal/reframer/ratelog"
)

// Config is the caller-supplied, mostly-static configuration of spec.md §6's
// CLI surface. It is copied into Context at construction and only ever read
// from there on, except for the xs/xe range list which the loader walks.
type Config struct {
	XS, XE []string // raw textual range endpoints, one pair consumed per range

	XRound  Rounding
	XAdjust bool

	SplitRange bool
	SeekSafe   float64 // seconds

	NoSAP  bool
	Raw    bool
	Refs   bool
	Tcmdrw bool

	SAPs   []pidio.SAPClass
	Frames []int // 1-based whitelist of frame indices (non-range split mode only)

	RT    RTMode
	Speed float64
	Clock func() int64 // wall-clock microseconds; defaults to a real clock

	Props []string // extra per-range output properties, "key=value"
}

// Context is the process-wide mutable state of spec.md §3's "Context". It is
// owned by exactly one goroutine (the session's process callback) and never
// shared without external synchronization, per spec.md §5.
type Context struct {
	cfg Config

	Streams   []*Stream
	videoPid  *Stream // first registered visual pid; xadjust defers to it (spec.md §9 open question)

	rangeIdx int // index into cfg.XS/cfg.XE of the NEXT range to consume

	CurStart    Rational
	CurEnd      Rational
	HasEnd      bool // false => current range is open
	CurStartRaw string
	CurEndRaw   string
	CurRangeIdx int

	StartFrameIdxPlusOne FrameIdxPlusOne
	EndFrameIdxPlusOne   FrameIdxPlusOne

	ExtractMode ExtractMode
	RangeType   RangeType

	InRange bool

	// WaitVideoRangeAdjust holds non-video pids out of their start/end
	// search until the video pid (xadjust's reference pid) has snapped
	// cur_end to its own SAP-aligned boundary.
	WaitVideoRangeAdjust bool

	MinTSComputed      int64
	MinTSScale         uint64
	MinTSComputedValid bool
	PrevMinTSComputed      int64
	PrevMinTSScale         uint64
	PrevMinTSComputedValid bool

	GopDepth int

	durCfg durSizeConfig

	EOSState EOSState

	FileIdx int // running chunk/file counter; FileNumber for sap/size/dur modes (range mode uses CurRangeIdx)

	// NbVideoFramesSinceStart is the cumulative count of visual frames
	// emitted across every chunk so far; snapshotVideoFrameBase captures it
	// at chunk start for the TMCD rewrite.
	NbVideoFramesSinceStart uint64

	// rtReschedule, when > 0 after a tick, is the smallest media-ahead delay
	// (microseconds) the pacer recorded this tick; RescheduleDelay turns it
	// into a request to wait RTPrecisionUS before the next Process call.
	rtReschedule int64
	rtAnchorStreamID string

	log *ratelog.Logger

	// alloc is used by the emitter/extractor to clone/allocate packets.
	alloc pidio.Allocator

	// rec, when set, observes emission/reschedule events for an external
	// metrics sink. Left nil, every call below is skipped.
	rec Recorder
}

// ChunkInfo summarizes one just-completed chunk for manifest/metrics sinks.
type ChunkInfo struct {
	FileNumber int
	FileSuffix string
}

// Recorder observes engine activity for an external metrics sink (e.g.
// internal/reframer/metrics's prometheus counters). Kept dependency-free so
// the core package never imports an ambient package.
type Recorder interface {
	PacketEmitted(stream string, bytes int)
	PacketDropped(stream string)
	ChunkEmitted(info ChunkInfo)
	RescheduleRequested(us int64)
	QueueDepth(stream string, depth int)
}

// SetRecorder attaches rec as the engine's metrics sink.
func (c *Context) SetRecorder(rec Recorder) { c.rec = rec }

// CurRangeMS returns the current range's start (and, if bounded, end) in
// milliseconds, for manifest/diagnostic sinks outside this package.
func (c *Context) CurRangeMS() (startMS int64, endMS int64, hasEnd bool) {
	startMS = int64(c.CurStart.Float64() * 1000)
	if c.HasEnd {
		return startMS, int64(c.CurEnd.Float64() * 1000), true
	}
	return startMS, 0, false
}

type Rational = rangespec.Rational

// NewContext builds an empty Context. Streams are registered on it with
// AddStream, then Init loads the first range before the first Process tick.
func NewContext(cfg Config, alloc pidio.Allocator) *Context {
	if cfg.Clock == nil {
		cfg.Clock = defaultClockUS
	}
	c := &Context{cfg: cfg, log: ratelog.New(0), alloc: alloc}
	return c
}

// AddStream registers a pid with the engine. The first visual pid added
// becomes the xadjust reference pid (spec.md §9 open question: "adopt the
// first registered visual pid").
func (c *Context) AddStream(s *Stream) {
	c.Streams = append(c.Streams, s)
	if s.isVideo() && c.videoPid == nil {
		c.videoPid = s
	}
}

func (c *Context) warnf(key, format string, args ...any) {
	c.log.Warnf(key, format, args...)
}
