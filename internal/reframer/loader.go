package reframer

import (
	"errors"
	"fmt"

	"github.com/snapetech/reframer/internal/pidio"
	"github.com/snapetech/reframer/internal/reframer/rangespec"
)

// durSeconds/sizeTarget are parsed once, from the first xs[] entry, when
// that entry selects duration- or size-split mode (spec.md §4.1: "Dn...
// duration-split mode", "Sn... size-split mode").
type durSizeConfig struct {
	durSeconds  Rational
	sizeTarget  int64
	parsed      bool
}

// Init performs the first range load (spec.md §4.2's "called at init"),
// parsing cfg.XS[0]/cfg.XE[0] (or the duration/size/SAP keyword) and sending
// the initial PLAY to every registered pid.
func (c *Context) Init() error {
	if err := c.loadFirstRange(); err != nil {
		if errors.Is(err, ErrUnparseableRange) {
			// Already warned; extract_mode is left at ExtractNone and the
			// run proceeds without extraction rather than aborting.
		} else {
			return err
		}
	}
	for _, s := range c.Streams {
		startRange := 0.0
		if c.ExtractMode == ExtractRange || c.RangeType == RangeTypeClosed {
			startRange = maxFloat(0, c.CurStart.Float64()-c.cfg.SeekSafe)
		}
		c.sendPlay(s, startRange)
	}
	return nil
}

func (c *Context) loadFirstRange() error {
	if len(c.cfg.XS) == 0 {
		c.ExtractMode = ExtractNone
		c.RangeType = RangeTypeDone
		return nil
	}
	ep, err := rangespec.ParseEndpoint(c.cfg.XS[0])
	if err != nil {
		c.warnf("parse-range", "%v", err)
		c.ExtractMode = ExtractNone
		return fmt.Errorf("%w: %v", ErrUnparseableRange, err)
	}
	switch ep.Kind {
	case rangespec.KindSAP:
		c.ExtractMode = ExtractSAP
		c.RangeType = RangeTypeOpen
		c.rangeIdx = 1
		return nil
	case rangespec.KindDuration:
		c.ExtractMode = ExtractDuration
		c.durCfg.durSeconds = ep.Seconds
		c.durCfg.parsed = true
		c.CurStart = Rational{}
		c.CurEnd = ep.Seconds
		c.HasEnd = true
		c.RangeType = RangeTypeClosed
		c.rangeIdx = 1
		return nil
	case rangespec.KindSize:
		c.ExtractMode = ExtractSize
		c.durCfg.sizeTarget = ep.SizeBytes
		c.durCfg.parsed = true
		c.RangeType = RangeTypeOpen
		c.rangeIdx = 1
		return nil
	default:
		c.ExtractMode = ExtractRange
		return c.consumeNextRangePair()
	}
}

// consumeNextRangePair implements the "otherwise" branch of spec.md §4.2:
// consume xs[i]/xe[i], with xe absent meaning open unless another xs
// follows (in which case that xs doubles as this range's end).
func (c *Context) consumeNextRangePair() error {
	i := c.rangeIdx
	if i >= len(c.cfg.XS) {
		c.finishRanges()
		return nil
	}
	startEP, err := rangespec.ParseEndpoint(c.cfg.XS[i])
	if err != nil {
		c.warnf("parse-range", "%v", fmt.Errorf("%w: %v", ErrUnparseableRange, err))
		c.rangeIdx++
		return c.consumeNextRangePair()
	}

	var endEP *rangespec.Endpoint
	var endText string
	hasExplicitEnd := i < len(c.cfg.XE) && c.cfg.XE[i] != ""
	if hasExplicitEnd {
		ep, err := rangespec.ParseEndpoint(c.cfg.XE[i])
		if err != nil {
			c.warnf("parse-range", "%v", err)
		} else {
			endEP = &ep
			endText = c.cfg.XE[i]
		}
	} else if i+1 < len(c.cfg.XS) {
		ep, err := rangespec.ParseEndpoint(c.cfg.XS[i+1])
		if err == nil {
			endEP = &ep
			endText = c.cfg.XS[i+1]
		}
	}
	c.CurStartRaw = c.cfg.XS[i]
	c.CurEndRaw = endText
	c.CurRangeIdx = i

	prevWasFrameBased := c.StartFrameIdxPlusOne.Valid() || c.EndFrameIdxPlusOne.Valid()
	prevEnd := c.CurEnd
	prevHadEnd := c.HasEnd

	c.StartFrameIdxPlusOne = 0
	c.EndFrameIdxPlusOne = 0
	c.HasEnd = endEP != nil

	// xadjust holds non-video pids out of their end-cut search until the
	// video pid (the xadjust reference) has snapped cur_end to its own
	// SAP-aligned boundary; otherwise they would classify against the
	// still-nominal end (spec.md §3 "wait_video_range_adjust").
	c.WaitVideoRangeAdjust = c.cfg.XAdjust && c.HasEnd && c.videoPid != nil

	switch startEP.Kind {
	case rangespec.KindFrame:
		c.StartFrameIdxPlusOne = FrameIdxPlusOne(startEP.FramePlusOne)
		c.CurStart = Rational{}
	default:
		c.CurStart = startEP.Seconds
	}
	if endEP != nil {
		switch endEP.Kind {
		case rangespec.KindFrame:
			c.EndFrameIdxPlusOne = FrameIdxPlusOne(endEP.FramePlusOne)
		default:
			c.CurEnd = endEP.Seconds
		}
	}

	thisIsFrameBased := c.StartFrameIdxPlusOne.Valid()
	needSeek := false
	if c.RangeType != RangeTypeNone {
		if thisIsFrameBased {
			needSeek = false
		} else if prevWasFrameBased {
			needSeek = true
		} else if prevHadEnd && c.CurStart.Float64() < prevEnd.Float64()-c.cfg.SeekSafe {
			needSeek = true
		} else if prevHadEnd && c.CurStart.Float64() < prevEnd.Float64() {
			needSeek = true
		}
	}

	c.rangeIdx = i + 1
	c.RangeType = RangeTypeClosed
	if !c.HasEnd {
		c.RangeType = RangeTypeOpen
	}

	if needSeek {
		if c.anyUnseekable() {
			c.RangeType = RangeTypeDone
			return NewFatalError(FatalUnseekableOutOfOrder)
		}
		c.doSeek()
	}

	for _, s := range c.Streams {
		s.ResetForNextChunk()
	}
	return nil
}

// Advance is called by the engine once the current chunk finishes emitting
// (in_range returned to false), implementing the three branches of spec.md
// §4.2.
func (c *Context) Advance() error {
	c.FileIdx++
	switch c.ExtractMode {
	case ExtractDuration:
		span := c.durCfg.durSeconds
		c.CurStart = c.CurEnd
		if c.CurStart.Den == span.Den {
			c.CurEnd = Rational{Num: c.CurStart.Num + span.Num, Den: span.Den}
		} else {
			c.CurEnd = Rational{Num: c.CurStart.Num*span.Den + span.Num*c.CurStart.Den, Den: c.CurStart.Den * span.Den}
		}
		for _, s := range c.Streams {
			s.ResetForNextChunk()
		}
		return nil
	case ExtractSAP, ExtractSize:
		c.CurStart = c.CurEnd
		c.MinTSComputedValid = false
		c.PrevMinTSComputedValid = false
		c.GopDepth = 0
		for _, s := range c.Streams {
			s.ResetForNextChunk()
		}
		return nil
	default:
		return c.consumeNextRangePair()
	}
}

func (c *Context) finishRanges() {
	c.RangeType = RangeTypeDone
	c.broadcastStop()
	c.EOSState = EOSGraceful
}

func (c *Context) anyUnseekable() bool {
	for _, s := range c.Streams {
		if s.In.GetProperty().Playback == pidio.PlaybackForwardOnly {
			return true
		}
	}
	return false
}

// doSeek sends STOP+PLAY to every input pid with the seek-safe rewind
// margin, resets real-time anchors, and clears audio trim state
// (spec.md §4.2).
func (c *Context) doSeek() {
	start := maxFloat(0, c.CurStart.Float64()-c.cfg.SeekSafe)
	for _, s := range c.Streams {
		c.sendStop(s)
		s.IsPlaying = true
		c.sendPlay(s, start)
		s.ResetRealTimeAnchors()
		s.AudioDropHead = 0
		s.AudioKeepTail = 0
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
