package reframer

import "errors"

// Status is the per-tick verdict spec.md §5 describes: ok (call again when
// the session sees new upstream data, downstream capacity, or the requested
// reschedule delay elapses), EOS (graceful, all ranges consumed), or
// NotSupported (fatal, non-recoverable).
type Status int

const (
	StatusOK Status = iota
	StatusEOS
	StatusNotSupported
)

// Process runs one tick of the engine: spec.md §2's control loop over the
// extraction state machine (§4.3), chunk planner (§4.4), emitter (§4.5) and
// pacer (§4.6). It never blocks; a tick that cannot make progress returns
// StatusOK and relies on the session to call again later.
func (c *Context) Process() (Status, error) {
	if c.EOSState == EOSFatal {
		return StatusNotSupported, nil
	}

	c.rtReschedule = 0

	if !c.InRange {
		started, err := c.advanceToChunkStart()
		if err != nil {
			var fatal *FatalError
			if errors.As(err, &fatal) {
				c.EOSState = EOSFatal
				return StatusNotSupported, err
			}
			return StatusOK, err
		}
		if !started {
			if c.RangeType == RangeTypeDone {
				return StatusEOS, nil
			}
			return StatusOK, nil
		}
		c.snapshotVideoFrameBase()
	}

	allDone := true
	for _, s := range c.Streams {
		if !s.IsPlaying {
			continue
		}
		if !c.EmitStream(s) {
			allDone = false
		}
	}

	if allDone {
		if c.rec != nil {
			c.rec.ChunkEmitted(ChunkInfo{FileNumber: c.fileNumber(), FileSuffix: c.fileSuffix()})
		}
		c.InRange = false
		if err := c.Advance(); err != nil {
			var fatal *FatalError
			if errors.As(err, &fatal) {
				c.EOSState = EOSFatal
				return StatusNotSupported, err
			}
			return StatusOK, err
		}
		if c.allStreamsExhausted() {
			c.RangeType = RangeTypeDone
			c.EOSState = EOSGraceful
		}
		if c.RangeType == RangeTypeDone {
			return StatusEOS, nil
		}
	}

	return StatusOK, nil
}

// advanceToChunkStart drives the streams towards in_range == true: the
// per-stream start-cut search (range mode) or the chunk planner (sap/size/
// duration modes). Returns true once in_range flipped this tick.
func (c *Context) advanceToChunkStart() (bool, error) {
	switch c.ExtractMode {
	case ExtractNone:
		return false, nil
	case ExtractRange:
		if c.WaitVideoRangeAdjust && c.videoPid != nil && c.videoPid.RangeStartComputed != RangeStartPending {
			// Video's own start/end search concluded without ever hitting the
			// xadjust cur_end snap (e.g. reinsert-single or EOS-before-start);
			// don't leave the other pids blocked forever.
			c.WaitVideoRangeAdjust = false
		}
		for _, s := range c.Streams {
			if !s.IsPlaying || s.RangeStartComputed != RangeStartPending {
				continue
			}
			if c.WaitVideoRangeAdjust && s != c.videoPid {
				continue
			}
			c.stepStreamStart(s)
		}
		return c.resolveGlobalStart(), nil
	case ExtractDuration:
		return c.planDurationCut()
	default: // ExtractSAP, ExtractSize
		return c.PlanChunk()
	}
}

// allStreamsExhausted reports whether every registered stream is EOS with an
// empty queue, the termination condition for the non-range split modes
// (spec.md §4.4's flush mode eventually drains to this state).
func (c *Context) allStreamsExhausted() bool {
	if c.ExtractMode == ExtractRange {
		return false
	}
	for _, s := range c.Streams {
		if s.IsPlaying && (!s.In.IsEOS() || len(s.Queue) > 0) {
			return false
		}
	}
	return true
}
