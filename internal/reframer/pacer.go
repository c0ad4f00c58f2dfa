package reframer

import "time"

// defaultClockUS is the wall-clock source used when Config.Clock is nil.
func defaultClockUS() int64 {
	return time.Now().UnixMicro()
}

// paceDecision is the pacer's verdict for one packet about to be emitted on
// stream s, per spec.md §4.6.
type paceDecision struct {
	emit        bool
	rescheduleIn int64 // microseconds, only meaningful when !emit
}

// pace implements the real-time pacer. cts is the packet's CTS in the
// stream's native timescale, already including tk_delay.
func (c *Context) pace(s *Stream, cts int64) paceDecision {
	if c.cfg.RT == RTOff || s.Timescale == 0 {
		return paceDecision{emit: true}
	}
	ctsUS := cts * 1_000_000 / int64(s.Timescale)
	now := c.cfg.Clock()

	anchorStream := s
	if c.cfg.RT == RTSync {
		// The first pid to emit in sync mode owns the shared anchor; every
		// other pid's anchor state mirrors it via the stream that claimed
		// the role (tracked by ID on the Context).
		if c.rtAnchorStreamID == "" {
			c.rtAnchorStreamID = s.ID
		}
		if c.rtAnchorStreamID != s.ID {
			owner := c.streamByID(c.rtAnchorStreamID)
			if owner != nil {
				anchorStream = owner
			}
		}
	}

	if !anchorStream.rtAnchored {
		anchorStream.rtAnchored = true
		anchorStream.CTSUSAtInit = ctsUS
		anchorStream.SysClockAtInit = now
		if anchorStream != s {
			s.rtAnchored = true
			s.CTSUSAtInit = anchorStream.CTSUSAtInit
			s.SysClockAtInit = anchorStream.SysClockAtInit
		}
		return paceDecision{emit: true}
	}

	speed := c.cfg.Speed
	if speed == 0 {
		speed = 1
	}
	if speed < 0 {
		speed = -speed
	}

	mediaElapsedUS := ctsUS - anchorStream.CTSUSAtInit
	if mediaElapsedUS < 0 {
		// Late CTS relative to the anchor: emit immediately with a warning,
		// do not re-anchor (spec.md §7).
		c.warnf("late-cts:"+s.ID, "stream %s: cts precedes real-time anchor, emitting immediately", s.ID)
		return paceDecision{emit: true}
	}
	mediaElapsed := int64(float64(mediaElapsedUS) / speed)
	realElapsed := now - anchorStream.SysClockAtInit

	if realElapsed+RTPrecisionUS >= mediaElapsed {
		return paceDecision{emit: true}
	}
	return paceDecision{emit: false, rescheduleIn: mediaElapsed - realElapsed}
}

func (c *Context) streamByID(id string) *Stream {
	for _, s := range c.Streams {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// noteReschedule records the minimum requested reschedule delay across all
// pids this tick (spec.md §4.6: "retain the minimum across pids").
func (c *Context) noteReschedule(us int64) {
	if us <= 0 {
		return
	}
	if c.rtReschedule == 0 || us < c.rtReschedule {
		c.rtReschedule = us
	}
	if c.rec != nil {
		c.rec.RescheduleRequested(us)
	}
}

// RescheduleDelay returns the microsecond delay the session should wait
// before the next Process call, or 0 if no reschedule was requested this
// tick (spec.md §4.6: "ask the session to reschedule in RT_PRECISION_US").
func (c *Context) RescheduleDelay() int64 {
	if c.rtReschedule <= 0 {
		return 0
	}
	return RTPrecisionUS
}
