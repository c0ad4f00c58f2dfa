package reframer

import "github.com/snapetech/reframer/internal/pidio"

// readTSDur computes (ts, dur) for pkt on stream s: ts is DTS (or CTS if DTS
// is absent) plus s.TkDelay (spec.md §4.3 step 2).
func readTSDur(s *Stream, pkt pidio.Packet) (int64, uint32) {
	dts, ok := pkt.DTS()
	base := dts
	if !ok {
		base = pkt.CTS()
	}
	return base + s.TkDelay, pkt.Duration()
}

// isSAP implements spec.md §4.3 step 3.
func (c *Context) isSAP(sap pidio.SAPClass) bool {
	if c.cfg.NoSAP || c.cfg.Raw {
		return true
	}
	return sap.IsRandomAccess()
}

func isRawAudioSplittable(s *Stream) bool {
	return s.CanSplit && s.StreamType == pidio.StreamAudio
}

// audioSamplesBetween converts a native-timescale tick delta on s into a
// PCM sample count, assuming timescale and sample rate are proportional
// (the common case: timescale == sample_rate).
func audioSamplesBetween(s *Stream, ticks int64) int64 {
	if s.Timescale == 0 {
		return 0
	}
	if s.SampleRate == 0 || s.SampleRate == s.Timescale {
		return ticks
	}
	return ticks * int64(s.SampleRate) / int64(s.Timescale)
}

// classifyStart determines whether ts/dur/frameIdx falls before, at-or-past
// (for decision purposes "inside"), per the configured start boundary.
// Returns the region plus, for a raw-audio straddle, the number of samples
// to drop from the packet's head.
func (c *Context) classifyStart(s *Stream, ts int64, dur uint32, frameIdx int) (region PckInRange, dropHead int64) {
	if c.StartFrameIdxPlusOne.Valid() {
		start := c.StartFrameIdxPlusOne.Value()
		if frameIdx < start {
			return PckBeforeRange, 0
		}
		return PckInsideRange, 0
	}
	startTicks := c.CurStart.ScaleTo(s.Timescale)
	end := ts + int64(dur)
	if end <= startTicks {
		return PckBeforeRange, 0
	}
	if ts < startTicks && isRawAudioSplittable(s) {
		return PckInsideRange, audioSamplesBetween(s, startTicks-ts)
	}
	return PckInsideRange, 0
}

// classifyEnd determines whether ts/dur/frameIdx falls past the configured
// end boundary. straddle is true when a raw-audio or can_split (text)
// packet's span crosses the boundary and should be split rather than
// wholly excluded.
func (c *Context) classifyEnd(s *Stream, ts int64, dur uint32, frameIdx int) (after bool, straddle bool, keepTail int64) {
	if c.EndFrameIdxPlusOne.Valid() {
		end := c.EndFrameIdxPlusOne.Value()
		return frameIdx >= end, false, 0
	}
	if !c.HasEnd {
		return false, false, 0
	}
	endTicks := c.CurEnd.ScaleTo(s.Timescale)
	pktEnd := ts + int64(dur)
	if pktEnd <= endTicks {
		return false, false, 0
	}
	if ts < endTicks && s.CanSplit {
		if isRawAudioSplittable(s) {
			return true, true, audioSamplesBetween(s, endTicks-ts)
		}
		return true, true, 0
	}
	return true, false, 0
}

// fetchNext returns the next packet for s: a carried split_pck takes
// priority over reading a fresh one from upstream.
func (c *Context) fetchNext(s *Stream) (pidio.Packet, bool) {
	if s.SplitPck != nil {
		p := s.SplitPck
		s.SplitPck = nil
		return p, true
	}
	p := s.In.GetPacket()
	if p == nil {
		return nil, false
	}
	return p, true
}

// stepStreamStart advances stream s through spec.md §4.3 steps 1-4 until its
// start cut is located (RangeStartComputed != RangeStartPending) or no more
// input is available this tick.
func (c *Context) stepStreamStart(s *Stream) {
	for s.RangeStartComputed == RangeStartPending {
		pkt, ok := c.fetchNext(s)
		if !ok {
			if s.In.IsEOS() {
				if s.NbFrames == 1 && s.ReinsertSinglePck != nil {
					s.RangeStartComputed = RangeStartReinsertSingle
					return
				}
				s.RangeStartComputed = RangeStartEOSBeforeStart
			}
			return
		}

		ts, dur := readTSDur(s, pkt)
		sap := pkt.SAP()
		frameIdx := int(s.NbFrames)
		s.NbFrames++

		if s.NbFrames == 1 {
			s.ReinsertSinglePck = pkt.Ref()
		} else if s.ReinsertSinglePck != nil {
			s.ReinsertSinglePck.Unref()
			s.ReinsertSinglePck = nil
		}

		sapNow := c.isSAP(sap)
		if !sapNow {
			s.AllSAPs = false
		}

		region, dropHead := c.classifyStart(s, ts, dur, frameIdx)

		if sapNow && region == PckBeforeRange {
			s.PrevSAPTS = ts
			s.PrevSAPFrameIdx = frameIdx
			if len(c.Streams) == 1 || !s.AllSAPs {
				cutTS := ts
				for _, other := range c.Streams {
					other.purgeQueueEndsBefore(translateTicks(cutTS, s.Timescale, other.Timescale))
				}
			}
		}

		if sapNow && region == PckInsideRange && s.RangeStartComputed == RangeStartPending {
			selected := c.selectStartTS(s, ts)
			s.SAPTSPlusOne = NewTSPlusOne(selected)
			s.RangeStartComputed = RangeStartFound
			s.AudioDropHead = dropHead
			s.In.DropPacket()
			c.enqueue(s, pkt, ts, dur, sap)
			return
		}

		after, straddle, tailKeep := c.classifyEnd(s, ts, dur, frameIdx)
		if after {
			if s.CanSplit || !straddle || !c.cfg.XAdjust || sapNow {
				if !c.cfg.XAdjust || sapNow {
					s.RangeEndReachedTS = NewTSPlusOne(ts)
					if straddle {
						c.carrySplitBoundary(s, pkt, ts, dur, tailKeep)
					} else {
						pkt.Unref()
					}
				}
			}
			if s.isVideo() && c.cfg.XAdjust {
				c.CurEnd = ratFromTicks(ts, s.Timescale)
				c.WaitVideoRangeAdjust = false
			}
			s.In.DropPacket()
			return
		}

		s.In.DropPacket()
		c.enqueue(s, pkt, ts, dur, sap)
	}
}

func (c *Context) enqueue(s *Stream, pkt pidio.Packet, ts int64, dur uint32, sap pidio.SAPClass) {
	s.Queue = append(s.Queue, queuedPacket{pkt: pkt.Ref(), ts: ts, dur: dur, sap: sap})
}

// carrySplitBoundary enqueues a clone of the boundary packet for the current
// chunk, bounded to the part before the end cut (SplitEnd for text,
// AudioKeepTail for raw audio), and retains a second reference to the packet
// as split_pck so it re-enters next range's queue as its first packet.
func (c *Context) carrySplitBoundary(s *Stream, pkt pidio.Packet, ts int64, dur uint32, tailKeepSamples int64) {
	clone := c.alloc.NewRef(pkt)
	s.AudioKeepTail = tailKeepSamples
	if isRawAudioSplittable(s) {
		s.Queue = append(s.Queue, queuedPacket{pkt: clone, ts: ts, dur: dur, sap: pkt.SAP()})
	} else {
		s.SplitEnd = uint32(c.CurEnd.ScaleTo(s.Timescale) - ts)
		s.Queue = append(s.Queue, queuedPacket{pkt: clone, ts: ts, dur: dur, sap: pkt.SAP()})
	}
	s.SplitPck = c.alloc.NewRef(pkt)
}

// selectStartTS implements the xround decision of spec.md §4.3 step 4.
func (c *Context) selectStartTS(s *Stream, ts int64) int64 {
	prev := s.PrevSAPTS
	target := c.CurStart.ScaleTo(s.Timescale)
	switch c.cfg.XRound {
	case RoundBefore:
		if target == ts {
			return ts
		}
		if s.PrevSAPFrameIdx == 0 && prev == 0 && prev >= ts {
			return ts
		}
		return prev
	case RoundAfter:
		return ts
	case RoundClosest:
		if absInt64(prev-target) <= absInt64(ts-target) {
			return prev
		}
		return ts
	default:
		return ts
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func translateTicks(ts int64, fromScale, toScale uint64) int64 {
	if fromScale == toScale || fromScale == 0 {
		return ts
	}
	return ts * int64(toScale) / int64(fromScale)
}

func ratFromTicks(ts int64, scale uint64) Rational {
	if scale == 0 {
		return Rational{}
	}
	return Rational{Num: ts, Den: int64(scale)}
}

// resolveGlobalStart implements spec.md §4.3 step 5: once every playing
// stream has located (or excluded itself from) its start cut, compute the
// common min_ts, purge every stream's queue to it, and flip in_range.
// Returns true once the chunk has actually started (in_range == true).
func (c *Context) resolveGlobalStart() bool {
	for _, s := range c.Streams {
		if !s.IsPlaying {
			continue
		}
		if s.RangeStartComputed == RangeStartPending {
			return false
		}
	}

	minTS, scale, found := c.voteMinTS()
	if !found {
		scale = tickScaleFallback(c)
		minTS = c.CurStart.ScaleTo(scale)
	}

	for _, s := range c.Streams {
		if !s.IsPlaying || s.RangeStartComputed == RangeStartEOSBeforeStart {
			continue
		}
		cut := translateTicks(minTS, scale, s.Timescale)
		s.purgeQueueEndsBefore(cut)
		front := s.queueFront()
		if front == nil {
			if s.RangeStartComputed == RangeStartReinsertSingle {
				continue
			}
			s.RangeStartComputed = RangeStartPending
			return false
		}
		s.TSAtRangeStartPlusOne = NewTSPlusOne(front.ts)
		if s.RangeStartComputed == RangeStartFound && front.ts > minTS {
			diff := front.ts - minTS
			s.Out.SetProperty("DELAY", diff)
		} else if s.DeclaredDelay > 0 {
			s.Out.SetProperty("DELAY", int64(0))
		}
	}

	c.InRange = true
	return true
}

func tickScaleFallback(c *Context) uint64 {
	for _, s := range c.Streams {
		if s.Timescale != 0 {
			return s.Timescale
		}
	}
	return 1
}

// voteMinTS implements the min_ts vote of spec.md §4.3 step 5: prefer
// non-all-SAP streams, fall back to all-SAP streams, fall back to cur_start.
func (c *Context) voteMinTS() (int64, uint64, bool) {
	var bestNonAll, bestAll int64
	var scaleNonAll, scaleAll uint64
	haveNonAll, haveAll := false, false
	for _, s := range c.Streams {
		if !s.IsPlaying || s.RangeStartComputed != RangeStartFound {
			continue
		}
		front := s.queueFront()
		if front == nil {
			continue
		}
		ts := front.ts
		if !s.AllSAPs {
			if !haveNonAll || translateTicks(ts, s.Timescale, 1_000_000) < translateTicks(bestNonAll, scaleNonAll, 1_000_000) {
				bestNonAll, scaleNonAll, haveNonAll = ts, s.Timescale, true
			}
		} else {
			if !haveAll || translateTicks(ts, s.Timescale, 1_000_000) < translateTicks(bestAll, scaleAll, 1_000_000) {
				bestAll, scaleAll, haveAll = ts, s.Timescale, true
			}
		}
	}
	if haveNonAll {
		return bestNonAll, scaleNonAll, true
	}
	if haveAll {
		return bestAll, scaleAll, true
	}
	return 0, 0, false
}
