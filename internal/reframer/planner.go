package reframer

// fillQueues drains every available upstream packet into its stream's
// queue. It is used by the non-range split modes (sap/size/dur), which —
// unlike range mode — do not need per-packet start/end classification
// before a packet is admissible into the queue; the planner decides cuts
// purely from already-queued packets (spec.md §4.4).
//
// Size/duration split require retaining queued packets across ticks to
// plan their cut; a blocking upstream reference can't be held that long
// without deadlocking the upstream, so it is fatal the instant one turns
// up in either mode (spec.md §5, §7).
func (c *Context) fillQueues() error {
	blockingFatal := c.ExtractMode == ExtractSize || c.ExtractMode == ExtractDuration
	for _, s := range c.Streams {
		if !s.IsPlaying {
			continue
		}
		for {
			pkt, ok := c.fetchNext(s)
			if !ok {
				break
			}
			if blockingFatal && pkt.IsBlockingRef() {
				return NewFatalError(FatalBlockingRefSplit)
			}
			ts, dur := readTSDur(s, pkt)
			sap := pkt.SAP()
			if !c.isSAP(sap) {
				s.AllSAPs = false
			}
			s.NbFrames++
			s.In.DropPacket()
			c.enqueue(s, pkt, ts, dur, sap)
		}
	}
	return nil
}

// nthSAPCandidate returns the timestamp of the (1+gop_depth)-th SAP queued
// on s, if that many SAPs are queued yet.
func (c *Context) nthSAPCandidate(s *Stream) (ts int64, scale uint64, ok bool) {
	n := 0
	for _, q := range s.Queue {
		if c.isSAP(q.sap) {
			n++
			if n == 1+c.GopDepth {
				return q.ts, s.Timescale, true
			}
		}
	}
	return 0, 0, false
}

func lastQueuedEndTicks(s *Stream) (int64, bool) {
	if len(s.Queue) == 0 {
		return 0, false
	}
	last := s.Queue[len(s.Queue)-1]
	return int64(last.ts) + int64(last.dur), true
}

func sumBytesBefore(streams []*Stream, cutTS int64, cutScale uint64) int64 {
	var total int64
	for _, s := range streams {
		cut := translateTicks(cutTS, cutScale, s.Timescale)
		for _, q := range s.Queue {
			if q.ts < cut {
				total += int64(len(q.pkt.Data()))
			}
		}
	}
	return total
}

// planDurationCut computes the exact cur_end boundary for duration-split
// mode. Unlike the SAP/size planner, the cut is not chosen by walking
// SAPs: it is the configured extract_dur boundary, so consecutive chunk
// end times differ by exactly extract_dur regardless of SAP alignment.
// A can_split stream's straddling packet is trimmed in place and the
// residual re-enqueued at the cut so it naturally belongs to the next
// chunk (the queue is shared across chunks; EmitStream stops at the cut).
func (c *Context) planDurationCut() (bool, error) {
	if err := c.fillQueues(); err != nil {
		return false, err
	}

	scale := tickScaleFallback(c)
	cutTicks := c.CurEnd.ScaleTo(scale)

	flush := false
	for _, s := range c.Streams {
		if s.IsPlaying && s.In.IsEOS() {
			flush = true
			break
		}
	}

	if flush {
		var maxEnd int64
		have := false
		for _, s := range c.Streams {
			end, ok := lastQueuedEndTicks(s)
			if !ok {
				continue
			}
			endCommon := translateTicks(end, s.Timescale, scale)
			if !have || endCommon > maxEnd {
				maxEnd, have = endCommon, true
			}
		}
		if have && maxEnd < cutTicks {
			cutTicks = maxEnd
		}
	} else {
		for _, s := range c.Streams {
			if !s.IsPlaying || s.In.IsEOS() {
				continue
			}
			cut := translateTicks(cutTicks, scale, s.Timescale)
			end, ok := lastQueuedEndTicks(s)
			if !ok || end < cut {
				return false, nil
			}
		}
	}

	for _, s := range c.Streams {
		cut := translateTicks(cutTicks, scale, s.Timescale)
		c.splitQueueAtCut(s, cut)
		s.RangeEndReachedTS = NewTSPlusOne(cut)
		if front := s.queueFront(); front != nil {
			s.TSAtRangeStartPlusOne = NewTSPlusOne(front.ts)
		}
	}
	c.MinTSComputed, c.MinTSScale, c.MinTSComputedValid = cutTicks, scale, true
	c.InRange = true
	return true, nil
}

// splitQueueAtCut trims the queued packet straddling cut (native units) to
// end exactly at cut, for can_split streams, re-inserting the residual
// right after it so it starts the next chunk.
func (c *Context) splitQueueAtCut(s *Stream, cut int64) {
	if !s.CanSplit {
		return
	}
	for i, q := range s.Queue {
		end := q.ts + int64(q.dur)
		if q.ts < cut && end > cut {
			head := uint32(cut - q.ts)
			tail := q.dur - head
			residual := queuedPacket{pkt: c.alloc.NewRef(q.pkt), ts: cut, dur: tail, sap: q.sap}
			s.Queue[i].dur = head
			rest := append([]queuedPacket{residual}, s.Queue[i+1:]...)
			s.Queue = append(s.Queue[:i+1], rest...)
			return
		}
		if q.ts >= cut {
			return
		}
	}
}

// PlanChunk implements spec.md §4.4: it is invoked once per tick while
// ExtractMode is sap/size or while inside a duration chunk, and returns
// true once a common end cut (and therefore a start cut for the next
// chunk) has been decided and InRange has been set.
func (c *Context) PlanChunk() (bool, error) {
	if err := c.fillQueues(); err != nil {
		return false, err
	}

	flush := false
	for _, s := range c.Streams {
		if s.IsPlaying && s.In.IsEOS() {
			flush = true
			break
		}
	}

	var candTS int64
	var candScale uint64
	haveCand := false

	if flush {
		scale := tickScaleFallback(c)
		for _, s := range c.Streams {
			end, ok := lastQueuedEndTicks(s)
			if !ok {
				continue
			}
			endCommon := translateTicks(end, s.Timescale, scale)
			if !haveCand || endCommon > candTS {
				candTS, candScale, haveCand = endCommon, scale, true
			}
		}
	} else {
		var nonAllBest, allBest int64
		var nonAllScale, allScale uint64
		haveNonAll, haveAll := false, false
		for _, s := range c.Streams {
			if !s.IsPlaying {
				continue
			}
			ts, scale, ok := c.nthSAPCandidate(s)
			if !ok {
				continue
			}
			if !s.AllSAPs {
				if !haveNonAll || translateTicks(ts, scale, 1_000_000) < translateTicks(nonAllBest, nonAllScale, 1_000_000) {
					nonAllBest, nonAllScale, haveNonAll = ts, scale, true
				}
			} else {
				if !haveAll || translateTicks(ts, scale, 1_000_000) < translateTicks(allBest, allScale, 1_000_000) {
					allBest, allScale, haveAll = ts, scale, true
				}
			}
		}
		if haveNonAll {
			candTS, candScale, haveCand = nonAllBest, nonAllScale, true
		} else if haveAll {
			candTS, candScale, haveCand = allBest, allScale, true
		}
	}

	if !haveCand {
		return false, nil
	}

	if !flush {
		for _, s := range c.Streams {
			if !s.IsPlaying || s.In.IsEOS() {
				continue
			}
			cut := translateTicks(candTS, candScale, s.Timescale)
			end, ok := lastQueuedEndTicks(s)
			if !ok || end < cut {
				return false, nil
			}
		}
	}

	if c.ExtractMode == ExtractSize {
		total := sumBytesBefore(c.Streams, candTS, candScale)
		target := c.durCfg.sizeTarget
		advanced := !c.PrevMinTSComputedValid || translateTicks(candTS, candScale, 1_000_000) != translateTicks(c.PrevMinTSComputed, c.PrevMinTSScale, 1_000_000)
		if total < target && advanced {
			c.PrevMinTSComputed, c.PrevMinTSScale, c.PrevMinTSComputedValid = candTS, candScale, true
			c.MinTSComputedValid = false
			c.GopDepth++
			return false, nil
		}
		if c.PrevMinTSComputedValid {
			prevTotal := sumBytesBefore(c.Streams, c.PrevMinTSComputed, c.PrevMinTSScale)
			switch c.cfg.XRound {
			case RoundBefore:
				candTS, candScale = c.PrevMinTSComputed, c.PrevMinTSScale
			case RoundAfter:
				// keep current candidate
			case RoundClosest:
				if absInt64(prevTotal-target) < absInt64(total-target) {
					candTS, candScale = c.PrevMinTSComputed, c.PrevMinTSScale
				}
			}
		}
	}

	c.MinTSComputed, c.MinTSScale, c.MinTSComputedValid = candTS, candScale, true

	for _, s := range c.Streams {
		cut := translateTicks(candTS, candScale, s.Timescale)
		c.splitQueueAtCut(s, cut)
		s.RangeEndReachedTS = NewTSPlusOne(cut)
		if front := s.queueFront(); front != nil {
			s.TSAtRangeStartPlusOne = NewTSPlusOne(front.ts)
		}
	}
	c.InRange = true
	c.GopDepth = 0
	return true, nil
}
