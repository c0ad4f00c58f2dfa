package reframer

import (
	"fmt"
	"strings"

	"github.com/snapetech/reframer/internal/pidio"
)

// audioSamplesToTicks is the inverse of audioSamplesBetween.
func audioSamplesToTicks(s *Stream, samples int64) int64 {
	if s.SampleRate == 0 || s.SampleRate == s.Timescale {
		return samples
	}
	return samples * int64(s.Timescale) / int64(s.SampleRate)
}

// keepBySAP applies the saps[] emission filter (spec.md §4.5, §6).
func (c *Context) keepBySAP(sap pidio.SAPClass) bool {
	if len(c.cfg.SAPs) == 0 {
		return true
	}
	for _, want := range c.cfg.SAPs {
		if want == sap {
			return true
		}
	}
	return false
}

// keepByFrame applies the frames[] whitelist, only meaningful outside range
// extraction (spec.md §6).
func (c *Context) keepByFrame(frameIdx int) bool {
	if c.ExtractMode == ExtractRange || len(c.cfg.Frames) == 0 {
		return true
	}
	for _, want := range c.cfg.Frames {
		if want == frameIdx+1 {
			return true
		}
	}
	return false
}

// stripsSync reports whether the configured saps[] filter can exclude a
// SAP1/SAP2 packet, in which case downstream can no longer assume the first
// packet is a sync point.
func (c *Context) stripsSync() bool {
	if len(c.cfg.SAPs) == 0 {
		return false
	}
	return !c.keepBySAP(pidio.SAP1) || !c.keepBySAP(pidio.SAP2)
}

func sanitizeSuffixPart(raw string) string {
	r := strings.ReplaceAll(raw, ":", ".")
	r = strings.ReplaceAll(r, "/", ".")
	return r
}

// fileSuffix implements spec.md §4.5's FileSuffix rule.
func (c *Context) fileSuffix() string {
	if c.StartFrameIdxPlusOne.Valid() || c.EndFrameIdxPlusOne.Valid() {
		parts := []string{}
		if c.CurStartRaw != "" {
			parts = append(parts, sanitizeSuffixPart(c.CurStartRaw))
		}
		if c.CurEndRaw != "" {
			parts = append(parts, sanitizeSuffixPart(c.CurEndRaw))
		}
		return strings.Join(parts, "_")
	}
	startMS := int64(c.CurStart.Float64() * 1000)
	if c.HasEnd {
		endMS := int64(c.CurEnd.Float64() * 1000)
		return fmt.Sprintf("%d-%d", startMS, endMS)
	}
	return fmt.Sprintf("%d", startMS)
}

func (c *Context) fileNumber() int {
	if c.ExtractMode == ExtractRange {
		return c.CurRangeIdx
	}
	return c.FileIdx
}

// attachChunkProps decorates the first emitted packet of a chunk, per
// spec.md §4.5 and §6's output-property table.
func (c *Context) attachChunkProps(s *Stream, out pidio.Packet) {
	if !c.cfg.SplitRange || s.FirstPckSent {
		return
	}
	out.SetProperty("FileNumber", c.fileNumber())
	out.SetProperty("FileSuffix", c.fileSuffix())
	for _, kv := range c.cfg.Props {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			out.SetProperty(k, v)
		}
	}
	out.SetProperty("period_resume", true)
	s.FirstPckSent = true
}

// transformPayload builds the output packet's bytes per spec.md §4.5: a
// zero-copy ref by default, a TMCD frame-counter rewrite, or a raw-audio
// sub-sample copy honoring interleaved/planar layout.
func (c *Context) transformPayload(s *Stream, q queuedPacket) (pidio.Packet, int64) {
	if s.CodecID == "tmcd" && c.cfg.Tcmdrw {
		data := append([]byte(nil), q.pkt.Data()...)
		if len(data) >= 4 {
			frameCounter := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
			frameCounter += uint32(s.nbVideoFramesAtRangeStart)
			data[0] = byte(frameCounter >> 24)
			data[1] = byte(frameCounter >> 16)
			data[2] = byte(frameCounter >> 8)
			data[3] = byte(frameCounter)
		}
		out := c.alloc.NewCopy(q.pkt, data)
		return out, 0
	}

	if isRawAudioSplittable(s) && (s.AudioDropHead > 0 || s.AudioKeepTail > 0) {
		data := q.pkt.Data()
		frameSize := s.BytesPerSampleFrame
		if frameSize <= 0 {
			frameSize = 1
		}
		dropBytes := int(s.AudioDropHead) * frameSize
		keepTailSamples := s.AudioKeepTail
		trim := func(b []byte) []byte {
			switch {
			case s.AudioDropHead > 0 && dropBytes < len(b):
				return b[dropBytes:]
			case keepTailSamples > 0:
				keepBytes := int(keepTailSamples) * frameSize
				if keepBytes > len(b) {
					keepBytes = len(b)
				}
				return b[:keepBytes]
			default:
				return b
			}
		}
		var out []byte
		if s.Planar && s.Channels > 1 {
			// Planar: each channel's samples are packed contiguously, so trim
			// every plane separately.
			plane := len(data) / s.Channels
			for ch := 0; ch < s.Channels; ch++ {
				out = append(out, trim(data[ch*plane:(ch+1)*plane])...)
			}
		} else {
			out = trim(data)
		}
		clone := c.alloc.NewCopy(q.pkt, append([]byte(nil), out...))
		ctsOffset := int64(0)
		if s.AudioDropHead > 0 {
			ctsOffset = audioSamplesToTicks(s, s.AudioDropHead)
		}
		return clone, ctsOffset
	}

	return c.alloc.NewRef(q.pkt), 0
}

// chunkDoneForStream reports whether s has nothing left to emit for the
// current chunk: its queue is drained and either its end was located, it
// stopped playing, or upstream is EOS.
func chunkDoneForStream(s *Stream) bool {
	if !s.IsPlaying || (s.In.IsEOS() && len(s.Queue) == 0) {
		return true
	}
	if !s.RangeEndReachedTS.Valid() {
		return len(s.Queue) == 0
	}
	return len(s.Queue) == 0 || s.Queue[0].ts >= s.RangeEndReachedTS.Value()
}

// EmitStream implements spec.md §4.5 for one stream: dequeue, filter,
// transform, rewrite timestamps, and forward as many packets as the pacer
// allows this tick. Returns true if the stream's chunk is now fully
// emitted (queue drained and its end located).
func (c *Context) EmitStream(s *Stream) bool {
	if c.stripsSync() && !s.FirstPckSent {
		s.Out.SetProperty("HAS_SYNC", false)
	}

	for len(s.Queue) > 0 {
		q := s.Queue[0]

		// In the non-range split modes the queue may already hold packets
		// belonging to the next chunk (fillQueues drains everything
		// upstream offers); stop at the located cut and leave them queued.
		if s.RangeEndReachedTS.Valid() && q.ts >= s.RangeEndReachedTS.Value() {
			break
		}

		decision := c.pace(s, q.pkt.CTS()+s.TkDelay)
		if !decision.emit {
			c.noteReschedule(decision.rescheduleIn)
			return false
		}

		s.Queue = s.Queue[1:]

		frameIdx := int(s.NbFramesRange)
		s.NbFramesRange++

		lastInChunk := len(s.Queue) == 0 || (s.RangeEndReachedTS.Valid() && s.Queue[0].ts >= s.RangeEndReachedTS.Value())

		keep := c.keepBySAP(q.sap) && c.keepByFrame(frameIdx)
		if c.cfg.Refs {
			keep = keep && q.pkt.DependencyFlags().IsReference()
		}
		if !keep {
			if lastInChunk {
				s.TSAtRangeEnd += q.ts + int64(q.dur) - s.TSAtRangeStartPlusOne.Value()
			}
			q.pkt.Unref()
			if c.rec != nil {
				c.rec.PacketDropped(s.ID)
			}
			continue
		}

		keepTail := s.AudioKeepTail
		if !lastInChunk {
			s.AudioKeepTail = 0
		}
		out, ctsOffset := c.transformPayload(s, q)
		s.AudioDropHead, s.AudioKeepTail = 0, keepTail

		startBase := s.TSAtRangeStartPlusOne.Value()
		tsOut := q.ts + ctsOffset + s.TSAtRangeEnd - startBase
		if tsOut < 0 {
			c.warnf("negative-ts:"+s.ID, "stream %s: rewritten timestamp %d clamped to 0", s.ID, tsOut)
			tsOut = 0
		}
		out.SetCTS(tsOut)
		out.SetDTS(tsOut)

		dur := q.dur
		if s.SplitStart > 0 {
			if dur > s.SplitStart {
				dur -= s.SplitStart
			} else {
				dur = 0
			}
			s.TSAtRangeStartPlusOne = NewTSPlusOne(s.TSAtRangeStartPlusOne.Value() + int64(s.SplitStart))
			s.SplitStart = 0
		}
		if s.SplitEnd > 0 && lastInChunk {
			dur = s.SplitEnd
		}
		if s.RangeStartComputed == RangeStartReinsertSingle && s.RangeEndReachedTS.Valid() {
			maxDur := s.RangeEndReachedTS.Value() - startBase
			if maxDur >= 0 && int64(dur) > maxDur {
				dur = uint32(maxDur)
			}
		}
		out.SetDuration(dur)

		q.pkt.Unref()

		c.attachChunkProps(s, out)

		if err := s.Out.Forward(out); err != nil {
			c.warnf("forward:"+s.ID, "stream %s: forward failed: %v", s.ID, err)
		} else if c.rec != nil {
			c.rec.PacketEmitted(s.ID, len(out.Data()))
		}

		// TSAtRangeEnd stays fixed within a chunk; it moves to this chunk's
		// end only once its last packet is out.
		if lastInChunk {
			s.TSAtRangeEnd = tsOut + int64(dur)
		}
		if s.isVideo() {
			c.NbVideoFramesSinceStart++
		}
	}

	if c.rec != nil {
		c.rec.QueueDepth(s.ID, len(s.Queue))
	}

	return chunkDoneForStream(s)
}

// snapshotVideoFrameBase is called once per chunk start (before EmitStream
// runs) so the TMCD rewrite and nb_video_frames bookkeeping use a stable
// base for the whole chunk.
func (c *Context) snapshotVideoFrameBase() {
	for _, s := range c.Streams {
		s.nbVideoFramesAtRangeStart = c.NbVideoFramesSinceStart
	}
}
