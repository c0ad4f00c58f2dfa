package reframer

import "github.com/snapetech/reframer/internal/pidio"

// sendPlay forwards a PLAY event to s's upstream pid with the given
// start_range. Callers pass the rewritten start: Init uses the first range's
// start minus seeksafe in range mode (spec.md §4.7), doSeek the new range's.
func (c *Context) sendPlay(s *Stream, startRange float64) {
	speed := c.cfg.Speed
	if speed == 0 {
		speed = 1
	}
	s.In.SendEvent(pidio.Event{Type: pidio.EventPlay, StartRange: startRange, Speed: speed})
}

// sendStop forwards STOP to s's upstream pid and marks it non-playing; from
// this point the stream is treated as a non-contributing EOS participant.
func (c *Context) sendStop(s *Stream) {
	s.In.SendEvent(pidio.Event{Type: pidio.EventStop})
	s.IsPlaying = false
}

// broadcastStop sends STOP to every registered input pid, used when the
// range list is exhausted (spec.md §4.2) or on a fatal error.
func (c *Context) broadcastStop() {
	for _, s := range c.Streams {
		c.sendStop(s)
	}
}
