package reframer

import (
	"testing"

	"github.com/snapetech/reframer/internal/pidio/memio"
)

func TestPaceOffAlwaysEmits(t *testing.T) {
	ctx := NewContext(Config{RT: RTOff}, memio.Allocator{})
	s, _, _ := newTestStream("v", "synthetic-video", 0, false)
	s.Timescale = 90000

	d := ctx.pace(s, 123456)
	if !d.emit {
		t.Fatal("rt=off should always emit")
	}
}

func TestPaceOnAnchorsFirstPacketThenWaits(t *testing.T) {
	now := int64(1_000_000)
	clock := func() int64 { return now }
	ctx := NewContext(Config{RT: RTOn, Clock: clock}, memio.Allocator{})
	s, _, _ := newTestStream("v", "synthetic-video", 0, false)
	s.Timescale = 1_000_000 // ticks == microseconds, for simple arithmetic

	// First packet anchors immediately regardless of its cts.
	d := ctx.pace(s, 0)
	if !d.emit {
		t.Fatal("first packet on a stream should anchor and emit immediately")
	}

	// A packet 5 seconds of media time ahead, with no wall-clock elapsed,
	// should be held back.
	d2 := ctx.pace(s, 5_000_000)
	if d2.emit {
		t.Fatal("packet 5s ahead of the anchor with no wall-clock elapsed should be rescheduled")
	}
	if d2.rescheduleIn <= 0 {
		t.Fatalf("rescheduleIn = %d, want > 0", d2.rescheduleIn)
	}

	// Advance the wall clock by 5 seconds: now it should emit.
	now += 5_000_000
	d3 := ctx.pace(s, 5_000_000)
	if !d3.emit {
		t.Fatal("packet should emit once wall-clock time has caught up to media time")
	}
}

func TestPaceLateCTSEmitsImmediatelyWithoutReanchoring(t *testing.T) {
	now := int64(1_000_000)
	clock := func() int64 { return now }
	ctx := NewContext(Config{RT: RTOn, Clock: clock}, memio.Allocator{})
	s, _, _ := newTestStream("v", "synthetic-video", 0, false)
	s.Timescale = 1_000_000

	ctx.pace(s, 10_000_000) // anchor at cts=10s

	d := ctx.pace(s, 5_000_000) // cts precedes the anchor
	if !d.emit {
		t.Fatal("late cts relative to the anchor should emit immediately")
	}
}

func TestNoteRescheduleKeepsMinimum(t *testing.T) {
	ctx := NewContext(Config{}, memio.Allocator{})
	ctx.noteReschedule(500)
	ctx.noteReschedule(100)
	ctx.noteReschedule(900)
	if ctx.rtReschedule != 100 {
		t.Fatalf("rtReschedule = %d, want 100 (minimum across calls)", ctx.rtReschedule)
	}
	if got := ctx.RescheduleDelay(); got != RTPrecisionUS {
		t.Fatalf("RescheduleDelay() = %d, want RTPrecisionUS", got)
	}
}
